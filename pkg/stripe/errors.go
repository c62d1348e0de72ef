package stripe

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// ErrorKind classifies gateway failures for the API layer.
type ErrorKind string

const (
	ErrorKindCard               ErrorKind = "card_error"
	ErrorKindInvalidRequest     ErrorKind = "invalid_request"
	ErrorKindServiceUnavailable ErrorKind = "service_unavailable"
)

// GatewayError wraps a failed Stripe call.
type GatewayError struct {
	Kind    ErrorKind
	Op      string
	Message string
	Status  int
	cause   error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("stripe %s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.cause
}

// AsAPIError maps the failure onto the public error codes.
func (e *GatewayError) AsAPIError() *pkgerrors.Error {
	switch e.Kind {
	case ErrorKindCard:
		return pkgerrors.Wrap(pkgerrors.CodePaymentDeclined, e, e.Message)
	case ErrorKindInvalidRequest:
		return pkgerrors.Wrap(pkgerrors.CodePaymentInvalid, e, e.Message)
	default:
		return pkgerrors.Wrap(pkgerrors.CodePaymentUnavailable, e, "payment gateway unavailable")
	}
}

// AsGatewayError extracts a GatewayError from err.
func AsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}

func classify(op string, err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return &GatewayError{Kind: ErrorKindServiceUnavailable, Op: op, Message: err.Error(), cause: err}
	}

	gwErr := &GatewayError{Op: op, Message: stripeErr.Msg, Status: stripeErr.HTTPStatusCode, cause: err}
	switch {
	case stripeErr.Type == stripe.ErrorTypeCard:
		gwErr.Kind = ErrorKindCard
	case stripeErr.Type == stripe.ErrorTypeInvalidRequest:
		gwErr.Kind = ErrorKindInvalidRequest
	case stripeErr.HTTPStatusCode >= http.StatusBadRequest && stripeErr.HTTPStatusCode < http.StatusInternalServerError &&
		stripeErr.HTTPStatusCode != http.StatusTooManyRequests:
		gwErr.Kind = ErrorKindInvalidRequest
	default:
		gwErr.Kind = ErrorKindServiceUnavailable
	}
	if gwErr.Message == "" {
		gwErr.Message = string(gwErr.Kind)
	}
	return gwErr
}
