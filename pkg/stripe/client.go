package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	defaultTimeout = 20 * time.Second
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)

	// ErrSigningSecretMissing means webhook verification cannot run at all.
	ErrSigningSecretMissing = errors.New("stripe webhook secret is required")
)

type intentsAPI interface {
	Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
	Retrieve(ctx context.Context, id string, params *stripe.PaymentIntentRetrieveParams) (*stripe.PaymentIntent, error)
}

// Client is the payment gateway adapter: intents plus webhook verification.
type Client struct {
	intents       intentsAPI
	environment   string
	signingSecret string
}

// NewClient validates the configured keys and builds the Stripe API client.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	signingSecret := strings.TrimSpace(cfg.Secret)
	if signingSecret == "" {
		return nil, ErrSigningSecretMissing
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	sc := stripe.NewClient(apiKey, stripe.WithBackends(newBackends(cfg, logg)))
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"stripe_env": env, "max_retries": cfg.MaxRetries}), "stripe client initialized")
	}

	return &Client{
		intents:       sc.V1PaymentIntents,
		environment:   env,
		signingSecret: signingSecret,
	}, nil
}

func newBackends(cfg config.StripeConfig, logg *logger.Logger) *stripe.Backends {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	bc := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(retries),
	}
	if logg != nil {
		bc.LeveledLogger = leveledLogger{logg: logg}
	}
	return stripe.NewBackendsWithConfig(bc)
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

// validateAPIKey accepts standard (sk_) and restricted (rk_) secret keys for env.
// Publishable keys are rejected outright.
func validateAPIKey(env, key string) error {
	if strings.HasPrefix(key, "pk_") {
		return fmt.Errorf("stripe publishable key cannot be used as a secret key")
	}
	prefixes := []string{"sk_" + env + "_", "rk_" + env + "_"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(key, prefix) {
			return nil
		}
	}
	return fmt.Errorf("stripe environment %q requires a %s secret key (%s)", env, env, strings.Join(prefixes, "/"))
}
