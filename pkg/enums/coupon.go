package enums

// CouponReason records why a coupon was issued.
type CouponReason string

const (
	CouponReasonWelcomeNewUser CouponReason = "WELCOME_NEW_USER"
)

// CouponDiscountType is the discount model of a coupon.
type CouponDiscountType string

const (
	CouponDiscountPercent CouponDiscountType = "percent"
)
