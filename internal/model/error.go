package model

// ErrorResponse represents a standardised error response of the local surface.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Standard error codes
const (
	ErrCodeInvalidJSON         = "INVALID_JSON"
	ErrCodeMissingField        = "MISSING_FIELD"
	ErrCodeInvalidQuantity     = "INVALID_QUANTITY"
	ErrCodeEmptyCart           = "EMPTY_CART"
	ErrCodeCouponNotFound      = "COUPON_NOT_FOUND"
	ErrCodeCouponIneligible    = "COUPON_INELIGIBLE"
	ErrCodeMinOrderNotMet      = "MIN_ORDER_NOT_MET"
	ErrCodeStockConflict       = "STOCK_CONFLICT"
	ErrCodeAllOutOfStock       = "ALL_OUT_OF_STOCK"
	ErrCodeSubmissionPending   = "SUBMISSION_IN_PROGRESS"
	ErrCodeDeliveryDisabled    = "DELIVERY_DISABLED"
	ErrCodeUnauthorised        = "UNAUTHORIZED"
	ErrCodeProductNotFound     = "PRODUCT_NOT_FOUND"
	ErrCodeLocationFailed      = "LOCATION_FAILED"
	ErrCodeInternalError       = "INTERNAL_ERROR"
	ErrCodeUpstreamError       = "UPSTREAM_ERROR"
	ErrCodeUpstreamUnreachable = "UPSTREAM_UNREACHABLE"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrInvalidQuantity  = NewDomainError(ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrEmptyCart        = NewDomainError(ErrCodeEmptyCart, "Cart is empty")
	ErrCouponNotFound   = NewDomainError(ErrCodeCouponNotFound, "Coupon code not found")
	ErrCouponIneligible = NewDomainError(ErrCodeCouponIneligible, "Coupon is not valid for this order")
	ErrProductNotFound  = NewDomainError(ErrCodeProductNotFound, "Product not found")
	ErrDeliveryDisabled = NewDomainError(ErrCodeDeliveryDisabled, "Delivery is currently unavailable")
)
