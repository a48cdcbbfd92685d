package x402

import "errors"

// Sentinel errors for payment protocol operations.
var (
	// ErrInvalidNetwork indicates an unsupported network identifier.
	ErrInvalidNetwork = errors.New("x402: invalid or unsupported network")

	// ErrMissingFacilitator indicates no facilitator endpoint is configured
	// for a network without a built-in binding.
	ErrMissingFacilitator = errors.New("x402: missing facilitator URL")

	// ErrInvalidAmount indicates a malformed or out-of-precision amount.
	ErrInvalidAmount = errors.New("x402: invalid amount")

	// ErrMalformedHeader indicates the X-Payment header could not be decoded.
	ErrMalformedHeader = errors.New("x402: malformed payment header")

	// ErrUnsupportedVersion indicates an unsupported x402 protocol version.
	ErrUnsupportedVersion = errors.New("x402: unsupported protocol version")

	// ErrUnsupportedScheme indicates an unsupported payment scheme.
	ErrUnsupportedScheme = errors.New("x402: unsupported payment scheme")

	// ErrPaymentMismatch indicates the decoded authorization does not match
	// the challenged requirement (wrong network, recipient, or value).
	ErrPaymentMismatch = errors.New("x402: payment does not match requirement")

	// ErrInvalidKey indicates an invalid private key.
	ErrInvalidKey = errors.New("x402: invalid private key")

	// ErrFacilitatorUnavailable indicates the facilitator service is unreachable.
	ErrFacilitatorUnavailable = errors.New("x402: facilitator service unavailable")

	// ErrVerificationFailed indicates the facilitator rejected the payment.
	ErrVerificationFailed = errors.New("x402: payment verification failed")

	// ErrSettlementFailed indicates the facilitator could not settle the payment.
	ErrSettlementFailed = errors.New("x402: payment settlement failed")
)

// ErrorCode represents payment error codes used in HTTP error bodies.
type ErrorCode string

const (
	// ErrCodePaymentRequired is sent with every 402 challenge.
	ErrCodePaymentRequired ErrorCode = "PAYMENT_REQUIRED"

	// ErrCodeInvalidPayment indicates a present but malformed or mismatched proof.
	ErrCodeInvalidPayment ErrorCode = "INVALID_PAYMENT"

	// ErrCodeFacilitatorUnavailable indicates a transient facilitator outage.
	ErrCodeFacilitatorUnavailable ErrorCode = "FACILITATOR_UNAVAILABLE"

	// ErrCodeSettlementFailed indicates the facilitator refused settlement.
	ErrCodeSettlementFailed ErrorCode = "SETTLEMENT_FAILED"
)

// PaymentError provides structured error information for request boundaries.
type PaymentError struct {
	// Code is the error code for programmatic handling.
	Code ErrorCode

	// Message is the human-readable error message.
	Message string

	// Details contains additional error context.
	Details map[string]interface{}

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a new PaymentError with the given code and message.
func NewPaymentError(code ErrorCode, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// WithDetails adds additional context to the error.
// Lazily initializes the Details map if nil.
func (e *PaymentError) WithDetails(key string, value interface{}) *PaymentError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}
