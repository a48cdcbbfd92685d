// Package x402 implements the server side of the x402 payment-challenge
// protocol: a metered HTTP route answers unauthenticated requests with an
// HTTP 402 challenge describing an acceptable USDC payment, and admits
// requests carrying a signed EIP-3009 transfer authorization once a
// settlement facilitator has verified it.
//
// The package also carries a reference consumer-side Signer so the exact
// shape of the signed authorization is pinned in one place.
package x402

import (
	"fmt"
	"math/big"
	"strings"
)

// X402Version is the protocol version spoken by this service.
const X402Version = 1

// SchemeExact is the only payment scheme accepted: the authorization must be
// for exactly the challenged amount.
const SchemeExact = "exact"

// DefaultMaxTimeoutSeconds bounds how far in the future an authorization's
// validBefore may be placed. One hour survives normal request latency.
const DefaultMaxTimeoutSeconds = 3600

// PaymentRequirements is the canonical descriptor of one acceptable payment,
// returned as an element of the "accepts" array in a 402 challenge.
type PaymentRequirements struct {
	// Scheme is the payment scheme identifier. Always "exact".
	Scheme string `json:"scheme"`

	// Network is the network identifier (e.g., "base-sepolia").
	Network string `json:"network"`

	// MaxAmountRequired is the payment amount in atomic USDC units,
	// as a decimal integer string.
	MaxAmountRequired string `json:"maxAmountRequired"`

	// Resource is the path of the protected resource.
	Resource string `json:"resource"`

	// Description is a human-readable description of the resource.
	Description string `json:"description,omitempty"`

	// MimeType is the content type of the protected resource.
	MimeType string `json:"mimeType,omitempty"`

	// PayTo is the recipient address for the payment.
	PayTo string `json:"payTo"`

	// MaxTimeoutSeconds is the validity period for the payment authorization.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds"`

	// Asset is the USDC contract address on the network.
	Asset string `json:"asset"`

	// Extra carries EIP-712 domain hints ("name", "version") for the asset.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// PaymentRequiredResponse is the 402 challenge body.
type PaymentRequiredResponse struct {
	// X402Version is the protocol version (1).
	X402Version int `json:"x402Version"`

	// Error is a human-readable explanation of why payment is required.
	Error string `json:"error"`

	// Accepts lists the payment options the server will accept.
	Accepts []PaymentRequirements `json:"accepts"`
}

// ExactEVMAuthorization contains the EIP-3009 transferWithAuthorization
// parameters. All numeric fields travel as decimal strings.
type ExactEVMAuthorization struct {
	// From is the payer's address.
	From string `json:"from"`

	// To is the recipient's address.
	To string `json:"to"`

	// Value is the payment amount in atomic units.
	Value string `json:"value"`

	// ValidAfter is the unix timestamp after which the authorization is valid.
	ValidAfter string `json:"validAfter"`

	// ValidBefore is the unix timestamp before which the authorization is valid.
	ValidBefore string `json:"validBefore"`

	// Nonce is a unique 32-byte hex string. It is the authorization's
	// replay key: identity, not free-form data.
	Nonce string `json:"nonce"`
}

// ExactEVMPayload pairs the authorization with its ECDSA signature.
type ExactEVMPayload struct {
	// Signature is the hex-encoded EIP-712 signature.
	Signature string `json:"signature"`

	// Authorization contains the signed transferWithAuthorization parameters.
	Authorization ExactEVMAuthorization `json:"authorization"`
}

// PaymentPayload is the bearer payment proof carried in the X-Payment header
// as base64-encoded JSON.
type PaymentPayload struct {
	// X402Version is the protocol version (1).
	X402Version int `json:"x402Version"`

	// Scheme is the payment scheme identifier.
	Scheme string `json:"scheme"`

	// Network is the network identifier the payment targets.
	Network string `json:"network"`

	// Payload contains the signed EIP-3009 authorization.
	Payload ExactEVMPayload `json:"payload"`
}

// VerifyResponse is returned by the facilitator /verify endpoint.
type VerifyResponse struct {
	// IsValid indicates whether the payment is valid.
	IsValid bool `json:"isValid"`

	// InvalidReason provides a short error description if the payment is invalid.
	InvalidReason string `json:"invalidReason,omitempty"`

	// Payer is the address that made the payment.
	Payer string `json:"payer,omitempty"`
}

// SettleResponse is returned by the facilitator /settle endpoint.
type SettleResponse struct {
	// Success indicates whether the payment was successfully settled.
	Success bool `json:"success"`

	// ErrorReason provides a short error description if settlement failed.
	ErrorReason string `json:"errorReason,omitempty"`

	// Transaction is the settlement transaction hash.
	Transaction string `json:"transaction,omitempty"`

	// Network is the network the payment was settled on.
	Network string `json:"network,omitempty"`

	// Payer is the address that made the payment.
	Payer string `json:"payer,omitempty"`
}

// SettlementMetadata is appended to successful response bodies after
// settlement. It never replaces handler-produced fields.
type SettlementMetadata struct {
	// Cost is the price paid, as a decimal USD string.
	Cost string `json:"cost"`

	// Protocol identifies the payment protocol ("x402").
	Protocol string `json:"protocol"`

	// Network is the network the payment settled on.
	Network string `json:"network"`

	// PaymentMethod is the asset used ("USDC").
	PaymentMethod string `json:"payment_method"`

	// Timestamp is the settlement time in RFC 3339.
	Timestamp string `json:"timestamp"`

	// ProcessingMS is the request processing duration in milliseconds.
	ProcessingMS int64 `json:"processing_ms"`
}

// Validate checks a decoded payment proof against the challenged requirement.
// Any failure here means the caller tried and is wrong: the request boundary
// must answer HTTP 400, never 402.
func (p *PaymentPayload) Validate(req PaymentRequirements) error {
	if p.X402Version != X402Version {
		return fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, p.X402Version, X402Version)
	}
	if p.Scheme != SchemeExact {
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, p.Scheme)
	}
	if p.Network != req.Network {
		return fmt.Errorf("%w: payment targets network %q, requirement is %q", ErrPaymentMismatch, p.Network, req.Network)
	}

	auth := p.Payload.Authorization
	if p.Payload.Signature == "" {
		return fmt.Errorf("%w: missing signature", ErrMalformedHeader)
	}
	if auth.From == "" || auth.To == "" || auth.Value == "" || auth.ValidAfter == "" || auth.ValidBefore == "" || auth.Nonce == "" {
		return fmt.Errorf("%w: incomplete authorization", ErrMalformedHeader)
	}

	if !strings.EqualFold(auth.To, req.PayTo) {
		return fmt.Errorf("%w: authorization pays %s, requirement pays %s", ErrPaymentMismatch, auth.To, req.PayTo)
	}
	value, ok := new(big.Int).SetString(auth.Value, 10)
	if !ok {
		return fmt.Errorf("%w: value %q is not a decimal integer", ErrMalformedHeader, auth.Value)
	}
	required, ok := new(big.Int).SetString(req.MaxAmountRequired, 10)
	if !ok {
		return fmt.Errorf("%w: requirement amount %q is not a decimal integer", ErrInvalidAmount, req.MaxAmountRequired)
	}
	if value.Cmp(required) != 0 {
		return fmt.Errorf("%w: authorization value %s, requirement %s", ErrPaymentMismatch, auth.Value, req.MaxAmountRequired)
	}

	validAfter, ok := new(big.Int).SetString(auth.ValidAfter, 10)
	if !ok {
		return fmt.Errorf("%w: validAfter %q is not a decimal integer", ErrMalformedHeader, auth.ValidAfter)
	}
	validBefore, ok := new(big.Int).SetString(auth.ValidBefore, 10)
	if !ok {
		return fmt.Errorf("%w: validBefore %q is not a decimal integer", ErrMalformedHeader, auth.ValidBefore)
	}
	if validAfter.Cmp(validBefore) >= 0 {
		return fmt.Errorf("%w: validAfter %s is not before validBefore %s", ErrMalformedHeader, auth.ValidAfter, auth.ValidBefore)
	}

	return nil
}

// USDToMinorUnits converts a decimal USD amount string to an integer string
// in atomic token units. Conversion is exact: an amount with more fractional
// digits than the token carries is an error, never rounded. For example,
// "0.01" with 6 decimals becomes "10000".
func USDToMinorUnits(amount string, decimals int) (string, error) {
	if decimals < 0 {
		return "", fmt.Errorf("%w: negative decimals", ErrInvalidAmount)
	}

	value := new(big.Rat)
	if _, ok := value.SetString(amount); !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if value.Sign() < 0 {
		return "", fmt.Errorf("%w: %q is negative", ErrInvalidAmount, amount)
	}

	scale := new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	value.Mul(value, scale)

	if value.Denom().Cmp(big.NewInt(1)) != 0 {
		return "", fmt.Errorf("%w: %q has more than %d fractional digits", ErrInvalidAmount, amount, decimals)
	}
	return value.Num().String(), nil
}

// MinorUnitsToUSD converts an integer atomic-unit string back to a decimal
// USD string, with trailing fractional zeros trimmed. For example, "10000"
// with 6 decimals becomes "0.01".
func MinorUnitsToUSD(units string, decimals int) (string, error) {
	value, ok := new(big.Int).SetString(units, 10)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, units)
	}

	rat := new(big.Rat).SetInt(value)
	scale := new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	rat.Quo(rat, scale)

	out := rat.FloatString(decimals)
	if strings.Contains(out, ".") {
		out = strings.TrimRight(out, "0")
		out = strings.TrimSuffix(out, ".")
	}
	return out, nil
}
