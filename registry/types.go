// Package registry keeps this vendor's entry in the PerkOS marketplace in
// agreement with local configuration: an idempotent handshake driven to a
// registered state with bounded retries, fully isolated from the payment
// path.
package registry

// Endpoint describes one paid endpoint advertised to the marketplace.
type Endpoint struct {
	Path         string                 `json:"path"`
	Method       string                 `json:"method"`
	Description  string                 `json:"description"`
	PriceUSD     string                 `json:"priceUsd"`
	InputSchema  map[string]interface{} `json:"inputSchema,omitempty"`
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty"`
}

// Vendor is the registry's view of one registered provider. The canonical
// record is owned by the registry; this service only compares against it.
type Vendor struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// registerRequest is the body POSTed to the registry's vendor endpoint. The
// body is a pure function of configuration so every retry is identical.
type registerRequest struct {
	URL            string     `json:"url"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	WalletAddress  string     `json:"walletAddress"`
	Network        string     `json:"network"`
	PriceUSD       string     `json:"priceUsd"`
	FacilitatorURL string     `json:"facilitatorUrl"`
	Endpoints      []Endpoint `json:"endpoints"`
}

// registerResponse is the registry's answer to a registration attempt.
type registerResponse struct {
	Success bool    `json:"success"`
	Vendor  *Vendor `json:"vendor,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// vendorListResponse is the registry's vendor list. Some registry versions
// wrap the list, others return it bare; both shapes are accepted.
type vendorListResponse struct {
	Vendors []Vendor `json:"vendors"`
}

// RegistrationResult reports the outcome of a registration sequence.
type RegistrationResult struct {
	// Success is true when the vendor is registered, whether this sequence
	// registered it or found it already present.
	Success bool

	// AlreadyRegistered is true when the registry reported the vendor as
	// already present. This is the idempotency contract: registering twice
	// converges to the same terminal state as registering once.
	AlreadyRegistered bool

	// VendorID is the registry's identifier, when known.
	VendorID string

	// Attempts is the number of registration attempts performed.
	Attempts int
}

// State is the reconciler's lifecycle state.
type State int

const (
	// StateUnregistered is the initial state.
	StateUnregistered State = iota

	// StateVerifying means the registry's vendor list is being checked.
	StateVerifying

	// StateRegistering means registration attempts are in flight.
	StateRegistering

	// StateRegistered is the terminal success state.
	StateRegistered

	// StateFailed means all attempts were exhausted. Failure is reported,
	// never raised: registration and payment handling are independent
	// failure domains.
	StateFailed
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateVerifying:
		return "verifying"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
