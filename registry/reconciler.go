package registry

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Defaults for the bounded retry loop. Fixed delay, no backoff growth: the
// exact attempt count and spacing are part of the observable contract.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 5 * time.Second
)

// Config holds the reconciler's desired vendor record and retry parameters,
// all derived from local configuration.
type Config struct {
	// Disabled skips the whole reconciliation sequence.
	Disabled bool

	// ServiceURL is this service's externally reachable URL. It is the
	// matching key against the registry's vendor list.
	ServiceURL string

	// ServiceName and ServiceDescription label the vendor record.
	ServiceName        string
	ServiceDescription string

	// WalletAddress receives payments for this vendor.
	WalletAddress string

	// Network is the configured payment network identifier.
	Network string

	// PriceUSD is the configured price as a decimal USD string.
	PriceUSD string

	// FacilitatorURL is the resolved facilitator endpoint.
	FacilitatorURL string

	// Endpoints enumerates the paid endpoints advertised to the marketplace.
	Endpoints []Endpoint

	// MaxAttempts bounds the registration attempts (default 3).
	MaxAttempts int

	// RetryDelay separates attempts (default 5s). The wait is passive and
	// cancellable only by process shutdown.
	RetryDelay time.Duration
}

// Reconciler drives this vendor toward a registered state. One reconciler
// runs per process; the registered flag, once set, is sticky and
// short-circuits any later re-invocation.
type Reconciler struct {
	client *Client
	cfg    Config
	log    *slog.Logger

	state      State
	registered bool
	vendorID   string
}

// NewReconciler creates a reconciler. A nil logger falls back to
// slog.Default().
func NewReconciler(client *Client, cfg Config, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Reconciler{
		client: client,
		cfg:    cfg,
		log:    log,
		state:  StateUnregistered,
	}
}

// State returns the reconciler's current lifecycle state.
func (r *Reconciler) State() State {
	return r.state
}

// VendorID returns the registry's vendor identifier once registered.
func (r *Reconciler) VendorID() string {
	return r.vendorID
}

// Run executes the startup sequence: health probe, verify, then bounded
// registration attempts. Every failure is logged and contained; Run never
// returns an error because registration is best-effort and must never affect
// the host service.
func (r *Reconciler) Run(ctx context.Context) {
	if r.cfg.Disabled {
		r.log.Info("registration disabled by configuration, skipping")
		return
	}
	if r.registered {
		r.log.Info("already registered this process, skipping", "vendor_id", r.vendorID)
		return
	}

	if !r.CheckHealth(ctx) {
		r.log.Warn("registry unavailable, skipping registration", "registry", r.client.BaseURL)
		return
	}

	registered, vendorID, err := r.Verify(ctx)
	if err != nil {
		r.log.Warn("could not verify registration, attempting anyway", "error", err)
	}
	if registered {
		r.markRegistered(vendorID)
		r.log.Info("vendor already present in registry", "vendor_id", vendorID)
		return
	}

	result := r.Register(ctx)
	if result.Success {
		r.markRegistered(result.VendorID)
		r.log.Info("vendor registered",
			"vendor_id", result.VendorID,
			"already_registered", result.AlreadyRegistered,
			"attempts", result.Attempts)
		return
	}

	r.state = StateFailed
	r.log.Error("registration failed after all attempts", "attempts", result.Attempts)
}

// CheckHealth probes the registry's liveness endpoint.
func (r *Reconciler) CheckHealth(ctx context.Context) bool {
	return r.client.Health(ctx)
}

// Verify fetches the registry's vendor list and matches this service's URL,
// treating "url" and "url/" as equivalent.
func (r *Reconciler) Verify(ctx context.Context) (bool, string, error) {
	r.state = StateVerifying

	vendors, err := r.client.ListVendors(ctx)
	if err != nil {
		return false, "", err
	}

	want := normalizeURL(r.cfg.ServiceURL)
	for _, v := range vendors {
		if normalizeURL(v.URL) == want {
			return true, v.ID, nil
		}
	}
	return false, "", nil
}

// Register performs up to MaxAttempts registration attempts separated by
// RetryDelay. The request body is identical on every attempt, so a retry
// after a partial failure cannot duplicate a registration; a registry answer
// of "already registered" is success, not an error.
func (r *Reconciler) Register(ctx context.Context) RegistrationResult {
	r.state = StateRegistering
	body := r.desiredRecord()

	var result RegistrationResult
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt

		resp, err := r.client.Register(ctx, body)
		if err != nil {
			r.log.Warn("registration attempt failed",
				"attempt", attempt,
				"max_attempts", r.cfg.MaxAttempts,
				"error", err)
		} else if resp.Success {
			result.Success = true
			if resp.Vendor != nil {
				result.VendorID = resp.Vendor.ID
			}
			return result
		} else if isAlreadyRegistered(resp.Error) {
			result.Success = true
			result.AlreadyRegistered = true
			if resp.Vendor != nil {
				result.VendorID = resp.Vendor.ID
			}
			return result
		} else {
			r.log.Warn("registry rejected registration",
				"attempt", attempt,
				"max_attempts", r.cfg.MaxAttempts,
				"error", resp.Error)
		}

		if attempt < r.cfg.MaxAttempts {
			select {
			case <-time.After(r.cfg.RetryDelay):
			case <-ctx.Done():
				r.log.Info("registration cancelled by shutdown")
				return result
			}
		}
	}
	return result
}

func (r *Reconciler) markRegistered(vendorID string) {
	r.state = StateRegistered
	r.registered = true
	r.vendorID = vendorID
}

func (r *Reconciler) desiredRecord() registerRequest {
	return registerRequest{
		URL:            r.cfg.ServiceURL,
		Name:           r.cfg.ServiceName,
		Description:    r.cfg.ServiceDescription,
		Category:       "places",
		WalletAddress:  r.cfg.WalletAddress,
		Network:        r.cfg.Network,
		PriceUSD:       r.cfg.PriceUSD,
		FacilitatorURL: r.cfg.FacilitatorURL,
		Endpoints:      r.cfg.Endpoints,
	}
}

func isAlreadyRegistered(errMsg string) bool {
	return strings.Contains(strings.ToLower(errMsg), "already registered")
}

func normalizeURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}
