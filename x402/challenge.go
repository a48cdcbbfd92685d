package x402

import (
	"errors"
	"time"
)

// FlowState is the per-request payment lifecycle state. Every request owns
// its own Flow; nothing is shared across requests.
type FlowState int

const (
	// FlowUnchallenged is the initial state: no proof has been seen yet.
	FlowUnchallenged FlowState = iota

	// FlowChallenged means a 402 challenge was emitted. Terminal for the
	// request; the caller must re-request with a proof.
	FlowChallenged

	// FlowVerifying means a well-formed proof was presented and is being
	// checked with the facilitator.
	FlowVerifying

	// FlowAdmitted is the terminal success state: the proof verified and the
	// request may reach the protected handler.
	FlowAdmitted

	// FlowRejected is the terminal failure state: a proof was presented and
	// found wanting, or the facilitator said no.
	FlowRejected
)

// String returns the state name for logging.
func (s FlowState) String() string {
	switch s {
	case FlowUnchallenged:
		return "unchallenged"
	case FlowChallenged:
		return "challenged"
	case FlowVerifying:
		return "verifying"
	case FlowAdmitted:
		return "admitted"
	case FlowRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Flow drives one request through the payment challenge lifecycle:
//
//	Unchallenged -> Challenged                (no proof: emit 402)
//	Unchallenged -> Verifying -> Admitted     (proof decoded, facilitator yes)
//	Unchallenged -> Rejected                  (proof malformed or mismatched)
//	Verifying    -> Rejected                  (facilitator no, or unreachable)
type Flow struct {
	requirement PaymentRequirements
	state       FlowState
	payload     *PaymentPayload
	started     time.Time
}

// NewFlow starts a payment flow for one request against a single challenged
// requirement.
func NewFlow(requirement PaymentRequirements) *Flow {
	return &Flow{
		requirement: requirement,
		state:       FlowUnchallenged,
		started:     time.Now(),
	}
}

// State returns the current lifecycle state.
func (f *Flow) State() FlowState {
	return f.state
}

// Requirement returns the requirement this flow challenges against.
func (f *Flow) Requirement() PaymentRequirements {
	return f.requirement
}

// Payload returns the decoded payment proof, or nil before Present succeeds.
func (f *Flow) Payload() *PaymentPayload {
	return f.payload
}

// Elapsed returns the time since the flow started.
func (f *Flow) Elapsed() time.Duration {
	return time.Since(f.started)
}

// Challenge records that no proof was presented and builds the 402 body.
// The flow ends in FlowChallenged.
func (f *Flow) Challenge(reason string) PaymentRequiredResponse {
	f.state = FlowChallenged
	return f.challengeBody(reason)
}

// Present decodes and validates a proof header against the challenged
// requirement. On success the flow moves to FlowVerifying; on any decode or
// mismatch failure it ends in FlowRejected and the returned error carries the
// boundary code for an HTTP 400.
func (f *Flow) Present(header string) (*PaymentPayload, error) {
	payload, err := DecodePayment(header)
	if err != nil {
		f.state = FlowRejected
		return nil, NewPaymentError(ErrCodeInvalidPayment, "invalid payment header", err)
	}

	if err := payload.Validate(f.requirement); err != nil {
		f.state = FlowRejected
		perr := NewPaymentError(ErrCodeInvalidPayment, "payment does not satisfy requirement", err)
		if errors.Is(err, ErrPaymentMismatch) {
			perr.WithDetails("expected_value", f.requirement.MaxAmountRequired).
				WithDetails("expected_payTo", f.requirement.PayTo).
				WithDetails("expected_network", f.requirement.Network)
		}
		return nil, perr
	}

	f.payload = &payload
	f.state = FlowVerifying
	return f.payload, nil
}

// Admit records a positive facilitator verdict. Only valid from FlowVerifying.
func (f *Flow) Admit() {
	if f.state == FlowVerifying {
		f.state = FlowAdmitted
	}
}

// RejectWithChallenge records a negative or unreachable facilitator outcome
// and builds the reissued 402 body. The flow ends in FlowRejected: the proof
// was tried, the caller may fix it and retry with a fresh request.
func (f *Flow) RejectWithChallenge(reason string) PaymentRequiredResponse {
	f.state = FlowRejected
	return f.challengeBody(reason)
}

func (f *Flow) challengeBody(reason string) PaymentRequiredResponse {
	return PaymentRequiredResponse{
		X402Version: X402Version,
		Error:       reason,
		Accepts:     []PaymentRequirements{f.requirement},
	}
}
