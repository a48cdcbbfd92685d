package x402

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Header names for payment proof transport.
const (
	PaymentHeader         = "X-Payment"
	PaymentResponseHeader = "X-Payment-Response"
)

// PaymentContextKey is the gin context key under which the facilitator's
// verify response is stored for admitted requests.
const PaymentContextKey = "x402_payment"

// GateConfig holds the configuration for the payment gate middleware.
type GateConfig struct {
	// Requirement is the payment requirement challenged for this route.
	Requirement PaymentRequirements

	// Facilitator verifies and settles payments.
	Facilitator Facilitator

	// Logger receives structured request-level payment logs.
	// Defaults to slog.Default().
	Logger *slog.Logger
}

// PaymentGate returns a gin middleware gating one priced route behind the
// x402 payment challenge. Unpriced routes must simply not mount it.
//
// Per request: no X-Payment header yields a 402 challenge; a malformed or
// mismatched proof yields a 400 (the caller tried and is wrong); a negative
// facilitator verdict or an unreachable facilitator reissues the 402 (the
// caller may fix and retry). Admitted requests run the protected handler,
// then the payment is settled and settlement metadata is appended to the
// success response without touching handler-produced fields.
func PaymentGate(cfg GateConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := cfg.Logger
		if logger == nil {
			logger = slog.Default()
		}

		flow := NewFlow(cfg.Requirement)

		header := c.GetHeader(PaymentHeader)
		if header == "" {
			logger.Info("no payment header, challenging", "path", c.Request.URL.Path)
			body := flow.Challenge("Payment required to access this resource")
			c.AbortWithStatusJSON(http.StatusPaymentRequired, body)
			return
		}

		payload, err := flow.Present(header)
		if err != nil {
			logger.Warn("rejected payment proof", "path", c.Request.URL.Path, "error", err)
			abortWithPaymentError(c, http.StatusBadRequest, err)
			return
		}

		verifyResp, err := cfg.Facilitator.Verify(c.Request.Context(), *payload, cfg.Requirement)
		if err != nil {
			reason := "Payment verification failed"
			if errors.Is(err, ErrFacilitatorUnavailable) {
				reason = "Payment verification temporarily unavailable, please retry"
			}
			logger.Error("facilitator verification failed", "error", err)
			body := flow.RejectWithChallenge(reason)
			c.AbortWithStatusJSON(http.StatusPaymentRequired, body)
			return
		}
		if !verifyResp.IsValid {
			logger.Warn("facilitator rejected payment", "reason", verifyResp.InvalidReason, "payer", verifyResp.Payer)
			body := flow.RejectWithChallenge(verifyResp.InvalidReason)
			c.AbortWithStatusJSON(http.StatusPaymentRequired, body)
			return
		}

		flow.Admit()
		logger.Info("payment verified", "payer", verifyResp.Payer, "state", flow.State().String())
		c.Set(PaymentContextKey, verifyResp)

		// Buffer the handler's response so settlement happens at the moment
		// of commitment: a failed handler is never charged, and a failed
		// settlement can still replace the response. The restore is deferred
		// so a panicking handler unwinds to a writer the recovery middleware
		// can actually write its 500 through.
		orig := c.Writer
		sw := &settlementWriter{ResponseWriter: orig, body: &bytes.Buffer{}}
		c.Writer = sw
		defer func() { c.Writer = orig }()
		c.Next()

		status := sw.Status()
		if status >= http.StatusBadRequest {
			logger.Warn("handler returned non-success, skipping settlement", "status", status)
			sw.flushTo(orig)
			return
		}

		settleResp, err := cfg.Facilitator.Settle(c.Request.Context(), *payload, cfg.Requirement)
		if err != nil {
			reason := "Payment settlement failed"
			if errors.Is(err, ErrFacilitatorUnavailable) {
				reason = "Payment settlement temporarily unavailable, please retry"
			}
			logger.Error("facilitator settlement failed", "error", err)
			body := flow.RejectWithChallenge(reason)
			writeJSON(orig, http.StatusPaymentRequired, body)
			return
		}
		if !settleResp.Success {
			logger.Warn("settlement unsuccessful", "reason", settleResp.ErrorReason)
			body := flow.RejectWithChallenge(settleResp.ErrorReason)
			writeJSON(orig, http.StatusPaymentRequired, body)
			return
		}

		logger.Info("payment settled", "transaction", settleResp.Transaction, "payer", settleResp.Payer)

		if encoded, err := EncodeSettlement(*settleResp); err == nil {
			orig.Header().Set(PaymentResponseHeader, encoded)
		} else {
			logger.Warn("failed to encode settlement header", "error", err)
		}

		out := appendSettlementMetadata(sw.body.Bytes(), orig.Header().Get("Content-Type"), cfg.Requirement, settleResp, flow.Elapsed())
		orig.WriteHeader(status)
		if _, err := orig.Write(out); err != nil {
			logger.Warn("failed to write response", "error", err)
		}
	}
}

// GetPaymentFromContext extracts the facilitator's verify response for an
// admitted request. Returns nil if the request was not payment-gated.
func GetPaymentFromContext(c *gin.Context) *VerifyResponse {
	value, exists := c.Get(PaymentContextKey)
	if !exists {
		return nil
	}
	resp, ok := value.(*VerifyResponse)
	if !ok {
		return nil
	}
	return resp
}

// appendSettlementMetadata merges a "metadata" object into a JSON object
// response body. Handler-produced fields are never altered; non-object and
// non-JSON bodies pass through untouched.
func appendSettlementMetadata(body []byte, contentType string, req PaymentRequirements, settle *SettleResponse, elapsed time.Duration) []byte {
	if !strings.Contains(contentType, "application/json") {
		return body
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return body
	}
	if _, exists := obj["metadata"]; exists {
		return body
	}

	cost, err := MinorUnitsToUSD(req.MaxAmountRequired, USDCDecimals)
	if err != nil {
		return body
	}

	meta := SettlementMetadata{
		Cost:          cost,
		Protocol:      "x402",
		Network:       req.Network,
		PaymentMethod: "USDC",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		ProcessingMS:  elapsed.Milliseconds(),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return body
	}
	obj["metadata"] = metaJSON

	merged, err := json.Marshal(obj)
	if err != nil {
		return body
	}
	return merged
}

func abortWithPaymentError(c *gin.Context, status int, err error) {
	var perr *PaymentError
	if !errors.As(err, &perr) {
		perr = NewPaymentError(ErrCodeInvalidPayment, "invalid payment", err)
	}

	body := gin.H{
		"error":   http.StatusText(status),
		"message": perr.Error(),
		"code":    string(perr.Code),
	}
	if len(perr.Details) > 0 {
		body["details"] = perr.Details
	}
	c.AbortWithStatusJSON(status, body)
}

func writeJSON(w gin.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// settlementWriter buffers the handler's response so the middleware can
// settle before the response is committed to the wire.
type settlementWriter struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (w *settlementWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

// WriteHeaderNow is a no-op: the header is committed only when the buffered
// body is flushed.
func (w *settlementWriter) WriteHeaderNow() {}

func (w *settlementWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *settlementWriter) WriteString(s string) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.WriteString(s)
}

func (w *settlementWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *settlementWriter) Size() int {
	return w.body.Len()
}

func (w *settlementWriter) Written() bool {
	return w.status != 0 || w.body.Len() > 0
}

func (w *settlementWriter) flushTo(orig gin.ResponseWriter) {
	orig.WriteHeader(w.Status())
	if w.body.Len() > 0 {
		_, _ = orig.Write(w.body.Bytes())
	}
}
