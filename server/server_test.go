package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PerkOS-xyz/Vendor-Places-Api/places"
	"github.com/PerkOS-xyz/Vendor-Places-Api/x402"
)

type stubFacilitator struct {
	verifyResp  *x402.VerifyResponse
	settleResp  *x402.SettleResponse
	settleCalls int
}

func (f *stubFacilitator) Verify(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.VerifyResponse, error) {
	return f.verifyResp, nil
}

func (f *stubFacilitator) Settle(ctx context.Context, payload x402.PaymentPayload, requirements x402.PaymentRequirements) (*x402.SettleResponse, error) {
	f.settleCalls++
	return f.settleResp, nil
}

func testRequirement() x402.PaymentRequirements {
	return x402.PaymentRequirements{
		Scheme:            x402.SchemeExact,
		Network:           x402.NetworkBaseSepolia,
		MaxAmountRequired: "10000",
		Resource:          SearchRoute.Path,
		Description:       SearchRoute.Description,
		MimeType:          SearchRoute.MimeType,
		PayTo:             "0x2222222222222222222222222222222222222222",
		MaxTimeoutSeconds: x402.DefaultMaxTimeoutSeconds,
		Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
	}
}

func paymentHeader(t *testing.T, req x402.PaymentRequirements) string {
	t.Helper()
	payload := x402.PaymentPayload{
		X402Version: x402.X402Version,
		Scheme:      x402.SchemeExact,
		Network:     req.Network,
		Payload: x402.ExactEVMPayload{
			Signature: "0xabc123",
			Authorization: x402.ExactEVMAuthorization{
				From:        "0x1111111111111111111111111111111111111111",
				To:          req.PayTo,
				Value:       req.MaxAmountRequired,
				ValidAfter:  "1700000000",
				ValidBefore: "1700003600",
				Nonce:       "0x0000000000000000000000000000000000000000000000000000000000000001",
			},
		},
	}
	header, err := x402.EncodePayment(payload)
	require.NoError(t, err)
	return header
}

func newTestServer(t *testing.T, facilitator x402.Facilitator, upstreamURL string) *Server {
	t.Helper()
	placesClient := places.NewClient("test-key")
	if upstreamURL != "" {
		placesClient.BaseURL = upstreamURL
	}
	return New(Config{
		ServiceName:        "Vendor Places API",
		ServiceDescription: "Pay-per-call place search",
		Requirement:        testRequirement(),
		PriceUSD:           "0.01",
		Facilitator:        facilitator,
		Places:             placesClient,
	})
}

func acceptingFacilitator() *stubFacilitator {
	return &stubFacilitator{
		verifyResp: &x402.VerifyResponse{IsValid: true, Payer: "0x1111111111111111111111111111111111111111"},
		settleResp: &x402.SettleResponse{Success: true, Transaction: "0xdeadbeef", Network: x402.NetworkBaseSepolia},
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, acceptingFacilitator(), "")

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "Vendor Places API", body["service"])
}

func TestDiscovery(t *testing.T) {
	srv := newTestServer(t, acceptingFacilitator(), "")

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/.well-known/x402", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		X402Version int    `json:"x402Version"`
		Name        string `json:"name"`
		Payment     struct {
			Protocol string `json:"protocol"`
			Network  string `json:"network"`
			PayTo    string `json:"payTo"`
			PriceUSD string `json:"priceUsd"`
		} `json:"payment"`
		Endpoints []struct {
			Path        string                 `json:"path"`
			Method      string                 `json:"method"`
			PriceUSD    string                 `json:"priceUsd"`
			InputSchema map[string]interface{} `json:"inputSchema"`
		} `json:"endpoints"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, x402.X402Version, body.X402Version)
	assert.Equal(t, "Vendor Places API", body.Name)
	assert.Equal(t, "x402", body.Payment.Protocol)
	assert.Equal(t, x402.NetworkBaseSepolia, body.Payment.Network)
	assert.Equal(t, "0.01", body.Payment.PriceUSD)

	require.Len(t, body.Endpoints, 1)
	assert.Equal(t, "/api/places/search", body.Endpoints[0].Path)
	assert.Equal(t, "GET", body.Endpoints[0].Method)
	assert.Contains(t, body.Endpoints[0].InputSchema, "properties")
}

func TestSearchWithoutPaymentIsChallenged(t *testing.T) {
	srv := newTestServer(t, acceptingFacilitator(), "")

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/places/search?location=37.7749,-122.4194", nil))

	require.Equal(t, http.StatusPaymentRequired, w.Code)
	var body x402.PaymentRequiredResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Accepts, 1)
	assert.Equal(t, "/api/places/search", body.Accepts[0].Resource)
}

func TestPaidSearch(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"results": [{
				"place_id": "p1",
				"name": "Golden Gate Cafe",
				"vicinity": "123 Market St",
				"rating": 4.5,
				"geometry": {"location": {"lat": 37.775, "lng": -122.419}}
			}]
		}`))
	}))
	defer upstream.Close()

	facilitator := acceptingFacilitator()
	srv := newTestServer(t, facilitator, upstream.URL)

	req := httptest.NewRequest(http.MethodGet, "/api/places/search?location=37.7749,-122.4194&keyword=coffee", nil)
	req.Header.Set(x402.PaymentHeader, paymentHeader(t, testRequirement()))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, facilitator.settleCalls)
	assert.NotEmpty(t, w.Header().Get(x402.PaymentResponseHeader))

	var body struct {
		Results  []places.Place          `json:"results"`
		Count    int                     `json:"count"`
		Metadata x402.SettlementMetadata `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "Golden Gate Cafe", body.Results[0].Name)
	assert.Equal(t, "0.01", body.Metadata.Cost)
	assert.Equal(t, "x402", body.Metadata.Protocol)
}

func TestPaidSearchValidationErrorSkipsSettlement(t *testing.T) {
	facilitator := acceptingFacilitator()
	srv := newTestServer(t, facilitator, "")

	req := httptest.NewRequest(http.MethodGet, "/api/places/search?location=200,-122.4194", nil)
	req.Header.Set(x402.PaymentHeader, paymentHeader(t, testRequirement()))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, facilitator.settleCalls)

	var body struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Equal(t, "location", body.Details["field"])
}

func TestPaidSearchUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close()

	facilitator := acceptingFacilitator()
	srv := newTestServer(t, facilitator, upstream.URL)

	req := httptest.NewRequest(http.MethodGet, "/api/places/search?location=37.7749,-122.4194", nil)
	req.Header.Set(x402.PaymentHeader, paymentHeader(t, testRequirement()))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, 0, facilitator.settleCalls, "a failed search must not be charged")

	var body struct {
		Code    string         `json:"code"`
		Details map[string]int `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", body.Code)
	assert.Equal(t, 30, body.Details["retry_after_seconds"])
}
