// Package server wires the HTTP surface: the payment-gated search route, the
// discovery document, and health checks.
package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/PerkOS-xyz/Vendor-Places-Api/places"
	"github.com/PerkOS-xyz/Vendor-Places-Api/x402"
)

// SearchRoute is the single priced route this service exposes.
var SearchRoute = x402.RouteConfig{
	Path:        "/api/places/search",
	Method:      "GET",
	Description: "Nearby place search by coordinates, radius, keyword, and type",
	MimeType:    "application/json",
}

// Config holds everything the HTTP surface needs.
type Config struct {
	// ServiceName and ServiceDescription appear in the discovery document.
	ServiceName        string
	ServiceDescription string

	// Requirement is the payment requirement for the search route.
	Requirement x402.PaymentRequirements

	// PriceUSD is the configured decimal price, echoed in discovery.
	PriceUSD string

	// Facilitator verifies and settles payments.
	Facilitator x402.Facilitator

	// Places performs the upstream search.
	Places *places.Client

	// Logger receives request logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the HTTP surface of the service.
type Server struct {
	cfg    Config
	log    *slog.Logger
	engine *gin.Engine
}

// New builds the router. Unpriced routes (health, discovery) are mounted
// outside the payment gate and never touch the challenge machinery.
func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestID(), RequestLogger(log))

	s := &Server{cfg: cfg, log: log, engine: engine}

	engine.GET("/health", s.handleHealth)
	engine.GET("/.well-known/x402", s.handleDiscovery)

	gate := x402.PaymentGate(x402.GateConfig{
		Requirement: cfg.Requirement,
		Facilitator: cfg.Facilitator,
		Logger:      log,
	})
	engine.GET(SearchRoute.Path, gate, s.handleSearch)

	return s
}

// Handler returns the underlying HTTP handler for serving or testing.
func (s *Server) Handler() *gin.Engine {
	return s.engine
}
