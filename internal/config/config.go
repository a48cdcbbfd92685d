// Package config loads and validates the service configuration from the
// environment. Validation happens exactly once, at startup: a bad wallet
// address, unknown network, or malformed price must stop the process before
// it serves traffic.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/PerkOS-xyz/Vendor-Places-Api/x402"
)

var evmAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// Config is the validated service configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port string

	// WalletAddress receives payments for the priced routes.
	WalletAddress string

	// Network is the payment network identifier.
	Network string

	// FacilitatorURL is the configured facilitator endpoint. Required for
	// every network without a built-in binding; ignored otherwise.
	FacilitatorURL string

	// PriceUSD is the search endpoint price as a decimal USD string.
	PriceUSD string

	// PlacesAPIKey authenticates with the upstream places provider.
	PlacesAPIKey string

	// ServiceURL is this service's externally reachable URL.
	ServiceURL string

	// ServiceName and ServiceDescription label this vendor.
	ServiceName        string
	ServiceDescription string

	// RegistryURL is the marketplace registry endpoint.
	RegistryURL string

	// DisableRegistration skips the registration reconciler entirely.
	DisableRegistration bool

	// RegistrationMaxAttempts bounds registration retries.
	RegistrationMaxAttempts int

	// RegistrationRetryDelay separates registration attempts.
	RegistrationRetryDelay time.Duration
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                    getenv("PORT", "8080"),
		WalletAddress:           os.Getenv("WALLET_ADDRESS"),
		Network:                 getenv("NETWORK", x402.NetworkBaseSepolia),
		FacilitatorURL:          os.Getenv("FACILITATOR_URL"),
		PriceUSD:                getenv("PRICE_USD", "0.01"),
		PlacesAPIKey:            os.Getenv("PLACES_API_KEY"),
		ServiceURL:              getenv("SERVICE_URL", "http://localhost:8080"),
		ServiceName:             getenv("SERVICE_NAME", "Vendor Places API"),
		ServiceDescription:      getenv("SERVICE_DESCRIPTION", "Pay-per-call place search"),
		RegistryURL:             getenv("REGISTRY_URL", "https://registry.perkos.xyz"),
		DisableRegistration:     getenvBool("DISABLE_REGISTRATION"),
		RegistrationMaxAttempts: 3,
		RegistrationRetryDelay:  5 * time.Second,
	}

	if v := os.Getenv("REGISTRATION_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("config: REGISTRATION_MAX_ATTEMPTS must be a positive integer, got %q", v)
		}
		cfg.RegistrationMaxAttempts = n
	}
	if v := os.Getenv("REGISTRATION_RETRY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("config: REGISTRATION_RETRY_DELAY must be a positive duration, got %q", v)
		}
		cfg.RegistrationRetryDelay = d
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.WalletAddress == "" {
		return fmt.Errorf("config: WALLET_ADDRESS is required")
	}
	if !evmAddressRegex.MatchString(c.WalletAddress) {
		return fmt.Errorf("config: WALLET_ADDRESS %q is not a valid address", c.WalletAddress)
	}
	if _, err := x402.USDToMinorUnits(c.PriceUSD, x402.USDCDecimals); err != nil {
		return fmt.Errorf("config: PRICE_USD %q: %w", c.PriceUSD, err)
	}
	// Resolving the network here also enforces the facilitator binding: a
	// network without a built-in facilitator must have FACILITATOR_URL set.
	if _, err := x402.ResolveNetwork(c.Network, c.FacilitatorURL); err != nil {
		return fmt.Errorf("config: NETWORK/FACILITATOR_URL: %w", err)
	}
	if c.PlacesAPIKey == "" {
		return fmt.Errorf("config: PLACES_API_KEY is required")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "True", "yes":
		return true
	default:
		return false
	}
}
