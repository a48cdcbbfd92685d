package x402

import "fmt"

// Supported network identifiers. The set is closed: anything else is a
// configuration error at startup, never a per-request failure.
const (
	NetworkBase          = "base"
	NetworkBaseSepolia   = "base-sepolia"
	NetworkAvalanche     = "avalanche"
	NetworkAvalancheFuji = "avalanche-fuji"
)

// USDCDecimals is the number of decimal places for USDC on every supported
// network.
const USDCDecimals = 6

// BaseFacilitatorURL is the trusted facilitator binding for Base mainnet.
// It is compiled in so that running against mainnet never depends on a
// runtime URL trust decision.
const BaseFacilitatorURL = "https://x402.org/facilitator"

// NetworkProfile holds the chain parameters for one supported network.
// Profiles are resolved once at startup and are immutable afterwards.
type NetworkProfile struct {
	// Network is the network identifier (e.g., "base-sepolia").
	Network string

	// ChainID is the EIP-155 chain ID.
	ChainID int64

	// USDCAddress is the official Circle USDC contract address.
	USDCAddress string

	// Decimals is the number of decimal places for USDC (always 6).
	Decimals int

	// EIP712Name is the EIP-712 domain parameter "name" for the USDC contract.
	EIP712Name string

	// EIP712Version is the EIP-712 domain parameter "version".
	EIP712Version string

	// FacilitatorURL is the resolved settlement facilitator endpoint.
	FacilitatorURL string
}

// Chain parameter tables. USDC addresses and EIP-712 domain parameters
// verified 2025-08-12 against the deployed contracts.
var chainParams = map[string]NetworkProfile{
	NetworkBase: {
		Network:       NetworkBase,
		ChainID:       8453,
		USDCAddress:   "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Decimals:      6,
		EIP712Name:    "USD Coin",
		EIP712Version: "2",
	},
	NetworkBaseSepolia: {
		Network:       NetworkBaseSepolia,
		ChainID:       84532,
		USDCAddress:   "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Decimals:      6,
		EIP712Name:    "USDC",
		EIP712Version: "2",
	},
	NetworkAvalanche: {
		Network:       NetworkAvalanche,
		ChainID:       43114,
		USDCAddress:   "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
		Decimals:      6,
		EIP712Name:    "USD Coin",
		EIP712Version: "2",
	},
	NetworkAvalancheFuji: {
		Network:       NetworkAvalancheFuji,
		ChainID:       43113,
		USDCAddress:   "0x5425890298aed601595a70AB815c96711a31Bc65",
		Decimals:      6,
		EIP712Name:    "USD Coin",
		EIP712Version: "2",
	},
}

// SupportedNetworks returns the closed set of supported network identifiers.
func SupportedNetworks() []string {
	return []string{NetworkBase, NetworkBaseSepolia, NetworkAvalanche, NetworkAvalancheFuji}
}

// ResolveNetwork maps a configured network identifier to its NetworkProfile,
// binding the settlement facilitator in the process. Base mainnet always uses
// the built-in trusted facilitator; every other network takes the facilitator
// endpoint from configuration and fails resolution when it is missing.
func ResolveNetwork(network, facilitatorURL string) (NetworkProfile, error) {
	profile, ok := chainParams[network]
	if !ok {
		return NetworkProfile{}, fmt.Errorf("%w: %q (supported: %v)", ErrInvalidNetwork, network, SupportedNetworks())
	}

	if network == NetworkBase {
		profile.FacilitatorURL = BaseFacilitatorURL
		return profile, nil
	}

	if facilitatorURL == "" {
		return NetworkProfile{}, fmt.Errorf("%w: facilitator URL is required for network %q", ErrMissingFacilitator, network)
	}
	profile.FacilitatorURL = facilitatorURL
	return profile, nil
}

// ChainID returns the EIP-155 chain ID for a supported network identifier.
func ChainID(network string) (int64, error) {
	profile, ok := chainParams[network]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNetwork, network)
	}
	return profile.ChainID, nil
}
