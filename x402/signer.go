package x402

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/PerkOS-xyz/Vendor-Places-Api/x402/internal/eip3009"
)

// Defaults for the EIP-712 domain when a challenge carries no hints.
const (
	defaultEIP712Name    = "USD Coin"
	defaultEIP712Version = "2"
)

// Signer is the consumer side of the protocol: given a payment requirement
// from a 402 challenge, it produces the signed authorization that satisfies
// it. It lives here so the exact structured-data shape the server expects is
// pinned next to the code that validates it.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a signer from a hex-encoded ECDSA private key, with or
// without a 0x prefix.
func NewSigner(privateKeyHex string) (*Signer, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, ErrInvalidKey
	}

	return &Signer{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// Address returns the payer address derived from the private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// Sign builds and signs an authorization satisfying the given requirement,
// wrapped in the payload envelope ready for EncodePayment. Each call draws a
// fresh nonce: the resulting authorization is single-use.
func (s *Signer) Sign(req PaymentRequirements) (*PaymentPayload, error) {
	if req.Scheme != SchemeExact {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, req.Scheme)
	}

	chainID, err := ChainID(req.Network)
	if err != nil {
		return nil, err
	}

	value, ok := new(big.Int).SetString(req.MaxAmountRequired, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, req.MaxAmountRequired)
	}

	timeout := req.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = DefaultMaxTimeoutSeconds
	}

	auth, err := eip3009.NewAuthorization(s.address, common.HexToAddress(req.PayTo), value, timeout)
	if err != nil {
		return nil, err
	}

	name, version := domainHints(req)
	signature, err := eip3009.Sign(s.privateKey, common.HexToAddress(req.Asset), big.NewInt(chainID), auth, name, version)
	if err != nil {
		return nil, err
	}

	return &PaymentPayload{
		X402Version: X402Version,
		Scheme:      SchemeExact,
		Network:     req.Network,
		Payload: ExactEVMPayload{
			Signature: signature,
			Authorization: ExactEVMAuthorization{
				From:        auth.From.Hex(),
				To:          auth.To.Hex(),
				Value:       auth.Value.String(),
				ValidAfter:  auth.ValidAfter.String(),
				ValidBefore: auth.ValidBefore.String(),
				Nonce:       common.BytesToHash(auth.Nonce[:]).Hex(),
			},
		},
	}, nil
}

// domainHints reads the EIP-712 name/version from the requirement's extra
// hints, falling back to the fixed defaults when absent.
func domainHints(req PaymentRequirements) (name, version string) {
	name = defaultEIP712Name
	version = defaultEIP712Version
	if req.Extra == nil {
		return name, version
	}
	if v, ok := req.Extra["name"].(string); ok && v != "" {
		name = v
	}
	if v, ok := req.Extra["version"].(string); ok && v != "" {
		version = v
	}
	return name, version
}
