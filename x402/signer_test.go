package x402

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/PerkOS-xyz/Vendor-Places-Api/x402/internal/eip3009"
)

// Well-known throwaway key, never funded.
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestNewSigner(t *testing.T) {
	plain, err := NewSigner(testPrivateKey)
	if err != nil {
		t.Fatalf("NewSigner error: %v", err)
	}
	prefixed, err := NewSigner("0x" + testPrivateKey)
	if err != nil {
		t.Fatalf("NewSigner with 0x prefix error: %v", err)
	}
	if plain.Address() != prefixed.Address() {
		t.Errorf("address differs with prefix: %s vs %s", plain.Address().Hex(), prefixed.Address().Hex())
	}
	if plain.Address() != common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266") {
		t.Errorf("unexpected derived address %s", plain.Address().Hex())
	}

	if _, err := NewSigner("not-hex"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("bad key error = %v; want ErrInvalidKey", err)
	}
}

func TestSignerSignSatisfiesRequirement(t *testing.T) {
	signer, err := NewSigner(testPrivateKey)
	if err != nil {
		t.Fatalf("NewSigner error: %v", err)
	}

	req := testRequirement()
	req.Extra = map[string]interface{}{"name": "USDC", "version": "2"}

	payload, err := signer.Sign(req)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	if err := payload.Validate(req); err != nil {
		t.Fatalf("signed payload fails its own requirement: %v", err)
	}
	if payload.Payload.Authorization.From != signer.Address().Hex() {
		t.Errorf("From = %s; want %s", payload.Payload.Authorization.From, signer.Address().Hex())
	}

	// The signature must recover to the signer under the same typed data the
	// verifier reconstructs from the payload.
	auth, err := authorizationFromPayload(payload)
	if err != nil {
		t.Fatalf("reconstruct authorization: %v", err)
	}
	chainID, err := ChainID(req.Network)
	if err != nil {
		t.Fatalf("ChainID error: %v", err)
	}
	digest, err := eip3009.Digest(common.HexToAddress(req.Asset), big.NewInt(chainID), auth, "USDC", "2")
	if err != nil {
		t.Fatalf("Digest error: %v", err)
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(payload.Payload.Signature, "0x"))
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if len(raw) != 65 {
		t.Fatalf("signature length = %d; want 65", len(raw))
	}
	raw[64] -= 27
	pubKey, err := crypto.SigToPub(digest, raw)
	if err != nil {
		t.Fatalf("recover public key: %v", err)
	}
	if recovered := crypto.PubkeyToAddress(*pubKey); recovered != signer.Address() {
		t.Errorf("recovered %s; want %s", recovered.Hex(), signer.Address().Hex())
	}
}

func TestSignerFreshNoncePerSign(t *testing.T) {
	signer, err := NewSigner(testPrivateKey)
	if err != nil {
		t.Fatalf("NewSigner error: %v", err)
	}

	req := testRequirement()
	first, err := signer.Sign(req)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	second, err := signer.Sign(req)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	if first.Payload.Authorization.Nonce == second.Payload.Authorization.Nonce {
		t.Error("two signatures share a nonce")
	}
	if first.Payload.Signature == second.Payload.Signature {
		t.Error("two signatures are identical")
	}
}

func TestSignerSignRejects(t *testing.T) {
	signer, err := NewSigner(testPrivateKey)
	if err != nil {
		t.Fatalf("NewSigner error: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*PaymentRequirements)
		wantErr error
	}{
		{
			name:    "unsupported scheme",
			mutate:  func(r *PaymentRequirements) { r.Scheme = "upto" },
			wantErr: ErrUnsupportedScheme,
		},
		{
			name:    "unknown network",
			mutate:  func(r *PaymentRequirements) { r.Network = "polygon" },
			wantErr: ErrInvalidNetwork,
		},
		{
			name:    "non-numeric amount",
			mutate:  func(r *PaymentRequirements) { r.MaxAmountRequired = "0.01" },
			wantErr: ErrInvalidAmount,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequirement()
			tt.mutate(&req)
			if _, err := signer.Sign(req); !errors.Is(err, tt.wantErr) {
				t.Errorf("Sign error = %v; want %v", err, tt.wantErr)
			}
		})
	}
}

// authorizationFromPayload rebuilds the typed-data message a verifier would
// hash from the wire payload.
func authorizationFromPayload(p *PaymentPayload) (*eip3009.Authorization, error) {
	value, ok := new(big.Int).SetString(p.Payload.Authorization.Value, 10)
	if !ok {
		return nil, errors.New("bad value")
	}
	validAfter, ok := new(big.Int).SetString(p.Payload.Authorization.ValidAfter, 10)
	if !ok {
		return nil, errors.New("bad validAfter")
	}
	validBefore, ok := new(big.Int).SetString(p.Payload.Authorization.ValidBefore, 10)
	if !ok {
		return nil, errors.New("bad validBefore")
	}

	var nonce [32]byte
	copy(nonce[:], common.HexToHash(p.Payload.Authorization.Nonce).Bytes())

	return &eip3009.Authorization{
		From:        common.HexToAddress(p.Payload.Authorization.From),
		To:          common.HexToAddress(p.Payload.Authorization.To),
		Value:       value,
		ValidAfter:  validAfter,
		ValidBefore: validBefore,
		Nonce:       nonce,
	}, nil
}
