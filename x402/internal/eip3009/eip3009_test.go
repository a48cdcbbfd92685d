package eip3009

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	testToken = common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	testFrom  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testTo    = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func fixedAuthorization() *Authorization {
	return &Authorization{
		From:        testFrom,
		To:          testTo,
		Value:       big.NewInt(10000),
		ValidAfter:  big.NewInt(1700000000),
		ValidBefore: big.NewInt(1700003600),
		Nonce:       [32]byte{0x01},
	}
}

func TestDigestDeterministic(t *testing.T) {
	first, err := Digest(testToken, big.NewInt(84532), fixedAuthorization(), "USDC", "2")
	if err != nil {
		t.Fatalf("Digest error: %v", err)
	}
	second, err := Digest(testToken, big.NewInt(84532), fixedAuthorization(), "USDC", "2")
	if err != nil {
		t.Fatalf("Digest error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("identical inputs produced different digests")
	}
	if len(first) != 32 {
		t.Errorf("digest length = %d; want 32", len(first))
	}
}

func TestDigestSensitivity(t *testing.T) {
	base, err := Digest(testToken, big.NewInt(84532), fixedAuthorization(), "USDC", "2")
	if err != nil {
		t.Fatalf("Digest error: %v", err)
	}

	tests := []struct {
		name    string
		token   common.Address
		chainID *big.Int
		mutate  func(*Authorization)
		domain  [2]string
	}{
		{"different nonce", testToken, big.NewInt(84532), func(a *Authorization) { a.Nonce = [32]byte{0x02} }, [2]string{"USDC", "2"}},
		{"different value", testToken, big.NewInt(84532), func(a *Authorization) { a.Value = big.NewInt(20000) }, [2]string{"USDC", "2"}},
		{"different chain", testToken, big.NewInt(8453), func(a *Authorization) {}, [2]string{"USDC", "2"}},
		{"different token", testTo, big.NewInt(84532), func(a *Authorization) {}, [2]string{"USDC", "2"}},
		{"different domain name", testToken, big.NewInt(84532), func(a *Authorization) {}, [2]string{"USD Coin", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := fixedAuthorization()
			tt.mutate(auth)
			digest, err := Digest(tt.token, tt.chainID, auth, tt.domain[0], tt.domain[1])
			if err != nil {
				t.Fatalf("Digest error: %v", err)
			}
			if bytes.Equal(base, digest) {
				t.Error("digest did not change")
			}
		})
	}
}

func TestNewAuthorizationWindow(t *testing.T) {
	before := time.Now()
	auth, err := NewAuthorization(testFrom, testTo, big.NewInt(10000), 3600)
	if err != nil {
		t.Fatalf("NewAuthorization error: %v", err)
	}
	after := time.Now()

	// validAfter is backdated 60 seconds to tolerate clock skew.
	wantAfterLow := before.Add(-61 * time.Second).Unix()
	wantAfterHigh := after.Add(-59 * time.Second).Unix()
	if got := auth.ValidAfter.Int64(); got < wantAfterLow || got > wantAfterHigh {
		t.Errorf("ValidAfter = %d; want within [%d, %d]", got, wantAfterLow, wantAfterHigh)
	}

	wantBeforeLow := before.Unix() + 3600
	wantBeforeHigh := after.Unix() + 3600
	if got := auth.ValidBefore.Int64(); got < wantBeforeLow || got > wantBeforeHigh {
		t.Errorf("ValidBefore = %d; want within [%d, %d]", got, wantBeforeLow, wantBeforeHigh)
	}

	if auth.ValidAfter.Cmp(auth.ValidBefore) >= 0 {
		t.Error("ValidAfter >= ValidBefore")
	}
}

func TestGenerateNonceUnique(t *testing.T) {
	seen := make(map[[32]byte]bool)
	for i := 0; i < 100; i++ {
		nonce, err := GenerateNonce()
		if err != nil {
			t.Fatalf("GenerateNonce error: %v", err)
		}
		if seen[nonce] {
			t.Fatal("duplicate nonce")
		}
		seen[nonce] = true
	}
}

func TestSignRecoversSigner(t *testing.T) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer := crypto.PubkeyToAddress(privateKey.PublicKey)

	auth := fixedAuthorization()
	auth.From = signer

	signature, err := Sign(privateKey, testToken, big.NewInt(84532), auth, "USDC", "2")
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	if !strings.HasPrefix(signature, "0x") {
		t.Errorf("signature missing 0x prefix: %s", signature)
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if len(raw) != 65 {
		t.Fatalf("signature length = %d; want 65", len(raw))
	}
	if raw[64] != 27 && raw[64] != 28 {
		t.Errorf("recovery byte = %d; want 27 or 28", raw[64])
	}

	digest, err := Digest(testToken, big.NewInt(84532), auth, "USDC", "2")
	if err != nil {
		t.Fatalf("Digest error: %v", err)
	}
	raw[64] -= 27
	pubKey, err := crypto.SigToPub(digest, raw)
	if err != nil {
		t.Fatalf("recover public key: %v", err)
	}
	if recovered := crypto.PubkeyToAddress(*pubKey); recovered != signer {
		t.Errorf("recovered %s; want %s", recovered.Hex(), signer.Hex())
	}
}
