package x402

import (
	"errors"
	"testing"
)

func TestBuildRequirements(t *testing.T) {
	profile, err := ResolveNetwork(NetworkBaseSepolia, "https://facilitator.example.com")
	if err != nil {
		t.Fatalf("ResolveNetwork error: %v", err)
	}

	route := RouteConfig{
		Path:        "/api/places/search",
		Method:      "GET",
		Description: "Nearby place search",
		PriceUSD:    "0.01",
	}
	payTo := "0x2222222222222222222222222222222222222222"

	req, err := BuildRequirements(route, profile, payTo)
	if err != nil {
		t.Fatalf("BuildRequirements error: %v", err)
	}

	if req.Scheme != SchemeExact {
		t.Errorf("Scheme = %s; want %s", req.Scheme, SchemeExact)
	}
	if req.Network != NetworkBaseSepolia {
		t.Errorf("Network = %s; want %s", req.Network, NetworkBaseSepolia)
	}
	if req.MaxAmountRequired != "10000" {
		t.Errorf("MaxAmountRequired = %s; want 10000", req.MaxAmountRequired)
	}
	if req.Resource != route.Path {
		t.Errorf("Resource = %s; want %s", req.Resource, route.Path)
	}
	if req.PayTo != payTo {
		t.Errorf("PayTo = %s; want %s", req.PayTo, payTo)
	}
	if req.Asset != profile.USDCAddress {
		t.Errorf("Asset = %s; want %s", req.Asset, profile.USDCAddress)
	}
	if req.MimeType != "application/json" {
		t.Errorf("MimeType = %s; want application/json", req.MimeType)
	}
	if req.MaxTimeoutSeconds != DefaultMaxTimeoutSeconds {
		t.Errorf("MaxTimeoutSeconds = %d; want %d", req.MaxTimeoutSeconds, DefaultMaxTimeoutSeconds)
	}
	if name, _ := req.Extra["name"].(string); name != profile.EIP712Name {
		t.Errorf("Extra[name] = %v; want %s", req.Extra["name"], profile.EIP712Name)
	}
	if version, _ := req.Extra["version"].(string); version != profile.EIP712Version {
		t.Errorf("Extra[version] = %v; want %s", req.Extra["version"], profile.EIP712Version)
	}
}

func TestBuildRequirements_SubCentPrices(t *testing.T) {
	profile, err := ResolveNetwork(NetworkBase, "")
	if err != nil {
		t.Fatalf("ResolveNetwork error: %v", err)
	}

	tests := []struct {
		price string
		want  string
	}{
		{price: "0.001", want: "1000"},
		{price: "0.005", want: "5000"},
		{price: "0.000001", want: "1"},
		{price: "2.5", want: "2500000"},
	}

	for _, tt := range tests {
		t.Run("price="+tt.price, func(t *testing.T) {
			req, err := BuildRequirements(RouteConfig{Path: "/p", PriceUSD: tt.price}, profile, "0x2222222222222222222222222222222222222222")
			if err != nil {
				t.Fatalf("BuildRequirements error: %v", err)
			}
			if req.MaxAmountRequired != tt.want {
				t.Errorf("MaxAmountRequired = %s; want %s", req.MaxAmountRequired, tt.want)
			}
		})
	}
}

func TestBuildRequirements_InvalidPrice(t *testing.T) {
	profile, err := ResolveNetwork(NetworkBase, "")
	if err != nil {
		t.Fatalf("ResolveNetwork error: %v", err)
	}

	for _, price := range []string{"", "free", "-1", "0.0000001"} {
		t.Run("price="+price, func(t *testing.T) {
			_, err := BuildRequirements(RouteConfig{Path: "/p", PriceUSD: price}, profile, "0x2222222222222222222222222222222222222222")
			if !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("error = %v; want ErrInvalidAmount", err)
			}
		})
	}
}
