package x402

import "fmt"

// RouteConfig describes one priced route. Prices live at the configuration
// boundary as decimal USD strings; conversion to atomic units happens here,
// at the protocol boundary, exactly once.
type RouteConfig struct {
	// Path is the route path of the protected resource.
	Path string

	// Method is the HTTP method the route answers.
	Method string

	// Description explains what the payment buys.
	Description string

	// MimeType is the content type of the resource.
	MimeType string

	// PriceUSD is the price as a decimal USD string (e.g., "0.01").
	PriceUSD string
}

// BuildRequirements produces the canonical payment requirement for a priced
// route on the given network. It is a pure function of its inputs; a fresh
// value is built for every challenge and discarded with the response.
func BuildRequirements(route RouteConfig, profile NetworkProfile, payTo string) (PaymentRequirements, error) {
	amount, err := USDToMinorUnits(route.PriceUSD, profile.Decimals)
	if err != nil {
		return PaymentRequirements{}, fmt.Errorf("price %q for route %s: %w", route.PriceUSD, route.Path, err)
	}

	mimeType := route.MimeType
	if mimeType == "" {
		mimeType = "application/json"
	}

	return PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           profile.Network,
		MaxAmountRequired: amount,
		Resource:          route.Path,
		Description:       route.Description,
		MimeType:          mimeType,
		PayTo:             payTo,
		MaxTimeoutSeconds: DefaultMaxTimeoutSeconds,
		Asset:             profile.USDCAddress,
		Extra: map[string]interface{}{
			"name":    profile.EIP712Name,
			"version": profile.EIP712Version,
		},
	}, nil
}
