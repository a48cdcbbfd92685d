package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PerkOS-xyz/Vendor-Places-Api/x402"
)

// SearchInputSchema describes the search route's query parameters for
// automated callers. Shared with the marketplace registration record.
var SearchInputSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"location": map[string]interface{}{
			"type":        "string",
			"description": "Coordinates as \"lat,lng\" (e.g., \"37.7749,-122.4194\")",
		},
		"radius": map[string]interface{}{
			"type":        "integer",
			"description": "Search radius in meters, 1 to 50000 (default 1000)",
		},
		"keyword": map[string]interface{}{
			"type":        "string",
			"description": "Free-text filter",
		},
		"type": map[string]interface{}{
			"type":        "string",
			"description": "Place type filter (e.g., \"restaurant\")",
		},
	},
	"required": []string{"location"},
}

// SearchOutputSchema describes the search route's response body.
var SearchOutputSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"results": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"placeId": map[string]interface{}{"type": "string"},
					"name":    map[string]interface{}{"type": "string"},
					"address": map[string]interface{}{"type": "string"},
					"rating":  map[string]interface{}{"type": "number"},
					"lat":     map[string]interface{}{"type": "number"},
					"lng":     map[string]interface{}{"type": "number"},
				},
			},
		},
		"count":    map[string]interface{}{"type": "integer"},
		"metadata": map[string]interface{}{"type": "object"},
	},
}

// handleDiscovery serves the machine-readable capability manifest.
func (s *Server) handleDiscovery(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"x402Version": x402.X402Version,
		"name":        s.cfg.ServiceName,
		"description": s.cfg.ServiceDescription,
		"payment": gin.H{
			"protocol": "x402",
			"scheme":   s.cfg.Requirement.Scheme,
			"network":  s.cfg.Requirement.Network,
			"asset":    s.cfg.Requirement.Asset,
			"payTo":    s.cfg.Requirement.PayTo,
			"priceUsd": s.cfg.PriceUSD,
		},
		"endpoints": []gin.H{
			{
				"path":         SearchRoute.Path,
				"method":       SearchRoute.Method,
				"description":  SearchRoute.Description,
				"priceUsd":     s.cfg.PriceUSD,
				"inputSchema":  SearchInputSchema,
				"outputSchema": SearchOutputSchema,
			},
		},
	})
}
