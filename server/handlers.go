package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PerkOS-xyz/Vendor-Places-Api/places"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": s.cfg.ServiceName,
	})
}

func (s *Server) handleSearch(c *gin.Context) {
	req, err := places.ParseSearchRequest(
		c.Query("location"),
		c.Query("radius"),
		c.Query("keyword"),
		c.Query("type"),
	)
	if err != nil {
		var fieldErr *places.FieldError
		if errors.As(err, &fieldErr) {
			errorBody(c, http.StatusBadRequest, "VALIDATION_ERROR", fieldErr.Message, gin.H{"field": fieldErr.Field})
			return
		}
		errorBody(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	results, err := s.cfg.Places.Search(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, places.ErrUpstreamUnavailable) {
			s.log.Error("places upstream unavailable", "error", err)
			errorBody(c, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE",
				"place search provider is unavailable", gin.H{"retry_after_seconds": 30})
			return
		}
		s.log.Error("place search failed", "error", err)
		errorBody(c, http.StatusInternalServerError, "INTERNAL_ERROR", "place search failed", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
	})
}

// errorBody writes the service's stable error shape.
func errorBody(c *gin.Context, status int, code, message string, details interface{}) {
	body := gin.H{
		"error":   http.StatusText(status),
		"message": message,
		"code":    code,
	}
	if details != nil {
		body["details"] = details
	}
	c.AbortWithStatusJSON(status, body)
}
