package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// parseIntQuery reads an integer query param, defaulting when absent.
func parseIntQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// parseBoolQuery reads a boolean query param, defaulting when absent.
func parseBoolQuery(c *gin.Context, name string, def bool) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseBool(raw)
}
