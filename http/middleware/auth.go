package middlewares

import (
	"github.com/gin-gonic/gin"

	"github.com/tnqbao/gau-ingest-pipeline/config"
	"github.com/tnqbao/gau-ingest-pipeline/utils"
)

// AuthMiddleware accepts "Authorization: Bearer <key>" for any key in
// API_KEYS. In development with no keys configured every request passes.
func AuthMiddleware(cfg *config.EnvConfig) gin.HandlerFunc {
	keys := cfg.API.Keys
	open := cfg.IsDevelopment() && len(keys) == 0

	return func(c *gin.Context) {
		if open {
			c.Next()
			return
		}

		token, ok := utils.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			utils.JSON401(c, "API key required")
			c.Abort()
			return
		}

		if !utils.MatchesAnyKey(token, keys) {
			utils.JSON401(c, "Invalid API key")
			c.Abort()
			return
		}

		c.Next()
	}
}
