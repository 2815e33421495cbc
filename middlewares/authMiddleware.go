package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kilometri/kilometri_backend/config"
	"github.com/kilometri/kilometri_backend/utils"
)

// AuthMiddleware validates the Bearer JWT and checks that its session key
// still exists in Redis (logout removes it, which revokes the token).
// Requests without an Authorization header pass through unauthenticated;
// protected handlers reject them when the user id is missing from context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")

		if auth == "" {
			c.Next()
			return
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "unauthorized"})
			c.Abort()
			return
		}
		auth = auth[len(bearer):]

		validate, err := utils.JwtValidate(auth)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "unauthorized"})
			c.Abort()
			return
		}

		claims, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok || claims.ID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "unauthorized"})
			c.Abort()
			return
		}

		// Revocation check: logout deletes Token:<jti>.
		username, exists, err := config.GetRedisValue("Token:" + claims.Id)
		if err != nil || !exists || username != claims.Username {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token revoked or expired", "code": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), auth)
		ctx = utils.SetTokenIdInContext(ctx, claims.Id)
		ctx = utils.SetUserIdInContext(ctx, claims.ID)
		ctx = utils.SetUsernameInContext(ctx, claims.Username)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
