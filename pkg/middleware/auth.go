package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "nest/pkg/errors"
)

const bearerScheme = "bearer"

// AdminAuthMiddleware guards the admin API with a single shared bearer token.
func AdminAuthMiddleware(token string) gin.HandlerFunc {
	expected := []byte(token)

	return func(c *gin.Context) {
		provided, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, "Missing authentication token")
			return
		}

		if len(expected) == 0 || subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			abortUnauthorized(c, "Invalid authentication token")
			return
		}

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, credentials, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	credentials = strings.TrimSpace(credentials)
	if credentials == "" {
		return "", false
	}
	return credentials, true
}

func abortUnauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", "Bearer")
	err := apperrors.ErrUnauthorized.WithMessage(message)
	c.AbortWithStatusJSON(err.Status, apperrors.ToErrorResponse(err))
}
