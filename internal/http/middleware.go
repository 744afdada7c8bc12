package transport

import (
	"strings"

	"github.com/GolovachevS/pr-reviewer-rbac/internal/domain"
	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// TokenParser validates bearer tokens.
type TokenParser interface {
	Parse(raw string) (domain.Identity, error)
}

// authenticate rejects requests without a valid bearer token and stores the
// caller identity on the context.
func authenticate(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, raw, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			c.Header("WWW-Authenticate", "Bearer")
			respondError(c, domain.NewUnauthorizedError("token is required", nil))
			c.Abort()
			return
		}

		identity, err := tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			respondError(c, err)
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

func identityFrom(c *gin.Context) domain.Identity {
	if v, ok := c.Get(identityKey); ok {
		if identity, ok := v.(domain.Identity); ok {
			return identity
		}
	}
	return domain.Identity{}
}
