package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-student-records/internal/models"
	appErrors "github.com/noah-isme/sma-student-records/pkg/errors"
	"github.com/noah-isme/sma-student-records/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing JWT claims.
	ContextUserKey = "currentUser"
	// ContextUserIDKey holds the caller id for request logging.
	ContextUserIDKey = "user_id"
)

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// revocationChecker refuses tokens issued before the user last signed out.
type revocationChecker interface {
	Revoked(userID string, issuedAt time.Time) bool
}

// JWT protects routes by requiring a valid bearer access token. revoked may be nil.
func JWT(validator tokenValidator, revoked revocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := authenticate(c, validator, revoked)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalJWT stores the claims of a valid bearer token and lets every other request through
// anonymously.
func OptionalJWT(validator tokenValidator, revoked revocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := authenticate(c, validator, revoked); err == nil {
			setClaims(c, claims)
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, validator tokenValidator, revoked revocationChecker) (*models.JWTClaims, error) {
	token, err := bearerToken(c.GetHeader("Authorization"))
	if err != nil {
		return nil, err
	}

	claims, err := validator.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	if revoked != nil {
		var issuedAt time.Time
		if claims.IssuedAt != nil {
			issuedAt = claims.IssuedAt.Time
		}
		if revoked.Revoked(claims.UserID, issuedAt) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session signed out")
		}
	}
	return claims, nil
}

func setClaims(c *gin.Context, claims *models.JWTClaims) {
	c.Set(ContextUserKey, claims)
	c.Set(ContextUserIDKey, claims.UserID)
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", appErrors.ErrUnauthorized
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return token, nil
}
