package flow

import (
	"time"

	"github.com/dbelyaev/authflow/internal/client/models"
	"github.com/golang-jwt/jwt/v5"
)

// userFromToken recovers the user snapshot embedded in a stored access token
// without verifying the signature (the backend is the authority; the client
// only needs the display data and the expiry). Returns ok=false when the
// token is opaque to us, and expired=true when the token's exp has passed.
func userFromToken(token string, now time.Time) (user models.User, expired bool, ok bool) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return models.User{}, false, false
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		if exp.Before(now) {
			return models.User{}, true, true
		}
	}

	if id, found := claims["user_id"]; found {
		if n, isNum := id.(float64); isNum {
			user.ID = int64(n)
		}
	}
	if v, found := claims["username"].(string); found {
		user.Username = v
	}
	if v, found := claims["email"].(string); found {
		user.Email = v
	}
	if v, found := claims["mfa_enabled"].(bool); found {
		user.IsMfaEnabled = v
	}
	return user, false, true
}
