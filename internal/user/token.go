package user

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 24 * time.Hour

// NewToken issues the bearer token the HTTP middleware expects: HS256 with
// a user_id claim.
func NewToken(secret string, u *User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":  u.ID,
		"is_admin": u.IsAdmin,
		"iat":      now.Unix(),
		"exp":      now.Add(tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
