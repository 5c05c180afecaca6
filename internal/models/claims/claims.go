package claims

import "github.com/golang-jwt/jwt/v4"

// Auth describes the JWT payload of an authenticated user.
type Auth struct {
	jwt.RegisteredClaims
	UserID int `json:"uid"`
}
