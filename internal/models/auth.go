package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the available roles for route-level access control.
type UserRole string

const (
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// JWTClaims represents the platform access-token payload. Identity is
// resolved once at the HTTP boundary and passed into services explicitly.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	Username string   `json:"username"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Identity is the resolved caller passed into the meeting coordinator.
type Identity struct {
	UserID   string
	Username string
	Email    string
	Name     string
}

// IdentityFromClaims converts validated claims into a caller identity.
// The original platform derives missing fields from the username.
func IdentityFromClaims(claims *JWTClaims) Identity {
	ident := Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Email:    claims.Email,
		Name:     claims.FullName,
	}
	if ident.Username == "" {
		ident.Username = claims.Subject
	}
	if ident.Email == "" {
		ident.Email = ident.Username + "@learnsphere.local"
	}
	if ident.Name == "" {
		ident.Name = ident.Username
	}
	return ident
}
