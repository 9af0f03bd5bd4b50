package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens. For students
// UserID doubles as the student id.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// IsSelf reports whether the token belongs to the given student.
func (c *JWTClaims) IsSelf(studentID string) bool {
	return c != nil && c.Role == RoleStudent && studentID != "" && c.UserID == studentID
}

// CanAccessStudent reports whether the holder may read the student's documents.
func (c *JWTClaims) CanAccessStudent(studentID string) bool {
	if c == nil {
		return false
	}
	return c.Role.IsStaff() || c.IsSelf(studentID)
}
