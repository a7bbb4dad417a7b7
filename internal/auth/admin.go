package auth

import (
	"errors"
	"fmt"

	"github.com/codekids/quiz-backend/internal/models"
	"github.com/codekids/quiz-backend/pkg/utils"
)

// AdminSubject is the token subject for the shared admin login.
const AdminSubject = "admin"

// ErrInvalidPassword is returned for a wrong admin password.
var ErrInvalidPassword = errors.New("invalid password")

// AdminAuth checks the shared admin password and issues tokens.
type AdminAuth struct {
	hash string
	jwt  *JWTService
}

// NewAdminAuth hashes password once; the plain text is not kept.
func NewAdminAuth(password string, jwt *JWTService) (*AdminAuth, error) {
	if password == "" {
		return nil, errors.New("admin password is empty")
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &AdminAuth{hash: hash, jwt: jwt}, nil
}

// Login returns a signed admin token when password matches.
func (a *AdminAuth) Login(password string) (string, error) {
	if !utils.CheckPassword(password, a.hash) {
		return "", ErrInvalidPassword
	}
	return a.jwt.Generate(AdminSubject, string(models.RoleAdmin))
}
