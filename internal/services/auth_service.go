package services

import (
	"golang.org/x/crypto/bcrypt"
)

// AuthService hashes and checks secrets: account passwords and reset codes.
type AuthService interface {
	HashPassword(password string) (string, error)
	CheckPassword(hash, password string) bool
}

type authService struct {
	cost int
}

// NewAuthService uses bcrypt.DefaultCost when cost is out of range.
func NewAuthService(cost int) AuthService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &authService{cost: cost}
}

func (s *authService) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *authService) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
