package user

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	repo      Repository
	jwtSecret string
}

func NewService(repo Repository, jwtSecret string) *Service {
	return &Service{repo: repo, jwtSecret: jwtSecret}
}

// Register creates the account and logs it in immediately.
func (s *Service) Register(ctx context.Context, in RegisterRequest) (*AuthResponse, error) {
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:           uuid.NewString(),
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	token, err := NewToken(s.jwtSecret, u)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, User: u}, nil
}

// Login verifies the credential pair. A missing account and a wrong
// password return the same error.
func (s *Service) Login(ctx context.Context, in LoginRequest) (*AuthResponse, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(u.PasswordHash, in.Password) {
		return nil, ErrInvalidCredentials
	}
	token, err := NewToken(s.jwtSecret, u)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, User: u}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateProfile applies the non-empty fields; empty means unchanged.
func (s *Service) UpdateProfile(ctx context.Context, id, username, email, password string) (*User, error) {
	u := &User{ID: id, Username: strings.TrimSpace(username), Email: strings.ToLower(strings.TrimSpace(email))}
	updatePassword := password != ""
	if updatePassword {
		hash, err := HashPassword(password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	if err := s.repo.Update(ctx, u, updatePassword); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
