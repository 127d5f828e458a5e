package user

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	byID    map[string]*User
	byEmail map[string]*User
}

func newMemRepo() *memRepo {
	return &memRepo{byID: map[string]*User{}, byEmail: map[string]*User{}}
}

func (m *memRepo) Create(ctx context.Context, u *User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return ErrAlreadyExist
	}
	cp := *u
	m.byID[u.ID] = &cp
	m.byEmail[u.Email] = &cp
	return nil
}

func (m *memRepo) GetByID(ctx context.Context, id string) (*User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) Update(ctx context.Context, u *User, updatePassword bool) error {
	cur, ok := m.byID[u.ID]
	if !ok {
		return nil
	}
	if u.Username != "" {
		cur.Username = u.Username
	}
	if u.Email != "" {
		delete(m.byEmail, cur.Email)
		cur.Email = u.Email
		m.byEmail[cur.Email] = cur
	}
	if updatePassword {
		cur.PasswordHash = u.PasswordHash
	}
	return nil
}

func (m *memRepo) Delete(ctx context.Context, id string) (bool, error) {
	u, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	delete(m.byID, id)
	delete(m.byEmail, u.Email)
	return true, nil
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()
	svc := NewService(newMemRepo(), "secreto")
	ctx := context.Background()

	out, err := svc.Register(ctx, RegisterRequest{Username: "ana", Email: "Ana@Example.com", Password: "hunter22"})
	require.NoError(t, err)
	require.NotEmpty(t, out.Token)
	require.Equal(t, "ana@example.com", out.User.Email) // normalized
	require.NotEqual(t, "hunter22", out.User.PasswordHash)

	// token carries the claim the middleware reads
	tok, err := jwt.Parse(out.Token, func(t *jwt.Token) (any, error) { return []byte("secreto"), nil })
	require.NoError(t, err)
	claims := tok.Claims.(jwt.MapClaims)
	require.Equal(t, out.User.ID, claims["user_id"])

	login, err := svc.Login(ctx, LoginRequest{Email: "ana@example.com", Password: "hunter22"})
	require.NoError(t, err)
	require.Equal(t, out.User.ID, login.User.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	t.Parallel()
	svc := NewService(newMemRepo(), "secreto")
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Username: "ana", Email: "ana@example.com", Password: "hunter22"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterRequest{Username: "otra", Email: "ana@example.com", Password: "hunter23"})
	require.ErrorIs(t, err, ErrAlreadyExist)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()
	svc := NewService(newMemRepo(), "secreto")
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterRequest{Username: "ana", Email: "ana@example.com", Password: "hunter22"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Email: "ana@example.com", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// unknown account yields the same error as a wrong password
	_, err = svc.Login(ctx, LoginRequest{Email: "nadie@example.com", Password: "hunter22"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateProfilePartial(t *testing.T) {
	t.Parallel()
	svc := NewService(newMemRepo(), "secreto")
	ctx := context.Background()
	out, err := svc.Register(ctx, RegisterRequest{Username: "ana", Email: "ana@example.com", Password: "hunter22"})
	require.NoError(t, err)

	upd, err := svc.UpdateProfile(ctx, out.User.ID, "anita", "", "")
	require.NoError(t, err)
	require.Equal(t, "anita", upd.Username)
	require.Equal(t, "ana@example.com", upd.Email) // untouched

	// old password still valid, no password update requested
	_, err = svc.Login(ctx, LoginRequest{Email: "ana@example.com", Password: "hunter22"})
	require.NoError(t, err)
}

func TestCheckPassword(t *testing.T) {
	t.Parallel()
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	require.True(t, CheckPassword(hash, "hunter22"))
	require.False(t, CheckPassword(hash, "hunter23"))
}
