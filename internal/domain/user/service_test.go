package user_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/STS-Engineer/llc-backend/internal/domain/user"
	"github.com/STS-Engineer/llc-backend/internal/repository"
	"github.com/STS-Engineer/llc-backend/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func validatePlant(plant string) (string, error) {
	if plant == "CHENNAI" {
		return "pm.chennai@avocarbon.com", nil
	}
	return "", fmt.Errorf("unknown plant %q", plant)
}

func newService(users user.Repository) *user.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return user.NewService(users, "test-secret", time.Hour, validatePlant,
		[]string{"quality.admin@avocarbon.com"}, logger)
}

func signUpRequest() user.SignUpRequest {
	return user.SignUpRequest{
		Email:    "Priya@Avocarbon.com",
		Name:     "Priya N",
		Plant:    "CHENNAI",
		Password: "correct horse battery",
	}
}

func TestUserService_SignUp(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.UserRepository{}

	var created *user.User
	repo.On("Create", ctx, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*user.User)
	}).Return(nil)

	u, err := newService(repo).SignUp(ctx, signUpRequest())
	require.NoError(t, err)
	require.Equal(t, "priya@avocarbon.com", u.Email, "email is lowercased")
	require.Equal(t, user.RoleEditor, u.Role)
	require.NotEmpty(t, u.ID)

	require.NotNil(t, created)
	require.NotEqual(t, "correct horse battery", created.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword(
		[]byte(created.PasswordHash), []byte("correct horse battery")))
}

func TestUserService_SignUpGrantsAdminToConfiguredAddress(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.UserRepository{}
	repo.On("Create", ctx, mock.Anything).Return(nil)

	req := signUpRequest()
	req.Email = "Quality.Admin@Avocarbon.com"
	u, err := newService(repo).SignUp(ctx, req)
	require.NoError(t, err)
	require.Equal(t, user.RoleAdmin, u.Role)
}

func TestUserService_SignUpValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService(&mocks.UserRepository{})

	short := signUpRequest()
	short.Password = "tiny"
	_, err := svc.SignUp(ctx, short)
	require.ErrorIs(t, err, user.ErrInvalidInput)

	noAt := signUpRequest()
	noAt.Email = "not-an-email"
	_, err = svc.SignUp(ctx, noAt)
	require.ErrorIs(t, err, user.ErrInvalidInput)

	badPlant := signUpRequest()
	badPlant.Plant = "ATLANTIS"
	_, err = svc.SignUp(ctx, badPlant)
	require.ErrorIs(t, err, user.ErrInvalidInput)
}

func TestUserService_SignUpEmailTaken(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.UserRepository{}
	repo.On("Create", ctx, mock.Anything).Return(repository.ErrDuplicate)

	_, err := newService(repo).SignUp(ctx, signUpRequest())
	require.ErrorIs(t, err, user.ErrEmailTaken)
}

func TestUserService_SignInAndVerify(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse battery"), bcrypt.MinCost)
	require.NoError(t, err)

	stored := &user.User{
		ID:           "u-1",
		Email:        "priya@avocarbon.com",
		Plant:        "CHENNAI",
		Role:         user.RoleEditor,
		PasswordHash: string(hash),
	}
	repo := &mocks.UserRepository{}
	repo.On("GetByEmail", ctx, "priya@avocarbon.com").Return(stored, nil)

	svc := newService(repo)
	tok, u, err := svc.SignIn(ctx, " Priya@Avocarbon.com ", "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, "u-1", u.ID)
	require.NotEmpty(t, tok)

	p, err := svc.VerifySession(tok)
	require.NoError(t, err)
	require.Equal(t, "u-1", p.UserID)
	require.Equal(t, "priya@avocarbon.com", p.Email)
	require.Equal(t, "CHENNAI", p.Plant)
	require.Equal(t, user.RoleEditor, p.Role)
}

func TestUserService_SignInWrongPassword(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("right"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &mocks.UserRepository{}
	repo.On("GetByEmail", ctx, "priya@avocarbon.com").Return(&user.User{
		Email:        "priya@avocarbon.com",
		PasswordHash: string(hash),
	}, nil)

	_, _, err = newService(repo).SignIn(ctx, "priya@avocarbon.com", "wrong")
	require.ErrorIs(t, err, user.ErrInvalidCredentials)
}

func TestUserService_SignInUnknownEmail(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.UserRepository{}
	repo.On("GetByEmail", ctx, "ghost@avocarbon.com").Return(nil, repository.ErrNotFound)

	// Unknown email and wrong password are the same error.
	_, _, err := newService(repo).SignIn(ctx, "ghost@avocarbon.com", "whatever")
	require.ErrorIs(t, err, user.ErrInvalidCredentials)
}

func TestUserService_VerifySessionRejectsTampering(t *testing.T) {
	svc := newService(&mocks.UserRepository{})

	_, err := svc.VerifySession("not-a-jwt")
	require.ErrorIs(t, err, user.ErrInvalidSession)

	// A token signed with another secret fails verification.
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mocks.UserRepository{}
	repo.On("GetByEmail", mock.Anything, "a@b.com").Return(&user.User{
		Email: "a@b.com", PasswordHash: string(hash),
	}, nil)
	other := user.NewService(repo, "other-secret", time.Hour,
		validatePlant, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	tok, _, err := other.SignIn(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)

	_, err = svc.VerifySession(tok)
	require.ErrorIs(t, err, user.ErrInvalidSession)
}
