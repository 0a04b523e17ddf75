package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/talkroom/internal/apperr"
	"github.com/Tyrowin/talkroom/internal/config"
	"github.com/Tyrowin/talkroom/internal/logging"
	"github.com/Tyrowin/talkroom/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// countingRepo wraps a MemoryRepository and can be told to fail.
type countingRepo struct {
	*users.MemoryRepository
	creates   int
	createErr error
	lookupErr error
	existsErr error
}

func (r *countingRepo) Create(ctx context.Context, u *users.User) (*users.User, error) {
	r.creates++
	if r.createErr != nil {
		return nil, r.createErr
	}
	return r.MemoryRepository.Create(ctx, u)
}

func (r *countingRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	return r.MemoryRepository.GetByEmail(ctx, email)
}

func (r *countingRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}
	return r.MemoryRepository.EmailExists(ctx, email)
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		Secret:     "test-secret",
		TokenTTL:   time.Hour,
		CookieDays: 2,
		BcryptCost: bcrypt.MinCost,
	}
}

func newTestService(t *testing.T) (*Service, *countingRepo) {
	t.Helper()
	repo := &countingRepo{MemoryRepository: users.NewMemoryRepository()}
	return NewService(repo, testAuthConfig(), logging.Discard()), repo
}

func validInput() RegisterInput {
	return RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "pw", PasswordConfirm: "pw"}
}

func TestRegister_Success(t *testing.T) {
	svc, repo := newTestService(t)

	u, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, 1, repo.Len())

	stored, err := repo.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "pw", stored.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("pw")))
}

func TestRegister_MissingFields(t *testing.T) {
	svc, repo := newTestService(t)

	inputs := []RegisterInput{
		{Email: "a@example.com", Password: "pw", PasswordConfirm: "pw"},
		{Name: "A", Password: "pw", PasswordConfirm: "pw"},
		{Name: "A", Email: "a@example.com", PasswordConfirm: "pw"},
		{Name: "A", Email: "a@example.com", Password: "pw"},
		{Name: "   ", Email: "a@example.com", Password: "pw", PasswordConfirm: "pw"},
	}
	for _, in := range inputs {
		_, err := svc.Register(context.Background(), in)
		require.True(t, apperr.Is(err, apperr.CodeValidation), "%+v: %v", in, err)
		assert.Equal(t, MsgFillAllFields, apperr.MessageOf(err))
	}
	assert.Zero(t, repo.creates)
}

func TestRegister_PasswordMismatchPerformsNoInsert(t *testing.T) {
	svc, repo := newTestService(t)

	in := validInput()
	in.PasswordConfirm = "other"

	_, err := svc.Register(context.Background(), in)
	require.True(t, apperr.Is(err, apperr.CodeValidation))
	assert.Equal(t, MsgPasswordsMismatch, apperr.MessageOf(err))
	assert.Zero(t, repo.creates)
	assert.Zero(t, repo.Len())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	in := validInput()
	in.Name = "Alice Again"
	in.Email = "ALICE@example.com"
	_, err = svc.Register(context.Background(), in)
	require.True(t, apperr.Is(err, apperr.CodeConflict), "%v", err)
	assert.Equal(t, MsgEmailInUse, apperr.MessageOf(err))
	assert.Equal(t, 1, repo.Len())
}

func TestRegister_RaceLostAtInsertIsConflict(t *testing.T) {
	svc, repo := newTestService(t)
	repo.createErr = users.ErrEmailTaken

	_, err := svc.Register(context.Background(), validInput())
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
}

func TestRegister_StoreErrors(t *testing.T) {
	svc, repo := newTestService(t)

	repo.existsErr = errors.New("db down")
	_, err := svc.Register(context.Background(), validInput())
	require.True(t, apperr.Is(err, apperr.CodeStore))
	assert.Equal(t, MsgDatabaseError, apperr.MessageOf(err))

	repo.existsErr = nil
	repo.createErr = errors.New("insert failed")
	_, err = svc.Register(context.Background(), validInput())
	require.True(t, apperr.Is(err, apperr.CodeStore))
	assert.Equal(t, MsgRegistrationFailed, apperr.MessageOf(err))
}

func TestRegister_PasswordTooLong(t *testing.T) {
	svc, repo := newTestService(t)

	in := validInput()
	in.Password = strings.Repeat("x", 73)
	in.PasswordConfirm = in.Password

	_, err := svc.Register(context.Background(), in)
	require.True(t, apperr.Is(err, apperr.CodeValidation))
	assert.Equal(t, MsgPasswordTooLong, apperr.MessageOf(err))
	assert.Zero(t, repo.creates)
}

func TestLogin_Success(t *testing.T) {
	svc, _ := newTestService(t)

	registered, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	sess, err := svc.Login(context.Background(), " Alice@Example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, sess.User.ID)
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), sess.CookieExpires, time.Minute)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.TokenExpires, time.Minute)

	id, err := ParseToken(sess.Token, []byte("test-secret"))
	require.NoError(t, err)
	assert.Equal(t, registered.ID, id)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)

	sess, err := svc.Login(context.Background(), "alice@example.com", "nope")
	assert.Nil(t, sess)
	require.True(t, apperr.Is(err, apperr.CodeAuth))
	assert.Equal(t, MsgBadCredentials, apperr.MessageOf(err))
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Login(context.Background(), "ghost@example.com", "pw")
	require.True(t, apperr.Is(err, apperr.CodeAuth))
	assert.Equal(t, MsgBadCredentials, apperr.MessageOf(err))
}

func TestLogin_MissingFields(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Login(context.Background(), "", "pw")
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = svc.Login(context.Background(), "a@example.com", "")
	assert.Equal(t, MsgProvideCredentials, apperr.MessageOf(err))
}

func TestLogin_StoreErrorIsReported(t *testing.T) {
	svc, repo := newTestService(t)
	repo.lookupErr = errors.New("db down")

	_, err := svc.Login(context.Background(), "alice@example.com", "pw")
	require.True(t, apperr.Is(err, apperr.CodeStore))
	assert.Equal(t, MsgDatabaseError, apperr.MessageOf(err))
}
