package auth

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/health-insight/pkg/errors"
)

func TestService_RegisterLoginAndRefresh(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	view, err := svc.Register(context.Background(), RegisterRequest{
		Username: "  Jane.Doe ",
		Password: "pass1234",
	})
	require.NoError(t, err)
	require.Equal(t, "jane.doe", view.Username)
	require.Equal(t, "jane.doe", view.DisplayName)
	require.NotZero(t, view.ID)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Username: "JANE.DOE",
		Password: "pass1234",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, view.Username, resp.User.Username)

	claims, err := svc.ValidateToken(context.Background(), resp.Token)
	require.NoError(t, err)
	require.Equal(t, view.ID, claims.UserID)
	require.Equal(t, "jane.doe", claims.Username)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)

	refreshed, err := svc.Refresh(context.Background(), resp.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, resp.Token, refreshed.Token)
	require.Equal(t, resp.User.Username, refreshed.User.Username)

	profile, err := svc.Profile(context.Background(), view.ID)
	require.NoError(t, err)
	require.Equal(t, view, profile)
}

func TestService_DuplicateUsername(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.Register(context.Background(), RegisterRequest{Username: "runner", Password: "pass1234", DisplayName: "Morning Runner"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{Username: "Runner", Password: "pass12345"})
	require.True(t, apperrors.IsCode(err, "username_exists"))
}

func TestService_RegisterValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	cases := []RegisterRequest{
		{Username: "", Password: "pass1234"},
		{Username: "ab", Password: "pass1234"},
		{Username: "has space", Password: "pass1234"},
		{Username: "valid", Password: "short"},
		{Username: "valid", Password: "pass1234", DisplayName: "This display name is far too long to be accepted"},
	}
	for _, req := range cases {
		_, err := svc.Register(context.Background(), req)
		require.True(t, apperrors.IsCode(err, "invalid_input"), "request %+v", req)
	}
}

func TestService_LoginFailures(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.Register(context.Background(), RegisterRequest{Username: "walker", Password: "pass1234"})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginRequest{Username: "walker", Password: "wrong-pass"})
	require.True(t, apperrors.IsCode(err, "invalid_credentials"))

	_, err = svc.Login(context.Background(), LoginRequest{Username: "ghost", Password: "pass1234"})
	require.True(t, apperrors.IsCode(err, "invalid_credentials"))

	_, err = svc.Login(context.Background(), LoginRequest{Username: "walker"})
	require.True(t, apperrors.IsCode(err, "invalid_input"))
}

func TestService_TokenTypeIsEnforced(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.Register(context.Background(), RegisterRequest{Username: "sleeper", Password: "pass1234"})
	require.NoError(t, err)
	resp, err := svc.Login(context.Background(), LoginRequest{Username: "sleeper", Password: "pass1234"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), resp.RefreshToken)
	require.True(t, apperrors.IsCode(err, "invalid_token"))

	_, err = svc.Refresh(context.Background(), resp.Token)
	require.True(t, apperrors.IsCode(err, "invalid_token"))

	_, err = svc.ValidateToken(context.Background(), "not-a-jwt")
	require.True(t, apperrors.IsCode(err, "invalid_token"))

	other := NewService(Config{Secret: "other-secret", TokenTTL: time.Hour, RefreshTokenTTL: time.Hour}, newMemoryRepo(), newTestLogger())
	_, err = other.ValidateToken(context.Background(), resp.Token)
	require.True(t, apperrors.IsCode(err, "invalid_token"))
}

func TestService_ExpiredToken(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(Config{Secret: "test-secret", TokenTTL: -time.Minute, RefreshTokenTTL: time.Hour}, repo, newTestLogger())
	_, err := svc.Register(context.Background(), RegisterRequest{Username: "late", Password: "pass1234"})
	require.NoError(t, err)
	resp, err := svc.Login(context.Background(), LoginRequest{Username: "late", Password: "pass1234"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), resp.Token)
	require.True(t, apperrors.IsCode(err, "invalid_token"))
}

func TestService_ProfileMissingUser(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.Profile(context.Background(), 404)
	require.True(t, apperrors.IsCode(err, "user_not_found"))
}

func TestService_GoogleRequiresConfiguration(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.GoogleAuthURL(context.Background(), "state", "challenge")
	require.True(t, apperrors.IsCode(err, "auth_not_configured"))
}

func TestService_GoogleAuthURL(t *testing.T) {
	svc := NewService(Config{
		Secret: "test-secret",
		Google: GoogleConfig{
			ClientID:           "client",
			ClientSecret:       "secret",
			RedirectURL:        "http://localhost/callback",
			TokenEncryptionKey: "a-key-of-any-length",
		},
	}, newMemoryRepo(), newTestLogger())

	url, err := svc.GoogleAuthURL(context.Background(), "xyz", "challenge")
	require.NoError(t, err)
	require.Contains(t, url, "state=xyz")
	require.Contains(t, url, "code_challenge=challenge")
	require.Contains(t, url, "code_challenge_method=S256")
}

func TestService_CreateGoogleUserPicksFreeUsername(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo).(*service)
	_, err := repo.Create(context.Background(), User{Username: "jane.doe"})
	require.NoError(t, err)

	user, err := svc.createGoogleUser(context.Background(), googleClaims{Name: "Jane Doe"}, "jane.doe@example.com")
	require.NoError(t, err)
	require.Regexp(t, `^jane\.doe-\d{4}$`, user.Username)
	require.Equal(t, "Jane Doe", user.DisplayName)
	require.Equal(t, "jane.doe@example.com", user.Email)
}

func TestGoogleUsername(t *testing.T) {
	require.Equal(t, "jane.doe", googleUsername("Jane.Doe@example.com"))
	require.Equal(t, "user", googleUsername("+x@example.com"))
}

func TestTokenCrypto_RoundTrip(t *testing.T) {
	for _, key := range []string{"0123456789abcdef", "not-a-standard-length-key"} {
		sealed, err := encryptToken(key, "refresh-token")
		require.NoError(t, err)
		require.NotEqual(t, "refresh-token", sealed)

		plain, err := decryptToken(key, sealed)
		require.NoError(t, err)
		require.Equal(t, "refresh-token", plain)

		_, err = decryptToken("another-key-entirely", sealed)
		require.Error(t, err)
	}
	_, err := encryptToken("", "x")
	require.Error(t, err)
}

func TestCodeChallengeFromVerifier(t *testing.T) {
	// RFC 7636 appendix B.
	require.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", CodeChallengeFromVerifier("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"))
}

func newTestService(repo Repository) Service {
	return NewService(Config{
		Secret:          "test-secret",
		TokenTTL:        time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}, repo, newTestLogger())
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

type memoryRepo struct {
	mu         sync.Mutex
	users      map[int64]User
	identities []Identity
	seq        int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[int64]User)}
}

func (m *memoryRepo) Create(_ context.Context, user User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == user.Username {
			return User{}, ErrUsernameExists
		}
	}
	m.seq++
	user.ID = m.seq
	user.CreatedAt = time.Now()
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryRepo) GetByUsername(_ context.Context, username string) (User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			return user, true, nil
		}
	}
	return User{}, false, nil
}

func (m *memoryRepo) GetByID(_ context.Context, id int64) (User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	return user, ok, nil
}

func (m *memoryRepo) GetIdentity(_ context.Context, provider, subject string) (Identity, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, identity := range m.identities {
		if identity.Provider == provider && identity.ProviderSubject == subject {
			return identity, true, nil
		}
	}
	return Identity{}, false, nil
}

func (m *memoryRepo) GetIdentityByUser(_ context.Context, userID int64, provider string) (Identity, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, identity := range m.identities {
		if identity.Provider == provider && identity.UserID == userID {
			return identity, true, nil
		}
	}
	return Identity{}, false, nil
}

func (m *memoryRepo) UpsertIdentity(_ context.Context, identity Identity) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.identities {
		if existing.Provider == identity.Provider && existing.ProviderSubject == identity.ProviderSubject {
			identity.ID = existing.ID
			m.identities[i] = identity
			return identity, nil
		}
	}
	identity.ID = int64(len(m.identities) + 1)
	m.identities = append(m.identities, identity)
	return identity, nil
}
