package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-student-records/internal/models"
	appErrors "github.com/noah-isme/sma-student-records/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail         *models.User
	userByID            *models.User
	findByEmailErr      error
	findByIDErr         error
	refreshTokens       map[string]*models.RefreshToken
	createRefreshErr    error
	revokeUserTokensErr error
	revokedUsers        []string
	auditLogs           []*models.AuditLog
	lastLoginUpdated    bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedUsers = append(m.revokedUsers, userID)
	return m.revokeUserTokensErr
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type publishedIdentity struct {
	userID    string
	principal *models.Principal
}

type mockPublisher struct {
	events []publishedIdentity
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, userID string, principal *models.Principal) error {
	m.events = append(m.events, publishedIdentity{userID: userID, principal: principal})
	return m.err
}

func newAuthServiceForTest(repo *mockAuthRepo, publisher identityPublisher) *AuthService {
	return NewAuthService(repo, publisher, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "records-panel",
	})
}

func activeUser(t *testing.T, password string) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{ID: "u1", Email: "staff@example.com", FullName: "Staff Member", PasswordHash: string(hash), Active: true, Role: models.RoleStaff}
}

func TestAuthServiceLoginPublishesPrincipal(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: activeUser(t, "password")}
	publisher := &mockPublisher{}
	svc := newAuthServiceForTest(repo, publisher)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.True(t, repo.lastLoginUpdated)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, "u1", publisher.events[0].userID)
	require.NotNil(t, publisher.events[0].principal)
	assert.Equal(t, "staff@example.com", publisher.events[0].principal.Email)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: activeUser(t, "password")}
	publisher := &mockPublisher{}
	svc := newAuthServiceForTest(repo, publisher)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "nope"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
	assert.Empty(t, publisher.events)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	user := activeUser(t, "password")
	user.Active = false
	svc := newAuthServiceForTest(&mockAuthRepo{userByEmail: user}, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc := newAuthServiceForTest(&mockAuthRepo{findByEmailErr: sql.ErrNoRows}, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	user := activeUser(t, "password")
	repo := &mockAuthRepo{userByID: user, refreshTokens: map[string]*models.RefreshToken{
		"token": {ID: "rt1", UserID: user.ID, Token: "token", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := newAuthServiceForTest(repo, nil)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked)
}

func TestAuthServiceRefreshTokenRejectsRevoked(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"token": {ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour), Revoked: true},
	}}
	svc := newAuthServiceForTest(repo, nil)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceLogoutForeignToken(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"token": {ID: "rt1", UserID: "someone-else", Token: "token", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := newAuthServiceForTest(repo, nil)

	err := svc.Logout(context.Background(), "u1", "token", RequestMeta{})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.False(t, repo.refreshTokens["token"].Revoked)
}

func TestAuthServiceSignOutAnnouncesNoPrincipal(t *testing.T) {
	repo := &mockAuthRepo{revokeUserTokensErr: errors.New("db down")}
	publisher := &mockPublisher{}
	svc := newAuthServiceForTest(repo, publisher)

	svc.SignOut(context.Background(), "u1")

	assert.Equal(t, []string{"u1"}, repo.revokedUsers)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, "u1", publisher.events[0].userID)
	assert.Nil(t, publisher.events[0].principal)
}

func TestValidateToken(t *testing.T) {
	svc := newAuthServiceForTest(&mockAuthRepo{}, nil)
	user := &models.User{ID: "u1", Email: "staff@example.com", Role: models.RoleAdmin}
	token, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "staff@example.com", claims.Principal().Email)

	_, err = svc.ValidateToken(token + "x")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestAccessTokenIssuedAtKeepsMilliseconds(t *testing.T) {
	svc := newAuthServiceForTest(&mockAuthRepo{}, nil)
	issued := time.Now().Truncate(time.Millisecond)
	svc.now = func() time.Time { return issued }

	token, err := svc.generateAccessToken(&models.User{ID: "u1", Role: models.RoleStaff})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	require.NotNil(t, claims.IssuedAt)
	assert.Equal(t, issued.UnixMilli(), claims.IssuedAt.UnixMilli())
}
