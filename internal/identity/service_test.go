package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/teamup-app/teamup-backend/pkg/config"
	"github.com/teamup-app/teamup-backend/pkg/db/models"
	"github.com/teamup-app/teamup-backend/pkg/enums"
	pkgerrors "github.com/teamup-app/teamup-backend/pkg/errors"
	"github.com/teamup-app/teamup-backend/pkg/events"
	"github.com/teamup-app/teamup-backend/pkg/logger"
)

type sqliteTxRunner struct {
	db *gorm.DB
}

func (r sqliteTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type capturingPublisher struct {
	published []events.UserCreatedEvent
	err       error
}

func (p *capturingPublisher) Publish(_ context.Context, event events.UserCreatedEvent) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, event)
	return nil
}

type fakeIssuer struct {
	err error
}

func (f *fakeIssuer) Issue(userID uuid.UUID, _ string, _ enums.Role) (string, time.Time, error) {
	if f.err != nil {
		return "", time.Time{}, f.err
	}
	return "token-" + userID.String(), time.Now().Add(time.Hour), nil
}

func setupIdentityTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	usersTable := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(usersTable).Error)
	return db
}

func fastPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8 * 1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func newTestService(t *testing.T, db *gorm.DB, pub *capturingPublisher) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		DB:             sqliteTxRunner{db: db},
		Publisher:      pub,
		Tokens:         &fakeIssuer{},
		Logger:         logger.New(logger.Options{ServiceName: "identity-test"}),
		PasswordConfig: fastPasswordConfig(),
	})
	require.NoError(t, err)
	return svc
}

func registerReq(role enums.Role) RegisterRequest {
	return RegisterRequest{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "s3cret-pass",
		Role:     role,
	}
}

func TestRegisterCreatesUserAndPublishesEvent(t *testing.T) {
	db := setupIdentityTestDB(t)
	pub := &capturingPublisher{}
	svc := newTestService(t, db, pub)

	resp, err := svc.Register(context.Background(), registerReq(enums.RolePlayer))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, resp.UserID)
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, "alice@example.com", resp.Email)

	var user models.User
	require.NoError(t, db.First(&user, "email = ?", "alice@example.com").Error)
	assert.Equal(t, enums.RolePlayer, user.Role)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	require.Len(t, pub.published, 1)
	evt := pub.published[0]
	assert.Equal(t, resp.UserID, evt.UserID)
	assert.Equal(t, "alice", evt.Username)
	assert.Equal(t, enums.RolePlayer, evt.Role)
	assert.False(t, evt.OccurredAt.IsZero())
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	db := setupIdentityTestDB(t)
	pub := &capturingPublisher{}
	svc := newTestService(t, db, pub)

	_, err := svc.Register(context.Background(), registerReq(enums.RolePlayer))
	require.NoError(t, err)

	dup := registerReq(enums.RoleVenue)
	dup.Username = "other"
	_, err = svc.Register(context.Background(), dup)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
	assert.Len(t, pub.published, 1)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	db := setupIdentityTestDB(t)
	svc := newTestService(t, db, &capturingPublisher{})

	_, err := svc.Register(context.Background(), registerReq(enums.RolePlayer))
	require.NoError(t, err)

	dup := registerReq(enums.RolePlayer)
	dup.Email = "other@example.com"
	_, err = svc.Register(context.Background(), dup)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
}

func TestRegisterRejectsInvalidRole(t *testing.T) {
	db := setupIdentityTestDB(t)
	svc := newTestService(t, db, &capturingPublisher{})

	req := registerReq(enums.Role("ADMIN"))
	_, err := svc.Register(context.Background(), req)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestRegisterSucceedsEvenWhenPublishSchedulingFails(t *testing.T) {
	db := setupIdentityTestDB(t)
	pub := &capturingPublisher{err: errors.New("no topic for role")}
	svc := newTestService(t, db, pub)

	resp, err := svc.Register(context.Background(), registerReq(enums.RoleVenue))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, resp.UserID)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLoginIssuesToken(t *testing.T) {
	db := setupIdentityTestDB(t)
	svc := newTestService(t, db, &capturingPublisher{})

	_, err := svc.Register(context.Background(), registerReq(enums.RolePlayer))
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "alice@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, enums.RolePlayer, resp.Role)

	var user models.User
	require.NoError(t, db.First(&user, "email = ?", "alice@example.com").Error)
	assert.NotNil(t, user.LastLoginAt)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	db := setupIdentityTestDB(t)
	svc := newTestService(t, db, &capturingPublisher{})

	_, err := svc.Register(context.Background(), registerReq(enums.RolePlayer))
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-pass",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	db := setupIdentityTestDB(t)
	svc := newTestService(t, db, &capturingPublisher{})

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	db := setupIdentityTestDB(t)
	svc := newTestService(t, db, &capturingPublisher{})

	_, err := svc.Register(context.Background(), registerReq(enums.RolePlayer))
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.User{}).Where("email = ?", "alice@example.com").
		UpdateColumn("is_active", false).Error)

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "alice@example.com",
		Password: "s3cret-pass",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}
