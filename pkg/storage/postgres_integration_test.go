//go:build integration

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/DamageLabs/whiskey-canon-sub000/pkg/auth"
)

func TestPostgres_RoundTrip(t *testing.T) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("whiskey_test"),
		postgres.WithUsername("whiskey"),
		postgres.WithPassword("whiskey"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Dialect = DialectPostgres
	cfg.DSN = dsn

	db, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(ctx, db, cfg.Dialect))

	accounts := NewAccountStore(db, cfg.Dialect)
	acct, err := accounts.Create(ctx, auth.NewAccount{
		Username:                  "alice",
		Email:                     "alice@example.com",
		PasswordHash:              "$2a$hash",
		VerificationCode:          "ABCD2345",
		VerificationCodeExpiresAt: time.Now().Add(15 * time.Minute),
	})
	require.NoError(t, err)

	_, err = accounts.Create(ctx, auth.NewAccount{Username: "alice", Email: "b@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, auth.ErrDuplicateUsername)

	updated, err := accounts.UpdateRole(ctx, acct.ID, auth.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleEditor, updated.Role)

	found, err := accounts.FindByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, found.ID)
}
