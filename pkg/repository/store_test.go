package repository

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/true-feedback/pkg/domain"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_time_format=sqlite", uuid.NewString())
	db, err := NewDB(context.Background(), Config{Driver: DriverSQLite, DSN: dsn})
	require.NoError(t, err)

	store := NewSQLStore(db)
	t.Cleanup(func() { store.Close() })
	return store
}

func newMongoStore(t *testing.T) Store {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("Skipping mongo store test - MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	database := "true_feedback_test_" + uuid.NewString()[:8]
	store, err := NewMongoStore(ctx, MongoConfig{URI: uri, Database: database})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.client.Database(database).Drop(context.Background())
		store.Close()
	})
	return store
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, newSQLiteStore)
}

func TestMongoStore(t *testing.T) {
	runStoreSuite(t, newMongoStore)
}

func newTestUser(username, email string, verified bool) *domain.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.User{
		ID:                  uuid.New(),
		Username:            username,
		Email:               email,
		PasswordHash:        "hash",
		VerifyCode:          "123456",
		VerifyCodeExpiry:    now.Add(time.Hour),
		IsVerified:          verified,
		IsAcceptingMessages: true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create and lookup", func(t *testing.T) {
		store := newStore(t)
		user := newTestUser("alice", "alice@example.com", false)
		require.NoError(t, store.CreateUser(ctx, user))

		byID, err := store.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", byID.Username)
		assert.Equal(t, "alice@example.com", byID.Email)
		assert.False(t, byID.IsVerified)
		assert.True(t, byID.IsAcceptingMessages)
		assert.True(t, user.VerifyCodeExpiry.Equal(byID.VerifyCodeExpiry))

		byName, err := store.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byName.ID)

		byEmail, err := store.GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byEmail.ID)

		_, err = store.GetUserByID(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
		_, err = store.GetUserByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("duplicate email", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateUser(ctx, newTestUser("first", "same@example.com", false)))

		err := store.CreateUser(ctx, newTestUser("second", "same@example.com", false))
		assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
	})

	t.Run("username unique among verified only", func(t *testing.T) {
		store := newStore(t)
		verified := newTestUser("taken", "a@example.com", true)
		require.NoError(t, store.CreateUser(ctx, verified))
		require.NoError(t, store.CreateUser(ctx, newTestUser("taken", "b@example.com", false)))

		err := store.CreateUser(ctx, newTestUser("taken", "c@example.com", true))
		assert.ErrorIs(t, err, domain.ErrUsernameAlreadyExists)

		exists, err := store.VerifiedUsernameExists(ctx, "taken")
		require.NoError(t, err)
		assert.True(t, exists)

		got, err := store.GetUserByUsername(ctx, "taken")
		require.NoError(t, err)
		assert.Equal(t, verified.ID, got.ID, "verified record should win")
	})

	t.Run("unverified username is not taken", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateUser(ctx, newTestUser("pending", "p@example.com", false)))

		exists, err := store.VerifiedUsernameExists(ctx, "pending")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("reset pending registration", func(t *testing.T) {
		store := newStore(t)
		user := newTestUser("bob", "bob@example.com", false)
		require.NoError(t, store.CreateUser(ctx, user))

		expiry := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Millisecond)
		err := store.ResetPendingRegistration(ctx, user.ID, PendingRegistration{
			Username:         "bobby",
			PasswordHash:     "new-hash",
			VerifyCode:       "654321",
			VerifyCodeExpiry: expiry,
			UpdatedAt:        time.Now().UTC(),
		})
		require.NoError(t, err)

		got, err := store.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "bobby", got.Username)
		assert.Equal(t, "new-hash", got.PasswordHash)
		assert.Equal(t, "654321", got.VerifyCode)
		assert.True(t, expiry.Equal(got.VerifyCodeExpiry))
	})

	t.Run("reset pending registration rejects verified user", func(t *testing.T) {
		store := newStore(t)
		user := newTestUser("carol", "carol@example.com", true)
		require.NoError(t, store.CreateUser(ctx, user))

		err := store.ResetPendingRegistration(ctx, user.ID, PendingRegistration{
			Username:         "carol",
			PasswordHash:     "x",
			VerifyCode:       "000000",
			VerifyCodeExpiry: time.Now().UTC(),
			UpdatedAt:        time.Now().UTC(),
		})
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("mark verified", func(t *testing.T) {
		store := newStore(t)
		user := newTestUser("dave", "dave@example.com", false)
		require.NoError(t, store.CreateUser(ctx, user))
		now := time.Now().UTC()

		ok, err := store.MarkVerified(ctx, user.ID, "999999", now)
		require.NoError(t, err)
		assert.False(t, ok, "wrong code must not verify")

		ok, err = store.MarkVerified(ctx, user.ID, user.VerifyCode, user.VerifyCodeExpiry.Add(time.Second))
		require.NoError(t, err)
		assert.False(t, ok, "expired code must not verify")

		ok, err = store.MarkVerified(ctx, user.ID, user.VerifyCode, now)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := store.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, got.IsVerified)
	})

	t.Run("set accepting messages", func(t *testing.T) {
		store := newStore(t)
		user := newTestUser("erin", "erin@example.com", true)
		require.NoError(t, store.CreateUser(ctx, user))

		stored, err := store.SetAcceptingMessages(ctx, user.ID, false)
		require.NoError(t, err)
		assert.False(t, stored)

		stored, err = store.SetAcceptingMessages(ctx, user.ID, true)
		require.NoError(t, err)
		assert.True(t, stored)

		_, err = store.SetAcceptingMessages(ctx, uuid.New(), true)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("append respects acceptance", func(t *testing.T) {
		store := newStore(t)
		user := newTestUser("frank", "frank@example.com", true)
		require.NoError(t, store.CreateUser(ctx, user))
		_, err := store.SetAcceptingMessages(ctx, user.ID, false)
		require.NoError(t, err)

		msg := &domain.Message{ID: "m1", Content: "hi", CreatedAt: time.Now().UTC()}
		assert.ErrorIs(t, store.AppendMessage(ctx, user.ID, msg), domain.ErrMessagesClosed)
		assert.ErrorIs(t, store.AppendMessage(ctx, uuid.New(), msg), domain.ErrUserNotFound)

		_, err = store.SetAcceptingMessages(ctx, user.ID, true)
		require.NoError(t, err)
		assert.NoError(t, store.AppendMessage(ctx, user.ID, msg))
	})

	t.Run("list newest first", func(t *testing.T) {
		store := newStore(t)
		user := newTestUser("gina", "gina@example.com", true)
		require.NoError(t, store.CreateUser(ctx, user))

		base := time.Now().UTC().Truncate(time.Millisecond)
		offsets := []int{3, 0, 4, 1, 2}
		for i, off := range offsets {
			msg := &domain.Message{
				ID:        fmt.Sprintf("msg-%d", i),
				Content:   fmt.Sprintf("content %d", off),
				CreatedAt: base.Add(time.Duration(off) * time.Minute),
			}
			require.NoError(t, store.AppendMessage(ctx, user.ID, msg))
		}

		messages, err := store.ListMessages(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, messages, len(offsets))
		for i := 1; i < len(messages); i++ {
			assert.False(t, messages[i].CreatedAt.After(messages[i-1].CreatedAt),
				"message %d is newer than message %d", i, i-1)
		}
		assert.Equal(t, "content 4", messages[0].Content)
	})

	t.Run("list empty inbox", func(t *testing.T) {
		store := newStore(t)
		user := newTestUser("hana", "hana@example.com", true)
		require.NoError(t, store.CreateUser(ctx, user))

		messages, err := store.ListMessages(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("delete message scoped to owner", func(t *testing.T) {
		store := newStore(t)
		owner := newTestUser("ivan", "ivan@example.com", true)
		other := newTestUser("judy", "judy@example.com", true)
		require.NoError(t, store.CreateUser(ctx, owner))
		require.NoError(t, store.CreateUser(ctx, other))

		msg := &domain.Message{ID: "owned", Content: "secret", CreatedAt: time.Now().UTC()}
		require.NoError(t, store.AppendMessage(ctx, owner.ID, msg))

		assert.ErrorIs(t, store.DeleteMessage(ctx, other.ID, "owned"), domain.ErrMessageNotFound)
		assert.NoError(t, store.DeleteMessage(ctx, owner.ID, "owned"))
		assert.ErrorIs(t, store.DeleteMessage(ctx, owner.ID, "owned"), domain.ErrMessageNotFound)

		messages, err := store.ListMessages(ctx, owner.ID)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("delete user removes messages", func(t *testing.T) {
		store := newStore(t)
		user := newTestUser("kate", "kate@example.com", true)
		require.NoError(t, store.CreateUser(ctx, user))
		require.NoError(t, store.AppendMessage(ctx, user.ID, &domain.Message{ID: "k1", Content: "x", CreatedAt: time.Now().UTC()}))

		require.NoError(t, store.DeleteUser(ctx, user.ID))

		messages, err := store.ListMessages(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, messages)
		assert.ErrorIs(t, store.DeleteUser(ctx, user.ID), domain.ErrUserNotFound)
	})
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "plain path",
			path: "./data/app.db",
			want: "file:./data/app.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite",
		},
		{
			name: "file uri",
			path: "file:app.db",
			want: "file:app.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite",
		},
		{
			name: "existing params keep defaults",
			path: "file:x?mode=memory&cache=shared",
			want: "file:x?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite",
		},
		{
			name: "caller busy timeout wins",
			path: "file:x?_pragma=busy_timeout(100)",
			want: "file:x?_pragma=busy_timeout(100)&_pragma=foreign_keys(1)&_time_format=sqlite",
		},
		{
			name: "foreign keys cannot be disabled",
			path: "file:x?_pragma=foreign_keys(0)&mode=memory",
			want: "file:x?mode=memory&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite",
		},
		{
			name: "no duplicates when all set",
			path: "file:x?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite",
			want: "file:x?_pragma=busy_timeout(5000)&_time_format=sqlite&_pragma=foreign_keys(1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sqliteDSN(tt.path); got != tt.want {
				t.Errorf("sqliteDSN(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestNewDB_SQLiteParamsKeepForeignKeys(t *testing.T) {
	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := NewDB(ctx, Config{Driver: DriverSQLite, DSN: dsn})
	require.NoError(t, err)
	store := NewSQLStore(db)
	t.Cleanup(func() { store.Close() })

	var foreignKeys int
	require.NoError(t, db.GetContext(ctx, &foreignKeys, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, foreignKeys)

	user := newTestUser("cascade", "cascade@example.com", true)
	require.NoError(t, store.CreateUser(ctx, user))
	require.NoError(t, store.AppendMessage(ctx, user.ID, &domain.Message{
		ID:        "m1",
		Content:   "hello",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}))
	require.NoError(t, store.DeleteUser(ctx, user.ID))

	var orphans int
	require.NoError(t, db.GetContext(ctx, &orphans, "SELECT COUNT(*) FROM messages"))
	assert.Zero(t, orphans)
}

func TestNewDB_MigrationsLogThroughSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := NewDB(context.Background(), Config{Driver: DriverSQLite, DSN: dsn, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	out := buf.String()
	assert.Contains(t, out, "00001_create_users_and_messages.sql")
	assert.Contains(t, out, `"component":"migrate"`)
	assert.Contains(t, out, `"level":"INFO"`)
}
