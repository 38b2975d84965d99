package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MessagingWebserver/internal/domain"
	"MessagingWebserver/internal/service"
)

func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("APP_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("APP_TEST_DB_DSN not set")
	}

	ctx := context.Background()
	pool, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))
	return pool
}

func createTestUser(t *testing.T, users *UsersStore) domain.User {
	t.Helper()
	u, err := users.CreateUser(context.Background(), "u_"+uuid.NewString()[:8], "hash")
	require.NoError(t, err)
	return u
}

func TestUsersStore_CreateAndLookup(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	users := NewUsersStore(pool)

	u := createTestUser(t, users)

	_, err := users.CreateUser(ctx, u.Username, "other")
	require.ErrorIs(t, err, domain.ErrUsernameTaken)

	got, err := users.GetUserByUsername(ctx, u.Username)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = users.GetUserByID(ctx, "not-a-uuid")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFriendshipsStore_PairIsUnique(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	users := NewUsersStore(pool)
	friendships := NewFriendshipsStore(pool)
	a, b := createTestUser(t, users), createTestUser(t, users)

	f, err := friendships.Create(ctx, a.ID, b.ID, time.Now())
	require.NoError(t, err)

	_, err = friendships.Create(ctx, b.ID, a.ID, time.Now())
	require.ErrorIs(t, err, domain.ErrFriendshipExists)

	found, err := friendships.Find(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, f.ID, found.ID)

	pending, err := friendships.ListPending(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, pending.Incoming, 1)
	assert.Equal(t, a.Username, pending.Incoming[0].User.Username)

	_, err = friendships.Resolve(ctx, f.ID, domain.FriendshipRejected, time.Now())
	require.NoError(t, err)
	_, err = friendships.Resolve(ctx, f.ID, domain.FriendshipAccepted, time.Now())
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestTxRunner_AcceptFlowCommitsTogether(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	users := NewUsersStore(pool)
	messages := NewMessagesStore(pool)
	a, b := createTestUser(t, users), createTestUser(t, users)

	gate := &service.Gatekeeper{Users: users, Tx: NewTxRunner(pool)}

	first, err := gate.SendMessage(ctx, a.ID, b.Username, "hi")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusRequest, first.Status)

	reqs, err := messages.ListIncomingRequests(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, a.Username, reqs[0].Sender.Username)

	reply, err := gate.SendMessage(ctx, b.ID, a.Username, "hello")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusNormal, reply.Status)

	history, err := messages.ListBetween(ctx, a.ID, b.ID, domain.HistoryFilter{OnlyNormal: true})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)
	assert.Equal(t, reply.ID, history[1].ID)

	ids, err := users.ListFriendIDs(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids)

	require.NoError(t, messages.AddDeletedFor(ctx, first.ID, a.ID))
	require.NoError(t, messages.AddDeletedFor(ctx, first.ID, a.ID))
	mine, err := messages.ListBetween(ctx, a.ID, b.ID, domain.HistoryFilter{ExcludeDeletedFor: a.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, reply.ID, mine[0].ID)
}
