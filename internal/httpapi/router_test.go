package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MessagingWebserver/internal/auth"
	"MessagingWebserver/internal/domain"
	"MessagingWebserver/internal/lock"
	"MessagingWebserver/internal/service"
	"MessagingWebserver/internal/store/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db := memory.New()
	locks := lock.NewLocal()
	users := db.Users()

	h := NewRouter(RouterOpts{
		DBPing: db.Ping,
		Auth: &service.AuthService{
			Users:      users,
			Sessions:   db.Sessions(),
			SessionTTL: time.Hour,
		},
		Friends:     &service.FriendsService{Users: users, Friendships: db.Friendships(), Tx: db, Locks: locks},
		Gatekeeper:  &service.Gatekeeper{Users: users, Tx: db, Locks: locks},
		Messages:    &service.MessagesService{Users: users, Friendships: db.Friendships(), Messages: db.Messages(), Tx: db},
		Query:       &service.QueryService{Users: users, Friendships: db.Friendships(), Messages: db.Messages()},
		Users:       &service.UsersService{Store: users},
		CookieCodec: auth.NewCookieCodec([]byte("test-secret-test-secret-test-sec")),
		SessionTTL:  time.Hour,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path string, body any) (int, []byte) {
	c.t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rdr)
	require.NoError(c.t, err)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if tok := resp.Header.Get(sessionTokenHeader); tok != "" {
		c.token = tok
	}
	out, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, out
}

func register(t *testing.T, srv *httptest.Server, username string) *client {
	t.Helper()
	c := &client{t: t, base: srv.URL}
	status, body := c.do(http.MethodPost, "/v1/auth/register", map[string]string{"username": username, "password": "password123"})
	require.Equal(t, http.StatusCreated, status, string(body))
	require.NotEmpty(t, c.token)
	return c
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func TestRouter_MessageRequestFlow(t *testing.T) {
	srv := newTestServer(t)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	status, body := alice.do(http.MethodPost, "/v1/messages", map[string]string{"to": "bob", "content": "hi bob"})
	require.Equal(t, http.StatusCreated, status, string(body))
	first := decode[domain.Message](t, body)
	assert.Equal(t, domain.MessageStatusRequest, first.Status)

	status, _ = alice.do(http.MethodGet, "/v1/messages?with=bob", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = bob.do(http.MethodGet, "/v1/messages/requests", nil)
	require.Equal(t, http.StatusOK, status)
	reqs := decode[[]domain.IncomingRequest](t, body)
	require.Len(t, reqs, 1)
	assert.Equal(t, "alice", reqs[0].Sender.Username)

	status, body = bob.do(http.MethodGet, "/v1/friends/requests", nil)
	require.Equal(t, http.StatusOK, status)
	pending := decode[domain.PendingRequests](t, body)
	require.Len(t, pending.Incoming, 1)

	status, body = bob.do(http.MethodPost, "/v1/messages", map[string]string{"to": "alice", "content": "hey"})
	require.Equal(t, http.StatusCreated, status, string(body))
	assert.Equal(t, domain.MessageStatusNormal, decode[domain.Message](t, body).Status)

	status, body = alice.do(http.MethodGet, "/v1/messages?with=bob", nil)
	require.Equal(t, http.StatusOK, status)
	history := decode[[]domain.Message](t, body)
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)

	status, body = alice.do(http.MethodGet, "/v1/conversations", nil)
	require.Equal(t, http.StatusOK, status)
	convs := decode[[]domain.Conversation](t, body)
	require.Len(t, convs, 1)
	require.NotNil(t, convs[0].LastMessage)
	assert.Equal(t, "hey", convs[0].LastMessage.Content)

	status, body = alice.do(http.MethodPatch, "/v1/messages/"+first.ID, map[string]string{"content": "hi bob!"})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.True(t, decode[domain.Message](t, body).IsEdited)

	status, _ = bob.do(http.MethodDelete, "/v1/messages/"+first.ID, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = bob.do(http.MethodPatch, "/v1/messages/"+first.ID, map[string]string{"content": "not mine"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = bob.do(http.MethodPost, "/v1/messages/"+first.ID+"/delete-for-me", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = alice.do(http.MethodPost, "/v1/messages/"+first.ID+"/delete-for-me", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = alice.do(http.MethodGet, "/v1/messages/history?with=bob", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]domain.Message](t, body), 1)

	status, _ = alice.do(http.MethodDelete, "/v1/messages/"+first.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = alice.do(http.MethodDelete, "/v1/messages/"+first.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRouter_FriendRequestEndpoints(t *testing.T) {
	srv := newTestServer(t)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	status, body := alice.do(http.MethodPost, "/v1/friends/requests", map[string]string{"username": "bob"})
	require.Equal(t, http.StatusCreated, status, string(body))
	fr := decode[domain.Friendship](t, body)

	status, body = bob.do(http.MethodPost, "/v1/friends/requests", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "friendship_exists", decode[errorEnvelope](t, body).Error.Code)

	status, _ = alice.do(http.MethodPost, "/v1/friends/requests/"+fr.ID+"/accept", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = alice.do(http.MethodPost, "/v1/friends/requests/"+fr.ID+"/reject", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = bob.do(http.MethodPost, "/v1/friends/requests/"+fr.ID+"/reject", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, domain.FriendshipRejected, decode[domain.Friendship](t, body).Status)

	status, body = bob.do(http.MethodPost, "/v1/friends/requests/"+fr.ID+"/accept", nil)
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "invalid_state", decode[errorEnvelope](t, body).Error.Code)

	status, body = alice.do(http.MethodGet, "/v1/friends", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "[]\n", string(body))
}

func TestRouter_AuthAndUsers(t *testing.T) {
	srv := newTestServer(t)
	alice := register(t, srv, "alice")
	register(t, srv, "Alicia")

	anon := &client{t: t, base: srv.URL}
	status, _ := anon.do(http.MethodGet, "/v1/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := anon.do(http.MethodPost, "/v1/auth/register", map[string]string{"username": "alice", "password": "password123"})
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "username_taken", decode[errorEnvelope](t, body).Error.Code)

	status, body = anon.do(http.MethodPost, "/v1/auth/register", map[string]string{"username": "x", "password": "short"})
	require.Equal(t, http.StatusBadRequest, status)
	fields := decode[errorEnvelope](t, body).Error.Fields
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "password")

	status, _ = anon.do(http.MethodPost, "/v1/auth/login", map[string]string{"username": "alice", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = anon.do(http.MethodPost, "/v1/auth/login", map[string]string{"username": "alice", "password": "password123"})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = anon.do(http.MethodGet, "/v1/users/me", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", decode[userResponse](t, body).Username)

	status, body = alice.do(http.MethodGet, "/v1/users/search?q=ALI", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]domain.UserSummary](t, body), 2)

	status, _ = alice.do(http.MethodGet, "/v1/users/search?q=", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = alice.do(http.MethodGet, "/v1/users/suggestions", nil)
	require.Equal(t, http.StatusOK, status)
	suggestions := decode[[]domain.UserSummary](t, body)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "Alicia", suggestions[0].Username)

	status, _ = anon.do(http.MethodPost, "/v1/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = anon.do(http.MethodGet, "/v1/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRouter_HealthzAndUnknownRoutes(t *testing.T) {
	srv := newTestServer(t)
	c := &client{t: t, base: srv.URL}

	status, body := c.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", string(body))

	status, body = c.do(http.MethodGet, "/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", decode[errorEnvelope](t, body).Error.Code)
}
