package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"MessagingWebserver/internal/auth"
	"MessagingWebserver/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Auth         *service.AuthService
	Friends      *service.FriendsService
	Gatekeeper   *service.Gatekeeper
	Messages     *service.MessagesService
	Query        *service.QueryService
	Users        *service.UsersService
	CookieCodec  auth.CookieCodec
	CookieSecure bool
	SessionTTL   time.Duration
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := &api{
		logger:       logger,
		isProd:       opts.IsProd,
		dbPing:       opts.DBPing,
		authSvc:      opts.Auth,
		friendsSvc:   opts.Friends,
		gatekeeper:   opts.Gatekeeper,
		messagesSvc:  opts.Messages,
		querySvc:     opts.Query,
		usersSvc:     opts.Users,
		cookieCodec:  opts.CookieCodec,
		cookieSecure: opts.CookieSecure,
		sessionTTL:   opts.SessionTTL,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", api.handleHealthz)

	if api.authSvc == nil {
		mux.HandleFunc("POST /v1/auth/register", handleNotImplemented)
		mux.HandleFunc("POST /v1/auth/login", handleNotImplemented)
		mux.HandleFunc("POST /v1/auth/logout", handleNotImplemented)
		mux.HandleFunc("GET /v1/users/me", handleNotImplemented)
	} else {
		mux.HandleFunc("POST /v1/auth/register", api.handleAuthRegister)
		mux.HandleFunc("POST /v1/auth/login", api.handleAuthLogin)
		mux.HandleFunc("POST /v1/auth/logout", api.requireAuth(api.handleAuthLogout))
		mux.HandleFunc("GET /v1/users/me", api.requireAuth(api.handleUsersMe))

		if api.usersSvc != nil {
			mux.HandleFunc("GET /v1/users/search", api.requireAuth(api.handleUsersSearch))
		}
		if api.querySvc != nil {
			mux.HandleFunc("GET /v1/users/suggestions", api.requireAuth(api.handleUsersSuggestions))
			mux.HandleFunc("GET /v1/conversations", api.requireAuth(api.handleConversations))
		}

		if api.friendsSvc != nil {
			mux.HandleFunc("GET /v1/friends", api.requireAuth(api.handleFriendsList))
			mux.HandleFunc("GET /v1/friends/requests", api.requireAuth(api.handleFriendsPending))
			mux.HandleFunc("POST /v1/friends/requests", api.requireAuth(api.handleFriendsCreateRequest))
			mux.HandleFunc("POST /v1/friends/requests/{id}/accept", api.requireAuth(api.handleFriendsAccept))
			mux.HandleFunc("POST /v1/friends/requests/{id}/reject", api.requireAuth(api.handleFriendsReject))
		}

		if api.gatekeeper != nil {
			mux.HandleFunc("POST /v1/messages", api.requireAuth(api.handleMessagesSend))
		}
		if api.messagesSvc != nil {
			mux.HandleFunc("GET /v1/messages", api.requireAuth(api.handleMessagesNormalHistory))
			mux.HandleFunc("GET /v1/messages/history", api.requireAuth(api.handleMessagesFullHistory))
			mux.HandleFunc("GET /v1/messages/requests", api.requireAuth(api.handleMessagesRequests))
			mux.HandleFunc("PATCH /v1/messages/{id}", api.requireAuth(api.handleMessagesEdit))
			mux.HandleFunc("DELETE /v1/messages/{id}", api.requireAuth(api.handleMessagesUnsend))
			mux.HandleFunc("POST /v1/messages/{id}/delete-for-me", api.requireAuth(api.handleMessagesDeleteForMe))
		}
	}

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only ServeMux.ServeHTTP populates r.PathValue, so dispatch through it
		// once the route is known to exist.
		if _, pattern := mux.Handler(r); pattern == "" {
			handleNotFound(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotImplemented, "not_implemented", "not implemented")
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing func(context.Context) error

	authSvc      *service.AuthService
	friendsSvc   *service.FriendsService
	gatekeeper   *service.Gatekeeper
	messagesSvc  *service.MessagesService
	querySvc     *service.QueryService
	usersSvc     *service.UsersService
	cookieCodec  auth.CookieCodec
	cookieSecure bool
	sessionTTL   time.Duration
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			a.logger.Warn("health check failed", "err", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
