// Package memory keeps every record in process memory. It backs the server
// when no database is configured and is the default backend for tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"MessagingWebserver/internal/domain"
	"MessagingWebserver/internal/service"
)

type userRec struct {
	domain.UserWithPassword
	friends map[string]struct{}
}

type data struct {
	users       map[string]*userRec
	byUsername  map[string]string
	sessions    map[string]domain.Session
	friendships map[string]domain.Friendship
	pairs       map[string]string
	messages    map[string]domain.Message
	seq         int64
}

func newData() *data {
	return &data{
		users:       map[string]*userRec{},
		byUsername:  map[string]string{},
		sessions:    map[string]domain.Session{},
		friendships: map[string]domain.Friendship{},
		pairs:       map[string]string{},
		messages:    map[string]domain.Message{},
	}
}

func (d *data) clone() *data {
	c := &data{
		users:       make(map[string]*userRec, len(d.users)),
		byUsername:  make(map[string]string, len(d.byUsername)),
		sessions:    make(map[string]domain.Session, len(d.sessions)),
		friendships: make(map[string]domain.Friendship, len(d.friendships)),
		pairs:       make(map[string]string, len(d.pairs)),
		messages:    make(map[string]domain.Message, len(d.messages)),
		seq:         d.seq,
	}
	for id, u := range d.users {
		friends := make(map[string]struct{}, len(u.friends))
		for f := range u.friends {
			friends[f] = struct{}{}
		}
		c.users[id] = &userRec{UserWithPassword: u.UserWithPassword, friends: friends}
	}
	for k, v := range d.byUsername {
		c.byUsername[k] = v
	}
	for k, v := range d.sessions {
		c.sessions[k] = v
	}
	for k, v := range d.friendships {
		c.friendships[k] = v
	}
	for k, v := range d.pairs {
		c.pairs[k] = v
	}
	for k, v := range d.messages {
		v.DeletedFor = append([]string(nil), v.DeletedFor...)
		c.messages[k] = v
	}
	return c
}

// DB is the shared state behind every memory store. Transactions run against
// a private copy that replaces the shared state on commit; they are
// serialised with each other.
type DB struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	d    *data
	now  func() time.Time
}

func New() *DB {
	return &DB{d: newData(), now: time.Now}
}

// view is what a store method operates on. A nil tx reads and writes the
// shared state under db.mu; a non-nil tx is owned by one WithinTx call.
type view struct {
	db *DB
	tx *data
}

func (v view) read(fn func(d *data) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.db.mu.RLock()
	defer v.db.mu.RUnlock()
	return fn(v.db.d)
}

func (v view) write(fn func(d *data) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.db.txMu.Lock()
	defer v.db.txMu.Unlock()
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	return fn(v.db.d)
}

func (db *DB) Users() *UsersStore             { return &UsersStore{v: view{db: db}} }
func (db *DB) Sessions() *SessionsStore       { return &SessionsStore{v: view{db: db}} }
func (db *DB) Friendships() *FriendshipsStore { return &FriendshipsStore{v: view{db: db}} }
func (db *DB) Messages() *MessagesStore       { return &MessagesStore{v: view{db: db}} }

// WithinTx runs fn against a snapshot and publishes it only if fn succeeds.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context, r service.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snapshot := db.d.clone()
	db.mu.RUnlock()

	v := view{db: db, tx: snapshot}
	r := service.Repos{
		Users:       &UsersStore{v: v},
		Friendships: &FriendshipsStore{v: v},
		Messages:    &MessagesStore{v: v},
	}
	if err := fn(ctx, r); err != nil {
		return err
	}

	db.mu.Lock()
	db.d = snapshot
	db.mu.Unlock()
	return nil
}

// Ping always succeeds; it lets the memory backend satisfy health checks.
func (db *DB) Ping(context.Context) error { return nil }

func newID() string { return uuid.NewString() }

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}
