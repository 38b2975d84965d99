// Package mongo stores users, friendships and messages in MongoDB. Units of
// work use multi-document transactions, so the server must be a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"MessagingWebserver/internal/domain"
	"MessagingWebserver/internal/service"
)

const (
	usersCollection       = "users"
	sessionsCollection    = "sessions"
	friendshipsCollection = "friendships"
	messagesCollection    = "messages"
	countersCollection    = "counters"
)

func Open(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique indexes the stores rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_username_uq")},
		},
		sessionsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		friendshipsCollection: {
			{Keys: bson.D{{Key: "pair", Value: 1}}, Options: options.Index().SetUnique(true).SetName("friendships_pair_uq")},
			{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "requester_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		messagesCollection: {
			{Keys: bson.D{{Key: "pair", Value: 1}, {Key: "sent_at", Value: 1}, {Key: "seq", Value: 1}}},
			{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "status", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

// Store bundles the collection-backed stores of one database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	Users       *UsersStore
	Sessions    *SessionsStore
	Friendships *FriendshipsStore
	Messages    *MessagesStore
}

func NewStore(client *mongo.Client, dbName string) *Store {
	db := client.Database(dbName)
	return &Store{
		client:      client,
		db:          db,
		Users:       &UsersStore{coll: db.Collection(usersCollection)},
		Sessions:    &SessionsStore{coll: db.Collection(sessionsCollection)},
		Friendships: &FriendshipsStore{coll: db.Collection(friendshipsCollection)},
		Messages: &MessagesStore{
			coll:     db.Collection(messagesCollection),
			users:    db.Collection(usersCollection),
			counters: db.Collection(countersCollection),
		},
	}
}

func (s *Store) Database() *mongo.Database { return s.db }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// WithinTx runs fn inside a session transaction. The session travels in the
// context handed to fn, so the plain stores join it. The driver may run fn
// more than once on transient errors.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r service.Repos) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	repos := service.Repos{Users: s.Users, Friendships: s.Friendships, Messages: s.Messages}
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, repos)
	})
	return err
}

func mapFindError(err error, op string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}
