package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"MessagingWebserver/internal/domain"
)

type sessionDoc struct {
	ID        string     `bson:"_id"`
	UserID    string     `bson:"user_id"`
	CreatedAt time.Time  `bson:"created_at"`
	ExpiresAt time.Time  `bson:"expires_at"`
	RevokedAt *time.Time `bson:"revoked_at,omitempty"`
	IP        string     `bson:"ip,omitempty"`
	UserAgent string     `bson:"user_agent,omitempty"`
}

type SessionsStore struct {
	coll *mongo.Collection
}

func (s *SessionsStore) CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error) {
	doc := sessionDoc{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt.UTC(),
		IP:        ip,
		UserAgent: userAgent,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return doc.ID, nil
}

func (s *SessionsStore) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	var doc sessionDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc); err != nil {
		return domain.Session{}, mapFindError(err, "get session")
	}
	return domain.Session{
		ID:        doc.ID,
		UserID:    doc.UserID,
		CreatedAt: doc.CreatedAt,
		ExpiresAt: doc.ExpiresAt,
		RevokedAt: doc.RevokedAt,
	}, nil
}

func (s *SessionsStore) RevokeSession(ctx context.Context, sessionID string, when time.Time) error {
	filter := bson.M{"_id": sessionID, "revoked_at": bson.M{"$exists": false}}
	if _, err := s.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"revoked_at": when.UTC()}}); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
