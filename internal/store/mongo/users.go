package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"MessagingWebserver/internal/domain"
)

type userDoc struct {
	ID           string     `bson:"_id"`
	Username     string     `bson:"username"`
	PasswordHash string     `bson:"password_hash"`
	Friends      []string   `bson:"friends"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
	LastLoginAt  *time.Time `bson:"last_login_at,omitempty"`
}

func (d userDoc) toDomain() domain.UserWithPassword {
	return domain.UserWithPassword{
		User: domain.User{
			ID:          d.ID,
			Username:    d.Username,
			CreatedAt:   d.CreatedAt,
			UpdatedAt:   d.UpdatedAt,
			LastLoginAt: d.LastLoginAt,
		},
		PasswordHash: d.PasswordHash,
	}
}

type UsersStore struct {
	coll *mongo.Collection
}

var summaryProjection = bson.D{{Key: "_id", Value: 1}, {Key: "username", Value: 1}}

func (s *UsersStore) CreateUser(ctx context.Context, username, passwordHash string) (domain.User, error) {
	now := time.Now().UTC()
	doc := userDoc{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		Friends:      []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.User{}, domain.ErrUsernameTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return doc.toDomain().User, nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	var doc userDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return domain.User{}, mapFindError(err, "get user by id")
	}
	return doc.toDomain().User, nil
}

func (s *UsersStore) GetUserByUsername(ctx context.Context, username string) (domain.UserWithPassword, error) {
	var doc userDoc
	if err := s.coll.FindOne(ctx, bson.M{"username": username}).Decode(&doc); err != nil {
		return domain.UserWithPassword{}, mapFindError(err, "get user by username")
	}
	return doc.toDomain(), nil
}

func (s *UsersStore) SetLastLogin(ctx context.Context, userID string, when time.Time) error {
	update := bson.M{"$set": bson.M{"last_login_at": when.UTC(), "updated_at": when.UTC()}}
	if _, err := s.coll.UpdateByID(ctx, userID, update); err != nil {
		return fmt.Errorf("set last login: %w", err)
	}
	return nil
}

func (s *UsersStore) SearchUsers(ctx context.Context, q string, limit int) ([]domain.UserSummary, error) {
	filter := bson.M{"username": bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}}
	return s.findSummaries(ctx, filter, limit, "search users")
}

func (s *UsersStore) ListUsers(ctx context.Context, excludeIDs []string, limit int) ([]domain.UserSummary, error) {
	if excludeIDs == nil {
		excludeIDs = []string{}
	}
	return s.findSummaries(ctx, bson.M{"_id": bson.M{"$nin": excludeIDs}}, limit, "list users")
}

func (s *UsersStore) AddFriends(ctx context.Context, userA, userB string) error {
	models := []mongo.WriteModel{
		mongo.NewUpdateOneModel().SetFilter(bson.M{"_id": userA}).SetUpdate(bson.M{"$addToSet": bson.M{"friends": userB}}),
		mongo.NewUpdateOneModel().SetFilter(bson.M{"_id": userB}).SetUpdate(bson.M{"$addToSet": bson.M{"friends": userA}}),
	}
	res, err := s.coll.BulkWrite(ctx, models)
	if err != nil {
		return fmt.Errorf("add friends: %w", err)
	}
	if res.MatchedCount != 2 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *UsersStore) ListFriends(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	ids, err := s.ListFriendIDs(ctx, userID)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return s.findSummaries(ctx, bson.M{"_id": bson.M{"$in": ids}}, 0, "list friends")
}

func (s *UsersStore) ListFriendIDs(ctx context.Context, userID string) ([]string, error) {
	var doc struct {
		Friends []string `bson:"friends"`
	}
	opts := options.FindOne().SetProjection(bson.M{"friends": 1})
	err := s.coll.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list friend ids: %w", err)
	}
	return doc.Friends, nil
}

func (s *UsersStore) findSummaries(ctx context.Context, filter bson.M, limit int, op string) ([]domain.UserSummary, error) {
	opts := options.Find().
		SetProjection(summaryProjection).
		SetSort(bson.D{{Key: "username", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cursor.Close(ctx)

	var out []domain.UserSummary
	for cursor.Next(ctx) {
		var doc userDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}
		out = append(out, domain.UserSummary{ID: doc.ID, Username: doc.Username})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
