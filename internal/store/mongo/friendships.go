package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"MessagingWebserver/internal/domain"
)

type friendshipDoc struct {
	ID          string    `bson:"_id"`
	Pair        string    `bson:"pair"`
	RequesterID string    `bson:"requester_id"`
	RecipientID string    `bson:"recipient_id"`
	Status      string    `bson:"status"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d friendshipDoc) toDomain() domain.Friendship {
	return domain.Friendship{
		ID:          d.ID,
		RequesterID: d.RequesterID,
		RecipientID: d.RecipientID,
		Status:      domain.FriendshipStatus(d.Status),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type FriendshipsStore struct {
	coll *mongo.Collection
}

func (s *FriendshipsStore) Find(ctx context.Context, userA, userB string) (domain.Friendship, error) {
	return s.findOne(ctx, bson.M{"pair": pairKey(userA, userB)}, "find friendship")
}

func (s *FriendshipsStore) Get(ctx context.Context, id string) (domain.Friendship, error) {
	return s.findOne(ctx, bson.M{"_id": id}, "get friendship")
}

func (s *FriendshipsStore) Create(ctx context.Context, requesterID, recipientID string, at time.Time) (domain.Friendship, error) {
	at = at.UTC()
	doc := friendshipDoc{
		ID:          uuid.NewString(),
		Pair:        pairKey(requesterID, recipientID),
		RequesterID: requesterID,
		RecipientID: recipientID,
		Status:      string(domain.FriendshipPending),
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Friendship{}, domain.ErrFriendshipExists
		}
		return domain.Friendship{}, fmt.Errorf("create friendship: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *FriendshipsStore) Resolve(ctx context.Context, id string, status domain.FriendshipStatus, at time.Time) (domain.Friendship, error) {
	filter := bson.M{"_id": id, "status": string(domain.FriendshipPending)}
	update := bson.M{"$set": bson.M{"status": string(status), "updated_at": at.UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc friendshipDoc
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Friendship{}, fmt.Errorf("resolve friendship: %w", err)
	}
	if _, err := s.Get(ctx, id); err != nil {
		return domain.Friendship{}, err
	}
	return domain.Friendship{}, domain.ErrInvalidState
}

func (s *FriendshipsStore) ListPending(ctx context.Context, userID string) (domain.PendingRequests, error) {
	docs, err := s.findMany(ctx, pendingFilter(userID), "list pending")
	if err != nil {
		return domain.PendingRequests{}, err
	}

	others := make([]string, 0, len(docs))
	for _, d := range docs {
		others = append(others, d.toDomain().Counterpart(userID))
	}
	names, err := s.usernames(ctx, others)
	if err != nil {
		return domain.PendingRequests{}, err
	}

	out := domain.PendingRequests{Incoming: []domain.FriendRequest{}, Outgoing: []domain.FriendRequest{}}
	for _, d := range docs {
		f := d.toDomain()
		otherID := f.Counterpart(userID)
		name, ok := names[otherID]
		if !ok {
			continue
		}
		req := domain.FriendRequest{Friendship: f, User: domain.UserSummary{ID: otherID, Username: name}}
		if f.RecipientID == userID {
			out.Incoming = append(out.Incoming, req)
		} else {
			out.Outgoing = append(out.Outgoing, req)
		}
	}
	return out, nil
}

func (s *FriendshipsStore) ListPendingCounterparts(ctx context.Context, userID string) ([]string, error) {
	docs, err := s.findMany(ctx, pendingFilter(userID), "list pending counterparts")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain().Counterpart(userID))
	}
	return out, nil
}

func pendingFilter(userID string) bson.M {
	return bson.M{
		"status": string(domain.FriendshipPending),
		"$or": []bson.M{
			{"requester_id": userID},
			{"recipient_id": userID},
		},
	}
}

func (s *FriendshipsStore) findOne(ctx context.Context, filter bson.M, op string) (domain.Friendship, error) {
	var doc friendshipDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return domain.Friendship{}, mapFindError(err, op)
	}
	return doc.toDomain(), nil
}

func (s *FriendshipsStore) findMany(ctx context.Context, filter bson.M, op string) ([]friendshipDoc, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var docs []friendshipDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return docs, nil
}

// usernames resolves ids through the users collection of the same database.
func (s *FriendshipsStore) usernames(ctx context.Context, ids []string) (map[string]string, error) {
	return lookupUsernames(ctx, s.coll.Database().Collection(usersCollection), ids)
}

func lookupUsernames(ctx context.Context, users *mongo.Collection, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	opts := options.Find().SetProjection(summaryProjection)
	cursor, err := users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("lookup usernames: %w", err)
	}
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("lookup usernames: %w", err)
	}
	for _, d := range docs {
		out[d.ID] = d.Username
	}
	return out, nil
}
