package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"MessagingWebserver/internal/domain"
)

const messageSeqCounter = "messages"

type messageDoc struct {
	ID         string    `bson:"_id"`
	Seq        int64     `bson:"seq"`
	Pair       string    `bson:"pair"`
	SenderID   string    `bson:"sender_id"`
	ReceiverID string    `bson:"receiver_id"`
	Content    string    `bson:"content"`
	SentAt     time.Time `bson:"sent_at"`
	Status     string    `bson:"status"`
	DeletedFor []string  `bson:"deleted_for"`
	IsEdited   bool      `bson:"is_edited"`
}

func (d messageDoc) toDomain() domain.Message {
	deletedFor := d.DeletedFor
	if deletedFor == nil {
		deletedFor = []string{}
	}
	return domain.Message{
		ID:         d.ID,
		Seq:        d.Seq,
		SenderID:   d.SenderID,
		ReceiverID: d.ReceiverID,
		Content:    d.Content,
		Timestamp:  d.SentAt,
		Status:     domain.MessageStatus(d.Status),
		DeletedFor: deletedFor,
		IsEdited:   d.IsEdited,
	}
}

type MessagesStore struct {
	coll     *mongo.Collection
	users    *mongo.Collection
	counters *mongo.Collection
}

var (
	historySort = bson.D{{Key: "sent_at", Value: 1}, {Key: "seq", Value: 1}}
	newestSort  = bson.D{{Key: "sent_at", Value: -1}, {Key: "seq", Value: -1}}
)

func (s *MessagesStore) Insert(ctx context.Context, senderID, receiverID, content string, status domain.MessageStatus, at time.Time) (domain.Message, error) {
	seq, err := s.nextSeq(ctx)
	if err != nil {
		return domain.Message{}, err
	}
	doc := messageDoc{
		ID:         uuid.NewString(),
		Seq:        seq,
		Pair:       pairKey(senderID, receiverID),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		SentAt:     at.UTC().Truncate(time.Millisecond),
		Status:     string(status),
		DeletedFor: []string{},
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return domain.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *MessagesStore) nextSeq(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx, bson.M{"_id": messageSeqCounter}, bson.M{"$inc": bson.M{"seq": int64(1)}}, opts).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next message seq: %w", err)
	}
	return counter.Seq, nil
}

func (s *MessagesStore) Get(ctx context.Context, id string) (domain.Message, error) {
	var doc messageDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return domain.Message{}, mapFindError(err, "get message")
	}
	return doc.toDomain(), nil
}

func (s *MessagesStore) UpdateContent(ctx context.Context, id, content string) (domain.Message, error) {
	update := bson.M{"$set": bson.M{"content": content, "is_edited": true}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc messageDoc
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		return domain.Message{}, mapFindError(err, "update message")
	}
	return doc.toDomain(), nil
}

func (s *MessagesStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *MessagesStore) AddDeletedFor(ctx context.Context, id, userID string) error {
	res, err := s.coll.UpdateByID(ctx, id, bson.M{"$addToSet": bson.M{"deleted_for": userID}})
	if err != nil {
		return fmt.Errorf("delete message for user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *MessagesStore) PromoteRequests(ctx context.Context, senderID, receiverID string) (int64, error) {
	filter := bson.M{
		"sender_id":   senderID,
		"receiver_id": receiverID,
		"status":      string(domain.MessageStatusRequest),
	}
	res, err := s.coll.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"status": string(domain.MessageStatusNormal)}})
	if err != nil {
		return 0, fmt.Errorf("promote request messages: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *MessagesStore) ListBetween(ctx context.Context, userA, userB string, filter domain.HistoryFilter) ([]domain.Message, error) {
	q := bson.M{"pair": pairKey(userA, userB)}
	if filter.OnlyNormal {
		q["status"] = string(domain.MessageStatusNormal)
	}
	if filter.ExcludeDeletedFor != "" {
		q["deleted_for"] = bson.M{"$ne": filter.ExcludeDeletedFor}
	}

	docs, err := s.find(ctx, q, options.Find().SetSort(historySort), "list messages")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (s *MessagesStore) ListIncomingRequests(ctx context.Context, userID string) ([]domain.IncomingRequest, error) {
	q := bson.M{"receiver_id": userID, "status": string(domain.MessageStatusRequest)}
	docs, err := s.find(ctx, q, options.Find().SetSort(newestSort), "list incoming requests")
	if err != nil {
		return nil, err
	}

	senders := make([]string, 0, len(docs))
	for _, d := range docs {
		senders = append(senders, d.SenderID)
	}
	names, err := lookupUsernames(ctx, s.users, senders)
	if err != nil {
		return nil, err
	}

	out := make([]domain.IncomingRequest, 0, len(docs))
	for _, d := range docs {
		name, ok := names[d.SenderID]
		if !ok {
			continue
		}
		out = append(out, domain.IncomingRequest{
			Message: d.toDomain(),
			Sender:  domain.UserSummary{ID: d.SenderID, Username: name},
		})
	}
	return out, nil
}

func (s *MessagesStore) LastNormalBetween(ctx context.Context, userA, userB string) (domain.Message, error) {
	q := bson.M{"pair": pairKey(userA, userB), "status": string(domain.MessageStatusNormal)}
	var doc messageDoc
	if err := s.coll.FindOne(ctx, q, options.FindOne().SetSort(newestSort)).Decode(&doc); err != nil {
		return domain.Message{}, mapFindError(err, "last message")
	}
	return doc.toDomain(), nil
}

func (s *MessagesStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions, op string) ([]messageDoc, error) {
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return docs, nil
}
