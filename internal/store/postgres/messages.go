package postgres

import (
	"context"
	"fmt"
	"time"

	"MessagingWebserver/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const messageColumns = `id, seq, sender_id, receiver_id, content, sent_at, status, deleted_for::text[], is_edited`

type MessagesStore struct {
	db dbtx
}

func NewMessagesStore(pool *pgxpool.Pool) *MessagesStore {
	return &MessagesStore{db: pool}
}

func (s *MessagesStore) Insert(ctx context.Context, senderID, receiverID, content string, status domain.MessageStatus, at time.Time) (domain.Message, error) {
	const q = `
		INSERT INTO messages (sender_id, receiver_id, content, sent_at, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + messageColumns

	m, err := scanMessage(s.db.QueryRow(ctx, q, senderID, receiverID, content, at, string(status)))
	if err != nil {
		return domain.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

func (s *MessagesStore) Get(ctx context.Context, id string) (domain.Message, error) {
	const q = `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	m, err := scanMessage(s.db.QueryRow(ctx, q, id))
	if err != nil {
		if isNoRows(err) {
			return domain.Message{}, domain.ErrNotFound
		}
		return domain.Message{}, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (s *MessagesStore) UpdateContent(ctx context.Context, id, content string) (domain.Message, error) {
	const q = `
		UPDATE messages
		SET content = $2, is_edited = true
		WHERE id = $1
		RETURNING ` + messageColumns

	m, err := scanMessage(s.db.QueryRow(ctx, q, id, content))
	if err != nil {
		if isNoRows(err) {
			return domain.Message{}, domain.ErrNotFound
		}
		return domain.Message{}, fmt.Errorf("update message: %w", err)
	}
	return m, nil
}

func (s *MessagesStore) Delete(ctx context.Context, id string) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		if isNoRows(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete message: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *MessagesStore) AddDeletedFor(ctx context.Context, id, userID string) error {
	const q = `
		UPDATE messages
		SET deleted_for = CASE
			WHEN $2::uuid = ANY(deleted_for) THEN deleted_for
			ELSE array_append(deleted_for, $2::uuid)
		END
		WHERE id = $1
	`

	ct, err := s.db.Exec(ctx, q, id, userID)
	if err != nil {
		if isNoRows(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete message for user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *MessagesStore) PromoteRequests(ctx context.Context, senderID, receiverID string) (int64, error) {
	const q = `
		UPDATE messages
		SET status = 'normal'
		WHERE sender_id = $1 AND receiver_id = $2 AND status = 'request'
	`

	ct, err := s.db.Exec(ctx, q, senderID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("promote request messages: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (s *MessagesStore) ListBetween(ctx context.Context, userA, userB string, filter domain.HistoryFilter) ([]domain.Message, error) {
	const q = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		  AND ($3 = false OR status = 'normal')
		  AND ($4::uuid IS NULL OR NOT ($4::uuid = ANY(deleted_for)))
		ORDER BY sent_at ASC, seq ASC
	`

	rows, err := s.db.Query(ctx, q, userA, userB, filter.OnlyNormal, nullIfEmpty(filter.ExcludeDeletedFor))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}

func (s *MessagesStore) ListIncomingRequests(ctx context.Context, userID string) ([]domain.IncomingRequest, error) {
	const q = `
		SELECT m.id, m.seq, m.sender_id, m.receiver_id, m.content, m.sent_at, m.status,
		       m.deleted_for::text[], m.is_edited, u.username
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.receiver_id = $1 AND m.status = 'request'
		ORDER BY m.sent_at DESC, m.seq DESC
	`

	rows, err := s.db.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list incoming requests: %w", err)
	}
	defer rows.Close()

	var out []domain.IncomingRequest
	for rows.Next() {
		var (
			req      domain.IncomingRequest
			username string
		)
		req.Message, err = scanMessage(rows, &username)
		if err != nil {
			return nil, fmt.Errorf("scan incoming request: %w", err)
		}
		req.Sender = domain.UserSummary{ID: req.SenderID, Username: username}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list incoming requests: %w", err)
	}
	return out, nil
}

func (s *MessagesStore) LastNormalBetween(ctx context.Context, userA, userB string) (domain.Message, error) {
	const q = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		  AND status = 'normal'
		ORDER BY sent_at DESC, seq DESC
		LIMIT 1
	`

	m, err := scanMessage(s.db.QueryRow(ctx, q, userA, userB))
	if err != nil {
		if isNoRows(err) {
			return domain.Message{}, domain.ErrNotFound
		}
		return domain.Message{}, fmt.Errorf("last message: %w", err)
	}
	return m, nil
}

// scanMessage reads messageColumns followed by any extra destinations.
func scanMessage(row pgx.Row, extra ...any) (domain.Message, error) {
	var (
		m                              domain.Message
		idUUID, senderUUID, receiverUU pgtype.UUID
		status                         string
		deletedFor                     pgtype.FlatArray[string]
	)
	dest := append([]any{
		&idUUID, &m.Seq, &senderUUID, &receiverUU, &m.Content, &m.Timestamp, &status, &deletedFor, &m.IsEdited,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.Message{}, err
	}
	m.ID = uuidOrEmpty(idUUID)
	m.SenderID = uuidOrEmpty(senderUUID)
	m.ReceiverID = uuidOrEmpty(receiverUU)
	m.Status = domain.MessageStatus(status)
	m.DeletedFor = textArrayOrEmpty(deletedFor)
	return m, nil
}
