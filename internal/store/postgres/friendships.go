package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MessagingWebserver/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const friendshipColumns = `id, requester_id, recipient_id, status, created_at, updated_at`

type FriendshipsStore struct {
	db dbtx
}

func NewFriendshipsStore(pool *pgxpool.Pool) *FriendshipsStore {
	return &FriendshipsStore{db: pool}
}

func (s *FriendshipsStore) Find(ctx context.Context, userA, userB string) (domain.Friendship, error) {
	const q = `
		SELECT ` + friendshipColumns + `
		FROM friendships
		WHERE LEAST(requester_id, recipient_id) = LEAST($1::uuid, $2::uuid)
		  AND GREATEST(requester_id, recipient_id) = GREATEST($1::uuid, $2::uuid)
	`

	f, err := scanFriendship(s.db.QueryRow(ctx, q, userA, userB))
	if err != nil {
		if isNoRows(err) {
			return domain.Friendship{}, domain.ErrNotFound
		}
		return domain.Friendship{}, fmt.Errorf("find friendship: %w", err)
	}
	return f, nil
}

func (s *FriendshipsStore) Get(ctx context.Context, id string) (domain.Friendship, error) {
	const q = `SELECT ` + friendshipColumns + ` FROM friendships WHERE id = $1`

	f, err := scanFriendship(s.db.QueryRow(ctx, q, id))
	if err != nil {
		if isNoRows(err) {
			return domain.Friendship{}, domain.ErrNotFound
		}
		return domain.Friendship{}, fmt.Errorf("get friendship: %w", err)
	}
	return f, nil
}

func (s *FriendshipsStore) Create(ctx context.Context, requesterID, recipientID string, at time.Time) (domain.Friendship, error) {
	const q = `
		INSERT INTO friendships (requester_id, recipient_id, status, created_at, updated_at)
		VALUES ($1, $2, 'pending', $3, $3)
		RETURNING ` + friendshipColumns

	f, err := scanFriendship(s.db.QueryRow(ctx, q, requesterID, recipientID, at))
	if err != nil {
		var pgerr *pgconn.PgError
		if errors.As(err, &pgerr) && pgerr.Code == "23505" && pgerr.ConstraintName == "friendships_pair_uq" {
			return domain.Friendship{}, domain.ErrFriendshipExists
		}
		return domain.Friendship{}, fmt.Errorf("create friendship: %w", err)
	}
	return f, nil
}

func (s *FriendshipsStore) Resolve(ctx context.Context, id string, status domain.FriendshipStatus, at time.Time) (domain.Friendship, error) {
	const q = `
		UPDATE friendships
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + friendshipColumns

	f, err := scanFriendship(s.db.QueryRow(ctx, q, id, string(status), at))
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Friendship{}, fmt.Errorf("resolve friendship: %w", err)
	}
	if _, err := s.Get(ctx, id); err != nil {
		return domain.Friendship{}, err
	}
	return domain.Friendship{}, domain.ErrInvalidState
}

func (s *FriendshipsStore) ListPending(ctx context.Context, userID string) (domain.PendingRequests, error) {
	incoming, err := s.listPending(ctx, userID, "recipient_id", "requester_id")
	if err != nil {
		return domain.PendingRequests{}, fmt.Errorf("list incoming requests: %w", err)
	}
	outgoing, err := s.listPending(ctx, userID, "requester_id", "recipient_id")
	if err != nil {
		return domain.PendingRequests{}, fmt.Errorf("list outgoing requests: %w", err)
	}
	return domain.PendingRequests{Incoming: incoming, Outgoing: outgoing}, nil
}

// listPending selects pending rows where selfCol is userID, joined to the
// user in otherCol. Both column names are package constants.
func (s *FriendshipsStore) listPending(ctx context.Context, userID, selfCol, otherCol string) ([]domain.FriendRequest, error) {
	q := `
		SELECT f.id, f.requester_id, f.recipient_id, f.status, f.created_at, f.updated_at, u.id, u.username
		FROM friendships f
		JOIN users u ON u.id = f.` + otherCol + `
		WHERE f.status = 'pending' AND f.` + selfCol + ` = $1
		ORDER BY f.created_at DESC
	`

	rows, err := s.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.FriendRequest{}
	for rows.Next() {
		var (
			req                      domain.FriendRequest
			idUUID, reqUUID, recUUID pgtype.UUID
			status                   string
			userUUID                 pgtype.UUID
		)
		if err := rows.Scan(&idUUID, &reqUUID, &recUUID, &status, &req.CreatedAt, &req.UpdatedAt, &userUUID, &req.User.Username); err != nil {
			return nil, err
		}
		req.ID = uuidOrEmpty(idUUID)
		req.RequesterID = uuidOrEmpty(reqUUID)
		req.RecipientID = uuidOrEmpty(recUUID)
		req.Status = domain.FriendshipStatus(status)
		req.User.ID = uuidOrEmpty(userUUID)
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *FriendshipsStore) ListPendingCounterparts(ctx context.Context, userID string) ([]string, error) {
	const q = `
		SELECT CASE WHEN requester_id = $1 THEN recipient_id ELSE requester_id END::text
		FROM friendships
		WHERE status = 'pending' AND (requester_id = $1 OR recipient_id = $1)
	`

	rows, err := s.db.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending counterparts: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list pending counterparts: %w", err)
	}
	return out, nil
}

func scanFriendship(row pgx.Row) (domain.Friendship, error) {
	var (
		f                        domain.Friendship
		idUUID, reqUUID, recUUID pgtype.UUID
		status                   string
	)
	if err := row.Scan(&idUUID, &reqUUID, &recUUID, &status, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return domain.Friendship{}, err
	}
	f.ID = uuidOrEmpty(idUUID)
	f.RequesterID = uuidOrEmpty(reqUUID)
	f.RecipientID = uuidOrEmpty(recUUID)
	f.Status = domain.FriendshipStatus(status)
	return f, nil
}
