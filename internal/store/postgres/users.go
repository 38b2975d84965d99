package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"MessagingWebserver/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersStore struct {
	db dbtx
}

func NewUsersStore(pool *pgxpool.Pool) *UsersStore {
	return &UsersStore{db: pool}
}

func (s *UsersStore) CreateUser(ctx context.Context, username, passwordHash string) (domain.User, error) {
	const q = `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, username, created_at, updated_at, last_login_at
	`

	u, err := scanUser(s.db.QueryRow(ctx, q, username, passwordHash))
	if err != nil {
		return domain.User{}, mapUserWriteError(err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	const q = `
		SELECT id, username, created_at, updated_at, last_login_at
		FROM users
		WHERE id = $1
	`

	u, err := scanUser(s.db.QueryRow(ctx, q, id))
	if err != nil {
		if isNoRows(err) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (s *UsersStore) GetUserByUsername(ctx context.Context, username string) (domain.UserWithPassword, error) {
	const q = `
		SELECT id, username, password_hash, created_at, updated_at, last_login_at
		FROM users
		WHERE username = $1
	`

	var (
		u           domain.UserWithPassword
		idUUID      pgtype.UUID
		lastLoginTS pgtype.Timestamptz
	)
	err := s.db.QueryRow(ctx, q, username).Scan(
		&idUUID,
		&u.Username,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
		&lastLoginTS,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		}
		return domain.UserWithPassword{}, fmt.Errorf("get user by username: %w", err)
	}

	u.ID = uuidOrEmpty(idUUID)
	u.LastLoginAt = timestamptzPtr(lastLoginTS)
	return u, nil
}

func (s *UsersStore) SetLastLogin(ctx context.Context, userID string, when time.Time) error {
	const q = `
		UPDATE users
		SET last_login_at = $2, updated_at = $2
		WHERE id = $1
	`

	_, err := s.db.Exec(ctx, q, userID, when)
	if err != nil {
		return fmt.Errorf("set last login: %w", err)
	}
	return nil
}

func (s *UsersStore) SearchUsers(ctx context.Context, q string, limit int) ([]domain.UserSummary, error) {
	const query = `
		SELECT id, username
		FROM users
		WHERE username ILIKE $1 ESCAPE '\'
		ORDER BY username ASC
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, "%"+escapeLike(q)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return collectSummaries(rows, "search users")
}

func (s *UsersStore) ListUsers(ctx context.Context, excludeIDs []string, limit int) ([]domain.UserSummary, error) {
	const q = `
		SELECT id, username
		FROM users
		WHERE NOT (id::text = ANY($1::text[]))
		ORDER BY username ASC
		LIMIT $2
	`

	if excludeIDs == nil {
		excludeIDs = []string{}
	}
	rows, err := s.db.Query(ctx, q, excludeIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return collectSummaries(rows, "list users")
}

func (s *UsersStore) AddFriends(ctx context.Context, userA, userB string) error {
	const q = `
		INSERT INTO user_friends (user_id, friend_id)
		VALUES ($1, $2), ($2, $1)
		ON CONFLICT DO NOTHING
	`

	if _, err := s.db.Exec(ctx, q, userA, userB); err != nil {
		return fmt.Errorf("add friends: %w", err)
	}
	return nil
}

func (s *UsersStore) ListFriends(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	const q = `
		SELECT u.id, u.username
		FROM user_friends uf
		JOIN users u ON u.id = uf.friend_id
		WHERE uf.user_id = $1
		ORDER BY u.username ASC
	`

	rows, err := s.db.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return collectSummaries(rows, "list friends")
}

func (s *UsersStore) ListFriendIDs(ctx context.Context, userID string) ([]string, error) {
	const q = `
		SELECT friend_id::text
		FROM user_friends
		WHERE user_id = $1
		ORDER BY friend_id
	`

	rows, err := s.db.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list friend ids: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list friend ids: %w", err)
	}
	return out, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u           domain.User
		idUUID      pgtype.UUID
		lastLoginTS pgtype.Timestamptz
	)
	if err := row.Scan(&idUUID, &u.Username, &u.CreatedAt, &u.UpdatedAt, &lastLoginTS); err != nil {
		return domain.User{}, err
	}
	u.ID = uuidOrEmpty(idUUID)
	u.LastLoginAt = timestamptzPtr(lastLoginTS)
	return u, nil
}

func collectSummaries(rows pgx.Rows, op string) ([]domain.UserSummary, error) {
	defer rows.Close()

	var out []domain.UserSummary
	for rows.Next() {
		var idUUID pgtype.UUID
		var username string
		if err := rows.Scan(&idUUID, &username); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, domain.UserSummary{ID: uuidOrEmpty(idUUID), Username: username})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func mapUserWriteError(err error) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		switch pgerr.ConstraintName {
		case "users_username_uq":
			return domain.ErrUsernameTaken
		default:
			return fmt.Errorf("unique violation (%s): %w", pgerr.ConstraintName, err)
		}
	}
	return fmt.Errorf("create user: %w", err)
}
