package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"huddle/cmd/identity"
)

// PostgresStore implements Store over the <schema>.sessions table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	table  string
	schema string
	opts   storeOptions
}

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPostgresStore creates a Postgres-backed session store in schema
// (identity.DefaultSchema when empty).
func NewPostgresStore(pool *pgxpool.Pool, schema string, opts ...StoreOption) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	if schema == "" {
		schema = identity.DefaultSchema
	}
	if !identity.PGIdentIsValid(schema) {
		return nil, fmt.Errorf("session: invalid schema identifier")
	}
	return &PostgresStore{
		pool:   pool,
		schema: schema,
		table:  identity.PGIdent(schema, "sessions"),
		opts:   defaultStoreOptions(opts),
	}, nil
}

// Create inserts a new session row.
func (s *PostgresStore) Create(ctx context.Context, in NewSession) (string, error) {
	if err := in.validate(); err != nil {
		return "", err
	}
	if err := s.insert(ctx, s.pool, in); err != nil {
		return "", err
	}
	return in.ID, nil
}

func (s *PostgresStore) insert(ctx context.Context, q pgQuerier, in NewSession) error {
	rec := in.record()
	_, err := q.Exec(ctx, `
		INSERT INTO `+s.table+` (
			id, user_id, credential_hash, created_at, expires_at, revoked_at, superseded_by
		) VALUES ($1, $2, $3, $4, $5, NULL, NULL)
	`, rec.ID, rec.UserID, rec.CredentialHash, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		if pgIsUniqueViolation(err) {
			return ErrSessionExists
		}
		return fmt.Errorf("session: insert: %w", err)
	}
	return nil
}

// Find loads a session row by id.
func (s *PostgresStore) Find(ctx context.Context, sessionID string) (Session, error) {
	return s.find(ctx, s.pool, sessionID, false)
}

func (s *PostgresStore) find(ctx context.Context, q pgQuerier, sessionID string, forUpdate bool) (Session, error) {
	sql := `
		SELECT id, user_id, credential_hash, created_at, expires_at, revoked_at, superseded_by
		FROM ` + s.table + `
		WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}

	var row Session
	err := q.QueryRow(ctx, sql, sessionID).Scan(
		&row.ID,
		&row.UserID,
		&row.CredentialHash,
		&row.CreatedAt,
		&row.ExpiresAt,
		&row.RevokedAt,
		&row.SupersededBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return row, nil
}

// Revoke revokes a single session (idempotent). successorID is recorded only
// by the update that sets revoked_at.
func (s *PostgresStore) Revoke(ctx context.Context, now time.Time, sessionID string, successorID *string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.table+`
		SET superseded_by = CASE WHEN revoked_at IS NULL THEN $3 ELSE superseded_by END,
		    revoked_at = COALESCE(revoked_at, $2)
		WHERE id = $1
	`, sessionID, now.UTC(), successorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Rotate runs the whole rotation in one transaction with the predecessor row
// locked, so two concurrent refreshes of the same token cannot both succeed.
func (s *PostgresStore) Rotate(ctx context.Context, now time.Time, oldID, presentedHash string, successor NewSession) (RotateOutcome, error) {
	if err := successor.validate(); err != nil {
		return RotateOutcome{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return RotateOutcome{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	prev, err := s.find(ctx, tx, oldID, true)
	if err != nil {
		return RotateOutcome{}, err
	}
	out := RotateOutcome{Predecessor: prev}

	reuse, verr := checkRotatable(prev, now, presentedHash, successor)
	if verr != nil {
		out.ReuseDetected = reuse
		if reuse && s.opts.revokeOnReuse {
			n, err := s.revokeAllLive(ctx, tx, now, prev.UserID)
			if err != nil {
				return out, err
			}
			if err := tx.Commit(ctx); err != nil {
				return out, err
			}
			out.RevokedCount = n
		}
		return out, verr
	}

	if err := s.insert(ctx, tx, successor); err != nil {
		return out, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE `+s.table+`
		SET revoked_at = $2,
		    superseded_by = $3
		WHERE id = $1
	`, oldID, now.UTC(), successor.ID); err != nil {
		return out, err
	}

	if err := tx.Commit(ctx); err != nil {
		return out, err
	}
	out.SuccessorID = successor.ID
	return out, nil
}

func (s *PostgresStore) revokeAllLive(ctx context.Context, q pgQuerier, now time.Time, userID string) (int64, error) {
	tag, err := q.Exec(ctx, `
		UPDATE `+s.table+`
		SET revoked_at = $2
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID, now.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteAllForUser hard-deletes the user's sessions.
func (s *PostgresStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
