package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"huddle/cmd/identity/ids"
)

// PostgresStore implements account persistence over PostgreSQL.
//
// The pgx pool is owned by the caller; this store never closes it.
// Schema and table identifiers are quoted through pgx.Identifier.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
	hasher PasswordHasher
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultSchema is the schema created by the embedded migrations.
const DefaultSchema = "huddle"

// WithSchema sets the Postgres schema used by the store (default "huddle").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !PGIdentIsValid(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// WithPasswordHasher sets the hasher used by CreateUser.
func WithPasswordHasher(h PasswordHasher) PostgresOption {
	return func(s *PostgresStore) error {
		if h == nil {
			return fmt.Errorf("identity: nil password hasher")
		}
		s.hasher = h
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore. A password hasher is required.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: DefaultSchema,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	if st.hasher == nil {
		return nil, fmt.Errorf("identity: password hasher is required")
	}
	return st, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if s == nil || s.pool == nil {
		return User{}, invalid(op, "nil store")
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	u, hash, err := prepareUser(op, in, s.hasher)
	if err != nil {
		return User{}, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+PGIdent(s.schema, "users")+` (
		     id, email, email_norm, name, role, password_hash, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, NormalizeEmail(u.Email), u.Name, string(u.Role), hash, u.CreatedAt,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}
	return u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	id = strings.TrimSpace(id)
	if !ids.Valid(id) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}

	var (
		u    User
		role string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, role, created_at
		   FROM `+PGIdent(s.schema, "users")+`
		  WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.Name, &role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, err
	}
	u.Role = Role(role)
	return u, nil
}

func (s *PostgresStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"

	norm := NormalizeEmail(email)
	if norm == "" {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}

	var (
		ua   UserAuth
		role string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, role, created_at, password_hash
		   FROM `+PGIdent(s.schema, "users")+`
		  WHERE email_norm = $1`,
		norm,
	).Scan(&ua.User.ID, &ua.User.Email, &ua.User.Name, &role, &ua.User.CreatedAt, &ua.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
		}
		return UserAuth{}, err
	}
	ua.User.Role = Role(role)
	return ua, nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	const op = "identity.DeleteUser"

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+PGIdent(s.schema, "users")+` WHERE id = $1`,
		strings.TrimSpace(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return nil
}

// PGIdentIsValid checks if a string is a safe Postgres identifier.
func PGIdentIsValid(s string) bool {
	return pgIdentRe.MatchString(s)
}

// PGIdent safely quotes a schema-qualified identifier: "schema"."name".
func PGIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_users_email_norm", strings.Contains(c, "email"):
		return "email", true
	case c == "users_pkey":
		return "id", true
	default:
		return "unknown", true
	}
}
