package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/providerpath/providerpath-sso/internal/domain"
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// PostgresUserRepo implements UserRepository on a pgx connection pool.
type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

const selectUserSQL = `
SELECT u.id, u.email, u.name, u.avatar_url, u.roles, u.verification_status,
       u.created_at, u.updated_at,
       COALESCE(array_agg(i.provider ORDER BY i.provider) FILTER (WHERE i.provider IS NOT NULL), '{}')
FROM users u
LEFT JOIN identities i ON i.user_id = u.id
`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.AvatarURL, &u.Roles, &u.VerificationStatus,
		&u.CreatedAt, &u.UpdatedAt, &u.LinkedProviders,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *PostgresUserRepo) GetByIdentity(ctx context.Context, provider, externalID string) (*domain.User, error) {
	query := selectUserSQL + `
WHERE u.id = (SELECT user_id FROM identities WHERE provider = $1 AND external_id = $2)
GROUP BY u.id`
	return scanUser(r.pool.QueryRow(ctx, query, provider, externalID))
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := selectUserSQL + `
WHERE LOWER(u.email) = LOWER($1)
GROUP BY u.id`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := selectUserSQL + `
WHERE u.id = $1
GROUP BY u.id`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

const insertUserSQL = `
INSERT INTO users (id, email, name, avatar_url, roles, verification_status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const insertIdentitySQL = `
INSERT INTO identities (user_id, provider, external_id, email, email_verified, display_name, avatar_url, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())`

func (r *PostgresUserRepo) Create(ctx context.Context, user *domain.User, identity *domain.ExternalIdentity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create user tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, insertUserSQL,
		user.ID, user.Email, user.Name, user.AvatarURL, user.Roles,
		user.VerificationStatus, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	_, err = tx.Exec(ctx, insertIdentitySQL,
		user.ID, identity.Provider, identity.ExternalID, identity.Email,
		identity.EmailVerified, identity.DisplayName, identity.AvatarURL,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create user tx: %w", err)
	}
	return nil
}

const linkIdentitySQL = `
INSERT INTO identities (user_id, provider, external_id, email, email_verified, display_name, avatar_url, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (provider, external_id) DO NOTHING`

func (r *PostgresUserRepo) LinkIdentity(ctx context.Context, userID string, identity *domain.ExternalIdentity) error {
	_, err := r.pool.Exec(ctx, linkIdentitySQL,
		userID, identity.Provider, identity.ExternalID, identity.Email,
		identity.EmailVerified, identity.DisplayName, identity.AvatarURL,
	)
	if err != nil {
		return fmt.Errorf("link identity: %w", err)
	}
	return nil
}

// PostgresTokenRepo implements TokenRepository on a pgx connection pool.
type PostgresTokenRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresTokenRepo(pool *pgxpool.Pool) *PostgresTokenRepo {
	return &PostgresTokenRepo{pool: pool}
}

const insertTokenSQL = `
INSERT INTO issued_tokens (id, service_id, subject_user_id, scopes, signed, issued_at, expires_at, revoked)
VALUES ($1, $2, $3, $4, $5, $6, $7, false)`

func (r *PostgresTokenRepo) Create(ctx context.Context, token *domain.Token) error {
	_, err := r.pool.Exec(ctx, insertTokenSQL,
		token.TokenID, token.ServiceID, token.SubjectUserID, token.Scopes,
		token.Signed, token.IssuedAt, token.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

const selectTokenSQL = `
SELECT id, service_id, subject_user_id, scopes, signed, issued_at, expires_at, revoked
FROM issued_tokens`

func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token
	err := row.Scan(
		&t.TokenID, &t.ServiceID, &t.SubjectUserID, &t.Scopes,
		&t.Signed, &t.IssuedAt, &t.ExpiresAt, &t.Revoked,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan token: %w", err)
	}
	return &t, nil
}

func (r *PostgresTokenRepo) GetByID(ctx context.Context, tokenID string) (*domain.Token, error) {
	return scanToken(r.pool.QueryRow(ctx, selectTokenSQL+` WHERE id = $1`, tokenID))
}

func (r *PostgresTokenRepo) MarkRevoked(ctx context.Context, tokenID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE issued_tokens SET revoked = true WHERE id = $1`, tokenID)
	if err != nil {
		return fmt.Errorf("mark token revoked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}

func (r *PostgresTokenRepo) ListBySubject(ctx context.Context, userID string) ([]*domain.Token, error) {
	rows, err := r.pool.Query(ctx, selectTokenSQL+` WHERE subject_user_id = $1 ORDER BY issued_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return tokens, nil
}
