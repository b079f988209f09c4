package principals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	estateAuth "github.com/MrEthical07/estateAuth"
	"github.com/MrEthical07/estateAuth/permission"
)

// Postgres reads principals from the auth_principals table.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres opens dsn with the lib/pq driver and verifies the
// connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgres wraps db and creates the table when missing.
func NewPostgres(ctx context.Context, db *sql.DB) (*Postgres, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	s := &Postgres{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Postgres) ensureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS auth_principals (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	credential_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	mfa_enabled BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("ensure auth_principals schema: %w", err)
	}
	return nil
}

const selectPrincipal = `SELECT id, email, credential_hash, role, active, mfa_enabled FROM auth_principals`

func (s *Postgres) GetPrincipalByEmail(ctx context.Context, email string) (estateAuth.Principal, error) {
	email = emailKey(email)
	if email == "" {
		return estateAuth.Principal{}, estateAuth.ErrPrincipalNotFound
	}
	return s.scanOne(ctx, selectPrincipal+` WHERE lower(email) = $1`, email)
}

func (s *Postgres) GetPrincipalByID(ctx context.Context, id string) (estateAuth.Principal, error) {
	if id == "" {
		return estateAuth.Principal{}, estateAuth.ErrPrincipalNotFound
	}
	return s.scanOne(ctx, selectPrincipal+` WHERE id = $1`, id)
}

func (s *Postgres) scanOne(ctx context.Context, q string, arg string) (estateAuth.Principal, error) {
	var (
		p    estateAuth.Principal
		role string
	)
	err := s.db.QueryRowContext(ctx, q, arg).Scan(&p.ID, &p.Email, &p.CredentialHash, &role, &p.Active, &p.MFAEnabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return estateAuth.Principal{}, estateAuth.ErrPrincipalNotFound
		}
		return estateAuth.Principal{}, fmt.Errorf("query principal: %w", err)
	}
	p.Role = permission.Role(role)
	return p, nil
}

func (s *Postgres) UpdateCredentialHash(ctx context.Context, id, hash string) error {
	const q = `UPDATE auth_principals SET credential_hash = $1, updated_at = NOW() WHERE id = $2`
	res, err := s.db.ExecContext(ctx, q, hash, id)
	if err != nil {
		return fmt.Errorf("update credential hash: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential hash: %w", err)
	}
	if n == 0 {
		return estateAuth.ErrPrincipalNotFound
	}
	return nil
}

// Put upserts p by id.
func (s *Postgres) Put(ctx context.Context, p estateAuth.Principal) error {
	p.Email = strings.TrimSpace(p.Email)
	if p.ID == "" || p.Email == "" || p.CredentialHash == "" {
		return errors.New("id, email, and credential hash are required")
	}
	const q = `
INSERT INTO auth_principals (id, email, credential_hash, role, active, mfa_enabled, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
ON CONFLICT (id) DO UPDATE
SET email = EXCLUDED.email,
	credential_hash = EXCLUDED.credential_hash,
	role = EXCLUDED.role,
	active = EXCLUDED.active,
	mfa_enabled = EXCLUDED.mfa_enabled,
	updated_at = NOW()`
	if _, err := s.db.ExecContext(ctx, q, p.ID, p.Email, p.CredentialHash, string(p.Role), p.Active, p.MFAEnabled); err != nil {
		return fmt.Errorf("upsert principal: %w", err)
	}
	return nil
}

var _ estateAuth.PrincipalStore = (*Postgres)(nil)
