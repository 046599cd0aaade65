package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/resumeauth"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProfilesStore is the PostgreSQL account directory.
type ProfilesStore struct {
	pool *pgxpool.Pool
}

var _ resumeauth.AccountDirectory = (*ProfilesStore)(nil)

func NewProfilesStore(pool *pgxpool.Pool) *ProfilesStore {
	return &ProfilesStore{pool: pool}
}

const profileColumns = `id, email, first_name, last_name, role, created_at, updated_at`

func (s *ProfilesStore) Create(ctx context.Context, p *resumeauth.Profile) (*resumeauth.Profile, error) {
	const q = `
		INSERT INTO profiles (id, email, first_name, last_name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + profileColumns

	role := p.Role
	if role == "" {
		role = resumeauth.RoleUser
	}

	out, err := scanProfile(s.pool.QueryRow(ctx, q,
		p.ID,
		strings.ToLower(strings.TrimSpace(p.Email)),
		nullIfEmpty(p.FirstName),
		nullIfEmpty(p.LastName),
		string(role),
	))
	if err != nil {
		return nil, mapProfileWriteError(err)
	}
	return out, nil
}

func (s *ProfilesStore) FindByID(ctx context.Context, id string) (*resumeauth.Profile, error) {
	const q = `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	p, err := scanProfile(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile by id: %w", err)
	}
	return p, nil
}

func (s *ProfilesStore) FindByEmail(ctx context.Context, email string) (*resumeauth.Profile, error) {
	const q = `SELECT ` + profileColumns + ` FROM profiles WHERE lower(email) = $1 LIMIT 1`

	p, err := scanProfile(s.pool.QueryRow(ctx, q, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile by email: %w", err)
	}
	return p, nil
}

// Update sets the non-nil fields of upd and bumps updated_at.
func (s *ProfilesStore) Update(ctx context.Context, id string, upd resumeauth.ProfileUpdate) (*resumeauth.Profile, error) {
	const q = `
		UPDATE profiles SET
			first_name = COALESCE($2, first_name),
			last_name  = COALESCE($3, last_name),
			role       = COALESCE($4, role),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + profileColumns

	var role *string
	if upd.Role != nil {
		r := string(*upd.Role)
		role = &r
	}

	p, err := scanProfile(s.pool.QueryRow(ctx, q, id, upd.FirstName, upd.LastName, role))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, resumeauth.ErrProfileNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}

func (s *ProfilesStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

func scanProfile(row pgx.Row) (*resumeauth.Profile, error) {
	var (
		p         resumeauth.Profile
		idUUID    pgtype.UUID
		firstName pgtype.Text
		lastName  pgtype.Text
		role      string
	)
	if err := row.Scan(&idUUID, &p.Email, &firstName, &lastName, &role, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ID = uuidOrEmpty(idUUID)
	p.FirstName = textOrEmpty(firstName)
	p.LastName = textOrEmpty(lastName)
	p.Role = resumeauth.Role(role)
	return &p, nil
}

func mapProfileWriteError(err error) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		return resumeauth.ErrUserExists
	}
	return fmt.Errorf("create profile: %w", err)
}
