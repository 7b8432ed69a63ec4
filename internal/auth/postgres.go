package auth

import (
	"context"
	"database/sql"
	"fmt"

	"savdo.org/internal/ids"
)

var _ UserStore = (*PGUserStore)(nil)

// PGUserStore implements the user-lookup contract on the platform's
// PostgreSQL user table, accessed through database/sql with the pgx driver.
type PGUserStore struct {
	db *sql.DB
}

func NewPGUserStore(db *sql.DB) *PGUserStore {
	return &PGUserStore{db: db}
}

const userColumns = `id, email, external_id, username, first_name, last_name, role, active, password_hash, created_at, updated_at`

func (s *PGUserStore) FindByIdentifier(ctx context.Context, identifier string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email = $1 or username = $1`, identifier)
	return scanUser(row)
}

func (s *PGUserStore) FindByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id = $1`, id)
	return scanUser(row)
}

func (s *PGUserStore) FindByExternalID(ctx context.Context, externalID string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where external_id = $1`, externalID)
	return scanUser(row)
}

func (s *PGUserStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, external_id, username, first_name, last_name, role, active, password_hash)
		 values($1, nullif($2,''), nullif($3,''), $4, $5, $6, $7, $8, nullif($9,''))`,
		u.ID, u.Email, u.ExternalID, u.Username, u.FirstName, u.LastName, string(u.Role), u.Active, u.PasswordHash,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateProfile overwrites display fields from non-empty hints. The query has
// no path to role or active: coalescing against the stored value leaves a
// field untouched when its hint is empty.
func (s *PGUserStore) UpdateProfile(ctx context.Context, userID string, hints ProfileHints) error {
	_, err := s.db.ExecContext(ctx,
		`update users set
			username   = coalesce(nullif($2,''), username),
			first_name = coalesce(nullif($3,''), first_name),
			last_name  = coalesce(nullif($4,''), last_name),
			updated_at = now()
		 where id = $1`,
		userID, hints.Username, hints.FirstName, hints.LastName,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func (s *PGUserStore) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash = $2, updated_at = now() where id = $1`,
		userID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u            User
		email        sql.NullString
		externalID   sql.NullString
		passwordHash sql.NullString
		role         string
	)
	err := row.Scan(&u.ID, &email, &externalID, &u.Username, &u.FirstName, &u.LastName,
		&role, &u.Active, &passwordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Email = email.String
	u.ExternalID = externalID.String
	u.PasswordHash = passwordHash.String
	u.Role = Role(role)
	return &u, nil
}
