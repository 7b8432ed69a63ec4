package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func userRows(t *testing.T) *sqlmock.Rows {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{
		"id", "email", "external_id", "username", "first_name", "last_name",
		"role", "active", "password_hash", "created_at", "updated_at",
	}).AddRow("usr-1", "u1@example.com", nil, "u1", "First", "Last",
		"customer", true, "$2a$10$hash", now, now)
}

func TestPGFindByIdentifier(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id, email, external_id.*from users where email = \\$1 or username = \\$1").
		WithArgs("u1@example.com").
		WillReturnRows(userRows(t))

	store := NewPGUserStore(db)
	u, err := store.FindByIdentifier(context.Background(), "u1@example.com")
	if err != nil {
		t.Fatalf("FindByIdentifier: %v", err)
	}
	if u.ID != "usr-1" || u.Role != RoleCustomer || !u.Active {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.ExternalID != "" {
		t.Fatalf("null external_id must scan empty, got %q", u.ExternalID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGFindByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id, email, external_id.*from users where id = \\$1").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	store := NewPGUserStore(db)
	if _, err := store.FindByID(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGCreateGeneratesID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into users").
		WithArgs(sqlmock.AnyArg(), "", "ext-42", "wanderer", "", "", "customer", true, "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPGUserStore(db)
	u := &User{ExternalID: "ext-42", Username: "wanderer", Role: RoleCustomer, Active: true}
	if err := store.Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == "" {
		t.Fatal("Create must assign an id when none is set")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGUpdateProfile(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update users set").
		WithArgs("usr-1", "renamed", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPGUserStore(db)
	err = store.UpdateProfile(context.Background(), "usr-1", ProfileHints{Username: "renamed"})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGUpdatePasswordHashNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update users set password_hash").
		WithArgs("ghost", "$2a$10$hash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGUserStore(db)
	if err := store.UpdatePasswordHash(context.Background(), "ghost", "$2a$10$hash"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
