package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func pgFixture(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewPGStore(db), mock
}

func userRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "first_name", "last_name", "phone",
		"is_active", "is_verified", "last_login_at", "created_at", "updated_at", "deleted_at",
	}).AddRow("user-1", "ops@example.com", "$2a$10$hash", "Ada", "Ng", "+77001234567",
		true, false, nil, now, now, nil)
}

func TestPGUserFind(t *testing.T) {
	store, mock := pgFixture(t)

	mock.ExpectQuery(`select .+ from users where id=\$1 and deleted_at is null`).
		WithArgs("user-1").
		WillReturnRows(userRows())

	u, err := store.Users(context.Background()).Find(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if u.Email != "ops@example.com" || !u.Active || u.Verified {
		t.Fatalf("user = %+v", u)
	}
}

func TestPGUserFindNotFound(t *testing.T) {
	store, mock := pgFixture(t)

	mock.ExpectQuery(`select .+ from users where id=\$1 and deleted_at is null`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Users(context.Background()).Find(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGUserSoftDeleteMissing(t *testing.T) {
	store, mock := pgFixture(t)

	mock.ExpectExec(`update users set deleted_at=now\(\)`).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Users(context.Background()).SoftDelete(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGUserCreateAssignsID(t *testing.T) {
	store, mock := pgFixture(t)

	mock.ExpectExec(`insert into users`).
		WithArgs(sqlmock.AnyArg(), "ops@example.com", "$2a$10$hash", "Ada", "Ng", "", true, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := &User{Email: "ops@example.com", PasswordHash: "$2a$10$hash", FirstName: "Ada", LastName: "Ng", Active: true}
	if err := store.Users(context.Background()).Create(context.Background(), u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == "" {
		t.Fatal("create must assign an id")
	}
}

func TestPGAPIKeyFindByHash(t *testing.T) {
	store, mock := pgFixture(t)
	now := time.Now()

	mock.ExpectQuery(`select .+ from api_keys where key_hash=\$1 and deleted_at is null`).
		WithArgs("abc123").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "client_id", "key_hash", "name", "last_four", "is_active",
			"expires_at", "last_used_at", "created_at", "updated_at", "deleted_at",
		}).AddRow("key-1", "client-1", "abc123", "ci", "beef", true, nil, nil, now, now, nil))

	key, err := store.APIKeys(context.Background()).FindByHash(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("find by hash: %v", err)
	}
	if key.ClientID != "client-1" || key.LastFour != "beef" {
		t.Fatalf("key = %+v", key)
	}
}

func TestPGAPIKeyDeactivateMissing(t *testing.T) {
	store, mock := pgFixture(t)

	mock.ExpectExec(`update api_keys set is_active=false`).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.APIKeys(context.Background()).Deactivate(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRolesListForUser(t *testing.T) {
	store, mock := pgFixture(t)
	now := time.Now()

	mock.ExpectQuery(`from roles r join user_roles ur`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "code", "description", "is_default", "created_at", "updated_at",
		}).
			AddRow("role-1", "Admin", "ADMIN", "", false, now, now).
			AddRow("role-2", "Employee", "EMPLOYEE", "", true, now, now))

	roles, err := store.Roles(context.Background()).ListForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list for user: %v", err)
	}
	if len(roles) != 2 || roles[0].Code != RoleAdmin || roles[1].Code != RoleEmployee {
		t.Fatalf("roles = %+v", roles)
	}
}

func TestPGAuditAppend(t *testing.T) {
	store, mock := pgFixture(t)

	userID := "user-1"
	mock.ExpectExec(`insert into audit_logs`).
		WithArgs(sqlmock.AnyArg(), &userID, nil, "user_updated", "users", nil,
			[]byte(`{"active":false}`), "10.0.0.1", "curl/8").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := &AuditRecord{
		UserID:    &userID,
		Action:    "user_updated",
		Entity:    "users",
		Changes:   map[string]any{"active": false},
		IP:        "10.0.0.1",
		UserAgent: "curl/8",
	}
	if err := store.Audit(context.Background()).Append(context.Background(), rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("append must assign an id")
	}
}
