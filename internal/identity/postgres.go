package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"aegisid.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

// NewPGStore wraps an open database handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(context.Context) UserStore     { return &userStore{db: s.db} }
func (s *PGStore) Clients(context.Context) ClientStore { return &clientStore{db: s.db} }
func (s *PGStore) Roles(context.Context) RoleStore     { return &roleStore{db: s.db} }
func (s *PGStore) APIKeys(context.Context) APIKeyStore { return &apiKeyStore{db: s.db} }
func (s *PGStore) Audit(context.Context) AuditStore    { return &auditStore{db: s.db} }

// User store ---------------------------------------------------------------

type userStore struct{ db *sql.DB }

const userColumns = `id, email, password_hash, first_name, last_name, coalesce(phone, ''),
	is_active, is_verified, last_login_at, created_at, updated_at, deleted_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone,
		&u.Active, &u.Verified, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *userStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, password_hash, first_name, last_name, phone, is_active, is_verified)
		 values($1,$2,$3,$4,$5,nullif($6,''),$7,$8)`,
		u.ID, u.Email, string(u.PasswordHash), u.FirstName, u.LastName, u.Phone, u.Active, u.Verified,
	)
	return err
}

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1 and deleted_at is null`, id)
	return scanUser(row)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1 and deleted_at is null`, email)
	return scanUser(row)
}

func (s *userStore) FindByEmailOrPhone(ctx context.Context, identifier string) (*User, error) {
	if strings.Contains(identifier, "@") {
		return s.FindByEmail(ctx, strings.ToLower(identifier))
	}
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where phone=$1 and deleted_at is null`, identifier)
	return scanUser(row)
}

func (s *userStore) Save(ctx context.Context, u *User) error {
	res, err := s.db.ExecContext(ctx,
		`update users set email=$2, password_hash=$3, first_name=$4, last_name=$5,
			phone=nullif($6,''), is_active=$7, is_verified=$8, updated_at=now()
		 where id=$1 and deleted_at is null`,
		u.ID, u.Email, string(u.PasswordHash), u.FirstName, u.LastName, u.Phone, u.Active, u.Verified,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *userStore) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set deleted_at=now(), updated_at=now() where id=$1 and deleted_at is null`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *userStore) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update users set last_login_at=$2 where id=$1`, id, at)
	return err
}

// Client store -------------------------------------------------------------

type clientStore struct{ db *sql.DB }

const clientColumns = `id, email, password_hash, first_name, last_name, coalesce(phone, ''),
	coalesce(address, ''), is_active, is_verified, created_at, updated_at, deleted_at`

func scanClient(row interface{ Scan(...any) error }) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Email, &c.PasswordHash, &c.FirstName, &c.LastName, &c.Phone,
		&c.Address, &c.Active, &c.Verified, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *clientStore) Create(ctx context.Context, c *Client) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into clients(id, email, password_hash, first_name, last_name, phone, address, is_active, is_verified)
		 values($1,$2,$3,$4,$5,nullif($6,''),nullif($7,''),$8,$9)`,
		c.ID, c.Email, string(c.PasswordHash), c.FirstName, c.LastName, c.Phone, c.Address, c.Active, c.Verified,
	)
	return err
}

func (s *clientStore) Find(ctx context.Context, id string) (*Client, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+clientColumns+` from clients where id=$1 and deleted_at is null`, id)
	return scanClient(row)
}

func (s *clientStore) FindByEmailOrPhone(ctx context.Context, identifier string) (*Client, error) {
	var row *sql.Row
	if strings.Contains(identifier, "@") {
		row = s.db.QueryRowContext(ctx,
			`select `+clientColumns+` from clients where email=$1 and deleted_at is null`,
			strings.ToLower(identifier))
	} else {
		row = s.db.QueryRowContext(ctx,
			`select `+clientColumns+` from clients where phone=$1 and deleted_at is null`, identifier)
	}
	return scanClient(row)
}

func (s *clientStore) Save(ctx context.Context, c *Client) error {
	res, err := s.db.ExecContext(ctx,
		`update clients set email=$2, password_hash=$3, first_name=$4, last_name=$5,
			phone=nullif($6,''), address=nullif($7,''), is_active=$8, is_verified=$9, updated_at=now()
		 where id=$1 and deleted_at is null`,
		c.ID, c.Email, string(c.PasswordHash), c.FirstName, c.LastName, c.Phone, c.Address, c.Active, c.Verified,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *clientStore) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update clients set deleted_at=now(), updated_at=now() where id=$1 and deleted_at is null`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Role store ---------------------------------------------------------------

type roleStore struct{ db *sql.DB }

const roleColumns = `id, name, code, coalesce(description, ''), is_default, created_at, updated_at`

func scanRole(row interface{ Scan(...any) error }) (*Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.Name, &r.Code, &r.Description, &r.Default, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *roleStore) Create(ctx context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into roles(id, name, code, description, is_default)
		 values($1,$2,$3,nullif($4,''),$5)`,
		role.ID, role.Name, string(role.Code), role.Description, role.Default,
	)
	return err
}

func (s *roleStore) Find(ctx context.Context, id string) (*Role, error) {
	row := s.db.QueryRowContext(ctx, `select `+roleColumns+` from roles where id=$1`, id)
	return scanRole(row)
}

func (s *roleStore) FindByCode(ctx context.Context, code RoleCode) (*Role, error) {
	row := s.db.QueryRowContext(ctx, `select `+roleColumns+` from roles where code=$1`, string(code))
	return scanRole(row)
}

func (s *roleStore) List(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, `select `+roleColumns+` from roles order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRoles(rows)
}

func (s *roleStore) ListForUser(ctx context.Context, userID string) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select r.id, r.name, r.code, coalesce(r.description, ''), r.is_default, r.created_at, r.updated_at
		 from roles r join user_roles ur on ur.role_id = r.id
		 where ur.user_id=$1 order by r.created_at asc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRoles(rows)
}

func collectRoles(rows *sql.Rows) ([]Role, error) {
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

func (s *roleStore) Assign(ctx context.Context, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into user_roles(user_id, role_id) values($1,$2) on conflict do nothing`,
		userID, roleID)
	return err
}

func (s *roleStore) Unassign(ctx context.Context, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx,
		`delete from user_roles where user_id=$1 and role_id=$2`, userID, roleID)
	return err
}

// API key store ------------------------------------------------------------

type apiKeyStore struct{ db *sql.DB }

const apiKeyColumns = `id, client_id, key_hash, name, last_four, is_active,
	expires_at, last_used_at, created_at, updated_at, deleted_at`

func scanAPIKey(row interface{ Scan(...any) error }) (*APIKey, error) {
	var k APIKey
	err := row.Scan(&k.ID, &k.ClientID, &k.KeyHash, &k.Name, &k.LastFour, &k.Active,
		&k.ExpiresAt, &k.LastUsedAt, &k.CreatedAt, &k.UpdatedAt, &k.DeletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &k, nil
}

func (s *apiKeyStore) Create(ctx context.Context, key *APIKey) error {
	if key.ID == "" {
		key.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into api_keys(id, client_id, key_hash, name, last_four, is_active, expires_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		key.ID, key.ClientID, key.KeyHash, key.Name, key.LastFour, key.Active, key.ExpiresAt,
	)
	return err
}

func (s *apiKeyStore) FindByHash(ctx context.Context, keyHash string) (*APIKey, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+apiKeyColumns+` from api_keys where key_hash=$1 and deleted_at is null`, keyHash)
	return scanAPIKey(row)
}

func (s *apiKeyStore) ListByClient(ctx context.Context, clientID string) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+apiKeyColumns+` from api_keys where client_id=$1 and deleted_at is null order by created_at asc`,
		clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *key)
	}
	return keys, rows.Err()
}

func (s *apiKeyStore) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update api_keys set last_used_at=$2 where id=$1`, id, at)
	return err
}

func (s *apiKeyStore) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update api_keys set is_active=false, updated_at=now() where id=$1 and deleted_at is null`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Audit store --------------------------------------------------------------

type auditStore struct{ db *sql.DB }

func (s *auditStore) Append(ctx context.Context, rec *AuditRecord) error {
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	var changes []byte
	if len(rec.Changes) > 0 {
		var err error
		if changes, err = json.Marshal(rec.Changes); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx,
		`insert into audit_logs(id, user_id, client_id, action, entity, entity_id, changes, ip_address, user_agent)
		 values($1,$2,$3,$4,$5,$6,$7,nullif($8,''),nullif($9,''))`,
		rec.ID, rec.UserID, rec.ClientID, rec.Action, rec.Entity, rec.EntityID, changes, rec.IP, rec.UserAgent,
	)
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
