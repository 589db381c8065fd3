package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// timeLayout sorts lexically in creation order
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Store is the SQL persistence behind the server
type Store struct {
	db      *sql.DB
	dialect dialect
}

// OpenStore connects to DATABASE_URL and migrates the schema. Accepted forms
// are sqlite://<path> (sqlite://:memory: for a throwaway database) and
// postgres://...
func OpenStore(ctx context.Context, databaseURL string) (*Store, error) {
	var (
		driver, dsn string
		d           dialect
	)
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		driver, dsn, d = "sqlite", strings.TrimPrefix(databaseURL, "sqlite://"), dialectSQLite
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		driver, dsn, d = "postgres", databaseURL, dialectPostgres
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL %q", databaseURL)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if d == dialectSQLite {
		// one connection keeps :memory: databases shared and writes serialized
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $N placeholders for SQLite
func (s *Store) rebind(query string) string {
	if s.dialect == dialectSQLite {
		return placeholder.ReplaceAllString(query, "?$1")
	}
	return query
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}

// User is a registered account
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
}

// CreateUser inserts a user and returns its id
func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO users (name, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`),
		name, email, passwordHash, formatTime(time.Now()),
	).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrDuplicate
	}
	return id, err
}

// UserByEmail looks a user up for login
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, name, email, password_hash FROM users WHERE email = $1`), email))
}

// UserByID looks a user up by id
func (s *Store) UserByID(ctx context.Context, id int64) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, name, email, password_hash FROM users WHERE id = $1`), id))
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateSession records an issued token id
func (s *Store) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO sessions (id, user_id, expires_at)
		VALUES ($1, $2, $3)`),
		id, userID, formatTime(expiresAt),
	)
	return err
}

// SessionActive returns ErrNotFound unless the session exists for userID and
// has not been revoked. Expiry is enforced by the token itself.
func (s *Store) SessionActive(ctx context.Context, id string, userID int64) error {
	var revoked sql.NullString
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT revoked_at FROM sessions WHERE id = $1 AND user_id = $2`),
		id, userID,
	).Scan(&revoked)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && revoked.Valid) {
		return ErrNotFound
	}
	return err
}

// RevokeSession ends a session
func (s *Store) RevokeSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE sessions SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`),
		formatTime(time.Now()), id,
	)
	return err
}

// Activity is one stored advisor run
type Activity struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Type      string          `json:"activity_type"`
	Title     string          `json:"title"`
	Status    string          `json:"status"`
	Result    string          `json:"result"`
	Details   json.RawMessage `json:"details"`
	CreatedAt string          `json:"created_at"`
}

// ActivityPatch holds the mutable activity fields; nil fields are kept
type ActivityPatch struct {
	Status  *string
	Result  *string
	Details *string
}

const activityColumns = `id, user_id, activity_type, title, status, result, details, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanActivity(row rowScanner) (*Activity, error) {
	var (
		a       Activity
		details string
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Type, &a.Title, &a.Status, &a.Result, &details, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if json.Valid([]byte(details)) {
		a.Details = json.RawMessage(details)
	} else {
		a.Details = json.RawMessage(`{}`)
	}
	return &a, nil
}

// ListActivities returns one page of a user's activities, newest first, and
// the total number matching
func (s *Store) ListActivities(ctx context.Context, userID int64, activityType string, limit, offset int) ([]Activity, int, error) {
	where := `WHERE user_id = $1`
	args := []interface{}{userID}
	if activityType != "" {
		where += ` AND activity_type = $2`
		args = append(args, activityType)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM user_activities `+where), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM user_activities %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, activityColumns, where, n+1, n+2)
	rows, err := s.db.QueryContext(ctx, s.rebind(query), append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = rows.Close()
	}()

	list := []Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *a)
	}
	return list, total, rows.Err()
}

// CreateActivity stores a new activity and returns it
func (s *Store) CreateActivity(ctx context.Context, userID int64, activityType, title, status, result, details string) (*Activity, error) {
	now := formatTime(time.Now())
	return scanActivity(s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO user_activities (user_id, activity_type, title, status, result, details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING `+activityColumns),
		userID, activityType, title, status, result, details, now,
	))
}

// GetActivity returns one of the user's activities
func (s *Store) GetActivity(ctx context.Context, userID, id int64) (*Activity, error) {
	return scanActivity(s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+activityColumns+` FROM user_activities WHERE id = $1 AND user_id = $2`),
		id, userID,
	))
}

// UpdateActivity applies patch and returns the updated activity
func (s *Store) UpdateActivity(ctx context.Context, userID, id int64, patch ActivityPatch) (*Activity, error) {
	return scanActivity(s.db.QueryRowContext(ctx, s.rebind(`
		UPDATE user_activities SET
			status = COALESCE($1, status),
			result = COALESCE($2, result),
			details = COALESCE($3, details),
			updated_at = $4
		WHERE id = $5 AND user_id = $6
		RETURNING `+activityColumns),
		nullable(patch.Status), nullable(patch.Result), nullable(patch.Details),
		formatTime(time.Now()), id, userID,
	))
}

// DeleteActivity removes one of the user's activities
func (s *Store) DeleteActivity(ctx context.Context, userID, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		DELETE FROM user_activities WHERE id = $1 AND user_id = $2`),
		id, userID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
