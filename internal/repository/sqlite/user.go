package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/cryptonite/profiles/internal/apperror"
	"github.com/cryptonite/profiles/internal/model"
	"github.com/cryptonite/profiles/internal/repository"
)

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

const userColumns = `id, username, full_name, location, password, photo, switch_state,
	author_photo, author_rank, created_at, updated_at`

// UserStore is the SQLite-backed user repository.
//
// It only needs a *sql.DB, which keeps it usable with go-sqlmock in tests.
type UserStore struct {
	conn *sql.DB
}

// NewUserStore creates a UserStore on an open connection pool whose schema
// is already migrated.
func NewUserStore(conn *sql.DB) *UserStore {
	return &UserStore{conn: conn}
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	var switchState string
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.FullName,
		&u.Location,
		&u.PasswordHash,
		&u.Photo,
		&switchState,
		&u.AuthorPhoto,
		&u.AuthorRank,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.SwitchState = model.SwitchState(switchState)
	return &u, nil
}

// Create inserts a new user. The database assigns the ID.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	if user.SwitchState == "" {
		user.SwitchState = model.SwitchOff
	}

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (username, full_name, location, password, photo, switch_state,
			author_photo, author_rank, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.FullName,
		user.Location,
		user.PasswordHash,
		user.Photo,
		string(user.SwitchState),
		user.AuthorPhoto,
		user.AuthorRank,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading id of user %q: %w", user.Username, err)
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetByUsername retrieves a user by username.
// Returns apperror.ErrNotFound if no user has that username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user %q: %w", username, err)
	}
	return u, nil
}

// GetByID retrieves a user by ID.
// Returns apperror.ErrNotFound if no user has that ID.
func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", fmt.Sprint(id))
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return u, nil
}

// List returns all users ordered by ID.
func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

// RecentUsernames returns the usernames of the most recent signups. IDs are
// assigned in insertion order, so the highest IDs are the newest accounts.
func (s *UserStore) RecentUsernames(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT username FROM users ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recent users: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite: scanning username: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating recent users: %w", err)
	}
	return names, nil
}

// Update writes the mutable fields of user, keyed by username. The password,
// id and username are never changed here.
func (s *UserStore) Update(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()

	res, err := s.conn.ExecContext(ctx,
		`UPDATE users
		 SET full_name = ?, location = ?, photo = ?, switch_state = ?,
		     author_photo = ?, author_rank = ?, updated_at = ?
		 WHERE username = ?`,
		user.FullName,
		user.Location,
		user.Photo,
		string(user.SwitchState),
		user.AuthorPhoto,
		user.AuthorRank,
		now,
		user.Username,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %q: %w", user.Username, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking update of user %q: %w", user.Username, err)
	}
	if n == 0 {
		return apperror.NotFound("user", user.Username)
	}

	user.UpdatedAt = now
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure. The
// driver reports the extended code when extended result codes are enabled and
// the primary SQLITE_CONSTRAINT code otherwise.
func isUniqueViolation(err error) bool {
	var se *sqlitedriver.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}
