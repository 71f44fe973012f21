package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/pbaille/learnlog/internal/domain"
)

//go:embed schema.sql
var schema string

// Store handles database operations
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// CreateUser inserts an account; the email must be unused
func (s *Store) CreateUser(email, name, passwordHash string) (*domain.User, error) {
	user := &domain.User{
		ID:        uuid.New().String(),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Name:      name,
		CreatedAt: s.now(),
	}

	_, err := s.db.Exec(
		"INSERT INTO users (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		user.ID, user.Email, user.Name, passwordHash, user.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("user %s: %w", user.Email, ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

// UserByEmail returns the user and its password hash
func (s *Store) UserByEmail(email string) (*domain.User, string, error) {
	var u domain.User
	var hash string
	err := s.db.QueryRow(
		"SELECT id, email, name, verified, created_at, password_hash FROM users WHERE email = ?",
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&u.ID, &u.Email, &u.Name, &u.Verified, &u.CreatedAt, &hash)
	if err == sql.ErrNoRows {
		return nil, "", fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("get user: %w", err)
	}
	return &u, hash, nil
}

// UserByID returns the user with the given id
func (s *Store) UserByID(id string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRow(
		"SELECT id, email, name, verified, created_at FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Verified, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// SaveOTP replaces the pending one-time code for userID
func (s *Store) SaveOTP(userID, codeHash string, expiresAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO otps (user_id, code_hash, attempts, expires_at) VALUES (?, ?, 0, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			code_hash = excluded.code_hash,
			attempts = 0,
			expires_at = excluded.expires_at
	`, userID, codeHash, expiresAt)
	if err != nil {
		return fmt.Errorf("save otp: %w", err)
	}
	return nil
}

// PendingOTP is a stored one-time code awaiting verification
type PendingOTP struct {
	CodeHash  string
	Attempts  int
	ExpiresAt time.Time
}

// OTP returns the pending code for userID
func (s *Store) OTP(userID string) (*PendingOTP, error) {
	var p PendingOTP
	err := s.db.QueryRow(
		"SELECT code_hash, attempts, expires_at FROM otps WHERE user_id = ?", userID,
	).Scan(&p.CodeHash, &p.Attempts, &p.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("otp for %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get otp: %w", err)
	}
	return &p, nil
}

// RecordOTPFailure counts a wrong guess and returns the new attempt count
func (s *Store) RecordOTPFailure(userID string) (int, error) {
	var attempts int
	err := s.db.QueryRow(
		"UPDATE otps SET attempts = attempts + 1 WHERE user_id = ? RETURNING attempts", userID,
	).Scan(&attempts)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("otp for %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("record otp failure: %w", err)
	}
	return attempts, nil
}

// DeleteOTP drops the pending code for userID
func (s *Store) DeleteOTP(userID string) error {
	if _, err := s.db.Exec("DELETE FROM otps WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

// MarkVerified flags the user's email as confirmed and drops its pending code
func (s *Store) MarkVerified(userID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE users SET verified = 1 WHERE id = ?", userID)
	if err != nil {
		return fmt.Errorf("verify user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if _, err := tx.Exec("DELETE FROM otps WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return tx.Commit()
}

// CreateToken issues a bearer token for userID
func (s *Store) CreateToken(userID string) (string, error) {
	token := uuid.New().String()
	_, err := s.db.Exec(
		"INSERT INTO tokens (token, user_id, created_at) VALUES (?, ?, ?)",
		token, userID, s.now(),
	)
	if err != nil {
		return "", fmt.Errorf("insert token: %w", err)
	}
	return token, nil
}

// UserByToken resolves a bearer token
func (s *Store) UserByToken(token string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRow(`
		SELECT u.id, u.email, u.name, u.verified, u.created_at
		FROM users u
		JOIN tokens t ON t.user_id = u.id
		WHERE t.token = ?
	`, token).Scan(&u.ID, &u.Email, &u.Name, &u.Verified, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("token: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get token user: %w", err)
	}
	return &u, nil
}

// DeleteToken revokes a bearer token
func (s *Store) DeleteToken(token string) error {
	if _, err := s.db.Exec("DELETE FROM tokens WHERE token = ?", token); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// CreateCategory adds a category; names are unique per user
func (s *Store) CreateCategory(userID, name string) (*domain.Category, error) {
	cat := &domain.Category{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		CreatedAt: s.now(),
	}

	_, err := s.db.Exec(
		"INSERT INTO categories (id, user_id, name, created_at) VALUES (?, ?, ?, ?)",
		cat.ID, userID, cat.Name, cat.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("category %q: %w", cat.Name, ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return cat, nil
}

// ListCategories returns the user's categories by name
func (s *Store) ListCategories(userID string) ([]domain.Category, error) {
	rows, err := s.db.Query(
		"SELECT id, name, created_at FROM categories WHERE user_id = ? ORDER BY name",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) checkCategory(userID, categoryID string) error {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM categories WHERE id = ? AND user_id = ?",
		categoryID, userID,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category %s: %w", categoryID, ErrUnknownCategory)
	}
	return nil
}

const resourceColumns = `
	r.id, r.title, r.type, r.description, r.estimated_time,
	r.is_completed, r.actual_time_spent, r.completed_at, r.created_at,
	c.id, c.name`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (*domain.Resource, error) {
	var (
		r           domain.Resource
		typ         string
		actual      sql.NullInt64
		completedAt sql.NullTime
		catID       sql.NullString
		catName     sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.Title, &typ, &r.Description, &r.EstimatedTime,
		&r.IsCompleted, &actual, &completedAt, &r.CreatedAt,
		&catID, &catName,
	)
	if err != nil {
		return nil, err
	}

	r.Type = domain.ResourceType(typ)
	if actual.Valid {
		n := int(actual.Int64)
		r.ActualTimeSpent = &n
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	if catID.Valid {
		r.Category = &domain.Category{ID: catID.String, Name: catName.String}
	}
	return &r, nil
}

// CreateResource inserts a resource under one of the user's categories
func (s *Store) CreateResource(userID string, in domain.ResourceInput) (*domain.Resource, error) {
	if err := s.checkCategory(userID, in.Category); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	_, err := s.db.Exec(`
		INSERT INTO resources (id, user_id, title, type, category_id, description, estimated_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, strings.TrimSpace(in.Title), string(in.Type), in.Category,
		in.Description, in.EstimatedTime, s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert resource: %w", err)
	}
	return s.GetResource(userID, id)
}

// GetResource retrieves a resource with its category
func (s *Store) GetResource(userID, id string) (*domain.Resource, error) {
	row := s.db.QueryRow(`
		SELECT `+resourceColumns+`
		FROM resources r
		LEFT JOIN categories c ON c.id = r.category_id
		WHERE r.id = ? AND r.user_id = ?`,
		id, userID,
	)
	r, err := scanResource(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("resource %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	return r, nil
}

// ListResources returns the user's resources, newest first
func (s *Store) ListResources(userID string) ([]domain.Resource, error) {
	rows, err := s.db.Query(`
		SELECT `+resourceColumns+`
		FROM resources r
		LEFT JOIN categories c ON c.id = r.category_id
		WHERE r.user_id = ?
		ORDER BY r.created_at DESC, r.rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	resources := []domain.Resource{}
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		resources = append(resources, *r)
	}
	return resources, rows.Err()
}

// UpdateResource replaces the editable fields; completion state is kept
func (s *Store) UpdateResource(userID, id string, in domain.ResourceInput) (*domain.Resource, error) {
	if err := s.checkCategory(userID, in.Category); err != nil {
		return nil, err
	}

	res, err := s.db.Exec(`
		UPDATE resources
		SET title = ?, type = ?, category_id = ?, description = ?, estimated_time = ?
		WHERE id = ? AND user_id = ?`,
		strings.TrimSpace(in.Title), string(in.Type), in.Category, in.Description, in.EstimatedTime,
		id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update resource: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("resource %s: %w", id, ErrNotFound)
	}
	return s.GetResource(userID, id)
}

// DeleteResource removes a resource
func (s *Store) DeleteResource(userID, id string) error {
	res, err := s.db.Exec("DELETE FROM resources WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("resource %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkComplete records the minutes spent and the completion time.
// A resource can only be completed once.
func (s *Store) MarkComplete(userID, id string, minutes int) (*domain.Resource, error) {
	res, err := s.db.Exec(`
		UPDATE resources
		SET is_completed = 1, actual_time_spent = ?, completed_at = ?
		WHERE id = ? AND user_id = ? AND is_completed = 0`,
		minutes, s.now(), id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("mark complete: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		existing, err := s.GetResource(userID, id)
		if err != nil {
			return nil, err
		}
		if existing.IsCompleted {
			return nil, fmt.Errorf("resource %s: %w", id, ErrAlreadyCompleted)
		}
		return nil, fmt.Errorf("mark complete %s: no rows updated", id)
	}
	return s.GetResource(userID, id)
}

// Summary aggregates the user's progress per category
func (s *Store) Summary(userID string) (*domain.Summary, error) {
	rows, err := s.db.Query(`
		SELECT
			COALESCE(c.name, 'Uncategorized'),
			COUNT(*),
			SUM(CASE WHEN r.is_completed = 1 THEN 1 ELSE 0 END),
			SUM(CASE WHEN r.is_completed = 1 THEN COALESCE(r.actual_time_spent, 0) ELSE 0 END)
		FROM resources r
		LEFT JOIN categories c ON c.id = r.category_id
		WHERE r.user_id = ?
		GROUP BY 1
		ORDER BY 1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	summary := &domain.Summary{CategoryStats: []domain.CategoryStat{}}
	for rows.Next() {
		var stat domain.CategoryStat
		var spent int
		if err := rows.Scan(&stat.ID, &stat.Total, &stat.Completed, &spent); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if stat.Total > 0 {
			stat.CompletionPercentage = float64(stat.Completed) / float64(stat.Total) * 100
		}
		summary.TotalResources += stat.Total
		summary.CompletedResources += stat.Completed
		summary.TotalTimeSpent += spent
		summary.CategoryStats = append(summary.CategoryStats, stat)
	}
	return summary, rows.Err()
}
