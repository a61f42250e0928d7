/*
Package sqlite provides the SQLite-backed implementation of core.TxStore.

PURPOSE:
  Implements report, user, verifier-set, and reward-ledger persistence
  using database/sql + mattn/go-sqlite3. The same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  reports:           Report rows; status and materialized verification_count
  report_verifiers:  One row per distinct verification; the uniqueness
                     constraint IS the verifier-set invariant
  users:             Profiles plus the cached point balance
  reward_log:        Immutable ledger of point awards

APPEND-ONLY ENFORCEMENT:
  reward_log is insert-only: no UPDATE or DELETE statements exist for it.
  The unique index on (report_id, award_type) makes the no-double-award
  guarantee hold even if two racing transactions both pass the in-code
  pre-check - the second insert fails at commit and its whole unit rolls
  back.

CONCURRENCY:
  A store-level mutex serializes writers on top of WAL mode. Lifecycle
  operations run inside WithTx, so a report write, ledger append, and
  balance increment land together or not at all.

USAGE:
  store, err := sqlite.New("./data/reports.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - core/store.go: Interface definitions
  - core/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cleanmap/waste-engine/core"
)

// Store implements core.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT,
		role TEXT NOT NULL DEFAULT 'user',
		points INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		image_url TEXT NOT NULL,
		reporter_id TEXT NOT NULL REFERENCES users(id),
		status TEXT NOT NULL DEFAULT 'Reported',
		verification_count INTEGER NOT NULL DEFAULT 0 CHECK (verification_count >= 0),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_reporter
		ON reports(reporter_id);
	CREATE INDEX IF NOT EXISTS idx_reports_status
		ON reports(status);
	CREATE INDEX IF NOT EXISTS idx_reports_created
		ON reports(created_at DESC);

	-- The verifier set as an owned collection: the primary key enforces
	-- that each user verifies a report at most once.
	CREATE TABLE IF NOT EXISTS report_verifiers (
		report_id TEXT NOT NULL REFERENCES reports(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		created_at TEXT NOT NULL,
		PRIMARY KEY (report_id, user_id)
	);

	-- Reward ledger (append-only: insert-only, no update, no delete)
	CREATE TABLE IF NOT EXISTS reward_log (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		award_type TEXT NOT NULL,
		points INTEGER NOT NULL CHECK (points >= 0),
		report_id TEXT NOT NULL REFERENCES reports(id),
		description TEXT,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: at most one award per (report, type). This is the
	-- no-double-award guarantee at its last line of defense.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_reward_once
		ON reward_log(report_id, award_type);

	CREATE INDEX IF NOT EXISTS idx_reward_log_user
		ON reward_log(user_id, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer abstracts *sql.DB and *sql.Tx so the same statements serve both
// direct calls and WithTx units.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// REPORTS
// =============================================================================

func (s *Store) GetReport(ctx context.Context, id core.ReportID) (*core.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getReport(ctx, s.db, id)
}

func (s *Store) getReport(ctx context.Context, db execer, id core.ReportID) (*core.Report, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, title, description, lat, lng, image_url, reporter_id,
		       status, verification_count, created_at
		FROM reports WHERE id = ?`, id)

	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StorageError{Op: "get report", Err: err}
	}

	verifiers, err := s.loadVerifiers(ctx, db, id)
	if err != nil {
		return nil, err
	}
	r.VerifierIDs = verifiers
	return &r, nil
}

func (s *Store) loadVerifiers(ctx context.Context, db execer, id core.ReportID) ([]core.UserID, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT user_id FROM report_verifiers WHERE report_id = ? ORDER BY created_at ASC, user_id ASC", id)
	if err != nil {
		return nil, &core.StorageError{Op: "load verifiers", Err: err}
	}
	defer rows.Close()

	var verifiers []core.UserID
	for rows.Next() {
		var uid core.UserID
		if err := rows.Scan(&uid); err != nil {
			return nil, &core.StorageError{Op: "scan verifier", Err: err}
		}
		verifiers = append(verifiers, uid)
	}
	return verifiers, rows.Err()
}

func (s *Store) SaveReport(ctx context.Context, r core.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveReport(ctx, s.db, r)
}

func (s *Store) saveReport(ctx context.Context, db execer, r core.Report) error {
	// Title, description, location, image and reporter are immutable after
	// creation; only status and the materialized count ever change.
	query := `
		INSERT INTO reports
		(id, title, description, lat, lng, image_url, reporter_id, status, verification_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			verification_count = excluded.verification_count
	`
	_, err := db.ExecContext(ctx, query,
		r.ID, r.Title, r.Description, r.Location.Lat, r.Location.Lng,
		r.ImageURL, r.ReporterID, r.Status, r.VerificationCount,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return &core.StorageError{Op: "save report", Err: err}
	}
	return nil
}

func (s *Store) ListReports(ctx context.Context) ([]core.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryReports(ctx, s.db, `
		SELECT id, title, description, lat, lng, image_url, reporter_id,
		       status, verification_count, created_at
		FROM reports ORDER BY created_at DESC, rowid DESC`)
}

func (s *Store) ListReportsByReporter(ctx context.Context, reporter core.UserID) ([]core.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryReports(ctx, s.db, `
		SELECT id, title, description, lat, lng, image_url, reporter_id,
		       status, verification_count, created_at
		FROM reports WHERE reporter_id = ? ORDER BY created_at DESC, rowid DESC`, reporter)
}

func (s *Store) CountReportsByReporter(ctx context.Context, reporter core.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countReportsByReporter(ctx, s.db, reporter)
}

func (s *Store) countReportsByReporter(ctx context.Context, db execer, reporter core.UserID) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reports WHERE reporter_id = ?", reporter).Scan(&count)
	if err != nil {
		return 0, &core.StorageError{Op: "count reports", Err: err}
	}
	return count, nil
}

func (s *Store) queryReports(ctx context.Context, db execer, query string, args ...any) ([]core.Report, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &core.StorageError{Op: "query reports", Err: err}
	}
	defer rows.Close()

	var reports []core.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, &core.StorageError{Op: "scan report", Err: err}
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: "query reports", Err: err}
	}

	// List views carry the verifier set too; the handlers expose it.
	for i := range reports {
		verifiers, err := s.loadVerifiers(ctx, db, reports[i].ID)
		if err != nil {
			return nil, err
		}
		reports[i].VerifierIDs = verifiers
	}
	return reports, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (core.Report, error) {
	var (
		r         core.Report
		createdAt string
	)
	err := row.Scan(
		&r.ID, &r.Title, &r.Description, &r.Location.Lat, &r.Location.Lng,
		&r.ImageURL, &r.ReporterID, &r.Status, &r.VerificationCount, &createdAt,
	)
	if err != nil {
		return r, err
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return r, nil
}

func (s *Store) AddVerifier(ctx context.Context, reportID core.ReportID, userID core.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addVerifier(ctx, s.db, reportID, userID)
}

func (s *Store) addVerifier(ctx context.Context, db execer, reportID core.ReportID, userID core.UserID) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO report_verifiers (report_id, user_id, created_at) VALUES (?, ?, ?)",
		reportID, userID, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.ErrAlreadyVerified
		}
		return &core.StorageError{Op: "add verifier", Err: err}
	}
	return nil
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) GetUser(ctx context.Context, id core.UserID) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getUser(ctx, s.db, id)
}

func (s *Store) getUser(ctx context.Context, db execer, id core.UserID) (*core.User, error) {
	var (
		u         core.User
		email     sql.NullString
		createdAt string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, username, email, role, points, created_at FROM users WHERE id = ?", id).
		Scan(&u.ID, &u.Username, &email, &u.Role, &u.Points, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &core.StorageError{Op: "get user", Err: err}
	}
	u.Email = email.String
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &u, nil
}

func (s *Store) SaveUser(ctx context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveUser(ctx, s.db, u)
}

func (s *Store) saveUser(ctx context.Context, db execer, u core.User) error {
	// Balance is deliberately absent from the update clause: points move
	// through AddPoints only.
	query := `
		INSERT INTO users (id, username, email, role, points, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			email = excluded.email,
			role = excluded.role
	`
	_, err := db.ExecContext(ctx, query,
		u.ID, u.Username, u.Email, u.Role, u.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return &core.StorageError{Op: "save user", Err: err}
	}
	return nil
}

func (s *Store) AddPoints(ctx context.Context, id core.UserID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addPoints(ctx, s.db, id, delta)
}

func (s *Store) addPoints(ctx context.Context, db execer, id core.UserID, delta int) error {
	res, err := db.ExecContext(ctx,
		"UPDATE users SET points = points + ? WHERE id = ?", delta, id)
	if err != nil {
		return &core.StorageError{Op: "add points", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &core.StorageError{Op: "add points", Err: err}
	}
	if n == 0 {
		return core.ErrUserNotFound
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listUsers(ctx, s.db)
}

func (s *Store) listUsers(ctx context.Context, db execer) ([]core.User, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, username, email, role, points, created_at FROM users ORDER BY rowid ASC")
	if err != nil {
		return nil, &core.StorageError{Op: "list users", Err: err}
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var (
			u         core.User
			email     sql.NullString
			createdAt string
		)
		if err := rows.Scan(&u.ID, &u.Username, &email, &u.Role, &u.Points, &createdAt); err != nil {
			return nil, &core.StorageError{Op: "scan user", Err: err}
		}
		u.Email = email.String
		u.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

// =============================================================================
// REWARD LEDGER (append-only)
// =============================================================================

func (s *Store) AppendAward(ctx context.Context, e core.RewardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendAward(ctx, s.db, e)
}

func (s *Store) appendAward(ctx context.Context, db execer, e core.RewardEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO reward_log (id, user_id, award_type, points, report_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Type, e.Points, e.ReportID, e.Description,
		e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.ErrDuplicateAward
		}
		return &core.StorageError{Op: "append award", Err: err}
	}
	return nil
}

func (s *Store) AwardExists(ctx context.Context, reportID core.ReportID, t core.RewardType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.awardExists(ctx, s.db, reportID, t)
}

func (s *Store) awardExists(ctx context.Context, db execer, reportID core.ReportID, t core.RewardType) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reward_log WHERE report_id = ? AND award_type = ?",
		reportID, t).Scan(&count)
	if err != nil {
		return false, &core.StorageError{Op: "check award", Err: err}
	}
	return count > 0, nil
}

func (s *Store) AwardsByUser(ctx context.Context, id core.UserID, limit int) ([]core.RewardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.awardsByUser(ctx, s.db, id, limit)
}

func (s *Store) awardsByUser(ctx context.Context, db execer, id core.UserID, limit int) ([]core.RewardEntry, error) {
	query := `
		SELECT id, user_id, award_type, points, report_id, description, created_at
		FROM reward_log WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
	`
	args := []any{id}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &core.StorageError{Op: "query awards", Err: err}
	}
	defer rows.Close()

	var entries []core.RewardEntry
	for rows.Next() {
		var (
			e           core.RewardEntry
			description sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Type, &e.Points, &e.ReportID, &description, &createdAt); err != nil {
			return nil, &core.StorageError{Op: "scan award", Err: err}
		}
		e.Description = description.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (core.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. The store mutex is
// held for the whole unit, serializing concurrent lifecycle operations.
func (s *Store) WithTx(ctx context.Context, fn func(core.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.StorageError{Op: "begin transaction", Err: err}
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		// A cancelled caller rolls back; no partial state becomes visible.
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return &core.StorageError{Op: "commit transaction", Err: err}
	}
	return nil
}

type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) GetReport(ctx context.Context, id core.ReportID) (*core.Report, error) {
	return ts.parent.getReport(ctx, ts.tx, id)
}

func (ts *txStore) SaveReport(ctx context.Context, r core.Report) error {
	return ts.parent.saveReport(ctx, ts.tx, r)
}

func (ts *txStore) ListReports(ctx context.Context) ([]core.Report, error) {
	return ts.parent.queryReports(ctx, ts.tx, `
		SELECT id, title, description, lat, lng, image_url, reporter_id,
		       status, verification_count, created_at
		FROM reports ORDER BY created_at DESC, rowid DESC`)
}

func (ts *txStore) ListReportsByReporter(ctx context.Context, reporter core.UserID) ([]core.Report, error) {
	return ts.parent.queryReports(ctx, ts.tx, `
		SELECT id, title, description, lat, lng, image_url, reporter_id,
		       status, verification_count, created_at
		FROM reports WHERE reporter_id = ? ORDER BY created_at DESC, rowid DESC`, reporter)
}

func (ts *txStore) CountReportsByReporter(ctx context.Context, reporter core.UserID) (int, error) {
	return ts.parent.countReportsByReporter(ctx, ts.tx, reporter)
}

func (ts *txStore) AddVerifier(ctx context.Context, reportID core.ReportID, userID core.UserID) error {
	return ts.parent.addVerifier(ctx, ts.tx, reportID, userID)
}

func (ts *txStore) GetUser(ctx context.Context, id core.UserID) (*core.User, error) {
	return ts.parent.getUser(ctx, ts.tx, id)
}

func (ts *txStore) SaveUser(ctx context.Context, u core.User) error {
	return ts.parent.saveUser(ctx, ts.tx, u)
}

func (ts *txStore) AddPoints(ctx context.Context, id core.UserID, delta int) error {
	return ts.parent.addPoints(ctx, ts.tx, id, delta)
}

func (ts *txStore) ListUsers(ctx context.Context) ([]core.User, error) {
	return ts.parent.listUsers(ctx, ts.tx)
}

func (ts *txStore) AppendAward(ctx context.Context, e core.RewardEntry) error {
	return ts.parent.appendAward(ctx, ts.tx, e)
}

func (ts *txStore) AwardExists(ctx context.Context, reportID core.ReportID, t core.RewardType) (bool, error) {
	return ts.parent.awardExists(ctx, ts.tx, reportID, t)
}

func (ts *txStore) AwardsByUser(ctx context.Context, id core.UserID, limit int) ([]core.RewardEntry, error) {
	return ts.parent.awardsByUser(ctx, ts.tx, id, limit)
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

// Compile-time interface checks.
var (
	_ core.TxStore = (*Store)(nil)
	_ core.Store   = (*txStore)(nil)
)
