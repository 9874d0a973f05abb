// Package sqlite persists activities, the progress ledger, notifications,
// and the user directory. Workflow transitions are conditional writes: the
// update predicate requires the row to still hold the expected status, so of
// two racing writers exactly one changes the row and the other observes a
// state conflict.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/iurijampa/STAMPBLUE-sub002/internal/app"
	"github.com/iurijampa/STAMPBLUE-sub002/internal/domain"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// busyTimeoutPragma makes a writer wait for the lock instead of failing with
// SQLITE_BUSY. The conditional-write predicate only reports a state conflict
// once the UPDATE actually runs, so the loser of a race must be able to
// acquire the lock and observe zero affected rows.
const busyTimeoutPragma = "_pragma=busy_timeout(5000)"

var memorySeq atomic.Int64

// Repository implements app.Repository and app.Directory on one database.
type Repository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path+"?"+busyTimeoutPragma)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a private in-memory database for tests. The shared
// cache keeps every pooled connection on the same database; the unique name
// keeps separate opens isolated from each other.
func OpenInMemory() (*Repository, error) {
	name := fmt.Sprintf("file:mem-%d?mode=memory&cache=shared&%s", memorySeq.Add(1), busyTimeoutPragma)
	db, err := sql.Open(driverName, name)
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Backup writes a consistent snapshot of the database to destPath. VACUUM
// INTO produces a valid standalone database even while writers are active.
func (r *Repository) Backup(ctx context.Context, destPath string) error {
	destPath = strings.TrimSpace(destPath)
	if destPath == "" {
		return errors.New("backup path is required")
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("backup target already exists: %s", destPath)
	}
	if _, err := r.db.ExecContext(ctx, `VACUUM INTO ?`, destPath); err != nil {
		return fmt.Errorf("vacuum into backup: %w", err)
	}
	return nil
}

func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS activities (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			image_ref TEXT NOT NULL DEFAULT '',
			quantity INTEGER NOT NULL DEFAULT 1,
			client TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL,
			deadline TEXT,
			status TEXT NOT NULL DEFAULT 'in_progress',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS progress_records (
			id TEXT PRIMARY KEY,
			activity_id TEXT NOT NULL,
			department TEXT NOT NULL,
			seq INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			completed_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(activity_id, department),
			FOREIGN KEY(activity_id) REFERENCES activities(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS progress_transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id TEXT NOT NULL,
			activity_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			actor TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			occurred_at TEXT NOT NULL,
			FOREIGN KEY(record_id) REFERENCES progress_records(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			activity_id TEXT NOT NULL,
			message TEXT NOT NULL,
			read INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			FOREIGN KEY(activity_id) REFERENCES activities(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			department TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'operator',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_progress_activity_seq ON progress_records(activity_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_progress_department_status ON progress_records(department, status);`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_record ON progress_transitions(record_id, id);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_users_department ON users(department);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// CreateActivity persists an activity and its eager ledger in one tx.
func (r *Repository) CreateActivity(ctx context.Context, activity domain.Activity, ledger []domain.ProgressRecord) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO activities(id, title, description, image_ref, quantity, client, priority, deadline, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		activity.ID,
		activity.Title,
		activity.Description,
		activity.ImageRef,
		activity.Quantity,
		activity.Client,
		string(activity.Priority),
		nullableTS(activity.Deadline),
		string(activity.Status),
		ts(activity.CreatedAt),
		ts(activity.UpdatedAt),
	)
	if err != nil {
		return err
	}

	for _, record := range ledger {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO progress_records(id, activity_id, department, seq, status, completed_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, NULL, ?, ?)
		`,
			record.ID,
			record.ActivityID,
			string(record.Department),
			record.Seq,
			string(record.Status),
			ts(record.CreatedAt),
			ts(record.UpdatedAt),
		)
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

// GetActivity returns one activity.
func (r *Repository) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, description, image_ref, quantity, client, priority, deadline, status, created_at, updated_at
		FROM activities
		WHERE id = ?
	`, id)
	return scanActivity(row)
}

// DeleteActivity hard-deletes an activity. Dependent rows are removed in the
// same tx so the cascade never depends on the connection's pragma state.
func (r *Repository) DeleteActivity(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM notifications WHERE activity_id = ?`, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM progress_transitions WHERE activity_id = ?`, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM progress_records WHERE activity_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

// ListProgress returns an activity's ledger with full transition logs, in
// department order.
func (r *Repository) ListProgress(ctx context.Context, activityID string) ([]domain.ProgressRecord, error) {
	if _, err := r.GetActivity(ctx, activityID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, activity_id, department, seq, status, created_at, updated_at
		FROM progress_records
		WHERE activity_id = ?
		ORDER BY seq ASC
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ProgressRecord{}
	for rows.Next() {
		record, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return r.attachTransitions(ctx, activityID, out)
}

// CompleteProgress is the forward conditional write: the record must be
// pending with every earlier department completed, or zero rows change and
// the caller gets a state conflict.
func (r *Repository) CompleteProgress(ctx context.Context, activityID string, department domain.Department, tr domain.Transition, finalize bool) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE progress_records
		SET status = 'completed', completed_at = ?, updated_at = ?
		WHERE activity_id = ? AND department = ? AND status = 'pending'
		AND NOT EXISTS (
			SELECT 1 FROM progress_records p
			WHERE p.activity_id = progress_records.activity_id
			AND p.seq < progress_records.seq
			AND p.status != 'completed'
		)
	`, ts(tr.At), ts(tr.At), activityID, string(department))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = app.ErrDepartmentNotActive
		return err
	}

	if err = insertTransition(ctx, tx, activityID, department, tr); err != nil {
		return err
	}

	if finalize {
		if _, err = tx.ExecContext(ctx, `
			UPDATE activities SET status = 'completed', updated_at = ? WHERE id = ?
		`, ts(tr.At), activityID); err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

// ReturnProgress is the backward transition. Both conditional writes must
// each change exactly one row or the tx rolls back: a partial write would
// leave zero or two active departments.
func (r *Repository) ReturnProgress(ctx context.Context, activityID string, current, previous domain.Department, returned, reopened domain.Transition) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// The current record stays pending; the guarded no-op update serializes
	// against a racing advance on the same row.
	res, err := tx.ExecContext(ctx, `
		UPDATE progress_records
		SET updated_at = ?
		WHERE activity_id = ? AND department = ? AND status = 'pending'
		AND NOT EXISTS (
			SELECT 1 FROM progress_records p
			WHERE p.activity_id = progress_records.activity_id
			AND p.seq < progress_records.seq
			AND p.status != 'completed'
		)
	`, ts(returned.At), activityID, string(current))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = app.ErrDepartmentNotActive
		return err
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE progress_records
		SET status = 'pending', completed_at = NULL, updated_at = ?
		WHERE activity_id = ? AND department = ? AND status = 'completed'
	`, ts(reopened.At), activityID, string(previous))
	if err != nil {
		return err
	}
	affected, err = res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = app.ErrPreviousNotCompleted
		return err
	}

	if err = insertTransition(ctx, tx, activityID, current, returned); err != nil {
		return err
	}
	if err = insertTransition(ctx, tx, activityID, previous, reopened); err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

// ListActiveForDepartment returns activities whose active record belongs to
// the department, deadline ascending with null deadlines last.
func (r *Repository) ListActiveForDepartment(ctx context.Context, department domain.Department) ([]domain.Activity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.title, a.description, a.image_ref, a.quantity, a.client, a.priority, a.deadline, a.status, a.created_at, a.updated_at
		FROM activities a
		JOIN progress_records pr ON pr.activity_id = a.id AND pr.department = ?
		WHERE a.status != 'completed'
		AND pr.status = 'pending'
		AND NOT EXISTS (
			SELECT 1 FROM progress_records q
			WHERE q.activity_id = a.id AND q.seq < pr.seq AND q.status != 'completed'
		)
		ORDER BY a.deadline IS NULL, a.deadline ASC, a.created_at ASC
	`, string(department))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Activity{}
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, activity)
	}
	return out, rows.Err()
}

// ListCompletedForDepartment returns activities that passed through the
// department, most recent completion first.
func (r *Repository) ListCompletedForDepartment(ctx context.Context, department domain.Department) ([]app.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.title, a.description, a.image_ref, a.quantity, a.client, a.priority, a.deadline, a.status, a.created_at, a.updated_at,
		       pr.id, pr.activity_id, pr.department, pr.seq, pr.status, pr.created_at, pr.updated_at
		FROM progress_records pr
		JOIN activities a ON a.id = pr.activity_id
		WHERE pr.department = ? AND pr.status = 'completed'
		ORDER BY pr.completed_at DESC
	`, string(department))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []app.HistoryEntry{}
	for rows.Next() {
		var entry app.HistoryEntry
		var (
			deadline    sql.NullString
			aCreatedRaw string
			aUpdatedRaw string
			priority    string
			aStatus     string
			dept        string
			pStatus     string
			pCreatedRaw string
			pUpdatedRaw string
		)
		if err := rows.Scan(
			&entry.Activity.ID, &entry.Activity.Title, &entry.Activity.Description, &entry.Activity.ImageRef,
			&entry.Activity.Quantity, &entry.Activity.Client, &priority, &deadline, &aStatus, &aCreatedRaw, &aUpdatedRaw,
			&entry.Progress.ID, &entry.Progress.ActivityID, &dept, &entry.Progress.Seq, &pStatus, &pCreatedRaw, &pUpdatedRaw,
		); err != nil {
			return nil, err
		}
		entry.Activity.Priority = domain.Priority(priority)
		entry.Activity.Status = domain.ActivityStatus(aStatus)
		entry.Activity.Deadline = parseNullTS(deadline)
		entry.Activity.CreatedAt = parseTS(aCreatedRaw)
		entry.Activity.UpdatedAt = parseTS(aUpdatedRaw)
		entry.Progress.Department = domain.Department(dept)
		entry.Progress.Status = domain.ProgressStatus(pStatus)
		entry.Progress.CreatedAt = parseTS(pCreatedRaw)
		entry.Progress.UpdatedAt = parseTS(pUpdatedRaw)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		transitions, err := r.transitionsForRecord(ctx, out[i].Progress.ID)
		if err != nil {
			return nil, err
		}
		out[i].Progress.Transitions = transitions
	}
	return out, nil
}

// CountActivities returns total and completed activity counts.
func (r *Repository) CountActivities(ctx context.Context) (int, int, error) {
	var total, completed int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(status = 'completed'), 0) FROM activities
	`).Scan(&total, &completed)
	if err != nil {
		return 0, 0, err
	}
	return total, completed, nil
}

// CountActiveByDepartment groups in-flight activities by their active
// department.
func (r *Repository) CountActiveByDepartment(ctx context.Context) (map[domain.Department]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pr.department, COUNT(*)
		FROM progress_records pr
		JOIN activities a ON a.id = pr.activity_id
		WHERE a.status != 'completed'
		AND pr.status = 'pending'
		AND NOT EXISTS (
			SELECT 1 FROM progress_records q
			WHERE q.activity_id = pr.activity_id AND q.seq < pr.seq AND q.status != 'completed'
		)
		GROUP BY pr.department
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[domain.Department]int{}
	for rows.Next() {
		var dept string
		var count int
		if err := rows.Scan(&dept, &count); err != nil {
			return nil, err
		}
		out[domain.Department(dept)] = count
	}
	return out, rows.Err()
}

// CreateNotifications persists the recipient fan-out of one mutation in one tx.
func (r *Repository) CreateNotifications(ctx context.Context, notifications []domain.Notification) (err error) {
	if len(notifications) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, n := range notifications {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO notifications(id, user_id, activity_id, message, read, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, n.ID, n.UserID, n.ActivityID, n.Message, boolToInt(n.Read), ts(n.CreatedAt))
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

// ListNotificationsForUser returns one user's feed, newest first.
func (r *Repository) ListNotificationsForUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, activity_id, message, read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Notification{}
	for rows.Next() {
		var (
			n          domain.Notification
			read       int
			createdRaw string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.ActivityID, &n.Message, &read, &createdRaw); err != nil {
			return nil, err
		}
		n.Read = read != 0
		n.CreatedAt = parseTS(createdRaw)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flags one feed entry; the user scoping prevents
// marking another user's notification.
func (r *Repository) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?
	`, notificationID, userID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// CreateUser persists a directory entry.
func (r *Repository) CreateUser(ctx context.Context, user domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users(id, name, department, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, user.ID, user.Name, string(user.Department), string(user.Role), ts(user.CreatedAt))
	return err
}

// GetUser returns one directory entry.
func (r *Repository) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, department, role, created_at FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

// ListUsersByDepartment returns the operators sharing a department login.
func (r *Repository) ListUsersByDepartment(ctx context.Context, department domain.Department) ([]domain.User, error) {
	return r.listUsers(ctx, `SELECT id, name, department, role, created_at FROM users WHERE department = ? ORDER BY name ASC`, string(department))
}

// ListAdmins returns administrative users.
func (r *Repository) ListAdmins(ctx context.Context) ([]domain.User, error) {
	return r.listUsers(ctx, `SELECT id, name, department, role, created_at FROM users WHERE role = 'admin' ORDER BY name ASC`)
}

func (r *Repository) listUsers(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

// attachTransitions loads every transition for the activity in one query and
// distributes them across the records.
func (r *Repository) attachTransitions(ctx context.Context, activityID string, records []domain.ProgressRecord) ([]domain.ProgressRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT record_id, kind, actor, notes, occurred_at
		FROM progress_transitions
		WHERE activity_id = ?
		ORDER BY id ASC
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byRecord := map[string][]domain.Transition{}
	for rows.Next() {
		var (
			recordID    string
			kind        string
			actor       string
			notes       string
			occurredRaw string
		)
		if err := rows.Scan(&recordID, &kind, &actor, &notes, &occurredRaw); err != nil {
			return nil, err
		}
		byRecord[recordID] = append(byRecord[recordID], domain.Transition{
			Kind:  domain.TransitionKind(kind),
			Actor: actor,
			Notes: notes,
			At:    parseTS(occurredRaw),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Transitions = byRecord[records[i].ID]
	}
	return records, nil
}

func (r *Repository) transitionsForRecord(ctx context.Context, recordID string) ([]domain.Transition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, actor, notes, occurred_at
		FROM progress_transitions
		WHERE record_id = ?
		ORDER BY id ASC
	`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Transition{}
	for rows.Next() {
		var (
			kind        string
			actor       string
			notes       string
			occurredRaw string
		)
		if err := rows.Scan(&kind, &actor, &notes, &occurredRaw); err != nil {
			return nil, err
		}
		out = append(out, domain.Transition{
			Kind:  domain.TransitionKind(kind),
			Actor: actor,
			Notes: notes,
			At:    parseTS(occurredRaw),
		})
	}
	return out, rows.Err()
}

type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

func insertTransition(ctx context.Context, execer execerContext, activityID string, department domain.Department, tr domain.Transition) error {
	_, err := execer.ExecContext(ctx, `
		INSERT INTO progress_transitions(record_id, activity_id, kind, actor, notes, occurred_at)
		SELECT id, activity_id, ?, ?, ?, ?
		FROM progress_records
		WHERE activity_id = ? AND department = ?
	`, string(tr.Kind), tr.Actor, tr.Notes, ts(tr.At), activityID, string(department))
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(s scanner) (domain.Activity, error) {
	var (
		a          domain.Activity
		priority   string
		deadline   sql.NullString
		status     string
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&a.ID, &a.Title, &a.Description, &a.ImageRef, &a.Quantity, &a.Client, &priority, &deadline, &status, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Activity{}, app.ErrNotFound
		}
		return domain.Activity{}, err
	}
	a.Priority = domain.Priority(priority)
	a.Status = domain.ActivityStatus(status)
	a.Deadline = parseNullTS(deadline)
	a.CreatedAt = parseTS(createdRaw)
	a.UpdatedAt = parseTS(updatedRaw)
	return a, nil
}

func scanProgress(s scanner) (domain.ProgressRecord, error) {
	var (
		record     domain.ProgressRecord
		dept       string
		status     string
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&record.ID, &record.ActivityID, &dept, &record.Seq, &status, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ProgressRecord{}, app.ErrNotFound
		}
		return domain.ProgressRecord{}, err
	}
	record.Department = domain.Department(dept)
	record.Status = domain.ProgressStatus(status)
	record.CreatedAt = parseTS(createdRaw)
	record.UpdatedAt = parseTS(updatedRaw)
	return record, nil
}

func scanUser(s scanner) (domain.User, error) {
	var (
		user       domain.User
		dept       string
		role       string
		createdRaw string
	)
	if err := s.Scan(&user.ID, &user.Name, &dept, &role, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, app.ErrNotFound
		}
		return domain.User{}, err
	}
	user.Department = domain.Department(dept)
	user.Role = domain.Role(role)
	user.CreatedAt = parseTS(createdRaw)
	return user, nil
}

func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(v string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	parsed := parseTS(v.String)
	return &parsed
}
