package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hylla/groundline/internal/app"
	"github.com/hylla/groundline/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository implements app.Repository on SQLite.
type Repository struct {
	db *sql.DB
}

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
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

// OpenInMemory opens in memory.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
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

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS activities (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			code TEXT NOT NULL,
			name TEXT NOT NULL,
			parent_id TEXT NOT NULL DEFAULT '',
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			percent INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'NOT_STARTED',
			planned_weight REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_activities_project ON activities(project_id);`,
		`CREATE INDEX IF NOT EXISTS idx_activities_parent ON activities(parent_id);`,
		`CREATE TABLE IF NOT EXISTS activity_dependencies (
			project_id TEXT NOT NULL,
			activity_id TEXT NOT NULL,
			depends_on_activity_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY(activity_id, depends_on_activity_id),
			FOREIGN KEY(activity_id) REFERENCES activities(id) ON DELETE CASCADE,
			FOREIGN KEY(depends_on_activity_id) REFERENCES activities(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_activity_dependencies_project ON activity_dependencies(project_id);`,
		`CREATE TABLE IF NOT EXISTS progress_snapshots (
			activity_id TEXT NOT NULL,
			project_id TEXT NOT NULL,
			week_start TEXT NOT NULL,
			percent INTEGER NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			recorded_at TEXT NOT NULL,
			PRIMARY KEY(activity_id, week_start),
			FOREIGN KEY(activity_id) REFERENCES activities(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS closure_records (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			activity_id TEXT NOT NULL UNIQUE,
			code TEXT NOT NULL,
			closed_at TEXT NOT NULL,
			project_manager TEXT NOT NULL DEFAULT '',
			director TEXT NOT NULL DEFAULT '',
			contractor TEXT NOT NULL DEFAULT '',
			FOREIGN KEY(activity_id) REFERENCES activities(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS change_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id TEXT NOT NULL,
			activity_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_change_events_project_created_at ON change_events(project_id, created_at DESC, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// CreateProject creates project.
func (r *Repository) CreateProject(ctx context.Context, p domain.Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects(id, slug, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.Slug, p.Name, p.Description, ts(p.CreatedAt), ts(p.UpdatedAt))
	return err
}

// GetProject returns project.
func (r *Repository) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, slug, name, description, created_at, updated_at
		FROM projects
		WHERE id = ?
	`, id)
	return scanProject(row)
}

// ListProjects lists projects.
func (r *Repository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, slug, name, description, created_at, updated_at
		FROM projects
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateActivity creates activity and records the change event in the same transaction.
func (r *Repository) CreateActivity(ctx context.Context, a domain.Activity) (err error) {
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
		INSERT INTO activities(
			id, project_id, code, name, parent_id, start_date, end_date, percent, status, planned_weight, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID,
		a.ProjectID,
		a.Code,
		a.Name,
		a.ParentID,
		domain.FormatDate(a.StartDate),
		domain.FormatDate(a.EndDate),
		a.Percent,
		string(a.Status),
		a.PlannedWeight,
		ts(a.CreatedAt),
		ts(a.UpdatedAt),
	)
	if err != nil {
		return err
	}
	err = insertChangeEvent(ctx, tx, domain.ChangeEvent{
		ProjectID:  a.ProjectID,
		ActivityID: a.ID,
		Operation:  domain.ChangeOperationCreate,
		Metadata: map[string]string{
			"code":      a.Code,
			"name":      a.Name,
			"parent_id": a.ParentID,
		},
		OccurredAt: a.CreatedAt,
	})
	if err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// UpdateActivity updates state for the requested operation.
func (r *Repository) UpdateActivity(ctx context.Context, a domain.Activity) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = updateActivity(ctx, tx, a); err != nil {
		return err
	}
	err = insertChangeEvent(ctx, tx, domain.ChangeEvent{
		ProjectID:  a.ProjectID,
		ActivityID: a.ID,
		Operation:  domain.ChangeOperationUpdate,
		Metadata:   activityEventMetadata(a),
		OccurredAt: a.UpdatedAt,
	})
	if err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// GetActivity returns activity.
func (r *Repository) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	return getActivityByID(ctx, r.db, id)
}

// ListActivities lists a project's activities in creation order.
func (r *Repository) ListActivities(ctx context.Context, projectID string) ([]domain.Activity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, code, name, parent_id, start_date, end_date, percent, status, planned_weight, created_at, updated_at
		FROM activities
		WHERE project_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Activity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateDependency creates dependency.
func (r *Repository) CreateDependency(ctx context.Context, d domain.Dependency) (err error) {
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
		INSERT INTO activity_dependencies(project_id, activity_id, depends_on_activity_id, created_at)
		VALUES (?, ?, ?, ?)
	`, d.ProjectID, d.ActivityID, d.DependsOnActivityID, ts(d.CreatedAt))
	if err != nil {
		if isUniqueConstraintErr(err) {
			err = fmt.Errorf("%w: %s -> %s", domain.ErrDuplicateDependency, d.DependsOnActivityID, d.ActivityID)
		}
		return err
	}
	err = insertChangeEvent(ctx, tx, domain.ChangeEvent{
		ProjectID:  d.ProjectID,
		ActivityID: d.ActivityID,
		Operation:  domain.ChangeOperationDependencyAdd,
		Metadata:   map[string]string{"depends_on_activity_id": d.DependsOnActivityID},
		OccurredAt: d.CreatedAt,
	})
	if err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// DeleteDependency deletes one edge; a missing edge reports app.ErrNotFound.
func (r *Repository) DeleteDependency(ctx context.Context, d domain.Dependency) (err error) {
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
		DELETE FROM activity_dependencies
		WHERE project_id = ? AND activity_id = ? AND depends_on_activity_id = ?
	`, d.ProjectID, d.ActivityID, d.DependsOnActivityID)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}
	err = insertChangeEvent(ctx, tx, domain.ChangeEvent{
		ProjectID:  d.ProjectID,
		ActivityID: d.ActivityID,
		Operation:  domain.ChangeOperationDependencyRemove,
		Metadata:   map[string]string{"depends_on_activity_id": d.DependsOnActivityID},
	})
	if err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// ListDependencies lists dependencies.
func (r *Repository) ListDependencies(ctx context.Context, projectID string) ([]domain.Dependency, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT project_id, activity_id, depends_on_activity_id, created_at
		FROM activity_dependencies
		WHERE project_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Dependency, 0)
	for rows.Next() {
		var (
			d          domain.Dependency
			createdRaw string
		)
		if err := rows.Scan(&d.ProjectID, &d.ActivityID, &d.DependsOnActivityID, &createdRaw); err != nil {
			return nil, err
		}
		d.CreatedAt = parseTS(createdRaw)
		out = append(out, d)
	}
	return out, rows.Err()
}

// SaveProgress writes the leaf, its ancestors child before parent and the weekly snapshot in one
// transaction.
func (r *Repository) SaveProgress(ctx context.Context, w app.ProgressWrite) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = updateActivity(ctx, tx, w.Leaf); err != nil {
		return err
	}
	meta := activityEventMetadata(w.Leaf)
	if w.Snapshot.Note != "" {
		meta["note"] = w.Snapshot.Note
	}
	err = insertChangeEvent(ctx, tx, domain.ChangeEvent{
		ProjectID:  w.Leaf.ProjectID,
		ActivityID: w.Leaf.ID,
		Operation:  domain.ChangeOperationProgress,
		Metadata:   meta,
		OccurredAt: w.Leaf.UpdatedAt,
	})
	if err != nil {
		return err
	}

	for _, parent := range w.Ancestors {
		if err = updateActivity(ctx, tx, parent); err != nil {
			return err
		}
		err = insertChangeEvent(ctx, tx, domain.ChangeEvent{
			ProjectID:  parent.ProjectID,
			ActivityID: parent.ID,
			Operation:  domain.ChangeOperationRollup,
			Metadata:   activityEventMetadata(parent),
			OccurredAt: parent.UpdatedAt,
		})
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO progress_snapshots(activity_id, project_id, week_start, percent, note, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(activity_id, week_start) DO UPDATE SET
			percent = excluded.percent,
			note = excluded.note,
			recorded_at = excluded.recorded_at
	`,
		w.Snapshot.ActivityID,
		w.Snapshot.ProjectID,
		domain.FormatDate(w.Snapshot.WeekStart),
		w.Snapshot.Percent,
		w.Snapshot.Note,
		ts(w.Snapshot.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert progress snapshot: %w", err)
	}
	err = tx.Commit()
	return err
}

// ListProgressSnapshots lists one activity's weekly snapshots, oldest week first.
func (r *Repository) ListProgressSnapshots(ctx context.Context, activityID string) ([]domain.ProgressSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT activity_id, project_id, week_start, percent, note, recorded_at
		FROM progress_snapshots
		WHERE activity_id = ?
		ORDER BY week_start ASC
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ProgressSnapshot, 0)
	for rows.Next() {
		var (
			snap        domain.ProgressSnapshot
			weekRaw     string
			recordedRaw string
		)
		if err := rows.Scan(&snap.ActivityID, &snap.ProjectID, &weekRaw, &snap.Percent, &snap.Note, &recordedRaw); err != nil {
			return nil, err
		}
		snap.WeekStart = parseDay(weekRaw)
		snap.RecordedAt = parseTS(recordedRaw)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// CloseActivity replaces the closure record and flips the activity to CLOSED, but only while the
// stored percent and status still match what the closure gates saw.
func (r *Repository) CloseActivity(ctx context.Context, w app.ClosureWrite) (err error) {
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
		UPDATE activities
		SET status = ?, updated_at = ?
		WHERE id = ? AND percent = ? AND status = ?
	`, string(w.Activity.Status), ts(w.Activity.UpdatedAt), w.Activity.ID, w.ExpectedPercent, string(w.ExpectedStatus))
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		if _, getErr := getActivityByID(ctx, tx, w.Activity.ID); getErr == nil {
			err = fmt.Errorf("%w: %s", app.ErrConflict, w.Activity.ID)
		}
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM closure_records WHERE activity_id = ?`, w.Record.ActivityID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO closure_records(id, project_id, activity_id, code, closed_at, project_manager, director, contractor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		w.Record.ID,
		w.Record.ProjectID,
		w.Record.ActivityID,
		w.Record.Code,
		ts(w.Record.ClosedAt),
		w.Record.Approvers.ProjectManager,
		w.Record.Approvers.Director,
		w.Record.Approvers.Contractor,
	)
	if err != nil {
		return fmt.Errorf("insert closure record: %w", err)
	}
	err = insertChangeEvent(ctx, tx, domain.ChangeEvent{
		ProjectID:  w.Activity.ProjectID,
		ActivityID: w.Activity.ID,
		Operation:  domain.ChangeOperationClose,
		Metadata: map[string]string{
			"code":      w.Record.Code,
			"record_id": w.Record.ID,
		},
		OccurredAt: w.Record.ClosedAt,
	})
	if err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// GetClosureRecord returns closure record.
func (r *Repository) GetClosureRecord(ctx context.Context, activityID string) (domain.ClosureRecord, error) {
	var (
		rec       domain.ClosureRecord
		closedRaw string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, activity_id, code, closed_at, project_manager, director, contractor
		FROM closure_records
		WHERE activity_id = ?
	`, activityID).Scan(
		&rec.ID,
		&rec.ProjectID,
		&rec.ActivityID,
		&rec.Code,
		&closedRaw,
		&rec.Approvers.ProjectManager,
		&rec.Approvers.Director,
		&rec.Approvers.Contractor,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ClosureRecord{}, app.ErrNotFound
		}
		return domain.ClosureRecord{}, err
	}
	rec.ClosedAt = parseTS(closedRaw)
	return rec, nil
}

// ListProjectChangeEvents lists change events.
func (r *Repository) ListProjectChangeEvents(ctx context.Context, projectID string, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, activity_id, operation, metadata_json, created_at
		FROM change_events
		WHERE project_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChangeEvent, 0)
	for rows.Next() {
		var (
			event       domain.ChangeEvent
			opRaw       string
			metadataRaw string
			createdRaw  string
		)
		if err := rows.Scan(&event.ID, &event.ProjectID, &event.ActivityID, &opRaw, &metadataRaw, &createdRaw); err != nil {
			return nil, err
		}
		event.Operation = domain.ChangeOperation(strings.TrimSpace(opRaw))
		event.OccurredAt = parseTS(createdRaw)
		if strings.TrimSpace(metadataRaw) == "" {
			metadataRaw = "{}"
		}
		if err := json.Unmarshal([]byte(metadataRaw), &event.Metadata); err != nil {
			return nil, fmt.Errorf("decode change_events.metadata_json: %w", err)
		}
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// queryRower represents a query-only DB contract used by DB and Tx implementations.
type queryRower interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// execerContext represents a write-only DB contract used by DB and Tx implementations.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// getActivityByID returns one activity through a DB or Tx.
func getActivityByID(ctx context.Context, q queryRower, id string) (domain.Activity, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, project_id, code, name, parent_id, start_date, end_date, percent, status, planned_weight, created_at, updated_at
		FROM activities
		WHERE id = ?
	`, id)
	return scanActivity(row)
}

// updateActivity rewrites every mutable activity column.
func updateActivity(ctx context.Context, execer execerContext, a domain.Activity) error {
	res, err := execer.ExecContext(ctx, `
		UPDATE activities
		SET code = ?, name = ?, parent_id = ?, start_date = ?, end_date = ?, percent = ?, status = ?, planned_weight = ?, updated_at = ?
		WHERE id = ?
	`,
		a.Code,
		a.Name,
		a.ParentID,
		domain.FormatDate(a.StartDate),
		domain.FormatDate(a.EndDate),
		a.Percent,
		string(a.Status),
		a.PlannedWeight,
		ts(a.UpdatedAt),
		a.ID,
	)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// insertChangeEvent inserts a change-event ledger record.
func insertChangeEvent(ctx context.Context, execer execerContext, event domain.ChangeEvent) error {
	if event.Metadata == nil {
		event.Metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("encode change event metadata: %w", err)
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO change_events(project_id, activity_id, operation, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		event.ProjectID,
		event.ActivityID,
		string(event.Operation),
		string(metadataJSON),
		ts(normalizeEventTS(event.OccurredAt)),
	)
	if err != nil {
		return fmt.Errorf("insert change event: %w", err)
	}
	return nil
}

func activityEventMetadata(a domain.Activity) map[string]string {
	return map[string]string{
		"percent":    strconv.Itoa(a.Percent),
		"status":     string(a.Status),
		"start_date": domain.FormatDate(a.StartDate),
		"end_date":   domain.FormatDate(a.EndDate),
	}
}

// normalizeEventTS falls back to the wall clock for events without a timestamp.
func normalizeEventTS(in time.Time) time.Time {
	if in.IsZero() {
		return time.Now().UTC()
	}
	return in.UTC()
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// scanProject handles scan project.
func scanProject(s scanner) (domain.Project, error) {
	var (
		p          domain.Project
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Project{}, app.ErrNotFound
		}
		return domain.Project{}, err
	}
	p.CreatedAt = parseTS(createdRaw)
	p.UpdatedAt = parseTS(updatedRaw)
	return p, nil
}

// scanActivity handles scan activity.
func scanActivity(s scanner) (domain.Activity, error) {
	var (
		a          domain.Activity
		startRaw   string
		endRaw     string
		statusRaw  string
		createdRaw string
		updatedRaw string
	)
	if err := s.Scan(
		&a.ID,
		&a.ProjectID,
		&a.Code,
		&a.Name,
		&a.ParentID,
		&startRaw,
		&endRaw,
		&a.Percent,
		&statusRaw,
		&a.PlannedWeight,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Activity{}, app.ErrNotFound
		}
		return domain.Activity{}, err
	}
	a.StartDate = parseDay(startRaw)
	a.EndDate = parseDay(endRaw)
	a.Status = domain.NormalizeStatus(domain.Status(statusRaw))
	a.CreatedAt = parseTS(createdRaw)
	a.UpdatedAt = parseTS(updatedRaw)
	return a, nil
}

// translateNoRows handles translate no rows.
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

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseDay parses a stored YYYY-MM-DD column.
func parseDay(v string) time.Time {
	day, err := domain.ParseDate(v)
	if err != nil {
		return time.Time{}
	}
	return day
}

// isUniqueConstraintErr reports whether the expected condition is satisfied.
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "constraint failed: primary key")
}
