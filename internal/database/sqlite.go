package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"dosekeeper/internal/database/migrations"
	"dosekeeper/internal/dose"

	_ "github.com/mattn/go-sqlite3" // SQLite driver "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // SQLite driver "sqlite" (pure Go)
)

// Driver names accepted by OpenConnection.
const (
	DriverCGO    = "sqlite3"
	DriverPureGo = "sqlite"
)

// SQLiteDatabase implements dose.Store on SQLite.
type SQLiteDatabase struct {
	db      *sql.DB
	path    string
	changes *changeBroker

	// faultAfterLogInsert, when set, runs between the dose log insert and the
	// stock update of RecordDose. Tests use it to abort the transaction.
	faultAfterLogInsert func() error
}

// NewSQLiteDatabase opens a SQLite database with the given driver.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(driver, path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(driver, path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteDatabaseFromDB(db, path), nil
}

// NewSQLiteDatabaseFromDB wraps an existing connection opened with OpenConnection.
func NewSQLiteDatabaseFromDB(db *sql.DB, path string) *SQLiteDatabase {
	return &SQLiteDatabase{
		db:      db,
		path:    path,
		changes: newChangeBroker(),
	}
}

// OpenConnection opens and configures a SQLite connection.
//
// The pool is capped at one connection: every ":memory:" connection is a
// separate database, and SQLite serialises writers anyway.
func OpenConnection(driver, path string) (*sql.DB, error) {
	if driver == "" {
		driver = DriverCGO
	}
	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Profile operations

func (s *SQLiteDatabase) CreateProfile(ctx context.Context, p *dose.Profile) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO profiles (id, name, created_at) VALUES (?, ?, ?)",
		p.ID, p.Name, toMillis(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting profile: %w", err)
	}
	s.changes.publish(dose.Change{Entity: dose.EntityProfile, ID: p.ID, Kind: dose.Created})
	return nil
}

func (s *SQLiteDatabase) FindProfileByName(ctx context.Context, name string) (*dose.Profile, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, name, created_at FROM profiles WHERE name = ?", name)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("finding profile by name: %w", err)
	}
	return p, nil
}

func (s *SQLiteDatabase) ListProfiles(ctx context.Context) ([]*dose.Profile, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at FROM profiles ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	var out []*dose.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Medication operations

const medicationColumns = `id, profile_id, name, dose_amount, unit, category, frequency, interval_value,
	start_date, reminder_time, is_permanent, duration, is_active, inventory_enabled, stock, reorder_level,
	is_adjustable, created_at, updated_at`

func (s *SQLiteDatabase) CreateMedication(ctx context.Context, m *dose.Medication) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO medications ("+medicationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		medicationArgs(m)...)
	if err != nil {
		return fmt.Errorf("inserting medication: %w", err)
	}
	s.changes.publish(dose.Change{Entity: dose.EntityMedication, ID: m.ID, Kind: dose.Created})
	return nil
}

func (s *SQLiteDatabase) GetMedication(ctx context.Context, id string) (*dose.Medication, error) {
	m, err := getMedication(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("getting medication: %w", err)
	}
	return m, nil
}

func (s *SQLiteDatabase) ListMedications(ctx context.Context, profileID string) ([]*dose.Medication, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+medicationColumns+" FROM medications WHERE profile_id = ? ORDER BY name, id", profileID)
	if err != nil {
		return nil, fmt.Errorf("listing medications: %w", err)
	}
	defer rows.Close()

	var out []*dose.Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning medication: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteDatabase) UpdateMedication(ctx context.Context, id string, mutate func(m *dose.Medication) error) (*dose.Medication, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	m, err := getMedication(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("loading medication: %w", err)
	}
	if m == nil {
		return nil, dose.ErrNotFound
	}

	if err := mutate(m); err != nil {
		return nil, err
	}
	m.ID = id

	_, err = tx.ExecContext(ctx, `UPDATE medications SET
		profile_id = ?, name = ?, dose_amount = ?, unit = ?, category = ?, frequency = ?, interval_value = ?,
		start_date = ?, reminder_time = ?, is_permanent = ?, duration = ?, is_active = ?, inventory_enabled = ?,
		stock = ?, reorder_level = ?, is_adjustable = ?, created_at = ?, updated_at = ?
		WHERE id = ?`,
		append(medicationArgs(m)[1:], id)...)
	if err != nil {
		return nil, fmt.Errorf("updating medication: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	s.changes.publish(dose.Change{Entity: dose.EntityMedication, ID: id, Kind: dose.Updated})
	return m, nil
}

func (s *SQLiteDatabase) DeleteMedication(ctx context.Context, id string) (*dose.Medication, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	m, err := getMedication(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("loading medication: %w", err)
	}
	if m == nil {
		return nil, dose.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM medications WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("deleting medication: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	s.changes.publish(dose.Change{Entity: dose.EntityMedication, ID: id, Kind: dose.Deleted})
	return m, nil
}

// Adherence log

// RecordDose atomically appends a dose log and decrements stock:
//  1. Re-reads the medication; a deleted medication yields dose.ErrNotFound.
//  2. Inserts the log with the medication name and delay computed from the event.
//  3. When requested and inventory is tracked with stock left, decrements stock.
func (s *SQLiteDatabase) RecordDose(ctx context.Context, ev dose.DoseEvent) (*dose.DoseOutcome, error) {
	if !ev.Status.Logged() {
		return nil, fmt.Errorf("status %s cannot be logged", ev.Status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. Fresh lookup.
	m, err := getMedication(ctx, tx, ev.MedicationID)
	if err != nil {
		return nil, fmt.Errorf("loading medication: %w", err)
	}
	if m == nil {
		return nil, dose.ErrNotFound
	}

	// 2. Append the log.
	log := &dose.DoseLog{
		ID:             ev.LogID,
		MedicationID:   m.ID,
		MedicationName: m.Name,
		Status:         ev.Status,
		ScheduledAt:    ev.ScheduledAt,
		TakenAt:        ev.TakenAt,
		DelayMinutes:   dose.DelayMinutes(ev.ScheduledAt, ev.TakenAt),
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO dose_logs
		(id, medication_id, medication_name, status, scheduled_at, taken_at, delay_minutes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.MedicationID, log.MedicationName, log.Status.String(),
		toMillis(log.ScheduledAt), toMillis(log.TakenAt), log.DelayMinutes)
	if err != nil {
		return nil, fmt.Errorf("inserting dose log: %w", err)
	}

	if s.faultAfterLogInsert != nil {
		if err := s.faultAfterLogInsert(); err != nil {
			return nil, err
		}
	}

	// 3. Stock.
	inv := m.Inventory
	decremented := false
	if ev.DecrementStock && inv.Enabled && inv.Stock > 0 {
		_, err := tx.ExecContext(ctx,
			"UPDATE medications SET stock = stock - 1, updated_at = ? WHERE id = ? AND stock > 0",
			toMillis(ev.TakenAt), m.ID)
		if err != nil {
			return nil, fmt.Errorf("decrementing stock: %w", err)
		}
		inv.Stock--
		decremented = true
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	changes := []dose.Change{{Entity: dose.EntityDoseLog, ID: log.ID, Kind: dose.Created}}
	if decremented {
		changes = append(changes, dose.Change{Entity: dose.EntityMedication, ID: m.ID, Kind: dose.Updated})
	}
	s.changes.publish(changes...)

	return &dose.DoseOutcome{Log: log, Inventory: inv}, nil
}

const doseLogColumns = "id, medication_id, medication_name, status, scheduled_at, taken_at, delay_minutes"

func (s *SQLiteDatabase) LogsBetween(ctx context.Context, medicationID string, from, to time.Time) ([]*dose.DoseLog, error) {
	query := "SELECT " + doseLogColumns + " FROM dose_logs WHERE taken_at >= ? AND taken_at < ?"
	args := []any{toMillis(from), toMillis(to)}
	if medicationID != "" {
		query += " AND medication_id = ?"
		args = append(args, medicationID)
	}
	query += " ORDER BY taken_at, rowid"

	return s.queryLogs(ctx, query, args...)
}

func (s *SQLiteDatabase) LogsForMedication(ctx context.Context, medicationID string, limit int) ([]*dose.DoseLog, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	// Newest rows first for the LIMIT, then flipped back to oldest first.
	query := "SELECT * FROM (SELECT " + doseLogColumns + ", rowid AS seq FROM dose_logs WHERE medication_id = ?" +
		" ORDER BY taken_at DESC, rowid DESC LIMIT ?) ORDER BY taken_at, seq"

	rows, err := s.db.QueryContext(ctx, query, medicationID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying dose logs: %w", err)
	}
	defer rows.Close()

	var out []*dose.DoseLog
	for rows.Next() {
		var seq int64
		l, err := scanDoseLog(rows, &seq)
		if err != nil {
			return nil, fmt.Errorf("scanning dose log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLiteDatabase) queryLogs(ctx context.Context, query string, args ...any) ([]*dose.DoseLog, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying dose logs: %w", err)
	}
	defer rows.Close()

	var out []*dose.DoseLog
	for rows.Next() {
		l, err := scanDoseLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning dose log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Subscribe registers fn for changes published after each commit.
func (s *SQLiteDatabase) Subscribe(fn func(dose.Change)) func() {
	return s.changes.subscribe(fn)
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate applies pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.Up(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.Check(s.db)
}

// BackupTo writes a consistent copy of the database to destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Row mapping

type scanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getMedication(ctx context.Context, q queryer, id string) (*dose.Medication, error) {
	row := q.QueryRowContext(ctx, "SELECT "+medicationColumns+" FROM medications WHERE id = ?", id)
	m, err := scanMedication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	return m, err
}

func scanProfile(row scanner) (*dose.Profile, error) {
	var p dose.Profile
	var created int64
	if err := row.Scan(&p.ID, &p.Name, &created); err != nil {
		return nil, err
	}
	p.CreatedAt = fromMillis(created)
	return &p, nil
}

func medicationArgs(m *dose.Medication) []any {
	return []any{
		m.ID, m.ProfileID, m.Name, m.DoseAmount, m.Unit, m.Category, string(m.Frequency), m.IntervalValue,
		m.StartDate.String(), dose.FormatClock24(m.ReminderTime), m.IsPermanent, m.Duration, m.IsActive,
		m.Inventory.Enabled, m.Inventory.Stock, m.Inventory.ReorderLevel, m.IsAdjustable,
		toMillis(m.CreatedAt), toMillis(m.UpdatedAt),
	}
}

func scanMedication(row scanner) (*dose.Medication, error) {
	var (
		m                  dose.Medication
		freq, start, clock string
		created, updated   int64
	)
	err := row.Scan(&m.ID, &m.ProfileID, &m.Name, &m.DoseAmount, &m.Unit, &m.Category, &freq, &m.IntervalValue,
		&start, &clock, &m.IsPermanent, &m.Duration, &m.IsActive,
		&m.Inventory.Enabled, &m.Inventory.Stock, &m.Inventory.ReorderLevel, &m.IsAdjustable,
		&created, &updated)
	if err != nil {
		return nil, err
	}

	f, ok := dose.ParseFrequency(freq)
	if !ok {
		return nil, fmt.Errorf("medication %s has unknown frequency %q", m.ID, freq)
	}
	m.Frequency = f

	if m.StartDate, err = civil.ParseDate(start); err != nil {
		return nil, fmt.Errorf("medication %s start date: %w", m.ID, err)
	}
	if m.ReminderTime, err = dose.ParseClock(clock); err != nil {
		return nil, fmt.Errorf("medication %s reminder time: %w", m.ID, err)
	}

	m.CreatedAt = fromMillis(created)
	m.UpdatedAt = fromMillis(updated)
	return &m, nil
}

func scanDoseLog(row scanner, extra ...any) (*dose.DoseLog, error) {
	var (
		l                 dose.DoseLog
		status            string
		scheduled, action int64
	)
	dest := append([]any{&l.ID, &l.MedicationID, &l.MedicationName, &status, &scheduled, &action, &l.DelayMinutes}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	st, err := dose.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	l.Status = st
	l.ScheduledAt = fromMillis(scheduled)
	l.TakenAt = fromMillis(action)
	return &l, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Compile-time check that SQLiteDatabase implements dose.Store
var _ dose.Store = (*SQLiteDatabase)(nil)
