package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jmhodges/clock"

	"dosekeeper/internal/backup"
	"dosekeeper/internal/config"
	"dosekeeper/internal/database"
	"dosekeeper/internal/dose"
	"dosekeeper/internal/encryption"
	"dosekeeper/internal/notify/telegram"
	"dosekeeper/internal/reminder"
	"dosekeeper/internal/vault"
)

// ReplanInterval is how often `remind run` reconciles reminders with the
// database, picking up edits made by other invocations.
const ReplanInterval = 5 * time.Minute

// App is the application layer between the CLI and the dose service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw command-line values, and manages the DB lifecycle on Close.
type App struct {
	cfg       *config.Config
	clk       clock.Clock
	loc       *time.Location
	db        *database.SQLiteDatabase
	service   *dose.Service
	scheduler *reminder.Scheduler
	notifier  *telegram.Notifier
	backups   *backup.Service
	logger    *slog.Logger
	logFile   *os.File
	op        *Operation
}

// New creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Take", "BackupRun").
// The caller must call Close when done.
func New(cfg *config.Config, operation string) (*App, error) {
	return newApp(context.Background(), cfg, operation, clock.New())
}

func newApp(ctx context.Context, cfg *config.Config, operation string, clk clock.Clock) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	op := NewOperation(operation, clk.Now())
	logger, logFile, err := openLogger(cfg, op)
	if err != nil {
		return nil, err
	}
	log := &slogAdapter{l: logger}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}

	// A memory database starts empty every run.
	if cfg.Database.Type == "memory" {
		err = db.Migrate()
	} else {
		err = db.CheckMigrations()
	}
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	// The telegram notifier needs the service as its action handler, and the
	// service needs the scheduler, so the deliverer is bound late.
	var deliverer reminder.Deliverer = reminder.LogDeliverer{Logger: log}
	sched := reminder.NewScheduler(clk, reminder.DelivererFunc(func(ctx context.Context, r dose.Reminder) error {
		return deliverer.Deliver(ctx, r)
	}), log, reminder.Options{Tick: cfg.Reminders.Tick(), Lead: cfg.Reminders.Lead()})

	svc := dose.NewService(db, sched, log, clk, dose.UUIDGenerator{}, dose.Options{
		Location:       loc,
		SnoozeInterval: cfg.Reminders.Snooze(),
	})

	var notifier *telegram.Notifier
	switch cfg.Notifier.Type {
	case "", "log":
	case "telegram":
		notifier, err = telegram.New(cfg.Notifier.TelegramToken, cfg.Notifier.TelegramChatID, svc, log)
		if err != nil {
			db.Close()
			logFile.Close()
			return nil, fmt.Errorf("creating telegram notifier: %w", err)
		}
		deliverer = notifier
	default:
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("unknown notifier type: %q", cfg.Notifier.Type)
	}

	backups, err := newBackupService(ctx, cfg, db, log, clk)
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, err
	}

	logger.Info("operation started", "operation", op.Name)

	return &App{
		cfg:       cfg,
		clk:       clk,
		loc:       loc,
		db:        db,
		service:   svc,
		scheduler: sched,
		notifier:  notifier,
		backups:   backups,
		logger:    logger,
		logFile:   logFile,
		op:        op,
	}, nil
}

func openLogger(cfg *config.Config, op *Operation) (*slog.Logger, *os.File, error) {
	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger, logFile, err := newLogger(cfg.LogDir, op.RunID, level)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return logger, logFile, nil
}

func newBackupService(ctx context.Context, cfg *config.Config, db backup.Snapshotter, log dose.Logger, clk clock.Clock) (*backup.Service, error) {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	vaults, err := vault.NewVaultsFromConfig(ctx, cfg.Vaults)
	if err != nil {
		return nil, fmt.Errorf("creating vaults: %w", err)
	}
	return backup.NewService(db, enc, vaults, log, clk), nil
}

// Fail marks the current operation as failed; Close records the status.
func (a *App) Fail() {
	a.op.Fail()
}

// Location is the zone "today" is computed in.
func (a *App) Location() *time.Location {
	return a.loc
}

// Now is the current time in the configured zone.
func (a *App) Now() time.Time {
	return a.clk.Now().In(a.loc)
}

// profile resolves a profile name, falling back to the configured default.
// Profiles are created on first use.
func (a *App) profile(ctx context.Context, name string) (*dose.Profile, error) {
	if name == "" {
		name = a.cfg.Profile
	}
	if name == "" {
		name = "default"
	}
	return a.service.EnsureProfile(ctx, name)
}

// AddProfile creates a profile if it does not exist yet.
func (a *App) AddProfile(ctx context.Context, name string) (*dose.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("profile name must not be empty")
	}
	return a.service.EnsureProfile(ctx, name)
}

// Profiles lists every profile.
func (a *App) Profiles(ctx context.Context) ([]*dose.Profile, error) {
	return a.service.Profiles(ctx)
}

// resolveMedication finds a medication of the profile by id or by name
// (case-insensitive). A name matching several medications is an error.
func (a *App) resolveMedication(ctx context.Context, profileID, ref string) (*dose.Medication, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("medication name or id required")
	}

	m, err := a.service.Medication(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("loading medication: %w", err)
	}
	if m != nil && m.ProfileID == profileID {
		return m, nil
	}

	meds, err := a.service.Medications(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("listing medications: %w", err)
	}
	var matches []*dose.Medication
	for _, m := range meds {
		if strings.EqualFold(m.Name, ref) {
			matches = append(matches, m)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no medication matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%d medications are named %q, use the id", len(matches), ref)
	}
}

// AddMedication validates the draft and creates a medication in the profile.
func (a *App) AddMedication(ctx context.Context, profileName string, d dose.Draft) (*dose.SaveResult, error) {
	p, err := a.profile(ctx, profileName)
	if err != nil {
		return nil, err
	}
	d.ID = ""
	return a.service.SaveMedication(ctx, p.ID, d)
}

// EditMedication loads the medication into a draft, lets edit change it and
// saves the result. If the medication is deleted while the edit is in
// progress, nothing is saved and (nil, nil) is returned.
func (a *App) EditMedication(ctx context.Context, profileName, ref string, edit func(d *dose.Draft)) (*dose.SaveResult, error) {
	p, err := a.profile(ctx, profileName)
	if err != nil {
		return nil, err
	}
	m, err := a.resolveMedication(ctx, p.ID, ref)
	if err != nil {
		return nil, err
	}

	h, err := a.service.Watch(ctx, m.ID)
	if errors.Is(err, dose.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer h.Close()

	cur, ok := h.Get()
	if !ok {
		return nil, nil
	}
	d := dose.DraftOf(&cur)
	edit(&d)

	if !h.Valid() {
		a.logger.Info("medication deleted during edit", "id", m.ID)
		return nil, nil
	}
	return a.service.SaveMedication(ctx, p.ID, d)
}

// Medications lists the medications of the profile.
func (a *App) Medications(ctx context.Context, profileName string) ([]*dose.Medication, error) {
	p, err := a.profile(ctx, profileName)
	if err != nil {
		return nil, err
	}
	return a.service.Medications(ctx, p.ID)
}

// ShowMedication returns one medication of the profile.
func (a *App) ShowMedication(ctx context.Context, profileName, ref string) (*dose.Medication, error) {
	p, err := a.profile(ctx, profileName)
	if err != nil {
		return nil, err
	}
	return a.resolveMedication(ctx, p.ID, ref)
}

// DeleteMedication removes a medication and its pending reminders.
func (a *App) DeleteMedication(ctx context.Context, profileName, ref string) (*dose.Medication, []string, error) {
	p, err := a.profile(ctx, profileName)
	if err != nil {
		return nil, nil, err
	}
	m, err := a.resolveMedication(ctx, p.ID, ref)
	if err != nil {
		return nil, nil, err
	}
	warnings, err := a.service.DeleteMedication(ctx, m.ID)
	return m, warnings, err
}

// SetActive pauses or resumes a medication.
func (a *App) SetActive(ctx context.Context, profileName, ref string, active bool) (*dose.SaveResult, error) {
	p, err := a.profile(ctx, profileName)
	if err != nil {
		return nil, err
	}
	m, err := a.resolveMedication(ctx, p.ID, ref)
	if err != nil {
		return nil, err
	}
	return a.service.SetActive(ctx, m.ID, active)
}

// Restock adds amount units to a medication's stock.
func (a *App) Restock(ctx context.Context, profileName, ref string, amount int) (*dose.Medication, error) {
	p, err := a.profile(ctx, profileName)
	if err != nil {
		return nil, err
	}
	m, err := a.resolveMedication(ctx, p.ID, ref)
	if err != nil {
		return nil, err
	}
	return a.service.Restock(ctx, m.ID, amount)
}

// Today lists today's doses of the profile with their status.
func (a *App) Today(ctx context.Context, profileName string) ([]*dose.ScheduledDose, error) {
	p, err := a.profile(ctx, profileName)
	if err != nil {
		return nil, err
	}
	return a.service.TodaysDoses(ctx, p.ID)
}

// Take records a dose as taken. at is the slot ("15:04") the dose was due at;
// when empty the latest slot at or before now is used.
func (a *App) Take(ctx context.Context, profileName, ref, at string) (*dose.TakeResult, error) {
	p, err := a.profile(ctx, profileName)
	if err != nil {
		return nil, err
	}
	m, err := a.resolveMedication(ctx, p.ID, ref)
	if err != nil {
		return nil, err
	}
	scheduledAt, err := a.scheduledAt(m, at)
	if err != nil {
		return nil, err
	}
	return a.service.Take(ctx, m.ID, scheduledAt)
}

// Skip records a dose as skipped. at works as for Take.
func (a *App) Skip(ctx context.Context, profileName, ref, at string) (*dose.SkipResult, error) {
	p, err := a.profile(ctx, profileName)
	if err != nil {
		return nil, err
	}
	m, err := a.resolveMedication(ctx, p.ID, ref)
	if err != nil {
		return nil, err
	}
	scheduledAt, err := a.scheduledAt(m, at)
	if err != nil {
		return nil, err
	}
	return a.service.Skip(ctx, m.ID, scheduledAt)
}

// scheduledAt picks the slot a take or skip refers to on today's date.
func (a *App) scheduledAt(m *dose.Medication, at string) (time.Time, error) {
	now := a.Now()
	day := dose.Today(now, a.loc)

	if at != "" {
		t, err := dose.ParseClock(at)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid time %q, want HH:MM", at)
		}
		return dose.TimeSlot{Hour: t.Hour, Minute: t.Minute}.On(day, a.loc), nil
	}

	slots := dose.SlotsFor(m)
	if len(slots) == 0 {
		return now.Truncate(time.Minute), nil
	}
	chosen := slots[0].On(day, a.loc)
	for _, s := range slots {
		if t := s.On(day, a.loc); !t.After(now) && t.After(chosen) {
			chosen = t
		}
	}
	return chosen, nil
}

// History returns the most recent dose logs of a medication, newest first.
func (a *App) History(ctx context.Context, profileName, ref string, limit int) ([]*dose.DoseLog, error) {
	p, err := a.profile(ctx, profileName)
	if err != nil {
		return nil, err
	}
	m, err := a.resolveMedication(ctx, p.ID, ref)
	if err != nil {
		return nil, err
	}
	return a.service.History(ctx, m.ID, limit)
}

// Adherence reports adherence per medication between two dates
// ("2006-01-02"). An empty to means today; an empty from means six days
// before to.
func (a *App) Adherence(ctx context.Context, profileName, from, to string) ([]*dose.AdherenceRow, civil.Date, civil.Date, error) {
	var start, end civil.Date
	p, err := a.profile(ctx, profileName)
	if err != nil {
		return nil, start, end, err
	}

	end = dose.Today(a.Now(), a.loc)
	if to != "" {
		if end, err = civil.ParseDate(to); err != nil {
			return nil, start, end, fmt.Errorf("invalid date %q, want YYYY-MM-DD", to)
		}
	}
	start = end.AddDays(-6)
	if from != "" {
		if start, err = civil.ParseDate(from); err != nil {
			return nil, start, end, fmt.Errorf("invalid date %q, want YYYY-MM-DD", from)
		}
	}

	rows, err := a.service.Adherence(ctx, p.ID, start, end)
	return rows, start, end, err
}

// RunReminders plans today's reminders for the profile and delivers them
// until ctx is done. Reminders are re-planned every ReplanInterval and just
// after local midnight. With a telegram notifier, button presses are handled
// too.
func (a *App) RunReminders(ctx context.Context, profileName string) error {
	p, err := a.profile(ctx, profileName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	plan := func() {
		n, warnings, err := a.service.PlanReminders(ctx, p.ID)
		if err != nil {
			a.logger.Error("planning reminders failed", "profile", p.Name, "error", err)
			return
		}
		for _, w := range warnings {
			a.logger.Warn(w)
		}
		a.pruneReminders(ctx, p.ID)
		a.logger.Info("reminders planned", "profile", p.Name, "count", n)
	}
	plan()

	errc := make(chan error, 2)
	go func() { errc <- a.scheduler.Run(ctx) }()
	if a.notifier != nil {
		go func() { errc <- a.notifier.Listen(ctx) }()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if err != nil && ctx.Err() == nil {
				return err
			}
		case <-a.clk.After(a.untilReplan()):
			plan()
		}
	}
}

// pruneReminders drops queued reminders that no longer match a slot of the
// profile, e.g. after `med edit` or `med rm` in another invocation.
func (a *App) pruneReminders(ctx context.Context, profileID string) {
	warnings, err := a.service.PruneReminders(ctx, profileID, a.scheduler.Pending())
	if err != nil {
		a.logger.Warn("pruning reminders failed", "error", err)
		return
	}
	for _, w := range warnings {
		a.logger.Warn(w)
	}
}

// untilReplan is the time until the next re-plan: ReplanInterval, or just
// past midnight if that comes first.
func (a *App) untilReplan() time.Duration {
	now := a.Now()
	_, midnight := dose.DayBounds(dose.Today(now, a.loc), a.loc)
	if d := midnight.Sub(now) + time.Second; d < ReplanInterval {
		return d
	}
	return ReplanInterval
}

// PendingReminders lists the reminders queued in this process.
func (a *App) PendingReminders() []dose.Reminder {
	return a.scheduler.Pending()
}

// BackupInit creates the backup key pair.
func (a *App) BackupInit(passphrase string) error {
	return a.backups.Init(passphrase)
}

// Backup uploads an encrypted snapshot of the database to every vault.
func (a *App) Backup(ctx context.Context) (*backup.Result, error) {
	return a.backups.Backup(ctx, a.cfg.HostID)
}

// Close logs the end of the operation and closes all resources.
func (a *App) Close() error {
	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	a.logger.Info("operation finished", "operation", a.op.Name, "status", a.op.Status,
		"elapsed", a.op.Elapsed(a.clk.Now()).Round(time.Millisecond))
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// MigrateDatabase applies pending schema migrations to the configured database.
func MigrateDatabase(cfg *config.Config) error {
	op := NewOperation("DatabaseMigrate", time.Now())
	logger, logFile, err := openLogger(cfg, op)
	if err != nil {
		return err
	}
	defer logFile.Close()

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Error("migration failed", "path", db.Path(), "error", err)
		return fmt.Errorf("migrating database: %w", err)
	}
	logger.Info("database migrated", "path", db.Path())
	return nil
}

// RestoreDatabase downloads the latest backup from the named vault and
// decrypts it to dest. An empty dest means the configured database path,
// which must not exist yet. It returns the restored version.
func RestoreDatabase(ctx context.Context, cfg *config.Config, vaultName, passphrase, dest string) (int64, error) {
	op := NewOperation("BackupRestore", time.Now())
	logger, logFile, err := openLogger(cfg, op)
	if err != nil {
		return 0, err
	}
	defer logFile.Close()

	if dest == "" {
		if cfg.Database.Type != "sqlite" {
			return 0, fmt.Errorf("restore needs a destination for database type %q", cfg.Database.Type)
		}
		dest = database.DatabasePath(cfg.Database, cfg.HostID)
	}

	clk := clock.New()
	backups, err := newBackupService(ctx, cfg, nil, &slogAdapter{l: logger}, clk)
	if err != nil {
		return 0, err
	}
	return backups.Restore(ctx, cfg.HostID, vaultName, passphrase, dest)
}
