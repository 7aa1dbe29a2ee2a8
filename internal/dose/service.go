package dose

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// DefaultSnoozeInterval is how far a snoozed reminder is pushed back.
const DefaultSnoozeInterval = 10 * time.Minute

// Options tunes a Service.
type Options struct {
	Location       *time.Location // zone "today" is computed in; defaults to time.Local
	SnoozeInterval time.Duration  // defaults to DefaultSnoozeInterval
}

// Service is the orchestration layer between the schedule engine, the store
// and the reminder scheduler. Reads recompute from the store on every call.
type Service struct {
	store     Store
	scheduler Scheduler
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	loc       *time.Location
	snooze    time.Duration
}

// NewService creates a Service with the provided dependencies.
func NewService(store Store, scheduler Scheduler, logger Logger, clock Clock, idgen IDGenerator, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	snooze := opts.SnoozeInterval
	if snooze <= 0 {
		snooze = DefaultSnoozeInterval
	}
	return &Service{
		store:     store,
		scheduler: scheduler,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		loc:       loc,
		snooze:    snooze,
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now().In(s.loc)
}

// Location is the zone the service computes "today" in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// EnsureProfile returns the profile with the given name, creating it if needed.
func (s *Service) EnsureProfile(ctx context.Context, name string) (*Profile, error) {
	p, err := s.store.FindProfileByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("finding profile: %w", err)
	}
	if p != nil {
		return p, nil
	}

	p = &Profile{ID: s.idgen.New(), Name: name, CreatedAt: s.now()}
	if err := s.store.CreateProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("creating profile: %w", err)
	}
	s.logger.Info("profile created", "profile", name)
	return p, nil
}

// Profiles lists every profile.
func (s *Service) Profiles(ctx context.Context) ([]*Profile, error) {
	return s.store.ListProfiles(ctx)
}

// Medication returns one medication, or nil if it does not exist.
func (s *Service) Medication(ctx context.Context, id string) (*Medication, error) {
	return s.store.GetMedication(ctx, id)
}

// Medications lists the medications of a profile.
func (s *Service) Medications(ctx context.Context, profileID string) ([]*Medication, error) {
	return s.store.ListMedications(ctx, profileID)
}

// Watch opens a live handle on a medication.
func (s *Service) Watch(ctx context.Context, id string) (*MedicationHandle, error) {
	return WatchMedication(ctx, s.store, id)
}

// SaveResult is the outcome of saving a medication. Warnings are non-fatal
// problems the user should see (adjusted reminder time, reminder failures).
type SaveResult struct {
	Medication *Medication
	Warnings   []string
}

// SaveMedication validates a draft and creates or updates the medication,
// then replaces its reminders for today. A draft whose ID no longer exists is
// a no-op: (nil, nil) is returned.
func (s *Service) SaveMedication(ctx context.Context, profileID string, d Draft) (*SaveResult, error) {
	m, err := ParseDraft(d)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &SaveResult{}

	// A freshly picked reminder time for today must still lie ahead.
	adjust := func() {
		if t, adjusted := AdjustReminderTime(now, m.StartDate, m.ReminderTime); adjusted {
			m.ReminderTime = t
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("reminder time was not in the future; moved to %s", FormatClock(t.Hour, t.Minute)))
		}
	}

	var saved *Medication
	if m.ID == "" {
		adjust()
		m.ID = s.idgen.New()
		m.ProfileID = profileID
		m.CreatedAt = now
		m.UpdatedAt = now
		if err := s.store.CreateMedication(ctx, m); err != nil {
			return nil, fmt.Errorf("creating medication: %w", err)
		}
		saved = m
		s.logger.Info("medication created", "id", m.ID, "name", m.Name)
	} else {
		var previous Medication
		saved, err = s.store.UpdateMedication(ctx, m.ID, func(cur *Medication) error {
			previous = *cur
			if m.ReminderTime != cur.ReminderTime || m.StartDate != cur.StartDate {
				adjust()
			}
			m.ProfileID = cur.ProfileID
			m.CreatedAt = cur.CreatedAt
			m.UpdatedAt = now
			*cur = *m
			return nil
		})
		if errors.Is(err, ErrNotFound) {
			s.logger.Debug("medication vanished before update", "id", m.ID)
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("updating medication: %w", err)
		}
		result.Warnings = append(result.Warnings, s.cancelReminders(ctx, &previous)...)
		s.logger.Info("medication updated", "id", m.ID, "name", m.Name)
	}

	result.Medication = saved
	_, warnings := s.planMedication(ctx, saved, now)
	result.Warnings = append(result.Warnings, warnings...)
	return result, nil
}

// DeleteMedication removes a medication and cancels its reminders.
// Deleting an id that no longer exists is a no-op.
func (s *Service) DeleteMedication(ctx context.Context, id string) ([]string, error) {
	deleted, err := s.store.DeleteMedication(ctx, id)
	if errors.Is(err, ErrNotFound) {
		s.logger.Debug("medication already deleted", "id", id)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("deleting medication: %w", err)
	}

	s.logger.Info("medication deleted", "id", id, "name", deleted.Name)
	return s.cancelReminders(ctx, deleted), nil
}

// SetActive pauses or resumes a medication without touching its schedule.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (*SaveResult, error) {
	m, err := s.store.UpdateMedication(ctx, id, func(cur *Medication) error {
		cur.IsActive = active
		cur.UpdatedAt = s.now()
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("updating medication: %w", err)
	}

	result := &SaveResult{Medication: m}
	if active {
		_, result.Warnings = s.planMedication(ctx, m, s.now())
	} else {
		result.Warnings = s.cancelReminders(ctx, m)
	}
	return result, nil
}

// Restock adds amount to a medication's inventory and enables tracking.
func (s *Service) Restock(ctx context.Context, id string, amount int) (*Medication, error) {
	if amount <= 0 {
		return nil, &ValidationError{Fields: map[string]string{"amount": "must be positive"}}
	}
	m, err := s.store.UpdateMedication(ctx, id, func(cur *Medication) error {
		cur.Inventory.Enabled = true
		cur.Inventory.Stock += amount
		cur.UpdatedAt = s.now()
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("restocking medication: %w", err)
	}
	s.logger.Info("medication restocked", "id", id, "stock", m.Inventory.Stock)
	return m, nil
}

// ScheduledDose is one of today's doses with its resolved status.
type ScheduledDose struct {
	Medication  *Medication
	Slot        TimeSlot
	ScheduledAt time.Time
	Status      Status
}

// TodaysDoses lists the doses due today for a profile, earliest first.
// Status comes from ResolveStatus, which matches logs by day rather than by
// slot, so one take marks every slot of an hourly medication taken while
// PlanReminders still reminds about the later slots.
func (s *Service) TodaysDoses(ctx context.Context, profileID string) ([]*ScheduledDose, error) {
	now := s.now()
	day := Today(now, s.loc)

	meds, err := s.store.ListMedications(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("listing medications: %w", err)
	}

	logs, err := s.logsForDay(ctx, "", day)
	if err != nil {
		return nil, err
	}

	var doses []*ScheduledDose
	for _, occ := range Occurrences(meds, day, s.loc) {
		doses = append(doses, &ScheduledDose{
			Medication:  occ.Medication,
			Slot:        occ.Slot,
			ScheduledAt: occ.ScheduledAt,
			Status:      ResolveStatus(occ.Medication.ID, occ.Slot, now, logs),
		})
	}
	return doses, nil
}

func (s *Service) logsForDay(ctx context.Context, medicationID string, day civil.Date) ([]DoseLog, error) {
	from, to := DayBounds(day, s.loc)
	logs, err := s.store.LogsBetween(ctx, medicationID, from, to)
	if err != nil {
		return nil, fmt.Errorf("loading dose logs: %w", err)
	}
	out := make([]DoseLog, len(logs))
	for i, l := range logs {
		out[i] = *l
	}
	return out, nil
}

// TakeResult is the outcome of taking a dose.
type TakeResult struct {
	Log       *DoseLog
	Inventory Inventory
	Warnings  []string
}

// Take records a dose as taken and decrements tracked stock in one
// transaction. Taking a dose of a deleted medication is a no-op.
func (s *Service) Take(ctx context.Context, medicationID string, scheduledAt time.Time) (*TakeResult, error) {
	outcome, err := s.record(ctx, medicationID, StatusTaken, scheduledAt)
	if err != nil || outcome == nil {
		return nil, err
	}

	result := &TakeResult{Log: outcome.Log, Inventory: outcome.Inventory}
	if outcome.Inventory.Low() {
		msg := fmt.Sprintf("only %d left of %s; time to reorder", outcome.Inventory.Stock, outcome.Log.MedicationName)
		s.logger.Warn("low stock", "id", medicationID, "stock", outcome.Inventory.Stock)
		result.Warnings = append(result.Warnings, msg)
	}
	result.Warnings = append(result.Warnings, s.cancelSlot(ctx, medicationID, scheduledAt)...)
	return result, nil
}

// SkipResult is the outcome of skipping a dose.
type SkipResult struct {
	Log      *DoseLog
	Warnings []string
}

// Skip records a dose as deliberately skipped. Stock is left alone.
func (s *Service) Skip(ctx context.Context, medicationID string, scheduledAt time.Time) (*SkipResult, error) {
	outcome, err := s.record(ctx, medicationID, StatusSkipped, scheduledAt)
	if err != nil || outcome == nil {
		return nil, err
	}
	return &SkipResult{Log: outcome.Log, Warnings: s.cancelSlot(ctx, medicationID, scheduledAt)}, nil
}

func (s *Service) record(ctx context.Context, medicationID string, status Status, scheduledAt time.Time) (*DoseOutcome, error) {
	now := s.now()
	outcome, err := s.store.RecordDose(ctx, DoseEvent{
		LogID:          s.idgen.New(),
		MedicationID:   medicationID,
		Status:         status,
		ScheduledAt:    scheduledAt,
		TakenAt:        now,
		DecrementStock: status == StatusTaken,
	})
	if errors.Is(err, ErrNotFound) {
		s.logger.Debug("dose for missing medication ignored", "id", medicationID, "status", status.String())
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("recording %s dose: %w", status, err)
	}

	s.logger.Info("dose recorded", "id", medicationID, "status", status.String(), "delay_minutes", outcome.Log.DelayMinutes)
	return outcome, nil
}

// Snooze pushes a reminder back by the snooze interval. Nothing is logged.
// Snoozing a reminder of a deleted medication is a no-op.
func (s *Service) Snooze(ctx context.Context, p Payload) (*Reminder, error) {
	m, err := s.store.GetMedication(ctx, p.MedicationID)
	if err != nil {
		return nil, fmt.Errorf("loading medication: %w", err)
	}
	if m == nil {
		s.logger.Debug("snooze for missing medication ignored", "id", p.MedicationID)
		return nil, nil
	}

	scheduled := p.ScheduledAt.In(s.loc)
	slot := TimeSlot{Hour: scheduled.Hour(), Minute: scheduled.Minute()}
	r := newReminder(m, slot, p.ScheduledAt, s.now().Add(s.snooze))
	if err := s.scheduler.Schedule(ctx, r); err != nil {
		return nil, fmt.Errorf("rescheduling reminder: %w", err)
	}

	s.logger.Info("reminder snoozed", "id", r.ID, "fire_at", r.FireAt)
	return &r, nil
}

// HandleAction dispatches a notification action back to the service.
func (s *Service) HandleAction(ctx context.Context, actionID string, p Payload) error {
	switch actionID {
	case ActionTake:
		_, err := s.Take(ctx, p.MedicationID, p.ScheduledAt)
		return err
	case ActionSnooze:
		_, err := s.Snooze(ctx, p)
		return err
	default:
		return fmt.Errorf("unknown notification action %q", actionID)
	}
}

// PlanReminders schedules a reminder for every dose of the profile still
// ahead today. It returns how many were scheduled.
func (s *Service) PlanReminders(ctx context.Context, profileID string) (int, []string, error) {
	meds, err := s.store.ListMedications(ctx, profileID)
	if err != nil {
		return 0, nil, fmt.Errorf("listing medications: %w", err)
	}

	now := s.now()
	total := 0
	var warnings []string
	for _, m := range meds {
		n, w := s.planMedication(ctx, m, now)
		total += n
		warnings = append(warnings, w...)
	}
	return total, warnings, nil
}

// PruneReminders cancels the reminders in pending that no current slot of
// the profile produces: slots edited away and medications deleted, possibly
// by another process sharing the store. Reminders of other profiles are left
// alone. Failures are returned as warnings.
func (s *Service) PruneReminders(ctx context.Context, profileID string, pending []Reminder) ([]string, error) {
	meds, err := s.store.ListMedications(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("listing medications: %w", err)
	}

	owned := make(map[string]bool, len(meds))
	valid := make(map[string]bool)
	for _, m := range meds {
		owned[m.ID] = true
		for _, slot := range SlotsFor(m) {
			valid[ReminderID(m.ID, slot)] = true
		}
	}

	var warnings []string
	for _, r := range pending {
		if valid[r.ID] {
			continue
		}
		if !owned[r.Payload.MedicationID] {
			m, err := s.store.GetMedication(ctx, r.Payload.MedicationID)
			if err != nil {
				return warnings, fmt.Errorf("loading medication: %w", err)
			}
			if m != nil {
				continue
			}
		}
		if err := s.scheduler.Cancel(ctx, r.ID); err != nil {
			s.logger.Warn("cancelling reminder failed", "id", r.ID, "error", err)
			warnings = append(warnings, fmt.Sprintf("reminder %s not cancelled: %v", r.ID, err))
			continue
		}
		s.logger.Info("stale reminder dropped", "id", r.ID)
	}
	return warnings, nil
}

// planMedication schedules today's remaining slots of one medication. Slots
// that already have a log for their scheduled time get their reminder
// cancelled instead, as do all slots of a medication not due today. Failures
// are returned as warnings.
func (s *Service) planMedication(ctx context.Context, m *Medication, now time.Time) (int, []string) {
	day := Today(now, s.loc)
	if !m.IsActive || !ActiveOn(m, day) {
		return 0, s.cancelReminders(ctx, m)
	}

	logs, err := s.logsForDay(ctx, m.ID, day)
	if err != nil {
		s.logger.Warn("cannot load logs for reminders", "id", m.ID, "error", err)
		return 0, []string{fmt.Sprintf("reminders for %s not scheduled: %v", m.Name, err)}
	}
	handled := make(map[int64]bool, len(logs))
	for _, l := range logs {
		handled[l.ScheduledAt.Unix()] = true
	}

	count := 0
	var warnings []string
	for _, slot := range SlotsFor(m) {
		at := slot.On(day, s.loc)
		if !at.After(now) {
			continue
		}
		if handled[at.Unix()] {
			warnings = append(warnings, s.cancelSlot(ctx, m.ID, at)...)
			continue
		}
		r := newReminder(m, slot, at, at)
		if err := s.scheduler.Schedule(ctx, r); err != nil {
			s.logger.Warn("scheduling reminder failed", "id", r.ID, "error", err)
			warnings = append(warnings, fmt.Sprintf("reminder for %s at %s not scheduled: %v",
				m.Name, FormatClock(slot.Hour, slot.Minute), err))
			continue
		}
		count++
	}
	s.logger.Debug("reminders planned", "id", m.ID, "count", count)
	return count, warnings
}

func (s *Service) cancelReminders(ctx context.Context, m *Medication) []string {
	var warnings []string
	for _, slot := range SlotsFor(m) {
		id := ReminderID(m.ID, slot)
		if err := s.scheduler.Cancel(ctx, id); err != nil {
			s.logger.Warn("cancelling reminder failed", "id", id, "error", err)
			warnings = append(warnings, fmt.Sprintf("reminder %s not cancelled: %v", id, err))
		}
	}
	return warnings
}

func (s *Service) cancelSlot(ctx context.Context, medicationID string, scheduledAt time.Time) []string {
	at := scheduledAt.In(s.loc)
	id := ReminderID(medicationID, TimeSlot{Hour: at.Hour(), Minute: at.Minute()})
	if err := s.scheduler.Cancel(ctx, id); err != nil {
		s.logger.Warn("cancelling reminder failed", "id", id, "error", err)
		return []string{fmt.Sprintf("reminder %s not cancelled: %v", id, err)}
	}
	return nil
}
