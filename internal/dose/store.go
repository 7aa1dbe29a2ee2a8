package dose

import (
	"context"
	"time"
)

// Store is the persistent store for profiles, medications and the adherence log.
//
// Every mutation runs in a single transaction and takes ids, never previously
// loaded records: the row is re-read inside the transaction and ErrNotFound is
// returned when it has been deleted in the meantime. Lookups return (nil, nil)
// when nothing matches.
type Store interface {
	// Profile operations

	CreateProfile(ctx context.Context, p *Profile) error
	FindProfileByName(ctx context.Context, name string) (*Profile, error)
	ListProfiles(ctx context.Context) ([]*Profile, error)

	// Medication operations

	CreateMedication(ctx context.Context, m *Medication) error
	GetMedication(ctx context.Context, id string) (*Medication, error)
	ListMedications(ctx context.Context, profileID string) ([]*Medication, error)

	// UpdateMedication loads the medication inside a transaction, applies
	// mutate and writes the result. The returned value is the committed row.
	UpdateMedication(ctx context.Context, id string, mutate func(m *Medication) error) (*Medication, error)

	// DeleteMedication removes the medication and returns it as it was.
	// Dose logs are kept for history.
	DeleteMedication(ctx context.Context, id string) (*Medication, error)

	// Adherence log

	// RecordDose appends a dose log and, when requested, decrements stock in
	// one transaction. Either both happen or neither.
	RecordDose(ctx context.Context, ev DoseEvent) (*DoseOutcome, error)

	// LogsBetween returns logs acted on in [from, to), oldest first.
	// An empty medicationID matches every medication.
	LogsBetween(ctx context.Context, medicationID string, from, to time.Time) ([]*DoseLog, error)

	// LogsForMedication returns the most recent logs for a medication, oldest first.
	LogsForMedication(ctx context.Context, medicationID string, limit int) ([]*DoseLog, error)

	// Subscribe registers fn for committed changes. The returned func removes it.
	Subscribe(fn func(Change)) (cancel func())

	Close() error
}

// DoseEvent is the input to Store.RecordDose.
type DoseEvent struct {
	LogID          string
	MedicationID   string
	Status         Status
	ScheduledAt    time.Time
	TakenAt        time.Time
	DecrementStock bool
}

// DoseOutcome is the committed result of Store.RecordDose.
type DoseOutcome struct {
	Log       *DoseLog
	Inventory Inventory // after any decrement
}

// Entity names the kind of record a Change is about.
type Entity string

const (
	EntityProfile    Entity = "profile"
	EntityMedication Entity = "medication"
	EntityDoseLog    Entity = "dose_log"
)

// ChangeKind is what happened to a record.
type ChangeKind int

const (
	Created ChangeKind = iota
	Updated
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Change is published after a transaction commits.
type Change struct {
	Entity Entity
	ID     string
	Kind   ChangeKind
}
