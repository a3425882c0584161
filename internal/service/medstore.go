package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/medstore/medstore/pkg/model"
	"go.uber.org/zap"
)

// ErrIndexOutOfRange is returned when an operation references a position
// outside the current record list. The store is left untouched.
var ErrIndexOutOfRange = errors.New("index out of range")

// SnapshotRepository persists the full record list as one document.
type SnapshotRepository interface {
	Load(ctx context.Context) (*model.Snapshot, error)
	Save(ctx context.Context, snap *model.Snapshot) error
}

// MedStore holds the ordered medication list and all mutation logic.
//
// Records are addressed by position: deleting a record shifts every later
// index down by one, so callers holding a stale index will silently hit the
// wrong record. Positional addressing is kept for compatibility with the
// existing dashboards and automations.
//
// All operations take the store lock, so concurrent service calls are
// serialized the same way the original single-threaded event loop
// serialized them.
type MedStore struct {
	mu     sync.Mutex
	meds   []model.Medication
	repo   SnapshotRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewMedStore creates an empty store backed by the given snapshot repository.
func NewMedStore(repo SnapshotRepository, logger *zap.Logger) *MedStore {
	return &MedStore{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Load restores the record list from the persisted snapshot. A missing
// snapshot is not an error; the store starts fresh.
func (s *MedStore) Load(ctx context.Context) error {
	snap, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if snap == nil {
		s.logger.Info("snapshot storage empty; starting fresh")
		return nil
	}

	s.meds = snap.Meds
	s.logger.Info("store restored from snapshot", zap.Int("count", len(s.meds)))
	return nil
}

// State returns the entry count and a copy of the record list for the
// state surface.
func (s *MedStore) State() (int, []model.Medication) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meds := make([]model.Medication, len(s.meds))
	for i, med := range s.meds {
		med.Timing = append([]string(nil), med.Timing...)
		med.TakenCountPerDose = append([]int(nil), med.TakenCountPerDose...)
		meds[i] = med
	}
	return len(meds), meds
}

// Add appends a new record built by merging the defaults with the caller
// payload and returns it together with its position.
func (s *MedStore) Add(ctx context.Context, payload model.MedicationPatch) (model.Medication, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timing := payload.Timing
	if timing == nil {
		timing = []string{}
	}

	med := model.Medication{
		Name:              fmt.Sprintf("Med %d", len(s.meds)+1),
		Dose:              1,
		DosesPerDay:       defaultDosesPerDay(timing),
		Timing:            timing,
		TakenCountPerDose: make([]int, max(len(timing), 1)),
		Active:            true,
	}

	if payload.Name != nil {
		med.Name = *payload.Name
	}
	if payload.Strength != nil {
		med.Strength = *payload.Strength
	}
	if payload.Dose != nil {
		med.Dose = *payload.Dose
	}
	if payload.DosesPerDay != nil {
		med.DosesPerDay = *payload.DosesPerDay
	}
	if payload.DosesAvailable != nil {
		med.DosesAvailable = *payload.DosesAvailable
	}
	if payload.RefillsAvailable != nil {
		med.RefillsAvailable = *payload.RefillsAvailable
	}
	if payload.DosesPerRefill != nil {
		med.DosesPerRefill = *payload.DosesPerRefill
	}
	if payload.TakenCountPerDose != nil {
		med.TakenCountPerDose = payload.TakenCountPerDose
	}
	if payload.AllTaken != nil {
		med.AllTaken = *payload.AllTaken
	}
	if payload.Active != nil {
		med.Active = *payload.Active
	}

	s.recalcNextRefill(&med)
	s.meds = append(s.meds, med)
	index := len(s.meds) - 1

	if err := s.save(ctx); err != nil {
		return med, index, err
	}

	s.logger.Info("medication added",
		zap.Int("index", index),
		zap.String("name", med.Name),
	)
	return med, index, nil
}

// Delete removes the record at index. Every later index shifts down by one.
func (s *MedStore) Delete(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.meds) {
		s.logger.Warn("delete index out of range",
			zap.Int("index", index),
			zap.Int("count", len(s.meds)),
		)
		return ErrIndexOutOfRange
	}

	name := s.meds[index].Name
	s.meds = append(s.meds[:index], s.meds[index+1:]...)

	if err := s.save(ctx); err != nil {
		return err
	}

	s.logger.Info("medication deleted",
		zap.Int("index", index),
		zap.String("name", name),
	)
	return nil
}

// Update merges the given fields into the record at index. Nil fields are
// left untouched; there is no deep merge.
func (s *MedStore) Update(ctx context.Context, index int, updates model.MedicationPatch) (model.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.meds) {
		s.logger.Warn("update index out of range",
			zap.Int("index", index),
			zap.Int("count", len(s.meds)),
		)
		return model.Medication{}, ErrIndexOutOfRange
	}

	med := &s.meds[index]
	if updates.Name != nil {
		med.Name = *updates.Name
	}
	if updates.Strength != nil {
		med.Strength = *updates.Strength
	}
	if updates.Dose != nil {
		med.Dose = *updates.Dose
	}
	if updates.DosesPerDay != nil {
		med.DosesPerDay = *updates.DosesPerDay
	}
	if updates.Timing != nil {
		med.Timing = updates.Timing
	}
	if updates.DosesAvailable != nil {
		med.DosesAvailable = *updates.DosesAvailable
	}
	if updates.RefillsAvailable != nil {
		med.RefillsAvailable = *updates.RefillsAvailable
	}
	if updates.DosesPerRefill != nil {
		med.DosesPerRefill = *updates.DosesPerRefill
	}
	if updates.TakenCountPerDose != nil {
		med.TakenCountPerDose = updates.TakenCountPerDose
	}
	if updates.AllTaken != nil {
		med.AllTaken = *updates.AllTaken
	}
	if updates.Active != nil {
		med.Active = *updates.Active
	}

	s.recalcNextRefill(med)

	if err := s.save(ctx); err != nil {
		return *med, err
	}

	s.logger.Info("medication updated",
		zap.Int("index", index),
		zap.String("name", med.Name),
	)
	return *med, nil
}

// ToggleActive flips the active flag on the record at index.
func (s *MedStore) ToggleActive(ctx context.Context, index int) (model.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.meds) {
		s.logger.Warn("toggle_active index out of range",
			zap.Int("index", index),
			zap.Int("count", len(s.meds)),
		)
		return model.Medication{}, ErrIndexOutOfRange
	}

	med := &s.meds[index]
	med.Active = !med.Active

	if err := s.save(ctx); err != nil {
		return *med, err
	}

	s.logger.Info("medication active toggled",
		zap.Int("index", index),
		zap.Bool("active", med.Active),
	)
	return *med, nil
}

// TakeDose marks the dose slot as taken and decrements the inventory by the
// record's dose amount. The inventory is deliberately not floored at zero: a
// negative count surfaces data-entry errors instead of hiding them.
func (s *MedStore) TakeDose(ctx context.Context, index, doseIndex int) (model.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.meds) {
		s.logger.Warn("take_dose index out of range",
			zap.Int("index", index),
			zap.Int("count", len(s.meds)),
		)
		return model.Medication{}, ErrIndexOutOfRange
	}

	med := &s.meds[index]
	if doseIndex < 0 || doseIndex >= len(med.Timing) {
		s.logger.Warn("take_dose dose_index out of range",
			zap.Int("index", index),
			zap.Int("dose_index", doseIndex),
			zap.Int("timing_len", len(med.Timing)),
		)
		return model.Medication{}, ErrIndexOutOfRange
	}

	// Partial updates may have left the taken list shorter than timing.
	if len(med.TakenCountPerDose) < len(med.Timing) {
		padded := make([]int, len(med.Timing))
		copy(padded, med.TakenCountPerDose)
		med.TakenCountPerDose = padded
	}

	med.TakenCountPerDose[doseIndex] = 1
	med.DosesAvailable -= med.Dose
	med.AllTaken = allTaken(med.TakenCountPerDose)

	s.recalcNextRefill(med)

	if err := s.save(ctx); err != nil {
		return *med, err
	}

	s.logger.Info("dose taken",
		zap.Int("index", index),
		zap.Int("dose_index", doseIndex),
		zap.Int("doses_available", med.DosesAvailable),
		zap.Bool("all_taken", med.AllTaken),
	)
	return *med, nil
}

// AddRefill adds amount to the inventory and consumes one refill
// authorization, floored at zero. A nil amount defaults to the record's
// doses_per_refill.
func (s *MedStore) AddRefill(ctx context.Context, index int, amount *int) (model.Medication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.meds) {
		s.logger.Warn("add_refill index out of range",
			zap.Int("index", index),
			zap.Int("count", len(s.meds)),
		)
		return model.Medication{}, ErrIndexOutOfRange
	}

	med := &s.meds[index]
	amt := med.DosesPerRefill
	if amount != nil {
		amt = *amount
	}

	med.DosesAvailable += amt
	if med.RefillsAvailable > 0 {
		med.RefillsAvailable--
	}

	s.recalcNextRefill(med)

	if err := s.save(ctx); err != nil {
		return *med, err
	}

	s.logger.Info("refill added",
		zap.Int("index", index),
		zap.Int("amount", amt),
		zap.Int("doses_available", med.DosesAvailable),
		zap.Int("refills_available", med.RefillsAvailable),
	)
	return *med, nil
}

// ResetDaily clears the taken flags for every active record with a dosing
// schedule. Runs at the configured day boundary.
func (s *MedStore) ResetDaily(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for i := range s.meds {
		med := &s.meds[i]
		if med.Active && med.DosesPerDay > 0 {
			med.TakenCountPerDose = make([]int, len(med.Timing))
			med.AllTaken = false
			changed = true
		}
	}

	if !changed {
		return nil
	}

	if err := s.save(ctx); err != nil {
		return err
	}

	s.logger.Info("daily taken flags reset", zap.Int("count", len(s.meds)))
	return nil
}

// recalcNextRefill recomputes the estimated refill date from the current
// inventory and dosing schedule. Empty string means no estimate.
// Caller must hold the store lock.
func (s *MedStore) recalcNextRefill(med *model.Medication) {
	dailyNeed := med.Dose * med.DosesPerDay
	if dailyNeed <= 0 {
		med.NextRefill = ""
		return
	}
	daysLeft := med.DosesAvailable / dailyNeed
	med.NextRefill = s.now().AddDate(0, 0, daysLeft).Format("2006-01-02")
}

// save persists the current list. The in-memory mutation stands even when
// the save fails; the error is surfaced so callers can report it.
// Caller must hold the store lock.
func (s *MedStore) save(ctx context.Context) error {
	if err := s.repo.Save(ctx, &model.Snapshot{Meds: s.meds}); err != nil {
		s.logger.Error("failed to save snapshot", zap.Error(err))
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func defaultDosesPerDay(timing []string) int {
	if len(timing) > 0 {
		return len(timing)
	}
	return 1
}

func allTaken(counts []int) bool {
	for _, c := range counts {
		if c < 1 {
			return false
		}
	}
	return true
}
