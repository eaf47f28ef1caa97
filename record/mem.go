package record

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"foodlog"
)

// MemStore is an in-memory Store for tests and local runs.
type MemStore struct {
	mu          sync.Mutex
	nextLogID   int64
	nextEntryID int64
	logs        map[int64]IngestionRecord
	ingredients map[int64][]IngredientEntry

	// FailInsert, when set, is returned from every InsertIngredient call.
	FailInsert error
}

func NewMemStore() *MemStore {
	return &MemStore{
		logs:        make(map[int64]IngestionRecord),
		ingredients: make(map[int64][]IngredientEntry),
	}
}

// SeedLog inserts a record with a fixed id. Later ids continue after it.
func (m *MemStore) SeedLog(rec IngestionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.logs[rec.ID] = rec
	if rec.ID > m.nextLogID {
		m.nextLogID = rec.ID
	}
}

func (m *MemStore) CreatePendingLog(ctx context.Context, ownerID int64, mediaRef string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, storageErr("create food log", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLogID++
	m.logs[m.nextLogID] = IngestionRecord{
		ID:        m.nextLogID,
		OwnerID:   ownerID,
		MediaRef:  mediaRef,
		CreatedAt: time.Now().UTC(),
	}
	return m.nextLogID, nil
}

func (m *MemStore) InsertIngredient(ctx context.Context, entry IngredientEntry) (int64, error) {
	entry.WeightGrams = RoundWeight(entry.WeightGrams)
	if err := entry.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %w", foodlog.ErrValidation, err)
	}
	if m.FailInsert != nil {
		return 0, storageErr("insert ingredient", m.FailInsert)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.logs[entry.LogID]; !ok {
		return 0, fmt.Errorf("food log %d: %w", entry.LogID, ErrNotFound)
	}
	m.nextEntryID++
	entry.ID = m.nextEntryID
	m.ingredients[entry.LogID] = append(m.ingredients[entry.LogID], entry)
	return entry.ID, nil
}

func (m *MemStore) GetLog(ctx context.Context, id int64) (IngestionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.logs[id]
	if !ok {
		return IngestionRecord{}, fmt.Errorf("food log %d: %w", id, ErrNotFound)
	}
	return rec, nil
}

func (m *MemStore) CountIngredients(ctx context.Context, logID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ingredients[logID]), nil
}

func (m *MemStore) SetConfidence(ctx context.Context, id int64, confidence int) (bool, error) {
	if !ValidConfidence(confidence) {
		return false, fmt.Errorf("%w: %w", foodlog.ErrValidation, ErrInvalidConfidence)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.logs[id]
	if !ok {
		return false, nil
	}
	c := confidence
	rec.Confidence = &c
	m.logs[id] = rec
	return true, nil
}

func (m *MemStore) ListIngredients(ctx context.Context, logID int64) ([]IngredientEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]IngredientEntry{}, m.ingredients[logID]...), nil
}

func (m *MemStore) ListLogsByOwner(ctx context.Context, ownerID int64) ([]IngestionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []IngestionRecord{}
	for _, rec := range m.logs {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MemStore) DeleteLog(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ingredients, id)
	if _, ok := m.logs[id]; !ok {
		return false, nil
	}
	delete(m.logs, id)
	return true, nil
}
