// Package testutil provides shared fixtures for tests that need a prediction
// history.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/digitpad/internal/model"
	"github.com/Veraticus/digitpad/internal/service"
	"github.com/Veraticus/digitpad/internal/storage"
	"github.com/google/uuid"
)

// TestDB is a migrated in-memory history database.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
	clock   time.Time
}

// SetupTestDB creates a migrated in-memory database closed when the test ends.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	session := db.SeedSession("draw", 4, 4, 9)
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	// Create in-memory SQLite storage
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Run migrations
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Register cleanup
	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
		clock:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// SeedSession starts a session and stores one stroke_end prediction per
// label, a minute apart and in order. Each prediction puts 0.8 on its label.
// It returns the session ID.
func (db *TestDB) SeedSession(source string, labels ...int) string {
	db.t.Helper()
	ctx := context.Background()

	session := &service.SessionRecord{
		ID:        uuid.NewString(),
		Source:    source,
		Backend:   "dense",
		Model:     "weights.json",
		StartedAt: db.clock,
	}
	if err := db.Storage.StartSession(ctx, session); err != nil {
		db.t.Fatalf("failed to seed session: %v", err)
	}

	for _, label := range labels {
		db.clock = db.clock.Add(time.Minute)
		probs := make([]float64, model.NumClasses)
		for i := range probs {
			probs[i] = 0.2 / float64(model.NumClasses-1)
		}
		probs[label] = 0.8

		record := &service.PredictionRecord{
			SessionID:     session.ID,
			Label:         label,
			Confidence:    0.8,
			Probabilities: probs,
			Trigger:       model.TriggerStrokeEnd,
			CreatedAt:     db.clock,
		}
		if err := db.Storage.SavePrediction(ctx, record); err != nil {
			db.t.Fatalf("failed to seed prediction %d: %v", label, err)
		}
	}
	return session.ID
}
