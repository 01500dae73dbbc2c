package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veraticus/digitpad/internal/model"
	"github.com/Veraticus/digitpad/internal/service"
	"github.com/google/uuid"
)

const predictionColumns = `id, session_id, label, confidence, probabilities, trigger_kind, created_at`

// SavePrediction stores a prediction. Missing IDs and timestamps are filled in.
func (s *SQLiteStorage) SavePrediction(ctx context.Context, record *service.PredictionRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecord(record); err != nil {
		return err
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.CreatedAt = record.CreatedAt.UTC()

	probs, err := json.Marshal(record.Probabilities)
	if err != nil {
		return fmt.Errorf("failed to marshal probabilities: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO predictions (`+predictionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.SessionID, record.Label, record.Confidence,
		string(probs), string(record.Trigger), record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	return nil
}

// RecentPredictions returns up to limit predictions, newest first.
func (s *SQLiteStorage) RecentPredictions(ctx context.Context, limit int) ([]service.PredictionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+predictionColumns+`
		FROM predictions
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanPredictions(rows)
}

// PredictionsBySession returns a session's predictions in the order they were made.
func (s *SQLiteStorage) PredictionsBySession(ctx context.Context, sessionID string) ([]service.PredictionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+predictionColumns+`
		FROM predictions
		WHERE session_id = ?
		ORDER BY created_at ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanPredictions(rows)
}

// LabelCounts aggregates all stored predictions by digit, most frequent first.
func (s *SQLiteStorage) LabelCounts(ctx context.Context) ([]service.LabelCount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT label, COUNT(*), AVG(confidence)
		FROM predictions
		GROUP BY label
		ORDER BY COUNT(*) DESC, label ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query label counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []service.LabelCount
	for rows.Next() {
		var c service.LabelCount
		if err := rows.Scan(&c.Label, &c.Count, &c.AvgConfidence); err != nil {
			return nil, fmt.Errorf("failed to scan label count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func scanPredictions(rows *sql.Rows) ([]service.PredictionRecord, error) {
	var records []service.PredictionRecord
	for rows.Next() {
		var (
			r       service.PredictionRecord
			probs   string
			trigger string
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Label, &r.Confidence, &probs, &trigger, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		if err := json.Unmarshal([]byte(probs), &r.Probabilities); err != nil {
			return nil, fmt.Errorf("failed to parse probabilities for %s: %w", r.ID, err)
		}
		r.Trigger = model.Trigger(trigger)
		records = append(records, r)
	}
	return records, rows.Err()
}
