package ingest

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/get-latest-readings.sql
var getLatestReadingsSQL string

//go:embed sql/get-classification-counts.sql
var getClassificationCountsSQL string

// receivedAtLayout is fixed width so that received_at sorts as text.
const receivedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Reading is one stored POST /flex request.
type Reading struct {
	ID             int64     `json:"id"`
	ReceivedAt     time.Time `json:"received_at"`
	FlexValue      float64   `json:"flex_value"`
	Classification string    `json:"classification"`
}

// ClassCount is the number of stored readings carrying one label.
type ClassCount struct {
	Classification string `json:"classification"`
	Count          int    `json:"count"`
}

type Repository interface {
	InsertReading(ctx context.Context, at time.Time, flexValue float64, classification string) (int64, error)
	GetLatestReadings(ctx context.Context, limit int) ([]Reading, error)
	GetClassificationCounts(ctx context.Context) ([]ClassCount, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) InsertReading(ctx context.Context, at time.Time, flexValue float64, classification string) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertReadingSQL, at.UTC().Format(receivedAtLayout), flexValue, classification)
	if err != nil {
		return 0, fmt.Errorf("insert reading: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert reading: last insert id: %w", err)
	}
	return id, nil
}

func (r *repositoryImpl) GetLatestReadings(ctx context.Context, limit int) ([]Reading, error) {
	rows, err := r.db.QueryContext(ctx, getLatestReadingsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close latest readings rows", "error", err)
		}
	}()

	out := []Reading{}
	for rows.Next() {
		var rec Reading
		var ts string
		if err := rows.Scan(&rec.ID, &ts, &rec.FlexValue, &rec.Classification); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse received_at %q: %w", ts, err)
		}
		rec.ReceivedAt = t
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) GetClassificationCounts(ctx context.Context) ([]ClassCount, error) {
	rows, err := r.db.QueryContext(ctx, getClassificationCountsSQL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close classification count rows", "error", err)
		}
	}()

	out := []ClassCount{}
	for rows.Next() {
		var c ClassCount
		if err := rows.Scan(&c.Classification, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
