package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quentinrf/luxpipe/internal/domain"
)

// ReadingRepository implements domain.ReadingRepository with SQLite
type ReadingRepository struct {
	db *sql.DB
}

// busyTimeoutMillis is how long a writer waits for a concurrent writer's lock
const busyTimeoutMillis = 5000

// NewReadingRepository creates a SQLite-backed repository
func NewReadingRepository(dbPath string) (*ReadingRepository, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Timestamps are unix seconds
	schema := `
	CREATE TABLE IF NOT EXISTS light_readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel TEXT NOT NULL,
		lux REAL NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_channel_timestamp ON light_readings(channel, timestamp);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &ReadingRepository{db: db}, nil
}

func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_busy_timeout=%d", dbPath, sep, busyTimeoutMillis)
}

// SaveReading stores a reading in SQLite
func (r *ReadingRepository) SaveReading(ctx context.Context, reading *domain.LightReading) error {
	query := `INSERT INTO light_readings (channel, lux, timestamp) VALUES (?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query, string(reading.Channel), reading.Lux, reading.Timestamp.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert id: %w", err)
	}

	reading.ID = id
	return nil
}

// GetReading retrieves a reading by ID
func (r *ReadingRepository) GetReading(ctx context.Context, id int64) (*domain.LightReading, error) {
	query := `SELECT id, channel, lux, timestamp FROM light_readings WHERE id = ?`

	reading, err := scanReading(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrReadingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query reading: %w", err)
	}

	return reading, nil
}

// GetReadingsInRange returns the channel's readings in [start, end)
func (r *ReadingRepository) GetReadingsInRange(ctx context.Context, channel domain.ChannelID, start, end time.Time) ([]*domain.LightReading, error) {
	query := `
		SELECT id, channel, lux, timestamp
		FROM light_readings
		WHERE channel = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, string(channel), start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []*domain.LightReading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}

	return readings, nil
}

// GetLatestReading returns the most recent reading of a channel
func (r *ReadingRepository) GetLatestReading(ctx context.Context, channel domain.ChannelID) (*domain.LightReading, error) {
	query := `
		SELECT id, channel, lux, timestamp
		FROM light_readings
		WHERE channel = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`

	reading, err := scanReading(r.db.QueryRowContext(ctx, query, string(channel)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrReadingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest reading: %w", err)
	}

	return reading, nil
}

// DeleteOldReadings removes readings older than specified duration
func (r *ReadingRepository) DeleteOldReadings(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	query := `DELETE FROM light_readings WHERE timestamp < ?`

	_, err := r.db.ExecContext(ctx, query, cutoff.Unix())
	if err != nil {
		return fmt.Errorf("failed to delete old readings: %w", err)
	}

	return nil
}

// Close closes the database connection
func (r *ReadingRepository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReading(row scanner) (*domain.LightReading, error) {
	var (
		reading domain.LightReading
		channel string
		unix    int64
	)

	if err := row.Scan(&reading.ID, &channel, &reading.Lux, &unix); err != nil {
		return nil, err
	}

	reading.Channel = domain.ChannelID(channel)
	reading.Timestamp = time.Unix(unix, 0)
	return &reading, nil
}
