package postgres

import (
	"context"
	"sync"
	"time"

	"pdf-generator/internal/config"
	"pdf-generator/internal/domain"
)

const (
	ddlConversions = `CREATE TABLE IF NOT EXISTS conversions (
		id BIGSERIAL PRIMARY KEY,
		request_id TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		html_bytes INTEGER NOT NULL,
		pdf_bytes INTEGER NOT NULL,
		duration_ms BIGINT NOT NULL,
		outcome TEXT NOT NULL,
		error_code TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	ddlConversionsIdx = `CREATE INDEX IF NOT EXISTS idx_conversions_created_at ON conversions (created_at);`

	insertConversion = `INSERT INTO conversions
		(request_id, endpoint, html_bytes, pdf_bytes, duration_ms, outcome, error_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`
)

// Journal appends one row per finished conversion. It stores metadata only,
// never HTML or PDF content.
type Journal struct {
	DB  *DB
	DSN string

	schemaMu    sync.Mutex
	schemaReady bool
}

// NewJournal builds a Journal from the postgres section of the config.
func NewJournal(cfg config.PostgresConfig) (*Journal, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	return &Journal{DB: NewDB(dsn), DSN: dsn}, nil
}

// EnsureSchema creates the conversions table once per Journal.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	j.schemaMu.Lock()
	defer j.schemaMu.Unlock()
	if j.schemaReady {
		return nil
	}

	db, err := j.DB.Get()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, ddlConversions); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, ddlConversionsIdx); err != nil {
		return err
	}
	j.schemaReady = true
	return nil
}

// Record inserts rec.
func (j *Journal) Record(ctx context.Context, rec domain.ConversionRecord) error {
	if err := j.EnsureSchema(ctx); err != nil {
		return err
	}
	db, err := j.DB.Get()
	if err != nil {
		return err
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var errorCode any
	if rec.ErrorCode != "" {
		errorCode = rec.ErrorCode
	}

	_, err = db.ExecContext(ctx, insertConversion,
		rec.RequestID,
		rec.Endpoint,
		int64(rec.HTMLBytes),
		int64(rec.PDFBytes),
		rec.Duration.Milliseconds(),
		string(rec.Outcome),
		errorCode,
		createdAt,
	)
	return err
}

// Close releases the pool. Record fails with ErrDBClosed afterwards.
func (j *Journal) Close() error {
	return j.DB.Close()
}
