package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-generator/internal/config"
	"pdf-generator/internal/domain"
)

type execCall struct {
	query string
	args  []driver.NamedValue
}

type fakeDriver struct {
	mu      sync.Mutex
	calls   []execCall
	failDDL bool
}

type fakeConn struct{ d *fakeDriver }

var testDriverCounter atomic.Int64

func (d *fakeDriver) Open(string) (driver.Conn, error) { return fakeConn{d: d}, nil }

func (c fakeConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c fakeConn) Close() error                        { return nil }
func (c fakeConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }

func (c fakeConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if c.d.failDDL && strings.Contains(query, "CREATE") {
		return nil, errors.New("schema failed")
	}
	c.d.calls = append(c.d.calls, execCall{query: query, args: args})
	return driver.RowsAffected(1), nil
}

func (d *fakeDriver) snapshot() []execCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]execCall(nil), d.calls...)
}

func testJournal(t *testing.T, drv *fakeDriver) *Journal {
	t.Helper()
	name := fmt.Sprintf("fakepg_%d", testDriverCounter.Add(1))
	sql.Register(name, drv)
	db, err := sql.Open(name, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Journal{DB: &DB{db: db, dsn: "x"}, DSN: "x"}
}

func TestJournal_RecordCreatesSchemaOnceAndInserts(t *testing.T) {
	drv := &fakeDriver{}
	j := testJournal(t, drv)
	ctx := context.Background()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := domain.ConversionRecord{
		RequestID: "req-1",
		Endpoint:  "/api/v1/generate-pdf",
		HTMLBytes: 9,
		PDFBytes:  1024,
		Duration:  1500 * time.Millisecond,
		Outcome:   domain.OutcomeSuccess,
		CreatedAt: created,
	}
	require.NoError(t, j.Record(ctx, rec))
	require.NoError(t, j.Record(ctx, rec))

	calls := drv.snapshot()
	require.Len(t, calls, 4, "two DDL statements once, then two inserts")
	assert.Contains(t, calls[0].query, "CREATE TABLE IF NOT EXISTS conversions")
	assert.Contains(t, calls[1].query, "CREATE INDEX")

	insert := calls[2]
	assert.Contains(t, insert.query, "INSERT INTO conversions")
	require.Len(t, insert.args, 8)
	assert.Equal(t, "req-1", insert.args[0].Value)
	assert.Equal(t, int64(1024), insert.args[3].Value)
	assert.Equal(t, int64(1500), insert.args[4].Value)
	assert.Equal(t, "success", insert.args[5].Value)
	assert.Nil(t, insert.args[6].Value)
	assert.Equal(t, created, insert.args[7].Value)
}

func TestJournal_RecordFailureCode(t *testing.T) {
	drv := &fakeDriver{}
	j := testJournal(t, drv)

	require.NoError(t, j.Record(context.Background(), domain.ConversionRecord{
		RequestID: "req-2",
		Outcome:   domain.OutcomeFailure,
		ErrorCode: "launch_failed",
	}))
	calls := drv.snapshot()
	last := calls[len(calls)-1]
	assert.Equal(t, "launch_failed", last.args[6].Value)
	_, isTime := last.args[7].Value.(time.Time)
	assert.True(t, isTime, "zero CreatedAt must be filled in")
}

func TestJournal_SchemaErrorIsReturned(t *testing.T) {
	drv := &fakeDriver{failDDL: true}
	j := testJournal(t, drv)

	err := j.Record(context.Background(), domain.ConversionRecord{RequestID: "r"})
	require.Error(t, err)
	assert.Empty(t, drv.snapshot())
}

func TestJournal_RecordAfterCloseDoesNotReopen(t *testing.T) {
	drv := &fakeDriver{}
	j := testJournal(t, drv)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, domain.ConversionRecord{RequestID: "before"}))
	require.NoError(t, j.Close())

	err := j.Record(ctx, domain.ConversionRecord{RequestID: "after"})
	assert.ErrorIs(t, err, ErrDBClosed)
	assert.Nil(t, j.DB.db)
	assert.Len(t, drv.snapshot(), 3, "no statement may run after Close")
}

func TestNewJournal_InvalidConfig(t *testing.T) {
	_, err := NewJournal(config.PostgresConfig{})
	assert.Error(t, err)

	j, err := NewJournal(config.PostgresConfig{Host: "localhost", Database: "d", User: "u"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(j.DSN, "postgres://"))
	require.NoError(t, j.Close())
}
