package datarecording

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/fatih/structs"
	"github.com/tebeka/atexit"
)

// ClickHouseOptions locates a ClickHouse server.
type ClickHouseOptions struct {
	Host      string
	Port      int
	Database  string
	Username  string
	Password  string
	BatchSize int
}

// ClickHouseRecorder records into a ClickHouse database. Tables use the
// MergeTree engine ordered by their first column.
type ClickHouseRecorder struct {
	conn      driver.Conn
	mu        sync.Mutex
	batchSize int

	tables     map[string]*table
	entryCount int
}

// NewClickHouseRecorder connects to a ClickHouse server.
func NewClickHouseRecorder(opts ClickHouseOptions) (*ClickHouseRecorder, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", opts.Host, opts.Port)},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      time.Second * 30,
		MaxOpenConns:     5,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		BlockBufferSize:  10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return newClickHouseRecorder(conn, opts.BatchSize), nil
}

func newClickHouseRecorder(conn driver.Conn, batchSize int) *ClickHouseRecorder {
	if batchSize == 0 {
		batchSize = 100000
	}

	r := &ClickHouseRecorder{
		conn:      conn,
		batchSize: batchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { r.Flush() })

	return r
}

func clickHouseType(kind reflect.Kind) (string, bool) {
	switch kind {
	case reflect.Bool:
		return "Bool", true
	case reflect.Int8:
		return "Int8", true
	case reflect.Int16:
		return "Int16", true
	case reflect.Int32:
		return "Int32", true
	case reflect.Int, reflect.Int64:
		return "Int64", true
	case reflect.Uint8:
		return "UInt8", true
	case reflect.Uint16:
		return "UInt16", true
	case reflect.Uint32:
		return "UInt32", true
	case reflect.Uint, reflect.Uint64:
		return "UInt64", true
	case reflect.Float32:
		return "Float32", true
	case reflect.Float64:
		return "Float64", true
	case reflect.String:
		return "String", true
	default:
		return "", false
	}
}

func clickHouseCreateSQL(tableName string, sampleEntry any) string {
	cols := columns(sampleEntry, clickHouseType)

	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s
) ENGINE = MergeTree()
ORDER BY %s`,
		tableName,
		strings.Join(cols, ",\n\t"),
		structs.Names(sampleEntry)[0])
}

// CreateTable creates a table for entries shaped like sampleEntry.
func (r *ClickHouseRecorder) CreateTable(tableName string, sampleEntry any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.conn.Exec(context.Background(),
		clickHouseCreateSQL(tableName, sampleEntry))
	if err != nil {
		panic(fmt.Errorf("failed to create table %s: %w", tableName, err))
	}

	r.tables[tableName] = &table{structType: reflect.TypeOf(sampleEntry)}
}

// InsertData buffers an entry.
func (r *ClickHouseRecorder) InsertData(tableName string, entry any) {
	r.mu.Lock()

	t, exists := r.tables[tableName]
	if !exists {
		r.mu.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	t.entries = append(t.entries, entry)
	r.entryCount++
	full := r.entryCount >= r.batchSize

	r.mu.Unlock()

	if full {
		r.Flush()
	}
}

// ListTables returns all table names.
func (r *ClickHouseRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables := make([]string, 0, len(r.tables))
	for name := range r.tables {
		tables = append(tables, name)
	}

	sort.Strings(tables)

	return tables
}

// Flush sends every buffered entry in one batch per table.
func (r *ClickHouseRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entryCount == 0 {
		return
	}

	ctx := context.Background()

	for name, t := range r.tables {
		if len(t.entries) == 0 {
			continue
		}

		r.flushTable(ctx, name, t)
	}

	r.entryCount = 0
}

func (r *ClickHouseRecorder) flushTable(
	ctx context.Context,
	tableName string,
	t *table,
) {
	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO "+tableName)
	if err != nil {
		panic(fmt.Errorf("failed to prepare batch for %s: %w", tableName, err))
	}

	for _, entry := range t.entries {
		err = batch.Append(structs.Values(entry)...)
		if err != nil {
			panic(fmt.Errorf("failed to append to batch: %w", err))
		}
	}

	err = batch.Send()
	if err != nil {
		panic(fmt.Errorf("failed to send batch: %w", err))
	}

	t.entries = t.entries[:0]
}

// Close flushes remaining data and closes the connection.
func (r *ClickHouseRecorder) Close() error {
	r.Flush()

	err := r.conn.Close()
	if err != nil {
		return fmt.Errorf("failed to close ClickHouse connection: %w", err)
	}

	return nil
}
