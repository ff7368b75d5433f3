package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// QueryParams selects and orders rows.
type QueryParams struct {
	// Where is a condition without the WHERE keyword, for example
	// "Final = ? AND Link = ?".
	Where string
	Args  []any

	// OrderBy is a column list without the ORDER BY keywords.
	OrderBy string

	// Limit of 0 returns every row. Offset only applies with a limit.
	Limit  int
	Offset int
}

// DataReader reads back what a DataRecorder stored.
type DataReader interface {
	// MapTable tells the reader which struct a table's rows fill.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the mapped tables.
	ListTables() []string

	// Query returns pointers to the selected rows and the number of rows
	// that match params.Where, ignoring the limit.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	Close() error
}

type sqliteReader struct {
	db      *sql.DB
	typeMap map[string]reflect.Type
}

// NewReader opens a recorded SQLite file with the run tables mapped.
func NewReader(path string) DataReader {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		panic(err)
	}

	r := NewReaderWithDB(db)
	mapRunTables(r)

	return r
}

// NewReaderWithDB creates a DataReader on an open database. No table is
// mapped.
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqliteReader{
		db:      db,
		typeMap: make(map[string]reflect.Type),
	}
}

func mapRunTables(r DataReader) {
	r.MapTable(TransactionTable, TransactionEntry{})
	r.MapTable(EpochTable, EpochEntry{})
	r.MapTable(LinkTable, LinkEntry{})
	r.MapTable(BandwidthTable, BandwidthEntry{})
	r.MapTable(RunInfoTable, RunInfo{})
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	r.typeMap[tableName] = reflect.TypeOf(sampleEntry)
}

func (r *sqliteReader) ListTables() []string {
	tables := make([]string, 0, len(r.typeMap))
	for name := range r.typeMap {
		tables = append(tables, name)
	}

	sort.Strings(tables)

	return tables
}

func selectSQL(tableName, what string, params QueryParams, page bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "SELECT %s FROM %s", what, tableName)

	if params.Where != "" {
		b.WriteString(" WHERE " + params.Where)
	}

	if !page {
		return b.String()
	}

	if params.OrderBy != "" {
		b.WriteString(" ORDER BY " + params.OrderBy)
	}

	if params.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d OFFSET %d", params.Limit, params.Offset)
	}

	return b.String()
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	rowType, ok := r.typeMap[tableName]
	if !ok {
		return nil, 0, fmt.Errorf("no mapping found for table: %s", tableName)
	}

	var total int

	err := r.db.QueryRowContext(ctx,
		selectSQL(tableName, "COUNT(*)", params, false),
		params.Args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting %s: %w", tableName, err)
	}

	rows, err := r.db.QueryContext(ctx,
		selectSQL(tableName, "*", params, true), params.Args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying %s: %w", tableName, err)
	}
	defer rows.Close()

	results, err := scanRows(rows, rowType)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", tableName, err)
	}

	return results, total, nil
}

// scanRows fills one struct per row, matching columns to fields by name.
// Columns without a field are dropped.
func scanRows(rows *sql.Rows, rowType reflect.Type) ([]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []any

	for rows.Next() {
		ptr := reflect.New(rowType)
		targets := make([]any, len(cols))

		for i, col := range cols {
			f := ptr.Elem().FieldByName(col)
			if f.IsValid() && f.CanSet() {
				targets[i] = f.Addr().Interface()
				continue
			}

			var discard any
			targets[i] = &discard
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		results = append(results, ptr.Interface())
	}

	return results, rows.Err()
}

func (r *sqliteReader) Close() error {
	return r.db.Close()
}

// QueryAs runs a query and converts the rows to *T. T must be the type the
// table is mapped to.
func QueryAs[T any](
	ctx context.Context,
	r DataReader,
	tableName string,
	params QueryParams,
) ([]*T, error) {
	rows, _, err := r.Query(ctx, tableName, params)
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(rows))

	for _, row := range rows {
		t, ok := row.(*T)
		if !ok {
			return nil, fmt.Errorf("table %s holds %T, not %T",
				tableName, row, new(T))
		}

		out = append(out, t)
	}

	return out, nil
}

// RunSummary is what a recorded run ended with.
type RunSummary struct {
	RunID string
	Final *EpochEntry
	Links []*LinkEntry
	Info  map[string]string
}

// Summaries returns the final statistics of every run in a recording, in the
// order the runs were recorded.
func Summaries(ctx context.Context, r DataReader) ([]RunSummary, error) {
	finals, err := QueryAs[EpochEntry](ctx, r, EpochTable,
		QueryParams{Where: "Final = ?", Args: []any{true}, OrderBy: "rowid"})
	if err != nil {
		return nil, err
	}

	summaries := make([]RunSummary, 0, len(finals))

	for _, f := range finals {
		s := RunSummary{RunID: f.RunID, Final: f, Info: map[string]string{}}

		s.Links, err = QueryAs[LinkEntry](ctx, r, LinkTable, QueryParams{
			Where:   "Final = ? AND RunID = ?",
			Args:    []any{true, f.RunID},
			OrderBy: "Link",
		})
		if err != nil {
			return nil, err
		}

		info, err := QueryAs[RunInfo](ctx, r, RunInfoTable, QueryParams{})
		if err != nil {
			return nil, err
		}

		for _, i := range info {
			s.Info[i.Property] = i.Value
		}

		summaries = append(summaries, s)
	}

	return summaries, nil
}
