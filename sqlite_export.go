package featuremill

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"
)

// SQLiteExporterConfig configures the SQLite exporter.
type SQLiteExporterConfig struct {
	// Path to the SQLite database file.
	Path string

	// TablePrefix prefixes the created tables (default: "featuremill").
	TablePrefix string

	// BusyTimeout is the timeout for acquiring locks in milliseconds
	// (default: 5000).
	BusyTimeout int
}

// DefaultSQLiteExporterConfig returns default configuration.
func DefaultSQLiteExporterConfig(path string) SQLiteExporterConfig {
	return SQLiteExporterConfig{
		Path:        path,
		TablePrefix: "featuremill",
		BusyTimeout: 5000,
	}
}

// SQLiteExporter persists feature matrices into a SQLite file so the output
// can be inspected and joined with standard SQL tools. It writes two tables:
// <prefix>_definitions (the exported feature set) and <prefix>_matrix (one
// column per feature, rows in matrix order).
type SQLiteExporter struct {
	db     *sql.DB
	config SQLiteExporterConfig
	mu     sync.Mutex
	closed bool
}

// NewSQLiteExporter opens (or creates) the target SQLite database.
func NewSQLiteExporter(config SQLiteExporterConfig) (*SQLiteExporter, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("sqlite exporter: path is required")
	}
	if config.TablePrefix == "" {
		config.TablePrefix = "featuremill"
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5000
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", config.Path, config.BusyTimeout)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite exporter: %w", err)
	}
	return &SQLiteExporter{db: db, config: config}, nil
}

// Export writes the snapshot's definitions and matrix. Existing export
// tables with the same prefix are replaced.
func (e *SQLiteExporter) Export(ctx context.Context, snap *Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if snap == nil || snap.Matrix == nil {
		return fmt.Errorf("sqlite exporter: snapshot has no matrix")
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	defTable := e.config.TablePrefix + "_definitions"
	matTable := e.config.TablePrefix + "_matrix"

	for _, stmt := range []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoteIdent(defTable)),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoteIdent(matTable)),
		fmt.Sprintf(`CREATE TABLE %s (
			name TEXT PRIMARY KEY,
			primitive TEXT NOT NULL,
			kind TEXT NOT NULL,
			source_table TEXT NOT NULL,
			source_column TEXT,
			depth INTEGER NOT NULL,
			output_type TEXT NOT NULL
		)`, quoteIdent(defTable)),
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite exporter: %w", err)
		}
	}

	insDef, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (name, primitive, kind, source_table, source_column, depth, output_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`, quoteIdent(defTable)))
	if err != nil {
		return err
	}
	defer insDef.Close()
	for _, d := range snap.Definitions {
		if _, err := insDef.ExecContext(ctx, d.Name, d.Primitive, string(d.Kind),
			d.Table, d.Column, d.Depth(), d.Output.String()); err != nil {
			return fmt.Errorf("sqlite exporter: %w", err)
		}
	}

	m := snap.Matrix
	cols := []string{`row_pos INTEGER PRIMARY KEY`, `entity_id TEXT`, `cutoff_time TEXT`}
	for _, name := range m.Columns {
		cols = append(cols, quoteIdent(name)+" "+sqliteType(m, name))
	}
	if m.HasLabel {
		cols = append(cols, `label TEXT`)
	}
	create := fmt.Sprintf(`CREATE TABLE %s (%s)`, quoteIdent(matTable), strings.Join(cols, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("sqlite exporter: %w", err)
	}

	placeholders := make([]string, 0, len(m.Columns)+4)
	names := []string{"row_pos", "entity_id", "cutoff_time"}
	for _, name := range m.Columns {
		names = append(names, quoteIdent(name))
	}
	if m.HasLabel {
		names = append(names, "label")
	}
	for range names {
		placeholders = append(placeholders, "?")
	}
	insRow, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		quoteIdent(matTable), strings.Join(names, ", "), strings.Join(placeholders, ", ")))
	if err != nil {
		return err
	}
	defer insRow.Close()

	for pos, row := range m.Rows {
		args := make([]any, 0, len(names))
		args = append(args, pos, formatCell(row.EntityID), row.CutoffTime.UTC().Format(time.RFC3339))
		for _, v := range row.Values {
			args = append(args, sqliteCell(v))
		}
		if m.HasLabel {
			args = append(args, sqliteCell(row.Label))
		}
		if _, err := insRow.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("sqlite exporter: %w", err)
		}
	}

	return tx.Commit()
}

// Close releases the database handle.
func (e *SQLiteExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.closed = true
	return e.db.Close()
}

// quoteIdent quotes a SQL identifier; feature names contain parentheses and
// brackets.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// sqliteType picks a column affinity from the feature's semantic output type.
func sqliteType(m *FeatureMatrix, column string) string {
	// Infer from the first non-null cell; matrices carry values, not types.
	for i, name := range m.Columns {
		if name != column {
			continue
		}
		for _, row := range m.Rows {
			switch row.Values[i].(type) {
			case nil:
				continue
			case float64, float32, int, int64:
				return "REAL"
			case bool:
				return "INTEGER"
			default:
				return "TEXT"
			}
		}
	}
	return "TEXT"
}

// sqliteCell maps a matrix cell onto a SQLite value; nil stays NULL.
func sqliteCell(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		if x {
			return 1
		}
		return 0
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case float64, float32, int, int64, string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}
