package session

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSink stores rows in a single-file SQLite database, one REAL column
// per field. All rows go through one transaction that Close commits, so an
// interrupted session still leaves every row written so far.
type SQLiteSink struct {
	path string
	db   *sql.DB
	tx   *sql.Tx
	ins  *sql.Stmt
	fail *sql.Stmt

	closeOnce sync.Once
	closeErr  error
}

// NewSQLiteSink opens (creating if needed) the database at path.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=DELETE&_synchronous=NORMAL", path))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &SQLiteSink{path: path, db: db}, nil
}

// columnName turns a header label like "input thro" into "input_thro".
func columnName(label string) string {
	return strings.ReplaceAll(strings.TrimSpace(label), " ", "_")
}

func (s *SQLiteSink) Header(cols []string) (err error) {
	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = `"` + columnName(c) + `"`
		defs[i] = names[i] + " REAL"
		marks[i] = "?"
	}

	createSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    decode_failed INTEGER NOT NULL DEFAULT 0,
    %s
)`, strings.Join(defs, ",\n    "))

	if _, err = s.db.Exec(createSQL); err != nil {
		return fmt.Errorf("creating records table: %w", err)
	}

	if s.tx, err = s.db.Begin(); err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	insertSQL := fmt.Sprintf("INSERT INTO records (%s) VALUES (%s)", strings.Join(names, ", "), strings.Join(marks, ", "))
	if s.ins, err = s.tx.Prepare(insertSQL); err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	if s.fail, err = s.tx.Prepare("INSERT INTO records (decode_failed) VALUES (1)"); err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	return nil
}

func (s *SQLiteSink) Row(fields []string) error {
	if s.ins == nil {
		return fmt.Errorf("row before header")
	}
	// Numbers bind as float64 so -inf lands as REAL. SQLite stores NaN as NULL.
	args := make([]any, len(fields))
	for i, f := range fields {
		if v, err := strconv.ParseFloat(strings.TrimSpace(f), 64); err == nil {
			args[i] = v
		} else {
			args[i] = f
		}
	}
	if _, err := s.ins.Exec(args...); err != nil {
		return fmt.Errorf("inserting row: %w", err)
	}
	return nil
}

func (s *SQLiteSink) Failure() error {
	if s.fail == nil {
		return fmt.Errorf("row before header")
	}
	if _, err := s.fail.Exec(); err != nil {
		return fmt.Errorf("inserting failure row: %w", err)
	}
	return nil
}

// Close commits pending rows and closes the database.
func (s *SQLiteSink) Close() error {
	s.closeOnce.Do(func() {
		if s.ins != nil {
			_ = s.ins.Close()
		}
		if s.fail != nil {
			_ = s.fail.Close()
		}
		if s.tx != nil {
			if err := s.tx.Commit(); err != nil {
				s.closeErr = fmt.Errorf("committing rows: %w", err)
			}
		}
		if err := s.db.Close(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("closing %s: %w", s.path, err)
		}
	})
	return s.closeErr
}
