package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"riskadmin/internal/domain"
)

// Dialect renders commands for one backing store and classifies its errors.
type Dialect interface {
	Name() string
	// Render turns a command into driver text plus positional arguments.
	Render(cmd Command) (string, []any, error)
	IsUniqueViolation(err error) bool
	TableExistsQuery() string
	ColumnExistsQuery() string
}

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// DialectFor returns the dialect registered for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverMySQL:
		return MySQL{}, nil
	case DriverSQLite, "sqlite3":
		return NewSQLite(nil), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// MySQL calls routines as stored procedures. A procedure reports outputs
// other than RowsAffected and identities through its final result row.
type MySQL struct{}

func (MySQL) Name() string { return DriverMySQL }

func (MySQL) Render(cmd Command) (string, []any, error) {
	if !cmd.IsRoutine {
		return bindNamed(cmd.Operation, cmd.Params, true)
	}
	if !validRoutineName(cmd.Operation) {
		return "", nil, domain.InvalidArgument("operation", "invalid routine name %q", cmd.Operation)
	}
	inputs := cmd.Params.Inputs()
	args := make([]any, 0, len(inputs))
	marks := make([]string, 0, len(inputs))
	for _, p := range inputs {
		args = append(args, p.Value)
		marks = append(marks, "?")
	}
	return fmt.Sprintf("CALL %s(%s)", cmd.Operation, strings.Join(marks, ", ")), args, nil
}

func (MySQL) IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}

func (MySQL) TableExistsQuery() string {
	return `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = @Table`
}

func (MySQL) ColumnExistsQuery() string {
	return `SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = @Table AND column_name = @Column`
}

// SQLite has no stored procedures; routine names resolve to registered statement texts.
type SQLite struct {
	routines map[string]string
}

func NewSQLite(routines map[string]string) *SQLite {
	s := &SQLite{routines: make(map[string]string, len(routines))}
	for name, text := range routines {
		s.Register(name, text)
	}
	return s
}

// Register adds or replaces a routine text. Not safe for use once commands are running.
func (s *SQLite) Register(name, text string) {
	s.routines[strings.ToLower(name)] = text
}

func (s *SQLite) Name() string { return DriverSQLite }

func (s *SQLite) Render(cmd Command) (string, []any, error) {
	if !cmd.IsRoutine {
		return bindNamed(cmd.Operation, cmd.Params, false)
	}
	text, ok := s.routines[strings.ToLower(cmd.Operation)]
	if !ok {
		return "", nil, domain.InvalidArgument("operation", "unknown routine %q", cmd.Operation)
	}
	return bindNamed(text, cmd.Params, false)
}

func (s *SQLite) IsUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func (s *SQLite) TableExistsQuery() string {
	return `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = @Table`
}

func (s *SQLite) ColumnExistsQuery() string {
	return `SELECT COUNT(*) FROM pragma_table_info(@Table) WHERE name = @Column`
}

func validRoutineName(name string) bool {
	parts := strings.Split(name, ".")
	for _, p := range parts {
		if !validName(p) {
			return false
		}
	}
	return len(parts) <= 2
}
