package migrate

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"riskadmin/internal/db"
)

//go:embed sql
var embedded embed.FS

const migrationTable = "schema_migrations"

// Apply runs the embedded migrations for the database's dialect.
func Apply(ctx context.Context, database *db.Database) error {
	if database == nil || database.Dialect == nil {
		return fmt.Errorf("database is required")
	}
	return ApplyFS(ctx, database, embedded, path.Join("sql", database.Dialect.Name()))
}

// ApplyFS executes migrations under root at most once per file, each file in
// its own transaction.
func ApplyFS(ctx context.Context, database *db.Database, migrationFS fs.FS, root string) error {
	entries, err := fs.ReadDir(migrationFS, root)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	ex := database.Executor()
	createSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    name VARCHAR(255) NOT NULL PRIMARY KEY,
    applied_at BIGINT NOT NULL
)`, migrationTable)
	if _, err := ex.Execute(ctx, db.Text("ensure_migration_table", createSQL)); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		content, err := fs.ReadFile(migrationFS, path.Join(root, file))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		applied, err := ex.Count(ctx, db.Text("check_migration",
			"SELECT COUNT(*) FROM "+migrationTable+" WHERE name = @Name", db.Arg("Name", file)))
		if err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied > 0 {
			continue
		}

		statements := SplitStatements(ExtractUpMigration(string(content)))
		_, err = db.RunInTx(ctx, database, func(tx *db.Executor) (struct{}, error) {
			for i, stmt := range statements {
				if _, err := tx.Execute(ctx, db.Text(fmt.Sprintf("%s#%d", file, i+1), stmt)); err != nil {
					if !IsAlreadyExistsError(err) {
						return struct{}{}, err
					}
				}
			}
			_, err := tx.Execute(ctx, db.Text("record_migration",
				"INSERT INTO "+migrationTable+" (name, applied_at) VALUES (@Name, @AppliedAt)",
				db.Arg("Name", file), db.Arg("AppliedAt", time.Now().UTC().UnixMilli())))
			return struct{}{}, err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}

// ExtractUpMigration returns the SQL in the -- +migrate Up section.
func ExtractUpMigration(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}

// SplitStatements splits a script on semicolons that end a line. Blocks
// between "-- +migrate StatementBegin" and "-- +migrate StatementEnd" stay whole.
func SplitStatements(script string) []string {
	var (
		out     []string
		current strings.Builder
		inBlock bool
	)
	flush := func() {
		stmt := strings.TrimSpace(current.String())
		stmt = strings.TrimSuffix(stmt, ";")
		if strings.TrimSpace(stmt) != "" {
			out = append(out, stmt)
		}
		current.Reset()
	}
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "-- +migrate StatementBegin"):
			flush()
			inBlock = true
			continue
		case strings.HasPrefix(trimmed, "-- +migrate StatementEnd"):
			flush()
			inBlock = false
			continue
		case strings.HasPrefix(trimmed, "--"):
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
		if !inBlock && strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()
	return out
}

// IsAlreadyExistsError reports whether this error indicates idempotent DDL success.
func IsAlreadyExistsError(err error) bool {
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") ||
		strings.Contains(value, "duplicate column name") ||
		strings.Contains(value, "duplicate key name")
}
