package database

import (
	"database/sql"
	"regexp"
	"strconv"
)

// Dialect isolates the differences between the supported SQL backends.
type Dialect interface {
	// DriverName returns the driver name for sql.Open.
	DriverName() string

	// DSN returns the data source name for the connection.
	DSN(config DialectConfig) string

	// RewriteQuery converts ? placeholders when the driver needs another syntax.
	RewriteQuery(query string) string

	// ConfigureConnection applies pool settings and per-connection pragmas.
	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir names the directory under migrations/ for this backend.
	MigrationsSubdir() string

	// IsUniqueViolation reports whether err came from a unique or primary key constraint.
	IsUniqueViolation(err error) bool
}

// DialectConfig holds connection settings.
type DialectConfig struct {
	// SQLite file path
	Path string

	// PostgreSQL/MySQL connection URL
	URL string
}

var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}
