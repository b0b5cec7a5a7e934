package sqldb

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-sql-driver/mysql"
)

// Supported driver names.
const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

// DefaultProbeQuery is the statement Ping runs.
const DefaultProbeQuery = "SELECT 1"

// ErrInvalidConfig indicates a Config failed validation.
var ErrInvalidConfig = errors.New("sqldb: invalid config")

// Config describes the backend a Factory connects to.
type Config struct {
	// Driver is DriverSQLite or DriverMySQL.
	Driver string

	// DSN is the driver-specific data source name.
	DSN string

	// ProbeQuery is run by Ping. Default: DefaultProbeQuery
	ProbeQuery string
}

// Validate reports whether the configuration is usable. MySQL DSNs are
// parsed so malformed ones fail here rather than on first connect.
func (c Config) Validate() error {
	if !slices.Contains([]string{DriverSQLite, DriverMySQL}, c.Driver) {
		return fmt.Errorf("%w: unsupported driver %q", ErrInvalidConfig, c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("%w: dsn is required", ErrInvalidConfig)
	}
	if c.Driver == DriverMySQL {
		if _, err := mysql.ParseDSN(c.DSN); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Target returns a loggable description of the backend with credentials
// stripped.
func (c Config) Target() string {
	if c.Driver == DriverMySQL {
		if mc, err := mysql.ParseDSN(c.DSN); err == nil {
			return fmt.Sprintf("mysql://%s/%s", mc.Addr, mc.DBName)
		}
	}
	return c.Driver
}
