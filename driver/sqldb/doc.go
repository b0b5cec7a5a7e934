// Package sqldb provides pool connections backed by database/sql.
//
// Each Conn owns one dedicated *sql.Conn taken from a *sql.DB whose own idle
// cache is disabled, so connection reuse, expiry and limits are governed by
// the connops pool rather than by database/sql.
//
// Supported drivers are "sqlite3" (github.com/mattn/go-sqlite3) and "mysql"
// (github.com/go-sql-driver/mysql).
//
//	f, err := sqldb.NewFactory(sqldb.Config{Driver: "sqlite3", DSN: "file:app.db"})
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	p, err := pool.New[*sqldb.Conn](f, pool.DefaultConfig())
package sqldb
