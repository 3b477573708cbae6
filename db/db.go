// Package db opens the embedded store backing the persistent state
// manager. Local file paths get the pure-Go sqlite driver; libsql and
// http(s) DSNs are treated as remote Turso-style databases.
package db

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	glebarez "github.com/glebarez/sqlite"
	libsql "github.com/tursodatabase/libsql-client-go/libsql"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/termfx/pforge/models"
)

// Options tunes the connection.
type Options struct {
	// Debug turns on gorm statement logging.
	Debug bool
}

// Open connects to dsn, runs migrations, and returns the handle.
func Open(dsn string, opts Options) (*gorm.DB, error) {
	dialector, cleanup, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{}
	if opts.Debug {
		gormCfg.Logger = logger.Default.LogMode(logger.Info)
	}

	database, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}

	if err := database.AutoMigrate(&models.StateEntry{}, &models.Session{}); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", dsn, err)
	}
	return database, nil
}

// dialectorFor picks the driver for a DSN. The returned cleanup releases
// anything opened along the way and is safe to call on failure paths.
func dialectorFor(dsn string) (gorm.Dialector, func(), error) {
	if isRemote(dsn) {
		connector, err := remoteConnector(dsn)
		if err != nil {
			return nil, nil, err
		}
		conn := sql.OpenDB(connector)
		dialector := gormsqlite.New(gormsqlite.Config{
			DriverName: "libsql",
			Conn:       conn,
			DSN:        dsn,
		})
		return dialector, func() { conn.Close() }, nil
	}

	// A file-backed store; the parent directory may not exist yet.
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	return glebarez.Open(dsn), func() {}, nil
}

func isRemote(dsn string) bool {
	for _, scheme := range []string{"libsql://", "http://", "https://"} {
		if strings.HasPrefix(dsn, scheme) {
			return true
		}
	}
	return false
}

func remoteConnector(dsn string) (driver.Connector, error) {
	if token := os.Getenv("PFORGE_LIBSQL_AUTH_TOKEN"); token != "" {
		return libsql.NewConnector(dsn, libsql.WithAuthToken(token))
	}
	return libsql.NewConnector(dsn)
}
