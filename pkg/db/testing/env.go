// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"database/sql"
	"log"
	"log/slog"
	"os"
	"strconv"
	"testing"

	"github.com/cobaltcore-dev/cortex-isolation/pkg/db/testing/containers"
	"github.com/go-gorp/gorp"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sapcc/go-bits/easypg"
)

type DBEnv struct {
	*gorp.DbMap
	Close func()
}

// Set up a database for tests. Uses sqlite unless POSTGRES_CONTAINER=1,
// in which case a throwaway postgres container is started.
func SetupDBEnv(t *testing.T) DBEnv {
	t.Helper()
	var env DBEnv
	if os.Getenv("POSTGRES_CONTAINER") == "1" {
		slog.Info("Using real postgres container")
		config := containers.StartPostgres(t)
		dbURL, err := easypg.URLFrom(easypg.URLParts{
			HostName:          config.Host,
			Port:              strconv.Itoa(config.Port),
			UserName:          config.User,
			Password:          config.Password,
			ConnectionOptions: "sslmode=disable",
			DatabaseName:      config.Database,
		})
		if err != nil {
			t.Fatal(err)
		}
		sqlDB, err := sql.Open("postgres", dbURL.String())
		if err != nil {
			t.Fatal(err)
		}
		env.DbMap = &gorp.DbMap{Db: sqlDB, Dialect: gorp.PostgresDialect{}}
		env.Close = func() { sqlDB.Close() }
	} else {
		slog.Info("Using sqlite")
		sqlDB, err := sql.Open("sqlite3", t.TempDir()+"/test.db")
		if err != nil {
			t.Fatal(err)
		}
		env.DbMap = &gorp.DbMap{Db: sqlDB, Dialect: gorp.SqliteDialect{}}
		env.Close = func() { sqlDB.Close() }
	}
	if os.Getenv("GORP_TRACE") == "1" {
		env.TraceOn("[gorp]", log.New(os.Stdout, "cortex:", log.Lmicroseconds))
	}
	return env
}
