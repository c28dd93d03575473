// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package containers

import (
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/cobaltcore-dev/cortex-isolation/pkg/conf"
	_ "github.com/lib/pq"
	"github.com/ory/dockertest"
	"github.com/ory/dockertest/docker"
)

const (
	postgresImageTag = "17"
	postgresPassword = "secret"
)

// Start a throwaway postgres container and wait until it accepts connections.
// The container is purged when the test finishes.
func StartPostgres(t *testing.T) conf.DBConfig {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("could not construct pool: %s", err)
	}
	if err = pool.Client.Ping(); err != nil {
		t.Fatalf("could not connect to Docker: %s", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        postgresImageTag,
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_PASSWORD=" + postgresPassword,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("could not start postgres: %s", err)
	}
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Errorf("could not purge postgres: %s", err)
		}
	})
	// Kill the container after a minute in case the test hangs.
	if err := resource.Expire(60); err != nil {
		t.Fatalf("could not set expiration: %s", err)
	}

	port, err := strconv.Atoi(resource.GetPort("5432/tcp"))
	if err != nil {
		t.Fatalf("unexpected postgres port: %s", err)
	}
	config := conf.DBConfig{
		Host:     "localhost",
		Port:     port,
		Database: "postgres",
		User:     "postgres",
		Password: postgresPassword,
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		config.Host, config.Port, config.User, config.Password, config.Database,
	)
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("could not open postgres: %s", err)
	}
	defer sqlDB.Close()
	if err = pool.Retry(sqlDB.Ping); err != nil {
		t.Fatalf("postgres is not ready in time: %s", err)
	}
	return config
}
