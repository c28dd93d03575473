// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package conf

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMergeMaps(t *testing.T) {
	// Test basic merge
	dst := map[string]any{
		"a": "original",
		"b": map[string]any{"nested": "value"},
	}
	src := map[string]any{
		"a": "overridden",
		"c": "new",
	}

	mergeMaps(dst, src)

	if dst["a"] != "overridden" {
		t.Errorf("Expected 'a' to be 'overridden', got %v", dst["a"])
	}
	if dst["c"] != "new" {
		t.Errorf("Expected 'c' to be 'new', got %v", dst["c"])
	}

	// Test nested merge
	dst = map[string]any{
		"nested": map[string]any{
			"keep":     "original",
			"override": "old",
		},
	}
	src = map[string]any{
		"nested": map[string]any{
			"override": "new",
			"add":      "added",
		},
	}

	mergeMaps(dst, src)

	nested := dst["nested"].(map[string]any)
	if nested["keep"] != "original" {
		t.Errorf("Expected nested 'keep' to be 'original', got %v", nested["keep"])
	}
	if nested["override"] != "new" {
		t.Errorf("Expected nested 'override' to be 'new', got %v", nested["override"])
	}
	if nested["add"] != "added" {
		t.Errorf("Expected nested 'add' to be 'added', got %v", nested["add"])
	}

	// Test nil value handling
	dst = map[string]any{"key": "value"}
	src = map[string]any{"key": nil}

	mergeMaps(dst, src)

	if dst["key"] != "value" {
		t.Errorf("Expected 'key' to remain 'value' when src is nil, got %v", dst["key"])
	}
}

func TestGetConfig(t *testing.T) {
	dir := t.TempDir()
	confPath := filepath.Join(dir, "conf.yaml")
	secretsPath := filepath.Join(dir, "secrets.yaml")
	confYaml := `
logging:
  level: debug
  format: json
db:
  host: localhost
  port: 5432
  user: postgres
  password: placeholder
mqtt:
  url: tcp://rabbitmq:1883
  username: cortex
novaScheduler:
  filters:
    - name: filter_aggregate_image_isolation
      options:
        parallelism: 4
    - name: filter_aggregate_image_os_type_isolation
  decisionCache:
    size: 1000
    ttlSeconds: 60
`
	// Secrets may also be provided as json.
	secretsJSON := `{"db": {"password": "secret"}, "keystone": {"password": "os-secret"}, "mqtt": {"password": "mq-secret"}}`
	if err := os.WriteFile(confPath, []byte(confYaml), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(secretsPath, []byte(secretsJSON), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := GetConfig[Config](confPath, secretsPath)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.LoggingConfig.LevelStr != "debug" || c.LoggingConfig.Format != "json" {
		t.Errorf("unexpected logging config: %+v", c.LoggingConfig)
	}
	if c.DBConfig.Port != 5432 {
		t.Errorf("expected db port 5432, got %d", c.DBConfig.Port)
	}
	if c.DBConfig.Password != "secret" {
		t.Errorf("expected db password to be overridden by secrets, got %q", c.DBConfig.Password)
	}
	if c.KeystoneConfig.OSPassword != "os-secret" {
		t.Errorf("expected keystone password from secrets, got %q", c.KeystoneConfig.OSPassword)
	}
	if c.MQTTConfig.URL != "tcp://rabbitmq:1883" || c.MQTTConfig.Username != "cortex" || c.MQTTConfig.Password != "mq-secret" {
		t.Errorf("unexpected mqtt config: %+v", c.MQTTConfig)
	}
	if len(c.NovaScheduler.Filters) != 2 {
		t.Fatalf("expected 2 filters, got %d", len(c.NovaScheduler.Filters))
	}
	var opts struct {
		Parallelism int `json:"parallelism"`
	}
	if err := c.NovaScheduler.Filters[0].Options.Unmarshal(&opts); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if opts.Parallelism != 4 {
		t.Errorf("expected parallelism 4, got %d", opts.Parallelism)
	}
	if c.NovaScheduler.DecisionCache.Size != 1000 || c.NovaScheduler.DecisionCache.TTLSeconds != 60 {
		t.Errorf("unexpected decision cache config: %+v", c.NovaScheduler.DecisionCache)
	}
}

func TestGetConfig_MissingFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := GetConfig[Config](filepath.Join(dir, "nope.yaml"), filepath.Join(dir, "nope2.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
