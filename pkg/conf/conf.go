// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package conf

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Configuration for structured logging.
type LoggingConfig struct {
	// The log level to use (debug, info, warn, error).
	LevelStr string `json:"level"`
	// The log format to use (json, text).
	Format string `json:"format"`
}

// Database configuration.
type DBConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// Configuration for the monitoring module.
type MonitoringConfig struct {
	// The labels to add to all metrics.
	Labels map[string]string `json:"labels"`

	// The port to expose the metrics on.
	Port int `json:"port"`
}

// Configuration for the api port.
type APIConfig struct {
	// The port to expose the API on.
	Port int `json:"port"`
	// If request bodies should be logged out.
	// This feature is intended for debugging purposes only.
	LogRequestBodies bool `json:"logRequestBodies"`
}

// Configuration for the keystone authentication.
type KeystoneConfig struct {
	// The URL of the keystone service.
	URL string `json:"url"`
	// Availability of the keystone service, such as "public", "internal", or "admin".
	Availability string `json:"availability"`
	// The OpenStack username (OS_USERNAME in openstack cli).
	OSUsername string `json:"username"`
	// The OpenStack password (OS_PASSWORD in openstack cli).
	OSPassword string `json:"password"`
	// The OpenStack project name (OS_PROJECT_NAME in openstack cli).
	OSProjectName string `json:"projectName"`
	// The OpenStack user domain name (OS_USER_DOMAIN_NAME in openstack cli).
	OSUserDomainName string `json:"userDomainName"`
	// The OpenStack project domain name (OS_PROJECT_DOMAIN_NAME in openstack cli).
	OSProjectDomainName string `json:"projectDomainName"`
}

// Configuration for the mqtt broker that receives scheduling decisions.
type MQTTConfig struct {
	// The URL of the MQTT broker, e.g. tcp://rabbitmq:1883.
	// Decisions are not published if this is empty.
	URL string `json:"url"`
	// Credentials for the MQTT broker.
	Username string `json:"username"`
	Password string `json:"password"`
}

// Configuration of a single filter in the scheduler pipeline.
type FilterConfig struct {
	// The name of the filter implementation, as registered in the filter index.
	Name string `json:"name"`
	// Custom options for the filter, unmarshalled by the filter itself.
	Options RawOpts `json:"options,omitempty"`
}

// Configuration of the cache that remembers filter decisions
// across multiple calls belonging to the same nova request.
type DecisionCacheConfig struct {
	// Maximum number of cached host decisions.
	Size int `json:"size"`
	// How long a decision stays valid.
	TTLSeconds int `json:"ttlSeconds"`
}

// Configuration for the nova scheduler pipeline.
type NovaSchedulerConfig struct {
	// Filters to run, in this order.
	Filters []FilterConfig `json:"filters"`
	// Cache for filters that only need to run once per request.
	DecisionCache DecisionCacheConfig `json:"decisionCache"`
}

// Configuration for the nova datasource.
type NovaSyncConfig struct {
	// How often the aggregates should be synced, in seconds.
	// Jitter is applied on top of this interval.
	IntervalSeconds int `json:"intervalSeconds"`
}

// Configuration for the isolation scheduler service.
type Config struct {
	LoggingConfig    `json:"logging"`
	DBConfig         `json:"db"`
	MonitoringConfig `json:"monitoring"`
	APIConfig        `json:"api"`
	KeystoneConfig   `json:"keystone"`
	MQTTConfig       `json:"mqtt"`

	NovaScheduler NovaSchedulerConfig `json:"novaScheduler"`
	NovaSync      NovaSyncConfig      `json:"novaSync"`
}

// Create a new configuration from the default config files.
//
// This will read two files:
//   - /etc/config/conf.yaml
//   - /etc/secrets/secrets.yaml
//
// The values read from secrets.yaml will override the values in conf.yaml
func GetConfigOrDie[C any]() C {
	c, err := GetConfig[C]("/etc/config/conf.yaml", "/etc/secrets/secrets.yaml")
	if err != nil {
		panic(err)
	}
	return c
}

// Read and merge the config and secrets files into the given config type.
func GetConfig[C any](configPath, secretsPath string) (C, error) {
	// Note: We need to read the config as a raw map first, to avoid golang
	// unmarshalling default values for the fields.
	var c C
	cmConf, err := readRawConfig(configPath)
	if err != nil {
		return c, fmt.Errorf("failed to read config: %w", err)
	}
	secretConf, err := readRawConfig(secretsPath)
	if err != nil {
		return c, fmt.Errorf("failed to read secrets: %w", err)
	}
	return newConfigFromMaps[C](cmConf, secretConf)
}

func newConfigFromMaps[C any](base, override map[string]any) (C, error) {
	var c C
	// Merge the base config with the override config.
	mergedConf := mergeMaps(base, override)
	// Marshal again, and then unmarshal into the config struct.
	mergedBytes, err := json.Marshal(mergedConf)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(mergedBytes, &c); err != nil {
		return c, err
	}
	return c, nil
}

// Read the yaml (or json) as a map from the given file path.
func readRawConfig(filepath string) (map[string]any, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	bytes, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return readRawConfigFromBytes(bytes)
}

// Json is a subset of yaml, so both formats are accepted here.
func readRawConfigFromBytes(data []byte) (map[string]any, error) {
	conf := map[string]any{}
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, err
	}
	return conf, nil
}

// mergeMaps recursively overrides dst with src (in-place)
func mergeMaps(dst, src map[string]any) map[string]any {
	result := dst
	for k, v := range src {
		if v == nil {
			// If src value is nil, skip override
			continue
		}
		if dstVal, ok := dst[k]; ok {
			// If both are maps, merge recursively
			dstMap, dstIsMap := dstVal.(map[string]any)
			srcMap, srcIsMap := v.(map[string]any)
			if dstIsMap && srcIsMap {
				result[k] = mergeMaps(dstMap, srcMap)
				continue
			}
		}
		// Otherwise, override
		result[k] = v
	}
	return result
}
