// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package conf

import (
	"errors"
	"fmt"
	"strings"
)

// Check if the configuration is consistent.
func (c *Config) Validate() error {
	// Check the keystone URL.
	if c.KeystoneConfig.URL != "" && !strings.Contains(c.KeystoneConfig.URL, "/v3") {
		return fmt.Errorf(
			"expected v3 Keystone URL, but got %s",
			c.KeystoneConfig.URL,
		)
	}
	// OpenStack urls should end without a slash.
	if strings.HasSuffix(c.KeystoneConfig.URL, "/") {
		return fmt.Errorf("openstack url %s should not end with a slash", c.KeystoneConfig.URL)
	}
	if c.MQTTConfig.URL != "" && !strings.Contains(c.MQTTConfig.URL, "://") {
		return fmt.Errorf("expected mqtt url with scheme, but got %s", c.MQTTConfig.URL)
	}
	seen := make(map[string]struct{}, len(c.NovaScheduler.Filters))
	for _, filter := range c.NovaScheduler.Filters {
		if filter.Name == "" {
			return errors.New("filter without name in nova scheduler config")
		}
		if _, ok := seen[filter.Name]; ok {
			return fmt.Errorf("filter %s configured more than once", filter.Name)
		}
		seen[filter.Name] = struct{}{}
	}
	if c.NovaScheduler.DecisionCache.Size < 0 {
		return errors.New("decision cache size must not be negative")
	}
	if c.NovaScheduler.DecisionCache.TTLSeconds < 0 {
		return errors.New("decision cache ttl must not be negative")
	}
	return nil
}
