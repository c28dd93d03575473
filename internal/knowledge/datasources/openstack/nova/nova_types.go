// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package nova

// OpenStack Nova host aggregate, flattened to one row per compute host.
// Aggregates without hosts are stored once with a null compute host.
type Aggregate struct {
	UUID             string  `json:"uuid" db:"uuid"`
	Name             string  `json:"name" db:"name"`
	AvailabilityZone *string `json:"availability_zone" db:"availability_zone"`
	ComputeHost      *string `json:"compute_host" db:"compute_host"`
	// Aggregate metadata as json encoded map of strings.
	Metadata string `json:"metadata" db:"metadata"`
}

// Table in which the aggregates are persisted.
func (Aggregate) TableName() string { return "openstack_nova_aggregates" }
