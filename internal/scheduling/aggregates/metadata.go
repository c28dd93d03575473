// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package aggregates

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Merged metadata of all aggregates a host belongs to.
// Maps a metadata key to the set of values contributed by these aggregates.
// A key that no aggregate defines is absent, which differs from a key
// that is set to the empty string.
type Metadata map[string]sets.Set[string]

// Get the values for the given key. Returns nil if the key is unset.
func (m Metadata) Values(key string) sets.Set[string] {
	return m[key]
}

// Merge the metadata of the given aggregate into this metadata.
// Values are split on commas and trimmed, the way nova merges them.
func (m Metadata) Merge(aggregateMetadata map[string]string) {
	for key, value := range aggregateMetadata {
		values, ok := m[key]
		if !ok {
			values = sets.New[string]()
			m[key] = values
		}
		for part := range strings.SplitSeq(value, ",") {
			values.Insert(strings.TrimSpace(part))
		}
	}
}

// Merge the metadata of several aggregates into one.
func MergeAll(aggregateMetadata ...map[string]string) Metadata {
	merged := Metadata{}
	for _, md := range aggregateMetadata {
		merged.Merge(md)
	}
	return merged
}
