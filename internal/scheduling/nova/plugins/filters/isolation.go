// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package filters

import (
	"fmt"

	"github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/aggregates"
	"github.com/majewsky/gg/option"
)

const (
	// Image property and aggregate metadata key for isolation groups.
	IsolationAggregateTag = "isolation_aggregate"
	// Image property and aggregate metadata key for the os distribution.
	OSDistroTag = "os_distro"
	// Image property and aggregate metadata key for the os type.
	OSTypeTag = "os_type"
)

// Outcome of the isolation check for one host.
type Decision struct {
	Pass bool
	// Why the host was rejected. Empty if the host passes.
	Reason string
}

// Check whether a host with the given aggregate metadata may run an image
// that requests the given value for the isolation tag.
//
// An image without a value for the tag is not constrained and passes
// everywhere. Otherwise the value must be one of the values that the
// host's aggregates declare for the tag.
func Evaluate(tag string, requested option.Option[string], host string, metadata aggregates.Metadata) Decision {
	value, ok := requested.Unpack()
	if !ok || value == "" {
		return Decision{Pass: true}
	}
	allowed := metadata.Values(tag)
	if allowed.Len() == 0 || !allowed.Has(value) {
		return Decision{Reason: fmt.Sprintf(
			"%s fails image aggregate isolation: metadata %s does not exist or does not match %q",
			host, tag, value,
		)}
	}
	return Decision{Pass: true}
}
