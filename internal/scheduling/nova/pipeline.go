// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package nova

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/lib"
	"github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/nova/plugins"
	"github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/nova/plugins/filters"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/conf"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/monitoring"
)

// Name under which the nova pipeline reports its metrics and logs.
const PipelineName = "nova-aggregate-isolation"

// Create the nova scheduler pipeline from the configured filters.
// Fails if any of the configured filters is unknown or cannot be initialized.
func NewPipeline(
	ctx context.Context,
	config conf.NovaSchedulerConfig,
	registry *monitoring.Registry,
) (lib.Pipeline[plugins.PipelineRequest], error) {

	monitor := lib.NewPipelineMonitor()
	if registry != nil {
		registry.MustRegister(&monitor)
	}
	result := lib.InitNewFilterPipeline(
		ctx, PipelineName, filters.Index, config.Filters,
		lib.NewDecisionCacheFromConfig(config.DecisionCache), monitor,
	)
	if len(result.FilterErrors) > 0 {
		errs := make([]error, 0, len(result.FilterErrors))
		for _, name := range slices.Sorted(maps.Keys(result.FilterErrors)) {
			errs = append(errs, fmt.Errorf("filter %s: %w", name, result.FilterErrors[name]))
		}
		return nil, errors.Join(errs...)
	}
	return result.Pipeline, nil
}
