// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package filters

import (
	"github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/lib"
	"github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/nova/plugins"
)

type NovaFilter = lib.Filter[plugins.PipelineRequest]

// Configuration of filters supported by the nova scheduler.
var Index = map[string]func() NovaFilter{}
