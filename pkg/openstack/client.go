// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package openstack

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cobaltcore-dev/cortex-isolation/pkg/keystone"
	"github.com/gophercloud/gophercloud/v2"
)

// Nova microversion used for all compute requests.
// Since 2.41, aggregates carry their uuid.
const NovaMicroversion = "2.61"

// Create an authenticated compute service client.
// The nova endpoint is looked up in the keystone service catalog with the
// same availability as configured for keystone.
func NovaClient(ctx context.Context, keystoneAPI keystone.Client) (*gophercloud.ServiceClient, error) {
	if err := keystoneAPI.Authenticate(ctx); err != nil {
		return nil, err
	}
	url, err := keystoneAPI.Endpoint("compute")
	if err != nil {
		return nil, fmt.Errorf("failed to find nova endpoint: %w", err)
	}
	slog.Info("using nova endpoint", "url", url, "microversion", NovaMicroversion)
	return &gophercloud.ServiceClient{
		ProviderClient: keystoneAPI.Provider(),
		Endpoint:       url,
		Type:           "compute",
		Microversion:   NovaMicroversion,
	}, nil
}
