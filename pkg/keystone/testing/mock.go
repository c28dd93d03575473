// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"

	"github.com/gophercloud/gophercloud/v2"
)

// Keystone client that points all service lookups at a single URL.
type MockClient struct {
	URL string
	// Error returned by Authenticate, if any.
	AuthErr error
}

func (m *MockClient) Authenticate(ctx context.Context) error {
	return m.AuthErr
}

func (m *MockClient) Provider() *gophercloud.ProviderClient {
	return &gophercloud.ProviderClient{}
}

func (m *MockClient) Endpoint(serviceType string) (string, error) {
	return m.URL, nil
}
