// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package keystone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/cobaltcore-dev/cortex-isolation/pkg/conf"
	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
)

var errNotAuthenticated = errors.New("keystone client is not authenticated")

// Catalog interface used when the configuration leaves it empty.
const defaultAvailability = gophercloud.AvailabilityPublic

// Client holding a keystone token and the service catalog that came with it.
type Client interface {
	// Authenticate against keystone. Subsequent calls are no-ops.
	Authenticate(context.Context) error
	// Provider client carrying the token. Nil until authenticated.
	Provider() *gophercloud.ProviderClient
	// Look up the url of a service type in the catalog.
	Endpoint(serviceType string) (string, error)
}

type client struct {
	conf       conf.KeystoneConfig
	httpClient *http.Client

	mu       sync.Mutex
	provider *gophercloud.ProviderClient
}

func NewClient(keystoneConf conf.KeystoneConfig) Client {
	return &client{conf: keystoneConf}
}

// Same as NewClient, but requests go through the given http client.
func NewClientWithHTTPClient(keystoneConf conf.KeystoneConfig, httpClient *http.Client) Client {
	return &client{conf: keystoneConf, httpClient: httpClient}
}

func (c *client) authOptions() gophercloud.AuthOptions {
	return gophercloud.AuthOptions{
		IdentityEndpoint: c.conf.URL,
		Username:         c.conf.OSUsername,
		DomainName:       c.conf.OSUserDomainName,
		Password:         c.conf.OSPassword,
		// Long running syncs outlive a single token.
		AllowReauth: true,
		Scope: &gophercloud.AuthScope{
			ProjectName: c.conf.OSProjectName,
			DomainName:  c.conf.OSProjectDomainName,
		},
	}
}

func (c *client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.provider != nil {
		return nil
	}
	slog.Info("authenticating against keystone", "url", c.conf.URL, "project", c.conf.OSProjectName)
	provider, err := openstack.NewClient(c.conf.URL)
	if err != nil {
		return fmt.Errorf("invalid keystone url: %w", err)
	}
	if c.httpClient != nil {
		provider.HTTPClient = *c.httpClient
	}
	if err := openstack.Authenticate(ctx, provider, c.authOptions()); err != nil {
		return fmt.Errorf("keystone authentication failed: %w", err)
	}
	c.provider = provider
	slog.Info("authenticated against keystone")
	return nil
}

func (c *client) Provider() *gophercloud.ProviderClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provider
}

func (c *client) Endpoint(serviceType string) (string, error) {
	provider := c.Provider()
	if provider == nil {
		return "", errNotAuthenticated
	}
	availability := gophercloud.Availability(c.conf.Availability)
	if availability == "" {
		availability = defaultAvailability
	}
	return provider.EndpointLocator(gophercloud.EndpointOpts{
		Type:         serviceType,
		Availability: availability,
	})
}
