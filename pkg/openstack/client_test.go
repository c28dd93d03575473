// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package openstack

import (
	"errors"
	"testing"

	keystonetesting "github.com/cobaltcore-dev/cortex-isolation/pkg/keystone/testing"
)

func TestNovaClient(t *testing.T) {
	k := &keystonetesting.MockClient{URL: "http://nova.example.com/v2.1/"}
	client, err := NovaClient(t.Context(), k)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if client.Endpoint != "http://nova.example.com/v2.1/" {
		t.Errorf("unexpected endpoint %s", client.Endpoint)
	}
	if client.Microversion != NovaMicroversion {
		t.Errorf("expected microversion %s, got %s", NovaMicroversion, client.Microversion)
	}
}

func TestNovaClient_AuthError(t *testing.T) {
	k := &keystonetesting.MockClient{AuthErr: errors.New("nope")}
	if _, err := NovaClient(t.Context(), k); err == nil {
		t.Fatal("expected error")
	}
}
