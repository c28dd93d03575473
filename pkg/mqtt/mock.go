// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package mqtt

import "sync"

// Message recorded by the mock client.
type MockMessage struct {
	Topic string
	Obj   any
}

// Client that records published messages instead of sending them.
type MockClient struct {
	mu       sync.Mutex
	Messages []MockMessage
}

func (m *MockClient) Connect() error { return nil }

func (m *MockClient) Publish(topic string, obj any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, MockMessage{Topic: topic, Obj: obj})
}

func (m *MockClient) Disconnect() {}

// Copy of the messages published so far.
func (m *MockClient) Published() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockMessage(nil), m.Messages...)
}
