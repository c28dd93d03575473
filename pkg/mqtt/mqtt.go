// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/cobaltcore-dev/cortex-isolation/pkg/conf"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Client interface {
	Connect() error
	// Publish the object as json. Errors are logged, not returned.
	Publish(topic string, obj any)
	Disconnect()
}

type client struct {
	conf    conf.MQTTConfig
	monitor Monitor
	// Set once connected.
	client mqtt.Client
	// Lock to prevent concurrent writes to the MQTT client.
	lock *sync.Mutex
}

func NewClient(conf conf.MQTTConfig, monitor Monitor) Client {
	return &client{conf: conf, monitor: monitor, lock: &sync.Mutex{}}
}

// Paho reconnects on its own, so a lost connection is only logged.
func (t *client) onConnectionLost(_ mqtt.Client, err error) {
	slog.Warn("lost connection to mqtt broker", "err", err)
}

// Connect to the mqtt broker.
func (t *client) Connect() error {
	if t.client != nil {
		return nil
	}
	if t.monitor.connectionAttempts != nil {
		t.monitor.connectionAttempts.Inc()
	}

	slog.Info("connecting to mqtt broker at", "url", t.conf.URL)
	opts := mqtt.NewClientOptions()
	opts.AddBroker(t.conf.URL)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetConnectRetry(false)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(t.onConnectionLost)
	//nolint:gosec // We don't care if the client id is cryptographically secure.
	opts.SetClientID(fmt.Sprintf("cortex-isolation-%d", rand.Intn(1_000_000)))
	opts.SetOrderMatters(false)
	opts.SetProtocolVersion(4)
	opts.SetUsername(t.conf.Username)
	opts.SetPassword(t.conf.Password)

	c := mqtt.NewClient(opts)
	if conn := c.Connect(); conn.Wait() && conn.Error() != nil {
		return fmt.Errorf("failed to connect to mqtt broker: %w", conn.Error())
	}
	t.client = c
	slog.Info("connected to mqtt broker")
	return nil
}

// Publish mqtt data to the mqtt broker.
// In case of errors, log them out and return.
func (t *client) Publish(topic string, obj any) {
	if err := t.publish(topic, obj); err != nil {
		slog.Error("failed to publish mqtt data", "topic", topic, "err", err)
		if t.monitor.publishErrors != nil {
			t.monitor.publishErrors.Inc()
		}
		return
	}
	slog.Debug("published mqtt data", "topic", topic)
}

func (t *client) publish(topic string, obj any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}

	t.lock.Lock()
	// Connect if we aren't already.
	if err := t.Connect(); err != nil {
		t.lock.Unlock()
		return err
	}
	c := t.client
	t.lock.Unlock()
	// The paho client is safe for concurrent use, only the connection
	// setup needs the lock.
	pub := c.Publish(topic, 2, true, data)
	if pub.Wait() && pub.Error() != nil {
		return pub.Error()
	}
	return nil
}

// Disconnect from the mqtt broker.
func (t *client) Disconnect() {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.client == nil {
		return
	}
	c := t.client
	t.client = nil
	// Note: the disconnect will run in a goroutine.
	c.Disconnect(1000)
	// Wait for the disconnect to finish.
	for c.IsConnected() {
		time.Sleep(100 * time.Millisecond)
	}
	slog.Info("disconnected from mqtt broker")
}
