// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package mqtt

import (
	"github.com/cobaltcore-dev/cortex-isolation/pkg/monitoring"
	"github.com/prometheus/client_golang/prometheus"
)

type Monitor struct {
	connectionAttempts prometheus.Counter
	publishErrors      prometheus.Counter
}

func NewMQTTMonitor(registry *monitoring.Registry) Monitor {
	connectionAttempts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cortex_mqtt_connection_attempts_total",
		Help: "Total number of attempts to connect to the MQTT broker",
	})
	publishErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cortex_mqtt_publish_errors_total",
		Help: "Total number of messages that could not be published",
	})
	registry.MustRegister(connectionAttempts, publishErrors)
	return Monitor{
		connectionAttempts: connectionAttempts,
		publishErrors:      publishErrors,
	}
}
