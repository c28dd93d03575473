// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package nova

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	api "github.com/cobaltcore-dev/cortex-isolation/api/external/nova"
	"github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/aggregates"
	"github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/lib"
	"github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/nova/plugins"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/conf"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/monitoring"
	"github.com/google/uuid"
)

type HTTPAPI interface {
	// Bind the server handlers.
	Init(*http.ServeMux)
}

type httpAPI struct {
	config   conf.APIConfig
	pipeline lib.Pipeline[plugins.PipelineRequest]
	// Resolver shared by all requests. Each request wraps it into its own cache.
	resolver aggregates.Resolver
	monitor  APIMonitor
	registry *monitoring.Registry
}

func NewAPI(
	config conf.APIConfig,
	pipeline lib.Pipeline[plugins.PipelineRequest],
	resolver aggregates.Resolver,
	registry *monitoring.Registry,
) HTTPAPI {

	return &httpAPI{
		config:   config,
		pipeline: pipeline,
		resolver: resolver,
		monitor:  NewAPIMonitor(),
		registry: registry,
	}
}

// Init the API mux and bind the handlers.
func (httpAPI *httpAPI) Init(mux *http.ServeMux) {
	if httpAPI.registry != nil {
		httpAPI.registry.MustRegister(&httpAPI.monitor)
	}
	mux.HandleFunc("/up", httpAPI.Up)
	mux.HandleFunc("/scheduler/nova/external", httpAPI.NovaExternalScheduler)
}

// Handle the GET request to check if the API is up.
func (httpAPI *httpAPI) Up(w http.ResponseWriter, r *http.Request) {
	c := httpAPI.monitor.Callback(w, r, "/up")
	w.WriteHeader(http.StatusOK)
	c.Respond(http.StatusOK, nil, "Success")
}

// Check if the scheduler can run based on the request data.
// Note: messages returned here are user-facing and should not contain internal details.
func (httpAPI *httpAPI) canRunScheduler(requestData api.ExternalSchedulerRequest) (ok bool, reason string) {
	// Check that all hosts have a weight.
	for _, host := range requestData.Hosts {
		if _, ok := requestData.Weights[host.ComputeHost]; !ok {
			return false, "missing weight for host"
		}
	}
	// Check that all weights are assigned to a host in the request.
	computeHostNames := make(map[string]bool)
	for _, host := range requestData.Hosts {
		computeHostNames[host.ComputeHost] = true
	}
	for computeHost := range requestData.Weights {
		if _, ok := computeHostNames[computeHost]; !ok {
			return false, "weight assigned to unknown host"
		}
	}
	return true, ""
}

// Handle the POST request from the Nova scheduler.
// The request contains a spec of the vm to be scheduled, a list of hosts,
// and a map of weights that were calculated by the Nova weigher pipeline.
// The response contains an ordered list of hosts that the vm should be
// scheduled on.
func (httpAPI *httpAPI) NovaExternalScheduler(w http.ResponseWriter, r *http.Request) {
	c := httpAPI.monitor.Callback(w, r, "/scheduler/nova/external")

	// Exit early if the request method is not POST.
	if r.Method != http.MethodPost {
		internalErr := fmt.Errorf("invalid request method: %s", r.Method)
		c.Respond(http.StatusMethodNotAllowed, internalErr, "invalid request method")
		return
	}

	// Ensure body is closed after reading.
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		c.Respond(http.StatusInternalServerError, err, "failed to read request body")
		return
	}
	// If configured, log out the complete request body.
	if httpAPI.config.LogRequestBodies {
		slog.Info("request body", "body", string(body))
	}
	var requestData api.ExternalSchedulerRequest
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&requestData); err != nil {
		c.Respond(http.StatusBadRequest, err, "failed to decode request body")
		return
	}
	// Requests without any id still need to be traceable in the logs.
	if requestData.GetRequestID() == "" {
		requestData.Context.RequestID = "req-" + uuid.NewString()
	}
	slog.Info(
		"handling POST request", "url", "/scheduler/nova/external",
		"hosts", len(requestData.Hosts), "req", requestData.GetRequestID(),
	)

	if ok, reason := httpAPI.canRunScheduler(requestData); !ok {
		internalErr := fmt.Errorf("cannot run scheduler: %s", reason)
		c.Respond(http.StatusBadRequest, internalErr, reason)
		return
	}

	request := plugins.PipelineRequest{
		ExternalSchedulerRequest: requestData,
		Aggregates:               aggregates.NewRequestCache(httpAPI.resolver),
	}
	decision, err := httpAPI.pipeline.Run(r.Context(), request)
	if err != nil {
		c.Respond(http.StatusInternalServerError, err, "failed to run scheduler pipeline")
		return
	}
	hosts := decision.OrderedHosts
	if hosts == nil {
		hosts = []string{}
	}
	response := api.ExternalSchedulerResponse{Hosts: hosts}
	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(response); err != nil {
		c.Respond(http.StatusInternalServerError, err, "failed to encode response")
		return
	}
	c.Respond(http.StatusOK, nil, "Success")
}
