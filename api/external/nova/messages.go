// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/majewsky/gg/option"
)

// Wrapped Nova object. Nova returns objects in this format.
type NovaObject[V any] struct {
	Name      string   `json:"nova_object.name"`
	Namespace string   `json:"nova_object.namespace"`
	Version   string   `json:"nova_object.version"`
	Data      V        `json:"nova_object.data"`
	Changes   []string `json:"nova_object.changes"`
}

// Spec object from the Nova scheduler pipeline.
// See: https://github.com/sapcc/nova/blob/stable/xena-m3/nova/objects/request_spec.py
type NovaSpec struct {
	ProjectID        string `json:"project_id"`
	UserID           string `json:"user_id"`
	InstanceUUID     string `json:"instance_uuid"`
	AvailabilityZone string `json:"availability_zone"`
	NInstances       int    `json:"num_instances"`
	// Nil if the request carries no image, e.g. for volume-backed servers.
	Image          *NovaObject[NovaImageMeta] `json:"image"`
	Flavor         NovaObject[NovaFlavor]     `json:"flavor"`
	SchedulerHints map[string]any             `json:"scheduler_hints"`
}

// Nova image metadata for the specified VM.
type NovaImageMeta struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Size    int    `json:"size"`
	MinRAM  int    `json:"min_ram"`
	MinDisk int    `json:"min_disk"`
	// Image properties. Nova sends them as a wrapped ImageMetaProps object,
	// but older callers send a plain object. Read through GetImageProperty.
	Properties json.RawMessage `json:"properties,omitempty"`
}

// Nova flavor metadata for the specified VM.
type NovaFlavor struct {
	Name            string            `json:"name"`
	MemoryMB        int               `json:"memory_mb"`
	VCPUs           int               `json:"vcpus"`
	RootDiskGB      int               `json:"root_gb"`
	EphemeralDiskGB int               `json:"ephemeral_gb"`
	FlavorID        string            `json:"flavorid"`
	Swap            int               `json:"swap"`
	RXTXFactor      float64           `json:"rxtx_factor"`
	VCPUsWeight     float64           `json:"vcpus_weight"`
	ExtraSpecs      map[string]string `json:"extra_specs"`
}

// Nova request context object. For the spec of this object, see:
//
// - This: https://github.com/sapcc/nova/blob/a56409/nova/context.py#L166
// - And: https://github.com/openstack/oslo.context/blob/db20dd/oslo_context/context.py#L329
//
// Some fields are omitted: "service_catalog", "read_deleted" (same as "show_deleted")
type NovaRequestContext struct {
	UserID          string   `json:"user"`
	ProjectID       string   `json:"project_id"`
	DomainID        string   `json:"domain"`
	UserDomainID    string   `json:"user_domain"`
	ProjectDomainID string   `json:"project_domain"`
	IsAdmin         bool     `json:"is_admin"`
	ReadOnly        bool     `json:"read_only"`
	ShowDeleted     bool     `json:"show_deleted"`
	RequestID       string   `json:"request_id"`
	GlobalRequestID *string  `json:"global_request_id"`
	ResourceUUID    string   `json:"resource_uuid"`
	Roles           []string `json:"roles"`
	UserName        string   `json:"user_name"`
	ProjectName     string   `json:"project_name"`
}

// Host object from the Nova scheduler pipeline.
type ExternalSchedulerHost struct {
	// Name of the compute host, used as lookup key for aggregates.
	ComputeHost string `json:"host"`
	// Name of the hypervisor node on the compute host.
	HypervisorHostname string `json:"hypervisor_hostname"`
}

// Render the host the way Nova renders its host states in logs.
func (h ExternalSchedulerHost) String() string {
	return fmt.Sprintf("(%s, %s)", h.ComputeHost, h.HypervisorHostname)
}

// Request generated by the Nova scheduler when calling cortex.
type ExternalSchedulerRequest struct {
	Spec    NovaObject[NovaSpec] `json:"spec"`
	Context NovaRequestContext   `json:"context"`

	// Whether the Nova scheduling request is a rebuild request.
	Rebuild bool `json:"rebuild"`
	// Whether the Nova scheduling request is a resize request.
	Resize bool `json:"resize"`
	// Whether the Nova scheduling request is a live migration.
	Live bool `json:"live"`

	// Candidate hosts left over after Nova's own filters.
	Hosts []ExternalSchedulerHost `json:"hosts"`
	// Map of compute host names to their weights as computed by Nova.
	Weights map[string]float64 `json:"weights"`
}

// Response sent back to the Nova scheduler.
type ExternalSchedulerResponse struct {
	// Ordered list of compute host names, best candidates first.
	Hosts []string `json:"hosts"`
}

// Get the value of an image property as a string, if set.
//
// Anything that cannot be read as a string property (no image, no or
// malformed properties, non-string values) yields no value.
func (r ExternalSchedulerRequest) GetImageProperty(name string) option.Option[string] {
	image := r.Spec.Data.Image
	if image == nil {
		return option.None[string]()
	}
	props, ok := decodeObject(image.Data.Properties)
	if !ok {
		return option.None[string]()
	}
	// Unwrap the ImageMetaProps nova object if needed.
	if wrapped, ok := props["nova_object.data"]; ok {
		if props, ok = decodeObject(wrapped); !ok {
			return option.None[string]()
		}
	}
	raw, ok := props[name]
	if !ok {
		return option.None[string]()
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return option.None[string]()
	}
	return option.Some(value)
}

// Decode a raw JSON object. Null, empty input and non-objects are not ok.
func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

type RequestIntent string

const (
	// LiveMigrationIntent indicates that the request is intended for live migration.
	LiveMigrationIntent RequestIntent = "live_migrate"
	// RebuildIntent indicates that the request is intended for rebuilding a VM.
	RebuildIntent RequestIntent = "rebuild"
	// ResizeIntent indicates that the request is intended for resizing a VM.
	ResizeIntent RequestIntent = "resize"
	// EvacuateIntent indicates that the request is intended for evacuating a VM.
	EvacuateIntent RequestIntent = "evacuate"
	// CreateIntent indicates that the request is intended for creating a new VM.
	CreateIntent RequestIntent = "create"
)

var errNoCheckType = errors.New("scheduler hint _nova_check_type not found")

// Get the intent of the request from the _nova_check_type scheduler hint.
// Unknown check types are treated as create requests.
func (r ExternalSchedulerRequest) GetIntent() (RequestIntent, error) {
	hints := r.Spec.Data.SchedulerHints
	if hints == nil {
		return "", errNoCheckType
	}
	raw, ok := hints["_nova_check_type"]
	if !ok {
		return "", errNoCheckType
	}
	var checkType string
	switch v := raw.(type) {
	case string:
		checkType = v
	case []any:
		// Nova sends scheduler hints as lists of values.
		if len(v) == 0 {
			return "", errors.New("scheduler hint _nova_check_type is an empty list")
		}
		s, ok := v[0].(string)
		if !ok {
			return "", fmt.Errorf("unsupported _nova_check_type list element %T", v[0])
		}
		checkType = s
	default:
		return "", fmt.Errorf("unsupported _nova_check_type hint type %T", raw)
	}
	switch RequestIntent(checkType) {
	case LiveMigrationIntent, RebuildIntent, ResizeIntent, EvacuateIntent:
		return RequestIntent(checkType), nil
	default:
		return CreateIntent, nil
	}
}

// Whether the request rebuilds a server in place.
func (r ExternalSchedulerRequest) IsRebuild() bool {
	if r.Rebuild {
		return true
	}
	intent, err := r.GetIntent()
	return err == nil && intent == RebuildIntent
}

// Get the id under which Nova tracks this request across services.
// Prefers the global request id and falls back to the local one.
func (r ExternalSchedulerRequest) GetRequestID() string {
	if greq := r.Context.GlobalRequestID; greq != nil && *greq != "" {
		return *greq
	}
	return r.Context.RequestID
}

// Get the compute host names of this request.
func (r ExternalSchedulerRequest) GetHosts() []string {
	hosts := make([]string, 0, len(r.Hosts))
	for _, host := range r.Hosts {
		hosts = append(hosts, host.ComputeHost)
	}
	return hosts
}

// Get the weights of this request, keyed by compute host.
func (r ExternalSchedulerRequest) GetWeights() map[string]float64 {
	return r.Weights
}

func (r ExternalSchedulerRequest) GetTraceLogArgs() []slog.Attr {
	greq := ""
	if r.Context.GlobalRequestID != nil {
		greq = *r.Context.GlobalRequestID
	}
	return []slog.Attr{
		slog.String("greq", greq),
		slog.String("req", r.Context.RequestID),
		slog.String("user", r.Context.UserID),
		slog.String("project", r.Context.ProjectID),
	}
}
