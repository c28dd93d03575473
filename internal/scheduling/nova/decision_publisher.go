// Copyright SAP SE
// SPDX-License-Identifier: Apache-2.0

package nova

import (
	"context"
	"log/slog"
	"slices"

	"github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/lib"
	"github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/nova/plugins"
	"github.com/cobaltcore-dev/cortex-isolation/internal/scheduling/nova/plugins/filters"
	"github.com/cobaltcore-dev/cortex-isolation/pkg/mqtt"
)

// MQTT topic on which finished pipeline runs are published.
const TopicFinished = "cortex/scheduler/nova/isolation/finished"

// Messages waiting for the broker. Further messages are dropped.
const publishQueueSize = 1000

// Message published for every finished pipeline run.
type DecisionMessage struct {
	RequestID string `json:"requestID"`
	// Image properties the isolation filters looked at. Unset ones are omitted.
	ImageProperties map[string]string `json:"imageProperties"`
	// Compute hosts as sent by nova.
	InHosts []string `json:"inHosts"`
	// Compute hosts returned to nova, best first.
	OutHosts []string `json:"outHosts"`
	// Compute hosts removed by the filters.
	RejectedHosts []string `json:"rejectedHosts"`
}

type publishingPipeline struct {
	lib.Pipeline[plugins.PipelineRequest]
	client mqtt.Client
	topic  string
	queue  chan DecisionMessage
}

// Wrap the pipeline so that every successful run is published to the broker.
// Messages are handed to a background publisher that runs until ctx is done,
// so scheduling responses never wait for the broker.
func PublishDecisions(
	ctx context.Context,
	pipeline lib.Pipeline[plugins.PipelineRequest],
	client mqtt.Client,
) lib.Pipeline[plugins.PipelineRequest] {

	return newPublishingPipeline(ctx, pipeline, client, publishQueueSize)
}

func newPublishingPipeline(
	ctx context.Context,
	pipeline lib.Pipeline[plugins.PipelineRequest],
	client mqtt.Client,
	queueSize int,
) *publishingPipeline {

	p := &publishingPipeline{
		Pipeline: pipeline,
		client:   client,
		topic:    TopicFinished,
		queue:    make(chan DecisionMessage, queueSize),
	}
	go p.publishLoop(ctx)
	return p
}

func (p *publishingPipeline) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.queue:
			p.client.Publish(p.topic, msg)
		}
	}
}

func (p *publishingPipeline) Run(ctx context.Context, request plugins.PipelineRequest) (lib.PipelineDecision, error) {
	decision, err := p.Pipeline.Run(ctx, request)
	if err != nil {
		return decision, err
	}
	msg := newDecisionMessage(request, decision)
	select {
	case p.queue <- msg:
	default:
		slog.Warn("decision publish queue is full, dropping message", "req", msg.RequestID, "topic", p.topic)
	}
	return decision, nil
}

func newDecisionMessage(request plugins.PipelineRequest, decision lib.PipelineDecision) DecisionMessage {
	props := map[string]string{}
	for _, tag := range []string{filters.IsolationAggregateTag, filters.OSDistroTag, filters.OSTypeTag} {
		if value, ok := request.GetImageProperty(tag).Unpack(); ok {
			props[tag] = value
		}
	}
	in := request.GetHosts()
	slices.Sort(in)
	in = slices.Compact(in)
	out := decision.OrderedHosts
	if out == nil {
		out = []string{}
	}
	rejected := []string{}
	for _, host := range in {
		if !slices.Contains(out, host) {
			rejected = append(rejected, host)
		}
	}
	return DecisionMessage{
		RequestID:       request.GetRequestID(),
		ImageProperties: props,
		InHosts:         in,
		OutHosts:        out,
		RejectedHosts:   rejected,
	}
}
