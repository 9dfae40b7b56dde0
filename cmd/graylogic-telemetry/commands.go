package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-telemetry/internal/telemetry"
)

// Command verbs accepted on graylogic/telemetry/command/<verb>.
const (
	verbPublish = "publish"
	verbDrain   = "drain"
)

// commandTimeout bounds one command, including every write it triggers.
const commandTimeout = 30 * time.Second

var (
	errUnknownVerb = errors.New("unknown command verb")
	errNoIDs       = errors.New("no measurement ids in payload")
)

// messagePublisher is the part of the MQTT client the command handler
// needs. *mqtt.Client satisfies it.
type messagePublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishRetained(topic string, payload []byte) error
}

// commandHandler serves MQTT commands and reports backlog state.
type commandHandler struct {
	publisher *telemetry.Publisher
	out       messagePublisher
	qos       byte
	logger    *logging.Logger
	topics    mqtt.Topics
}

func newCommandHandler(p *telemetry.Publisher, out messagePublisher, qos byte, logger *logging.Logger) *commandHandler {
	return &commandHandler{publisher: p, out: out, qos: qos, logger: logger}
}

// handle implements mqtt.MessageHandler for the command wildcard topic.
func (h *commandHandler) handle(topic string, payload []byte) error {
	verb := strings.TrimPrefix(topic, mqtt.TopicPrefix+"/command/")

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var result any
	switch verb {
	case verbPublish:
		ids, err := parseIDs(payload)
		if err != nil {
			return h.reply(verb, map[string]string{"error": err.Error()})
		}
		res, err := h.publisher.PublishIDs(ctx, ids)
		if err != nil {
			return h.reply(verb, map[string]string{"error": err.Error()})
		}
		result = map[string]any{
			"results":   res.Results,
			"requests":  res.Requests,
			"published": res.Published(),
			"drain":     res.Drain,
		}
	case verbDrain:
		result = h.publisher.DrainBacklog(ctx)
	default:
		return fmt.Errorf("%w: %q", errUnknownVerb, verb)
	}

	if err := h.reply(verb, result); err != nil {
		return err
	}
	return h.reportBacklog()
}

// reply publishes a command result on the matching result topic.
func (h *commandHandler) reply(verb string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s result: %w", verb, err)
	}
	return h.out.Publish(h.topics.Result(verb), data, h.qos, false)
}

// reportBacklog publishes the backlog status as a retained message.
func (h *commandHandler) reportBacklog() error {
	data, err := json.Marshal(h.publisher.BacklogStatus())
	if err != nil {
		return fmt.Errorf("encoding backlog status: %w", err)
	}
	return h.out.PublishRetained(h.topics.Backlog(), data)
}

// onPublish is registered with Publisher.SetOnPublish.
func (h *commandHandler) onPublish(r telemetry.Result) {
	if r.Status == telemetry.StatusSkipped {
		return
	}
	if err := h.reportBacklog(); err != nil {
		h.logger.Warn("publishing backlog status failed", "error", err)
	}
}

// parseIDs accepts either a JSON array of strings or a comma-separated list.
func parseIDs(payload []byte) ([]string, error) {
	payload = bytes.TrimSpace(payload)

	var raw []string
	if bytes.HasPrefix(payload, []byte("[")) {
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("parsing id list: %w", err)
		}
	} else {
		raw = strings.Split(string(payload), ",")
	}

	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, errNoIDs
	}
	return ids, nil
}
