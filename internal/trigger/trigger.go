// Package trigger starts pipeline runs from outside the HTTP API: a Kafka
// topic with a dead-letter topic, a directory watcher over the filesystem
// storage backend, and an MCP tool.
package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/JaimeStill/docintel/internal/pipeline"
)

// ErrMalformed is returned for trigger payloads that cannot be decoded.
var ErrMalformed = errors.New("malformed trigger payload")

// Processor runs a trigger through the pipeline.
type Processor interface {
	Run(ctx context.Context, t pipeline.Trigger) (*pipeline.Run, error)
}

const blobCreated = "Microsoft.Storage.BlobCreated"

type gridEvent struct {
	EventType string `json:"eventType"`
	Subject   string `json:"subject"`
	Data      struct {
		ContentType string `json:"contentType"`
	} `json:"data"`
}

// Decode parses a trigger payload. It accepts a bare {bucket, key} object
// or an Azure Event Grid BlobCreated event, alone or batched in an array.
// Events of other types are skipped.
func Decode(data []byte) ([]pipeline.Trigger, error) {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}

	var raw []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	} else {
		raw = []json.RawMessage{data}
	}

	triggers := make([]pipeline.Trigger, 0, len(raw))
	for _, item := range raw {
		t, ok, err := decodeOne(item)
		if err != nil {
			return nil, err
		}
		if ok {
			triggers = append(triggers, t)
		}
	}

	if len(triggers) == 0 {
		return nil, fmt.Errorf("%w: no triggers", ErrMalformed)
	}
	return triggers, nil
}

func decodeOne(data []byte) (pipeline.Trigger, bool, error) {
	var probe struct {
		pipeline.Trigger
		gridEvent
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return pipeline.Trigger{}, false, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if probe.EventType == "" {
		if probe.Bucket == "" || probe.Key == "" {
			return pipeline.Trigger{}, false, fmt.Errorf("%w: bucket and key are required", ErrMalformed)
		}
		return probe.Trigger, true, nil
	}

	if probe.EventType != blobCreated {
		return pipeline.Trigger{}, false, nil
	}

	container, key, err := parseSubject(probe.Subject)
	if err != nil {
		return pipeline.Trigger{}, false, err
	}
	return pipeline.Trigger{
		Bucket:    container,
		Key:       key,
		MediaType: probe.Data.ContentType,
	}, true, nil
}

// parseSubject splits "/blobServices/default/containers/<c>/blobs/<key>".
func parseSubject(subject string) (string, string, error) {
	const prefix = "/blobServices/default/containers/"

	rest, ok := strings.CutPrefix(subject, prefix)
	if !ok {
		return "", "", fmt.Errorf("%w: subject %q", ErrMalformed, subject)
	}
	container, key, ok := strings.Cut(rest, "/blobs/")
	if !ok || container == "" || key == "" {
		return "", "", fmt.Errorf("%w: subject %q", ErrMalformed, subject)
	}

	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	return container, key, nil
}
