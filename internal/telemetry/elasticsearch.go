package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchSink indexes span events, one document per event.
type ElasticsearchSink struct {
	es    *elasticsearch.Client
	index string
}

// NewElasticsearchSink creates a sink writing to index on the given nodes.
func NewElasticsearchSink(addresses []string, index string) (*ElasticsearchSink, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &ElasticsearchSink{es: es, index: index}, nil
}

// DocumentID is the index document identity for e. Re-delivery of the same
// event overwrites rather than duplicates.
func DocumentID(e Event) string {
	return fmt.Sprintf("%s-%s-%s", e.RunID, strings.ToLower(e.Stage), e.Phase)
}

func (s *ElasticsearchSink) Write(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal span event: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: DocumentID(e),
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, s.es)
	if err != nil {
		return fmt.Errorf("index span event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index span event failed: %s", strings.TrimSpace(string(body)))
	}
	return nil
}
