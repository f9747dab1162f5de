package sink

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/orderflow-systems/orderflow-pipeline/internal/models"
)

// OpenSearchConfig holds connection settings for the analytics index.
type OpenSearchConfig struct {
	URL           string
	Username      string
	Password      string
	TLSSkipVerify bool
	Index         string
}

// OpenSearchStore indexes normalized events for ad-hoc analytics. It
// satisfies the same Store interface as PostgresStore, so the writer's
// retry policy applies unchanged.
type OpenSearchStore struct {
	client *opensearch.Client
	index  string
}

// NewOpenSearchStore creates a store writing to the configured index.
func NewOpenSearchStore(cfg OpenSearchConfig) (*OpenSearchStore, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.TLSSkipVerify,
			},
		},
	}

	osCfg := opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	index := cfg.Index
	if index == "" {
		index = "orderflow-events"
	}

	return &OpenSearchStore{client: client, index: index}, nil
}

// Ping verifies connectivity.
func (s *OpenSearchStore) Ping(ctx context.Context) error {
	res, err := s.client.Info(s.client.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to opensearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch returned error: %s", res.Status())
	}
	return nil
}

// Insert indexes one normalized event as a JSON document.
func (s *OpenSearchStore) Insert(ctx context.Context, ev models.NormalizedEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Deterministic doc id keeps redelivered events idempotent.
	docID := ev.OrderID + ":" + strings.ReplaceAll(ev.EventTS, ":", "_")

	req := opensearchapi.IndexRequest{
		Index:      s.index,
		DocumentID: docID,
		Body:       bytes.NewReader(data),
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("failed to index event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("opensearch index error: %s: %s", res.Status(), body)
	}

	return nil
}
