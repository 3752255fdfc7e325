package projections

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/rs/zerolog/log"

	"github.com/better-analytics/better-analytics-go/config"
	"github.com/better-analytics/better-analytics-go/models"
)

// EventsIndex is the search index holding processed events.
const EventsIndex = "events"

// NewElasticsearchClient creates a new Elasticsearch client
func NewElasticsearchClient(cfg config.Config) (*elasticsearch.Client, error) {
	elasticCfg := elasticsearch.Config{
		Addresses: []string{cfg.ElasticSearchURL},
		Username:  cfg.ElasticSearchUsername,
		Password:  cfg.ElasticSearchPassword,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 10,
		},
	}

	client, err := elasticsearch.NewClient(elasticCfg)
	if err != nil {
		return nil, fmt.Errorf("error creating Elasticsearch client: %w", err)
	}

	// Check the connection
	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("error connecting to Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("Elasticsearch returned error: %s", res.String())
	}

	log.Info().Msg("Successfully connected to Elasticsearch")
	return client, nil
}

// EnsureIndices ensures that all required indices exist
func EnsureIndices(client *elasticsearch.Client, cfg config.Config) error {
	index := config.FormatIndex(cfg, EventsIndex)

	exists, err := indexExists(client, index)
	if err != nil {
		return err
	}

	if !exists {
		log.Info().Msgf("Creating index %s", index)
		if err := createIndex(client, index); err != nil {
			return err
		}
	}

	return nil
}

// EventIndexer projects processed events into the search index.
// Indexing is best-effort and never blocks ingestion.
type EventIndexer struct {
	client *elasticsearch.Client
	index  string
}

// NewEventIndexer creates an EventIndexer over the configured index.
func NewEventIndexer(client *elasticsearch.Client, cfg config.Config) *EventIndexer {
	return &EventIndexer{
		client: client,
		index:  config.FormatIndex(cfg, EventsIndex),
	}
}

// IndexEvent indexes one processed event document.
func (i *EventIndexer) IndexEvent(ctx context.Context, event *models.ProcessedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error marshaling event %s: %w", event.ID, err)
	}

	res, err := i.client.Index(
		i.index,
		bytes.NewReader(data),
		i.client.Index.WithDocumentID(event.ID),
		i.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("error indexing event %s: %w", event.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing event %s: %s", event.ID, res.String())
	}
	return nil
}

// indexExists checks if an index exists
func indexExists(client *elasticsearch.Client, index string) (bool, error) {
	res, err := client.Indices.Exists([]string{index})
	if err != nil {
		return false, fmt.Errorf("error checking if index %s exists: %w", index, err)
	}
	defer res.Body.Close()

	return res.StatusCode == 200, nil
}

// createIndex creates an index
func createIndex(client *elasticsearch.Client, index string) error {
	res, err := client.Indices.Create(index)
	if err != nil {
		return fmt.Errorf("error creating index %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index %s: %s", index, res.String())
	}

	return nil
}
