package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"

	"homes-scraper/models"
	"homes-scraper/utils"
)

// ElasticWriter indexes listing records into Elasticsearch. Document IDs are
// derived from the listing URL so re-crawls overwrite instead of duplicating.
type ElasticWriter struct {
	client *elasticsearch.TypedClient
	index  string
	logger *utils.Logger
}

// elasticDoc is the indexed document: the record plus its session name.
type elasticDoc struct {
	Session string `json:"session"`
	*models.ListingRecord
}

// NewElasticWriter connects to address and creates index when missing.
// insecure skips TLS certificate checks, for self-signed dev clusters.
func NewElasticWriter(ctx context.Context, address, username, password, index string, insecure bool, logger *utils.Logger) (*ElasticWriter, error) {
	if insecure {
		logger.Warn("[elastic] TLS certificate verification is disabled")
	}
	client, err := elasticsearch.NewTypedClient(elasticsearch.Config{
		Addresses: []string{address},
		Username:  username,
		Password:  password,
		Transport: elasticTransport(insecure),
	})
	if err != nil {
		return nil, fmt.Errorf("elastic: init client: %w", err)
	}

	ew := &ElasticWriter{client: client, index: index, logger: logger}
	if err := ew.ensureIndex(ctx); err != nil {
		return nil, err
	}
	return ew, nil
}

func elasticTransport(insecure bool) *http.Transport {
	return &http.Transport{
		MaxIdleConnsPerHost:   10,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: insecure},
	}
}

func (ew *ElasticWriter) ensureIndex(ctx context.Context) error {
	exists, err := ew.client.Indices.Exists(ew.index).Do(ctx)
	if err != nil {
		return fmt.Errorf("elastic: check index %s: %w", ew.index, err)
	}
	if exists {
		ew.logger.Debug("[elastic] Index %s already exists", ew.index)
		return nil
	}
	if _, err := ew.client.Indices.Create(ew.index).Do(ctx); err != nil {
		return fmt.Errorf("elastic: create index %s: %w", ew.index, err)
	}
	ew.logger.Info("[elastic] Created index %s", ew.index)
	return nil
}

// Persist indexes every record; the first failure aborts.
func (ew *ElasticWriter) Persist(ctx context.Context, name string, records []*models.ListingRecord) (string, error) {
	for _, r := range records {
		_, err := ew.client.Index(ew.index).
			Id(DocumentID(r.URL)).
			Document(elasticDoc{Session: name, ListingRecord: r}).
			Do(ctx)
		if err != nil {
			return "", fmt.Errorf("elastic: index %s: %w", r.URL, err)
		}
	}
	ew.logger.Info("[elastic] Indexed %d records into %s", len(records), ew.index)
	return "elastic:" + ew.index, nil
}

func (ew *ElasticWriter) Close() error {
	return nil
}

// DocumentID is the stable Elasticsearch ID for a listing URL.
func DocumentID(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}
