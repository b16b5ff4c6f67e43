package spin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/fadedpez/clubwheel/internal/logging"
	"github.com/fadedpez/clubwheel/pkg/entities"
)

const monthLayout = "2006.01"

// ElasticsearchConfig holds connection and retention settings for the spin index
type ElasticsearchConfig struct {
	URL       string
	Username  string
	Password  string
	Index     string        // Prefix; documents land in <Index>-YYYY.MM
	Retention time.Duration // Monthly indices older than this are pruned
}

// SpinDocument is the Elasticsearch representation of a spin
type SpinDocument struct {
	SpinID    string    `json:"spin_id"`
	AccountID string    `json:"account_id"`
	ClubID    string    `json:"club_id"`
	PrizeID   string    `json:"prize_id"`
	Cost      int64     `json:"cost"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ElasticsearchIndexer decorates a Repository and mirrors every new spin into
// monthly Elasticsearch indices for dashboards
type ElasticsearchIndexer struct {
	Repository
	client *elasticsearch.Client
	config ElasticsearchConfig
	log    *logging.Logger
}

// NewElasticsearchIndexer creates the client and installs the index template
func NewElasticsearchIndexer(ctx context.Context, base Repository, config ElasticsearchConfig, logger *logging.Logger) (*ElasticsearchIndexer, error) {
	if logger == nil {
		logger = logging.Default
	}
	cfg := elasticsearch.Config{
		Addresses: []string{config.URL},
	}
	if config.Username != "" && config.Password != "" {
		cfg.Username = config.Username
		cfg.Password = config.Password
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating Elasticsearch client: %w", err)
	}

	if config.Index == "" {
		config.Index = "clubwheel_spins"
	}
	if config.Retention <= 0 {
		config.Retention = 90 * 24 * time.Hour
	}

	indexer := &ElasticsearchIndexer{
		Repository: base,
		client:     client,
		config:     config,
		log:        logger.With("spin_index"),
	}

	if err := indexer.putTemplate(ctx); err != nil {
		return nil, fmt.Errorf("error initializing spin index template: %w", err)
	}
	return indexer, nil
}

func (r *ElasticsearchIndexer) putTemplate(ctx context.Context) error {
	template := fmt.Sprintf(`{
		"index_patterns": ["%s-*"],
		"template": {
			"mappings": {
				"properties": {
					"spin_id": { "type": "keyword" },
					"account_id": { "type": "keyword" },
					"club_id": { "type": "keyword" },
					"prize_id": { "type": "keyword" },
					"cost": { "type": "long" },
					"status": { "type": "keyword" },
					"created_at": { "type": "date" }
				}
			}
		}
	}`, r.config.Index)

	req := esapi.IndicesPutIndexTemplateRequest{
		Name: r.config.Index,
		Body: strings.NewReader(template),
	}
	res, err := req.Do(ctx, r.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error putting index template: %s", res.String())
	}
	return nil
}

// indexFor returns the monthly index a spin created at t belongs to
func (r *ElasticsearchIndexer) indexFor(t time.Time) string {
	return r.config.Index + "-" + t.UTC().Format(monthLayout)
}

// Create saves the spin to the base repository, then indexes it. Index failures
// are logged only; the base repository is the source of truth.
func (r *ElasticsearchIndexer) Create(ctx context.Context, spin *entities.Spin) error {
	if err := r.Repository.Create(ctx, spin); err != nil {
		return err
	}

	if err := r.IndexSpin(ctx, spin); err != nil {
		r.log.Warn("Failed to index spin %s: %v", spin.ID, err)
	}
	return nil
}

// IndexSpin writes a single spin document
func (r *ElasticsearchIndexer) IndexSpin(ctx context.Context, spin *entities.Spin) error {
	doc := SpinDocument{
		SpinID:    spin.ID,
		AccountID: spin.AccountID,
		ClubID:    spin.ClubID,
		PrizeID:   spin.PrizeID,
		Cost:      spin.Cost,
		Status:    string(spin.Status),
		CreatedAt: spin.CreatedAt,
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("error marshaling spin document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      r.indexFor(spin.CreatedAt),
		DocumentID: spin.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("error indexing spin: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing spin: %s", res.String())
	}
	return nil
}

// WinsByPrize aggregates spin counts per prize over [from, to)
func (r *ElasticsearchIndexer) WinsByPrize(ctx context.Context, from, to time.Time) (map[string]int64, error) {
	query := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"range": map[string]interface{}{
				"created_at": map[string]interface{}{
					"gte": from.UTC().Format(time.RFC3339),
					"lt":  to.UTC().Format(time.RFC3339),
				},
			},
		},
		"aggs": map[string]interface{}{
			"by_prize": map[string]interface{}{
				"terms": map[string]interface{}{"field": "prize_id", "size": 100},
			},
		},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("error marshaling query: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(r.config.Index+"-*"),
		r.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("error searching spins: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error searching spins: %s", res.String())
	}

	var result struct {
		Aggregations struct {
			ByPrize struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int64  `json:"doc_count"`
				} `json:"buckets"`
			} `json:"by_prize"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error parsing search response: %w", err)
	}

	counts := make(map[string]int64, len(result.Aggregations.ByPrize.Buckets))
	for _, bucket := range result.Aggregations.ByPrize.Buckets {
		counts[bucket.Key] = bucket.DocCount
	}
	return counts, nil
}

// PruneOldIndices deletes monthly indices whose whole month falls outside the retention window
func (r *ElasticsearchIndexer) PruneOldIndices(ctx context.Context, now time.Time) ([]string, error) {
	res, err := r.client.Indices.Get(
		[]string{r.config.Index + "-*"},
		r.client.Indices.Get.WithContext(ctx),
		r.client.Indices.Get.WithExpandWildcards("open"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get indices: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error getting indices: %s", res.String())
	}

	var indices map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&indices); err != nil {
		return nil, fmt.Errorf("error parsing indices response: %w", err)
	}

	cutoff := now.Add(-r.config.Retention)
	prefix := r.config.Index + "-"

	var pruned []string
	for name := range indices {
		month, err := time.Parse(monthLayout, strings.TrimPrefix(name, prefix))
		if err != nil {
			continue
		}
		if !month.AddDate(0, 1, 0).Before(cutoff) {
			continue
		}

		req := esapi.IndicesDeleteRequest{Index: []string{name}}
		delRes, err := req.Do(ctx, r.client)
		if err != nil {
			r.log.Error("Error deleting index %s: %v", name, err)
			continue
		}
		if delRes.IsError() {
			r.log.Error("Error deleting index %s: %s", name, delRes.String())
			delRes.Body.Close()
			continue
		}
		delRes.Body.Close()
		pruned = append(pruned, name)
	}

	return pruned, nil
}
