package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/andriansyah/digistore/internal/config"
	"github.com/andriansyah/digistore/internal/logging"
	"github.com/andriansyah/digistore/internal/models"
	"github.com/elastic/go-elasticsearch/v9"
)

const ProductIndex = "products"

// Index wraps the Elasticsearch client used for product search. A nil
// Index is valid and degrades every call to a no-op, so the storefront
// runs without a search cluster.
type Index struct {
	es *elasticsearch.Client
}

func NewIndex(cfg *config.Config) (*Index, error) {
	if cfg.ES_URL == "" {
		return nil, nil
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.ES_URL},
		Username:  cfg.ES_USER,
		Password:  cfg.ES_PASSWORD,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create search client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to reach search cluster: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search cluster error: %s", body)
	}

	return &Index{es: client}, nil
}

// IndexProduct upserts one product document. Best effort, called from
// the product mutation paths.
func (ix *Index) IndexProduct(ctx context.Context, p *models.Product) {
	if ix == nil || ix.es == nil {
		return
	}

	doc, err := json.Marshal(p)
	if err != nil {
		logging.FromContext(ctx).Warn("search index encode failed", "product_id", p.ID, "error", err)
		return
	}

	res, err := ix.es.Index(ProductIndex, bytes.NewReader(doc),
		ix.es.Index.WithContext(ctx),
		ix.es.Index.WithDocumentID(p.ID),
	)
	if err != nil {
		logging.FromContext(ctx).Warn("search index failed", "product_id", p.ID, "error", err)
		return
	}
	res.Body.Close()
}

func (ix *Index) DeleteProduct(ctx context.Context, id string) {
	if ix == nil || ix.es == nil {
		return
	}
	res, err := ix.es.Delete(ProductIndex, id, ix.es.Delete.WithContext(ctx))
	if err != nil {
		logging.FromContext(ctx).Warn("search delete failed", "product_id", id, "error", err)
		return
	}
	res.Body.Close()
}

// Search runs a fuzzy multi-match over product names and descriptions.
// Returns ok=false when no cluster is configured, so the caller can fall
// back to a plain SQL filter.
func (ix *Index) Search(ctx context.Context, query string, from, size int) (int64, []models.Product, bool, error) {
	if ix == nil || ix.es == nil {
		return 0, nil, false, nil
	}

	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"name^2", "description"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, true, err
	}

	res, err := ix.es.Search(
		ix.es.Search.WithContext(ctx),
		ix.es.Search.WithIndex(ProductIndex),
		ix.es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, true, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, true, fmt.Errorf("search error: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct{ Value int64 } `json:"total"`
			Hits  []struct {
				Source models.Product `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, true, err
	}

	products := make([]models.Product, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		products[i] = hit.Source
	}
	return r.Hits.Total.Value, products, true, nil
}

// MatchesLike is the SQL fallback filter used when no cluster is
// configured: case-insensitive substring match on name or description.
func MatchesLike(p *models.Product, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Description), q)
}
