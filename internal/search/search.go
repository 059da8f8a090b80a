// Package search maintains an Elasticsearch projection of application names for lookup.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"soloparent-workers/internal/common/config"
	"soloparent-workers/internal/common/logger"
	"soloparent-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ErrDisabled is returned by Search when no index is configured.
var ErrDisabled = errors.New("search is disabled")

const mapping = `{
	"mappings": {
		"properties": {
			"applicationId": {"type": "keyword"},
			"surname":       {"type": "text"},
			"givenName":     {"type": "text"},
			"middleName":    {"type": "text"},
			"fullName":      {"type": "text", "fields": {"raw": {"type": "keyword"}}},
			"civilStatus":   {"type": "keyword"},
			"updatedAt":     {"type": "date"}
		}
	}
}`

// Document is what gets indexed for one application. Contact details stay in the record store.
type Document struct {
	ApplicationID string    `json:"applicationId"`
	Surname       string    `json:"surname,omitempty"`
	GivenName     string    `json:"givenName,omitempty"`
	MiddleName    string    `json:"middleName,omitempty"`
	FullName      string    `json:"fullName,omitempty"`
	CivilStatus   string    `json:"civilStatus,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func DocumentFor(id string, a models.Applicant) Document {
	return Document{
		ApplicationID: id,
		Surname:       a.Surname,
		GivenName:     a.GivenName,
		MiddleName:    a.MiddleName,
		FullName:      a.FullName(),
		CivilStatus:   string(a.CivilStatus),
		UpdatedAt:     time.Now().UTC(),
	}
}

type Query struct {
	Text        string
	CivilStatus string
	From        int
	Size        int
}

type Hit struct {
	ApplicationID string  `json:"applicationId"`
	FullName      string  `json:"fullName"`
	CivilStatus   string  `json:"civilStatus,omitempty"`
	Score         float64 `json:"score"`
}

type Result struct {
	Total int   `json:"total"`
	Hits  []Hit `json:"hits"`
}

// Index writes to and queries one index. A nil *Index ignores writes.
type Index struct {
	es     *elasticsearch.Client
	name   string
	logger logger.Logger
}

func New(es *elasticsearch.Client, cfg config.SearchConfig, log logger.Logger) *Index {
	if es == nil || !cfg.Enabled {
		return nil
	}
	return &Index{es: es, name: cfg.Index, logger: log}
}

// EnsureIndex creates the index with its mapping when missing.
func (i *Index) EnsureIndex(ctx context.Context) error {
	if i == nil {
		return nil
	}
	res, err := i.es.Indices.Exists([]string{i.name}, i.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = i.es.Indices.Create(i.name,
		i.es.Indices.Create.WithBody(bytes.NewReader([]byte(mapping))),
		i.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index", res)
	}
	return nil
}

func (i *Index) Put(ctx context.Context, doc Document) error {
	if i == nil {
		return nil
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	res, err := i.es.Index(i.name, bytes.NewReader(body),
		i.es.Index.WithDocumentID(doc.ApplicationID),
		i.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index document", res)
	}
	return nil
}

// Delete removes id; a missing document is not an error.
func (i *Index) Delete(ctx context.Context, id string) error {
	if i == nil {
		return nil
	}
	res, err := i.es.Delete(i.name, id, i.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete document", res)
	}
	return nil
}

// PutBestEffort and DeleteBestEffort log instead of failing; the record store stays the source
// of truth.
func (i *Index) PutBestEffort(ctx context.Context, doc Document) {
	if err := i.Put(ctx, doc); err != nil {
		i.logger.Warn("search index update failed", map[string]interface{}{"applicationId": doc.ApplicationID, "error": err})
	}
}

func (i *Index) DeleteBestEffort(ctx context.Context, id string) {
	if err := i.Delete(ctx, id); err != nil {
		i.logger.Warn("search index delete failed", map[string]interface{}{"applicationId": id, "error": err})
	}
}

func (i *Index) Search(ctx context.Context, q Query) (*Result, error) {
	if i == nil {
		return nil, ErrDisabled
	}
	body, err := json.Marshal(buildQuery(q))
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.name),
		i.es.Search.WithBody(bytes.NewReader(body)),
		i.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("search", res)
	}

	var raw struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Score  float64  `json:"_score"`
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := &Result{Total: raw.Hits.Total.Value, Hits: make([]Hit, 0, len(raw.Hits.Hits))}
	for _, h := range raw.Hits.Hits {
		out.Hits = append(out.Hits, Hit{
			ApplicationID: h.Source.ApplicationID,
			FullName:      h.Source.FullName,
			CivilStatus:   h.Source.CivilStatus,
			Score:         h.Score,
		})
	}
	return out, nil
}

func buildQuery(q Query) map[string]interface{} {
	size := q.Size
	if size <= 0 {
		size = 10
	}

	boolQuery := map[string]interface{}{}
	if q.Text != "" {
		boolQuery["must"] = []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":     q.Text,
					"fields":    []string{"surname^2", "givenName", "middleName", "fullName"},
					"fuzziness": "AUTO",
				},
			},
		}
	} else {
		boolQuery["must"] = []interface{}{map[string]interface{}{"match_all": map[string]interface{}{}}}
	}
	if q.CivilStatus != "" {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{"term": map[string]interface{}{"civilStatus": q.CivilStatus}},
		}
	}

	return map[string]interface{}{
		"from":  q.From,
		"size":  size,
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  []interface{}{"_score", map[string]interface{}{"fullName.raw": "asc"}},
	}
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(res.Body)
	return fmt.Errorf("%s: %s: %s", op, res.Status(), bytes.TrimSpace(body))
}
