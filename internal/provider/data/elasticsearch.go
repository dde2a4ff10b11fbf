// internal/provider/data/elasticsearch.go
package data

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	domainerrors "convocore/internal/common/errors"
	"convocore/internal/provider"
)

const elasticsearchProviderName = "elasticsearch"

// ElasticsearchSource answers fulfillment queries with full-text search over
// a tenant's indexed catalog documents. Query types map to match queries on
// a per-tenant index; every search is filtered by tenant id.
type ElasticsearchSource struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchSource(client *elasticsearch.Client, index string) *ElasticsearchSource {
	return &ElasticsearchSource{client: client, index: index}
}

func (s *ElasticsearchSource) Query(ctx context.Context, req *provider.QueryRequest) (*provider.QueryResult, error) {
	query, err := s.buildQuery(req)
	if err != nil {
		return nil, err
	}

	body, _ := json.Marshal(query)
	search := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}

	res, err := search.Do(ctx, s.client)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, domainerrors.NewProviderTimeoutError(elasticsearchProviderName)
		}
		return nil, domainerrors.NewConnectionError(elasticsearchProviderName, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, domainerrors.NewConnectionError(elasticsearchProviderName,
			fmt.Errorf("search failed: %s", res.Status()))
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, domainerrors.NewInvalidResponseError(elasticsearchProviderName, "decode error: "+err.Error())
	}

	if r.Hits.Total.Value == 0 {
		return nil, domainerrors.NewDataNotFoundError(req.QueryType)
	}

	data := make([]map[string]interface{}, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		data = append(data, hit.Source)
	}

	return &provider.QueryResult{Data: data, RowCount: r.Hits.Total.Value}, nil
}

func (s *ElasticsearchSource) buildQuery(req *provider.QueryRequest) (map[string]interface{}, error) {
	must := []map[string]interface{}{
		{"term": map[string]interface{}{"tenant_id": req.TenantID}},
		{"term": map[string]interface{}{"doc_type": req.QueryType}},
	}
	if text, ok := req.Params["text"]; ok && text != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"content": text},
		})
	}

	return map[string]interface{}{
		"size": 20,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": must,
			},
		},
	}, nil
}
