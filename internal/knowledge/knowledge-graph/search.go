package knowledgegraph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// EntityIndexMapping is the index body expected by ElasticSearcher. The type
// field is a keyword so the entity type filter matches exactly.
const EntityIndexMapping = `{
  "mappings": {
    "properties": {
      "id":      {"type": "keyword"},
      "name":    {"type": "text"},
      "aliases": {"type": "text"},
      "type":    {"type": "keyword"}
    }
  }
}`

// ElasticSearcher resolves free text against an index of knowledge-base
// entities (fields id, name, aliases, type).
type ElasticSearcher struct {
	client *elasticsearch.Client
	index  string
	size   int
}

func NewElasticSearcher(client *elasticsearch.Client, index string) *ElasticSearcher {
	return &ElasticSearcher{client: client, index: index, size: 5}
}

func (s *ElasticSearcher) Search(ctx context.Context, text, entityType string) ([]string, error) {
	query := map[string]interface{}{
		"bool": map[string]interface{}{
			"must": []interface{}{
				map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":     text,
						"fields":    []string{"name^2", "aliases"},
						"fuzziness": "AUTO",
					},
				},
			},
		},
	}
	if entityType != "" {
		query["bool"].(map[string]interface{})["filter"] = []interface{}{
			map[string]interface{}{"term": map[string]interface{}{"type": entityType}},
		}
	}

	body, _ := json.Marshal(map[string]interface{}{
		"query":   query,
		"size":    s.size,
		"_source": []string{"id"},
	})
	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  strings.NewReader(string(body)),
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search failed: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				ID     string `json:"_id"`
				Source struct {
					ID string `json:"id"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]string, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		id := hit.Source.ID
		if id == "" {
			id = hit.ID
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// IndexEntities writes every entity into the search index, keyed by id.
func (s *ElasticSearcher) IndexEntities(ctx context.Context, entities []Entity) error {
	for _, e := range entities {
		doc, _ := json.Marshal(map[string]interface{}{
			"id":      e.ID,
			"name":    e.Name,
			"aliases": e.Aliases,
			"type":    e.Type,
		})
		req := esapi.IndexRequest{
			Index:      s.index,
			DocumentID: e.ID,
			Body:       strings.NewReader(string(doc)),
		}
		res, err := req.Do(ctx, s.client)
		if err != nil {
			return fmt.Errorf("elasticsearch: index %s: %w", e.ID, err)
		}
		failed := res.IsError()
		status := res.Status()
		res.Body.Close()
		if failed {
			return fmt.Errorf("elasticsearch: index %s: %s", e.ID, status)
		}
	}
	return nil
}
