package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aimee/backend/internal/ai"
)

// Document is one knowledge snippet with its relevance (1 - distance).
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

type Candidate struct {
	PersonID   string  `json:"person_id"`
	PersonName string  `json:"person_name"`
	Location   string  `json:"location"`
	Score      float64 `json:"score"`
}

type Recommender interface {
	Similar(ctx context.Context, query string, k int) ([]Document, error)
	BestCandidates(ctx context.Context, business, process, location string, k int) ([]Candidate, error)
}

// Noop is used when no vector store is configured.
type Noop struct{}

func (Noop) Similar(context.Context, string, int) ([]Document, error) { return nil, nil }

func (Noop) BestCandidates(context.Context, string, string, string, int) ([]Candidate, error) {
	return nil, nil
}

// HTTPRecommender queries a Chroma-style collection over REST.
type HTTPRecommender struct {
	endpoint   string
	collection string
	httpClient *http.Client
}

func NewHTTPRecommender(endpoint, collection string, timeout time.Duration) *HTTPRecommender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if collection == "" {
		collection = "aimee_knowledge"
	}
	return &HTTPRecommender{
		endpoint:   strings.TrimRight(endpoint, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type queryRequest struct {
	QueryTexts []string       `json:"query_texts"`
	NResults   int            `json:"n_results"`
	Where      map[string]any `json:"where,omitempty"`
	Include    []string       `json:"include"`
}

type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]string         `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float64        `json:"distances"`
}

func (r *HTTPRecommender) Similar(ctx context.Context, query string, k int) ([]Document, error) {
	res, err := r.query(ctx, query, k, nil)
	if err != nil {
		return nil, err
	}
	return res.documents(), nil
}

func (r *HTTPRecommender) BestCandidates(ctx context.Context, business, process, location string, k int) ([]Candidate, error) {
	and := []map[string]any{
		{"type": map[string]any{"$eq": "operator_capability"}},
		{"business_name": map[string]any{"$eq": business}},
	}
	if location != "" {
		and = append(and, map[string]any{"location": map[string]any{"$eq": location}})
	}
	text := fmt.Sprintf("operators who can process %s in %s", process, business)
	res, err := r.query(ctx, text, k, map[string]any{"$and": and})
	if err != nil {
		return nil, err
	}

	docs := res.documents()
	out := make([]Candidate, 0, len(docs))
	for _, d := range docs {
		out = append(out, Candidate{
			PersonID:   metaString(d.Metadata, "person_id"),
			PersonName: metaString(d.Metadata, "person_name"),
			Location:   metaString(d.Metadata, "location"),
			Score:      d.Score,
		})
	}
	return out, nil
}

func (r *HTTPRecommender) query(ctx context.Context, text string, k int, where map[string]any) (queryResponse, error) {
	if r.endpoint == "" {
		return queryResponse{}, nil
	}
	if k <= 0 {
		k = 5
	}
	payload, err := json.Marshal(queryRequest{
		QueryTexts: []string{text},
		NResults:   k,
		Where:      where,
		Include:    []string{"documents", "metadatas", "distances"},
	})
	if err != nil {
		return queryResponse{}, err
	}

	u := fmt.Sprintf("%s/api/v1/collections/%s/query", r.endpoint, url.PathEscape(r.collection))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return queryResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return queryResponse{}, fmt.Errorf("%w: recommender: %v", ai.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return queryResponse{}, fmt.Errorf("%w: recommender query failed: %s", ai.ErrUpstreamUnavailable, strings.TrimSpace(string(data)))
	}

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return queryResponse{}, fmt.Errorf("%w: recommender: %v", ai.ErrMalformedResponse, err)
	}
	return out, nil
}

// documents flattens the first (only) query's result columns.
func (q queryResponse) documents() []Document {
	if len(q.IDs) == 0 {
		return nil
	}
	ids := q.IDs[0]
	out := make([]Document, 0, len(ids))
	for i, id := range ids {
		d := Document{ID: id, Score: 0.5}
		if len(q.Documents) > 0 && i < len(q.Documents[0]) {
			d.Content = q.Documents[0][i]
		}
		if len(q.Metadatas) > 0 && i < len(q.Metadatas[0]) {
			d.Metadata = q.Metadatas[0][i]
		}
		if len(q.Distances) > 0 && i < len(q.Distances[0]) {
			d.Score = 1 - q.Distances[0][i]
		}
		out = append(out, d)
	}
	return out
}

func metaString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
