// Package search pushes job documents to the external Meilisearch index
// and removes them when jobs are deleted. The index schema and query
// surface belong to a collaborator; this package only implements the sync
// contract.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// deleteBatchSize caps how many document IDs one delete call carries.
const deleteBatchSize = 100

// JobDocument is the flat shape indexed for the job browser collaborator.
type JobDocument struct {
	ID          int64    `json:"id"`
	OrgName     string   `json:"org_name"`
	Title       string   `json:"title"`
	ApplyURL    string   `json:"apply_url"`
	Country     string   `json:"country"`
	CountryISO2 string   `json:"country_iso2"`
	City        string   `json:"city"`
	Remote      bool     `json:"remote"`
	Deadline    string   `json:"deadline,omitempty"`
	Description string   `json:"description"`
	Level       string   `json:"level,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	SDGs        []int    `json:"sdgs,omitempty"`
}

// Index is the search-index sync contract consumed by the storage adapter
// and the sync_search_index administrative operation.
type Index interface {
	// UpsertDocuments adds or replaces docs in the index.
	UpsertDocuments(ctx context.Context, docs []JobDocument) error
	// DeleteDocuments removes the given document IDs, batching internally.
	DeleteDocuments(ctx context.Context, ids []int64) error
	// ListDocumentIDs pages through every indexed document ID, for the
	// sync operation's diff against the store.
	ListDocumentIDs(ctx context.Context) ([]int64, error)
}

// MeiliIndex talks to one Meilisearch index over its REST API. The official
// Go client is not used: the sync contract needs exactly three endpoints,
// and keeping the surface to plain HTTP avoids pulling a client library
// none of the surrounding codebases carry.
type MeiliIndex struct {
	baseURL string
	apiKey  string
	index   string
	client  *http.Client
}

// NewMeiliIndex configures the client from MEILISEARCH_URL, MEILISEARCH_KEY,
// and MEILI_JOBS_INDEX.
func NewMeiliIndex(baseURL, apiKey, index string) *MeiliIndex {
	return &MeiliIndex{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		index:   index,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (m *MeiliIndex) UpsertDocuments(ctx context.Context, docs []JobDocument) error {
	if len(docs) == 0 {
		return nil
	}
	body, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("search: marshal documents: %w", err)
	}
	path := fmt.Sprintf("/indexes/%s/documents?primaryKey=id", m.index)
	return m.do(ctx, http.MethodPut, path, body)
}

func (m *MeiliIndex) DeleteDocuments(ctx context.Context, ids []int64) error {
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		body, err := json.Marshal(ids[start:end])
		if err != nil {
			return fmt.Errorf("search: marshal ids: %w", err)
		}
		path := fmt.Sprintf("/indexes/%s/documents/delete-batch", m.index)
		if err := m.do(ctx, http.MethodPost, path, body); err != nil {
			return err
		}
	}
	return nil
}

func (m *MeiliIndex) ListDocumentIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	offset := 0
	const pageSize = 1000
	for {
		path := fmt.Sprintf("/indexes/%s/documents?fields=id&limit=%d&offset=%d", m.index, pageSize, offset)
		var page struct {
			Results []struct {
				ID int64 `json:"id"`
			} `json:"results"`
			Total int `json:"total"`
		}
		if err := m.get(ctx, path, &page); err != nil {
			return nil, err
		}
		for _, r := range page.Results {
			ids = append(ids, r.ID)
		}
		offset += len(page.Results)
		if len(page.Results) < pageSize || offset >= page.Total {
			return ids, nil
		}
	}
}

func (m *MeiliIndex) do(ctx context.Context, method, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("search: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("search: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("search: %s %s: status %d: %s", method, path, resp.StatusCode, detail)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (m *MeiliIndex) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("search: build request: %w", err)
	}
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("search: GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("search: GET %s: status %d: %s", path, resp.StatusCode, detail)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// NoopIndex satisfies Index without a configured Meilisearch endpoint, so
// local runs and tests work with search sync disabled.
type NoopIndex struct{}

func (NoopIndex) UpsertDocuments(ctx context.Context, docs []JobDocument) error { return nil }
func (NoopIndex) DeleteDocuments(ctx context.Context, ids []int64) error        { return nil }
func (NoopIndex) ListDocumentIDs(ctx context.Context) ([]int64, error)          { return nil, nil }
