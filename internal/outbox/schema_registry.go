package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"example.com/growth/internal/events"
)

// SchemaRegistry resolves Confluent Schema Registry ids for published event contracts.
// Registering a schema that already exists under a subject returns the existing id, so ids
// are resolved by registering and then cached per subject.
type SchemaRegistry struct {
	baseURL string
	client  *http.Client

	mu  sync.Mutex
	ids map[string]int
}

// NewSchemaRegistry constructs a SchemaRegistry for the registry at baseURL.
func NewSchemaRegistry(baseURL string) *SchemaRegistry {
	return &SchemaRegistry{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		ids:     make(map[string]int),
	}
}

// SchemaID returns the registry id of the contract's schema.
func (r *SchemaRegistry) SchemaID(ctx context.Context, contract events.Contract) (int, error) {
	subject := contract.Subject()

	r.mu.Lock()
	id, ok := r.ids[subject]
	r.mu.Unlock()
	if ok {
		return id, nil
	}

	id, err := r.register(ctx, subject, contract.Schema)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	r.ids[subject] = id
	r.mu.Unlock()
	return id, nil
}

func (r *SchemaRegistry) register(ctx context.Context, subject, schema string) (int, error) {
	body, err := json.Marshal(map[string]string{"schemaType": "JSON", "schema": schema})
	if err != nil {
		return 0, err
	}
	endpoint := fmt.Sprintf("%s/subjects/%s/versions", r.baseURL, url.PathEscape(subject))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/vnd.schemaregistry.v1+json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("register %s: %w", subject, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return 0, fmt.Errorf("register %s: %s: %s", subject, resp.Status, bytes.TrimSpace(detail))
	}
	var payload struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("register %s: %w", subject, err)
	}
	return payload.ID, nil
}
