// Package source talks to the municipal open-data API that publishes the
// hydrant dataset. The JSON shape is an external contract: fields are
// mapped explicitly at this boundary so schema drift fails the run at
// ingestion instead of corrupting downstream stages.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultURL is the Cincinnati open-data hydrant dataset.
const DefaultURL = "https://data.cincinnati-oh.gov/resource/qhw6-ujsg.json"

// Record is one hydrant object as mapped from the API response. The API is
// not consistent about value types (numbers arrive both quoted and bare),
// so every field decodes through flexString.
type Record struct {
	ObjectID        flexString `json:"objectid"`
	AssetID         flexString `json:"assetid"`
	Latitude        flexString `json:"latitude"`
	Longitude       flexString `json:"longitude"`
	InsuranceRating flexString `json:"insurance_rating"`
	LifecycleStatus flexString `json:"lifecyclestatus"`
	ServiceArea     flexString `json:"servicearea"`
	Neighborhood    flexString `json:"neighborhood"`
	StaticPressure  flexString `json:"staticpressure"`

	// Payload is the unmodified source object for this record.
	Payload json.RawMessage `json:"-"`
}

// Snapshot is the full dataset fetched in one call, plus the verbatim
// response body retained for the audit archive.
type Snapshot struct {
	Records []Record
	Body    []byte
}

// SnapshotSource fetches the full current hydrant dataset. No incremental
// fetch is assumed; every run reads the complete snapshot.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context) (*Snapshot, error)
}

// Config configures the HTTP client.
type Config struct {
	URL     string
	Timeout time.Duration
}

// HTTPSource implements SnapshotSource against the open-data HTTP endpoint.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a client for the configured endpoint.
func NewHTTPSource(cfg Config) *HTTPSource {
	url := cfg.URL
	if url == "" {
		url = DefaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// FetchSnapshot performs one GET against the dataset endpoint and maps the
// response. Any network error, non-2xx status, or malformed top-level shape
// is returned to the caller; retry policy belongs to the HTTP client
// configuration, not here.
func (s *HTTPSource) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", s.url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	records, err := ParseSnapshot(body)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Records: records, Body: body}, nil
}

// ParseSnapshot maps a raw response body to records. The top level must be
// a JSON array of objects; anything else is a contract violation.
func ParseSnapshot(body []byte) ([]Record, error) {
	var rawObjects []json.RawMessage
	if err := json.Unmarshal(body, &rawObjects); err != nil {
		return nil, fmt.Errorf("malformed snapshot: expected a JSON array: %w", err)
	}

	records := make([]Record, 0, len(rawObjects))
	for i, raw := range rawObjects {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("malformed snapshot record %d: %w", i, err)
		}
		rec.Payload = raw
		records = append(records, rec)
	}
	return records, nil
}

// flexString decodes JSON strings, numbers, booleans, and null into a
// plain string, preserving the source text for numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	// Bare number or boolean: keep the source token verbatim.
	*f = flexString(data)
	return nil
}

// String returns the mapped value.
func (f flexString) String() string {
	return string(f)
}
