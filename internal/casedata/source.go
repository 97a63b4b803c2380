// ABOUTME: HTTP client for court case-data APIs, exposed as a lookup source
// ABOUTME: Speaks JSON natively and wraps CSV-flavored APIs in the bus adapter

package casedata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/civicbots/courtbot/internal/bus"
	"github.com/civicbots/courtbot/internal/registration"
)

const defaultTimeout = 10 * time.Second

// Config describes one court data API.
type Config struct {
	// Name identifies the API in logs and error reports.
	Name string
	// BaseURL is the API root, without a trailing slash.
	BaseURL string
	// Format is "json" or "csv". CSV APIs return party names as one
	// comma-separated string.
	Format string
	// APIKey, when set, is sent as a bearer token.
	APIKey string
	// Timeout bounds each request. Defaults to 10s.
	Timeout time.Duration
}

// HTTPSource looks up parties and events over a JSON HTTP API.
type HTTPSource struct {
	cfg    Config
	client *http.Client
}

var _ bus.CaseSource = (*HTTPSource)(nil)

// NewSource builds a lookup source for the configured API. CSV-format APIs
// come back wrapped in the comma-splitting adapter so the rest of the engine
// only ever sees structured parties.
func NewSource(cfg Config) bus.CaseSource {
	src := newHTTPSource(cfg)
	if strings.EqualFold(cfg.Format, "csv") {
		return bus.NewCSVSource(cfg.Name, src.rawParties, src.PartyEvents)
	}
	return src
}

func newHTTPSource(cfg Config) *HTTPSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &HTTPSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *HTTPSource) API() string { return s.cfg.Name }

type partiesResponse struct {
	Parties []struct {
		Name string `json:"name"`
	} `json:"parties"`
}

func (s *HTTPSource) Parties(ctx context.Context, caseNumber string) ([]registration.Party, error) {
	body, err := s.get(ctx, s.partiesURL(caseNumber))
	if err != nil || body == nil {
		return nil, err
	}
	var resp partiesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding parties from %s: %w", s.cfg.Name, err)
	}
	parties := make([]registration.Party, 0, len(resp.Parties))
	for _, p := range resp.Parties {
		parties = append(parties, registration.Party{Name: p.Name})
	}
	return parties, nil
}

type eventsResponse struct {
	Events []struct {
		Date        string `json:"date"`
		Description string `json:"description"`
	} `json:"events"`
}

func (s *HTTPSource) PartyEvents(ctx context.Context, caseNumber, partyName string) ([]registration.CaseEvent, error) {
	body, err := s.get(ctx, s.eventsURL(caseNumber, partyName))
	if err != nil || body == nil {
		return nil, err
	}
	var resp eventsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding events from %s: %w", s.cfg.Name, err)
	}
	events := make([]registration.CaseEvent, 0, len(resp.Events))
	for _, e := range resp.Events {
		events = append(events, registration.CaseEvent{Date: e.Date, Description: e.Description})
	}
	return events, nil
}

// rawParties backs the CSV adapter: the parties endpoint returns a plain
// comma-separated name list instead of JSON.
func (s *HTTPSource) rawParties(ctx context.Context, caseNumber string) (string, error) {
	body, err := s.get(ctx, s.partiesURL(caseNumber))
	if err != nil || body == nil {
		return "", err
	}
	return string(body), nil
}

func (s *HTTPSource) partiesURL(caseNumber string) string {
	return fmt.Sprintf("%s/cases/%s/parties", s.cfg.BaseURL, url.PathEscape(caseNumber))
}

func (s *HTTPSource) eventsURL(caseNumber, partyName string) string {
	return fmt.Sprintf("%s/cases/%s/parties/%s/events",
		s.cfg.BaseURL, url.PathEscape(caseNumber), url.PathEscape(partyName))
}

// get performs a GET and returns the body. A 404 means the case is simply
// unknown to this API and returns (nil, nil).
func (s *HTTPSource) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request to %s: %w", s.cfg.Name, err)
	}
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", s.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", s.cfg.Name, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", s.cfg.Name, err)
	}
	return body, nil
}
