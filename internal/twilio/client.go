// ABOUTME: Outbound SMS sender backed by the Twilio Messages API
// ABOUTME: Satisfies the dispatch Sender interface for communication type "sms"

package twilio

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
)

const (
	// CommType is the communication type this transport serves.
	CommType = "sms"

	defaultAPIBase = "https://api.twilio.com"
	sendTimeout    = 15 * time.Second
)

// Client sends SMS through one Twilio account and phone number.
type Client struct {
	accountSID string
	authToken  string
	from       string
	apiBase    string
	httpClient *http.Client
}

var _ bus.Sender = (*Client)(nil)

// ClientOption adjusts Client construction.
type ClientOption func(*Client)

// WithAPIBase points the client at a different API root, for tests.
func WithAPIBase(base string) ClientOption {
	return func(c *Client) { c.apiBase = base }
}

// NewClient creates a Twilio SMS sender. from is the sending phone number in
// E.164 form.
func NewClient(accountSID, authToken, from string, opts ...ClientOption) *Client {
	c := &Client{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		apiBase:    defaultAPIBase,
		httpClient: &http.Client{Timeout: sendTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CommunicationType() string { return CommType }

// Send delivers one SMS. Twilio-side rejection surfaces as an error carrying
// the API's message when one is present.
func (c *Client) Send(ctx context.Context, to, msg string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Body", msg)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.apiBase, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building twilio request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling twilio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		return fmt.Errorf("twilio rejected message (status %d): %s", resp.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("twilio rejected message (status %d)", resp.StatusCode)
}
