// ABOUTME: Tests for the Twilio sender and the inbound SMS webhook
// ABOUTME: Uses httptest for the API and the webhook's full request cycle

package twilio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicbots/courtbot/internal/message"
	"github.com/civicbots/courtbot/internal/registration"
	"github.com/civicbots/courtbot/internal/store"
)

func TestClientSend(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "token", pass)
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer srv.Close()

	c := NewClient("AC123", "token", "+15550009999", WithAPIBase(srv.URL))
	assert.Equal(t, "sms", c.CommunicationType())

	require.NoError(t, c.Send(context.Background(), "+15551234567", "see you in court"))
	assert.Equal(t, "+15551234567", got.Get("To"))
	assert.Equal(t, "+15550009999", got.Get("From"))
	assert.Equal(t, "see you in court", got.Get("Body"))
}

func TestClientSendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"The 'To' number is not a valid phone number."}`))
	}))
	defer srv.Close()

	c := NewClient("AC123", "token", "+15550009999", WithAPIBase(srv.URL))
	err := c.Send(context.Background(), "not-a-number", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid phone number")
}

type staticLookup []registration.Party

func (l staticLookup) CaseParties(context.Context, string) []registration.Party {
	return l
}

func postSMS(t *testing.T, h http.Handler, from, body string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"From": {from}, "Body": {body}}
	req := httptest.NewRequest(http.MethodPost, "/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newWebhookMux(s *store.MemoryStore, lookup staticLookup) *http.ServeMux {
	h := NewHandler(s, lookup,
		message.English{PublicURL: "https://court.example.gov", Title: "Test Courtbot"}, nil)
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func TestWebhookRunsConversationTurn(t *testing.T) {
	s := store.NewMemoryStore()
	mux := newWebhookMux(s, staticLookup{{Name: "SMITH, JOHN"}})

	rec := postSMS(t, mux, "+15551234567", "CF-2016-42")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<Response>")
	assert.Contains(t, rec.Body.String(), "We found a case for SMITH, JOHN")

	regs, err := s.GetRegistrationsByContact(context.Background(), "+15551234567", "sms")
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, registration.StateAskedReminder, regs[0].State)
}

func TestWebhookFullSignup(t *testing.T) {
	s := store.NewMemoryStore()
	mux := newWebhookMux(s, staticLookup{{Name: "SMITH, JOHN"}})

	postSMS(t, mux, "+15551234567", "CF-2016-42")
	rec := postSMS(t, mux, "+15551234567", "YES")

	assert.Contains(t, rec.Body.String(), "attempt to send you a reminder")

	regs, err := s.GetRegistrationsByContact(context.Background(), "+15551234567", "sms")
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, registration.StateReminding, regs[0].State)
}

func TestWebhookMissingFields(t *testing.T) {
	s := store.NewMemoryStore()
	mux := newWebhookMux(s, staticLookup{})

	rec := postSMS(t, mux, "", "CF-2016-42")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookEscapesReply(t *testing.T) {
	s := store.NewMemoryStore()
	mux := newWebhookMux(s, staticLookup{{Name: "SMITH & SONS"}})

	rec := postSMS(t, mux, "+15551234567", "CF-2016-42")
	assert.Contains(t, rec.Body.String(), "SMITH &amp; SONS")
}
