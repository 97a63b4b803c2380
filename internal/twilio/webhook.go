// ABOUTME: Inbound SMS webhook that feeds texts into the conversation driver
// ABOUTME: Replies in TwiML so Twilio delivers the response on the same message

package twilio

import (
	"context"
	"encoding/xml"
	"log/slog"
	"net/http"

	"github.com/civicbots/courtbot/internal/conversation"
	"github.com/civicbots/courtbot/internal/message"
)

// twiML is the response document Twilio expects from a message webhook.
type twiML struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// Handler accepts Twilio's inbound-message webhook POSTs. Each request gets
// its own conversation driver with a replier bound to the response body.
type Handler struct {
	regs     conversation.RegistrationStore
	lookup   conversation.PartyLookup
	composer message.Composer
	logger   *slog.Logger
}

// NewHandler builds the webhook handler.
func NewHandler(regs conversation.RegistrationStore, lookup conversation.PartyLookup,
	composer message.Composer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		regs:     regs,
		lookup:   lookup,
		composer: composer,
		logger:   logger.With("component", "twilio-webhook"),
	}
}

// Register attaches the webhook routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/sms", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		h.handleInbound(w, r)
	})
}

func (h *Handler) handleInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger.Error("malformed webhook form", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	if from == "" || body == "" {
		http.Error(w, "missing From or Body", http.StatusBadRequest)
		return
	}

	var reply string
	replier := conversation.ReplierFunc(func(_ context.Context, msg string) error {
		reply = msg
		return nil
	})
	driver := conversation.NewDriver(CommType, h.regs, h.lookup, h.composer, replier, h.logger)

	if err := driver.Parse(r.Context(), body, from); err != nil {
		// The driver already logged; answer with an empty TwiML document so
		// Twilio does not retry the webhook.
		h.writeTwiML(w, "")
		return
	}
	h.writeTwiML(w, reply)
}

func (h *Handler) writeTwiML(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/xml")
	w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(w).Encode(twiML{Message: msg}); err != nil {
		h.logger.Error("encoding twiml response failed", "error", err)
	}
}
