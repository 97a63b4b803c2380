// ABOUTME: JSON API for programmatic sign-ups and transport discovery
// ABOUTME: Lets partner services register a contact without the SMS conversation

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/civicbots/courtbot/internal/message"
	"github.com/civicbots/courtbot/internal/registration"
)

// Registrations is the persistence surface the API needs.
type Registrations interface {
	CreateRegistration(ctx context.Context, reg *registration.Registration) (string, error)
	GetRegistrationsByContact(ctx context.Context, contact, communicationType string) ([]*registration.Registration, error)
	UpdateRegistrationState(ctx context.Context, id string, from, to registration.State) error
}

// Dispatcher sends the sign-up notice on the registration's transport.
// bus.Bus satisfies it.
type Dispatcher interface {
	SendNonReply(ctx context.Context, to, msg, communicationType string) error
	CommunicationTypes() []string
}

// Handler serves the registration API.
type Handler struct {
	regs     Registrations
	bus      Dispatcher
	composer message.Composer
	logger   *slog.Logger
}

// NewHandler builds the API handler.
func NewHandler(regs Registrations, bus Dispatcher, composer message.Composer, logger *slog.Logger) *Handler {
	if composer == nil {
		composer = message.Unconfigured{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		regs:     regs,
		bus:      bus,
		composer: composer,
		logger:   logger.With("component", "api"),
	}
}

// Register attaches the API routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/communication-types", requireMethod(http.MethodGet, h.handleCommunicationTypes))
	mux.HandleFunc("/registrations", requireMethod(http.MethodPost, h.handleCreateRegistration))
}

// requireMethod restricts a handler to one HTTP method, matching the
// method-pattern routing this code was written against.
func requireMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (h *Handler) handleCommunicationTypes(w http.ResponseWriter, _ *http.Request) {
	types := h.bus.CommunicationTypes()
	if types == nil {
		types = []string{}
	}
	writeJSON(w, http.StatusOK, types)
}

type createRegistrationRequest struct {
	Contact           string `json:"contact"`
	CommunicationType string `json:"communication_type"`
	CaseNumber        string `json:"case_number"`
	Name              string `json:"name"`
	// SignedUpBy names who performed the sign-up, for the notice sent to
	// the contact.
	SignedUpBy string `json:"signed_up_by"`
}

type createRegistrationResponse struct {
	RegistrationID string `json:"registration_id"`
}

// handleCreateRegistration signs a contact up on their behalf. The party name
// must already be known to the caller; the contact lands in ASKED_REMINDER
// and answers the opt-in question over their own transport, so nobody is
// subscribed without consenting.
func (h *Handler) handleCreateRegistration(w http.ResponseWriter, r *http.Request) {
	var req createRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Contact == "" || req.CommunicationType == "" || req.CaseNumber == "" || req.Name == "" {
		http.Error(w, "contact, communication_type, case_number and name are required", http.StatusBadRequest)
		return
	}

	// A contact has at most one pending registration at a time; the
	// interactive flow enforces the same rule when picking its active
	// registration.
	existing, err := h.regs.GetRegistrationsByContact(r.Context(), req.Contact, req.CommunicationType)
	if err != nil {
		h.logger.Error("listing registrations failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	for _, reg := range existing {
		if reg.State.Pending() {
			http.Error(w, "contact already has a registration awaiting a reply", http.StatusConflict)
			return
		}
	}

	reg := &registration.Registration{
		Contact:           req.Contact,
		CommunicationType: req.CommunicationType,
		CaseNumber:        req.CaseNumber,
		Name:              req.Name,
		State:             registration.StateUnbound,
	}
	id, err := h.regs.CreateRegistration(r.Context(), reg)
	if err != nil {
		h.logger.Error("creating remote registration failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := h.regs.UpdateRegistrationState(r.Context(), id,
		registration.StateUnbound, registration.StateAskedReminder); err != nil {
		h.logger.Error("advancing remote registration failed", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	notice := h.composer.Remote(req.SignedUpBy, req.CaseNumber, req.Name)
	if err := h.bus.SendNonReply(r.Context(), req.Contact, notice, req.CommunicationType); err != nil {
		// The registration stands; the contact just answers the opt-in
		// question whenever they next text in.
		h.logger.Error("sending sign-up notice failed", "id", id, "error", err)
	}

	h.logger.Info("remote registration created",
		"id", id, "case_number", req.CaseNumber, "communication_type", req.CommunicationType)
	writeJSON(w, http.StatusCreated, createRegistrationResponse{RegistrationID: id})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrBodyNotAllowed) {
		slog.Default().Error("encoding response failed", "error", err)
	}
}
