package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nhle/mailclient/internal/model"
	"github.com/nhle/mailclient/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// wireMessage is a message as the API serializes it. Ids are numbers.
type wireMessage struct {
	ID         int64    `json:"id"`
	Sender     string   `json:"sender"`
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Timestamp  string   `json:"timestamp"`
	Read       bool     `json:"read"`
	Archived   bool     `json:"archived"`
}

func toWire(m model.Message) wireMessage {
	id, _ := strconv.ParseInt(string(m.ID), 10, 64)
	return wireMessage{
		ID:         id,
		Sender:     m.Sender,
		Recipients: m.Recipients,
		Subject:    m.Subject,
		Body:       m.Body,
		Timestamp:  m.Timestamp,
		Read:       m.Read,
		Archived:   m.Archived,
	}
}

// updateRequest is the body of PUT /emails/{id}.
type updateRequest struct {
	Read     *bool `json:"read"`
	Archived *bool `json:"archived"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.CreateResult{Error: message})
}

// handleGet serves both GET /emails/{mailbox} and GET /emails/{id}; the two
// share a path segment.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	segment := chi.URLParam(r, "mailbox")

	if id, err := strconv.ParseInt(segment, 10, 64); err == nil {
		s.getMessage(w, r, id)
		return
	}

	mb := model.Mailbox(segment)
	if !mb.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid mailbox.")
		return
	}

	msgs, err := s.store.ListMailbox(r.Context(), s.cfg.User, mb)
	if err != nil {
		s.log.Errorf("listing %s: %v", mb, err)
		writeError(w, http.StatusInternalServerError, "Failed to load mailbox.")
		return
	}

	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toWire(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getMessage(w http.ResponseWriter, r *http.Request, id int64) {
	msg, err := s.store.GetMessage(r.Context(), s.cfg.User, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Email not found.")
		return
	}
	if err != nil {
		s.log.Errorf("getting email %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to load email.")
		return
	}

	writeJSON(w, http.StatusOK, toWire(msg))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "Email not found.")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	patch := model.Patch{Read: req.Read, Archived: req.Archived}
	err = s.store.UpdateMessage(r.Context(), s.cfg.User, id, patch)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Email not found.")
		return
	}
	if err != nil {
		s.log.Errorf("updating email %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to update email.")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req model.ComposeFields
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	recipients := req.RecipientList()

	err := s.store.CreateMessage(r.Context(), store.NewMessage{
		Sender:     s.cfg.User,
		Recipients: recipients,
		Subject:    req.Subject,
		Body:       req.Body,
		SentAt:     time.Now(),
	})

	var unknown *store.UnknownRecipientError
	switch {
	case errors.Is(err, store.ErrNoRecipients):
		writeError(w, http.StatusBadRequest, "At least one recipient required.")
	case errors.As(err, &unknown):
		writeError(w, http.StatusBadRequest, unknown.Error())
	case err != nil:
		s.log.Errorf("sending email: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to send email.")
	default:
		s.log.Infof("delivered %q to %d recipient(s)", req.Subject, len(recipients))
		writeJSON(w, http.StatusCreated, model.CreateResult{Message: "Email sent successfully."})
	}
}
