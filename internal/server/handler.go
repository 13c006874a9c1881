package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/medisync/realtime/internal/domain"
	"github.com/medisync/realtime/internal/observability"
	"github.com/medisync/realtime/internal/session"
	"go.uber.org/zap"
)

type Handler struct {
	messenger Messenger
}

type stateResponse struct {
	State         string            `json:"state"`
	Connected     bool              `json:"connected"`
	Identity      *session.Identity `json:"identity"`
	Messages      int               `json:"messages"`
	Notifications int               `json:"notifications"`
}

func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	msgs, notes := h.messenger.Store().Len()
	writeJSON(w, http.StatusOK, stateResponse{
		State:         h.messenger.State().String(),
		Connected:     h.messenger.IsConnected(),
		Identity:      h.messenger.Identity(),
		Messages:      msgs,
		Notifications: notes,
	})
}

// Messages lists stored messages in arrival order. With ?with=<peer> only the
// conversation between the session user and peer is returned.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	st := h.messenger.Store()

	peer := r.URL.Query().Get("with")
	if peer == "" {
		writeJSON(w, http.StatusOK, st.Messages())
		return
	}

	id := h.messenger.Identity()
	if id == nil {
		writeError(w, http.StatusConflict, "no_session", "no user is logged in")
		return
	}
	conv := st.Conversation(id.ID, peer)
	if conv == nil {
		conv = []domain.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.messenger.Store().Notifications())
}

type sendMessageRequest struct {
	ReceiverID  string   `json:"receiverId"`
	Content     string   `json:"content"`
	MessageType string   `json:"messageType"`
	Attachments []string `json:"attachments"`
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if err := domain.ValidateChat(req.ReceiverID, req.Content); err != nil {
		writeError(w, http.StatusBadRequest, validationCode(err), err.Error())
		return
	}

	typ := domain.MessageType(req.MessageType)
	switch typ {
	case "", domain.Direct, domain.Emergency:
	default:
		writeError(w, http.StatusBadRequest, "invalid_message_type", "messageType must be direct or emergency")
		return
	}
	if h.messenger.Identity() == nil {
		writeError(w, http.StatusConflict, "no_session", "no user is logged in")
		return
	}

	msg := h.messenger.SendMessage(req.ReceiverID, req.Content, typ, req.Attachments)
	observability.GetLogger(r.Context()).Info("message queued",
		zap.String("message_id", msg.ID),
		zap.Bool("connected", h.messenger.IsConnected()),
	)
	writeJSON(w, http.StatusAccepted, msg)
}

type sendBroadcastRequest struct {
	Content    string   `json:"content"`
	Recipients []string `json:"recipients"`
}

func (h *Handler) SendBroadcast(w http.ResponseWriter, r *http.Request) {
	var req sendBroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if err := domain.ValidateBroadcast(req.Content, req.Recipients); err != nil {
		writeError(w, http.StatusBadRequest, validationCode(err), err.Error())
		return
	}
	if h.messenger.Identity() == nil {
		writeError(w, http.StatusConflict, "no_session", "no user is logged in")
		return
	}

	n := h.messenger.SendBroadcast(req.Content, req.Recipients)
	writeJSON(w, http.StatusAccepted, n)
}

func validationCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingReceiver):
		return "missing_receiver"
	case errors.Is(err, domain.ErrEmptyContent):
		return "empty_content"
	case errors.Is(err, domain.ErrNoRecipients):
		return "no_recipients"
	default:
		return "invalid_request"
	}
}
