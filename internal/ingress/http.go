// internal/ingress/http.go
package ingress

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	domainerrors "convocore/internal/common/errors"
	"convocore/internal/common/logger"
	"convocore/internal/dispatch"
	"convocore/internal/models"
)

// Closer ends a conversation on behalf of an operator.
type Closer interface {
	CloseConversation(ctx context.Context, tenantID, channelUserID string) error
}

// Server exposes the channel-facing webhook and the operator endpoints.
// Messages are acknowledged as soon as they are queued; the dispatcher and
// flow manager take it from there.
type Server struct {
	dispatcher *dispatch.Dispatcher
	closer     Closer
	logger     logger.Logger
}

func NewServer(dispatcher *dispatch.Dispatcher, closer Closer, log logger.Logger) *Server {
	return &Server{
		dispatcher: dispatcher,
		closer:     closer,
		logger:     log.WithFields(map[string]interface{}{"component": "ingress"}),
	}
}

// Routes registers the server's handlers on a mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/messages", s.handleMessage)
	mux.HandleFunc("/v1/conversations/close", s.handleClose)
}

type messageRequest struct {
	TenantID      string `json:"tenantId"`
	ChannelUserID string `json:"channelUserId"`
	Text          string `json:"text"`
	Timestamp     string `json:"timestamp,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}
	if req.TenantID == "" || req.ChannelUserID == "" {
		writeError(w, http.StatusBadRequest, "tenantId and channelUserId are required", "")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text must not be empty", string(domainerrors.ErrCodeEmptyMessage))
		return
	}

	timestamp := time.Now().UTC()
	if req.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
			timestamp = parsed
		}
	}

	msg := &models.InboundMessage{
		TenantID:      req.TenantID,
		ChannelUserID: req.ChannelUserID,
		Text:          req.Text,
		Timestamp:     timestamp,
	}

	if err := s.dispatcher.Dispatch(msg); err != nil {
		code := domainerrors.CodeOf(err)
		if code == domainerrors.ErrCodeRateLimited {
			writeError(w, http.StatusTooManyRequests, "conversation queue full, retry later", string(code))
			return
		}
		s.logger.Error("message dispatch failed", map[string]interface{}{
			"tenantId": req.TenantID,
			"error":    err.Error(),
		})
		writeError(w, http.StatusServiceUnavailable, "service shutting down", string(code))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
}

type closeRequest struct {
	TenantID      string `json:"tenantId"`
	ChannelUserID string `json:"channelUserId"`
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}
	if req.TenantID == "" || req.ChannelUserID == "" {
		writeError(w, http.StatusBadRequest, "tenantId and channelUserId are required", "")
		return
	}

	if err := s.closer.CloseConversation(r.Context(), req.TenantID, req.ChannelUserID); err != nil {
		code := domainerrors.CodeOf(err)
		if code == domainerrors.ErrCodeUnknownTenant {
			writeError(w, http.StatusNotFound, "unknown tenant", string(code))
			return
		}
		s.logger.Error("conversation close failed", map[string]interface{}{
			"tenantId": req.TenantID,
			"error":    err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "close failed", string(code))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: message, Code: code})
}
