package rest

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/model"
	"go.uber.org/zap"
)

// HandleInbound accepts a ready inbound tuple and queues it. Processing
// happens asynchronously.
func (s *Server) HandleInbound(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var msg model.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid inbound message")
		return
	}
	if strings.TrimSpace(msg.OwnerId) == "" || strings.TrimSpace(msg.ConversationId) == "" {
		respondWithError(w, http.StatusBadRequest, "ownerId and conversationId are required")
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if err := s.submitter.Submit(r.Context(), msg); err != nil {
		logger.Error("error queueing inbound message", zap.String("ownerId", msg.OwnerId), zap.String("conversationId", msg.ConversationId), zap.Error(err))
		respondWithError(w, http.StatusServiceUnavailable, "inbound queue unavailable")
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}
