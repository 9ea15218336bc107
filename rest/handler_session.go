package rest

import (
	"net/http"
	"strconv"

	"github.com/avenping/flowengine/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func (s *Server) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, conversation := vars["owner"], vars["conversation"]
	session, err := s.sessionService.GetSession(r.Context(), owner, conversation)
	if err != nil {
		logger.Error("error getting session", zap.String("ownerId", owner), zap.String("conversationId", conversation), zap.Error(err))
		respondWithError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	if session == nil {
		respondWithError(w, http.StatusNotFound, "no active session")
		return
	}
	respondWithJSON(w, http.StatusOK, session)
}

func (s *Server) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, conversation := vars["owner"], vars["conversation"]
	if err := s.sessionService.EndSession(r.Context(), owner, conversation); err != nil {
		logger.Error("error deleting session", zap.String("ownerId", owner), zap.String("conversationId", conversation), zap.Error(err))
		respondWithError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	respondOKWithoutBody(w)
}

func (s *Server) HandleGetMessages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, conversation := vars["owner"], vars["conversation"]
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			respondWithError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	if s.messageLog == nil {
		respondWithError(w, http.StatusNotFound, "message log disabled")
		return
	}
	records, err := s.messageLog.List(r.Context(), owner, conversation, limit)
	if err != nil {
		logger.Error("error listing messages", zap.String("ownerId", owner), zap.String("conversationId", conversation), zap.Error(err))
		respondWithError(w, http.StatusServiceUnavailable, "message log unavailable")
		return
	}
	respondWithJSON(w, http.StatusOK, records)
}
