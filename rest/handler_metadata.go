package rest

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/metadata"
	"github.com/avenping/flowengine/model"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandleCreateFlow stores one flow document or an array of them, as JSON
// or as YAML when the content type says so. Only writable flow stores
// accept documents.
func (s *Server) HandleCreateFlow(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	writer, ok := s.metadataService.Storage().(metadata.Writer)
	if !ok {
		respondWithError(w, http.StatusMethodNotAllowed, "flow store is read only")
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "error reading body")
		return
	}
	decode := metadata.DecodeJSON
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		decode = metadata.DecodeYAML
	}
	flows, err := decode(data)
	if err != nil {
		logger.Error("error validating flow", zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	ids := make([]string, 0, len(flows))
	for _, fl := range flows {
		if err := writer.SaveFlow(r.Context(), fl); err != nil {
			logger.Error("error creating flow", zap.String("flow", fl.Id), zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "error creating flow")
			return
		}
		ids = append(ids, fl.Id)
	}
	s.metadataService.Invalidate()
	respondOK(w, map[string]any{"created": ids})
}

func (s *Server) HandleListFlows(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]
	status := model.FLOW_STATUS_ACTIVE
	if st := r.URL.Query().Get("status"); st != "" {
		status = model.FlowStatus(st)
	}
	flows, err := s.metadataService.GetFlowsForOwner(r.Context(), owner, status)
	if err != nil {
		logger.Error("error listing flows", zap.String("ownerId", owner), zap.Error(err))
		respondWithError(w, http.StatusServiceUnavailable, "flow store unavailable")
		return
	}
	if flows == nil {
		flows = []*model.FlowDefinition{}
	}
	respondWithJSON(w, http.StatusOK, flows)
}

func (s *Server) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	flowId := mux.Vars(r)["id"]
	fl, err := s.metadataService.GetFlowById(r.Context(), flowId)
	if err != nil {
		if errors.Is(err, metadata.ErrFlowNotFound) {
			logger.Info("flow does not exist", zap.String("flow", flowId))
			respondWithError(w, http.StatusNotFound, "flow does not exist")
			return
		}
		respondWithError(w, http.StatusServiceUnavailable, "flow store unavailable")
		return
	}
	respondWithJSON(w, http.StatusOK, fl)
}

func (s *Server) HandleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	flowId := mux.Vars(r)["id"]
	writer, ok := s.metadataService.Storage().(metadata.Writer)
	if !ok {
		respondWithError(w, http.StatusMethodNotAllowed, "flow store is read only")
		return
	}
	if err := writer.DeleteFlow(r.Context(), flowId); err != nil {
		if errors.Is(err, metadata.ErrFlowNotFound) {
			respondWithError(w, http.StatusNotFound, "flow does not exist")
			return
		}
		logger.Error("error deleting flow", zap.String("flow", flowId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error deleting flow")
		return
	}
	s.metadataService.Invalidate()
	respondOKWithoutBody(w)
}
