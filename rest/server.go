package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/metadata"
	"github.com/avenping/flowengine/model"
	"github.com/avenping/flowengine/msglog"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type InboundSubmitter interface {
	Submit(ctx context.Context, msg model.InboundMessage) error
}

type SessionService interface {
	GetSession(ctx context.Context, ownerId string, conversationId string) (*model.FlowSession, error)
	EndSession(ctx context.Context, ownerId string, conversationId string) error
}

type Server struct {
	http.Server
	Port            int
	submitter       InboundSubmitter
	sessionService  SessionService
	metadataService *metadata.Service
	messageLog      msglog.Log
}

func NewServer(httpPort int, submitter InboundSubmitter, sessionService SessionService, metadataService *metadata.Service, messageLog msglog.Log) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 2 * time.Second,
		},
		Port:            httpPort,
		submitter:       submitter,
		sessionService:  sessionService,
		metadataService: metadataService,
		messageLog:      messageLog,
	}

	router := mux.NewRouter()
	router.HandleFunc("/inbound", s.HandleInbound).Methods(http.MethodPost)

	router.HandleFunc("/sessions/{owner}/{conversation}", s.HandleGetSession).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{owner}/{conversation}", s.HandleDeleteSession).Methods(http.MethodDelete)
	router.HandleFunc("/sessions/{owner}/{conversation}/messages", s.HandleGetMessages).Methods(http.MethodGet)

	router.HandleFunc("/flows", s.HandleCreateFlow).Methods(http.MethodPost)
	router.HandleFunc("/flows/{owner}", s.HandleListFlows).Methods(http.MethodGet)
	router.HandleFunc("/flow/{id}", s.HandleGetFlow).Methods(http.MethodGet)
	router.HandleFunc("/flow/{id}", s.HandleDeleteFlow).Methods(http.MethodDelete)

	router.HandleFunc("/health", s.HandleHealth).Methods(http.MethodGet)

	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
	}
	return nil
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, map[string]any{"status": "ok"})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug(r.RequestURI, zap.String("method", r.Method))
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message map[string]any) {
	respondWithJSON(w, http.StatusOK, message)
}

func respondOKWithoutBody(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
