package internal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	maxBodyBytes    = 8 << 20
)

type ingestRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type chatRequest struct {
	Message  string `json:"message"`
	Question string `json:"question"`
}

type answerResponse struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

type blockedResponse struct {
	Blocked bool   `json:"blocked"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
	Stage Stage  `json:"stage,omitempty"`
}

// Server exposes the pipeline over HTTP.
type Server struct {
	ingest *IngestDocumentUseCase
	answer *AnswerQueryUseCase
	status *IndexStatusUseCase
	logger *slog.Logger
}

func NewServer(pipeline *Pipeline, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		ingest: NewIngestDocumentUseCase(pipeline),
		answer: NewAnswerQueryUseCase(pipeline),
		status: NewIndexStatusUseCase(pipeline),
		logger: logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/documents", s.handleIngest)
	mux.HandleFunc("POST /api/chatbot", s.handleChat)
	mux.HandleFunc("GET /api/index/status", s.handleStatus)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return s.withRequestLog(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Stage: StageReceived})
		return
	}

	out, err := s.ingest.Execute(r.Context(), IngestDocumentInput(req))
	if err != nil {
		writeJSON(w, ingestStatus(err), out)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func ingestStatus(err error) int {
	switch {
	case IsInputError(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, ErrEmbedding):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Stage: StageReceived})
		return
	}

	question := req.Message
	if strings.TrimSpace(question) == "" {
		question = req.Question
	}

	out, err := s.answer.Execute(r.Context(), AnswerQueryInput{Question: question})
	switch {
	case err != nil:
		writeJSON(w, answerStatus(err), errorResponse{Error: out.Error, Stage: out.Stage})
	case out.Blocked:
		writeJSON(w, http.StatusForbidden, blockedResponse{Blocked: true, Message: out.Message})
	default:
		writeJSON(w, http.StatusOK, answerResponse{Query: out.Query, Answer: out.Answer, Sources: out.Sources})
	}
}

func answerStatus(err error) int {
	switch {
	case IsInputError(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrGenerationTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrEmbedding), errors.Is(err, ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	out, err := s.status.Execute(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			"id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"took", time.Since(start),
		)
	})
}
