package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"foundry/internal/config"
	"foundry/internal/knowledge"
	"foundry/internal/logging"
	"foundry/internal/queue"
)

// Answerer embeds questions and synthesizes grounded answers.
type Answerer interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Answer(ctx context.Context, question string, passages []string) (string, error)
}

// Server exposes the query interface over the knowledge store.
type Server struct {
	router    chi.Router
	queue     *queue.Store
	knowledge *knowledge.Store
	answerer  Answerer
	cfg       *config.Config
	logger    *slog.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	queueStore *queue.Store,
	knowledgeStore *knowledge.Store,
	answerer Answerer,
	cfg *config.Config,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		queue:     queueStore,
		knowledge: knowledgeStore,
		answerer:  answerer,
		cfg:       cfg,
		logger:    logger,
	}

	requestTimeout := time.Duration(cfg.API.RequestTimeout) * time.Second
	if requestTimeout <= 0 {
		requestTimeout = 120 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/health", s.health)
	r.Post("/query", s.query)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type queryRequest struct {
	Question string `json:"question"`
	Sources  *int   `json:"sources"`
}

type querySource struct {
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
}

type queryResponse struct {
	Answer  string        `json:"answer"`
	Sources []querySource `json:"sources"`
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "question required")
		return
	}

	limit := s.cfg.API.DefaultSources
	if req.Sources != nil {
		limit = *req.Sources
	}
	if limit <= 0 {
		writeError(w, http.StatusBadRequest, "sources must be positive")
		return
	}

	ctx := r.Context()
	vector, err := s.answerer.Embed(ctx, question)
	if err != nil {
		s.logger.Error("embed question failed", logging.Error(err))
		writeError(w, http.StatusBadGateway, "embedding unavailable")
		return
	}

	matches, err := s.knowledge.SearchNearest(ctx, vector, limit)
	if err != nil {
		s.logger.Error("knowledge search failed", logging.Error(err))
		writeError(w, http.StatusInternalServerError, "knowledge store unavailable")
		return
	}
	if len(matches) == 0 {
		writeJSON(w, http.StatusOK, queryResponse{
			Answer:  "The knowledge store is empty; there is nothing to answer from yet.",
			Sources: []querySource{},
		})
		return
	}

	passages := make([]string, 0, len(matches))
	sources := make([]querySource, 0, len(matches))
	for _, match := range matches {
		passage := match.Record.Title + ": " + match.Record.Summary
		if len(match.Record.Entities) > 0 {
			passage += " (entities: " + strings.Join(match.Record.Entities, ", ") + ")"
		}
		passages = append(passages, passage)
		sources = append(sources, querySource{
			URL:        match.Record.URL,
			Title:      match.Record.Title,
			Similarity: match.Similarity,
		})
	}

	answer, err := s.answerer.Answer(ctx, question, passages)
	if err != nil {
		s.logger.Error("answer synthesis failed", logging.Error(err))
		writeError(w, http.StatusBadGateway, "generation unavailable")
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{Answer: answer, Sources: sources})
}

type healthResponse struct {
	Status    string                 `json:"status"`
	Targets   map[queue.Status]int   `json:"targets"`
	Content   map[queue.Status]int   `json:"content"`
	Knowledge healthKnowledgeSummary `json:"knowledge"`
}

type healthKnowledgeSummary struct {
	Records int `json:"records"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := s.queue.Health(ctx)
	if err != nil {
		s.logger.Error("queue health failed", logging.Error(err))
		writeError(w, http.StatusInternalServerError, "queue unavailable")
		return
	}
	records, err := s.knowledge.Count(ctx)
	if err != nil {
		s.logger.Error("knowledge count failed", logging.Error(err))
		writeError(w, http.StatusInternalServerError, "knowledge store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Targets:   summary.Targets,
		Content:   summary.Content,
		Knowledge: healthKnowledgeSummary{Records: records},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Error("write JSON failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
