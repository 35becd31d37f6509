package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/opslens/internal/history"
	"github.com/sells-group/opslens/internal/model"
	"github.com/sells-group/opslens/internal/monitoring"
	"github.com/sells-group/opslens/internal/project"
	"github.com/sells-group/opslens/internal/qa"
)

var servePort int

// opsAPI is the engine surface the HTTP handlers use.
type opsAPI interface {
	ListProjects(ctx context.Context, includeArchived bool) ([]model.ProjectConfig, error)
	GetSnapshot(ctx context.Context, projectID string) (*model.EnrichedSnapshot, error)
	Refresh(ctx context.Context, projectID string) (*model.EnrichedSnapshot, error)
	Ask(ctx context.Context, operatorID, projectID, question string) (*model.Answer, error)
	GetHistory(ctx context.Context, operatorID string, limit int) ([]model.ConversationTurn, error)
	ClearHistory(ctx context.Context, operatorID string) error
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		if cfg.Monitoring.CheckIntervalSecs > 0 {
			checker := monitoring.NewChecker(env.Engine, env.Alerter, cfg.Monitoring)
			go checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env.Engine, env.Metrics, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter wires the API routes. metrics may be nil, in which case
// /metrics is not served.
func buildRouter(api opsAPI, metrics *monitoring.Metrics, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Operator-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/projects", handleProjects(api))
		r.Get("/projects/{id}/snapshot", handleSnapshot(api))
		r.Post("/chat/ask", handleAsk(api))
		r.Get("/chat/history", handleHistory(api))
		r.Post("/chat/clear", handleClear(api))
	})
	return r
}

func handleProjects(api opsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		archived, _ := strconv.ParseBool(r.URL.Query().Get("include_archived"))
		projects, err := api.ListProjects(r.Context(), archived)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
	}
}

func handleSnapshot(api opsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		get := api.GetSnapshot
		if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
			get = api.Refresh
		}
		es, err := get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, es)
	}
}

type askRequest struct {
	OperatorID string `json:"operator_id"`
	ProjectID  string `json:"project_id"`
	Question   string `json:"question"`
}

func handleAsk(api opsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if req.OperatorID == "" {
			req.OperatorID = r.Header.Get("X-Operator-ID")
		}
		if req.ProjectID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "project_id is required"})
			return
		}
		ans, err := api.Ask(r.Context(), req.OperatorID, req.ProjectID, req.Question)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ans)
	}
}

func handleHistory(api opsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
				return
			}
			limit = n
		}
		turns, err := api.GetHistory(r.Context(), operatorFrom(r), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		if turns == nil {
			turns = []model.ConversationTurn{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": turns})
	}
}

func handleClear(api opsAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OperatorID string `json:"operator_id"`
		}
		// An empty body is allowed when the header carries the operator.
		_ = json.NewDecoder(r.Body).Decode(&req)
		op := req.OperatorID
		if op == "" {
			op = operatorFrom(r)
		}
		if err := api.ClearHistory(r.Context(), op); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "History cleared"})
	}
}

func operatorFrom(r *http.Request) string {
	if op := r.URL.Query().Get("operator_id"); op != "" {
		return op
	}
	return r.Header.Get("X-Operator-ID")
}

// writeError maps engine errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, project.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, qa.ErrEmptyQuestion), errors.Is(err, history.ErrMissingOperator):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrInvalidConfig):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("api: request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}
