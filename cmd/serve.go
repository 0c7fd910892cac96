package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/qc-reconcile/internal/bundle"
	"github.com/sells-group/qc-reconcile/internal/reconcile"
	"github.com/sells-group/qc-reconcile/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reconciliation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		eng, err := newEngine(cfg.Engine)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		api := &apiServer{
			engine: eng,
			store:  st,
			writer: newResultWriter(st, cfg.Batch.WritesPerSecond, cfg.Batch.RetryAttempts),
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(api, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
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

// Request body caps for POST /v1/reconcile and PATCH /v1/mistakes/{id}.
const (
	maxBundleBytes = 32 << 20
	maxReviewBytes = 4 << 10
)

type apiServer struct {
	engine *reconcile.Engine
	store  store.Store
	writer *resultWriter
}

func newRouter(api *apiServer, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/reconcile", api.handleReconcile)
		r.Get("/documents/{docID}/mistakes", api.handleListMistakes)
		r.Get("/documents/{docID}/effort", api.handleListEffort)
		r.Patch("/mistakes/{id}", api.handleSetErrorType)
		r.Get("/reports/effort", api.handleEffortReport)
	})

	return r
}

// handleReconcile runs the engine on a posted bundle. With ?save=true the
// result is persisted before it is returned.
func (a *apiServer) handleReconcile(w http.ResponseWriter, r *http.Request) {
	in, err := bundle.Decode(http.MaxBytesReader(w, r.Body, maxBundleBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := a.engine.Run(in)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	if save, _ := strconv.ParseBool(r.URL.Query().Get("save")); save {
		if err := a.writer.Save(r.Context(), res); err != nil {
			zap.L().Error("save reconcile result failed", zap.String("doc_id", res.DocID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, res)
}

func (a *apiServer) handleListMistakes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := pageParams(q.Get("limit"), q.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	mistakes, err := a.store.ListMistakes(r.Context(), store.MistakeFilter{
		DocID:   chi.URLParam(r, "docID"),
		StepKey: q.Get("step_key"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(mistakes))
}

func (a *apiServer) handleListEffort(w http.ResponseWriter, r *http.Request) {
	effort, err := a.store.ListEffort(r.Context(), store.EffortFilter{
		DocID: chi.URLParam(r, "docID"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(effort))
}

func (a *apiServer) handleSetErrorType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ErrorType string `json:"error_type"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReviewBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "invalid request body"))
		return
	}
	if req.ErrorType == "" {
		writeError(w, http.StatusBadRequest, eris.New("error_type is required"))
		return
	}

	id := chi.URLParam(r, "id")
	if err := a.store.SetMistakeErrorType(r.Context(), id, req.ErrorType); err != nil {
		status := http.StatusInternalServerError
		if eris.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *apiServer) handleEffortReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.EffortFilter{
		ProjectID: q.Get("project_id"),
		BatchID:   q.Get("batch_id"),
	}
	var err error
	if filter.Since, err = parseReportTime(q.Get("since")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if filter.Until, err = parseReportTime(q.Get("until")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rows, err := buildReport(r.Context(), a.store, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

func pageParams(limitStr, offsetStr string) (limit, offset int, err error) {
	if limitStr != "" {
		if limit, err = strconv.Atoi(limitStr); err != nil || limit < 0 {
			return 0, 0, eris.Errorf("invalid limit %q", limitStr)
		}
	}
	if offsetStr != "" {
		if offset, err = strconv.Atoi(offsetStr); err != nil || offset < 0 {
			return 0, 0, eris.Errorf("invalid offset %q", offsetStr)
		}
	}
	return limit, offset, nil
}

// nonNil keeps empty results encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
