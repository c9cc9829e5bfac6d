package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/profile-enrich/internal/model"
	"github.com/sells-group/profile-enrich/internal/pipeline"
	"github.com/sells-group/profile-enrich/internal/store"
)

var servePort int

// enrichRequest is the POST /enrich body: the seed plus the caller's
// optional gate override and the profile fields it already holds.
type enrichRequest struct {
	Seed          model.IdentitySeed            `json:"identity_seed"`
	MinConfidence float64                       `json:"min_confidence,omitempty"`
	Existing      map[string]model.ProfileField `json:"existing_profile_fields,omitempty"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server for enrichment requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/enrich", func(w http.ResponseWriter, req *http.Request) {
			var in enrichRequest
			if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if in.Seed.IsEmpty() {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "seed carries no identifier"})
				return
			}

			// The run outlives the request; completion lands in the store.
			go func() {
				run, err := env.Pipeline.Enrich(ctx, pipeline.Request{
					Seed:          in.Seed,
					MinConfidence: in.MinConfidence,
					Existing:      in.Existing,
				})
				if err != nil {
					zap.L().Error("enrichment request failed",
						zap.String("subject", store.SubjectKey(in.Seed)),
						zap.Error(err),
					)
					return
				}
				zap.L().Info("enrichment request complete",
					zap.String("run_id", run.ID),
					zap.String("status", string(run.Status)),
				)
			}()

			writeJSON(w, http.StatusAccepted, map[string]string{
				"status":  "accepted",
				"subject": store.SubjectKey(in.Seed),
			})
		})

		r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
			run, err := env.Store.GetRun(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
				return
			}
			writeJSON(w, http.StatusOK, run)
		})

		r.Get("/profiles/{subject}", func(w http.ResponseWriter, req *http.Request) {
			fields, err := env.Store.GetProfile(req.Context(), chi.URLParam(req, "subject"))
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "load profile"})
				return
			}
			writeJSON(w, http.StatusOK, fields)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
