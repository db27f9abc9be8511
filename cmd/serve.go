package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
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

	"github.com/propfolio/catalog-cli/internal/observability"
	"github.com/propfolio/catalog-cli/internal/store"
)

var servePort int

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initIngest(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		r := buildRouter(ctx, env)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return eris.Wrapf(err, "listen on port %d", port)
		}

		zap.L().Info("starting server", zap.Int("port", port))
		return serveUntilDone(ctx, &http.Server{Handler: r}, ln)
	},
}

// serveUntilDone runs srv on ln until ctx is cancelled, then drains
// in-flight requests with a fresh shutdown deadline. The signal context is
// already cancelled at that point, so it must not bound the drain.
func serveUntilDone(ctx context.Context, srv *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	<-errCh
	return nil
}

// buildRouter wires the API routes. A nil orchestrator leaves POST /sync
// accepting requests but running nothing; tests use that path.
func buildRouter(ctx context.Context, env *ingestEnv) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", observability.Handler())

	r.Post("/sync", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Location string `json:"location"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.Location == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "location is required"})
			return
		}

		// Run the sync asynchronously; progress lands in the logs and
		// metrics.
		go func() {
			if env.Orchestrator == nil {
				zap.L().Warn("api sync skipped, orchestrator not configured")
				return
			}
			report, runErr := env.Orchestrator.Sync(ctx, body.Location)
			if runErr != nil {
				zap.L().Error("api sync failed",
					zap.String("location", body.Location),
					zap.Error(runErr),
				)
				return
			}
			zap.L().Info("api sync complete",
				zap.String("location", body.Location),
				zap.Int("saved", report.Saved),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":   "accepted",
			"location": body.Location,
		})
	})

	r.Get("/listings", func(w http.ResponseWriter, req *http.Request) {
		filter := listingFilterFromQuery(req)
		listings, listErr := env.Store.ListListings(req.Context(), filter)
		if listErr != nil {
			zap.L().Error("api list listings failed", zap.Error(listErr))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"count":    len(listings),
			"listings": listings,
		})
	})

	r.Get("/listings/{source}/{id}", func(w http.ResponseWriter, req *http.Request) {
		source := chi.URLParam(req, "source")
		id := chi.URLParam(req, "id")
		l, getErr := env.Store.GetListing(req.Context(), source, id)
		if getErr != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "listing not found"})
			return
		}
		writeJSON(w, http.StatusOK, l)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func listingFilterFromQuery(req *http.Request) store.ListingFilter {
	q := req.URL.Query()
	filter := store.ListingFilter{
		Source: q.Get("source"),
		City:   q.Get("city"),
	}
	if v, err := strconv.ParseFloat(q.Get("min_price"), 64); err == nil {
		filter.MinPrice = v
	}
	if v, err := strconv.ParseFloat(q.Get("max_price"), 64); err == nil {
		filter.MaxPrice = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = v
	}
	return filter
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
