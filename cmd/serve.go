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
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aea-online/shopmap/internal/catalog"
	"github.com/aea-online/shopmap/internal/model"
)

var servePort int

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the generated shop document and filtered queries over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyPathFlags(cfg)
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		docPath := cfg.Paths.Resolve(cfg.Paths.Output)
		cat, err := catalog.Load(docPath)
		if err != nil {
			return err
		}
		zap.L().Info("serve: loaded catalog",
			zap.String("document", docPath),
			zap.Int("shops", cat.Metadata().TotalShops),
		)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newRouter(cat, cfg.Paths.Resolve(cfg.Server.StaticDir)),
			ReadHeaderTimeout: 10 * time.Second,
		}
		return serve(ctx, srv)
	},
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("serve: listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "serve: listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("serve: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "serve: shutdown")
		}
		return nil
	})

	return g.Wait()
}

// newRouter exposes the catalog as a read-only JSON API. When staticDir is
// set the map front-end is served from it at /.
func newRouter(cat *catalog.Catalog, staticDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/shops.json", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, cat.Document())
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/shops", func(w http.ResponseWriter, req *http.Request) {
			f, err := parseFilter(req)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, cat.Query(f))
		})
		r.Get("/states", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, cat.States())
		})
		r.Get("/metadata", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, cat.Metadata())
		})
	})

	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}

	return r
}

// parseFilter reads ?state=&hiring=&type=&sort= from the request.
func parseFilter(req *http.Request) (catalog.Filter, error) {
	q := req.URL.Query()
	f := catalog.Filter{State: q.Get("state")}

	if v := q.Get("hiring"); v != "" {
		hiring, err := strconv.ParseBool(v)
		if err != nil {
			return f, eris.Errorf("invalid hiring value %q", v)
		}
		f.HiringOnly = hiring
	}

	if v := q.Get("type"); v != "" {
		t := model.ShopType(v)
		if !t.Valid() {
			return f, eris.Errorf("invalid type %q", v)
		}
		f.Type = t
	}

	f.Sorted = q.Get("sort") == "list"
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("serve: encode response", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
