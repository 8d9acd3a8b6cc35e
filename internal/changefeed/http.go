package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"shop-notifier/internal/common/errors"
	"shop-notifier/internal/common/logger"
	"shop-notifier/internal/common/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	SourceWebhook = "webhook"

	maxEventBytes = 1 << 20
)

// ReadyCheck reports whether a dependency is usable.
type ReadyCheck func(ctx context.Context) error

type WebhookOptions struct {
	Address    string
	Collection string
	// AcceptEvents mounts the event route; when false the server only
	// exposes health and metrics.
	AcceptEvents bool
	EventTimeout time.Duration
	ReadyChecks  map[string]ReadyCheck
}

// WebhookSource serves POST /events/{collection}/{shopId} alongside the
// health and metrics endpoints. The response is written after the listener
// returns, so a 202 means the event was handled.
type WebhookSource struct {
	opts   WebhookOptions
	logger logger.Logger
}

func NewWebhookSource(opts WebhookOptions, log logger.Logger) *WebhookSource {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &WebhookSource{
		opts:   opts,
		logger: log.With(map[string]interface{}{"source": SourceWebhook}),
	}
}

func (s *WebhookSource) Name() string { return SourceWebhook }

// Router builds the HTTP handler for listener.
func (s *WebhookSource) Router(listener ChangeListener) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	if s.opts.AcceptEvents {
		r.Post("/events/{collection}/{shopId}", s.handleEvent(listener))
	}
	return r
}

func (s *WebhookSource) Run(ctx context.Context, listener ChangeListener) error {
	srv := &http.Server{
		Addr:              s.opts.Address,
		Handler:           s.Router(listener),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc := &net.ListenConfig{}
	ln, err := lc.Listen(context.WithoutCancel(ctx), "tcp", srv.Addr)
	if err != nil {
		return errors.NewSourceUnavailableError(SourceWebhook, fmt.Errorf("listening on %s: %w", srv.Addr, err))
	}
	s.logger.Info("http server listening", map[string]interface{}{
		"address":      ln.Addr().String(),
		"acceptEvents": s.opts.AcceptEvents,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down http server", nil)
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return errors.NewSourceUnavailableError(SourceWebhook, err)
	}
}

func (s *WebhookSource) handleEvent(listener ChangeListener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.ChangeEventsReceived.WithLabelValues(SourceWebhook).Inc()

		collection := chi.URLParam(r, "collection")
		shopID := chi.URLParam(r, "shopId")

		if collection != s.opts.Collection {
			s.rejectEvent(w, http.StatusNotFound, errors.NewUnknownCollectionError(collection))
			return
		}

		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
		if err != nil {
			s.rejectEvent(w, http.StatusBadRequest, errors.NewEventDecodeFailedError(SourceWebhook, err))
			return
		}

		var vars map[string]interface{}
		if err := json.Unmarshal(raw, &vars); err != nil || vars == nil {
			if err == nil {
				err = fmt.Errorf("body must be a JSON object")
			}
			s.rejectEvent(w, http.StatusBadRequest, errors.NewEventDecodeFailedError(SourceWebhook, err))
			return
		}

		if bodyID, ok := vars["shopId"]; ok && bodyID != shopID {
			s.rejectEvent(w, http.StatusBadRequest,
				errors.NewEventSchemaInvalidError(fmt.Sprintf("shopId %v does not match path %q", bodyID, shopID)))
			return
		}
		vars["shopId"] = shopID

		ev, err := DecodeMap(SourceWebhook, vars)
		if err != nil {
			s.rejectEvent(w, http.StatusBadRequest, err)
			return
		}

		deliver(r.Context(), listener, ev, s.opts.EventTimeout)

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"shopId": ev.ShopID,
		})
	}
}

func (s *WebhookSource) rejectEvent(w http.ResponseWriter, status int, err error) {
	recordRejected(SourceWebhook, err)
	s.logger.Warn("rejected change event", map[string]interface{}{
		"status":    status,
		"errorCode": errors.CodeOf(err),
		"error":     err.Error(),
	})
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  errors.CodeOf(err),
	})
}

func (s *WebhookSource) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.opts.ReadyChecks))
	status := http.StatusOK
	for name, check := range s.opts.ReadyChecks {
		if err := check(r.Context()); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *WebhookSource) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
