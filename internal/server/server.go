package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"meshdiag/internal/api"
	"meshdiag/internal/config"
	"meshdiag/internal/detail"
	"meshdiag/internal/metrics"
	"meshdiag/internal/model"
	"meshdiag/internal/relay"
	"meshdiag/internal/store"
)

// Server exposes node detail and relay attribution over HTTP.
type Server struct {
	cfg    config.Config
	holder *store.Holder
	log    *zap.Logger
	hub    *hub
	// ownerOverride comes from config and wins over the snapshot's owner.
	ownerOverride *model.NodeID
	now           func() time.Time
}

// NewServer constructs a server reading from holder and subscribes to its reloads.
func NewServer(cfg config.Config, holder *store.Holder, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	owner, err := cfg.Owner()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:           cfg,
		holder:        holder,
		log:           logger.Named("server"),
		ownerOverride: owner,
		now:           time.Now,
	}
	s.hub = newHub(s.log)
	holder.Subscribe(s.onReload)
	return s, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.withRequestID)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/nodes", s.handleNodes).Methods(http.MethodGet)
	r.HandleFunc("/nodes/{id}", s.handleNode).Methods(http.MethodGet)
	r.HandleFunc("/relay", s.handleRelay).Methods(http.MethodGet)
	r.HandleFunc("/report", s.handleReport).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.cfg.Listen))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.hub.close()
		return err
	case <-ctx.Done():
	}

	s.hub.close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.holder.Current()
	writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:    "ok",
		Nodes:     len(st.Nodes),
		UpdatedAt: st.UpdatedAt,
	})
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	st := s.holder.Current()
	writeJSON(w, http.StatusOK, detail.Summaries(st.Nodes))
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseNodeID(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	st := s.holder.Current()
	d, err := detail.Build(st.Nodes, id, s.detailOptions(st))
	if err != nil {
		if errors.Is(err, detail.ErrNodeNotFound) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := strings.TrimSpace(q.Get("suffix"))
	if raw == "" {
		writeJSONError(w, http.StatusBadRequest, "suffix required")
		return
	}
	suffix, err := strconv.ParseInt(raw, 0, 32)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid suffix: "+raw)
		return
	}

	st := s.holder.Current()
	owner := s.owner(st)
	if v := q.Get("owner"); v != "" {
		id, err := model.ParseNodeID(v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		owner = &id
	}

	res, err := relay.Resolve(st.Nodes, owner, int(suffix))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	metrics.ObserveResolution(res)
	writeJSON(w, http.StatusOK, detail.Attribution(res))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	st := s.holder.Current()
	rows := detail.Report(st.Nodes, s.owner(st), s.now())
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	if err := metrics.WriteCSV(w, rows); err != nil {
		s.log.Warn("write report", zap.Error(err))
	}
}

func (s *Server) owner(st *store.State) *model.NodeID {
	if s.ownerOverride != nil {
		return s.ownerOverride
	}
	return st.Owner
}

func (s *Server) detailOptions(st *store.State) detail.Options {
	return detail.Options{
		Owner:         s.owner(st),
		ShowRelayInfo: s.cfg.ShowRelayInfo,
		Now:           s.now(),
	}
}

// onReload runs after each successful snapshot reload.
func (s *Server) onReload(st *store.State) {
	s.hub.broadcast(func(node *model.NodeID) ([]byte, error) {
		return s.event(st, node)
	})

	if s.cfg.ReportPath == "" {
		return
	}
	rows := detail.Report(st.Nodes, s.owner(st), s.now())
	if err := metrics.AppendCSV(s.cfg.ReportPath, rows); err != nil {
		s.log.Warn("append report", zap.String("path", s.cfg.ReportPath), zap.Error(err))
	}
}

func (s *Server) event(st *store.State, node *model.NodeID) ([]byte, error) {
	ev := api.Event{
		Type:      "snapshot",
		UpdatedAt: st.UpdatedAt,
		Nodes:     len(st.Nodes),
	}
	if node != nil {
		if d, err := detail.Build(st.Nodes, *node, s.detailOptions(st)); err == nil {
			ev.Node = &d
		}
	}
	return json.Marshal(ev)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
