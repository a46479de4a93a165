package modelsvc

// Model service emulator: serves the domain and dataset endpoints the client
// consumes, backed by synthetic tables

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/tturner/gpdplot/internal/gpd"
	"github.com/tturner/gpdplot/internal/logging"
)

// Options configures the emulator.
type Options struct {
	Latency time.Duration // added before every response
	Logger  *logging.Logger
}

// Server is an HTTP emulator of the model service.
type Server struct {
	latency  time.Duration
	logger   *logging.Logger
	mux      *http.ServeMux
	requests atomic.Int64
}

// NewServer builds the emulator handler.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{
		latency: opts.Latency,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /api/{model}/{gpd}/domain", s.handleDomain)
	s.mux.HandleFunc("GET /api/{model}/{gpd}/xbj/{xbj}", s.handleXbj)
	s.mux.HandleFunc("GET /api/{model}/{gpd}/t/{t}", s.handleT)
	s.mux.HandleFunc("GET /api/{model}/{gpd}/{xbj}/{t}/{q2}", s.handleDataset)
	return s
}

// Requests returns how many requests were served.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-r.Context().Done():
			return
		}
	}
	s.logger.Verbose("emulator %s %s", r.Method, r.URL.Path)
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: s, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("Model service emulator listening on %s", ln.Addr())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleDomain(w http.ResponseWriter, r *http.Request) {
	model, _, ok := s.selection(w, r)
	if !ok {
		return
	}
	writeJSON(w, map[string]interface{}{
		"xbj": xbjChoices(model),
		"t":   tChoices(),
	})
}

func (s *Server) handleXbj(w http.ResponseWriter, r *http.Request) {
	model, _, ok := s.selection(w, r)
	if !ok {
		return
	}
	xbj, ok := parseValue(w, r, "xbj")
	if !ok {
		return
	}
	if gpd.IndexOf(xbjChoices(model), xbj) < 0 {
		http.Error(w, "xbj not offered by this model", http.StatusNotFound)
		return
	}
	q2 := q2RangeForXbj(xbj)
	writeJSON(w, map[string]interface{}{
		"t":        tChoicesForXbj(xbj),
		"q2MinMax": q2[:],
	})
}

func (s *Server) handleT(w http.ResponseWriter, r *http.Request) {
	model, _, ok := s.selection(w, r)
	if !ok {
		return
	}
	t, ok := parseValue(w, r, "t")
	if !ok {
		return
	}
	if gpd.IndexOf(tChoices(), t) < 0 {
		http.Error(w, "t not offered by this model", http.StatusNotFound)
		return
	}
	q2 := q2RangeForT(t)
	writeJSON(w, map[string]interface{}{
		"xbj":      xbjChoicesForT(model, t),
		"q2MinMax": q2[:],
	})
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	model, g, ok := s.selection(w, r)
	if !ok {
		return
	}
	xbj, ok := parseValue(w, r, "xbj")
	if !ok {
		return
	}
	t, ok := parseValue(w, r, "t")
	if !ok {
		return
	}
	q2, ok := parseValue(w, r, "q2")
	if !ok {
		return
	}
	if gpd.IndexOf(xbjChoicesForT(model, t), xbj) < 0 || q2 <= 0 {
		http.Error(w, "Data not found", http.StatusNotFound)
		return
	}
	opts := gpd.Options{GPD: g, Model: model, Xbj: xbj, T: t, Q2: q2}
	writeJSON(w, table(opts))
}

func (s *Server) selection(w http.ResponseWriter, r *http.Request) (gpd.Model, gpd.GPD, bool) {
	model, err := gpd.ParseModel(r.PathValue("model"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return "", "", false
	}
	g, err := gpd.ParseGPD(r.PathValue("gpd"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return "", "", false
	}
	return model, g, true
}

func parseValue(w http.ResponseWriter, r *http.Request, name string) (float64, bool) {
	v, err := strconv.ParseFloat(r.PathValue(name), 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid %s %q", name, r.PathValue(name)), http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
