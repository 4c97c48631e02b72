// Package httpapi exposes the engine's status surface over HTTP: read-only
// snapshots of positions, orders, and statistics, plus intent submission
// and pause/resume controls. Handlers only read engine snapshots or call
// its synchronous control methods; no handler touches engine internals.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/tgparkk/autoswingtrade/internal/domain"
	"github.com/tgparkk/autoswingtrade/internal/engine"
	"github.com/tgparkk/autoswingtrade/internal/stats"
)

// Server hosts the status API.
type Server struct {
	eng  *engine.Engine
	addr string
	log  *slog.Logger
	http *http.Server
}

// NewServer creates a Server for the given engine.
func NewServer(eng *engine.Engine, host string, port int, log *slog.Logger) *Server {
	return &Server{
		eng:  eng,
		addr: net.JoinHostPort(host, strconv.Itoa(port)),
		log:  log.With("component", "httpapi"),
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/positions", s.handlePositions)
	mux.HandleFunc("GET /api/orders", s.handleOrders)
	mux.HandleFunc("GET /api/trades", s.handleTrades)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("POST /api/intents", s.handleIntent)
	mux.HandleFunc("POST /api/pause", s.handlePause)
	mux.HandleFunc("POST /api/resume", s.handleResume)
	return corsMiddleware(mux)
}

// ListenAndServe starts the HTTP listener and blocks until the context is
// cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("status API listening", "addr", s.addr)
		errc <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.eng.Status())
}

func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request) {
	positions := s.eng.Positions()
	out := make([]positionView, 0, len(positions))
	for i := range positions {
		out = append(out, newPositionView(&positions[i]))
	}
	writeJSON(w, positionsResponse{Count: len(out), Positions: out})
}

func (s *Server) handleOrders(w http.ResponseWriter, _ *http.Request) {
	orders := s.eng.Orders()
	out := make([]orderView, 0, len(orders))
	for i := range orders {
		out = append(out, newOrderView(&orders[i]))
	}
	writeJSON(w, ordersResponse{Count: len(out), Orders: out})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	days := queryInt(r, "days", 7)

	recs, err := s.eng.TradeRecords(r.Context(), symbol, days)
	if err != nil {
		s.log.Error("listing trade records", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]tradeView, 0, len(recs))
	for i := range recs {
		out = append(out, newTradeView(&recs[i]))
	}
	writeJSON(w, tradesResponse{Count: len(out), Trades: out})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)
	recs, err := s.eng.TradeRecords(r.Context(), "", days)
	if err != nil {
		s.log.Error("listing trade records for stats", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats.Compute(recs))
}

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	var intent domain.TradeIntent
	if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
		http.Error(w, fmt.Sprintf("decoding intent: %v", err), http.StatusBadRequest)
		return
	}
	if intent.Symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}
	if intent.Side != domain.SideBuy && intent.Side != domain.SideSell {
		http.Error(w, fmt.Sprintf("side must be %q or %q", domain.SideBuy, domain.SideSell), http.StatusBadRequest)
		return
	}

	res := s.eng.Submit(r.Context(), intent)
	if !res.Accepted {
		// Rejections are well-formed requests the engine declined.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(res)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(res)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	// Body is optional.
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Reason == "" {
		body.Reason = "operator request"
	}
	s.eng.Pause(body.Reason)
	writeJSON(w, s.eng.Status())
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.eng.Resume()
	writeJSON(w, s.eng.Status())
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writing JSON response", "error", err)
	}
}
