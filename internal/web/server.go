// Package web exposes the session over HTTP: a minimal HTML dashboard, an SSE
// stream of portfolio snapshots and an SSE stream of journaled fills.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/vadiminshakov/gridwire/internal/domain"
	"github.com/vadiminshakov/gridwire/internal/storage/fills"
)

const (
	fillPollInterval = 2 * time.Second
	bufferedSnaps    = 16
)

type fillReader interface {
	FillsAfter(index uint64) ([]fills.FillRecordEntry, error)
}

// Server exposes HTTP endpoints serving the HTML UI and SSE streams.
type Server struct {
	Addr  string
	Fills fillReader

	mu   sync.Mutex
	subs map[chan domain.PortfolioSnapshot]struct{}
}

// NewServer creates a new web server instance. Wire PublishSnapshot as a
// session snapshot listener.
func NewServer(addr string, fillStore fillReader) *Server {
	return &Server{
		Addr:  addr,
		Fills: fillStore,
		subs:  make(map[chan domain.PortfolioSnapshot]struct{}),
	}
}

// PublishSnapshot fans a snapshot out to connected SSE clients. Slow clients
// drop snapshots instead of blocking the price path.
func (s *Server) PublishSnapshot(snap domain.PortfolioSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/portfolio/stream", s.handleSnapshotStream)
	mux.HandleFunc("/fills/stream", s.handleFillStream)

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleSnapshotStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan domain.PortfolioSnapshot, bufferedSnaps)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}()

	// send a comment heartbeat every 30s so proxies keep connection
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case snap := <-ch:
			payload, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: portfolio\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *Server) handleFillStream(w http.ResponseWriter, r *http.Request) {
	if s.Fills == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "fill journal not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(fillPollInterval)
	defer pollTicker.Stop()

	lastIndex := uint64(0)
	sendFills := func() error {
		records, err := s.Fills.FillsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Fill)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "event: fill\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendFills(); err != nil {
		http.Error(w, "failed to load fills", http.StatusInternalServerError)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendFills(); err != nil {
				return
			}
		}
	}
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>gridwire</title>
<style>
body { font-family: monospace; background: #0b0e14; color: #d7dae0; margin: 2em; }
h1 { font-size: 1.2em; }
table { border-collapse: collapse; margin-top: 1em; }
td, th { border: 1px solid #2a2f3a; padding: 4px 10px; text-align: right; }
th { background: #141923; }
.buy { color: #6fc276; }
.sell { color: #e06c75; }
.filled { opacity: 0.5; }
#stats span { margin-right: 2em; }
</style>
</head>
<body>
<h1>gridwire</h1>
<div id="stats">
<span>price: <b id="price">-</b></span>
<span>realized: <b id="realized">-</b></span>
<span>unrealized: <b id="unrealized">-</b></span>
<span>position: <b id="position">-</b></span>
<span>cash: <b id="cash">-</b></span>
</div>
<table id="levels"><thead><tr><th>level</th><th>side</th><th>price</th><th>amount</th><th>state</th></tr></thead><tbody></tbody></table>
<h1>fills</h1>
<table id="fills"><thead><tr><th>time</th><th>level</th><th>side</th><th>price</th><th>amount</th></tr></thead><tbody></tbody></table>
<script>
const es = new EventSource('/portfolio/stream');
es.addEventListener('portfolio', e => {
  const snap = JSON.parse(e.data);
  document.getElementById('price').textContent = snap.price;
  document.getElementById('realized').textContent = snap.portfolio.realized_pnl;
  document.getElementById('unrealized').textContent = snap.portfolio.unrealized_pnl;
  document.getElementById('position').textContent = snap.portfolio.position;
  document.getElementById('cash').textContent = snap.portfolio.cash;
  const body = document.querySelector('#levels tbody');
  body.innerHTML = '';
  for (const l of snap.levels) {
    const tr = document.createElement('tr');
    tr.className = (l.filled ? 'filled ' : '') + l.side;
    tr.innerHTML = '<td>' + l.id + '</td><td>' + l.side + '</td><td>' + l.price +
      '</td><td>' + l.amount + '</td><td>' + (l.filled ? 'filled' : 'pending') + '</td>';
    body.appendChild(tr);
  }
});
const fs = new EventSource('/fills/stream');
fs.addEventListener('fill', e => {
  const fill = JSON.parse(e.data);
  const tr = document.createElement('tr');
  tr.className = fill.side;
  tr.innerHTML = '<td>' + fill.at + '</td><td>' + fill.level_id + '</td><td>' + fill.side +
    '</td><td>' + fill.price + '</td><td>' + fill.amount + '</td>';
  document.querySelector('#fills tbody').prepend(tr);
});
</script>
</body>
</html>
`
