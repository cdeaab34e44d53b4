// Package inspector serves contract violations, stored samples and a live
// event stream over HTTP and WebSocket.
package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cgast/contr/pkg/events"
	"github.com/cgast/contr/pkg/sampler"
)

const (
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

// Server is the inspector HTTP + WebSocket server.
type Server struct {
	bus       events.EventBus
	store     sampler.Store
	mux       *http.ServeMux
	upgrader  websocket.Upgrader
	log       *slog.Logger
	startTime time.Time

	wsClients map[*wsClient]bool
	wsMu      sync.Mutex

	sub       <-chan events.Event
	stop      chan struct{}
	closeOnce sync.Once
	httpSrv   *http.Server
}

// wsClient is a connected WebSocket client. Only the connection's handler
// goroutine writes to it.
type wsClient struct {
	send chan []byte
}

// New creates an inspector over bus. store may be nil when sampling is
// disabled. The server starts relaying bus events immediately; call Close to
// stop.
func New(bus events.EventBus, store sampler.Store) *Server {
	s := &Server{
		bus:   bus,
		store: store,
		mux:   http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log:       slog.Default().With("component", "inspector"),
		startTime: time.Now(),
		wsClients: make(map[*wsClient]bool),
		stop:      make(chan struct{}),
	}

	// WebSocket for live events.
	s.mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API endpoints.
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/violations", s.handleViolations)
	s.mux.HandleFunc("/api/samples", s.handleSamples)
	s.mux.HandleFunc("/api/samples/read", s.handleSampleRead)

	s.sub = bus.Subscribe()
	go s.broadcastEvents(s.sub)

	return s
}

// Handler returns the HTTP handler serving every endpoint.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves the inspector on the given port until Close is called.
func (s *Server) Start(port int) error {
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// StartAsync starts the server in a goroutine and returns immediately.
func (s *Server) StartAsync(port int) {
	go func() {
		if err := s.Start(port); err != nil {
			s.log.Error("inspector stopped", "port", port, "error", err)
		}
	}()
}

// Close stops relaying events, disconnects WebSocket clients and shuts the
// HTTP server down if Start was used.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		s.bus.Unsubscribe(s.sub)
		if s.httpSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = s.httpSrv.Shutdown(ctx)
		}
	})
	return err
}

func (s *Server) broadcastEvents(ch <-chan events.Event) {
	for ev := range ch {
		data, err := json.Marshal(ev)
		if err != nil {
			s.log.Warn("encode event failed", "type", ev.Type, "error", err)
			continue
		}

		s.wsMu.Lock()
		for client := range s.wsClients {
			select {
			case client.send <- data:
			default:
				// Client is slow, drop the event.
			}
		}
		s.wsMu.Unlock()
	}
}

// handleWebSocket upgrades the connection, replays the event history and
// then streams new events until either side goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	client := &wsClient{send: make(chan []byte, 64)}
	s.wsMu.Lock()
	s.wsClients[client] = true
	s.wsMu.Unlock()
	defer func() {
		s.wsMu.Lock()
		delete(s.wsClients, client)
		s.wsMu.Unlock()
	}()

	for _, ev := range s.bus.History(time.Time{}) {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	// Reading is required to notice disconnects.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.Debug("websocket read failed", "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		case <-s.stop:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	history := s.bus.History(time.Time{})
	violations := 0
	samples := 0
	contracts := make(map[string]int)
	for _, ev := range history {
		switch ev.Type {
		case events.EventContractFailed:
			violations++
			contracts[ev.Contract]++
		case events.EventSampleWritten:
			samples++
		}
	}

	writeJSON(w, map[string]any{
		"uptime":          time.Since(s.startTime).String(),
		"events":          len(history),
		"violations":      violations,
		"samples_written": samples,
		"contracts":       contracts,
		"sampling":        s.store != nil,
	})
}

// handleViolations lists contract.failed events, newest first. The optional
// contract query parameter filters by contract name.
func (s *Server) handleViolations(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("contract")
	violations := []events.Event{}
	for _, ev := range s.bus.History(time.Time{}) {
		if ev.Type != events.EventContractFailed {
			continue
		}
		if name != "" && ev.Contract != name {
			continue
		}
		violations = append(violations, ev)
	}
	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].Timestamp.After(violations[j].Timestamp)
	})
	writeJSON(w, violations)
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, []any{})
		return
	}

	infos, err := s.store.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if infos == nil {
		infos = []sampler.Info{}
	}
	writeJSON(w, infos)
}

func (s *Server) handleSampleRead(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "sampling is disabled", http.StatusNotFound)
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		http.Error(w, "path query parameter is required", http.StatusBadRequest)
		return
	}

	// Only paths the store itself lists are served.
	infos, err := s.store.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	known := false
	for _, info := range infos {
		if info.Path == path {
			known = true
			break
		}
	}
	if !known {
		http.Error(w, "sample not found", http.StatusNotFound)
		return
	}

	st, err := s.store.Read(r.Context(), sampler.AtPath(path))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, st)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(data)
}
