// Package api serves a read-only HTTP view of a running graph: status
// snapshots over plain JSON and the live control-event stream over a
// websocket. It is an observer only; graphs are controlled from code.
package api

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/net/netutil"

	"github.com/sigflow/sigflow/pkg/common/logging"
	"github.com/sigflow/sigflow/pkg/runtime"
)

// Provider is the slice of Runtime the server needs.
type Provider interface {
	Status() runtime.Status
	Subscribe() <-chan runtime.Event
	Unsubscribe(<-chan runtime.Event)
}

// Server exposes one graph's status over HTTP.
type Server struct {
	provider Provider
	log      *logging.Logger
	upgrader websocket.Upgrader
	httpSrv  *http.Server
	listener net.Listener
}

// NewServer builds a server for the given provider.
func NewServer(provider Provider) *Server {
	s := &Server{
		provider: provider,
		log:      logging.GetGlobalLogger().WithComponent("api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	return s
}

// Start listens on addr with at most maxConns concurrent connections and
// serves until Close. It returns once the listener is bound.
func (s *Server) Start(addr string, maxConns int) error {
	router := mux.NewRouter()
	router.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	router.HandleFunc("/api/blocks", s.handleBlocks).Methods("GET")
	router.HandleFunc("/api/events", s.handleEvents).Methods("GET")

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if maxConns > 0 {
		ln = netutil.LimitListener(ln, maxConns)
	}
	s.listener = ln
	s.httpSrv = &http.Server{
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket streams stay open
	}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("api server: %v", err)
		}
	}()
	s.log.Info("status api listening", map[string]interface{}{"addr": ln.Addr().String()})
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close shuts the server down.
func (s *Server) Close() error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Close()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.provider.Status())
}

func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.provider.Status().Blocks)
}

// handleEvents upgrades to a websocket and relays control events until the
// client goes away. Slow clients miss events rather than stalling the graph.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events := s.provider.Subscribe()
	defer s.provider.Unsubscribe(events)

	// Reader goroutine just detects the client closing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload := map[string]interface{}{
				"kind":  ev.Kind.String(),
				"block": ev.Block,
				"time":  ev.Time,
			}
			if ev.Error != "" {
				payload["error"] = ev.Error
			}
			if err := conn.WriteJSON(payload); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
