// Package web exposes the analyzer over HTTP: topology ingest, selection
// control, view-model reads, and SSE streams for the rendering surface. The
// surface itself (layout, physics, drawing) lives outside this repo and only
// ever reads from here.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meshlens/mesh-analyzer/pkg/analysis"
	"github.com/meshlens/mesh-analyzer/pkg/feed"
	"github.com/meshlens/mesh-analyzer/pkg/logging"
	"github.com/meshlens/mesh-analyzer/pkg/model"
	"github.com/meshlens/mesh-analyzer/pkg/pubsub"
	"github.com/meshlens/mesh-analyzer/pkg/scheduler"
	"github.com/meshlens/mesh-analyzer/pkg/store"
)

// TopologyResponse is the wire shape of a snapshot read
type TopologyResponse struct {
	Version     uint64             `json:"version"`
	Services    []model.Service    `json:"services"`
	Connections []model.Connection `json:"connections"`
}

// SelectionRequest is the wire shape of a selection change; an empty ID
// clears the selection
type SelectionRequest struct {
	ID string `json:"id"`
}

// Server represents the web server
type Server struct {
	router    *mux.Router
	store     *store.Store
	scheduler *scheduler.Scheduler
	publisher pubsub.Publisher
}

// NewServer creates a web server over the given store and scheduler
func NewServer(st *store.Store, sched *scheduler.Scheduler) *Server {
	ssePublisher := pubsub.NewSSEPublisher()

	// New subscribers get the current state, not the event history
	ssePublisher.ConfigureTopic(pubsub.TopicMeshStatus, pubsub.TopicConfig{
		BufferSize: 10,
		ReplayAll:  false,
	})
	ssePublisher.ConfigureTopic(pubsub.TopicViewModel, pubsub.TopicConfig{
		BufferSize: 1,
		ReplayAll:  false,
	})

	s := &Server{
		router:    mux.NewRouter(),
		store:     st,
		scheduler: sched,
		publisher: ssePublisher,
	}
	s.setupRoutes()
	return s
}

// PublishViewModel streams a freshly computed view model to subscribers.
// Wired as the scheduler's recompute callback.
func (s *Server) PublishViewModel(vm *analysis.ViewModel) {
	if err := s.publisher.Publish(pubsub.TopicViewModel, "recomputed", vm); err != nil {
		logging.Warn("failed to publish view model", "error", err)
	}
	s.publishStatus("ready", "analysis complete")
}

func (s *Server) publishStatus(state, message string) {
	snap := s.store.Current()
	status := pubsub.MeshStatus{
		State:       state,
		Message:     message,
		Version:     snap.Version(),
		Services:    snap.NumServices(),
		Connections: snap.NumConnections(),
	}
	if err := s.publisher.Publish(pubsub.TopicMeshStatus, state, status); err != nil {
		logging.Warn("failed to publish mesh status", "error", err)
	}
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestIDMiddleware)

	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/mesh_status", s.subscribeHandler(pubsub.TopicMeshStatus)).Methods("GET")
	s.router.HandleFunc("/api/subscribe/view_model", s.subscribeHandler(pubsub.TopicViewModel)).Methods("GET")

	// Topology ingest and reads
	s.router.HandleFunc("/api/topology", s.handleGetTopology).Methods("GET")
	s.router.HandleFunc("/api/topology", s.handleIngest).Methods("POST")
	s.router.HandleFunc("/api/topology/delta", s.handleDelta).Methods("POST")

	// Derived state and selection
	s.router.HandleFunc("/api/viewmodel", s.handleViewModel).Methods("GET")
	s.router.HandleFunc("/api/selection", s.handleGetSelection).Methods("GET")
	s.router.HandleFunc("/api/selection", s.handlePutSelection).Methods("PUT")
}

// subscribeHandler builds an SSE handler for one topic
func (s *Server) subscribeHandler(topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		// Initial comment establishes the connection (Safari compatibility)
		fmt.Fprintf(w, ": connected\n\n")
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		sub, err := s.publisher.Subscribe(r.Context(), topic)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer sub.Close()

		for event := range sub.Events() {
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.Debug("SSE write failed, closing stream", "topic", topic, "error", err)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) handleGetTopology(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	writeJSON(w, TopologyResponse{
		Version:     snap.Version(),
		Services:    snap.Services(),
		Connections: snap.Connections(),
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var doc feed.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, fmt.Sprintf("invalid topology document: %v", err), http.StatusBadRequest)
		return
	}
	if err := s.store.Ingest(doc.Services, doc.Connections); err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.publishStatus("ingested", "topology replaced")
	writeJSON(w, map[string]uint64{"version": s.store.Version()})
}

func (s *Server) handleDelta(w http.ResponseWriter, r *http.Request) {
	var delta model.Delta
	if err := json.NewDecoder(r.Body).Decode(&delta); err != nil {
		http.Error(w, fmt.Sprintf("invalid delta: %v", err), http.StatusBadRequest)
		return
	}
	if err := s.store.ApplyDelta(delta); err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, map[string]uint64{"version": s.store.Version()})
}

func (s *Server) handleViewModel(w http.ResponseWriter, r *http.Request) {
	vm := s.scheduler.ViewModel()
	if vm == nil {
		http.Error(w, "no analysis has completed yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, vm)
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, SelectionRequest{ID: s.scheduler.Selected()})
}

func (s *Server) handlePutSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid selection: %v", err), http.StatusBadRequest)
		return
	}
	s.scheduler.SetSelected(req.ID)
	writeJSON(w, req)
}

// Start begins serving on the given port, blocking until the listener fails
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logging.Info("web server listening", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response", "error", err)
	}
}

// writeStoreError maps store rejections to 422 and everything else to 500.
// Rejected input is the caller's problem, not ours.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrUnknownService),
		errors.Is(err, store.ErrUnknownConnection),
		errors.Is(err, store.ErrDanglingConnection),
		errors.Is(err, store.ErrServiceInUse),
		errors.Is(err, store.ErrInvalidService):
		status = http.StatusUnprocessableEntity
	}
	logging.WarnContext(r.Context(), "update rejected", "error", err, "status", status)
	http.Error(w, err.Error(), status)
}
