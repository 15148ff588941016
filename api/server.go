package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"blocksim/logger"
	"blocksim/store"
)

var log = logger.Logger

// Server exposes finished simulation results over HTTP.
type Server struct {
	port       string
	source     ResultSource
	router     *mux.Router
	httpServer *http.Server
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// NewServer creates a new API server instance serving results from source.
func NewServer(port string, source ResultSource) *Server {
	log.WithField("port", port).Info("Creating new simulation results API server")

	s := &Server{
		port:   port,
		source: source,
	}

	router := mux.NewRouter()
	router.HandleFunc("/", s.handleHome).Methods("GET")
	router.HandleFunc("/api/health", s.handleHealth).Methods("GET")
	router.HandleFunc("/api/runs", s.handleListRuns).Methods("GET")
	router.HandleFunc("/api/runs/{id}", s.handleGetRun).Methods("GET")
	router.HandleFunc("/api/runs/{id}/nodes", s.handleNodes).Methods("GET")
	router.HandleFunc("/api/runs/{id}/matrix", s.handleMatrix).Methods("GET")
	router.HandleFunc("/api/runs/{id}/matrix.txt", s.handleMatrixText).Methods("GET")
	router.HandleFunc("/api/runs/{id}/chain", s.handleChain).Methods("GET")
	router.HandleFunc("/api/runs/{id}/blocks/{height}", s.handleBlock).Methods("GET")
	s.router = router

	return s
}

// Start starts the API server and blocks until it stops.
func (s *Server) Start() error {
	log.WithField("port", s.port).Info("Starting simulation results API server")

	s.httpServer = &http.Server{
		Addr:    ":" + s.port,
		Handler: s.corsMiddleware(s.loggingMiddleware(s.router)),
	}

	log.WithFields(logrus.Fields{
		"port":    s.port,
		"address": s.httpServer.Addr,
	}).Info("API server configured and ready to start")

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("HTTP server failed to start or stopped with error")
		return err
	}
	return nil
}

// Stop stops the API server.
func (s *Server) Stop() error {
	log.Info("Stopping simulation results API server")
	if s.httpServer != nil {
		log.WithField("address", s.httpServer.Addr).Info("Closing HTTP server")
		err := s.httpServer.Close()
		if err != nil {
			log.WithError(err).Error("Error occurred while stopping HTTP server")
		} else {
			log.Info("HTTP server stopped successfully")
		}
		return err
	}
	log.Warn("HTTP server was already nil, nothing to stop")
	return nil
}

// Middleware for CORS
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Middleware for logging
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		duration := time.Since(start)

		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"url":      r.URL.Path,
			"duration": duration.String(),
			"remote":   r.RemoteAddr,
		}).Info("API request processed")
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	response := APIResponse{
		Success: false,
		Error:   message,
	}
	s.writeJSON(w, statusCode, response)
}

// writeSuccess writes a success response
func (s *Server) writeSuccess(w http.ResponseWriter, data interface{}, message string) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	}
	s.writeJSON(w, http.StatusOK, response)
}

// writeLookupError maps archive misses to 404 and everything else to 500.
func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	log.WithError(err).Error("Result lookup failed")
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

// resolveRunID expands the "latest" alias to a concrete run ID.
func (s *Server) resolveRunID(r *http.Request) (string, error) {
	id := mux.Vars(r)["id"]
	if id != "latest" {
		return id, nil
	}
	return s.source.LatestRunID()
}

// handleHome serves the API home page
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	homeData := map[string]interface{}{
		"service":     "Blocksim Results API",
		"version":     "1.0.0",
		"description": "REST API for browsing archived block propagation simulation runs",
		"endpoints": map[string]string{
			"GET /api/health":               "Health check",
			"GET /api/runs":                 "List archived runs",
			"GET /api/runs/{id}":            "Get one run summary (id may be 'latest')",
			"GET /api/runs/{id}/nodes":      "Get the per-node statistics of a run",
			"GET /api/runs/{id}/matrix":     "Get the propagation matrix of a run",
			"GET /api/runs/{id}/matrix.txt": "Get the propagation matrix as plain text",
			"GET /api/runs/{id}/chain":      "Get a winning chain segment (query: from, to)",
			"GET /api/runs/{id}/blocks/{n}": "Get one winning chain block by height",
		},
		"timestamp": time.Now(),
	}

	s.writeSuccess(w, homeData, "Blocksim Results API is running")
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	runs, err := s.source.Runs()
	if err != nil {
		log.WithError(err).Error("Health check failed to reach the result source")
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("result source unavailable: %v", err))
		return
	}

	healthData := map[string]interface{}{
		"status":        "healthy",
		"timestamp":     time.Now(),
		"archived_runs": len(runs),
	}

	s.writeSuccess(w, healthData, "API server is healthy")
}

// handleListRuns handles requests to list archived runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	log.Debug("API: Handling list runs request")

	runs, err := s.source.Runs()
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	log.WithField("runCount", len(runs)).Info("Retrieved archived simulation runs")

	responseData := map[string]interface{}{
		"runs":      runs,
		"run_count": len(runs),
		"timestamp": time.Now(),
	}

	s.writeSuccess(w, responseData, fmt.Sprintf("Found %d archived runs", len(runs)))
}

// handleGetRun handles requests for one run summary
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := s.resolveRunID(r)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	log.WithField("runId", id).Debug("API: Handling get run request")

	run, err := s.source.Run(id)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	log.WithFields(logrus.Fields{
		"runId":      run.ID,
		"nodes":      run.Nodes,
		"bestHeight": run.BestHeight,
	}).Info("Retrieved run summary")

	responseData := map[string]interface{}{
		"run":       run,
		"timestamp": time.Now(),
	}

	s.writeSuccess(w, responseData, fmt.Sprintf("Retrieved run %s", run.ID))
}

// handleNodes handles requests for the per-node statistics of a run
func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	id, err := s.resolveRunID(r)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	run, err := s.source.Run(id)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	responseData := map[string]interface{}{
		"run_id":     run.ID,
		"node_count": len(run.NodeStats),
		"nodes":      run.NodeStats,
		"timestamp":  time.Now(),
	}

	s.writeSuccess(w, responseData, fmt.Sprintf("Retrieved %d node records of run %s", len(run.NodeStats), run.ID))
}

// handleMatrix handles requests for the propagation matrix of a run
func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	id, err := s.resolveRunID(r)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	matrix, err := s.source.Matrix(id)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	responseData := map[string]interface{}{
		"matrix":    matrix,
		"timestamp": time.Now(),
	}

	s.writeSuccess(w, responseData, fmt.Sprintf("Retrieved propagation matrix of run %s", id))
}

// handleMatrixText serves the propagation matrix in the plain text layout
// written at the end of a run: one row per minter in registration order,
// average delays separated by single spaces, empty rows for idle minters.
func (s *Server) handleMatrixText(w http.ResponseWriter, r *http.Request) {
	id, err := s.resolveRunID(r)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	matrix, err := s.source.Matrix(id)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	var sb strings.Builder
	for _, row := range matrix.Rows {
		for _, avg := range row.Averages {
			fmt.Fprintf(&sb, "%d ", avg)
		}
		fmt.Fprintln(&sb)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(sb.String())); err != nil {
		log.WithError(err).Error("Failed to write matrix text response")
	}
}

// handleChain handles requests for a segment of the winning chain
func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	id, err := s.resolveRunID(r)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	run, err := s.source.Run(id)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	from := uint64(0)
	to := run.BestHeight
	if v := r.URL.Query().Get("from"); v != "" {
		from, err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid 'from' height")
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid 'to' height")
			return
		}
	}
	if to < from {
		s.writeError(w, http.StatusBadRequest, "'to' must not be below 'from'")
		return
	}

	blocks, err := s.source.ChainRange(id, from, to)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	log.WithFields(logrus.Fields{
		"runId":  id,
		"from":   from,
		"to":     to,
		"blocks": len(blocks),
	}).Info("Retrieved winning chain segment")

	responseData := map[string]interface{}{
		"run_id":    id,
		"from":      from,
		"to":        to,
		"count":     len(blocks),
		"blocks":    blocks,
		"timestamp": time.Now(),
	}

	s.writeSuccess(w, responseData, fmt.Sprintf("Retrieved %d blocks of run %s", len(blocks), id))
}

// handleBlock handles requests for one winning chain block by height
func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	id, err := s.resolveRunID(r)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	height, err := strconv.ParseUint(mux.Vars(r)["height"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid block height")
		return
	}

	blk, err := s.source.ChainBlock(id, height)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	responseData := map[string]interface{}{
		"run_id":    id,
		"block":     blk,
		"timestamp": time.Now(),
	}

	s.writeSuccess(w, responseData, fmt.Sprintf("Retrieved block %d of run %s", height, id))
}
