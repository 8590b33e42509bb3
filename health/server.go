// Package health serves the health-status endpoint and the prometheus
// metrics for scheduled runs. The status is owned by the Server and set
// explicitly by the job runner with the outcome of each run.
package health

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

type state int

const (
	stateWaiting state = iota
	stateOK
	stateFailed
)

type response struct {
	Message string `json:"message"`
}

type Server struct {
	addr string

	mu      sync.Mutex
	state   state
	lastErr string
}

func NewServer(ip string, port int) *Server {
	return &Server{addr: net.JoinHostPort(ip, strconv.Itoa(port))}
}

// SetOK records a successful run.
func (s *Server) SetOK() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateOK
	s.lastErr = ""
}

// SetFailed records a failed run.
func (s *Server) SetFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateFailed
	s.lastErr = err.Error()
}

// Handler builds the mux: /health for the status, /metrics for prometheus,
// a JSON 404 for everything else.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(
		prometheus.DefaultGatherer,
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	))
	mux.HandleFunc("/", s.handleNotFound)
	return mux
}

// Start serves in the background; a listen failure is logged, not fatal for
// the job loop.
func (s *Server) Start() {
	go func() {
		if err := http.ListenAndServe(s.addr, s.Handler()); err != nil {
			log.Errorf("health check server failed: %s", err)
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st, lastErr := s.state, s.lastErr
	s.mu.Unlock()

	switch st {
	case stateOK:
		writeJSON(w, http.StatusOK, response{Message: "Everything is working fine"})
	case stateFailed:
		log.Debugf("checked health of service: last run failed")
		writeJSON(w, http.StatusInternalServerError, response{Message: lastErr})
	default:
		log.Debugf("checked health of service: waiting for the first run")
		writeJSON(w, http.StatusNotFound, response{Message: "Waiting for the first run"})
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, response{Message: "Resource not found"})
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
