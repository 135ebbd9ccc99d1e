package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/ykhdr/rainbow-crack/common/consul"
	"github.com/ykhdr/rainbow-crack/common/http/middleware"
	"github.com/ykhdr/rainbow-crack/common/netutil"
	"github.com/ykhdr/rainbow-crack/config"
	"github.com/ykhdr/rainbow-crack/internal/dispatcher"
	"github.com/ykhdr/rainbow-crack/internal/store/requeststore"
	"github.com/ykhdr/rainbow-crack/pkg/api"
)

const shutdownTimeout = 5 * time.Second

type RequestDispatcher interface {
	DispatchRequest(ctx context.Context, hashes []string) (requeststore.Id, error)
}

type Server struct {
	l            zerolog.Logger
	cfg          *config.ServerConfig
	dispatcher   RequestDispatcher
	requestStore requeststore.RequestStore
	table        *api.TableResponse
	consulClient consul.Client
}

type Option func(s *Server)

// WithTable publishes the parameters of the locally loaded table.
func WithTable(t *api.TableResponse) Option {
	return func(s *Server) {
		s.table = t
	}
}

// WithConsul registers the server in Consul for the lifetime of Start.
func WithConsul(c consul.Client) Option {
	return func(s *Server) {
		s.consulClient = c
	}
}

func NewServer(
	cfg *config.ServerConfig,
	dispatcher RequestDispatcher,
	requestStore requeststore.RequestStore,
	l zerolog.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		cfg:          cfg,
		dispatcher:   dispatcher,
		requestStore: requestStore,
		l: l.With().
			Str("domain", "api-server").
			Str("type", "http").
			Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware(s.l), middleware.RecoveryMiddleware(s.l))
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(middleware.ApplicationJsonContentTypeMiddleware())
	apiRouter.HandleFunc("/hash/crack", s.handleHashCrack).Methods(http.MethodPost)
	apiRouter.HandleFunc("/hash/status", s.handleHashStatus).Methods(http.MethodGet)
	apiRouter.HandleFunc("/table", s.handleTable).Methods(http.MethodGet)
	return router
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.cfg.Addr)
	}
	server := &http.Server{
		Handler: s.Router(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	deregister, err := s.register(listener.Addr())
	if err != nil {
		_ = listener.Close()
		return err
	}
	defer deregister()

	errC := make(chan error, 1)
	go func() {
		errC <- server.Serve(listener)
	}()
	s.l.Info().Str("address", listener.Addr().String()).Msg("Api server is running")

	select {
	case err := <-errC:
		s.l.Error().Err(err).Msg("Api server failed")
		return errors.Wrap(err, "api server failed")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown api server")
	}
	s.l.Info().Msg("Api server stopped")
	return ctx.Err()
}

func (s *Server) register(addr net.Addr) (func(), error) {
	if s.consulClient == nil {
		return func() {}, nil
	}
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return nil, errors.Wrap(err, "split listen address")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, errors.Wrap(err, "parse listen port")
	}
	if s.cfg.AdvertiseAddress != "" {
		host = s.cfg.AdvertiseAddress
	}
	if host, err = netutil.AdvertiseHost(host); err != nil {
		return nil, errors.Wrap(err, "resolve advertise address")
	}
	serviceName := "rainbow-crack"
	if s.cfg.ConsulConfig != nil && s.cfg.ConsulConfig.ServiceName != "" {
		serviceName = s.cfg.ConsulConfig.ServiceName
	}
	id, err := s.consulClient.RegisterService(serviceName, host, port)
	if err != nil {
		s.l.Warn().Err(err).Msg("Error register service in consul")
		return nil, err
	}
	s.l.Info().Str("service-id", id).Msg("Registered in consul")
	return func() {
		if err := s.consulClient.DeregisterService(id); err != nil {
			s.l.Warn().Err(err).Msg("Error deregister service in consul")
		}
	}, nil
}

func (s *Server) handleHashCrack(w http.ResponseWriter, r *http.Request) {
	var req api.CrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.l.Warn().Err(err).Msg("Invalid request")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Hashes) == 0 {
		http.Error(w, "No hashes given", http.StatusBadRequest)
		return
	}
	if len(req.Hashes) > s.cfg.MaxDigests {
		http.Error(w, "Too many hashes", http.StatusRequestEntityTooLarge)
		return
	}
	reqId, err := s.dispatcher.DispatchRequest(r.Context(), req.Hashes)
	if errors.Is(err, dispatcher.ErrQueueFull) {
		s.l.Warn().Msg("Request queue is full")
		http.Error(w, "Request queue is full", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		s.l.Warn().Err(err).Msg("Failed to dispatch request")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, api.CrackResponse{RequestId: string(reqId)})
}

// handleHashStatus reports a request. A finished request is removed once it
// has been reported.
func (s *Server) handleHashStatus(w http.ResponseWriter, r *http.Request) {
	requestId := r.URL.Query().Get("requestId")
	if requestId == "" {
		http.Error(w, "Missing requestId", http.StatusBadRequest)
		return
	}
	id := requeststore.Id(requestId)
	info, err := s.requestStore.Get(r.Context(), id)
	if errors.Is(err, requeststore.ErrNotFound) {
		http.Error(w, "Request not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.l.Warn().Err(err).Msg("Failed to get request")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	resp := api.StatusResponse{
		Status:  string(info.Status),
		Results: info.Results,
		Error:   info.ErrorReason,
	}
	if !s.writeJSON(w, resp) || !info.Finished() {
		return
	}
	if err := s.requestStore.Delete(r.Context(), id); err != nil {
		s.l.Warn().Err(err).Str("request-id", requestId).Msg("Failed to delete finished request")
	}
}

func (s *Server) handleTable(w http.ResponseWriter, _ *http.Request) {
	if s.table == nil {
		http.Error(w, "No table loaded", http.StatusNotFound)
		return
	}
	s.writeJSON(w, s.table)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		s.l.Warn().Err(err).Msg("Failed to write health response")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) bool {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.l.Warn().Err(err).Msg("Failed to encode response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return false
	}
	return true
}
