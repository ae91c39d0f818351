// Package gateway is the local HTTP and WebSocket surface the scouting UI
// talks to on the same device.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/astraea/go/internal/models"
	"github.com/mcdev12/astraea/go/internal/notify"
	"github.com/mcdev12/astraea/go/internal/offline"
)

// SyncService is the part of the offline sync manager the gateway exposes.
type SyncService interface {
	OfflineStatus(ctx context.Context) (offline.Status, error)
	SubmitScout(ctx context.Context, report models.ScoutReport) (offline.Outcome, error)
	SubmitPitScout(ctx context.Context, report models.PitScoutReport) (offline.Outcome, error)
	SyncNow(ctx context.Context) (offline.SyncResult, error)
}

// Config configures the local gateway server.
type Config struct {
	Port             string
	AllowedOrigins   []string
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{
		Port:             "8081",
		AllowedOrigins:   []string{"*"},
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// Service serves the local REST and WebSocket API.
type Service struct {
	config      Config
	sync        SyncService
	hub         *notify.Hub
	connections *ConnectionManager
	nats        ConnectionStatus
}

// NewService creates a gateway over the sync manager and event hub.
func NewService(config Config, sync SyncService, hub *notify.Hub) *Service {
	return &Service{
		config:      config,
		sync:        sync,
		hub:         hub,
		connections: NewConnectionManager(config.ConnectionConfig, sync),
	}
}

// Start relays hub events to WebSocket clients until ctx is done.
func (s *Service) Start(ctx context.Context) {
	events, unsubscribe := s.hub.Subscribe(s.config.ConnectionConfig.SendBuffer)
	defer unsubscribe()

	s.connections.Run(ctx, events)
}

// RegisterRoutes registers the gateway handlers on mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/offline-status", s.handleOfflineStatus)
	mux.HandleFunc("POST /api/submit", s.handleSubmitScout)
	mux.HandleFunc("POST /api/pit-scout/submit", s.handleSubmitPitScout)
	mux.HandleFunc("POST /api/sync", s.handleSync)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the routes wrapped with CORS, speaking HTTP/1.1 and
// cleartext HTTP/2.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

// NewServer creates the HTTP server for the configured port.
func (s *Service) NewServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", s.config.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Connections returns the number of open WebSocket clients.
func (s *Service) Connections() int {
	return s.connections.Count()
}

func (s *Service) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := s.connections.UpgradeConnection(w, r); err != nil {
		// The upgrader has already written the HTTP error.
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
	}
}
