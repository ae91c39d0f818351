package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/astraea/go/clients/scouting_api_client"
	"github.com/mcdev12/astraea/go/internal/connectivity"
	"github.com/mcdev12/astraea/go/internal/gateway"
	"github.com/mcdev12/astraea/go/internal/models"
	"github.com/mcdev12/astraea/go/internal/notify"
	"github.com/mcdev12/astraea/go/internal/offline"
	"github.com/mcdev12/astraea/go/internal/refresh"
	"github.com/mcdev12/astraea/go/internal/storage"
)

// Services holds every long-lived component of the agent.
type Services struct {
	Store     storage.Store
	Client    *scouting_api_client.ScoutingApiClient
	Hub       *notify.Hub
	JetStream *notify.JetStreamPublisher
	Sync      *offline.SyncManager
	Monitor   *connectivity.Monitor
	Poller    *refresh.Poller
	Dashboard refresh.Callback
	Gateway   *gateway.Service

	refreshInterval time.Duration
}

// setupStore opens the configured key-value store.
func setupStore(ctx context.Context, config *Config) (storage.Store, error) {
	dbConfig := config.storageConfig()
	if err := dbConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage config: %w", err)
	}
	store, err := storage.Open(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	log.Info().Str("driver", string(dbConfig.Driver)).Msg("storage opened")
	return store, nil
}

// setupClient builds the scouting API client and logs in when credentials
// are configured. A failed login is not fatal; the agent may be offline.
func setupClient(ctx context.Context, config *Config) *scouting_api_client.ScoutingApiClient {
	client := scouting_api_client.NewScoutingApiClient(config.API.URL)
	if config.API.Username == "" {
		return client
	}
	if err := client.Login(ctx, config.API.Username, config.API.Password); err != nil {
		log.Warn().Err(err).Str("username", config.API.Username).Msg("login failed, continuing without a session")
	}
	return client
}

func setupServices(ctx context.Context, config *Config) (*Services, error) {
	clock := clockwork.NewRealClock()

	store, err := setupStore(ctx, config)
	if err != nil {
		return nil, err
	}

	refreshInterval := config.Refresh.Interval
	if refreshInterval <= 0 {
		refreshInterval = defaultRefreshInterval
	}

	s := &Services{
		Store:  store,
		Client: setupClient(ctx, config),
		Hub:    notify.NewHub(),

		refreshInterval: refreshInterval,
	}

	var publisher notify.Publisher = s.Hub
	if config.NATS.Enabled {
		jsConfig := notify.DefaultJetStreamConfig()
		jsConfig.URL = config.NATS.URL
		jsConfig.SubjectPrefix = config.NATS.SubjectPrefix
		jsConfig.Station = config.NATS.Station

		js, err := notify.NewJetStreamPublisher(ctx, jsConfig)
		if err != nil {
			// Events still reach local clients through the hub.
			log.Warn().Err(err).Str("url", jsConfig.URL).Msg("NATS unavailable, events stay local")
		} else {
			s.JetStream = js
			publisher = notify.Multi{s.Hub, js}
		}
	}

	syncConfig := offline.DefaultConfig()
	syncConfig.SubmitTimeout = config.Sync.SubmitTimeout
	syncConfig.Coordinator.Interval = config.Sync.Interval
	s.Sync = offline.NewSyncManager(store, s.Client, publisher, clock, syncConfig)

	monitorConfig := connectivity.DefaultConfig()
	monitorConfig.Interval = config.Connectivity.Interval
	s.Monitor = connectivity.NewMonitor(s.Client, clock, monitorConfig)

	s.Poller = refresh.NewPoller(config.Refresh.Dashboard, clock)
	s.Poller.SetGate(s.Sync.Online)

	switch config.Refresh.Dashboard {
	case "admin":
		dashboard := refresh.NewAdminDashboard(s.Client, s.Sync.Tracker(), logRenderer{}, publisher)
		eventKey, err := currentEvent(ctx, store, config.Refresh.EventKey)
		if err != nil {
			s.Close()
			return nil, err
		}
		dashboard.SetEvent(eventKey)
		s.Dashboard = dashboard.Refresh
	case "scouter":
		s.Dashboard = refresh.NewScouterDashboard(s.Client, s.Sync.Tracker(), renderProgress).Refresh
	case "", "none":
	default:
		s.Close()
		return nil, fmt.Errorf("unknown dashboard %q", config.Refresh.Dashboard)
	}

	s.Monitor.OnOnline(func(ctx context.Context) {
		s.Sync.HandleOnline(ctx)
		s.Poller.Trigger()
	})
	s.Monitor.OnOffline(s.Sync.HandleOffline)

	if config.Gateway.Enabled {
		gatewayConfig := gateway.DefaultConfig()
		gatewayConfig.Port = config.Gateway.Port
		gatewayConfig.AllowedOrigins = config.Gateway.AllowedOrigins
		s.Gateway = gateway.NewService(gatewayConfig, s.Sync, s.Hub)
		if s.JetStream != nil {
			s.Gateway.SetNATS(s.JetStream)
		}
	}

	return s, nil
}

// currentEvent resolves the event the admin dashboard follows. A configured
// key wins and is remembered; otherwise the last remembered key is used.
func currentEvent(ctx context.Context, store storage.Store, configured string) (string, error) {
	if configured != "" {
		if err := store.Put(ctx, storage.KeyCurrentEvent, []byte(configured)); err != nil {
			return "", fmt.Errorf("failed to save current event: %w", err)
		}
		return configured, nil
	}
	value, ok, err := store.Get(ctx, storage.KeyCurrentEvent)
	if err != nil {
		return "", fmt.Errorf("failed to load current event: %w", err)
	}
	if !ok {
		return "", nil
	}
	return string(value), nil
}

// Start launches the background workers. The gateway is served separately.
func (s *Services) Start(ctx context.Context) error {
	if err := s.Sync.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sync coordinator: %w", err)
	}
	if err := s.Monitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start connectivity monitor: %w", err)
	}
	if s.Dashboard != nil {
		if err := s.Poller.Start(ctx, s.Dashboard, s.refreshInterval); err != nil {
			return fmt.Errorf("failed to start dashboard poller: %w", err)
		}
	}
	return nil
}

// Stop halts the workers in reverse start order.
func (s *Services) Stop() {
	if s.Dashboard != nil {
		if err := s.Poller.Stop(); err != nil && !errors.Is(err, refresh.ErrNotRunning) {
			log.Error().Err(err).Msg("failed to stop poller")
		}
	}
	if err := s.Monitor.Stop(); err != nil && !errors.Is(err, connectivity.ErrNotRunning) {
		log.Error().Err(err).Msg("failed to stop connectivity monitor")
	}
	if err := s.Sync.Stop(); err != nil && !errors.Is(err, offline.ErrNotRunning) {
		log.Error().Err(err).Msg("failed to stop sync coordinator")
	}
}

// Close releases the NATS connection and the store.
func (s *Services) Close() {
	if s.JetStream != nil {
		if err := s.JetStream.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close NATS publisher")
		}
	}
	if err := s.Store.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close storage")
	}
}

// logRenderer stands in for the admin page when the agent runs headless.
type logRenderer struct{}

func (logRenderer) RenderMatches(view refresh.AdminView) {
	event := log.Info().
		Str("event_key", view.EventKey).
		Int("matches", len(view.Matches)).
		Int("assignments", len(view.Assignments))
	if view.Summary != nil {
		event = event.
			Int("completed", view.Summary.Completed).
			Int("pending", view.Summary.Pending)
	}
	event.Msg("matches updated")
}

func (logRenderer) RenderScouters(scouters map[string]models.Scouter) {
	log.Info().Int("scouters", len(scouters)).Msg("scouters updated")
}

func renderProgress(assignments []models.Assignment) {
	log.Info().Str("progress", refresh.ProgressOf(assignments).String()).Msg("assignments updated")
}
