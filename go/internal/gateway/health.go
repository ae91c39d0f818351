package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HealthStatus is the /health report. An unreachable scouting server does
// not make the agent unhealthy; queueing offline is its normal mode.
type HealthStatus struct {
	Healthy       bool       `json:"healthy"`
	StorageOK     bool       `json:"storage_ok"`
	ServerOnline  bool       `json:"server_online"`
	NATSConnected *bool      `json:"nats_connected,omitempty"`
	PendingSync   int        `json:"pending_sync"`
	LastSync      *time.Time `json:"last_sync,omitempty"`
	Connections   int        `json:"connections"`
	Errors        []string   `json:"errors,omitempty"`
}

// ConnectionStatus reports a broker link, such as the NATS publisher.
type ConnectionStatus interface {
	Connected() bool
}

// SetNATS adds the NATS link to the health report.
func (s *Service) SetNATS(nats ConnectionStatus) {
	s.nats = nats
}

func (s *Service) checkHealth(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:     true,
		Connections: s.connections.Count(),
	}

	offlineStatus, err := s.sync.OfflineStatus(ctx)
	if err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("storage read failed: %v", err))
	} else {
		status.StorageOK = true
		status.ServerOnline = offlineStatus.Online
		status.PendingSync = offlineStatus.Pending
		status.LastSync = offlineStatus.LastSync
	}

	if s.nats != nil {
		connected := s.nats.Connected()
		status.NATSConnected = &connected
		if !connected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	return status
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.checkHealth(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
