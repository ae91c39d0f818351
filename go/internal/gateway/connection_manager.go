package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/astraea/go/internal/notify"
)

// Client requests accepted over the socket.
const (
	MessageGetOfflineStatus = "GET_OFFLINE_STATUS"
	MessageSyncNow          = "SYNC_NOW"
	MessageOfflineStatus    = "OFFLINE_STATUS"
	MessageSyncResult       = "SYNC_RESULT"
	MessageError            = "ERROR"
)

// ConnectionManager pushes agent events to every open WebSocket.
type ConnectionManager struct {
	connections map[*Connection]struct{}
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	service  SyncService
}

// Connection is one WebSocket client.
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
}

// ConnectionConfig holds WebSocket timeouts and buffer sizes.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	SyncTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns the default WebSocket settings.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		SyncTimeout:     5 * time.Minute, // SYNC_NOW delivers the whole queue
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      64,
		// The UI is served from the same device.
		CheckOrigin: func(r *http.Request) bool { return true },
	}
}

// clientMessage is what the UI sends over the socket.
type clientMessage struct {
	Type string `json:"type"`
}

// serverMessage answers a clientMessage.
type serverMessage struct {
	Type        string     `json:"type"`
	PendingSync int        `json:"pendingSync"`
	Online      bool       `json:"online"`
	LastSync    *time.Time `json:"lastSync,omitempty"`
	Delivered   int        `json:"delivered,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// NewConnectionManager creates a WebSocket connection manager backed by service.
func NewConnectionManager(config ConnectionConfig, service SyncService) *ConnectionManager {
	if config.SyncTimeout <= 0 {
		config.SyncTimeout = DefaultConnectionConfig().SyncTimeout
	}
	return &ConnectionManager{
		connections: make(map[*Connection]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:  config,
		service: service,
	}
}

// Run forwards events to connected clients until ctx is done or events is
// closed, then closes every connection.
func (cm *ConnectionManager) Run(ctx context.Context, events <-chan notify.Event) {
	log.Info().Msg("connection manager started")
	defer cm.closeAll()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			cm.Broadcast(event)
		}
	}
}

// UpgradeConnection upgrades the request and starts the client's pumps.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBuffer),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}
	cm.register(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")
	return nil
}

func (cm *ConnectionManager) register(conn *Connection) {
	cm.mu.Lock()
	cm.connections[conn] = struct{}{}
	total := len(cm.connections)
	cm.mu.Unlock()

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", total).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregister(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, ok := cm.connections[conn]; !ok {
		return
	}
	delete(cm.connections, conn)
	close(conn.Send)

	log.Info().Str("connection_id", conn.ID).Msg("connection unregistered")
}

// Broadcast sends event to every client. Clients whose send buffer is full
// are disconnected.
func (cm *ConnectionManager) Broadcast(event notify.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	var slow []*Connection
	cm.mu.RLock()
	for conn := range cm.connections {
		select {
		case conn.Send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	total := len(cm.connections)
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().Str("connection_id", conn.ID).Msg("connection send buffer full, closing connection")
		cm.unregister(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event_type", string(event.Type)).
		Int("connections", total).
		Msg("event broadcasted")
}

// Count returns the number of open connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.Lock()
	conns := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.Unlock()

	for _, conn := range conns {
		cm.unregister(conn)
	}
}

// reply queues data for this connection unless it is already gone.
func (c *Connection) reply(data []byte) {
	c.Manager.mu.RLock()
	defer c.Manager.mu.RUnlock()

	if _, ok := c.Manager.connections[c]; !ok {
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Warn().Str("connection_id", c.ID).Msg("send buffer full, dropping reply")
	}
}

func (c *Connection) writePump() {
	cfg := c.Manager.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to WebSocket")
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	cfg := c.Manager.config
	defer func() {
		c.Manager.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(cfg.MaxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
			}
			return
		}
		c.handleClientMessage(message)
		_ = c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}

func (c *Connection) handleClientMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Debug().Str("connection_id", c.ID).Msg("ignoring malformed client message")
		return
	}

	timeout := c.Manager.config.WriteTimeout
	if msg.Type == MessageSyncNow {
		timeout = c.Manager.config.SyncTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var resp serverMessage
	switch msg.Type {
	case MessageGetOfflineStatus:
		status, err := c.Manager.service.OfflineStatus(ctx)
		if err != nil {
			resp = serverMessage{Type: MessageError, Error: err.Error()}
			break
		}
		resp = serverMessage{
			Type:        MessageOfflineStatus,
			PendingSync: status.Pending,
			Online:      status.Online,
			LastSync:    status.LastSync,
		}
	case MessageSyncNow:
		result, err := c.Manager.service.SyncNow(ctx)
		if err != nil {
			resp = serverMessage{Type: MessageError, Error: err.Error()}
			break
		}
		resp = serverMessage{Type: MessageSyncResult, PendingSync: result.Remaining, Delivered: result.Delivered}
	default:
		log.Debug().Str("connection_id", c.ID).Str("type", msg.Type).Msg("unknown client message")
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal reply")
		return
	}
	c.reply(data)
}
