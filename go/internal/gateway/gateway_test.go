package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/astraea/go/clients"
	"github.com/mcdev12/astraea/go/internal/models"
	"github.com/mcdev12/astraea/go/internal/notify"
	"github.com/mcdev12/astraea/go/internal/offline"
)

type fakeSync struct {
	mu       sync.Mutex
	status   offline.Status
	outcome  offline.Outcome
	err      error
	statErr  error
	syncErr  error
	reports  []models.ScoutReport
	pits     []models.PitScoutReport
	syncRuns int

	// syncBudget is the time left on the context of the last SyncNow call.
	syncBudget time.Duration
}

func (f *fakeSync) OfflineStatus(context.Context) (offline.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.statErr
}

func (f *fakeSync) SubmitScout(_ context.Context, r models.ScoutReport) (offline.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return f.outcome, f.err
}

func (f *fakeSync) SubmitPitScout(_ context.Context, r models.PitScoutReport) (offline.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pits = append(f.pits, r)
	return f.outcome, f.err
}

func (f *fakeSync) SyncNow(ctx context.Context) (offline.SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncRuns++
	if deadline, ok := ctx.Deadline(); ok {
		f.syncBudget = time.Until(deadline)
	}
	if f.syncErr != nil {
		return offline.SyncResult{}, f.syncErr
	}
	return offline.SyncResult{Delivered: f.status.Pending}, nil
}

func (f *fakeSync) snapshot() ([]models.ScoutReport, []models.PitScoutReport, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reports, f.pits, f.syncRuns
}

func (f *fakeSync) setSyncErr(err error) {
	f.mu.Lock()
	f.syncErr = err
	f.mu.Unlock()
}

func newTestServer(t *testing.T, fake *fakeSync) (*Service, *notify.Hub, *httptest.Server) {
	t.Helper()
	hub := notify.NewHub()
	svc := NewService(DefaultConfig(), fake, hub)
	server := httptest.NewServer(svc.Handler())
	t.Cleanup(server.Close)
	return svc, hub, server
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestOfflineStatusEndpoint(t *testing.T) {
	last := time.Date(2025, 3, 15, 14, 0, 0, 0, time.UTC)
	fake := &fakeSync{status: offline.Status{Pending: 3, Online: false, LastSync: &last}}
	_, _, server := newTestServer(t, fake)

	resp, err := http.Get(server.URL + "/api/offline-status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status offline.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, 3, status.Pending)
	assert.False(t, status.Online)
	require.NotNil(t, status.LastSync)
	assert.True(t, last.Equal(*status.LastSync))
}

func TestSubmitEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		outcome    offline.Outcome
		err        error
		wantCode   int
		wantStatus string
		wantError  string
	}{
		{
			name:       "delivered",
			outcome:    offline.OutcomeDelivered,
			wantCode:   http.StatusOK,
			wantStatus: "success",
		},
		{
			name:       "queued",
			outcome:    offline.OutcomeQueued,
			wantCode:   http.StatusAccepted,
			wantStatus: "queued",
		},
		{
			name:       "validation",
			err:        &offline.ValidationError{Fields: []string{"ScoutReport.Name"}},
			wantCode:   http.StatusBadRequest,
			wantStatus: "error",
			wantError:  "missing required fields: ScoutReport.Name",
		},
		{
			name:       "rejected by server",
			err:        &clients.StatusError{StatusCode: http.StatusUnauthorized, Body: `{"error":"Login required"}`},
			wantCode:   http.StatusUnauthorized,
			wantStatus: "error",
			wantError:  "Login required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeSync{outcome: tt.outcome, err: tt.err}
			_, _, server := newTestServer(t, fake)

			resp, body := postJSON(t, server.URL+"/api/submit", `{"name":"Ada","team":"254","match":"12","endgame":{"action":"park"}}`)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, tt.wantStatus, body["status"])
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
			}
			reports, _, _ := fake.snapshot()
			require.Len(t, reports, 1)
			assert.Equal(t, "254", reports[0].Team)
			assert.Equal(t, "park", reports[0].Endgame.Action)
		})
	}
}

func TestSubmitQueuedResponseIsMarkedOffline(t *testing.T) {
	fake := &fakeSync{outcome: offline.OutcomeQueued}
	_, _, server := newTestServer(t, fake)

	_, body := postJSON(t, server.URL+"/api/pit-scout/submit", `{"scouter_name":"Grace","team":"971","event":"2025casj","drivebase_type":"swerve"}`)
	assert.Equal(t, true, body["offline"])
	_, pits, _ := fake.snapshot()
	require.Len(t, pits, 1)
	assert.Equal(t, "swerve", pits[0].DrivebaseType)
}

func TestSubmitBadJSON(t *testing.T) {
	fake := &fakeSync{}
	_, _, server := newTestServer(t, fake)

	resp, _ := postJSON(t, server.URL+"/api/submit", `{"team":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	reports, _, _ := fake.snapshot()
	assert.Empty(t, reports)
}

func TestSyncEndpoint(t *testing.T) {
	fake := &fakeSync{status: offline.Status{Pending: 2}}
	_, _, server := newTestServer(t, fake)

	resp, body := postJSON(t, server.URL+"/api/sync", ``)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["delivered"])

	fake.setSyncErr(offline.ErrDrainInProgress)
	resp, _ = postJSON(t, server.URL+"/api/sync", ``)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	_, _, server := newTestServer(t, &fakeSync{})
	resp, err := http.Get(server.URL + "/api/submit")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	_, _, server := newTestServer(t, &fakeSync{})

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/api/submit", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://scout.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

type fakeLink bool

func (f fakeLink) Connected() bool { return bool(f) }

func getHealth(t *testing.T, url string) (int, HealthStatus) {
	t.Helper()
	resp, err := http.Get(url + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var status HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	return resp.StatusCode, status
}

func TestHealth(t *testing.T) {
	t.Run("server offline is still healthy", func(t *testing.T) {
		_, _, server := newTestServer(t, &fakeSync{status: offline.Status{Pending: 3, Online: false}})

		code, status := getHealth(t, server.URL)
		assert.Equal(t, http.StatusOK, code)
		assert.True(t, status.Healthy)
		assert.True(t, status.StorageOK)
		assert.False(t, status.ServerOnline)
		assert.Equal(t, 3, status.PendingSync)
		assert.Nil(t, status.NATSConnected)
	})

	t.Run("storage failure", func(t *testing.T) {
		_, _, server := newTestServer(t, &fakeSync{statErr: errors.New("disk gone")})

		code, status := getHealth(t, server.URL)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.False(t, status.Healthy)
		assert.False(t, status.StorageOK)
		require.Len(t, status.Errors, 1)
		assert.Contains(t, status.Errors[0], "disk gone")
	})

	t.Run("nats disconnected", func(t *testing.T) {
		svc := NewService(DefaultConfig(), &fakeSync{status: offline.Status{Online: true}}, notify.NewHub())
		svc.SetNATS(fakeLink(false))
		server := httptest.NewServer(svc.Handler())
		defer server.Close()

		code, status := getHealth(t, server.URL)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		require.NotNil(t, status.NATSConnected)
		assert.False(t, *status.NATSConnected)
	})

	t.Run("nats connected", func(t *testing.T) {
		svc := NewService(DefaultConfig(), &fakeSync{status: offline.Status{Online: true}}, notify.NewHub())
		svc.SetNATS(fakeLink(true))
		server := httptest.NewServer(svc.Handler())
		defer server.Close()

		code, status := getHealth(t, server.URL)
		assert.Equal(t, http.StatusOK, code)
		require.NotNil(t, status.NATSConnected)
		assert.True(t, *status.NATSConnected)
	})
}

func TestWebSocketEventsAndStatus(t *testing.T) {
	fake := &fakeSync{status: offline.Status{Pending: 4, Online: true}}
	svc, hub, server := newTestServer(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return svc.Connections() == 1 }, time.Second, 5*time.Millisecond)

	sent := notify.NewEvent(notify.EventBatchSynced, 4)
	require.NoError(t, hub.Publish(ctx, sent))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got notify.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, notify.EventBatchSynced, got.Type)
	assert.Equal(t, 4, got.Count)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": MessageGetOfflineStatus}))
	var reply map[string]any
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, MessageOfflineStatus, reply["type"])
	assert.Equal(t, float64(4), reply["pendingSync"])
	assert.Equal(t, true, reply["online"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": MessageSyncNow}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, MessageSyncResult, reply["type"])
	_, _, runs := fake.snapshot()
	assert.Equal(t, 1, runs)

	// A drain delivers many items at up to 15s each, so it must not run on
	// the short write deadline.
	fake.mu.Lock()
	budget := fake.syncBudget
	fake.mu.Unlock()
	assert.Greater(t, budget, DefaultConnectionConfig().WriteTimeout)
	assert.Greater(t, budget, offline.DefaultSubmitTimeout)
}
