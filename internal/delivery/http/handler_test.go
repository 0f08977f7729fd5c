package http

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
	"github.com/vogiaan1904/tablequeue/internal/models"
	"github.com/vogiaan1904/tablequeue/internal/service"
	"github.com/vogiaan1904/tablequeue/internal/validate"
	"github.com/vogiaan1904/tablequeue/pkg/logger"
)

type fakeClient struct {
	service.MembershipClient

	mu      sync.Mutex
	snap    models.Snapshot
	joinTok *models.QueueToken
	joinErr error
	joined  []models.JoinRequest
	resets  int
	updates chan models.Snapshot

	// validator, when set, checks the form the way the real client does.
	validator *validate.Validator
}

func (c *fakeClient) Join(_ context.Context, req models.JoinRequest) (*models.QueueToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined = append(c.joined, req)
	if c.validator != nil {
		if _, err := c.validator.JoinRequest(req); err != nil {
			return nil, err
		}
	}
	return c.joinTok, c.joinErr
}

func (c *fakeClient) Reset(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
	c.snap = models.Snapshot{State: models.StateIdle, ServicePeriod: c.snap.ServicePeriod}
}

func (c *fakeClient) Snapshot() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

func (c *fakeClient) Watch() (<-chan models.Snapshot, func()) {
	c.updates <- c.Snapshot()
	return c.updates, func() {}
}

type fakeWidget struct {
	service.WidgetService

	mu        sync.Mutex
	client    *fakeClient
	clientErr error
	healthy   bool
	periods   []string
}

func (w *fakeWidget) Client(_ context.Context, override string) (service.MembershipClient, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.periods = append(w.periods, override)
	if w.clientErr != nil {
		return nil, w.clientErr
	}
	return w.client, nil
}

func (w *fakeWidget) RealtimeHealthy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.healthy
}

func (w *fakeWidget) setHealthy(healthy bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.healthy = healthy
}

func (w *fakeWidget) requestedPeriods() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.periods...)
}

func (c *fakeClient) calls() ([]models.JoinRequest, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.JoinRequest(nil), c.joined...), c.resets
}

func newTestServer(t *testing.T, setup ...func(*fakeWidget)) (*httptest.Server, *fakeWidget) {
	t.Helper()
	widget := &fakeWidget{
		healthy: true,
		client: &fakeClient{
			snap:    models.Snapshot{State: models.StateIdle, ServicePeriod: models.PeriodLunch},
			updates: make(chan models.Snapshot, 1),
		},
	}
	for _, fn := range setup {
		fn(widget)
	}
	srv := httptest.NewServer(NewHTTPHandler(widget, logger.InitializeTestZapLogger()).Routes())
	t.Cleanup(srv.Close)
	return srv, widget
}

type envelope struct {
	ErrorCode int               `json:"error_code"`
	Message   string            `json:"message"`
	Data      json.RawMessage   `json:"data"`
	Errors    map[string]string `json:"errors"`
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp, env
}

func TestHealthCheck(t *testing.T) {
	srv, widget := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var body healthResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || body.Status != "healthy" || !body.Realtime {
		t.Fatalf("unexpected health %d %+v", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected a request id header")
	}

	widget.setHealthy(false)
	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if body.Status != "degraded" {
		t.Fatalf("expected degraded, got %+v", body)
	}
}

func TestGetQueuePassesPeriodOverride(t *testing.T) {
	srv, widget := newTestServer(t)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/queue?svc=dinner", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.State != models.StateIdle {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if periods := widget.requestedPeriods(); len(periods) != 1 || periods[0] != "dinner" {
		t.Fatalf("override not forwarded: %v", periods)
	}
}

func TestJoinQueueResponses(t *testing.T) {
	tok := &models.QueueToken{ID: "tok-1", TokenNumber: 4, Status: models.StatusWaiting}

	tests := []struct {
		name       string
		body       string
		joinErr    error
		clientErr  error
		validate   bool
		wantStatus int
		wantCode   int
		wantMsg    string
		wantFields map[string]string
	}{
		{
			name:       "created",
			body:       `{"name":"Asha Rao","phone":"9876543210","party_size":2}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "malformed body",
			body:       `{"name":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   40000,
		},
		{
			name:    "validation",
			body:    `{"name":"A","phone":"1","party_size":0}`,
			joinErr: &validate.ValidationError{Fields: map[string]string{
				"name": "Name must contain at least 4 letters",
			}},
			wantStatus: http.StatusBadRequest,
			wantCode:   40001,
			wantFields: map[string]string{"name": "Name must contain at least 4 letters"},
		},
		{
			name:       "empty party size",
			body:       `{"name":"Asha Rao","phone":"9876543210","party_size":""}`,
			validate:   true,
			wantStatus: http.StatusBadRequest,
			wantCode:   40001,
			wantFields: map[string]string{"party_size": "Number of people must be between 1 and 20"},
		},
		{
			name:       "fractional party size",
			body:       `{"name":"Asha Rao","phone":"9876543210","party_size":2.5}`,
			validate:   true,
			wantStatus: http.StatusBadRequest,
			wantCode:   40001,
			wantFields: map[string]string{"party_size": "Number of people must be between 1 and 20"},
		},
		{
			name:       "join in progress",
			body:       `{}`,
			joinErr:    service.ErrJoinInProgress,
			wantStatus: http.StatusConflict,
			wantCode:   40901,
		},
		{
			name:       "already queued",
			body:       `{}`,
			joinErr:    service.ErrAlreadyInQueue,
			wantStatus: http.StatusConflict,
			wantCode:   40902,
		},
		{
			name:       "join failure",
			body:       `{}`,
			joinErr:    &service.JoinError{Message: "Failed to join queue. Please try again.", Err: errors.New("conflict")},
			wantStatus: http.StatusBadGateway,
			wantCode:   codeJoinFailed,
			wantMsg:    "Failed to join queue. Please try again.",
		},
		{
			name:       "shutting down",
			body:       `{}`,
			clientErr:  service.ErrClientStopped,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   50300,
		},
		{
			name:       "unexpected",
			body:       `{}`,
			joinErr:    errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, func(w *fakeWidget) {
				w.client.joinTok = tok
				w.client.joinErr = tt.joinErr
				w.clientErr = tt.clientErr
				if tt.validate {
					w.client.validator = validate.New()
				}
			})

			resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/queue/join", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected %d, got %d (%+v)", tt.wantStatus, resp.StatusCode, env)
			}
			if env.ErrorCode != tt.wantCode {
				t.Fatalf("expected code %d, got %d", tt.wantCode, env.ErrorCode)
			}
			if tt.wantMsg != "" && env.Message != tt.wantMsg {
				t.Fatalf("expected message %q, got %q", tt.wantMsg, env.Message)
			}
			for field, msg := range tt.wantFields {
				if env.Errors[field] != msg {
					t.Fatalf("field %s: expected %q, got %q", field, msg, env.Errors[field])
				}
			}
			if tt.wantStatus == http.StatusCreated {
				var got models.QueueToken
				if err := json.Unmarshal(env.Data, &got); err != nil || got.TokenNumber != 4 {
					t.Fatalf("unexpected token %s (%v)", env.Data, err)
				}
			}
		})
	}
}

func TestJoinQueueForwardsRequest(t *testing.T) {
	srv, widget := newTestServer(t, func(w *fakeWidget) {
		w.client.joinTok = &models.QueueToken{ID: "tok-1"}
	})

	doJSON(t, http.MethodPost, srv.URL+"/api/v1/queue/join?svc=lunch",
		`{"name":"Asha Rao","phone":"+91 98765 43210","party_size":3}`)

	joined, _ := widget.client.calls()
	if len(joined) != 1 {
		t.Fatalf("expected one join, got %d", len(joined))
	}
	got := joined[0]
	if got.Name != "Asha Rao" || got.Phone != "+91 98765 43210" || got.PartySize != 3 {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestLeaveQueueResets(t *testing.T) {
	srv, widget := newTestServer(t, func(w *fakeWidget) {
		w.client.snap = models.Snapshot{State: models.StateActive, Token: &models.QueueToken{ID: "tok-1"}}
	})

	resp, env := doJSON(t, http.MethodDelete, srv.URL+"/api/v1/queue", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var snap models.Snapshot
	_ = json.Unmarshal(env.Data, &snap)
	if _, resets := widget.client.calls(); resets != 1 || snap.State != models.StateIdle || snap.Token != nil {
		t.Fatalf("expected a reset idle snapshot, got %+v", snap)
	}
}

func TestStreamQueueSendsSnapshots(t *testing.T) {
	srv, widget := newTestServer(t, func(w *fakeWidget) {
		w.client.snap = models.Snapshot{State: models.StateActive, Position: 2, ServicePeriod: models.PeriodLunch}
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/queue/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first models.Snapshot
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read: %v", err)
	}
	if first.State != models.StateActive || first.Position != 2 {
		t.Fatalf("unexpected initial snapshot %+v", first)
	}

	widget.client.updates <- models.Snapshot{State: models.StateActive, Position: 0}
	var next models.Snapshot
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read: %v", err)
	}
	if next.Position != 0 {
		t.Fatalf("unexpected update %+v", next)
	}
}
