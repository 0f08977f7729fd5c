package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/vogiaan1904/tablequeue/internal/models"
	"github.com/vogiaan1904/tablequeue/internal/service"
	"github.com/vogiaan1904/tablequeue/pkg/logger"
	"github.com/vogiaan1904/tablequeue/pkg/response"
)

// serviceParam optionally pins the service period for a request.
const serviceParam = "svc"

type HTTPHandler struct {
	widget   service.WidgetService
	l        logger.Logger
	upgrader websocket.Upgrader
}

func NewHTTPHandler(widget service.WidgetService, l logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		widget: widget,
		l:      l,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The widget is embedded on the restaurant's own site.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Realtime bool   `json:"realtime"`
}

// HealthCheck reports degraded while the change feed is down. Polling keeps
// positions fresh meanwhile, so it still answers 200.
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Service: "tablequeue", Realtime: h.widget.RealtimeHealthy()}
	if !resp.Realtime {
		resp.Status = "degraded"
	}
	response.JSON(w, http.StatusOK, resp)
}

// GetQueue returns the visitor's current view of the queue.
func (h *HTTPHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	client, err := h.widget.Client(r.Context(), r.URL.Query().Get(serviceParam))
	if err != nil {
		h.l.Errorf(r.Context(), "delivery.http.handler.GetQueue: %v", err)
		response.Error(w, h.mapError(err))
		return
	}

	response.OK(w, client.Snapshot())
}

// JoinQueue takes a token for the visitor.
func (h *HTTPHandler) JoinQueue(w http.ResponseWriter, r *http.Request) {
	var req models.JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.l.Debugf(r.Context(), "delivery.http.handler.JoinQueue: %v", err)
		response.Error(w, errInvalidBody)
		return
	}

	client, err := h.widget.Client(r.Context(), r.URL.Query().Get(serviceParam))
	if err != nil {
		h.l.Errorf(r.Context(), "delivery.http.handler.JoinQueue: %v", err)
		response.Error(w, h.mapError(err))
		return
	}

	tok, err := client.Join(r.Context(), req)
	if err != nil {
		h.l.Warnf(r.Context(), "delivery.http.handler.JoinQueue: %v", err)
		response.Error(w, h.mapError(err))
		return
	}

	response.Created(w, tok)
}

// LeaveQueue forgets the visitor's token on this device.
func (h *HTTPHandler) LeaveQueue(w http.ResponseWriter, r *http.Request) {
	client, err := h.widget.Client(r.Context(), r.URL.Query().Get(serviceParam))
	if err != nil {
		h.l.Errorf(r.Context(), "delivery.http.handler.LeaveQueue: %v", err)
		response.Error(w, h.mapError(err))
		return
	}

	client.Reset(r.Context())
	response.OK(w, client.Snapshot())
}
