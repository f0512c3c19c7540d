package httpapi

import (
	"context"
	"net/http"
	"time"

	"alfred/internal/consumer"
	"alfred/internal/models"

	"go.uber.org/zap"
)

// DeviceLink 设备连接（device.Client）
type DeviceLink interface {
	Connect(ctx context.Context) bool
	Disconnect()
	IsConnected() bool
	DeviceID() string
}

// MetricsSource 消费者指标
type MetricsSource interface {
	GetMetrics() consumer.Metrics
}

// DeviceHandler 设备状态与连接接口
type DeviceHandler struct {
	device         DeviceLink
	open           OpenSegmentReader
	metrics        MetricsSource
	connectTimeout time.Duration
	logger         *zap.Logger
}

func NewDeviceHandler(device DeviceLink, open OpenSegmentReader, metrics MetricsSource, connectTimeout time.Duration, logger *zap.Logger) *DeviceHandler {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	return &DeviceHandler{
		device:         device,
		open:           open,
		metrics:        metrics,
		connectTimeout: connectTimeout,
		logger:         logger,
	}
}

type deviceStatusResponse struct {
	DeviceID    string                  `json:"device_id"`
	Connected   bool                    `json:"connected"`
	OpenSegment *models.ActivitySegment `json:"open_segment,omitempty"`
	Metrics     *consumer.Metrics       `json:"metrics,omitempty"`
}

func (h *DeviceHandler) status() deviceStatusResponse {
	resp := deviceStatusResponse{
		DeviceID:  h.device.DeviceID(),
		Connected: h.device.IsConnected(),
	}
	if h.open != nil {
		if seg, ok := h.open.OpenSegment(); ok {
			resp.OpenSegment = &seg
		}
	}
	if h.metrics != nil {
		m := h.metrics.GetMetrics()
		resp.Metrics = &m
	}
	return resp
}

// Status GET /api/v1/device/status
func (h *DeviceHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.status()))
}

// Connect POST /api/v1/device/connect
func (h *DeviceHandler) Connect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.connectTimeout)
	defer cancel()
	if !h.device.Connect(ctx) {
		writeJSON(w, http.StatusBadGateway, Fail("failed to connect to device"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(h.status()))
}

// Disconnect POST /api/v1/device/disconnect
func (h *DeviceHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.device.Disconnect()
	writeJSON(w, http.StatusOK, Ok(h.status()))
}
