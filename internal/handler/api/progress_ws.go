package api

import (
	"time"

	"CoinPull/internal/domain/models"
	"CoinPull/internal/service/metrics"
	xlogger "CoinPull/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// progressMessage is the wire form of a progress event.
type progressMessage struct {
	AttemptID       string           `json:"attempt_id"`
	Kind            models.EventKind `json:"kind"`
	Message         string           `json:"message"`
	AssetID         string           `json:"asset_id,omitempty"`
	Index           int              `json:"index,omitempty"`
	Total           int              `json:"total,omitempty"`
	CoolDownSeconds float64          `json:"cool_down_seconds,omitempty"`
	At              time.Time        `json:"at"`
	Error           string           `json:"error,omitempty"`
	Assets          int              `json:"assets,omitempty"`
}

func newProgressMessage(ev models.ProgressEvent) progressMessage {
	m := progressMessage{
		AttemptID:       ev.AttemptID,
		Kind:            ev.Kind,
		Message:         ev.Message,
		AssetID:         ev.AssetID,
		Index:           ev.Index,
		Total:           ev.Total,
		CoolDownSeconds: ev.CoolDown.Seconds(),
		At:              ev.At,
	}
	if ev.Err != nil {
		m.Error = ev.Err.Error()
	}
	if ev.Batch != nil {
		m.Assets = ev.Batch.Len()
	}
	return m
}

// ProgressWS streams progress events of every attempt until the client goes
// away.
func (h *AnalysisHandler) ProgressWS(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.logger.Warn("progress ws upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	events, cancel := h.svc.Hub().Subscribe()
	defer cancel()

	metrics.ProgressSubscribers.Inc()
	defer metrics.ProgressSubscribers.Dec()

	// read loop: only control frames are expected
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return nil
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return nil
			}
			if err := conn.WriteJSON(newProgressMessage(ev)); err != nil {
				h.logger.Debug("progress ws write failed", xlogger.Error(err))
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
