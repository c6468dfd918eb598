package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type jobEventPayload struct {
	JobID       uint   `json:"jobId"`
	Status      string `json:"status"`
	PrinterName string `json:"printerName"`
	Message     string `json:"message,omitempty"`
	Timestamp   string `json:"timestamp"`
	Source      string `json:"source"`
}

// handlePrintJobStream streams the caller's print-job changes as server-sent events.
func (h *httpHandler) handlePrintJobStream(c *gin.Context) {
	if h.realtime == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime stream unavailable"})
		return
	}
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	userID := strconv.FormatUint(uint64(currentUserID(c)), 10)
	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx, userID)
	defer cleanup()

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	flusher.Flush()

	heartbeat := time.NewTicker(realtimeHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := writeEvent(c.Writer, realtimeEventHeartbeat, map[string]string{
				"timestamp": h.clock().UTC().Format(time.RFC3339Nano),
				"source":    realtimeSourceBackend,
			}); err != nil {
				return
			}
			flusher.Flush()
		case message, open := <-stream:
			if !open {
				return
			}
			payload := jobEventPayload{
				JobID:       message.JobID,
				Status:      message.Status,
				PrinterName: message.PrinterName,
				Message:     message.Message,
				Timestamp:   message.Timestamp.UTC().Format(time.RFC3339Nano),
				Source:      realtimeSourceBackend,
			}
			if err := writeEvent(c.Writer, message.EventType, payload); err != nil {
				h.logger.Debug("realtime stream closed", zap.String("user_id", userID), zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
	return err
}
