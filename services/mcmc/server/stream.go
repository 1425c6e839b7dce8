// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
}

const writeWait = 5 * time.Second

// handleStream handles GET /v1/chain/stream.
//
// Description:
//
//	Upgrades to a WebSocket and pushes a chain.Status every StreamInterval.
//	The first snapshot is sent immediately. Once a snapshot reports the
//	chain as not running, it is sent and the connection is closed normally.
//	Client messages are read and discarded; a read error ends the stream.
//
// Response:
//
//	101 Switching Protocols: stream of chain.Status JSON messages
//	503 Service Unavailable: ErrorResponse when no chain is attached
func (s *Server) handleStream(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no chain attached"})
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("stream upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := c.Request.Context()
	ticker := time.NewTicker(s.cfg.StreamInterval)
	defer ticker.Stop()
	for {
		st := s.status.Status()
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteJSON(st); err != nil {
			s.logger.Debug("stream write failed", slog.String("error", err.Error()))
			return
		}
		if !st.Running {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "chain stopped")
			_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}

		select {
		case <-ticker.C:
		case <-gone:
			return
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}
