package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gymchess/dispatch"
	"gymchess/rules"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const wsIdlePingInterval = 30 * time.Second

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type searchPayload struct {
	FEN        string `json:"fen"`
	Difficulty string `json:"difficulty"`
}

type movePayload struct {
	Seq  uint64      `json:"seq"`
	FEN  string      `json:"fen"`
	Move *rules.Move `json:"move"`
}

type errorPayload struct {
	Error string `json:"error"`
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("server: marshal %T: %v", v, err))
	}
	return data
}

// ServeWS treats one connection as one game. Each "search" supersedes the
// previous one; only the newest gets a "move" reply.
func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	gameID := fmt.Sprintf("ws-%d", h.ids.Add(1))
	send := make(chan wsMessage, 16)
	trySend := func(msg wsMessage) {
		select {
		case send <- msg:
		default:
			h.log.Warn().Str("game", gameID).Str("type", msg.Type).Msg("client too slow, dropping message")
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := writeWSWithHeartbeat(conn, send); err != nil {
			h.log.Debug().Err(err).Str("game", gameID).Msg("websocket write failed")
		}
		conn.Close()
	}()
	defer func() {
		// After Cancel returns no delivery can reach send.
		h.dispatcher.Cancel(gameID)
		close(send)
		<-done
	}()

	h.log.Info().Str("game", gameID).Msg("websocket connected")
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			h.log.Info().Str("game", gameID).Msg("websocket closed")
			return
		}
		switch msg.Type {
		case "search":
			var p searchPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				trySend(wsMessage{Type: "error", Payload: mustMarshal(errorPayload{Error: err.Error()})})
				continue
			}
			req := dispatch.Request{GameID: gameID, FEN: p.FEN, Difficulty: p.Difficulty}
			_, err := h.dispatcher.Submit(context.Background(), req, func(r dispatch.Result) {
				if r.Err != nil {
					trySend(wsMessage{Type: "error", Payload: mustMarshal(errorPayload{Error: "search failed"})})
					return
				}
				trySend(wsMessage{Type: "move", Payload: mustMarshal(movePayload{Seq: r.Seq, FEN: r.FEN, Move: r.Move})})
			})
			if err != nil {
				trySend(wsMessage{Type: "error", Payload: mustMarshal(errorPayload{Error: err.Error()})})
			}
		case "cancel":
			h.dispatcher.Cancel(gameID)
		case "ping":
			trySend(wsMessage{Type: "pong"})
		}
	}
}

func writeWSWithHeartbeat(conn *websocket.Conn, send <-chan wsMessage) error {
	ticker := time.NewTicker(wsIdlePingInterval)
	defer ticker.Stop()
	lastWrite := time.Now()

	for {
		select {
		case msg, ok := <-send:
			if !ok {
				return nil
			}
			if err := conn.WriteJSON(msg); err != nil {
				return err
			}
			lastWrite = time.Now()
		case <-ticker.C:
			if time.Since(lastWrite) < wsIdlePingInterval {
				continue
			}
			if err := conn.WriteJSON(wsMessage{Type: "ping"}); err != nil {
				return err
			}
			lastWrite = time.Now()
		}
	}
}
