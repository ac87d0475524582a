package server

import (
	"errors"
	"fmt"
	"net/http"

	"gymchess/bots"
	"gymchess/dispatch"
	"gymchess/rules"

	"github.com/gin-gonic/gin"
)

type moveRequest struct {
	FEN        string `json:"fen" binding:"required"`
	Difficulty string `json:"difficulty" binding:"required"`
}

type moveResponse struct {
	Seq  uint64      `json:"seq"`
	Move *rules.Move `json:"move"`
	SAN  string      `json:"san,omitempty"`
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Difficulties(c *gin.Context) {
	c.JSON(http.StatusOK, h.policy.Tiers())
}

// BestMove searches synchronously from the client's point of view. Every HTTP
// request is its own game; use the websocket for superseding requests.
func (h *Handler) BestMove(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	gameID := fmt.Sprintf("http-%d", h.ids.Add(1))

	results := make(chan dispatch.Result, 1)
	ctx := c.Request.Context()
	_, err := h.dispatcher.Submit(ctx, dispatch.Request{GameID: gameID, FEN: req.FEN, Difficulty: req.Difficulty}, func(r dispatch.Result) {
		results <- r
	})
	if err != nil {
		c.JSON(submitStatus(err), gin.H{"error": err.Error()})
		return
	}

	select {
	case res := <-results:
		if res.Err != nil {
			h.log.Error().Err(res.Err).Str("game", gameID).Msg("search failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
			return
		}
		c.JSON(http.StatusOK, moveResponse{Seq: res.Seq, Move: res.Move, SAN: sanFor(req.FEN, res.Move)})
	case <-ctx.Done():
		h.dispatcher.Cancel(gameID)
		h.log.Debug().Err(ctx.Err()).Str("game", gameID).Msg("client went away, search abandoned")
	}
}

func submitStatus(err error) int {
	switch {
	case errors.Is(err, rules.ErrInvalidPosition), errors.Is(err, bots.ErrUnknownDifficulty):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func sanFor(fen string, m *rules.Move) string {
	if m == nil {
		return ""
	}
	pos, err := rules.Parse(fen)
	if err != nil {
		return ""
	}
	san, err := pos.SAN(*m)
	if err != nil {
		return ""
	}
	return san
}
