package api

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hydrochat/hydrochat/pkg/masking"
	"github.com/hydrochat/hydrochat/pkg/session"
)

type converseOutcome struct {
	content              string
	agentOp              string
	intent               string
	awaitingConfirmation bool
	missingFields        []string
}

// handleConverse implements the Converse Entry Point (spec 4.8): validate
// the envelope, look up or create session state, acquire the
// per-conversation lock, run the graph executor to a terminal node, and
// return the masked response envelope. Status codes: 200 on every in-band
// outcome (including user-facing errors), 400 malformed envelope, 408
// deadline exceeded. An internal routing failure inside the graph is also
// answered with 200 and the executor's generic error message; this handler
// never returns 500 itself (only gin.Recovery does, on a panic).
func (s *Server) handleConverse(c *gin.Context) {
	var req ConverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "message must not be empty"})
		return
	}

	conversationID := ""
	if req.ConversationID != nil && *req.ConversationID != "" {
		conversationID = *req.ConversationID
	} else {
		conversationID = uuid.New().String()
	}

	release := s.store.Acquire(conversationID)
	defer release()

	start := s.now()
	st := s.store.Get(conversationID, start)
	// The executor runs on its own copy of the state, so an abandoned turn
	// cannot mutate what the deadline path persists.
	work := *st
	work.RecentMessages = slices.Clone(st.RecentMessages)
	work.Slots = maps.Clone(st.Slots)
	work.MissingSlots = slices.Clone(st.MissingSlots)
	work.ScanBuffer = slices.Clone(st.ScanBuffer)
	st.AppendMessage(session.RoleUser, req.Message)

	deadline := s.cfg.TurnDeadline
	if deadline <= 0 {
		deadline = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), deadline)
	defer cancel()

	resultCh := make(chan converseOutcome, 1)
	go func() {
		res := s.exec.Run(ctx, &work, req.Message)
		resultCh <- converseOutcome{
			content:              res.Content,
			agentOp:              string(res.AgentOp),
			intent:               res.Intent,
			awaitingConfirmation: res.AwaitingConfirmation,
			missingFields:        res.MissingFields,
		}
	}()

	select {
	case out := <-resultCh:
		s.metrics.RecordTurn(s.now().Sub(start))
		work.Touch(s.now())
		s.store.Put(&work)
		c.JSON(http.StatusOK, ConverseResponse{
			ConversationID: conversationID,
			Messages:       []MessageDTO{{Role: "assistant", Content: out.content}},
			AgentOp:        out.agentOp,
			AgentState: AgentStateDTO{
				Intent:               out.intent,
				AwaitingConfirmation: out.awaitingConfirmation,
				MissingFields:        out.missingFields,
			},
		})
	case <-ctx.Done():
		// Cancellation/deadline (spec 5): abort in-flight work, persist
		// only the user turn already appended above, never partial slot
		// mutations the still-running executor might produce afterward.
		st.Touch(s.now())
		s.store.Put(st)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			masking.LogError(conversationID, "converse", "turn exceeded deadline")
			c.JSON(http.StatusRequestTimeout, errorResponse{Error: "deadline exceeded"})
			return
		}
		masking.LogError(conversationID, "converse", "turn cancelled")
		c.JSON(http.StatusOK, ConverseResponse{
			ConversationID: conversationID,
			Messages:       []MessageDTO{{Role: "assistant", Content: "The request was cancelled."}},
			AgentOp:        "None",
			AgentState: AgentStateDTO{
				Intent:               st.Intent,
				AwaitingConfirmation: false,
				MissingFields:        nil,
			},
		})
	}
}
