package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BigPharmacist/ChatApp/internal/chat/orchestrator"
	"github.com/BigPharmacist/ChatApp/internal/http/response"
	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
	"github.com/BigPharmacist/ChatApp/internal/platform/openai"
)

type ChatRunner interface {
	Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

type ChatHandler struct {
	log        *logger.Logger
	chat       ChatRunner
	configured func() bool
	timeout    time.Duration
}

// NewChatHandler builds the chat endpoint. configured reports whether the
// model credential is present; timeout bounds non-streaming turns.
func NewChatHandler(log *logger.Logger, chat ChatRunner, configured func() bool, timeout time.Duration) *ChatHandler {
	return &ChatHandler{log: log.With("handler", "ChatHandler"), chat: chat, configured: configured, timeout: timeout}
}

type chatRequest struct {
	Messages     []openai.Message `json:"messages"`
	Model        string           `json:"model"`
	Stream       *bool            `json:"stream"`
	EnableTools  *bool            `json:"enableTools"`
	SystemPrompt string           `json:"systemPrompt"`
}

// POST /chat
func (h *ChatHandler) Chat(c *gin.Context) {
	if h.configured != nil && !h.configured() {
		response.RespondError(c, http.StatusInternalServerError, "not_configured", openai.ErrMissingAPIKey)
		return
	}
	var body chatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if len(body.Messages) == 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("messages are required"))
		return
	}
	req := orchestrator.Request{
		Messages:     body.Messages,
		Model:        body.Model,
		Stream:       boolOr(body.Stream, true),
		EnableTools:  boolOr(body.EnableTools, true),
		SystemPrompt: body.SystemPrompt,
	}

	ctx := c.Request.Context()
	if !req.Stream && h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res, err := h.chat.Run(ctx, req)
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	if res.Stream != nil {
		relayStream(c, res.Stream)
		return
	}
	response.RespondOK(c, res.Response)
}

// Model-side failures answer 200 with an error body so the client can show
// them inline in the conversation.
func (h *ChatHandler) respondChatError(c *gin.Context, err error) {
	var up *orchestrator.UpstreamError
	switch {
	case errors.As(err, &up):
		h.log.Warn("Model API error", "status", up.Status)
		c.JSON(http.StatusOK, gin.H{"error": up.Error(), "status": up.Status, "details": up.Body})
	case errors.Is(err, orchestrator.ErrToolLoopExceeded), errors.Is(err, orchestrator.ErrNoAssistantMessage):
		c.JSON(http.StatusOK, gin.H{"error": err.Error()})
	case errors.Is(err, openai.ErrMissingAPIKey):
		response.RespondError(c, http.StatusInternalServerError, "not_configured", err)
	default:
		h.log.Error("Chat turn failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "chat_failed", err)
	}
}

// relayStream copies the upstream SSE body to the client as it arrives.
func relayStream(c *gin.Context, body io.ReadCloser) {
	defer body.Close()
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	buf := make([]byte, 32<<10)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				return
			}
			c.Writer.Flush()
		}
		if err != nil || ctx.Err() != nil {
			return
		}
	}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
