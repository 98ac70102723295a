// Message HTTP handlers.
//
// This file exposes REST endpoints for direct messages:
//   - POST   /messages                 (send; notifies the receiver)
//   - GET    /messages/inbox           (received, newest first, ETag support)
//   - GET    /messages/sent            (sent, newest first)
//   - GET    /messages/conversations   (inbox + sent folded per counterparty)
//   - PUT    /messages/{id}/read       (receiver only; idempotent)
//   - DELETE /messages/{id}            (sender only; no notification)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// send exists for (user, route, key), the handler returns that recorded
// message and sets `Idempotency-Replayed: true`.
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/alumni-portal/internal/conversation"
	"github.com/tbourn/alumni-portal/internal/domain"
	"github.com/tbourn/alumni-portal/internal/http/middleware"
	"github.com/tbourn/alumni-portal/internal/repo"
)

//
// DTOs
//

// SendMessageRequest is the JSON payload for sending a direct message.
// receiver_id is accepted as an alias of receiverId.
type SendMessageRequest struct {
	ReceiverID string `json:"receiverId" example:"0b8f6f0e-54a4-4b8e-9a53-6f1c1a1b2c3d"`
	// Deprecated: use ReceiverID.
	ReceiverIDAlias string `json:"receiver_id,omitempty" swaggerignore:"true"`
	Subject         string `json:"subject" example:"Reunion planning"`
	// Content is normalized by the service (NFC, line endings, blank lines).
	Content string `json:"content" binding:"required" example:"Are you coming in June?"`
}

// MessageResponse wraps a single message.
type MessageResponse struct {
	Message *domain.Message `json:"message"`
}

// MessagesResponse wraps a message listing.
type MessagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

// ConversationsResponse wraps the conversation view.
type ConversationsResponse struct {
	Conversations []conversation.Conversation `json:"conversations"`
	UnreadTotal   int                         `json:"unread_total"`
}

//
// Handlers
//

// SendMessage godoc
// @ID          sendMessage
// @Summary     Send a direct message
// @Description Stores the message and a notification for the receiver in one transaction,
// @Description then pushes the notification if the receiver is connected.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  true  "Caller user ID"
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"
// @Param       body             body    handlers.SendMessageRequest  true  "Message payload"
//
// @Success     201  {object}  handlers.MessageResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unknown caller"
// @Failure     404  {object}  handlers.ErrorResponse  "Receiver not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /messages [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	me := userID(c)

	var req SendMessageRequest
	err := c.ShouldBindJSON(&req)
	if req.ReceiverID == "" {
		req.ReceiverID = req.ReceiverIDAlias
	}
	if err != nil || req.ReceiverID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "receiverId and content required")
		return
	}

	// Idempotency (replay path).
	idemKey, _ := middleware.GetIdempotencyKey(c)
	scope := c.FullPath()
	if idemKey != "" && h.DB != nil {
		if rec, err := repo.GetIdempotency(ctx, h.DB, me, scope, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if prev, err := h.msgSvc.Get(ctx, me, rec.ResourceID); err == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, rec.Status, MessageResponse{Message: prev})
				return
			}
		}
	}

	m, err := h.msgSvc.Send(ctx, me, req.ReceiverID, req.Subject, req.Content)
	if err != nil {
		failService(c, err, ErrCodeSendFailed)
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && h.DB != nil {
		if _, err := repo.CreateIdempotency(ctx, h.DB, me, scope, idemKey, m.ID, http.StatusCreated, h.IdempotencyTTL); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("message_id", m.ID).Msg("idempotency record not stored")
		}
	}

	created(c, MessageResponse{Message: m})
}

// Inbox godoc
// @ID          listInbox
// @Summary     List received messages
// @Tags        Messages
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user ID"
// @Success     200  {object} handlers.MessagesResponse
// @Success     304  "Not modified"
// @Failure     401  {object} handlers.ErrorResponse
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /messages/inbox [get]
func (h *Handlers) Inbox(c *gin.Context) {
	ctx := c.Request.Context()
	me := userID(c)

	if h.DB != nil {
		if st, err := repo.InboxStats(ctx, h.DB, me); err == nil {
			if notModified(c, statsETag("inbox", me, st, "")) {
				return
			}
		}
	}

	items, err := h.msgSvc.Inbox(ctx, me)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, MessagesResponse{Messages: items})
}

// Sent godoc
// @ID          listSent
// @Summary     List sent messages
// @Tags        Messages
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user ID"
// @Success     200  {object} handlers.MessagesResponse
// @Failure     401  {object} handlers.ErrorResponse
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /messages/sent [get]
func (h *Handlers) Sent(c *gin.Context) {
	items, err := h.msgSvc.Sent(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, MessagesResponse{Messages: items})
}

// Conversations godoc
// @ID          listConversations
// @Summary     List conversations
// @Description Folds inbox and sent mail into one conversation per counterparty,
// @Description most recent first, with per-conversation unread counts.
// @Tags        Messages
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user ID"
// @Success     200  {object} handlers.ConversationsResponse
// @Failure     401  {object} handlers.ErrorResponse
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /messages/conversations [get]
func (h *Handlers) Conversations(c *gin.Context) {
	convs, err := h.msgSvc.Conversations(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	if convs == nil {
		convs = []conversation.Conversation{}
	}
	ok(c, http.StatusOK, ConversationsResponse{
		Conversations: convs,
		UnreadTotal:   conversation.UnreadTotal(convs),
	})
}

// MarkMessageRead godoc
// @ID          markMessageRead
// @Summary     Mark a message read
// @Description Receiver only. Marking an already read message succeeds.
// @Tags        Messages
// @Param       X-User-ID  header  string  true  "Caller user ID"
// @Param       id         path    string  true  "Message ID"
// @Success     204  "Marked"
// @Failure     403  {object} handlers.ErrorResponse "Not the receiver"
// @Failure     404  {object} handlers.ErrorResponse "Message not found"
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /messages/{id}/read [put]
func (h *Handlers) MarkMessageRead(c *gin.Context) {
	if err := h.msgSvc.MarkRead(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	noContent(c)
}

// DeleteMessage godoc
// @ID          deleteMessage
// @Summary     Delete a sent message
// @Tags        Messages
// @Param       X-User-ID  header  string  true  "Caller user ID"
// @Param       id         path    string  true  "Message ID"
// @Success     204  "Deleted"
// @Failure     403  {object} handlers.ErrorResponse "Not the sender"
// @Failure     404  {object} handlers.ErrorResponse "Message not found"
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /messages/{id} [delete]
func (h *Handlers) DeleteMessage(c *gin.Context) {
	if err := h.msgSvc.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	noContent(c)
}

//
// Helpers
//

// statsETag builds a weak validator from aggregate stats. variant separates
// representations of the same rows (e.g. query filters).
func statsETag(kind, userID string, st repo.Stats, variant string) string {
	var ts int64
	if st.Latest != nil {
		ts = st.Latest.UnixNano()
	}
	return fmt.Sprintf(`W/"%s:%s:%d:%d:%d%s"`, kind, userID, st.Count, st.Unread, ts, variant)
}

// notModified sets ETag and answers 304 when If-None-Match matches.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}
