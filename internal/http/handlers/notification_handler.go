// Notification HTTP handlers.
//
//   - GET /notifications              (newest first, ETag support)
//   - PUT /notifications/{id}/read    (caller's own only)
//   - PUT /notifications/read-all
//   - GET /notifications/unread-count
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/alumni-portal/internal/domain"
	"github.com/tbourn/alumni-portal/internal/repo"
	"github.com/tbourn/alumni-portal/internal/utils"
)

// NotificationsResponse wraps a notification listing.
type NotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}

// MarkAllReadResponse reports how many notifications changed.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated" example:"3"`
}

// UnreadCountResponse reports the unread notification count.
type UnreadCountResponse struct {
	Unread int64 `json:"unread" example:"2"`
}

// unreadOnlyParam accepts both spellings used by clients.
func unreadOnlyParam(c *gin.Context) bool {
	if v := c.Query("unread_only"); v != "" {
		return utils.BoolDefault(v, false)
	}
	return utils.BoolDefault(c.Query("unreadOnly"), false)
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     List notifications
// @Tags        Notifications
// @Produce     json
// @Param       X-User-ID    header  string  true   "Caller user ID"
// @Param       limit        query   int     false  "Max items"  minimum(1) default(50)
// @Param       unread_only  query   bool    false  "Only unread"
// @Success     200  {object} handlers.NotificationsResponse
// @Success     304  "Not modified"
// @Failure     401  {object} handlers.ErrorResponse
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	me := userID(c)
	limit := utils.AtoiDefault(c.Query("limit"), 0)
	unreadOnly := unreadOnlyParam(c)

	if h.DB != nil {
		if st, err := repo.NotificationsStats(ctx, h.DB, me); err == nil {
			if notModified(c, statsETag("notifications", me, st, fmt.Sprintf(":%d:%t", limit, unreadOnly))) {
				return
			}
		}
	}

	items, err := h.notifSvc.List(ctx, me, limit, unreadOnly)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, NotificationsResponse{Notifications: items})
}

// MarkNotificationRead godoc
// @ID          markNotificationRead
// @Summary     Mark a notification read
// @Description Repeating the call is a no-op. Another user's notification is reported as not found.
// @Tags        Notifications
// @Param       X-User-ID  header  string  true  "Caller user ID"
// @Param       id         path    string  true  "Notification ID"
// @Success     204  "Marked"
// @Failure     404  {object} handlers.ErrorResponse
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /notifications/{id}/read [put]
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	if err := h.notifSvc.MarkRead(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	noContent(c)
}

// MarkAllNotificationsRead godoc
// @ID          markAllNotificationsRead
// @Summary     Mark all notifications read
// @Tags        Notifications
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user ID"
// @Success     200  {object} handlers.MarkAllReadResponse
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /notifications/read-all [put]
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.notifSvc.MarkAllRead(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, MarkAllReadResponse{Updated: n})
}

// UnreadNotificationCount godoc
// @ID          unreadNotificationCount
// @Summary     Count unread notifications
// @Tags        Notifications
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user ID"
// @Success     200  {object} handlers.UnreadCountResponse
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /notifications/unread-count [get]
func (h *Handlers) UnreadNotificationCount(c *gin.Context) {
	n, err := h.notifSvc.UnreadCount(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, UnreadCountResponse{Unread: n})
}
