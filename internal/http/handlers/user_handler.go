// User HTTP handlers.
//
//   - POST /users                        (signup; no identity required)
//   - GET  /users/me
//   - PUT  /admin/users/{id}/approve     (admin; notifies the user)
//   - PUT  /admin/users/{id}/linkedin    (admin; notifies the user)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/alumni-portal/internal/domain"
)

// SignupRequest is the JSON payload for creating a pending account.
type SignupRequest struct {
	Email     string `json:"email" binding:"required" example:"ada@alumni.example"`
	FirstName string `json:"first_name" example:"Ada"`
	LastName  string `json:"last_name" example:"Lovelace"`
}

// LinkedInSyncRequest records a LinkedIn profile sync for a user.
type LinkedInSyncRequest struct {
	ProfileURL string `json:"profile_url" binding:"required" example:"https://www.linkedin.com/in/ada"`
}

// UserResponse wraps a single user.
type UserResponse struct {
	User *domain.User `json:"user"`
}

// NotificationResponse wraps the notification produced by an admin action. It
// is null when the admin acted on their own account.
type NotificationResponse struct {
	Notification *domain.Notification `json:"notification"`
}

// Signup godoc
// @ID          signup
// @Summary     Sign up
// @Description Creates a pending member account. Admins are told through
// @Description the approval flow; the new user cannot act until approved.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       body  body    handlers.SignupRequest  true  "Signup payload"
// @Success     201  {object} handlers.UserResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid email"
// @Failure     409  {object} handlers.ErrorResponse "Email already registered"
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /users [post]
func (h *Handlers) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email required")
		return
	}
	u, err := h.userSvc.Signup(c.Request.Context(), req.Email, req.FirstName, req.LastName)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	created(c, UserResponse{User: u})
}

// Me godoc
// @ID          getMe
// @Summary     Current user
// @Tags        Users
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user ID"
// @Success     200  {object} handlers.UserResponse
// @Failure     401  {object} handlers.ErrorResponse
// @Router      /users/me [get]
func (h *Handlers) Me(c *gin.Context) {
	u, err := h.userSvc.Profile(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, UserResponse{User: u})
}

// ApproveUser godoc
// @ID          approveUser
// @Summary     Approve a pending signup
// @Tags        Admin
// @Produce     json
// @Param       X-User-ID  header  string  true  "Admin user ID"
// @Param       id         path    string  true  "User ID"
// @Success     200  {object} handlers.NotificationResponse
// @Failure     403  {object} handlers.ErrorResponse "Not an admin"
// @Failure     404  {object} handlers.ErrorResponse "User not found"
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /admin/users/{id}/approve [put]
func (h *Handlers) ApproveUser(c *gin.Context) {
	n, err := h.userSvc.ApproveSignup(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, NotificationResponse{Notification: n})
}

// SyncLinkedIn godoc
// @ID          syncLinkedIn
// @Summary     Record a LinkedIn profile sync
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  true  "Admin user ID"
// @Param       id         path    string  true  "User ID"
// @Param       body       body    handlers.LinkedInSyncRequest  true  "Profile"
// @Success     200  {object} handlers.NotificationResponse
// @Failure     400  {object} handlers.ErrorResponse "Not a LinkedIn profile URL"
// @Failure     403  {object} handlers.ErrorResponse "Not an admin"
// @Failure     404  {object} handlers.ErrorResponse "User not found"
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /admin/users/{id}/linkedin [put]
func (h *Handlers) SyncLinkedIn(c *gin.Context) {
	var req LinkedInSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "profile_url required")
		return
	}
	n, err := h.userSvc.RecordLinkedInSync(c.Request.Context(), userID(c), c.Param("id"), req.ProfileURL)
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, NotificationResponse{Notification: n})
}
