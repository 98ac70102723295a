// Community HTTP handlers. Each action may notify another user through the
// event producer; the handlers only bind input and shape responses.
//
//   - POST /posts
//   - POST /posts/{id}/likes
//   - POST /posts/{id}/comments
//   - POST /connections
//   - PUT  /connections/{id}
//   - POST /events
//   - POST /events/{id}/rsvp
//   - POST /mentorship
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/alumni-portal/internal/domain"
)

// CreatePostRequest is the JSON payload for a new post.
type CreatePostRequest struct {
	Content string `json:"content" binding:"required" example:"Class of 2015 meetup photos are up"`
}

// CommentRequest is the JSON payload for a comment. ParentID makes it a reply.
type CommentRequest struct {
	Content  string `json:"content" binding:"required" example:"Great photos!"`
	ParentID string `json:"parent_id" example:""`
}

// ConnectionRequestBody asks another user to connect.
type ConnectionRequestBody struct {
	AddresseeID string `json:"addressee_id" binding:"required"`
}

// RespondConnectionRequest answers a pending connection request.
type RespondConnectionRequest struct {
	Accept *bool `json:"accept" binding:"required" example:"true"`
}

// CreateEventRequest is the JSON payload for a new event.
type CreateEventRequest struct {
	Title    string    `json:"title" binding:"required" example:"Homecoming 2026"`
	StartsAt time.Time `json:"starts_at" binding:"required" example:"2026-10-10T18:00:00Z"`
}

// RSVPRequest answers an event invitation.
type RSVPRequest struct {
	Status string `json:"status" binding:"required" enums:"going,maybe,not_going" example:"going"`
}

// MentorshipRequestBody asks a mentor for mentorship.
type MentorshipRequestBody struct {
	MentorID string `json:"mentor_id" binding:"required"`
	Message  string `json:"message" example:"I'd love advice on moving into product"`
}

// PostResponse wraps a post.
type PostResponse struct {
	Post *domain.Post `json:"post"`
}

// LikeResponse wraps a like.
type LikeResponse struct {
	Like *domain.PostLike `json:"like"`
}

// CommentResponse wraps a comment.
type CommentResponse struct {
	Comment *domain.Comment `json:"comment"`
}

// ConnectionResponse wraps a connection request.
type ConnectionResponse struct {
	Connection *domain.ConnectionRequest `json:"connection"`
}

// EventResponse wraps an event.
type EventResponse struct {
	Event *domain.Event `json:"event"`
}

// RSVPResponse wraps an RSVP.
type RSVPResponse struct {
	RSVP *domain.EventRSVP `json:"rsvp"`
}

// MentorshipResponse wraps a mentorship request.
type MentorshipResponse struct {
	Mentorship *domain.MentorshipRequest `json:"mentorship"`
}

// CreatePost godoc
// @ID          createPost
// @Summary     Create a post
// @Tags        Community
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user ID"
// @Param       body       body    handlers.CreatePostRequest  true  "Post"
// @Success     201  {object} handlers.PostResponse
// @Failure     400  {object} handlers.ErrorResponse
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /posts [post]
func (h *Handlers) CreatePost(c *gin.Context) {
	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	p, err := h.socialSvc.CreatePost(c.Request.Context(), userID(c), req.Content)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	created(c, PostResponse{Post: p})
}

// LikePost godoc
// @ID          likePost
// @Summary     Like a post
// @Description Notifies the post author unless they liked their own post.
// @Tags        Community
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user ID"
// @Param       id         path    string  true  "Post ID"
// @Success     201  {object} handlers.LikeResponse
// @Failure     404  {object} handlers.ErrorResponse "Post not found"
// @Failure     409  {object} handlers.ErrorResponse "Already liked"
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /posts/{id}/likes [post]
func (h *Handlers) LikePost(c *gin.Context) {
	l, err := h.socialSvc.LikePost(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	created(c, LikeResponse{Like: l})
}

// CommentOnPost godoc
// @ID          commentOnPost
// @Summary     Comment on a post
// @Description A comment notifies the post author; a reply notifies the parent
// @Description comment's author instead.
// @Tags        Community
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user ID"
// @Param       id         path    string  true  "Post ID"
// @Param       body       body    handlers.CommentRequest  true  "Comment"
// @Success     201  {object} handlers.CommentResponse
// @Failure     400  {object} handlers.ErrorResponse
// @Failure     404  {object} handlers.ErrorResponse
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /posts/{id}/comments [post]
func (h *Handlers) CommentOnPost(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	cm, err := h.socialSvc.Comment(c.Request.Context(), userID(c), c.Param("id"), req.ParentID, req.Content)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	created(c, CommentResponse{Comment: cm})
}

// RequestConnection godoc
// @ID          requestConnection
// @Summary     Send a connection request
// @Tags        Community
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user ID"
// @Param       body       body    handlers.ConnectionRequestBody  true  "Addressee"
// @Success     201  {object} handlers.ConnectionResponse
// @Failure     400  {object} handlers.ErrorResponse
// @Failure     404  {object} handlers.ErrorResponse
// @Failure     409  {object} handlers.ErrorResponse "Pending request exists"
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /connections [post]
func (h *Handlers) RequestConnection(c *gin.Context) {
	var req ConnectionRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "addressee_id required")
		return
	}
	cr, err := h.socialSvc.RequestConnection(c.Request.Context(), userID(c), req.AddresseeID)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	created(c, ConnectionResponse{Connection: cr})
}

// RespondConnection godoc
// @ID          respondConnection
// @Summary     Accept or decline a connection request
// @Description Addressee only. The requester is notified either way.
// @Tags        Community
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user ID"
// @Param       id         path    string  true  "Connection request ID"
// @Param       body       body    handlers.RespondConnectionRequest  true  "Answer"
// @Success     200  {object} handlers.ConnectionResponse
// @Failure     400  {object} handlers.ErrorResponse
// @Failure     403  {object} handlers.ErrorResponse
// @Failure     404  {object} handlers.ErrorResponse
// @Failure     409  {object} handlers.ErrorResponse "Already answered"
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /connections/{id} [put]
func (h *Handlers) RespondConnection(c *gin.Context) {
	var req RespondConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Accept == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "accept required")
		return
	}
	cr, err := h.socialSvc.RespondConnection(c.Request.Context(), userID(c), c.Param("id"), *req.Accept)
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, ConnectionResponse{Connection: cr})
}

// CreateEvent godoc
// @ID          createEvent
// @Summary     Create an event
// @Tags        Community
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user ID"
// @Param       body       body    handlers.CreateEventRequest  true  "Event"
// @Success     201  {object} handlers.EventResponse
// @Failure     400  {object} handlers.ErrorResponse
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /events [post]
func (h *Handlers) CreateEvent(c *gin.Context) {
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title and starts_at required")
		return
	}
	ev, err := h.socialSvc.CreateEvent(c.Request.Context(), userID(c), req.Title, req.StartsAt)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	created(c, EventResponse{Event: ev})
}

// RSVPEvent godoc
// @ID          rsvpEvent
// @Summary     RSVP to an event
// @Description Creates or updates the caller's answer and notifies the organizer.
// @Tags        Community
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user ID"
// @Param       id         path    string  true  "Event ID"
// @Param       body       body    handlers.RSVPRequest  true  "Answer"
// @Success     200  {object} handlers.RSVPResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid status"
// @Failure     404  {object} handlers.ErrorResponse
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /events/{id}/rsvp [post]
func (h *Handlers) RSVPEvent(c *gin.Context) {
	var req RSVPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}
	r, err := h.socialSvc.RSVP(c.Request.Context(), userID(c), c.Param("id"), req.Status)
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, RSVPResponse{RSVP: r})
}

// RequestMentorship godoc
// @ID          requestMentorship
// @Summary     Ask a mentor for mentorship
// @Tags        Community
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller user ID"
// @Param       body       body    handlers.MentorshipRequestBody  true  "Request"
// @Success     201  {object} handlers.MentorshipResponse
// @Failure     400  {object} handlers.ErrorResponse
// @Failure     404  {object} handlers.ErrorResponse
// @Failure     500  {object} handlers.ErrorResponse
// @Router      /mentorship [post]
func (h *Handlers) RequestMentorship(c *gin.Context) {
	var req MentorshipRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "mentor_id required")
		return
	}
	m, err := h.socialSvc.RequestMentorship(c.Request.Context(), userID(c), req.MentorID, req.Message)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	created(c, MentorshipResponse{Mentorship: m})
}
