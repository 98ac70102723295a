package realtime

import (
	"net/url"

	"github.com/goccy/go-json"

	"github.com/tbourn/alumni-portal/internal/domain"
)

// Frame names. Client-originated: authenticate, ping.
// Server-originated: authenticated, auth_error, notification, pong.
const (
	EventAuthenticate  = "authenticate"
	EventAuthenticated = "authenticated"
	EventAuthError     = "auth_error"
	EventNotification  = "notification"
	EventPing          = "ping"
	EventPong          = "pong"
)

// Event is one frame on the wire.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// inbound is the decode target for client frames; Data is parsed per event.
type inbound struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// AuthPayload is the authenticate frame body.
type AuthPayload struct {
	UserID string `json:"user_id,omitempty"`
	Token  string `json:"token,omitempty"`
}

// AuthenticatedPayload acknowledges a successful handshake.
type AuthenticatedPayload struct {
	UserID string `json:"user_id"`
}

// AuthErrorPayload explains a refused handshake.
type AuthErrorPayload struct {
	Message string `json:"message"`
}

// NotificationPayload is the structured push for a committed notification.
type NotificationPayload struct {
	Type        domain.NotificationType `json:"type"`
	Title       string                  `json:"title"`
	Content     string                  `json:"content"`
	RelatedID   string                  `json:"related_id"`
	RedirectURL string                  `json:"redirect_url"`
}

// NewNotificationEvent builds the push frame for n. actorID is the user
// who caused it; only message notifications use it in the redirect.
func NewNotificationEvent(n domain.Notification, actorID string) Event {
	return Event{
		Name: EventNotification,
		Data: NotificationPayload{
			Type:        n.Type,
			Title:       n.Title,
			Content:     n.Content,
			RelatedID:   n.RelatedID,
			RedirectURL: RedirectURL(n.Type, n.RelatedID, actorID),
		},
	}
}

// RedirectURL is the in-app location a client should open for a notification.
func RedirectURL(t domain.NotificationType, relatedID, actorID string) string {
	switch t {
	case domain.NotifyMessage:
		if actorID == "" {
			return "/messages"
		}
		return "/messages?with=" + url.QueryEscape(actorID)
	case domain.NotifyConnectionRequest, domain.NotifyConnectionResponse:
		return "/connections"
	case domain.NotifyPostLike, domain.NotifyPostComment, domain.NotifyCommentReply:
		return "/posts/" + url.PathEscape(relatedID)
	case domain.NotifyEventRSVP:
		return "/events/" + url.PathEscape(relatedID)
	case domain.NotifySignupApproved:
		return "/dashboard"
	case domain.NotifyLinkedInSync:
		return "/profile"
	case domain.NotifyMentorshipRequest:
		return "/mentorship"
	}
	return "/notifications"
}

func encodeEvent(ev Event) ([]byte, error) { return json.Marshal(ev) }

func decodeInbound(b []byte) (inbound, error) {
	var in inbound
	err := json.Unmarshal(b, &in)
	return in, err
}
