package domain

// NotificationType is the closed set of notification kinds a producer may
// emit. Anything outside this set is rejected before it reaches the store.
type NotificationType string

const (
	NotifyMessage            NotificationType = "message"
	NotifyConnectionRequest  NotificationType = "connection_request"
	NotifyConnectionResponse NotificationType = "connection_response"
	NotifyPostLike           NotificationType = "post_like"
	NotifyPostComment        NotificationType = "post_comment"
	NotifyCommentReply       NotificationType = "comment_reply"
	NotifyEventRSVP          NotificationType = "event_rsvp"
	NotifySignupApproved     NotificationType = "signup_approved"
	NotifyLinkedInSync       NotificationType = "linkedin_sync"
	NotifyMentorshipRequest  NotificationType = "mentorship_request"
)

// NotificationTypes lists every valid type in declaration order.
var NotificationTypes = []NotificationType{
	NotifyMessage,
	NotifyConnectionRequest,
	NotifyConnectionResponse,
	NotifyPostLike,
	NotifyPostComment,
	NotifyCommentReply,
	NotifyEventRSVP,
	NotifySignupApproved,
	NotifyLinkedInSync,
	NotifyMentorshipRequest,
}

// Valid reports whether t is one of the declared notification types.
func (t NotificationType) Valid() bool {
	for _, v := range NotificationTypes {
		if t == v {
			return true
		}
	}
	return false
}

func (t NotificationType) String() string { return string(t) }
