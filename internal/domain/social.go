package domain

import "time"

// Connection request states.
const (
	ConnectionPending  = "pending"
	ConnectionAccepted = "accepted"
	ConnectionDeclined = "declined"
)

// RSVP states.
const (
	RSVPGoing    = "going"
	RSVPMaybe    = "maybe"
	RSVPNotGoing = "not_going"
)

// ValidRSVP reports whether s is an accepted RSVP status.
func ValidRSVP(s string) bool {
	switch s {
	case RSVPGoing, RSVPMaybe, RSVPNotGoing:
		return true
	}
	return false
}

// Post is a feed entry authored by a user.
type Post struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	AuthorID  string    `json:"author_id"  gorm:"type:char(36);not null;index"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Post.
func (Post) TableName() string { return "posts" }

// PostLike records that a user liked a post. A user may like a post once.
type PostLike struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	PostID    string    `json:"post_id"    gorm:"type:char(36);not null;uniqueIndex:ux_post_likes_post_user,priority:1"`
	UserID    string    `json:"user_id"    gorm:"type:char(36);not null;uniqueIndex:ux_post_likes_post_user,priority:2"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for PostLike.
func (PostLike) TableName() string { return "post_likes" }

// Comment is a reply to a post, or to another comment when ParentID is set.
type Comment struct {
	ID        string    `json:"id"                  gorm:"type:char(36);primaryKey"`
	PostID    string    `json:"post_id"             gorm:"type:char(36);not null;index"`
	AuthorID  string    `json:"author_id"           gorm:"type:char(36);not null"`
	ParentID  *string   `json:"parent_id,omitempty" gorm:"type:char(36);index"`
	Content   string    `json:"content"             gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Comment.
func (Comment) TableName() string { return "comments" }

// ConnectionRequest asks the addressee to connect with the requester.
type ConnectionRequest struct {
	ID          string     `json:"id"                     gorm:"type:char(36);primaryKey"`
	RequesterID string     `json:"requester_id"           gorm:"type:char(36);not null;index:idx_conn_pair,priority:1"`
	AddresseeID string     `json:"addressee_id"           gorm:"type:char(36);not null;index:idx_conn_pair,priority:2"`
	Status      string     `json:"status"                 gorm:"type:varchar(16);not null;default:'pending'"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TableName returns the database table name for ConnectionRequest.
func (ConnectionRequest) TableName() string { return "connection_requests" }

// Event is an organized gathering users can RSVP to.
type Event struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	OrganizerID string    `json:"organizer_id" gorm:"type:char(36);not null;index"`
	Title       string    `json:"title"        gorm:"type:varchar(255);not null"`
	StartsAt    time.Time `json:"starts_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for Event.
func (Event) TableName() string { return "events" }

// EventRSVP is a user's answer for an event; one row per (event, user).
type EventRSVP struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	EventID   string    `json:"event_id"   gorm:"type:char(36);not null;uniqueIndex:ux_rsvp_event_user,priority:1"`
	UserID    string    `json:"user_id"    gorm:"type:char(36);not null;uniqueIndex:ux_rsvp_event_user,priority:2"`
	Status    string    `json:"status"     gorm:"type:varchar(16);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for EventRSVP.
func (EventRSVP) TableName() string { return "event_rsvps" }

// MentorshipRequest asks a mentor to take on a mentee.
type MentorshipRequest struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	MenteeID  string    `json:"mentee_id"  gorm:"type:char(36);not null;index"`
	MentorID  string    `json:"mentor_id"  gorm:"type:char(36);not null;index"`
	Message   string    `json:"message"    gorm:"type:text;not null;default:''"`
	Status    string    `json:"status"     gorm:"type:varchar(16);not null;default:'pending'"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for MentorshipRequest.
func (MentorshipRequest) TableName() string { return "mentorship_requests" }

// All returns every model in migration order.
func All() []any {
	return []any{
		&User{}, &Message{}, &Notification{},
		&Post{}, &PostLike{}, &Comment{},
		&ConnectionRequest{}, &Event{}, &EventRSVP{}, &MentorshipRequest{},
		&Idempotency{},
	}
}
