// Package domain defines the persistence models for users, direct messages,
// and notifications. These types are mapped with GORM and form the core data
// layer of the alumni portal; the realtime and conversation packages consume
// them read-only.
package domain

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User roles and account states.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"

	StatusPending  = "pending"
	StatusApproved = "approved"
)

// User is an alumni account. Identity is asserted upstream; the portal only
// checks that the id resolves to a row.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Email: unique login email.
//   - FirstName / LastName: used to build the display name at write time.
//   - Role: "member" or "admin".
//   - Status: "pending" until an admin approves the signup.
//   - LinkedInURL / LinkedInSyncedAt: last recorded LinkedIn profile sync.
type User struct {
	ID               string     `json:"id"                  gorm:"type:char(36);primaryKey"`
	Email            string     `json:"email"               gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	FirstName        string     `json:"first_name"          gorm:"type:varchar(100);not null;default:''"`
	LastName         string     `json:"last_name"           gorm:"type:varchar(100);not null;default:''"`
	Role             string     `json:"role"                gorm:"type:varchar(16);not null;default:'member';check:role IN ('member','admin')"`
	Status           string     `json:"status"              gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','approved')"`
	LinkedInURL      string     `json:"linkedin_url,omitempty" gorm:"column:linkedin_url;type:varchar(512)"`
	LinkedInSyncedAt *time.Time `json:"linkedin_synced_at,omitempty" gorm:"column:linkedin_synced_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// DisplayName is the human-readable name used in notification content.
func (u User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	return u.Email
}

// IsAdmin reports whether the user may run admin actions.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Message is a direct message between two users. Rows are immutable except
// for IsRead (false→true only) and sender-initiated soft deletion.
//
// The (receiver_id, created_at) and (sender_id, created_at) indexes back the
// inbox and sent listings respectively.
type Message struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	SenderID   string         `json:"sender_id"   gorm:"type:char(36);not null;index:idx_msgs_sender,priority:1"`
	ReceiverID string         `json:"receiver_id" gorm:"type:char(36);not null;index:idx_msgs_receiver,priority:1"`
	Subject    string         `json:"subject"     gorm:"type:varchar(255);not null;default:''"`
	Content    string         `json:"content"     gorm:"type:text;not null"`
	IsRead     bool           `json:"is_read"     gorm:"not null;default:false"`
	CreatedAt  time.Time      `json:"created_at"  gorm:"index:idx_msgs_sender,priority:2;index:idx_msgs_receiver,priority:2"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Counterparty returns the participant of m that is not me.
func (m Message) Counterparty(me string) string {
	if m.SenderID == me {
		return m.ReceiverID
	}
	return m.SenderID
}

// UnreadFor reports whether m counts as unread for user me.
func (m Message) UnreadFor(me string) bool {
	return m.ReceiverID == me && !m.IsRead
}

// Notification is the durable record of something another user did that the
// recipient should hear about. The live push is a notification of this row,
// never its source of truth.
//
// Fields:
//   - UserID: recipient.
//   - Type: one of the NotificationType constants.
//   - RelatedID: id of the primary entity (message, post, event, request…).
//   - IsRead: false→true only; rows are never deleted.
type Notification struct {
	ID        string           `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string           `json:"user_id"    gorm:"type:char(36);not null;index:idx_notif_user,priority:1"`
	Type      NotificationType `json:"type"       gorm:"type:varchar(32);not null"`
	Title     string           `json:"title"      gorm:"type:varchar(255);not null"`
	Content   string           `json:"content"    gorm:"type:text;not null"`
	RelatedID string           `json:"related_id" gorm:"type:char(36);not null;default:''"`
	IsRead    bool             `json:"is_read"    gorm:"not null;default:false;index:idx_notif_user,priority:2"`
	CreatedAt time.Time        `json:"created_at" gorm:"index:idx_notif_user,priority:3"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }
