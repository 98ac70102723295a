// Package conversation turns flat message rows into threaded, unread-aware
// conversations.
//
// Aggregate is a pure fold used both server-side (GET /messages/conversations)
// and by Book, the incrementally updated client model that polling and local
// UI actions share.
package conversation

import (
	"sort"
	"time"

	"github.com/tbourn/alumni-portal/internal/domain"
)

// Conversation is every message exchanged between the current user and one
// counterparty.
//
// Invariants: Messages is ascending by (CreatedAt, ID); LastMessage is its
// final element; UnreadCount counts messages addressed to the current user
// that are not read.
type Conversation struct {
	CounterpartyID  string           `json:"counterparty_id"`
	Messages        []domain.Message `json:"messages"`
	LastMessage     domain.Message   `json:"last_message"`
	LastMessageTime time.Time        `json:"last_message_time"`
	UnreadCount     int              `json:"unread_count"`
}

// Aggregate groups received and sent into conversations for me.
//
// The result is deterministic for a given input set regardless of slice
// order or duplication: messages are deduplicated by id (the first
// occurrence wins), rows not involving me are dropped, and conversations are
// ordered by LastMessageTime descending with CounterpartyID ascending as the
// tie-break.
func Aggregate(me string, received, sent []domain.Message) []Conversation {
	seen := make(map[string]struct{}, len(received)+len(sent))
	groups := make(map[string][]domain.Message)

	add := func(m domain.Message) {
		if _, dup := seen[m.ID]; dup {
			return
		}
		if m.SenderID != me && m.ReceiverID != me {
			return
		}
		seen[m.ID] = struct{}{}
		cp := m.Counterparty(me)
		groups[cp] = append(groups[cp], m)
	}
	for _, m := range received {
		add(m)
	}
	for _, m := range sent {
		add(m)
	}

	out := make([]Conversation, 0, len(groups))
	for cp, msgs := range groups {
		sortMessages(msgs)
		last := msgs[len(msgs)-1]
		unread := 0
		for _, m := range msgs {
			if m.UnreadFor(me) {
				unread++
			}
		}
		out = append(out, Conversation{
			CounterpartyID:  cp,
			Messages:        msgs,
			LastMessage:     last,
			LastMessageTime: last.CreatedAt,
			UnreadCount:     unread,
		})
	}
	sortConversations(out)
	return out
}

// UnreadTotal sums UnreadCount across convs.
func UnreadTotal(convs []Conversation) int {
	n := 0
	for _, c := range convs {
		n += c.UnreadCount
	}
	return n
}

func sortMessages(msgs []domain.Message) {
	sort.Slice(msgs, func(i, j int) bool { return messageLess(msgs[i], msgs[j]) })
}

func sortConversations(convs []Conversation) {
	sort.Slice(convs, func(i, j int) bool { return conversationLess(convs[i], convs[j]) })
}

// messageLess orders messages by (CreatedAt, ID) ascending.
func messageLess(a, b domain.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// conversationLess puts the most recent conversation first, ties broken by
// counterparty id.
func conversationLess(a, b Conversation) bool {
	if !a.LastMessageTime.Equal(b.LastMessageTime) {
		return a.LastMessageTime.After(b.LastMessageTime)
	}
	return a.CounterpartyID < b.CounterpartyID
}
