package conversation

import (
	"sort"
	"sync"
	"time"

	"github.com/tbourn/alumni-portal/internal/domain"
)

// Book is the client-side conversation model. Poll results and local
// mutations (send, open, remove) are applied under one mutex so the
// conversation list and unread total always agree with the read flags the
// client has applied.
//
// Load and Merge rebuild the list with Aggregate. Local mutations patch the
// affected conversation in place and reposition only that one.
//
// Local state that survives a poll:
//   - messages applied locally after the poll started, which the server
//     snapshot may predate;
//   - messages removed locally, until the server stops returning them;
//   - read flags: a message read locally never reads as unread again.
type Book struct {
	mu  sync.Mutex
	me  string
	now func() time.Time

	convs []Conversation
	index map[string]int    // counterparty -> position in convs
	owner map[string]string // message id -> counterparty

	applied     map[string]time.Time // id -> when applied locally
	removed     map[string]time.Time // id -> when removed locally
	pendingRead map[string]struct{}
}

// NewBook returns an empty book for user me.
func NewBook(me string) *Book {
	return &Book{
		me:          me,
		now:         func() time.Time { return time.Now().UTC() },
		index:       make(map[string]int),
		owner:       make(map[string]string),
		applied:     make(map[string]time.Time),
		removed:     make(map[string]time.Time),
		pendingRead: make(map[string]struct{}),
	}
}

// Me returns the user the book aggregates for.
func (b *Book) Me() string { return b.me }

// Load replaces the whole book with a server snapshot, discarding local state.
func (b *Book) Load(received, sent []domain.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.applied = make(map[string]time.Time)
	b.removed = make(map[string]time.Time)
	b.pendingRead = make(map[string]struct{})
	b.rebuild(Aggregate(b.me, received, sent))
}

// Merge folds a server snapshot fetched at fetchStartedAt into the book.
// The snapshot is authoritative except for local mutations newer than the
// fetch and for read flags, which only move from unread to read.
func (b *Book) Merge(received, sent []domain.Message, fetchStartedAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := make(map[string]domain.Message, len(b.owner))
	for _, c := range b.convs {
		for _, m := range c.Messages {
			current[m.ID] = m
		}
	}

	next := make(map[string]domain.Message, len(received)+len(sent))
	for _, list := range [][]domain.Message{received, sent} {
		for _, m := range list {
			if _, dup := next[m.ID]; !dup {
				next[m.ID] = m
			}
		}
	}

	for id, at := range b.applied {
		if _, ok := next[id]; ok {
			delete(b.applied, id)
			continue
		}
		if !at.Before(fetchStartedAt) {
			if m, ok := current[id]; ok {
				next[id] = m
			}
			continue
		}
		delete(b.applied, id)
	}

	for id, at := range b.removed {
		if _, ok := next[id]; ok {
			delete(next, id)
			continue
		}
		if at.Before(fetchStartedAt) {
			delete(b.removed, id)
		}
	}

	for id, m := range next {
		if old, ok := current[id]; ok && old.IsRead && !m.IsRead {
			m.IsRead = true
			next[id] = m
			continue
		}
		if m.IsRead {
			delete(b.pendingRead, id)
		}
	}
	for id := range b.pendingRead {
		if _, ok := next[id]; !ok {
			delete(b.pendingRead, id)
		}
	}

	all := make([]domain.Message, 0, len(next))
	for _, m := range next {
		all = append(all, m)
	}
	b.rebuild(Aggregate(b.me, all, nil))
}

// ApplySend records a message the current user just sent. Its conversation
// moves to the front because it now holds the newest message.
func (b *Book) ApplySend(m domain.Message) bool { return b.apply(m) }

func (b *Book) apply(m domain.Message) bool {
	if m.ID == "" || (m.SenderID != b.me && m.ReceiverID != b.me) {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.owner[m.ID]; ok {
		return false
	}
	if _, ok := b.removed[m.ID]; ok {
		return false
	}

	cp := m.Counterparty(b.me)
	i, ok := b.index[cp]
	if !ok {
		b.convs = append(b.convs, Conversation{CounterpartyID: cp})
		i = len(b.convs) - 1
		b.index[cp] = i
	}
	c := &b.convs[i]
	at := sort.Search(len(c.Messages), func(k int) bool { return messageLess(m, c.Messages[k]) })
	c.Messages = append(c.Messages, domain.Message{})
	copy(c.Messages[at+1:], c.Messages[at:])
	c.Messages[at] = m
	if m.UnreadFor(b.me) {
		c.UnreadCount++
	}
	c.LastMessage = c.Messages[len(c.Messages)-1]
	c.LastMessageTime = c.LastMessage.CreatedAt

	b.owner[m.ID] = cp
	b.applied[m.ID] = b.now()
	b.reposition(i)
	return true
}

// Open marks every unread message from counterparty read locally and returns
// their ids, ascending by (CreatedAt, ID), for the caller to persist.
func (b *Book) Open(counterparty string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	i, ok := b.index[counterparty]
	if !ok {
		return nil
	}
	c := &b.convs[i]
	var ids []string
	for k := range c.Messages {
		if !c.Messages[k].UnreadFor(b.me) {
			continue
		}
		c.Messages[k].IsRead = true
		b.pendingRead[c.Messages[k].ID] = struct{}{}
		ids = append(ids, c.Messages[k].ID)
	}
	c.UnreadCount = 0
	c.LastMessage = c.Messages[len(c.Messages)-1]
	return ids
}

// ConfirmRead clears the pending flag for ids the server has acknowledged.
func (b *Book) ConfirmRead(ids ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		delete(b.pendingRead, id)
	}
}

// PendingReads returns ids read locally but not yet confirmed, sorted.
func (b *Book) PendingReads() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.pendingRead))
	for id := range b.pendingRead {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Remove drops a message locally (after a delete) and hides it from later
// polls until the server stops returning it.
func (b *Book) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.applied, id)
	delete(b.pendingRead, id)
	b.removed[id] = b.now()

	cp, ok := b.owner[id]
	if !ok {
		return false
	}
	delete(b.owner, id)

	i := b.index[cp]
	c := &b.convs[i]
	for k, m := range c.Messages {
		if m.ID != id {
			continue
		}
		if m.UnreadFor(b.me) {
			c.UnreadCount--
		}
		c.Messages = append(c.Messages[:k], c.Messages[k+1:]...)
		break
	}
	if len(c.Messages) == 0 {
		b.convs = append(b.convs[:i], b.convs[i+1:]...)
		delete(b.index, cp)
		b.reindex(i, len(b.convs)-1)
		return true
	}
	c.LastMessage = c.Messages[len(c.Messages)-1]
	c.LastMessageTime = c.LastMessage.CreatedAt
	b.reposition(i)
	return true
}

// Snapshot returns the current conversations. The result shares no memory
// with the book.
func (b *Book) Snapshot() []Conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Conversation, len(b.convs))
	for i, c := range b.convs {
		out[i] = clone(c)
	}
	return out
}

// Conversation returns the conversation with counterparty, if any.
func (b *Book) Conversation(counterparty string) (Conversation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.index[counterparty]
	if !ok {
		return Conversation{}, false
	}
	return clone(b.convs[i]), true
}

// UnreadTotal is the unread count across all conversations.
func (b *Book) UnreadTotal() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return UnreadTotal(b.convs)
}

// caller holds mu.
func (b *Book) rebuild(convs []Conversation) {
	b.convs = convs
	b.index = make(map[string]int, len(convs))
	b.owner = make(map[string]string)
	for i, c := range convs {
		b.index[c.CounterpartyID] = i
		for _, m := range c.Messages {
			b.owner[m.ID] = c.CounterpartyID
		}
	}
}

// reposition moves convs[i] to its place in the list order after its last
// message changed. Only the conversations it passes are reindexed.
// caller holds mu.
func (b *Book) reposition(i int) {
	j := i
	for j > 0 && conversationLess(b.convs[j], b.convs[j-1]) {
		b.convs[j], b.convs[j-1] = b.convs[j-1], b.convs[j]
		j--
	}
	for j < len(b.convs)-1 && conversationLess(b.convs[j+1], b.convs[j]) {
		b.convs[j], b.convs[j+1] = b.convs[j+1], b.convs[j]
		j++
	}
	if j < i {
		b.reindex(j, i)
	} else {
		b.reindex(i, j)
	}
}

// caller holds mu.
func (b *Book) reindex(from, to int) {
	for k := from; k <= to && k < len(b.convs); k++ {
		b.index[b.convs[k].CounterpartyID] = k
	}
}

func clone(c Conversation) Conversation {
	c.Messages = append([]domain.Message(nil), c.Messages...)
	return c
}
