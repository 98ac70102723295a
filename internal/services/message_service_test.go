package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tbourn/alumni-portal/internal/conversation"
	"github.com/tbourn/alumni-portal/internal/domain"
)

func newMessageSvc(t *testing.T) (*MessageService, *fakeNotifier, *domain.User, *domain.User) {
	t.Helper()
	db := newSvcDB(t)
	p, fn := newProducer(db)
	alice := seedUser(t, db, "Alice", "Smith", domain.RoleMember)
	bob := seedUser(t, db, "Bob", "Jones", domain.RoleMember)
	return &MessageService{DB: db, Producer: p}, fn, alice, bob
}

// ---------- Send() ----------

func TestMessageService_Send_EmptyContent(t *testing.T) {
	s, _, alice, bob := newMessageSvc(t)
	_, err := s.Send(context.Background(), alice.ID, bob.ID, "", "  \n ")
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
}

func TestMessageService_Send_TooLong(t *testing.T) {
	s, _, alice, bob := newMessageSvc(t)
	s.MaxContentRunes = 3
	_, err := s.Send(context.Background(), alice.ID, bob.ID, "", "abcd")
	if !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
}

func TestMessageService_Send_SelfAndUnknownReceiver(t *testing.T) {
	s, fn, alice, _ := newMessageSvc(t)
	if _, err := s.Send(context.Background(), alice.ID, alice.ID, "", "hi"); !errors.Is(err, ErrSelfTarget) {
		t.Fatalf("self: got %v", err)
	}
	if _, err := s.Send(context.Background(), alice.ID, "nobody", "", "hi"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown: got %v", err)
	}
	if len(fn.all()) != 0 {
		t.Fatal("no dispatch expected")
	}
}

func TestMessageService_Send_StoresMessageAndNotification(t *testing.T) {
	s, fn, alice, bob := newMessageSvc(t)

	m, err := s.Send(context.Background(), alice.ID, bob.ID, " Hi ", "Hello\r\n\r\n\r\nBob")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if m.Subject != "Hi" || m.Content != "Hello\n\nBob" {
		t.Fatalf("normalization: subject=%q content=%q", m.Subject, m.Content)
	}

	var notes []domain.Notification
	s.DB.Where("user_id = ?", bob.ID).Find(&notes)
	if len(notes) != 1 {
		t.Fatalf("want 1 notification, got %d", len(notes))
	}
	n := notes[0]
	if n.Type != domain.NotifyMessage || n.RelatedID != m.ID || n.Title != "New message from Alice Smith" {
		t.Fatalf("notification: %+v", n)
	}
	if n.Content != "Hello Bob" {
		t.Fatalf("preview flattens whitespace, got %q", n.Content)
	}
	if calls := fn.all(); len(calls) != 1 || calls[0].actor != alice.ID {
		t.Fatalf("dispatch: %+v", calls)
	}
	if countNotifications(t, s.DB, alice.ID) != 0 {
		t.Fatal("sender must not be notified")
	}
}

func TestMessageService_Send_PreviewClipped(t *testing.T) {
	s, _, alice, bob := newMessageSvc(t)
	_, err := s.Send(context.Background(), alice.ID, bob.ID, "", strings.Repeat("x", 500))
	if err != nil {
		t.Fatal(err)
	}
	var n domain.Notification
	s.DB.Where("user_id = ?", bob.ID).First(&n)
	if r := []rune(n.Content); len(r) != previewRunes || r[len(r)-1] != '…' {
		t.Fatalf("preview not clipped: %d runes", len(r))
	}
}

// ---------- MarkRead() / Delete() ----------

func TestMessageService_MarkRead_ReceiverOnlyAndIdempotent(t *testing.T) {
	s, _, alice, bob := newMessageSvc(t)
	ctx := context.Background()
	m, _ := s.Send(ctx, alice.ID, bob.ID, "", "hi")

	if err := s.MarkRead(ctx, alice.ID, m.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("sender marking read: got %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.MarkRead(ctx, bob.ID, m.ID); err != nil {
			t.Fatalf("MarkRead #%d: %v", i, err)
		}
	}
	got, _ := s.Get(ctx, bob.ID, m.ID)
	if !got.IsRead {
		t.Fatal("message not read")
	}
	if err := s.MarkRead(ctx, bob.ID, "missing"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("missing: got %v", err)
	}
}

func TestMessageService_Delete_SenderOnly(t *testing.T) {
	s, _, alice, bob := newMessageSvc(t)
	ctx := context.Background()
	m, _ := s.Send(ctx, alice.ID, bob.ID, "", "hi")

	if err := s.Delete(ctx, bob.ID, m.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("receiver deleting: got %v", err)
	}
	if err := s.Delete(ctx, alice.ID, m.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	inbox, _ := s.Inbox(ctx, bob.ID)
	if len(inbox) != 0 {
		t.Fatalf("deleted message still listed: %d", len(inbox))
	}
	if err := s.Delete(ctx, alice.ID, m.ID); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("second delete: got %v", err)
	}
}

func TestMessageService_Get_HidesFromThirdParty(t *testing.T) {
	s, _, alice, bob := newMessageSvc(t)
	ctx := context.Background()
	m, _ := s.Send(ctx, alice.ID, bob.ID, "", "hi")
	if _, err := s.Get(ctx, "carol", m.ID); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("got %v", err)
	}
}

// ---------- Conversations() ----------

func TestMessageService_Conversations(t *testing.T) {
	s, _, alice, bob := newMessageSvc(t)
	carol := seedUser(t, s.DB, "Carol", "White", domain.RoleMember)
	ctx := context.Background()

	mustSend := func(from, to, body string) {
		if _, err := s.Send(ctx, from, to, "", body); err != nil {
			t.Fatal(err)
		}
	}
	mustSend(bob.ID, alice.ID, "hi alice")
	mustSend(alice.ID, bob.ID, "hi bob")
	mustSend(carol.ID, alice.ID, "hey")

	convs, err := s.Conversations(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("want 2 conversations, got %d", len(convs))
	}
	byCP := map[string]int{}
	for _, c := range convs {
		byCP[c.CounterpartyID] = c.UnreadCount
	}
	if byCP[bob.ID] != 1 || byCP[carol.ID] != 1 {
		t.Fatalf("unread counts: %+v", byCP)
	}
}

func TestMessageService_ConversationsIgnoreMailboxLimit(t *testing.T) {
	s, _, alice, bob := newMessageSvc(t)
	carol := seedUser(t, s.DB, "Carol", "White", domain.RoleMember)
	s.MailboxLimit = 1
	ctx := context.Background()

	for _, from := range []string{bob.ID, carol.ID, carol.ID} {
		if _, err := s.Send(ctx, from, alice.ID, "", "hello"); err != nil {
			t.Fatal(err)
		}
	}
	if inbox, _ := s.Inbox(ctx, alice.ID); len(inbox) != 1 {
		t.Fatalf("inbox listing should stay capped, got %d", len(inbox))
	}

	convs, err := s.Conversations(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 || conversation.UnreadTotal(convs) != 3 {
		t.Fatalf("conversations = %d, unread = %d; want the oldest thread kept", len(convs), conversation.UnreadTotal(convs))
	}
}
