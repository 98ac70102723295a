package conversation

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/tbourn/alumni-portal/internal/domain"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func msg(id, from, to string, offset time.Duration, read bool) domain.Message {
	return domain.Message{ID: id, SenderID: from, ReceiverID: to, Content: id, CreatedAt: t0.Add(offset), IsRead: read}
}

func TestAggregate_GroupsOrdersAndCountsUnread(t *testing.T) {
	received := []domain.Message{
		msg("m1", "bob", "me", 1*time.Minute, false),
		msg("m3", "bob", "me", 3*time.Minute, true),
		msg("m4", "carol", "me", 4*time.Minute, false),
	}
	sent := []domain.Message{
		msg("m2", "me", "bob", 2*time.Minute, false), // my own unread-by-bob is not my unread
		msg("m5", "me", "dave", 5*time.Minute, false),
	}

	convs := Aggregate("me", received, sent)
	if len(convs) != 3 {
		t.Fatalf("len = %d; want 3", len(convs))
	}
	order := []string{convs[0].CounterpartyID, convs[1].CounterpartyID, convs[2].CounterpartyID}
	if !reflect.DeepEqual(order, []string{"dave", "carol", "bob"}) {
		t.Fatalf("order = %v", order)
	}

	bob := convs[2]
	ids := []string{}
	for _, m := range bob.Messages {
		ids = append(ids, m.ID)
	}
	if !reflect.DeepEqual(ids, []string{"m1", "m2", "m3"}) {
		t.Fatalf("bob messages = %v", ids)
	}
	if bob.LastMessage.ID != "m3" || !bob.LastMessageTime.Equal(t0.Add(3*time.Minute)) {
		t.Fatalf("last = %+v", bob.LastMessage)
	}
	if bob.UnreadCount != 1 || convs[1].UnreadCount != 1 || convs[0].UnreadCount != 0 {
		t.Fatalf("unread counts = %d,%d,%d", convs[0].UnreadCount, convs[1].UnreadCount, bob.UnreadCount)
	}

	// Sum of unread equals the number of unread received messages.
	want := 0
	for _, m := range received {
		if !m.IsRead {
			want++
		}
	}
	if got := UnreadTotal(convs); got != want {
		t.Fatalf("UnreadTotal = %d; want %d", got, want)
	}
}

func TestAggregate_DeterministicUnderShuffleAndDuplicates(t *testing.T) {
	received := []domain.Message{
		msg("a", "x", "me", 0, false),
		msg("b", "y", "me", 0, false), // same time as "a": tie-break by counterparty
		msg("c", "x", "me", time.Minute, false),
		msg("d", "x", "me", time.Minute, false), // same time as "c": tie-break by id
	}
	sent := []domain.Message{msg("e", "me", "y", 0, true)}
	ref := Aggregate("me", received, sent)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		r := append([]domain.Message(nil), received...)
		r = append(r, received[rng.Intn(len(received))]) // duplicate row
		rng.Shuffle(len(r), func(i, j int) { r[i], r[j] = r[j], r[i] })
		if got := Aggregate("me", r, sent); !reflect.DeepEqual(got, ref) {
			t.Fatalf("iteration %d: result differs\n got=%+v\nwant=%+v", i, got, ref)
		}
	}
	if ref[0].CounterpartyID != "x" || ref[0].Messages[2].ID != "d" {
		t.Fatalf("unexpected order: %+v", ref)
	}
}

func TestAggregate_DropsForeignRowsAndHandlesEmpty(t *testing.T) {
	if got := Aggregate("me", nil, nil); len(got) != 0 {
		t.Fatalf("empty input gave %d conversations", len(got))
	}
	got := Aggregate("me", []domain.Message{msg("z", "x", "y", 0, false)}, nil)
	if len(got) != 0 {
		t.Fatalf("foreign row aggregated: %+v", got)
	}
}
