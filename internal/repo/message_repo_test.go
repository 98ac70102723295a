package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/alumni-portal/internal/domain"
)

func TestCreateMessage_PersistsUnread(t *testing.T) {
	db := newTestDB(t, &domain.Message{})

	m, err := CreateMessage(context.Background(), db, "a", "b", "Hello", "hi there")
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if m.ID == "" || m.SenderID != "a" || m.ReceiverID != "b" || m.IsRead {
		t.Fatalf("unexpected message: %+v", m)
	}
	if m.CreatedAt.IsZero() || time.Since(m.CreatedAt) > time.Minute {
		t.Fatalf("CreatedAt looks wrong: %v", m.CreatedAt)
	}
}

func TestCreateMessage_Error_NoTable(t *testing.T) {
	db := newTestDB(t)
	if m, err := CreateMessage(context.Background(), db, "a", "b", "", "x"); err == nil || m != nil {
		t.Fatalf("expected error, got m=%v err=%v", m, err)
	}
}

func TestListInboxAndSent_OrderAndFilter(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	rows := []domain.Message{
		{ID: "m1", SenderID: "a", ReceiverID: "b", Content: "1", CreatedAt: base},
		{ID: "m2", SenderID: "c", ReceiverID: "b", Content: "2", CreatedAt: base.Add(time.Minute)},
		{ID: "m3", SenderID: "b", ReceiverID: "a", Content: "3", CreatedAt: base.Add(2 * time.Minute)},
		// same timestamp as m2; tie broken by id DESC
		{ID: "m4", SenderID: "a", ReceiverID: "b", Content: "4", CreatedAt: base.Add(time.Minute)},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	in, err := ListInbox(context.Background(), db, "b", 0)
	if err != nil {
		t.Fatalf("ListInbox: %v", err)
	}
	want := []string{"m4", "m2", "m1"}
	if len(in) != len(want) {
		t.Fatalf("inbox len = %d; want %d", len(in), len(want))
	}
	for i, id := range want {
		if in[i].ID != id {
			t.Fatalf("inbox[%d] = %s; want %s", i, in[i].ID, id)
		}
	}

	limited, _ := ListInbox(context.Background(), db, "b", 1)
	if len(limited) != 1 || limited[0].ID != "m4" {
		t.Fatalf("limit not applied: %+v", limited)
	}

	sent, err := ListSent(context.Background(), db, "b", 0)
	if err != nil || len(sent) != 1 || sent[0].ID != "m3" {
		t.Fatalf("ListSent: %+v err=%v", sent, err)
	}

	empty, err := ListInbox(context.Background(), db, "nobody", 0)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("empty inbox should be a non-nil empty slice, got %v err=%v", empty, err)
	}
}

func TestMarkMessageRead_ReceiverOnly_Idempotent(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	ctx := context.Background()
	m, _ := CreateMessage(ctx, db, "a", "b", "", "x")

	changed, err := MarkMessageRead(ctx, db, m.ID, "a")
	if err != nil || changed {
		t.Fatalf("sender must not mark read: changed=%v err=%v", changed, err)
	}
	changed, err = MarkMessageRead(ctx, db, m.ID, "b")
	if err != nil || !changed {
		t.Fatalf("first mark: changed=%v err=%v", changed, err)
	}
	changed, err = MarkMessageRead(ctx, db, m.ID, "b")
	if err != nil || changed {
		t.Fatalf("second mark should be a no-op: changed=%v err=%v", changed, err)
	}
	got, _ := GetMessage(ctx, db, m.ID)
	if !got.IsRead {
		t.Fatalf("expected is_read=true")
	}
}

func TestSoftDeleteMessage_SenderOnly_HidesRow(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	ctx := context.Background()
	m, _ := CreateMessage(ctx, db, "a", "b", "", "x")

	if err := SoftDeleteMessage(ctx, db, m.ID, "b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("receiver delete: want ErrNotFound, got %v", err)
	}
	if err := SoftDeleteMessage(ctx, db, m.ID, "a"); err != nil {
		t.Fatalf("sender delete: %v", err)
	}
	if _, err := GetMessage(ctx, db, m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted message still readable: %v", err)
	}
	in, _ := ListInbox(ctx, db, "b", 0)
	if len(in) != 0 {
		t.Fatalf("deleted message still listed: %+v", in)
	}
	if err := SoftDeleteMessage(ctx, db, m.ID, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: want ErrNotFound, got %v", err)
	}
}
