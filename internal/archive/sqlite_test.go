package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(ticketID uint64, disposition string) Record {
	return Record{
		ID:            uuid.NewString(),
		TicketID:      ticketID,
		Item:          "Akun ML",
		PaymentMethod: "DANA",
		BuyerLabel:    "budi",
		SellerLabel:   "sari",
		CreatorID:     "u-creator",
		Nominal:       30_000,
		Fee:           3_000,
		Total:         33_000,
		Disposition:   disposition,
		CreatedAt:     time.Now().Truncate(time.Second),
		ClosedAt:      time.Now().Truncate(time.Second),
	}
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)

	rec := testRecord(7, "completed")
	if err := s.Save(rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.ByTicket(7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Item != "Akun ML" {
		t.Errorf("item = %q", got.Item)
	}
	if got.Total != 33_000 {
		t.Errorf("total = %d, want 33000", got.Total)
	}
	if got.Disposition != "completed" {
		t.Errorf("disposition = %q", got.Disposition)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.ByTicket(404); err == nil {
		t.Fatal("expected error for missing record")
	}
}

func TestListAndCount(t *testing.T) {
	s := newTestStore(t)

	for i := uint64(1); i <= 5; i++ {
		d := "completed"
		if i%2 == 0 {
			d = "cancelled"
		}
		rec := testRecord(i, d)
		rec.ClosedAt = time.Now().Add(time.Duration(i) * time.Minute).Truncate(time.Second)
		if err := s.Save(rec); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	all, err := s.List("", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("len = %d, want 5", len(all))
	}
	// Most recently closed first.
	if all[0].TicketID != 5 {
		t.Errorf("first = ticket %d, want 5", all[0].TicketID)
	}

	cancelled, err := s.List("cancelled", 0)
	if err != nil {
		t.Fatalf("list cancelled: %v", err)
	}
	if len(cancelled) != 2 {
		t.Errorf("cancelled = %d, want 2", len(cancelled))
	}

	limited, _ := s.List("", 3)
	if len(limited) != 3 {
		t.Errorf("limited = %d, want 3", len(limited))
	}

	n, err := s.Count("completed")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("count completed = %d, want 3", n)
	}
	if n, _ := s.Count(""); n != 5 {
		t.Errorf("count all = %d, want 5", n)
	}
}

func TestByTicketPicksLatest(t *testing.T) {
	s := newTestStore(t)

	older := testRecord(9, "cancelled")
	older.ClosedAt = time.Now().Add(-time.Hour).Truncate(time.Second)
	newer := testRecord(9, "completed")
	for _, rec := range []Record{older, newer} {
		if err := s.Save(rec); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, err := s.ByTicket(9)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Disposition != "completed" {
		t.Errorf("disposition = %q, want the latest record", got.Disposition)
	}
}
