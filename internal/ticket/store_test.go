package ticket

import (
	"testing"
	"time"
)

func TestStoreIDsMonotonic(t *testing.T) {
	s := NewStore()
	a, b, c := s.NextID(), s.NextID(), s.NextID()
	if !(a < b && b < c) {
		t.Errorf("ids not monotonic: %d %d %d", a, b, c)
	}
}

func TestStoreRegisterGetRemove(t *testing.T) {
	s := NewStore()
	tk := &Ticket{ID: s.NextID(), ChannelID: "chan-1", Status: StatusPending, CreatedAt: time.Now()}
	s.Register(tk)

	got, ok := s.Get(tk.ID)
	if !ok || got != tk {
		t.Fatal("registered ticket not retrievable")
	}
	if got, ok := s.ByChannel("chan-1"); !ok || got != tk {
		t.Fatal("ByChannel lookup failed")
	}
	if _, ok := s.ByChannel("chan-x"); ok {
		t.Error("unexpected ByChannel hit")
	}

	s.Remove(tk.ID)
	if _, ok := s.Get(tk.ID); ok {
		t.Error("removed ticket still present")
	}
	s.Remove(tk.ID) // idempotent
	if s.Len() != 0 {
		t.Errorf("len = %d, want 0", s.Len())
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"30000", 30_000, false},
		{"Rp 30.000", 30_000, false},
		{"1.000,-", 1_000, false},
		{"150 000", 150_000, false},
		{"999", 0, true},
		{"", 0, true},
		{"gratis", 0, true},
		{"-5000", 5_000, false}, // sign stripped with the rest
		{"0", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q) = %d, want error", tt.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q): %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAmount(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}
