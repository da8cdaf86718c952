package ticket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// fakeGateway records gateway calls and lets tests inject failures.
type fakeGateway struct {
	mu            sync.Mutex
	admins        map[string]bool
	bots          map[string]bool
	createErr     error
	postErr       error
	grantErr      error
	channels      []string
	deleted       []string
	granted       []string // "channelID/userID"
	summaryPosts  int
	summaryEdits  int
	nextChannelID int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		admins: make(map[string]bool),
		bots:   make(map[string]bool),
	}
}

func (g *fakeGateway) CreateTicketChannel(_ context.Context, name string, _ []string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return "", g.createErr
	}
	g.nextChannelID++
	id := fmt.Sprintf("chan-%d", g.nextChannelID)
	g.channels = append(g.channels, name)
	return id, nil
}

func (g *fakeGateway) DeleteChannel(_ context.Context, channelID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, channelID)
	return nil
}

func (g *fakeGateway) GrantChannelAccess(_ context.Context, channelID, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.grantErr != nil {
		return g.grantErr
	}
	g.granted = append(g.granted, channelID+"/"+userID)
	return nil
}

func (g *fakeGateway) PostSummary(_ context.Context, t *Ticket) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.postErr != nil {
		return "", g.postErr
	}
	g.summaryPosts++
	return fmt.Sprintf("msg-%d", t.ID), nil
}

func (g *fakeGateway) UpdateSummary(_ context.Context, _ *Ticket) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.summaryEdits++
	return nil
}

func (g *fakeGateway) IsAdmin(userID string) bool { return g.admins[userID] }
func (g *fakeGateway) IsBot(userID string) bool   { return g.bots[userID] }

// fakeSink counts archival dispatches.
type fakeSink struct {
	mu           sync.Mutex
	dispatches   int
	dispositions []Status
}

func (f *fakeSink) Archive(_ *Ticket, d Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatches++
	f.dispositions = append(f.dispositions, d)
}

func newTestService() (*Service, *fakeGateway, *fakeSink) {
	gw := newFakeGateway()
	sink := &fakeSink{}
	svc := NewService(NewStore(), gw, sink, nil)
	return svc, gw, sink
}

func openTicket(t *testing.T, svc *Service, creator string) *Ticket {
	t.Helper()
	tk, err := svc.Open(context.Background(), OpenForm{
		CreatorID:     creator,
		BuyerLabel:    "budi#123",
		SellerLabel:   "sari#456",
		Item:          "Akun ML Sultan",
		NominalRaw:    "30000",
		PaymentMethod: "DANA",
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return tk
}

func TestOpen(t *testing.T) {
	svc, gw, _ := newTestService()
	tk := openTicket(t, svc, "u-creator")

	if tk.Fee != 3_000 {
		t.Errorf("fee = %d, want 3000", tk.Fee)
	}
	if tk.Total != 33_000 {
		t.Errorf("total = %d, want 33000", tk.Total)
	}
	if tk.Status != StatusPending {
		t.Errorf("status = %q, want pending", tk.Status)
	}
	if len(tk.Participants) != 1 || tk.Participants[0] != "u-creator" {
		t.Errorf("participants = %v, want [u-creator]", tk.Participants)
	}
	if got, ok := svc.Store().Get(tk.ID); !ok || got != tk {
		t.Error("ticket not registered in store")
	}
	if len(gw.channels) != 1 || gw.channels[0] != fmt.Sprintf("rekber-%d", tk.ID) {
		t.Errorf("channels = %v", gw.channels)
	}
}

func TestOpen_InvalidAmount(t *testing.T) {
	svc, gw, _ := newTestService()
	for _, raw := range []string{"", "abc", "999", "Rp 500", "0"} {
		_, err := svc.Open(context.Background(), OpenForm{CreatorID: "u1", NominalRaw: raw})
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Open(nominal=%q) err = %v, want ErrInvalidAmount", raw, err)
		}
	}
	if len(gw.channels) != 0 {
		t.Error("invalid amount must not create a channel")
	}
}

func TestOpen_StripsNonDigits(t *testing.T) {
	svc, _, _ := newTestService()
	tk, err := svc.Open(context.Background(), OpenForm{CreatorID: "u1", NominalRaw: "Rp 150.000,-"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if tk.Nominal != 150_000 {
		t.Errorf("nominal = %d, want 150000", tk.Nominal)
	}
	// Boundary nominal: 150000 pays the 7000 tier, not 10000.
	if tk.Fee != 7_000 {
		t.Errorf("fee = %d, want 7000", tk.Fee)
	}
}

func TestOpen_ChannelFailureLeavesNoEntry(t *testing.T) {
	svc, gw, _ := newTestService()
	gw.createErr = errors.New("boom")
	if _, err := svc.Open(context.Background(), OpenForm{CreatorID: "u1", NominalRaw: "30000"}); err == nil {
		t.Fatal("expected error")
	}
	if svc.Store().Len() != 0 {
		t.Error("failed open must leave no store entry")
	}
}

func TestOpen_SummaryFailureTearsChannelDown(t *testing.T) {
	svc, gw, _ := newTestService()
	gw.postErr = errors.New("boom")
	if _, err := svc.Open(context.Background(), OpenForm{CreatorID: "u1", NominalRaw: "30000"}); err == nil {
		t.Fatal("expected error")
	}
	if svc.Store().Len() != 0 {
		t.Error("failed open must leave no store entry")
	}
	if len(gw.deleted) != 1 {
		t.Errorf("deleted channels = %v, want the fresh channel torn down", gw.deleted)
	}
}

func TestAddParticipant(t *testing.T) {
	svc, gw, _ := newTestService()
	tk := openTicket(t, svc, "u-creator")

	if err := svc.AddParticipant(context.Background(), tk.ID, RoleBuyer, "u-buyer", "u-staff"); err != nil {
		t.Fatalf("add buyer: %v", err)
	}
	if tk.BuyerID != "u-buyer" {
		t.Errorf("buyer = %q", tk.BuyerID)
	}
	if !tk.IsParticipant("u-buyer") {
		t.Error("buyer must join the participant set")
	}
	if len(gw.granted) != 1 {
		t.Errorf("granted = %v", gw.granted)
	}

	// Same user again as seller: set stays deduplicated, role not exclusive.
	if err := svc.AddParticipant(context.Background(), tk.ID, RoleSeller, "u-buyer", "u-staff"); err != nil {
		t.Fatalf("add seller: %v", err)
	}
	if tk.SellerID != "u-buyer" {
		t.Errorf("seller = %q", tk.SellerID)
	}
	if len(tk.Participants) != 2 {
		t.Errorf("participants = %v, want creator + one member", tk.Participants)
	}
}

func TestAddParticipant_BotRejected(t *testing.T) {
	svc, gw, _ := newTestService()
	tk := openTicket(t, svc, "u-creator")
	gw.bots["u-bot"] = true

	err := svc.AddParticipant(context.Background(), tk.ID, RoleBuyer, "u-bot", "u-staff")
	if !errors.Is(err, ErrInvalidParticipant) {
		t.Fatalf("err = %v, want ErrInvalidParticipant", err)
	}
	if len(gw.granted) != 0 {
		t.Error("bot must not be granted channel access")
	}
	if tk.IsParticipant("u-bot") {
		t.Error("bot must not join the participant set")
	}
}

func TestAddParticipant_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	if err := svc.AddParticipant(context.Background(), 42, RoleBuyer, "u1", "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestComplete(t *testing.T) {
	svc, gw, sink := newTestService()
	gw.admins["u-admin"] = true
	tk := openTicket(t, svc, "u-creator")

	if err := svc.Complete(context.Background(), tk.ID, "u-admin"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if tk.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", tk.Status)
	}
	if sink.dispatches != 1 {
		t.Errorf("archival dispatches = %d, want 1", sink.dispatches)
	}
	if sink.dispositions[0] != StatusCompleted {
		t.Errorf("disposition = %q", sink.dispositions[0])
	}
}

func TestComplete_NonAdmin(t *testing.T) {
	svc, _, sink := newTestService()
	tk := openTicket(t, svc, "u-creator")

	// Even the creator cannot self-certify completion.
	if err := svc.Complete(context.Background(), tk.ID, "u-creator"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if tk.Status != StatusPending {
		t.Errorf("status = %q, want pending unchanged", tk.Status)
	}
	if sink.dispatches != 0 {
		t.Error("unauthorized complete must not archive")
	}
}

func TestComplete_Twice(t *testing.T) {
	svc, gw, sink := newTestService()
	gw.admins["u-admin"] = true
	tk := openTicket(t, svc, "u-creator")

	if err := svc.Complete(context.Background(), tk.ID, "u-admin"); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	// Second press lands before teardown finalizes: a no-op, not a
	// second archival dispatch.
	if err := svc.Complete(context.Background(), tk.ID, "u-admin"); err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if sink.dispatches != 1 {
		t.Errorf("archival dispatches = %d, want 1", sink.dispatches)
	}
}

func TestCancel_Authorization(t *testing.T) {
	svc, _, sink := newTestService()
	tk := openTicket(t, svc, "u-creator")
	if err := svc.AddParticipant(context.Background(), tk.ID, RoleSeller, "u-seller", "u-staff"); err != nil {
		t.Fatalf("add: %v", err)
	}

	// A stranger without admin rights cannot cancel.
	if err := svc.Cancel(context.Background(), tk.ID, "u-stranger"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("stranger err = %v, want ErrUnauthorized", err)
	}
	if tk.Status != StatusPending {
		t.Errorf("status = %q, want pending", tk.Status)
	}

	// A participant can.
	if err := svc.Cancel(context.Background(), tk.ID, "u-seller"); err != nil {
		t.Fatalf("participant cancel: %v", err)
	}
	if tk.Status != StatusCancelled {
		t.Errorf("status = %q, want cancelled", tk.Status)
	}
	if sink.dispatches != 1 {
		t.Errorf("archival dispatches = %d, want 1", sink.dispatches)
	}
}

func TestCancel_AfterComplete(t *testing.T) {
	svc, gw, sink := newTestService()
	gw.admins["u-admin"] = true
	tk := openTicket(t, svc, "u-creator")

	if err := svc.Complete(context.Background(), tk.ID, "u-admin"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	// Terminal states never re-open.
	if err := svc.Cancel(context.Background(), tk.ID, "u-creator"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if tk.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", tk.Status)
	}
	if sink.dispatches != 1 {
		t.Errorf("archival dispatches = %d, want 1", sink.dispatches)
	}
}

func TestCancel_NotFound(t *testing.T) {
	svc, gw, _ := newTestService()
	gw.admins["u-admin"] = true
	if err := svc.Cancel(context.Background(), 7, "u-admin"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFinalize(t *testing.T) {
	svc, gw, _ := newTestService()
	gw.admins["u-admin"] = true
	tk := openTicket(t, svc, "u-creator")

	if err := svc.Complete(context.Background(), tk.ID, "u-admin"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	svc.Finalize(tk.ID)
	if _, ok := svc.Store().Get(tk.ID); ok {
		t.Error("finalized ticket must leave the store")
	}
	if err := svc.Complete(context.Background(), tk.ID, "u-admin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after finalize", err)
	}
}

func TestSnapshot(t *testing.T) {
	svc, _, _ := newTestService()
	tk := openTicket(t, svc, "u-creator")

	snap := svc.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot len = %d, want 1", len(snap))
	}
	if snap[0] == tk {
		t.Fatal("snapshot must not alias the live ticket")
	}

	if err := svc.AddParticipant(context.Background(), tk.ID, RoleBuyer, "u-buyer", "u-staff"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if snap[0].BuyerID != "" {
		t.Errorf("buyer = %q, later mutation must not show through the snapshot", snap[0].BuyerID)
	}
	if len(snap[0].Participants) != 1 {
		t.Errorf("participants = %v, want the creator only", snap[0].Participants)
	}
}

func TestSnapshot_ConcurrentMutation(t *testing.T) {
	svc, _, _ := newTestService()
	tk := openTicket(t, svc, "u-creator")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if err := svc.AddParticipant(context.Background(), tk.ID, RoleBuyer, fmt.Sprintf("u-%d", i), "u-staff"); err != nil {
				t.Errorf("add: %v", err)
				return
			}
		}
	}()

	// Marshalling the copies must stay safe while assignments are in
	// flight; the race detector watches this loop.
	for {
		if _, err := json.Marshal(svc.Snapshot()); err != nil {
			t.Fatalf("marshal: %v", err)
		}
		select {
		case <-done:
			return
		default:
		}
	}
}

func TestTotalInvariant(t *testing.T) {
	svc, gw, _ := newTestService()
	gw.admins["u-admin"] = true

	for _, raw := range []string{"1000", "9500", "49000", "150000", "500000"} {
		tk, err := svc.Open(context.Background(), OpenForm{CreatorID: "u1", NominalRaw: raw})
		if err != nil {
			t.Fatalf("open %q: %v", raw, err)
		}
		if tk.Total != tk.Nominal+tk.Fee {
			t.Errorf("nominal %s: total %d != nominal %d + fee %d", raw, tk.Total, tk.Nominal, tk.Fee)
		}
		if err := svc.Complete(context.Background(), tk.ID, "u-admin"); err != nil {
			t.Fatalf("complete: %v", err)
		}
		if tk.Total != tk.Nominal+tk.Fee {
			t.Errorf("nominal %s: invariant broken after completion", raw)
		}
	}
}
