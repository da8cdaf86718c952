package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakePoster struct {
	mu      sync.Mutex
	posts   []string // content
	deleted []string // messageID
	nextID  int
	postErr error
}

func (f *fakePoster) Post(_ context.Context, _ string, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", f.postErr
	}
	f.nextID++
	f.posts = append(f.posts, content)
	return fmt.Sprintf("msg-%d", f.nextID), nil
}

func (f *fakePoster) Delete(_ context.Context, _ string, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakePoster) counts() (posts, deleted int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts), len(f.deleted)
}

func TestRepeaterReplacesPrevious(t *testing.T) {
	p := &fakePoster{}
	r, err := NewRepeater(p, "c-warn", "Awas penipuan!", "@every 1h", nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	r.post(context.Background())
	r.post(context.Background())
	r.post(context.Background())

	posts, deleted := p.counts()
	if posts != 3 {
		t.Errorf("posts = %d, want 3", posts)
	}
	// Each repost deletes exactly the previous copy.
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deleted[0] != "msg-1" || p.deleted[1] != "msg-2" {
		t.Errorf("deleted = %v", p.deleted)
	}
}

func TestRepeaterPostFailureKeepsGoing(t *testing.T) {
	p := &fakePoster{postErr: errors.New("rate limited")}
	r, err := NewRepeater(p, "c-warn", "Awas penipuan!", "@every 1h", nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	r.post(context.Background())
	p.mu.Lock()
	p.postErr = nil
	p.mu.Unlock()
	r.post(context.Background())

	posts, deleted := p.counts()
	if posts != 1 {
		t.Errorf("posts = %d, want 1", posts)
	}
	// Nothing to replace after a failed post.
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
}

func TestRepeaterRejectsBadSchedule(t *testing.T) {
	if _, err := NewRepeater(&fakePoster{}, "c", "m", "not-a-schedule", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestRepeaterStartPostsImmediately(t *testing.T) {
	p := &fakePoster{}
	r, err := NewRepeater(p, "c-warn", "Awas penipuan!", "@every 1h", nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if posts, _ := p.counts(); posts >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no post after Start")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestTransient(t *testing.T) {
	p := &fakePoster{}
	if err := Transient(context.Background(), p, "c1", "tunggu 2 menit 31 detik", 10*time.Millisecond, nil); err != nil {
		t.Fatalf("transient: %v", err)
	}

	if posts, _ := p.counts(); posts != 1 {
		t.Fatalf("posts = %d, want 1", posts)
	}

	deadline := time.After(2 * time.Second)
	for {
		if _, deleted := p.counts(); deleted == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("transient message never deleted")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTransientPostFailure(t *testing.T) {
	p := &fakePoster{postErr: errors.New("missing access")}
	if err := Transient(context.Background(), p, "c1", "x", time.Millisecond, nil); err == nil {
		t.Fatal("expected error")
	}
}
