package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nibsbin/quillmark/internal/models"
	"github.com/nibsbin/quillmark/internal/testutil"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "render.done", Data: map[string]string{"quill": "letter"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: render.done") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"quill":"letter"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishQuillEvent_CatalogThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First event should trigger catalog.updated.
	b.PublishQuillEvent(models.QuillEvent{Type: models.QuillAdded, Name: "letter", At: time.Now()})
	// Second event immediately should NOT trigger another catalog.updated.
	b.PublishQuillEvent(models.QuillEvent{Type: models.QuillUpdated, Name: "memo", At: time.Now()})

	// Drain and count events.
	time.Sleep(50 * time.Millisecond)
	catalogCount := 0
	quillCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "catalog.updated") {
				catalogCount++
			} else {
				quillCount++
			}
		default:
			break loop
		}
	}

	if quillCount != 2 {
		t.Errorf("quill events = %d, want 2", quillCount)
	}
	if catalogCount != 1 {
		t.Errorf("catalog events = %d, want 1 (throttled)", catalogCount)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	testutil.WaitFor(t, time.Second, func() bool {
		return b.ClientCount() == 1
	}, "handler to subscribe")

	b.PublishQuillEvent(models.QuillEvent{Type: models.QuillUpdated, Name: "letter", At: time.Now()})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: quill.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	testutil.WaitFor(t, time.Second, func() bool {
		return b.ClientCount() == 0
	}, "client cleanup after disconnect")
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: "render.done", Data: map[string]string{"quill": "letter"}})
	b.PublishQuillEvent(models.QuillEvent{Type: models.QuillUpdated, Name: "letter", At: time.Now()})
}
