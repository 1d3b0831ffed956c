package events

import (
	"testing"
	"time"

	"github.com/notelib/score-intake/internal/core/domain"
)

func progressEvent(jobID, sessionID string) domain.ProgressEvent {
	return domain.ProgressEvent{
		JobID:     jobID,
		SessionID: sessionID,
		Type:      domain.EventProgress,
		Data:      domain.ProgressData{Step: "fingerprinting", Percent: 30},
	}
}

func drain(ch <-chan domain.ProgressEvent) []domain.ProgressEvent {
	var got []domain.ProgressEvent
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, evt)
		case <-time.After(50 * time.Millisecond):
			return got
		}
	}
}

func TestBusFansOutToAllSubscribers(t *testing.T) {
	bus := NewBus(nil)
	ch1, cancel1 := bus.Subscribe("")
	ch2, cancel2 := bus.Subscribe("")
	defer cancel1()
	defer cancel2()

	bus.Publish(progressEvent("job-1", "sess-a"))

	for i, ch := range []<-chan domain.ProgressEvent{ch1, ch2} {
		got := drain(ch)
		if len(got) != 1 {
			t.Fatalf("subscriber %d: expected 1 event, got %d", i, len(got))
		}
		if got[0].Timestamp.IsZero() {
			t.Fatalf("publish must stamp the event")
		}
	}
}

func TestBusSessionFilter(t *testing.T) {
	bus := NewBus(nil)
	chA, cancelA := bus.Subscribe("sess-a")
	defer cancelA()

	bus.Publish(progressEvent("job-1", "sess-a"))
	bus.Publish(progressEvent("job-2", "sess-b"))

	got := drain(chA)
	if len(got) != 1 {
		t.Fatalf("expected exactly the sess-a event, got %d events", len(got))
	}
	if got[0].SessionID != "sess-a" {
		t.Fatalf("filtered subscriber received event for %s", got[0].SessionID)
	}
}

func TestBusTerminalLatch(t *testing.T) {
	bus := NewBus(nil)
	ch, cancel := bus.Subscribe("")
	defer cancel()

	bus.Publish(progressEvent("job-1", "sess-a"))
	bus.Publish(domain.ProgressEvent{
		JobID: "job-1", SessionID: "sess-a",
		Type: domain.EventCompleted,
		Data: domain.CompletedData{Policy: domain.PolicyNewPiece},
	})
	// Late events for a terminal job must be dropped for everyone.
	bus.Publish(progressEvent("job-1", "sess-a"))
	bus.Publish(domain.ProgressEvent{JobID: "job-1", Type: domain.EventFailed, Data: domain.FailedData{Reason: "late"}})

	got := drain(ch)
	if len(got) != 2 {
		t.Fatalf("expected progress+completed only, got %d events", len(got))
	}
	if got[1].Type != domain.EventCompleted {
		t.Fatalf("expected completed terminal event, got %s", got[1].Type)
	}
}

func TestBusSlowSubscriberIsSkipped(t *testing.T) {
	bus := NewBus(nil)
	bus.buffer = 1
	slow, cancelSlow := bus.Subscribe("")
	fast, cancelFast := bus.Subscribe("")
	defer cancelSlow()
	defer cancelFast()

	// Nobody reads `slow`; its 1-slot buffer fills after the first event.
	for i := 0; i < 5; i++ {
		bus.Publish(progressEvent("job-1", "sess-a"))
		drain(fast)
	}

	if got := drain(slow); len(got) != 1 {
		t.Fatalf("slow subscriber should hold only its buffered event, got %d", len(got))
	}
}

func TestBusUnsubscribeIsScoped(t *testing.T) {
	bus := NewBus(nil)
	ch1, cancel1 := bus.Subscribe("sess-a")
	ch2, cancel2 := bus.Subscribe("sess-a")
	defer cancel2()

	cancel1()
	cancel1() // idempotent

	if _, ok := <-ch1; ok {
		t.Fatalf("cancelled subscription channel must be closed")
	}

	bus.Publish(progressEvent("job-1", "sess-a"))
	if got := drain(ch2); len(got) != 1 {
		t.Fatalf("remaining subscriber must keep receiving, got %d events", len(got))
	}
}

func TestBusForgetReleasesLatch(t *testing.T) {
	bus := NewBus(nil)
	bus.Publish(domain.ProgressEvent{JobID: "job-1", Type: domain.EventCompleted})
	bus.Forget("job-1")

	ch, cancel := bus.Subscribe("")
	defer cancel()
	bus.Publish(progressEvent("job-1", ""))
	if got := drain(ch); len(got) != 1 {
		t.Fatalf("forgotten job must accept events again, got %d", len(got))
	}
}
