package event

import (
	"sync"
	"testing"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := NewBus()

	var received []Event
	bus.Subscribe(TypePhaseStarted, func(e Event) {
		received = append(received, e)
	})

	bus.Publish(NewPhaseStartedEvent("s1", "planning"))
	bus.Publish(NewLockAcquiredEvent("lock-1", "exec-1", "pkg/a.go", "write"))

	if len(received) != 1 {
		t.Fatalf("received %d events, want 1", len(received))
	}
	started, ok := received[0].(PhaseStartedEvent)
	if !ok {
		t.Fatalf("received event has type %T, want PhaseStartedEvent", received[0])
	}
	if started.Phase != "planning" || started.SessionID != "s1" {
		t.Errorf("event = %+v, want session s1 phase planning", started)
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewBus()

	var count int
	bus.SubscribeAll(func(Event) { count++ })

	bus.Publish(NewPhaseStartedEvent("s1", "qa"))
	bus.Publish(NewPhaseCompletedEvent("s1", "qa", 1.5))
	bus.Publish(NewLockReleasedEvent("lock-1", "exec-1", "pkg/a.go"))

	if count != 3 {
		t.Errorf("wildcard handler called %d times, want 3", count)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()

	var count int
	id := bus.Subscribe(TypePhaseRetry, func(Event) { count++ })

	bus.Publish(NewPhaseRetryEvent("s1", "execution", 1, 3, "no commits"))
	if !bus.Unsubscribe(id) {
		t.Fatal("Unsubscribe should find the subscription")
	}
	bus.Publish(NewPhaseRetryEvent("s1", "execution", 2, 3, "no commits"))

	if count != 1 {
		t.Errorf("handler called %d times, want 1", count)
	}
	if bus.Unsubscribe(id) {
		t.Error("second Unsubscribe should return false")
	}
}

func TestHasSubscribers(t *testing.T) {
	bus := NewBus()

	if bus.HasSubscribers(TypeLifecycleError) {
		t.Error("new bus should have no subscribers")
	}

	id := bus.Subscribe(TypeLifecycleError, func(Event) {})
	if !bus.HasSubscribers(TypeLifecycleError) {
		t.Error("specific subscription should count")
	}
	if bus.HasSubscribers(TypePhaseStarted) {
		t.Error("subscription for another type should not count")
	}

	bus.Unsubscribe(id)
	bus.SubscribeAll(func(Event) {})
	if !bus.HasSubscribers(TypeLifecycleError) {
		t.Error("wildcard subscription should count for every type")
	}
}

func TestPanickingHandlerDoesNotBlockDelivery(t *testing.T) {
	bus := NewBus()

	var delivered bool
	bus.Subscribe(TypePhaseStarted, func(Event) { panic("boom") })
	bus.Subscribe(TypePhaseStarted, func(Event) { delivered = true })

	bus.Publish(NewPhaseStartedEvent("s1", "report"))

	if !delivered {
		t.Error("second handler should run despite first panicking")
	}
}

func TestConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0
	bus.SubscribeAll(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				bus.Publish(NewPhaseStartedEvent("s1", "execution"))
			}
		}()
	}
	wg.Wait()

	if count != 200 {
		t.Errorf("handler called %d times, want 200", count)
	}
}

func TestClear(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(TypePhaseStarted, func(Event) {})
	bus.SubscribeAll(func(Event) {})

	if got := bus.SubscriptionCount(); got != 2 {
		t.Fatalf("SubscriptionCount() = %d, want 2", got)
	}
	bus.Clear()
	if got := bus.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() after Clear = %d, want 0", got)
	}
}
