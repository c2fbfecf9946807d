package feed

import (
	"context"
	"testing"
	"time"
)

func TestPublishReachesListener(t *testing.T) {
	svc := NewService(ServiceConfig{FlushInterval: 10 * time.Millisecond})
	defer svc.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	updates, stop := svc.Listen(ctx)
	defer stop()

	svc.Publish(Update{Type: UpdateTypeRoll, GameID: "game-1", RollID: "r1", Tier: "small"})
	svc.Publish(Update{Type: UpdateTypeDelivery, GameID: "game-1", RollID: "r1", Tier: "small", Actor: "admin-1"})

	var got []Update
	for len(got) < 2 {
		select {
		case u := <-updates:
			got = append(got, u)
		case <-ctx.Done():
			t.Fatalf("timed out, received %d updates", len(got))
		}
	}

	// Flush preserves publish order
	if got[0].Type != UpdateTypeRoll || got[1].Type != UpdateTypeDelivery {
		t.Errorf("unexpected order: %s then %s", got[0].Type, got[1].Type)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("timestamp not defaulted on publish")
	}
}

func TestEveryListenerReceivesAllUpdates(t *testing.T) {
	svc := NewService(ServiceConfig{FlushInterval: 10 * time.Millisecond})
	defer svc.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first, stopFirst := svc.Listen(ctx)
	defer stopFirst()
	second, stopSecond := svc.Listen(ctx)
	defer stopSecond()

	svc.Publish(Update{Type: UpdateTypeRoll, GameID: "game-1", RollID: "r1", Tier: "large"})
	svc.Publish(Update{Type: UpdateTypeGrant, GameID: "game-1", Count: 3, Actor: "admin-1"})

	receive := func(name string, ch <-chan Update) []Update {
		var got []Update
		for len(got) < 2 {
			select {
			case u := <-ch:
				got = append(got, u)
			case <-ctx.Done():
				t.Fatalf("%s listener timed out, received %d updates", name, len(got))
			}
		}
		return got
	}

	// Both listeners see the full stream, not a split of it
	for name, got := range map[string][]Update{
		"first":  receive("first", first),
		"second": receive("second", second),
	} {
		if got[0].Type != UpdateTypeRoll || got[1].Type != UpdateTypeGrant {
			t.Errorf("%s listener got unexpected stream: %s then %s", name, got[0].Type, got[1].Type)
		}
	}
}

func TestListenerCancelStopsChannel(t *testing.T) {
	svc := NewService(ServiceConfig{FlushInterval: 10 * time.Millisecond})
	defer svc.Stop()

	updates, stop := svc.Listen(context.Background())
	stop()

	// Channel closes once the listener context is cancelled
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-updates:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("listener channel did not close after cancel")
		}
	}
}
