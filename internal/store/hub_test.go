package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apotekpos/backend/internal/domain"
)

func TestHubDeliversToTenantSubscribersOnly(t *testing.T) {
	hub := NewHub()

	chA, cancelA := hub.Subscribe("tenant-a")
	defer cancelA()
	chB, cancelB := hub.Subscribe("tenant-b")
	defer cancelB()

	hub.Publish(domain.LedgerChangeEvent{TenantID: "tenant-a", ProductID: "P1", Available: 7})

	select {
	case evt := <-chA:
		assert.Equal(t, "P1", evt.ProductID)
		assert.Equal(t, 7, evt.Available)
	case <-time.After(time.Second):
		t.Fatal("tenant-a subscriber received nothing")
	}

	select {
	case evt := <-chB:
		t.Fatalf("tenant-b received foreign event: %+v", evt)
	default:
	}
}

func TestHubCancelIsIdempotent(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe("tenant-a")
	cancel()
	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open, "channel should be closed after cancel")

	// Publishing after cancel must not panic or block.
	hub.Publish(domain.LedgerChangeEvent{TenantID: "tenant-a", ProductID: "P1"})
}

func TestHubSlowSubscriberKeepsLatest(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe("tenant-a")
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Publish(domain.LedgerChangeEvent{TenantID: "tenant-a", ProductID: "P1", Available: i})
	}

	var last int
	for {
		select {
		case evt := <-ch:
			last = evt.Available
			continue
		default:
		}
		break
	}

	require.Equal(t, subscriberBuffer+9, last, "latest reading must survive backpressure")
}
