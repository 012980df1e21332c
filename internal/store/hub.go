package store

import (
	"sync"

	"apotekpos/backend/internal/domain"
)

const subscriberBuffer = 64

// Hub fans ledger change events out to per-tenant subscribers. Publish never
// blocks: a subscriber that falls more than subscriberBuffer events behind
// loses the oldest notifications, which is acceptable because every event
// carries the absolute post-write quantity.
type Hub struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan domain.LedgerChangeEvent
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan domain.LedgerChangeEvent)}
}

func (h *Hub) Subscribe(tenantID string) (<-chan domain.LedgerChangeEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++

	ch := make(chan domain.LedgerChangeEvent, subscriberBuffer)
	if h.subs[tenantID] == nil {
		h.subs[tenantID] = make(map[int]chan domain.LedgerChangeEvent)
	}
	h.subs[tenantID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[tenantID][id]; ok {
				delete(h.subs[tenantID], id)
				close(sub)
			}
		})
	}

	return ch, cancel
}

func (h *Hub) Publish(event domain.LedgerChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[event.TenantID] {
		select {
		case ch <- event:
		default:
			// Drop the oldest event to make room for the newest reading.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
			}
		}
	}
}
