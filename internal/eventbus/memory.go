package eventbus

import "sync"

// MemoryPublisher stores events in-memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) bool {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	return true
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// OfKind returns the recorded events of kind k in publish order.
func (p *MemoryPublisher) OfKind(k Kind) []Event {
	var out []Event
	for _, e := range p.Events() {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}
