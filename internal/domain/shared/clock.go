package shared

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock provides the current time. Services receive one explicitly so tests
// can pin time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant until advanced.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock pinned at now
func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now}
}

// Now returns the pinned time
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// IDGenerator produces identifiers for new records and audit events.
type IDGenerator interface {
	NewID() uuid.UUID
}

// UUIDGenerator generates random v4 UUIDs.
type UUIDGenerator struct{}

// NewID returns a new random UUID
func (UUIDGenerator) NewID() uuid.UUID {
	return uuid.New()
}

// SequenceIDGenerator hands out preset ids in order, then random ones.
type SequenceIDGenerator struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

// NewSequenceIDGenerator creates a generator returning ids in order
func NewSequenceIDGenerator(ids ...uuid.UUID) *SequenceIDGenerator {
	return &SequenceIDGenerator{ids: ids}
}

// NewID returns the next preset id
func (g *SequenceIDGenerator) NewID() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.ids) == 0 {
		return uuid.New()
	}
	id := g.ids[0]
	g.ids = g.ids[1:]
	return id
}
