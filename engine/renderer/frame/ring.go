package frame

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framering/engine/renderer/deletion"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

// Stats are the fence wait counters of a ring.
type Stats struct {
	Waits    uint64
	Timeouts uint64
}

// Ring is the fixed set of frame slots. Frame F uses slot F mod N.
type Ring struct {
	dev   gpu.Device
	slots []*Slot
}

func NewRing(dev gpu.Device, n int, queue *deletion.Queue) (*Ring, error) {
	if n <= 0 {
		return nil, errors.AssertionFailedf("frame ring needs at least one slot, got %d", n)
	}
	ring := &Ring{dev: dev, slots: make([]*Slot, n)}
	for i := range ring.slots {
		slot, err := NewSlot(dev, i, queue)
		if err != nil {
			return nil, errors.Wrapf(err, "could not create frame slot %d", i)
		}
		ring.slots[i] = slot
	}
	return ring, nil
}

func (r *Ring) Len() int {
	return len(r.slots)
}

// Index returns the slot index used by frameNumber.
func (r *Ring) Index(frameNumber uint64) int {
	return int(frameNumber % uint64(len(r.slots)))
}

// Slot returns the slot used by frameNumber.
func (r *Ring) Slot(frameNumber uint64) *Slot {
	return r.slots[r.Index(frameNumber)]
}

// Slots returns every slot ordered by index.
func (r *Ring) Slots() []*Slot {
	return r.slots
}

// WaitAll waits for every submitted slot. It is used before teardown.
func (r *Ring) WaitAll(timeout time.Duration) error {
	var errs error
	for _, slot := range r.slots {
		if slot.state != StateSubmitted {
			continue
		}
		if err := slot.Wait(r.dev, timeout); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}

func (r *Ring) Stats() Stats {
	var s Stats
	for _, slot := range r.slots {
		s.Waits += slot.waits
		s.Timeouts += slot.timeouts
	}
	return s
}
