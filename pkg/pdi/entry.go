// Package pdi implements the per-entry process-data buffers synchronized
// against the shared Process Data Image once per bus cycle, and the typed
// references applications use to read and write them.
package pdi

import (
	"fmt"
	"sync"

	ethercat "github.com/samsamfire/goethercat"
	"github.com/samsamfire/goethercat/internal/bits"
	"github.com/samsamfire/goethercat/pkg/coe"
)

// Entry owns the binary image of a single PDO entry. The buffer holds
// the entry's bits at the same sub-byte alignment they occupy inside
// the PDI, so the per-cycle update is a plain byte copy and codecs
// receive the intra-byte offset.
//
// An Input entry is written only by [Entry.UpdateFromPdi] and read by
// the application; an Output entry is written by the application and
// read by [Entry.UpdateToPdi]. Each entry carries its own lock so
// applications can access different entries concurrently within a cycle.
type Entry struct {
	name      string
	typ       coe.Type
	direction ethercat.Direction
	bitSize   int
	bitOffset int
	mu        sync.Mutex
	buffer    []byte
}

// NewEntry allocates an entry buffer for bitSize bits living at
// bitOffset inside the PDI of the given direction
func NewEntry(name string, typ coe.Type, direction ethercat.Direction, bitSize int, bitOffset int) *Entry {
	return &Entry{
		name:      name,
		typ:       typ,
		direction: direction,
		bitSize:   bitSize,
		bitOffset: bitOffset,
		buffer:    make([]byte, bits.BufferLen(bitOffset%8, bitSize)),
	}
}

func (e *Entry) Name() string                  { return e.name }
func (e *Entry) Type() coe.Type                { return e.typ }
func (e *Entry) Direction() ethercat.Direction { return e.direction }
func (e *Entry) BitSize() int                  { return e.bitSize }

// BitOffset returns the entry's bit offset inside the whole PDI
func (e *Entry) BitOffset() int { return e.bitOffset }

// IntraByteOffset returns the sub-byte part of the PDI bit offset,
// which is also the payload's offset inside the entry buffer
func (e *Entry) IntraByteOffset() int { return e.bitOffset % 8 }

// ByteLen returns the size of the entry buffer
func (e *Entry) ByteLen() int { return len(e.buffer) }

func (e *Entry) pdiRange(pdiLen int) (int, error) {
	first := e.bitOffset / 8
	if first+len(e.buffer) > pdiLen {
		return 0, fmt.Errorf("%w : entry %q spans bytes [%d, %d) of a %d byte PDI",
			ethercat.ErrBufferTooSmall, e.name, first, first+len(e.buffer), pdiLen)
	}
	return first, nil
}

// UpdateFromPdi refreshes the entry buffer from the shared input PDI.
// Called once per cycle by the owning slave while the master holds the
// input-PDI lock.
func (e *Entry) UpdateFromPdi(pdi []byte) error {
	first, err := e.pdiRange(len(pdi))
	if err != nil {
		return err
	}
	e.mu.Lock()
	copy(e.buffer, pdi[first:first+len(e.buffer)])
	e.mu.Unlock()
	return nil
}

// UpdateToPdi merges the entry's bits into the shared output PDI,
// preserving neighbouring bits in shared boundary bytes. Called once
// per cycle while the master holds the output-PDI lock.
func (e *Entry) UpdateToPdi(pdi []byte) error {
	first, err := e.pdiRange(len(pdi))
	if err != nil {
		return err
	}
	e.mu.Lock()
	bits.MergeAligned(pdi[first:], e.buffer, e.bitOffset%8, e.bitSize)
	e.mu.Unlock()
	return nil
}

// WithBuffer gives a codec exclusive access to the entry buffer for the
// duration of the callback. The critical section should stay short.
func (e *Entry) WithBuffer(f func(buffer []byte) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return f(e.buffer)
}
