// Package handle implements the table behind the handle shape: opaque
// guest-visible integers naming host-side resources.
//
// The shim layer converts a raw ABI word into a Handle without looking it
// up; resolving the handle to its host value is the handler's business,
// through the table carried on the call context.
package handle

import (
	"fmt"
	"sync"
)

// Handle is an opaque reference to a host resource. Handle 0 is reserved
// and always invalid.
type Handle uint32

// String renders the display form used by call tracing.
func (h Handle) String() string {
	return fmt.Sprintf("handle(%d)", uint32(h))
}

// Dropper is implemented by values that need cleanup when removed.
type Dropper interface {
	Drop()
}

type entry struct {
	value  any
	typeID uint32
	valid  bool
}

// Table is an in-memory handle table with slot reuse. Safe for concurrent
// use.
type Table struct {
	entries  []entry
	freeList []Handle
	mu       sync.RWMutex
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// Insert stores a value under a type id and returns its handle.
func (t *Table) Insert(typeID uint32, value any) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := entry{typeID: typeID, value: value, valid: true}

	if n := len(t.freeList); n > 0 {
		h := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[h-1] = e
		return h
	}

	t.entries = append(t.entries, e)
	return Handle(len(t.entries))
}

// Get retrieves a value by handle.
func (t *Table) Get(h Handle) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if h == 0 || int(h) > len(t.entries) || !t.entries[h-1].valid {
		return nil, false
	}
	return t.entries[h-1].value, true
}

// GetTyped retrieves a value only if it matches the expected type id.
func (t *Table) GetTyped(h Handle, typeID uint32) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if h == 0 || int(h) > len(t.entries) {
		return nil, false
	}
	e := t.entries[h-1]
	if !e.valid || e.typeID != typeID {
		return nil, false
	}
	return e.value, true
}

// Remove drops a handle and returns its value. Values implementing Dropper
// are cleaned up.
func (t *Table) Remove(h Handle) (any, bool) {
	t.mu.Lock()
	if h == 0 || int(h) > len(t.entries) || !t.entries[h-1].valid {
		t.mu.Unlock()
		return nil, false
	}
	value := t.entries[h-1].value
	t.entries[h-1] = entry{}
	t.freeList = append(t.freeList, h)
	t.mu.Unlock()

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}
	return value, true
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, e := range t.entries {
		if e.valid {
			n++
		}
	}
	return n
}

// Clear drops every live handle.
func (t *Table) Clear() {
	t.mu.Lock()
	var dropped []any
	for i, e := range t.entries {
		if e.valid {
			dropped = append(dropped, e.value)
			t.entries[i] = entry{}
			t.freeList = append(t.freeList, Handle(i+1))
		}
	}
	t.mu.Unlock()

	for _, v := range dropped {
		if d, ok := v.(Dropper); ok {
			d.Drop()
		}
	}
}
