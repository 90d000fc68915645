package heap

import (
	"fmt"
	"sync"

	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/cuemby/shardbridge/pkg/memscope"
	"github.com/cuemby/shardbridge/pkg/metrics"
)

// Buffer is one open heap buffer: its owning memory scope, its page list,
// and the TupleDef its tuples are laid out against (spec §4.E).
type Buffer struct {
	No     HeapBufferNo
	Scope  *memscope.Scope
	Def    *catalog.TupleDef
	Owner  string
	mu     sync.Mutex
	Pages  []*Page
	closed bool
}

// Release implements memscope.Releaser, letting a Buffer be tracked
// directly by the Scope that owns it — closing the scope closes the
// buffer.
func (b *Buffer) Release() error {
	return closeBuffer(b)
}

// BufferTable is the process-wide table mapping HeapBufferNo to open
// Buffer state (spec §4.E: "A global table maps buffer numbers to buffer
// state").
type BufferTable struct {
	mu      sync.Mutex
	buffers map[HeapBufferNo]*Buffer
	next    HeapBufferNo
}

// NewBufferTable creates an empty buffer table.
func NewBufferTable() *BufferTable {
	return &BufferTable{buffers: make(map[HeapBufferNo]*Buffer), next: 1}
}

// Open allocates a new buffer slot scoped to scope, targeting tuples laid
// out by def. Opening inside a transaction is expressed by passing that
// transaction's own child Scope — closing it closes this buffer too
// (spec §4.E: "Opening inside a transaction ties the buffer's scope to the
// transaction").
func (t *BufferTable) Open(scope *memscope.Scope, def *catalog.TupleDef, owner string) (HeapBufferNo, error) {
	t.mu.Lock()
	no := t.next
	t.next++
	b := &Buffer{No: no, Scope: scope, Def: def, Owner: owner}
	t.buffers[no] = b
	t.mu.Unlock()

	if err := scope.Track(b); err != nil {
		return 0, err
	}
	return no, nil
}

// Buffer resolves an open buffer by number.
func (t *BufferTable) Buffer(no HeapBufferNo) (*Buffer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.buffers[no]
	if !ok || b.closed {
		return nil, false
	}
	return b, true
}

// Close releases every page of buffer no — invoking per-field destructors
// for types that registered one — and removes it from the table. Releasing
// the buffer's memory scope is the caller's responsibility when the scope
// is shared with other trackables (e.g. a transaction); closing via the
// Scope's own Destroy is the usual path.
func (t *BufferTable) Close(no HeapBufferNo) error {
	t.mu.Lock()
	b, ok := t.buffers[no]
	if ok {
		delete(t.buffers, no)
	}
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("heap: buffer %d is not open", no)
	}
	return closeBuffer(b)
}

func closeBuffer(b *Buffer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	for _, page := range b.Pages {
		for _, tup := range page.Slots {
			if tup == nil {
				continue
			}
			if err := tup.Release(); err != nil {
				return err
			}
		}
	}
	b.Pages = nil
	b.closed = true
	return nil
}

// Allocate constructs a new tuple in buffer no — picking a page with a free
// slot or growing the buffer by one page — and returns it; the tuple's
// Pointer field holds its HTP (spec §4.E).
func (t *BufferTable) Allocate(no HeapBufferNo, fromBackend bool) (*Tuple, error) {
	b, ok := t.Buffer(no)
	if !ok {
		return nil, fmt.Errorf("heap: buffer %d is not open", no)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var page *Page
	var pageIdx int
	for i, p := range b.Pages {
		if p.hasRoom() {
			page, pageIdx = p, i
			break
		}
		if slot, ok := p.freeSlot(); ok {
			htp := PackHTP(no, p.No, slot)
			tup, err := NewTuple(htp, b.Def, fromBackend)
			if err != nil {
				return nil, err
			}
			p.Slots[slot] = tup
			metrics.TuplesAllocated.WithLabelValues(b.Def.Name).Inc()
			return tup, nil
		}
	}
	if page == nil {
		page = newPage(PageNo(len(b.Pages)))
		b.Pages = append(b.Pages, page)
		pageIdx = len(b.Pages) - 1
		metrics.PagesAllocated.WithLabelValues(b.Owner).Inc()
	}

	slot := SlotNo(len(page.Slots))
	htp := PackHTP(no, page.No, slot)
	tup, err := NewTuple(htp, b.Def, fromBackend)
	if err != nil {
		return nil, err
	}
	page.Slots = append(page.Slots, tup)
	b.Pages[pageIdx] = page
	metrics.TuplesAllocated.WithLabelValues(b.Def.Name).Inc()
	return tup, nil
}

// Deref resolves an HTP to its tuple, validating the buffer is open and the
// slot in range (spec §4.E: "Dereferencing an HTP validates buffer-open,
// resolves page, reads slot offset").
func (t *BufferTable) Deref(ptr HTP) (*Tuple, error) {
	bufNo, pageNo, slotNo := ptr.Unpack()
	b, ok := t.Buffer(bufNo)
	if !ok {
		return nil, fmt.Errorf("heap: buffer %d is not open", bufNo)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(pageNo) >= len(b.Pages) {
		return nil, fmt.Errorf("heap: page %d out of range in buffer %d", pageNo, bufNo)
	}
	page := b.Pages[pageNo]
	if int(slotNo) >= len(page.Slots) || page.Slots[slotNo] == nil {
		return nil, fmt.Errorf("heap: slot %d in page %d of buffer %d is empty", slotNo, pageNo, bufNo)
	}
	return page.Slots[slotNo], nil
}

// Free tombstones a tuple's slot without shrinking the page, making it
// available for reuse by a later Allocate.
func (t *BufferTable) Free(ptr HTP) error {
	bufNo, pageNo, slotNo := ptr.Unpack()
	b, ok := t.Buffer(bufNo)
	if !ok {
		return fmt.Errorf("heap: buffer %d is not open", bufNo)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(pageNo) >= len(b.Pages) {
		return fmt.Errorf("heap: page %d out of range in buffer %d", pageNo, bufNo)
	}
	page := b.Pages[pageNo]
	if int(slotNo) >= len(page.Slots) {
		return fmt.Errorf("heap: slot %d out of range in page %d", slotNo, pageNo)
	}
	tup := page.Slots[slotNo]
	if tup == nil {
		return nil
	}
	if err := tup.Release(); err != nil {
		return err
	}
	page.Slots[slotNo] = nil
	return nil
}
