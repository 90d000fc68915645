package heap

// PageCapacity bounds how many live tuple slots a single page carries
// before allocation grows the buffer by one page (spec §4.E: "Allocation
// picks a page with enough free space (or grows by one)"). Unlike the
// original byte-addressed page, a page here is a slot directory sized in
// tuple count — the byte-level free-space bookkeeping that matters in a
// C heap is not a concern once payloads are Go-native values.
const PageCapacity = 256

// Page holds a tuple slot directory: one entry per SlotNo, nil where the
// slot is free.
type Page struct {
	No    PageNo
	Slots []*Tuple
}

func newPage(no PageNo) *Page {
	return &Page{No: no, Slots: make([]*Tuple, 0, PageCapacity)}
}

// freeSlot finds the first free (tombstoned) slot in the page, if any.
func (p *Page) freeSlot() (SlotNo, bool) {
	for i, s := range p.Slots {
		if s == nil {
			return SlotNo(i), true
		}
	}
	return 0, false
}

// hasRoom reports whether this page can accept another tuple without
// reusing a tombstoned slot.
func (p *Page) hasRoom() bool {
	return len(p.Slots) < PageCapacity
}
