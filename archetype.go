package ecs

import (
	"sort"
	"unsafe"
)

// archetype is column-oriented storage for all entities sharing exactly
// one set of component types (spec §3, §4.3). Columns are contiguous
// typed byte buffers; each column carries a parallel per-slot epoch array
// used for change detection, and the archetype caches the column's
// maximum epoch to let queries skip whole archetypes cheaply.
type archetype struct {
	index     int
	mask      componentMask
	compOrder []uint8 // canonical order: ascending by component type key
	info      [MaxComponentTypes]*componentDescriptor

	cols      [MaxComponentTypes][]byte
	colEpochs [MaxComponentTypes][]Epoch
	colCache  [MaxComponentTypes]Epoch

	entities []EId
	size     int

	addEdges    [MaxComponentTypes]*archetype
	removeEdges [MaxComponentTypes]*archetype

	colBorrow [MaxComponentTypes]borrowCell
}

func newArchetype(index int, mask componentMask, infos []*componentDescriptor) *archetype {
	order := make([]uint8, len(infos))
	sorted := append([]*componentDescriptor(nil), infos...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].key < sorted[j].key })
	for i, d := range sorted {
		order[i] = d.id
	}
	a := &archetype{
		index:     index,
		mask:      mask,
		compOrder: order,
	}
	for _, d := range infos {
		a.info[d.id] = d
	}
	return a
}

func (a *archetype) hasColumn(id uint8) bool { return a.info[id] != nil }

// colBase returns a pointer to the backing storage of column id, or nil
// if the column has zero capacity.
func (a *archetype) colBase(id uint8) unsafe.Pointer {
	b := a.cols[id]
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}

func (a *archetype) rowPtr(id uint8, row int) unsafe.Pointer {
	size := a.info[id].size
	return unsafe.Pointer(uintptr(a.colBase(id)) + uintptr(row)*size)
}

// ensureCap grows every column, the epoch arrays, and the entity list to
// accommodate at least n rows.
func (a *archetype) ensureCap(n int) {
	if n <= len(a.entities) {
		return
	}
	newCap := maxInt(2*len(a.entities), n)
	newEntities := make([]EId, newCap)
	copy(newEntities, a.entities)
	a.entities = newEntities
	for _, id := range a.compOrder {
		size := a.info[id].size
		newBytes := make([]byte, newCap*int(size))
		copy(newBytes, a.cols[id])
		a.cols[id] = newBytes
		newEpochs := make([]Epoch, newCap)
		copy(newEpochs, a.colEpochs[id])
		a.colEpochs[id] = newEpochs
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// appendRow reserves a new row for e, growing storage if needed, and
// returns the row index. Component values in the new row are zeroed.
func (a *archetype) appendRow(e EId) int {
	a.ensureCap(a.size + 1)
	row := a.size
	a.entities[row] = e
	for _, id := range a.compOrder {
		size := int(a.info[id].size)
		clear(a.cols[id][row*size : (row+1)*size])
		a.colEpochs[id][row] = 0
	}
	a.size++
	return row
}

// swapRemove removes row from the archetype using swap-remove: the last
// row's entity is moved into the vacated slot. It returns the moved
// entity and true if a move happened (row was not already the last row).
func (a *archetype) swapRemove(row int) (moved EId, didMove bool) {
	last := a.size - 1
	if row < last {
		a.entities[row] = a.entities[last]
		for _, id := range a.compOrder {
			size := int(a.info[id].size)
			src := a.cols[id][last*size : (last+1)*size]
			dst := a.cols[id][row*size : (row+1)*size]
			copy(dst, src)
			a.colEpochs[id][row] = a.colEpochs[id][last]
		}
		moved = a.entities[row]
		didMove = true
	}
	a.size--
	return moved, didMove
}

// stamp marks column id's row as written at the given epoch, updating both
// the per-slot epoch and the archetype-level cache for that column.
func (a *archetype) stamp(id uint8, row int, epoch Epoch) {
	a.colEpochs[id][row] = epoch
	if epoch > a.colCache[id] {
		a.colCache[id] = epoch
	}
}

func (a *archetype) epochAt(id uint8, row int) Epoch {
	return a.colEpochs[id][row]
}

// copyRow copies every column that both src and dst have from src's row
// to dst's row, including the per-slot epoch (a physical move of an
// existing value is not a semantic mutation, spec §4.3).
func copyRow(dst *archetype, dstRow int, src *archetype, srcRow int) {
	for _, id := range src.compOrder {
		if !dst.hasColumn(id) {
			continue
		}
		size := int(src.info[id].size)
		s := src.cols[id][srcRow*size : (srcRow+1)*size]
		d := dst.cols[id][dstRow*size : (dstRow+1)*size]
		copy(d, s)
		dst.colEpochs[id][dstRow] = src.colEpochs[id][srcRow]
		if dst.colEpochs[id][dstRow] > dst.colCache[id] {
			dst.colCache[id] = dst.colEpochs[id][dstRow]
		}
	}
}
