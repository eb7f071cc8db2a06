package ecs

import "reflect"

// projectionsAt collects every BorrowDescriptor projection targeting
// Target across all components present on the View's current row (spec
// §4.4 "Special fetches ... apply the borrow-descriptor system to
// project a (possibly unsized) view of a type out of one or more CTs on
// the same entity").
func projectionsAt[Target any](v *View) []*Target {
	target := reflect.TypeFor[Target]()
	arch := v.curArch
	var out []*Target
	for _, id := range arch.compOrder {
		desc := arch.info[id]
		for _, bd := range desc.borrows {
			if bd.Target != target {
				continue
			}
			ptr := bd.Project(arch.rowPtr(id, v.row))
			out = append(out, (*Target)(ptr))
		}
	}
	return out
}

// BorrowOne returns the single component on the current row that
// projects to Target, or ok=false if zero or more than one do (an
// ambiguous "one" is treated the same as "none" — the caller asked for a
// single unambiguous projection).
func BorrowOne[Target any](v *View) (*Target, bool) {
	ps := projectionsAt[Target](v)
	if len(ps) != 1 {
		return nil, false
	}
	return ps[0], true
}

// BorrowAny returns the first component on the current row that
// projects to Target, or ok=false if none do.
func BorrowAny[Target any](v *View) (*Target, bool) {
	ps := projectionsAt[Target](v)
	if len(ps) == 0 {
		return nil, false
	}
	return ps[0], true
}

// BorrowAll returns every component on the current row that projects to
// Target, possibly empty.
func BorrowAll[Target any](v *View) []*Target {
	return projectionsAt[Target](v)
}
