// #############################################################################
// This file is part of the "dwarfline" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

package dwarfline

import (
	"sort"
	"sync"

	"github.com/binsym/symex/elf64"
	"github.com/binsym/symex/internal/symlog"
	"github.com/binsym/symex/symbolize"
)

// Resolver answers CodeInfo and inlined-call-chain queries for a virtual
// offset against one ELF image's DWARF debug info. It is composed into a
// backend/elfsym.Backend to upgrade a Basic-level hit into WithCodeInfo or
// WithCodeInfoAndInlined.
type Resolver struct {
	img *elf64.Image

	once  sync.Once
	err   error
	units []*Unit
	rows  map[*Unit][]LineRow
}

// NewResolver builds a Resolver over img. Debug info is parsed lazily on
// first use, matching elf64.Image's own lazy-materialization discipline.
func NewResolver(img *elf64.Image) *Resolver {
	return &Resolver{img: img}
}

func (res *Resolver) ensureLoaded() error {
	res.once.Do(func() {
		log := symlog.For("dwarfline")
		units, err := readUnits(res.img)
		if err != nil {
			res.err = err
			return
		}
		res.units = units
		res.rows = make(map[*Unit][]LineRow, len(units))

		debugLine, lineErr := sectionData(res.img, ".debug_line")
		if lineErr != nil {
			log.Debug().Err(lineErr).Msg("no .debug_line section, CodeInfo resolution degraded")
			return
		}
		for _, u := range units {
			if u.Root == nil {
				continue
			}
			stmtList, ok := u.Root.Attr(DwAtStmtList)
			if !ok {
				continue
			}
			off, ok := stmtList.(uint64)
			if !ok {
				continue
			}
			rows, err := readLineProgram(debugLine, off, u.AddressSize)
			if err != nil {
				log.Debug().Err(err).Msg("skipping unit with unreadable line program")
				continue
			}
			sort.Slice(rows, func(i, j int) bool { return rows[i].Address < rows[j].Address })
			res.rows[u] = rows
		}
	})
	return res.err
}

// Resolve looks up addr (a virtual offset) against every unit's
// subprogram/inlined_subroutine DIEs and line table, returning the
// deepest enclosing function's source location and, outermost-to-
// innermost, any inlined call chain leading to addr.
func (res *Resolver) Resolve(addr uint64) (*symbolize.CodeInfo, []symbolize.InlinedFn, error) {
	if err := res.ensureLoaded(); err != nil {
		return nil, nil, err
	}

	for _, u := range res.units {
		if u.Root == nil {
			continue
		}
		sub := findEnclosingSubprogram(u.Root, addr)
		if sub == nil {
			continue
		}

		info := res.lineInfoFor(u, addr)
		inlined := collectInlinedChain(sub, addr, u)
		return info, inlined, nil
	}

	return nil, nil, nil
}

func (res *Resolver) lineInfoFor(u *Unit, addr uint64) *symbolize.CodeInfo {
	rows := res.rows[u]
	if len(rows) == 0 {
		return nil
	}

	idx := sort.Search(len(rows), func(i int) bool { return rows[i].Address > addr })
	if idx == 0 {
		return nil
	}
	row := rows[idx-1]
	if row.EndSequence {
		return nil
	}

	compDir, _ := u.Root.Attr(DwAtCompDir)
	dir := row.Dir
	if dir == "" {
		if cd, ok := compDir.(string); ok {
			dir = cd
		}
	}

	return &symbolize.CodeInfo{
		Dir: dir, HasDir: dir != "",
		File:      row.File,
		Line:      row.Line, HasLine: true,
		Column:    row.Column, HasColumn: row.Column != 0,
	}
}

// findEnclosingSubprogram walks die looking for the innermost
// DW_TAG_subprogram whose [low_pc, high_pc) range covers addr.
func findEnclosingSubprogram(die *DIE, addr uint64) *DIE {
	var best *DIE
	var walk func(d *DIE)
	walk = func(d *DIE) {
		if d.Tag == DwTagSubprogram && rangeCovers(d, addr) {
			best = d
		}
		for _, c := range d.Children {
			walk(c)
		}
	}
	walk(die)
	return best
}

func rangeCovers(d *DIE, addr uint64) bool {
	lowRaw, ok := d.Attr(DwAtLowPC)
	if !ok {
		return false
	}
	low, ok := lowRaw.(uint64)
	if !ok {
		return false
	}
	highRaw, ok := d.Attr(DwAtHighPC)
	if !ok {
		return addr == low
	}
	high, ok := highRaw.(uint64)
	if !ok {
		return addr == low
	}
	// DW_AT_high_pc is either an absolute address (older DWARF) or an
	// offset from low_pc (DWARF 4+, form is a constant not an address).
	// A constant-form high_pc smaller than low would be nonsensical as an
	// absolute address, so treat it as offset in that case.
	end := high
	if high < low {
		end = low + high
	}
	return addr >= low && addr < end
}

// collectInlinedChain walks down from sub looking for the nested
// inlined_subroutine DIEs whose ranges cover addr, returning them
// outermost first, resolving each frame's displayed name through its
// DW_AT_abstract_origin reference.
func collectInlinedChain(sub *DIE, addr uint64, u *Unit) []symbolize.InlinedFn {
	var chain []symbolize.InlinedFn
	cur := sub
	for {
		var next *DIE
		for _, c := range cur.Children {
			if c.Tag == DwTagInlinedSubroutine && rangeCovers(c, addr) {
				next = c
				break
			}
		}
		if next == nil {
			break
		}

		name := "<unknown>"
		if originRaw, ok := next.Attr(DwAtAbstractOrigin); ok {
			if off, ok := originRaw.(uint64); ok {
				if origin, ok := u.byOffset[off]; ok {
					if n, ok := origin.Attr(DwAtName); ok {
						if s, ok := n.(string); ok {
							name = s
						}
					}
				}
			}
		}

		var code *symbolize.CodeInfo
		if df, ok := next.Attr(DwAtDeclFile); ok {
			if line, ok2 := next.Attr(DwAtDeclLine); ok2 {
				_ = df
				if ln, ok3 := line.(uint64); ok3 {
					l := uint32(ln)
					code = &symbolize.CodeInfo{Line: l, HasLine: true}
				}
			}
		}

		chain = append(chain, symbolize.InlinedFn{Name: name, CodeInfo: code})
		cur = next
	}
	return chain
}
