// #############################################################################
// This file is part of the "dwarfline" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

package dwarfline

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/binsym/symex/elf64"
	"github.com/binsym/symex/internal/leb128"
)

// AttrForm pairs an attribute name with the form its value is encoded in,
// as listed in one abbreviation table entry.
type AttrForm struct {
	Name DwAt
	Form DwForm
}

// AbbrevEntry is one entry of a .debug_abbrev table.
type AbbrevEntry struct {
	Tag         DwTag
	HasChildren bool
	AttrForms   []AttrForm
}

// AbbrevTable maps an abbreviation code to its entry, scoped to the
// .debug_abbrev offset named in one compile unit's header.
type AbbrevTable map[uint64]AbbrevEntry

// Attribute is one decoded (name, value) pair of a DIE. Value holds a
// string, uint64, int64, bool, or []byte (block, exprloc and data16 forms)
// depending on Name/Form; callers that know
// which attribute they asked for type-assert accordingly.
type Attribute struct {
	Name  DwAt
	Value interface{}
}

// DIE is one debugging information entry: a tag plus its attributes and
// children, in file order.
type DIE struct {
	Tag        DwTag
	Offset     uint64
	Attributes map[DwAt]Attribute
	Parent     *DIE
	Children   []*DIE
}

// Attr returns the named attribute's raw value, or nil if absent.
func (d *DIE) Attr(name DwAt) (interface{}, bool) {
	a, ok := d.Attributes[name]
	if !ok {
		return nil, false
	}
	return a.Value, true
}

// Unit is one DWARF compile unit's header plus its decoded DIE tree.
type Unit struct {
	Version           uint16
	Is64Bit           bool
	DebugAbbrevOffset uint64
	AddressSize       uint8
	Root              *DIE
	byOffset          map[uint64]*DIE
}

// readAbbrevTable reads the .debug_abbrev table beginning at offset.
func readAbbrevTable(data []byte, offset uint64) (AbbrevTable, error) {
	if offset > uint64(len(data)) {
		return nil, fmt.Errorf("dwarfline: abbrev offset %d beyond .debug_abbrev (%d bytes)", offset, len(data))
	}

	r := bytes.NewReader(data[offset:])
	table := make(AbbrevTable)

	for {
		code, err := leb128.ReadUnsigned(r)
		if err != nil {
			return nil, fmt.Errorf("dwarfline: reading abbrev code: %w", err)
		}
		if code == 0 {
			break
		}

		tag, err := leb128.ReadUnsigned(r)
		if err != nil {
			return nil, fmt.Errorf("dwarfline: reading abbrev tag for code %d: %w", code, err)
		}

		hasChildren, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("dwarfline: reading children flag for code %d: %w", code, err)
		}

		var entry AbbrevEntry
		entry.Tag = DwTag(tag)
		entry.HasChildren = hasChildren != 0

		for {
			at, err := leb128.ReadUnsigned(r)
			if err != nil {
				return nil, fmt.Errorf("dwarfline: reading attr name for code %d: %w", code, err)
			}
			form, err := leb128.ReadUnsigned(r)
			if err != nil {
				return nil, fmt.Errorf("dwarfline: reading attr form for code %d: %w", code, err)
			}
			if at == 0 && form == 0 {
				break
			}
			if DwForm(form) == DwFormImplicitConst {
				// Skip the inline SLEB128 constant that follows.
				if _, err := leb128.ReadSigned(r); err != nil {
					return nil, fmt.Errorf("dwarfline: reading implicit_const for code %d: %w", code, err)
				}
			}
			entry.AttrForms = append(entry.AttrForms, AttrForm{Name: DwAt(at), Form: DwForm(form)})
		}

		table[code] = entry
	}

	return table, nil
}

// readUnits walks every compile unit header in .debug_info, reading its
// DIE tree eagerly (teacher's garf.go defers DIETree(); this adaptation
// reads it up front since dwarfline's only consumer, Resolver, needs the
// full tree to search for subprogram/inlined_subroutine DIEs anyway).
func readUnits(img *elf64.Image) ([]*Unit, error) {
	infoData, err := sectionData(img, ".debug_info")
	if err != nil {
		return nil, err
	}
	abbrevData, err := sectionData(img, ".debug_abbrev")
	if err != nil {
		return nil, err
	}
	strData, _ := sectionData(img, ".debug_str")

	var units []*Unit
	r := bytes.NewReader(infoData)
	for r.Len() > 0 {
		unitStart := uint64(len(infoData)) - uint64(r.Len())

		var len32 uint32
		if err := binary.Read(r, binary.LittleEndian, &len32); err != nil {
			return nil, fmt.Errorf("dwarfline: reading unit length: %w", err)
		}
		is64 := len32 == 0xffffffff
		var length uint64
		if is64 {
			var len64 uint64
			if err := binary.Read(r, binary.LittleEndian, &len64); err != nil {
				return nil, fmt.Errorf("dwarfline: reading 64-bit unit length: %w", err)
			}
			length = len64
		} else {
			length = uint64(len32)
		}
		unitEnd := uint64(len(infoData)) - uint64(r.Len()) + length

		var version uint16
		if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
			return nil, fmt.Errorf("dwarfline: reading unit version: %w", err)
		}

		var abbrevOffset uint64
		var addrSize uint8
		if version >= 5 {
			var unitType uint8
			if err := binary.Read(r, binary.LittleEndian, &unitType); err != nil {
				return nil, fmt.Errorf("dwarfline: reading unit type: %w", err)
			}
			if err := binary.Read(r, binary.LittleEndian, &addrSize); err != nil {
				return nil, fmt.Errorf("dwarfline: reading address size: %w", err)
			}
			abbrevOffset, err = readOffset(r, is64)
			if err != nil {
				return nil, fmt.Errorf("dwarfline: reading abbrev offset: %w", err)
			}
		} else {
			abbrevOffset, err = readOffset(r, is64)
			if err != nil {
				return nil, fmt.Errorf("dwarfline: reading abbrev offset: %w", err)
			}
			if err := binary.Read(r, binary.LittleEndian, &addrSize); err != nil {
				return nil, fmt.Errorf("dwarfline: reading address size: %w", err)
			}
		}

		table, err := readAbbrevTable(abbrevData, abbrevOffset)
		if err != nil {
			return nil, err
		}

		u := &Unit{
			Version:           version,
			Is64Bit:           is64,
			DebugAbbrevOffset: abbrevOffset,
			AddressSize:       addrSize,
			byOffset:          make(map[uint64]*DIE),
		}

		root, _, err := readDIE(infoData, uint64(len(infoData))-uint64(r.Len()), table, strData, is64, nil, u)
		if err != nil {
			return nil, fmt.Errorf("dwarfline: reading DIE tree at unit offset %d: %w", unitStart, err)
		}
		u.Root = root
		units = append(units, u)

		if _, err := r.Seek(int64(unitEnd), 0); err != nil {
			return nil, fmt.Errorf("dwarfline: seeking past unit end: %w", err)
		}
	}

	return units, nil
}

// readDIE decodes one DIE and, recursively, its children, starting at
// byte offset off into data. It returns the DIE and the offset just past
// it.
func readDIE(data []byte, off uint64, table AbbrevTable, strData []byte, is64 bool, parent *DIE, u *Unit) (*DIE, uint64, error) {
	r := bytes.NewReader(data[off:])

	code, err := leb128.ReadUnsigned(r)
	if err != nil {
		return nil, 0, fmt.Errorf("reading abbrev code: %w", err)
	}
	consumed := uint64(len(data[off:])) - uint64(r.Len())
	if code == 0 {
		return nil, off + consumed, nil
	}

	entry, ok := table[code]
	if !ok {
		return nil, 0, fmt.Errorf("no abbrev entry for code %d", code)
	}

	die := &DIE{
		Tag:        entry.Tag,
		Offset:     off,
		Attributes: make(map[DwAt]Attribute, len(entry.AttrForms)),
		Parent:     parent,
	}

	for _, af := range entry.AttrForms {
		val, n, err := readAttrValue(data[off:][consumed:], af.Form, strData, is64)
		if err != nil {
			return nil, 0, fmt.Errorf("reading attribute %#x (form %#x): %w", af.Name, af.Form, err)
		}
		consumed += n
		die.Attributes[af.Name] = Attribute{Name: af.Name, Value: val}
	}

	u.byOffset[die.Offset] = die

	cursor := off + consumed
	if entry.HasChildren {
		for {
			child, next, err := readDIE(data, cursor, table, strData, is64, die, u)
			if err != nil {
				return nil, 0, err
			}
			if child == nil {
				cursor = next
				break
			}
			die.Children = append(die.Children, child)
			cursor = next
		}
	}

	return die, cursor, nil
}

// readAttrValue decodes one attribute value of the given form starting at
// the beginning of buf, returning the value and the number of bytes
// consumed. Only the forms subprogram/inlined_subroutine/compile_unit DIEs
// actually use are handled; anything else is an error, since dwarfline
// never walks into DIEs it doesn't need.
func readAttrValue(buf []byte, form DwForm, strData []byte, is64 bool) (interface{}, uint64, error) {
	r := bytes.NewReader(buf)
	le := binary.LittleEndian

	switch {
	case form == DwFormAddr:
		var v uint64
		if err := binary.Read(r, le, &v); err != nil {
			return nil, 0, err
		}
		return v, 8, nil
	case form == DwFormData1:
		var v uint8
		if err := binary.Read(r, le, &v); err != nil {
			return nil, 0, err
		}
		return uint64(v), 1, nil
	case form == DwFormData2:
		var v uint16
		if err := binary.Read(r, le, &v); err != nil {
			return nil, 0, err
		}
		return uint64(v), 2, nil
	case form == DwFormData4:
		var v uint32
		if err := binary.Read(r, le, &v); err != nil {
			return nil, 0, err
		}
		return uint64(v), 4, nil
	case form == DwFormData8:
		var v uint64
		if err := binary.Read(r, le, &v); err != nil {
			return nil, 0, err
		}
		return v, 8, nil
	case form == DwFormSdata:
		v, err := leb128.ReadSigned(r)
		if err != nil {
			return nil, 0, err
		}
		return v, uint64(len(buf)) - uint64(r.Len()), nil
	case form == DwFormUdata, form == DwFormRefUdata:
		v, err := leb128.ReadUnsigned(r)
		if err != nil {
			return nil, 0, err
		}
		return v, uint64(len(buf)) - uint64(r.Len()), nil
	case form == DwFormString:
		end := bytes.IndexByte(buf, 0)
		if end < 0 {
			return nil, 0, fmt.Errorf("unterminated DW_FORM_string")
		}
		return string(buf[:end]), uint64(end) + 1, nil
	case form == DwFormStrp || form == DwFormLineStrp:
		off, n, err := readOffsetValue(buf, is64)
		if err != nil {
			return nil, 0, err
		}
		s, err := cStringAt(strData, off)
		if err != nil {
			return nil, 0, err
		}
		return s, n, nil
	case form == DwFormSecOffset || form == DwFormRefAddr:
		off, n, err := readOffsetValue(buf, is64)
		if err != nil {
			return nil, 0, err
		}
		return off, n, nil
	case form == DwFormRef1:
		var v uint8
		if err := binary.Read(r, le, &v); err != nil {
			return nil, 0, err
		}
		return uint64(v), 1, nil
	case form == DwFormRef2:
		var v uint16
		if err := binary.Read(r, le, &v); err != nil {
			return nil, 0, err
		}
		return uint64(v), 2, nil
	case form == DwFormRef4:
		var v uint32
		if err := binary.Read(r, le, &v); err != nil {
			return nil, 0, err
		}
		return uint64(v), 4, nil
	case form == DwFormRef8:
		var v uint64
		if err := binary.Read(r, le, &v); err != nil {
			return nil, 0, err
		}
		return v, 8, nil
	case form.isFlag():
		if form == DwFormFlagPresent {
			return true, 0, nil
		}
		var v uint8
		if err := binary.Read(r, le, &v); err != nil {
			return nil, 0, err
		}
		return v != 0, 1, nil
	case form == DwFormExprloc || form == DwFormBlock:
		size, err := leb128.ReadUnsigned(r)
		if err != nil {
			return nil, 0, err
		}
		n := uint64(len(buf)) - uint64(r.Len())
		return buf[n : n+size], n + size, nil
	case form == DwFormBlock1:
		size := uint64(buf[0])
		return buf[1 : 1+size], 1 + size, nil
	case form == DwFormData16:
		return buf[:16], 16, nil
	case form == DwFormStrx, form == DwFormAddrx, form == DwFormLoclistx, form == DwFormRnglistx:
		v, err := leb128.ReadUnsigned(r)
		if err != nil {
			return nil, 0, err
		}
		return v, uint64(len(buf)) - uint64(r.Len()), nil
	default:
		return nil, 0, fmt.Errorf("unsupported attribute form %#x", form)
	}
}

func readOffset(r *bytes.Reader, is64 bool) (uint64, error) {
	if is64 {
		var v uint64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	}
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return uint64(v), err
}

func readOffsetValue(buf []byte, is64 bool) (uint64, uint64, error) {
	if is64 {
		if len(buf) < 8 {
			return 0, 0, fmt.Errorf("truncated 64-bit offset")
		}
		return binary.LittleEndian.Uint64(buf), 8, nil
	}
	if len(buf) < 4 {
		return 0, 0, fmt.Errorf("truncated 32-bit offset")
	}
	return uint64(binary.LittleEndian.Uint32(buf)), 4, nil
}

func cStringAt(data []byte, off uint64) (string, error) {
	if off >= uint64(len(data)) {
		return "", fmt.Errorf("string offset %d beyond section of size %d", off, len(data))
	}
	end := bytes.IndexByte(data[off:], 0)
	if end < 0 {
		return "", fmt.Errorf("unterminated string at offset %d", off)
	}
	return string(data[off : off+uint64(end)]), nil
}

func sectionData(img *elf64.Image, name string) ([]byte, error) {
	idx, err := img.FindSection(name)
	if err != nil {
		return nil, fmt.Errorf("dwarfline: %w", err)
	}
	data, err := img.SectionRaw(idx)
	if err != nil {
		return nil, fmt.Errorf("dwarfline: reading %s: %w", name, err)
	}
	return data, nil
}
