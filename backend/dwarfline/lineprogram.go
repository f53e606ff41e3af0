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

	"github.com/binsym/symex/internal/leb128"
)

// LineRow is one emitted row of a line-number program: the address where
// that row's file/line becomes active, up to (but not including) the next
// row's address, or the end of the containing sequence.
type LineRow struct {
	Address uint64
	File    string
	Dir     string
	Line    uint32
	Column  uint16
	EndSequence bool
}

type lineProgramHeader struct {
	version             uint16
	addressSize         uint8
	minInstrLength      uint8
	maxOpsPerInstr      uint8
	defaultIsStmt       bool
	lineBase            int8
	lineRange           uint8
	opcodeBase          uint8
	operandCountTbl     []uint8
	directories         []string
	files               []lineFileEntry
}

type lineFileEntry struct {
	path     string
	dirIndex uint64
}

// readLineProgram reads and executes the DWARF line-number program at
// offset off in .debug_line, taking the DWARF version from the program's own
// header and using addrSize (the unit's address size) for pre-DWARF-5
// programs, returning its emitted rows in program order (not
// necessarily address-sorted across multiple sequences).
func readLineProgram(debugLine []byte, off uint64, addrSize uint8) ([]LineRow, error) {
	if off >= uint64(len(debugLine)) {
		return nil, fmt.Errorf("dwarfline: stmt_list offset %d beyond .debug_line (%d bytes)", off, len(debugLine))
	}

	r := bytes.NewReader(debugLine[off:])
	le := binary.LittleEndian

	var len32 uint32
	if err := binary.Read(r, le, &len32); err != nil {
		return nil, fmt.Errorf("reading line program length: %w", err)
	}
	is64 := len32 == 0xffffffff
	var unitLength uint64
	lenFieldSize := uint64(4)
	if is64 {
		var len64 uint64
		if err := binary.Read(r, le, &len64); err != nil {
			return nil, fmt.Errorf("reading 64-bit line program length: %w", err)
		}
		unitLength = len64
		lenFieldSize += 8
	} else {
		unitLength = uint64(len32)
	}
	programEnd := lenFieldSize + unitLength

	var h lineProgramHeader
	if err := binary.Read(r, le, &h.version); err != nil {
		return nil, fmt.Errorf("reading line program version: %w", err)
	}

	if h.version >= 5 {
		if err := binary.Read(r, le, &h.addressSize); err != nil {
			return nil, fmt.Errorf("reading address size: %w", err)
		}
		var segSelSize uint8
		if err := binary.Read(r, le, &segSelSize); err != nil {
			return nil, fmt.Errorf("reading segment selector size: %w", err)
		}
	} else {
		h.addressSize = addrSize
	}

	if _, err := readOffset(r, is64); err != nil {
		return nil, fmt.Errorf("skipping header length: %w", err)
	}

	if err := binary.Read(r, le, &h.minInstrLength); err != nil {
		return nil, fmt.Errorf("reading min instruction length: %w", err)
	}
	if h.version >= 4 {
		if err := binary.Read(r, le, &h.maxOpsPerInstr); err != nil {
			return nil, fmt.Errorf("reading max ops per instruction: %w", err)
		}
	} else {
		h.maxOpsPerInstr = 1
	}

	var isStmt uint8
	if err := binary.Read(r, le, &isStmt); err != nil {
		return nil, fmt.Errorf("reading default_is_stmt: %w", err)
	}
	h.defaultIsStmt = isStmt != 0

	if err := binary.Read(r, le, &h.lineBase); err != nil {
		return nil, fmt.Errorf("reading line_base: %w", err)
	}
	if err := binary.Read(r, le, &h.lineRange); err != nil {
		return nil, fmt.Errorf("reading line_range: %w", err)
	}
	if err := binary.Read(r, le, &h.opcodeBase); err != nil {
		return nil, fmt.Errorf("reading opcode_base: %w", err)
	}

	for i := uint8(1); i < h.opcodeBase; i++ {
		c, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading standard opcode lengths: %w", err)
		}
		h.operandCountTbl = append(h.operandCountTbl, c)
	}

	if h.version >= 5 {
		return nil, fmt.Errorf("dwarfline: DWARF 5 line number table format not supported")
	}

	for {
		dir, err := readCString(r)
		if err != nil {
			return nil, fmt.Errorf("reading include_directories: %w", err)
		}
		if dir == "" {
			break
		}
		h.directories = append(h.directories, dir)
	}

	for {
		path, err := readCString(r)
		if err != nil {
			return nil, fmt.Errorf("reading file name entry: %w", err)
		}
		if path == "" {
			break
		}
		dirIdx, err := leb128.ReadUnsigned(r)
		if err != nil {
			return nil, fmt.Errorf("reading file dir index: %w", err)
		}
		if _, err := leb128.ReadUnsigned(r); err != nil { // mtime
			return nil, fmt.Errorf("reading file mtime: %w", err)
		}
		if _, err := leb128.ReadUnsigned(r); err != nil { // size
			return nil, fmt.Errorf("reading file size: %w", err)
		}
		h.files = append(h.files, lineFileEntry{path: path, dirIndex: dirIdx})
	}

	return executeLineProgram(r, &h, int64(len(debugLine[off:]))-int64(r.Len()), int64(programEnd))
}

// lineState is the line-number program's set of registers (DWARF spec
// §6.2.2), tracked across standard, extended, and special opcodes.
type lineState struct {
	address     uint64
	file        uint64
	line        int64
	column      uint16
	isStmt      bool
	endSequence bool
}

func executeLineProgram(r *bytes.Reader, h *lineProgramHeader, consumedSoFar, programEnd int64) ([]LineRow, error) {
	var rows []LineRow
	resetState := func() lineState {
		return lineState{file: 1, line: 1, isStmt: h.defaultIsStmt}
	}
	state := resetState()

	emit := func() {
		row := LineRow{Address: state.address, Line: uint32(state.line), Column: state.column, EndSequence: state.endSequence}
		if idx := int(state.file) - 1; idx >= 0 && idx < len(h.files) {
			fe := h.files[idx]
			row.File = fe.path
			if d := int(fe.dirIndex) - 1; d >= 0 && d < len(h.directories) {
				row.Dir = h.directories[d]
			}
		}
		rows = append(rows, row)
	}

	for consumedSoFar < programEnd {
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading opcode: %w", err)
		}
		consumedSoFar++

		switch {
		case b == 0:
			// Extended opcode: ULEB128 length, then opcode byte, then operands.
			start := r.Len()
			size, err := leb128.ReadUnsigned(r)
			if err != nil {
				return nil, fmt.Errorf("reading extended opcode length: %w", err)
			}
			before := r.Len()
			op, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("reading extended opcode: %w", err)
			}
			switch DwLnOpcode(op) {
			case DwLneEndSequence:
				state.endSequence = true
				emit()
				state = resetState()
			case DwLneSetAddress:
				addr, err := readAddress(r, h.addressSize)
				if err != nil {
					return nil, fmt.Errorf("reading DW_LNE_set_address operand: %w", err)
				}
				state.address = addr
			case DwLneSetDiscriminator:
				if _, err := leb128.ReadUnsigned(r); err != nil {
					return nil, fmt.Errorf("reading DW_LNE_set_discriminator operand: %w", err)
				}
			default:
				// Unknown extended opcode: skip its remaining operand bytes.
				skip := int64(size) - int64(before-r.Len())
				if skip > 0 {
					if _, err := r.Seek(skip, 1); err != nil {
						return nil, fmt.Errorf("skipping unknown extended opcode: %w", err)
					}
				}
			}
			consumedSoFar += int64(start - r.Len())

		case b < h.opcodeBase:
			before := r.Len()
			switch DwLnOpcode(b) {
			case DwLnsCopy:
				emit()
			case DwLnsAdvancePC:
				adv, err := leb128.ReadUnsigned(r)
				if err != nil {
					return nil, fmt.Errorf("reading DW_LNS_advance_pc operand: %w", err)
				}
				state.address += adv * uint64(h.minInstrLength)
			case DwLnsAdvanceLine:
				adv, err := leb128.ReadSigned(r)
				if err != nil {
					return nil, fmt.Errorf("reading DW_LNS_advance_line operand: %w", err)
				}
				state.line += adv
			case DwLnsSetFile:
				f, err := leb128.ReadUnsigned(r)
				if err != nil {
					return nil, fmt.Errorf("reading DW_LNS_set_file operand: %w", err)
				}
				state.file = f
			case DwLnsSetColumn:
				c, err := leb128.ReadUnsigned(r)
				if err != nil {
					return nil, fmt.Errorf("reading DW_LNS_set_column operand: %w", err)
				}
				state.column = uint16(c)
			case DwLnsNegateStmt:
				state.isStmt = !state.isStmt
			case DwLnsConstAddPC:
				adjusted := 255 - uint16(h.opcodeBase)
				state.address += uint64(adjusted/uint16(h.lineRange)) * uint64(h.minInstrLength)
			case DwLnsFixedAdvancePC:
				var operand uint16
				if err := binary.Read(r, binary.LittleEndian, &operand); err != nil {
					return nil, fmt.Errorf("reading DW_LNS_fixed_advance_pc operand: %w", err)
				}
				state.address += uint64(operand)
			case DwLnsSetBasicBlock, DwLnsSetPrologueEnd, DwLnsSetEpilogueBegin:
				// No operands; no effect on our row model.
			case DwLnsSetISA:
				if _, err := leb128.ReadUnsigned(r); err != nil {
					return nil, fmt.Errorf("reading DW_LNS_set_isa operand: %w", err)
				}
			default:
				idx := int(b) - 1
				if idx >= 0 && idx < len(h.operandCountTbl) {
					for i := uint8(0); i < h.operandCountTbl[idx]; i++ {
						if _, err := leb128.ReadUnsigned(r); err != nil {
							return nil, fmt.Errorf("skipping unknown standard opcode operand: %w", err)
						}
					}
				}
			}
			consumedSoFar += int64(before - r.Len())

		default:
			adjusted := int(b) - int(h.opcodeBase)
			addrAdvance := adjusted / int(h.lineRange)
			lineAdvance := int(h.lineBase) + adjusted%int(h.lineRange)
			state.address += uint64(addrAdvance) * uint64(h.minInstrLength)
			state.line += int64(lineAdvance)
			emit()
		}
	}

	return rows, nil
}

func readAddress(r *bytes.Reader, size uint8) (uint64, error) {
	switch size {
	case 1:
		b, err := r.ReadByte()
		return uint64(b), err
	case 2:
		var v uint16
		err := binary.Read(r, binary.LittleEndian, &v)
		return uint64(v), err
	case 4:
		var v uint32
		err := binary.Read(r, binary.LittleEndian, &v)
		return uint64(v), err
	default:
		var v uint64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	}
}

func readCString(r *bytes.Reader) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf), nil
}
