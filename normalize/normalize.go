// #############################################################################
// This file is part of the "normalize" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

// Package normalize defines the thinner reason sum produced by address
// normalization (mapping a process address against its memory map), a
// step this module treats as an external collaborator rather than
// something it performs itself. symbolize.Reason's conversion from this
// type is total: every Reason value maps to exactly one symbolize.Reason
// variant of the same name.
package normalize

// Reason hints at why normalizing an address against a process's memory
// map failed. Normalization itself (reading /proc/PID/maps or equivalent)
// lives outside this module; only the reason vocabulary is shared.
type Reason int

const (
	// Unmapped: the address does not fall within any mapped region.
	Unmapped Reason = iota
	// MissingComponent: the region is mapped, but the
	// /proc/<pid>/maps entry has no component (file system path,
	// object, ...) associated with it.
	MissingComponent
	// Unsupported: the address belongs to an entity normalization
	// currently has no support for.
	Unsupported
)

func (r Reason) String() string {
	switch r {
	case Unmapped:
		return "Unmapped"
	case MissingComponent:
		return "MissingComponent"
	case Unsupported:
		return "Unsupported"
	default:
		return "Unknown"
	}
}

// TranslateFileOffset converts a file offset into a virtual offset. It
// returns (nil, nil) for an offset not mapped to any loadable region.
type TranslateFileOffset interface {
	FileOffsetToVirtOffset(off uint64) (*uint64, error)
}

// NormalizeAbsAddr converts a process-observed absolute address (already
// relocated and ASLR-applied) into a virtual offset, consulting the
// process's memory map. It returns (nil, reason, nil) when the address
// cannot be placed, with reason explaining why.
type NormalizeAbsAddr interface {
	NormalizeAbsAddr(addr uint64) (*uint64, Reason, error)
}
