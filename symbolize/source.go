// #############################################################################
// This file is part of the "symbolize" package of the "symex" project.
// It is distributed under the MIT License. Refer to the LICENSE file for more
// information.
// #############################################################################

package symbolize

// SourceKind selects which kind of backing artifact a Source names.
type SourceKind int

const (
	SourceElfPath SourceKind = iota
	SourceProcess
	SourceKernel
	SourceApk
	SourceBreakpad
	SourceGsym
)

func (k SourceKind) String() string {
	switch k {
	case SourceElfPath:
		return "ElfPath"
	case SourceProcess:
		return "Process"
	case SourceKernel:
		return "Kernel"
	case SourceApk:
		return "Apk"
	case SourceBreakpad:
		return "Breakpad"
	case SourceGsym:
		return "Gsym"
	default:
		return "Unknown"
	}
}

// Source names what the Symbolizer should resolve addresses against. Only
// the fields relevant to Kind are meaningful; the rest are zero.
type Source struct {
	Kind SourceKind

	// Path is the file path for ElfPath, Breakpad, and Gsym sources, or
	// the containing archive path for Apk.
	Path string

	// Pid is the process ID for a Process source.
	Pid int

	// ApkMember is the path of the embedded library within the archive
	// named by Path, for an Apk source.
	ApkMember string
}

// ElfPathSource builds a Source naming a single ELF file on disk.
func ElfPathSource(path string) Source {
	return Source{Kind: SourceElfPath, Path: path}
}

// ProcessSource builds a Source naming a running process's address space.
func ProcessSource(pid int) Source {
	return Source{Kind: SourceProcess, Pid: pid}
}

// KernelSource builds a Source naming the running kernel image.
func KernelSource() Source {
	return Source{Kind: SourceKernel}
}

// ApkSource builds a Source naming a shared library embedded in an APK.
func ApkSource(apkPath, member string) Source {
	return Source{Kind: SourceApk, Path: apkPath, ApkMember: member}
}

// resolverKey identifies one cached backend instance within a Symbolizer:
// two Source values that would build the identical backend share a cache
// slot.
type resolverKey struct {
	kind      SourceKind
	path      string
	pid       int
	apkMember string
}

func keyOf(src Source) resolverKey {
	return resolverKey{kind: src.Kind, path: src.Path, pid: src.Pid, apkMember: src.ApkMember}
}
