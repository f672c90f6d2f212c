// Package pewriter assembles the final PE32+ executable described in spec
// §4.7. It drives the same linker.Buffer the code emitter writes function
// bodies into, so the whole output file — headers, code, data and imports
// alike — is produced by one deterministic two-pass walk: a layout pass
// that records every symbol's (raw, virtual) offset, and an emit pass that
// reproduces the identical byte sequence with those offsets resolved. A
// header field that names a symbol appearing later in the file (the end of
// the image, the RVA of an import's hint/name entry) resolves correctly in
// the emit pass only because the layout pass already walked the entire
// file once before any real byte left the buffer.
package pewriter

import "github.com/flatlang/flatc/internal/linker"

const (
	ImageBase        = 0x140000000
	SectionAlignment = 0x1000
	FileAlignment    = 0x200
	StackHeapSize    = 0x10000
)

// ImportFunc is one imported function slot. Symbol is the mangled flat
// call name codegen's __imp_<Symbol> indirect calls resolve against (two
// source-level overloads that both bind to the same DLL export get
// distinct Symbols and therefore distinct IAT slots); Name is the literal
// C function name written into the hint/name table for the loader to
// resolve by name against the DLL's export table.
type ImportFunc struct {
	Symbol string
	Name   string
}

// Import is one DLL's worth of imported functions.
type Import struct {
	DLL   string
	Funcs []ImportFunc
}

func roundUp(v, align int) int {
	if align <= 0 || v%align == 0 {
		return v
	}
	return (v/align + 1) * align
}

// WriteDOSHeader writes the minimal MZ header and stub, e_lfanew pointing
// at 0x100, then pads to 0x100 where the PE signature begins.
func WriteDOSHeader(buf *linker.Buffer) {
	buf.Symbol("__image_begin")
	buf.PushBytes([]byte{'M', 'Z'})
	buf.PushZeros(0x3C - 2)
	buf.PushU32(0x100) // e_lfanew
	buf.Align(0x100, 0x100)
}

// section describes one of the three fixed sections once its extent is
// known (from Address lookups against symbols recorded during layout).
type section struct {
	name            string
	begin, end      string
	characteristics uint32
}

var sections = []section{
	{"__code", "__code_begin", "__code_end", 0x60000020},  // CODE | EXECUTE | READ
	{"__data", "__data_begin", "__data_end", 0xC0000040},   // INITIALIZED_DATA | READ | WRITE
	{"__idata", "__idata_begin", "__idata_end", 0xC0000040}, // INITIALIZED_DATA | READ | WRITE
}

func sectionName(s section) string { return "." + s.name[2:] } // "__code" -> ".code"

// WriteNTHeaders writes the PE signature, COFF header, PE32+ optional
// header and the three fixed section headers. Every size/address field
// that depends on section extents or the import directory is computed from
// buf.Address of symbols this same walk records later in the file — valid
// only once the emit pass runs, per the package doc.
func WriteNTHeaders(buf *linker.Buffer, imports []Import) {
	buf.PushBytes([]byte{'P', 'E', 0, 0})

	// COFF header.
	buf.PushU16(0x8664) // Machine: AMD64
	buf.PushU16(uint16(len(sections)))
	buf.PushU32(0) // TimeDateStamp
	buf.PushU32(0) // PointerToSymbolTable
	buf.PushU32(0) // NumberOfSymbols
	buf.PushU16(240)    // SizeOfOptionalHeader
	buf.PushU16(0x0022) // EXECUTABLE_IMAGE | LARGE_ADDRESS_AWARE

	code := buf.Address("__code_begin")
	entry := buf.Address("__entry")
	headersEnd := buf.Address("__headers_end")
	imageEnd := buf.Address("__image_end")

	type extent struct {
		virtualSize, rva, rawSize, fileOff int
	}
	extents := make([]extent, len(sections))
	var initializedDataSize int
	for i, s := range sections {
		begin := buf.Address(s.begin)
		end := buf.Address(s.end)
		virtualSize := end.Virt - begin.Virt
		rawSize := roundUp(end.Raw-begin.Raw, FileAlignment)
		extents[i] = extent{virtualSize, begin.Virt, rawSize, begin.Raw}
		if s.name != "__code" {
			initializedDataSize += virtualSize
		}
	}
	codeVirtualSize := extents[0].virtualSize

	// Optional header.
	buf.PushU16(0x020B) // Magic: PE32+
	buf.PushByte(1)     // MajorLinkerVersion
	buf.PushByte(0)     // MinorLinkerVersion
	buf.PushU32(uint32(codeVirtualSize))            // SizeOfCode
	buf.PushU32(uint32(initializedDataSize))        // SizeOfInitializedData
	buf.PushU32(0)                                  // SizeOfUninitializedData
	buf.PushU32(uint32(entry.Virt))        // AddressOfEntryPoint
	buf.PushU32(uint32(code.Virt))         // BaseOfCode
	buf.PushU64(uint64(ImageBase))         // ImageBase (8 bytes; PE32+ has no BaseOfData)
	buf.PushU32(SectionAlignment)
	buf.PushU32(FileAlignment)
	buf.PushU16(6) // MajorOperatingSystemVersion
	buf.PushU16(0)
	buf.PushU16(0) // MajorImageVersion
	buf.PushU16(0)
	buf.PushU16(6) // MajorSubsystemVersion
	buf.PushU16(0)
	buf.PushU32(0)                               // Win32VersionValue
	buf.PushU32(uint32(imageEnd.Virt))           // SizeOfImage
	buf.PushU32(uint32(roundUp(headersEnd.Raw, FileAlignment))) // SizeOfHeaders
	buf.PushU32(0)                                // CheckSum
	buf.PushU16(3)                                // Subsystem: WINDOWS_CUI
	buf.PushU16(0x0100)                           // DllCharacteristics: NX_COMPAT
	buf.PushU64(StackHeapSize)                    // SizeOfStackReserve
	buf.PushU64(StackHeapSize)                    // SizeOfStackCommit
	buf.PushU64(StackHeapSize)                    // SizeOfHeapReserve
	buf.PushU64(StackHeapSize)                    // SizeOfHeapCommit
	buf.PushU32(0)                                // LoaderFlags
	buf.PushU32(16)                                // NumberOfRvaAndSizes

	importDirBegin := buf.Address("__idata_importdir_begin")
	importDirEnd := buf.Address("__idata_importdir_end")
	iatBegin := buf.Address("__idata_iat_begin")
	iatEnd := buf.Address("__idata_iat_end")

	for i := 0; i < 16; i++ {
		switch i {
		case 1: // Import Table
			buf.PushU32(uint32(importDirBegin.Virt))
			buf.PushU32(uint32(importDirEnd.Virt - importDirBegin.Virt))
		case 12: // IAT
			buf.PushU32(uint32(iatBegin.Virt))
			buf.PushU32(uint32(iatEnd.Virt - iatBegin.Virt))
		default:
			buf.PushU32(0)
			buf.PushU32(0)
		}
	}

	// Section headers, ascending virtual-address order (code, data, idata).
	for i, s := range sections {
		e := extents[i]
		writeSectionHeader(buf, sectionName(s), e.virtualSize, e.rva, e.rawSize, e.fileOff, s.characteristics)
	}

	buf.Symbol("__headers_end")
	buf.Align(FileAlignment, SectionAlignment)
}

func writeSectionHeader(buf *linker.Buffer, name string, virtualSize, rva, rawSize, fileOff int, characteristics uint32) {
	nameBytes := make([]byte, 8)
	copy(nameBytes, name)
	buf.PushBytes(nameBytes)
	buf.PushU32(uint32(virtualSize))
	buf.PushU32(uint32(rva))
	buf.PushU32(uint32(rawSize))
	buf.PushU32(uint32(fileOff))
	buf.PushU32(0) // PointerToRelocations
	buf.PushU32(0) // PointerToLinenumbers
	buf.PushU16(0) // NumberOfRelocations
	buf.PushU16(0) // NumberOfLinenumbers
	buf.PushU32(characteristics)
}

// BeginCode marks the start of the .code section. Callers emit function
// bodies (and the __entry thunk) between this and EndCode.
func BeginCode(buf *linker.Buffer) {
	buf.Symbol("__code_begin")
}

func EndCode(buf *linker.Buffer) {
	buf.Symbol("__code_end")
	buf.Align(FileAlignment, SectionAlignment)
}

// WriteData writes the .data section: data verbatim between the
// __data_begin and __data_end symbols, then section alignment. cmd/flatc
// passes nil, so the section it produces is empty.
func WriteData(buf *linker.Buffer, data []byte) {
	buf.Symbol("__data_begin")
	buf.PushBytes(data)
	buf.Symbol("__data_end")
	buf.Align(FileAlignment, SectionAlignment)
}

// WriteIData writes the .idata section: one IMAGE_IMPORT_DESCRIPTOR per DLL
// plus a zero terminator, each DLL's import lookup and address tables
// (identical 8-byte-entry, zero-terminated arrays — PE32+ thunks are 8
// bytes), the hint/name table, and the DLL name strings. Every IAT slot
// holding a function's hint/name RVA also gets a __imp_<function> symbol,
// the indirect-call target codegen's extern calls resolve against.
func WriteIData(buf *linker.Buffer, imports []Import) {
	buf.Symbol("__idata_begin")

	buf.Symbol("__idata_importdir_begin")
	for _, imp := range imports {
		buf.PushU32(uint32(buf.Address("__idata_ilt_" + imp.DLL).Virt))     // OriginalFirstThunk
		buf.PushU32(0)                                                      // TimeDateStamp
		buf.PushU32(0)                                                      // ForwarderChain
		buf.PushU32(uint32(buf.Address("__idata_dllname_" + imp.DLL).Virt)) // Name
		buf.PushU32(uint32(buf.Address("__idata_iat_" + imp.DLL).Virt))     // FirstThunk
	}
	buf.PushZeros(20) // zero terminator descriptor
	buf.Symbol("__idata_importdir_end")

	for _, imp := range imports {
		buf.Symbol("__idata_ilt_" + imp.DLL)
		for _, fn := range imp.Funcs {
			buf.PushU64(uint64(buf.Address("__idata_hint_" + fn.Symbol).Virt))
		}
		buf.PushU64(0)
	}

	buf.Symbol("__idata_iat_begin")
	for _, imp := range imports {
		buf.Symbol("__idata_iat_" + imp.DLL)
		for _, fn := range imp.Funcs {
			buf.Symbol("__imp_" + fn.Symbol)
			buf.PushU64(uint64(buf.Address("__idata_hint_" + fn.Symbol).Virt))
		}
		buf.PushU64(0)
	}
	buf.Symbol("__idata_iat_end")

	for _, imp := range imports {
		for _, fn := range imp.Funcs {
			buf.Symbol("__idata_hint_" + fn.Symbol)
			buf.PushU16(0) // Hint
			buf.PushString(fn.Name)
			buf.PushByte(0)
			if (len(fn.Name)+1)%2 != 0 {
				buf.PushByte(0)
			}
		}
	}

	for _, imp := range imports {
		buf.Symbol("__idata_dllname_" + imp.DLL)
		buf.PushString(imp.DLL)
		buf.PushByte(0)
	}

	buf.Symbol("__idata_end")
	buf.Align(FileAlignment, SectionAlignment)
}

// Finish marks the end of the mapped image, used for SizeOfImage.
func Finish(buf *linker.Buffer) {
	buf.Symbol("__image_end")
}
