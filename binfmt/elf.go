package binfmt

import (
	"encoding/binary"

	"protura/defs"
	"protura/mem"
	"protura/util"
	"protura/vm"
)

// elfMagic is the 32-bit little-endian encoding of "\x7FELF"
// (original_source/include/fs/elf.h's ELF_MAGIC).
const elfMagic = 0x464C457F

// Program header type/flag bits this port cares about — only loadable
// segments are supported, matching original_source/include/fs/elf.h's
// comment that LOAD is "the only type of section we support currently".
const (
	ptLoad = 1

	pfExec  = 1
	pfWrite = 2
	pfRead  = 4
)

const (
	ehdrSize = 52 // Elf32_Ehdr
	phdrSize = 32 // Elf32_Phdr
)

type elfBinfmt struct{}

// ELF is the registered handler for 32-bit ELF executables.
var ELF Binfmt_i = elfBinfmt{}

func (elfBinfmt) Name() string  { return "elf" }
func (elfBinfmt) Magic() []byte { return []byte{0x7f, 'E', 'L', 'F'} }

// Load parses a 32-bit ELF header and program header table by hand
// (the same manual little-endian field layout original_source/include/
// fs/elf.h's struct elf_header/elf_prog_section describe), and installs
// one file-backed vm.VmRegion_t per PT_LOAD segment so later page
// faults pull the segment's bytes in from params.Exe a page at a time
// (spec.md §4.11 "required set of loadable segments copied from
// file-backed mappings").
func (elfBinfmt) Load(params *ExeParams_t, phys mem.Page_i) (*vm.Vm_t, uintptr, defs.Err_t) {
	hdr := make([]byte, ehdrSize)
	if n, err := readAt(params.Exe, hdr, 0); err != 0 || n < ehdrSize {
		return nil, 0, -defs.ENOEXEC
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != elfMagic {
		return nil, 0, -defs.ENOEXEC
	}

	entry := binary.LittleEndian.Uint32(hdr[24:28])
	phoff := binary.LittleEndian.Uint32(hdr[28:32])
	phentsize := binary.LittleEndian.Uint16(hdr[42:44])
	phnum := binary.LittleEndian.Uint16(hdr[44:46])
	if phentsize < phdrSize {
		return nil, 0, -defs.ENOEXEC
	}

	as := vm.MkVm(phys)
	for i := 0; i < int(phnum); i++ {
		ph := make([]byte, phdrSize)
		off := int(phoff) + i*int(phentsize)
		if n, err := readAt(params.Exe, ph, off); err != 0 || n < phdrSize {
			return nil, 0, -defs.ENOEXEC
		}
		if binary.LittleEndian.Uint32(ph[0:4]) != ptLoad {
			continue
		}

		fileOff := binary.LittleEndian.Uint32(ph[4:8])
		vaddr := binary.LittleEndian.Uint32(ph[8:12])
		filesz := binary.LittleEndian.Uint32(ph[16:20])
		memsz := binary.LittleEndian.Uint32(ph[20:24])
		flags := binary.LittleEndian.Uint32(ph[24:28])

		var prot vm.Prot_t
		if flags&pfRead != 0 {
			prot |= vm.PROT_READ
		}
		if flags&pfWrite != 0 {
			prot |= vm.PROT_WRITE
		}
		if flags&pfExec != 0 {
			prot |= vm.PROT_EXEC
		}

		start := uintptr(util.Rounddown(int(vaddr), mem.PGSIZE))
		end := uintptr(util.Roundup(int(vaddr)+int(memsz), mem.PGSIZE))
		segFileOff := int(fileOff) - (int(vaddr) - int(start))

		if err := as.AddRegion(&vm.VmRegion_t{
			Start:   start,
			End:     end,
			Prot:    prot,
			Typ:     vm.MAP_FILE,
			File:    params.Exe,
			FileOff: segFileOff,
		}); err != 0 {
			// overlapping PT_LOAD segments: a malformed binary, not a
			// kernel bug, so reject it rather than let insertLocked's
			// panic path see it.
			return nil, 0, -defs.ENOEXEC
		}
		_ = filesz // memsz may exceed filesz (a BSS tail); vm.Fault's freshly zeroed page plus a short Pread past EOF fill it correctly without a separate BSS region
	}

	return as, uintptr(entry), 0
}
