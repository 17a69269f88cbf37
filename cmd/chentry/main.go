// Command chentry rewrites the entry address of a kernel ELF image, a
// post-link fixup the original build runs once the bootloader has
// decided the final load address.
package main

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"strconv"
)

func usage(me string) {
	fmt.Printf("%s <filename> <addr>\n\nChange the ELF entry point of <filename> to <addr>\n", me)
	os.Exit(1)
}

// chkELF validates the header of the image this tool is allowed to
// touch: a 32-bit little-endian EM_386 executable, matching this
// kernel's 32-bit target architecture rather than an amd64 one.
func chkELF(eh *elf.FileHeader) {
	// elf.NewFile has already rejected a file without the \x7fELF magic.
	if eh.Data != elf.ELFDATA2LSB {
		log.Fatal("not little-endian?")
	}
	if eh.Class != elf.ELFCLASS32 {
		log.Fatal("not a 32 bit elf")
	}
	if eh.Type != elf.ET_EXEC {
		log.Fatal("not an executable elf")
	}
	if eh.Machine != elf.EM_386 {
		log.Fatal("not an EM_386 elf")
	}
}

func main() {
	if len(os.Args) != 3 {
		usage(os.Args[0])
	}
	fn := os.Args[1]
	addr, err := parseAddr(os.Args[2])
	if err != nil {
		log.Fatal(err)
	}
	if addr>>32 != 0 {
		log.Fatal("entry does not fit a 32bit pointer")
	}
	f, err := os.OpenFile(fn, os.O_RDWR, 0)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	ef, err := elf.NewFile(f)
	if err != nil {
		log.Fatal(err)
	}
	chkELF(&ef.FileHeader)

	fmt.Printf("using address 0x%x\n", addr)
	ef.FileHeader.Entry = addr

	if _, err := f.Seek(0, 0); err != nil {
		log.Fatal(err)
	}
	if err := writeHeader32(f, &ef.FileHeader); err != nil {
		log.Fatal(err)
	}
}

// writeHeader32 rewrites the first 28 bytes of the Elf32_Ehdr in place
// (e_ident, e_type, e_machine, e_version, e_entry) at their 32-bit
// offsets. binary.Write cannot serialize debug/elf.FileHeader itself,
// since that struct carries a ByteOrder interface field.
func writeHeader32(f *os.File, eh *elf.FileHeader) error {
	var hdr [52]byte
	copy(hdr[0:16], []byte{0x7f, 'E', 'L', 'F', 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	binary.LittleEndian.PutUint16(hdr[16:18], uint16(eh.Type))
	binary.LittleEndian.PutUint16(hdr[18:20], uint16(eh.Machine))
	binary.LittleEndian.PutUint32(hdr[20:24], 1)
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(eh.Entry))
	_, err := f.WriteAt(hdr[:28], 0)
	return err
}

func parseAddr(s string) (uint64, error) {
	a, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return a, nil
}
