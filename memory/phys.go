package memory

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

var ErrBadAddress = errors.New("address outside physical memory")

const DefaultRAMSize = 256 * 1024

// Physical is the flat physical address space of the target. There is
// no MMU; every kernel structure lives at a fixed offset in here.
type Physical struct {
	base uint32
	ram  []byte
}

func NewPhysical(base, size uint32) *Physical {
	return &Physical{
		base: base,
		ram:  make([]byte, size),
	}
}

func (p *Physical) Base() uint32 {
	return p.base
}

func (p *Physical) Size() uint32 {
	return uint32(len(p.ram))
}

func (p *Physical) End() uint32 {
	return p.base + uint32(len(p.ram))
}

func (p *Physical) Contains(addr, size uint32) bool {
	if addr < p.base {
		return false
	}

	off := addr - p.base

	return uint64(off)+uint64(size) <= uint64(len(p.ram))
}

// Slice exposes the backing bytes for a range. The caller owns nothing;
// the range stays live RAM.
func (p *Physical) Slice(addr, size uint32) ([]byte, error) {
	if !p.Contains(addr, size) {
		return nil, errors.Wrapf(ErrBadAddress, "addr: %x len: %d", addr, size)
	}

	off := addr - p.base

	return p.ram[off : off+size], nil
}

func (p *Physical) Read8(addr uint32) (byte, error) {
	if !p.Contains(addr, 1) {
		return 0, errors.Wrapf(ErrBadAddress, "addr: %x", addr)
	}

	return p.ram[addr-p.base], nil
}

func (p *Physical) Write8(addr uint32, val byte) error {
	if !p.Contains(addr, 1) {
		return errors.Wrapf(ErrBadAddress, "addr: %x", addr)
	}

	p.ram[addr-p.base] = val

	return nil
}

func (p *Physical) Read32(addr uint32) (uint32, error) {
	b, err := p.Slice(addr, 4)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(b), nil
}

func (p *Physical) Write32(addr uint32, val uint32) error {
	b, err := p.Slice(addr, 4)
	if err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(b, val)

	return nil
}

// ReadAt and WriteAt treat the RAM as an io target addressed by physical
// address, for debug dumps and structured copy-out.

func (p *Physical) ReadAt(b []byte, off int64) (int, error) {
	s, err := p.Slice(uint32(off), uint32(len(b)))
	if err != nil {
		return 0, err
	}

	return copy(b, s), nil
}

func (p *Physical) WriteAt(b []byte, off int64) (int, error) {
	s, err := p.Slice(uint32(off), uint32(len(b)))
	if err != nil {
		return 0, err
	}

	return copy(s, b), nil
}
