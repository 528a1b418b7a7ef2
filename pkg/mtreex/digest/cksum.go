package digest

import (
	"encoding/binary"
	"hash"
)

// cksumPoly is the CRC-32 polynomial used by POSIX cksum, in the
// non-reflected (most significant bit first) form.
const cksumPoly = 0x04C11DB7

var cksumTable = func() [256]uint32 {
	var t [256]uint32
	for i := range t {
		c := uint32(i) << 24
		for range 8 {
			if c&0x80000000 != 0 {
				c = c<<1 ^ cksumPoly
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}()

// Cksum computes the checksum printed by POSIX cksum(1): a CRC-32 over the
// data followed by its length, complemented.
type Cksum struct {
	crc uint32
	n   uint64
}

// NewCksum returns a zeroed Cksum.
func NewCksum() *Cksum {
	return &Cksum{}
}

func update(crc uint32, p []byte) uint32 {
	for _, b := range p {
		crc = crc<<8 ^ cksumTable[byte(crc>>24)^b]
	}
	return crc
}

// Write adds p to the running checksum. It never fails.
func (c *Cksum) Write(p []byte) (int, error) {
	c.crc = update(c.crc, p)
	c.n += uint64(len(p))
	return len(p), nil
}

// Sum32 returns the checksum of everything written so far.
func (c *Cksum) Sum32() uint32 {
	crc := c.crc
	for n := c.n; n != 0; n >>= 8 {
		crc = update(crc, []byte{byte(n)})
	}
	return ^crc
}

// Sum appends the big-endian checksum to b.
func (c *Cksum) Sum(b []byte) []byte {
	return binary.BigEndian.AppendUint32(b, c.Sum32())
}

// Reset clears the running checksum.
func (c *Cksum) Reset() {
	c.crc, c.n = 0, 0
}

// Size returns 4.
func (c *Cksum) Size() int { return 4 }

// BlockSize returns 1.
func (c *Cksum) BlockSize() int { return 1 }

var _ hash.Hash32 = (*Cksum)(nil)
