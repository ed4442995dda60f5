// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

// PageSize is the unit guest memory grows by.
const PageSize = 64 * 1024

// MemoryLike is the guest memory host functions read from and write to.
// Reads and writes are only issued for ranges that FitsMemory accepts.
type MemoryLike interface {
	FitsMemory(offset, length uint64) bool
	ReadMemory(offset uint64, buffer []byte)
	ReadMemoryU8(offset uint64) byte
	WriteMemory(offset uint64, buffer []byte)
}

var _ MemoryLike = &LinearMemory{}

// LinearMemory is a flat byte array of up to [maxPages] pages. Bytes that
// were never written read as zero.
type LinearMemory struct {
	data     []byte
	maxPages uint32
}

func NewLinearMemory(maxPages uint32) *LinearMemory {
	return &LinearMemory{maxPages: maxPages}
}

func (m *LinearMemory) limit() uint64 { return uint64(m.maxPages) * PageSize }

func (m *LinearMemory) FitsMemory(offset, length uint64) bool {
	end := offset + length
	return end >= offset && end <= m.limit()
}

func (m *LinearMemory) ReadMemory(offset uint64, buffer []byte) {
	for i := range buffer {
		buffer[i] = m.ReadMemoryU8(offset + uint64(i))
	}
}

func (m *LinearMemory) ReadMemoryU8(offset uint64) byte {
	if offset >= uint64(len(m.data)) {
		return 0
	}
	return m.data[offset]
}

func (m *LinearMemory) WriteMemory(offset uint64, buffer []byte) {
	end := offset + uint64(len(buffer))
	if end > uint64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[offset:end], buffer)
}

// Pages is the number of pages touched so far.
func (m *LinearMemory) Pages() uint32 {
	return uint32((uint64(len(m.data)) + PageSize - 1) / PageSize)
}
