package common

// BlockBuffer assembles arbitrarily sized chunks of a stream into fixed-size
// blocks, the unit the streaming analyzer works on
type BlockBuffer struct {
	buffer   []float64
	size     int
	writePos int
}

// NewBlockBuffer creates a block buffer producing blocks of size samples
func NewBlockBuffer(size int) *BlockBuffer {
	if size <= 0 {
		size = 1
	}
	return &BlockBuffer{
		buffer: make([]float64, size),
		size:   size,
	}
}

// Write appends samples and calls emit once per completed block. The block
// passed to emit is reused afterwards, so emit must not retain it.
// Returns the number of blocks emitted.
func (bb *BlockBuffer) Write(samples []float64, emit func(block []float64)) int {
	blocks := 0
	for len(samples) > 0 {
		n := copy(bb.buffer[bb.writePos:], samples)
		bb.writePos += n
		samples = samples[n:]

		if bb.writePos == bb.size {
			emit(bb.buffer)
			bb.writePos = 0
			blocks++
		}
	}
	return blocks
}

// Pending returns how many samples are waiting for the current block to fill
func (bb *BlockBuffer) Pending() int {
	return bb.writePos
}

// Size returns the block size
func (bb *BlockBuffer) Size() int {
	return bb.size
}

// Reset discards a partially filled block
func (bb *BlockBuffer) Reset() {
	bb.writePos = 0
	clear(bb.buffer)
}
