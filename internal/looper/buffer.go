package looper

// Buffer is the loop sample store: one fixed-capacity slice per channel,
// allocated once and never resized.
type Buffer struct {
	channels [][]float32
	capacity int
}

func NewBuffer(channels, capacity int) *Buffer {
	b := &Buffer{
		channels: make([][]float32, channels),
		capacity: capacity,
	}
	for i := range b.channels {
		b.channels[i] = make([]float32, capacity)
	}
	return b
}

// Capacity returns the number of samples each channel can hold.
func (b *Buffer) Capacity() int { return b.capacity }

// Channels returns the channel count.
func (b *Buffer) Channels() int { return len(b.channels) }

// Channel returns the backing slice of channel ch.
func (b *Buffer) Channel(ch int) []float32 { return b.channels[ch] }

// Release drops the sample memory. The buffer must not be used afterwards.
func (b *Buffer) Release() {
	b.channels = nil
	b.capacity = 0
}
