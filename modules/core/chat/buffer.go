package chat

// Buffer is the ordered list of turns of the active session.
// It is not safe for concurrent use; Service guards it.
type Buffer struct {
	turns []Turn
}

// NewBuffer creates an empty buffer
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append adds a turn at the end, preserving receipt order
func (b *Buffer) Append(turn Turn) {
	b.turns = append(b.turns, turn)
}

// ReplaceAll discards the current turns and installs the given ones
func (b *Buffer) ReplaceAll(turns []Turn) {
	b.turns = make([]Turn, len(turns))
	copy(b.turns, turns)
}

// Reset empties the buffer
func (b *Buffer) Reset() {
	b.turns = nil
}

// Turns returns a copy of the buffered turns
func (b *Buffer) Turns() []Turn {
	out := make([]Turn, len(b.turns))
	copy(out, b.turns)
	return out
}

// Len returns the number of buffered turns
func (b *Buffer) Len() int {
	return len(b.turns)
}
