package review

// Navigator walks the chunks of a session cyclically. Resolved chunks stay
// in the rotation so the review order is stable.
type Navigator struct {
	index int
	count int
}

// NewNavigator creates a navigator over count chunks positioned on the first
func NewNavigator(count int) *Navigator {
	return &Navigator{count: count}
}

// Next moves to the following chunk, wrapping at the end
func (n *Navigator) Next() int {
	if n.count == 0 {
		return -1
	}
	n.index = (n.index + 1) % n.count
	return n.index
}

// Previous moves to the preceding chunk, wrapping at the start
func (n *Navigator) Previous() int {
	if n.count == 0 {
		return -1
	}
	n.index = (n.index - 1 + n.count) % n.count
	return n.index
}

// Current returns the current chunk index, or -1 without chunks
func (n *Navigator) Current() int {
	if n.count == 0 {
		return -1
	}
	return n.index
}

// Seek moves to index if it is in range
func (n *Navigator) Seek(index int) {
	if index >= 0 && index < n.count {
		n.index = index
	}
}
