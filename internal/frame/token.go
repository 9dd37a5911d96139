package frame

// TokenAfter reports whether frame token a was issued after b.
//
// Tokens are uint32 counters that wrap around math.MaxUint32, so ordering is
// decided by the sign bit of the distance: a is after b when (b - a) has the
// high bit set. Equal tokens are not ordered.
func TokenAfter(a, b uint32) bool {
	return (b-a)&(1<<31) != 0
}

// TokenAtOrAfter reports whether a equals b or was issued after it.
func TokenAtOrAfter(a, b uint32) bool {
	return a == b || TokenAfter(a, b)
}
