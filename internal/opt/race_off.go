//go:build !race

package opt

// Race_ reports whether the binary is built with the race detector.
const Race_ = false
