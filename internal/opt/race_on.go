//go:build race

package opt

// Race_ reports whether the binary is built with the race detector.
//
// The ticket store accessors are excluded from instrumentation in this mode
// (see the bakery_racecheck build tag), so Race_ only affects test tuning.
const Race_ = true
