//go:build bakery_fenced

package opt

// Fenced_ selects how ticket store slots are accessed.
// Fenced access is force-enabled via the bakery_fenced build tag and routes
// every slot load and store through sync/atomic, which keeps stores ordered
// on weakly ordered hardware.
// Use: go build -tags=bakery_fenced
const Fenced_ = true
