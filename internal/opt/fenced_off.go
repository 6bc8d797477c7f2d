//go:build !bakery_fenced

package opt

// Fenced_ selects how ticket store slots are accessed.
// By default every access is a plain load or store.
const Fenced_ = false
