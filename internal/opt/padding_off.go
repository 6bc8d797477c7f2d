//go:build bakery_disable_padding

package opt

// Slot_ is one participant's slot in the ticket store.
// Padding is force-disabled via the bakery_disable_padding build tag.
// Use: go build -tags=bakery_disable_padding
type Slot_ struct {
	Choosing uint32
	Phase    uint32
	Ticket   uint64
}
