package reference

import (
	"fmt"

	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
)

const paymentPrefix = "PMT"

// Allocator issues business-facing payment references. References are
// lexicographically sortable by creation time and unique without a
// database round trip.
type Allocator struct{}

func NewAllocator() *Allocator { return &Allocator{} }

// Payment returns a new reference of the form PMT-<ULID>.
func (a *Allocator) Payment() string {
	return fmt.Sprintf("%s-%s", paymentPrefix, ulid.Make().String())
}

var Module = fx.Module("reference",
	fx.Provide(NewAllocator),
)
