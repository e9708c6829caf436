// Package memspace implements the byte-level allocator living inside a
// prefix's page-addressed storage: logical addresses (spec §3), and the
// slab/slot allocators that carve fixed- and variable-size byte ranges out
// of pages handed to them by pager.Prefix.AllocPage. This is a distinct
// layer from pager's FreeManager, which only tracks whole free PageNums.
package memspace

import "github.com/dbzero-software/dbzero-engine/internal/errs"

// Address bit layout, confirmed bit-exact against the original source's
// core/memory/Address.hpp (UniqueAddress): the low 14 bits hold an instance
// id, the high 50 bits hold a byte offset within the memspace. instance_id
// 0 means "plain address" — a reference that does not belong to any
// transaction-private CoW instance (spec §3).
const (
	instanceIDBits = 14
	instanceIDMask = (uint64(1) << instanceIDBits) - 1
	maxOffset      = uint64(1) << (64 - instanceIDBits)
	maxInstanceID  = uint64(1) << instanceIDBits
)

// Address is the 64-bit logical address spec §3 defines: offset:50 bits,
// instance_id:14 bits.
type Address uint64

// PlainInstanceID is the instance id meaning "not CoW-private".
const PlainInstanceID = 0

// NewAddress packs an offset and instance id into an Address. Returns a
// BadAddress error if either value exceeds its bit field, mirroring the
// original's constructor asserts.
func NewAddress(offset uint64, instanceID uint16) (Address, error) {
	if offset >= maxOffset {
		return 0, errs.Newf(errs.KindBadAddress, "memspace.NewAddress", "offset %d exceeds 50-bit range", offset)
	}
	if uint64(instanceID) >= maxInstanceID {
		return 0, errs.Newf(errs.KindBadAddress, "memspace.NewAddress", "instance id %d exceeds 14-bit range", instanceID)
	}
	return Address(offset<<instanceIDBits | uint64(instanceID)), nil
}

// Offset extracts the byte-offset component.
func (a Address) Offset() uint64 { return uint64(a) >> instanceIDBits }

// InstanceID extracts the CoW-instance component.
func (a Address) InstanceID() uint16 { return uint16(uint64(a) & instanceIDMask) }

// IsPlain reports whether this address carries no CoW-private instance id.
func (a Address) IsPlain() bool { return a.InstanceID() == PlainInstanceID }

// WithInstanceID returns a copy of a rebound to a different instance id,
// keeping the same offset — used when a resource lock's CoW promotion
// assigns a transaction-private copy its own address.
func (a Address) WithInstanceID(id uint16) (Address, error) {
	return NewAddress(a.Offset(), id)
}

// PageOffset splits an Address's offset into a (pageNum, intra-page offset)
// pair for a given page size.
func (a Address) PageOffset(pageSize int) (pageNum uint64, inPage int) {
	off := a.Offset()
	ps := uint64(pageSize)
	return off / ps, int(off % ps)
}
