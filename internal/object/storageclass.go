// Package object implements the reference-counted object model (spec
// §4.9): object headers with tag_refs/obj_refs, the PosVT compact
// attribute header, a storage-class tag taxonomy, a name->address class
// registry, and the ordered/map/block container wrappers built on top of
// vobject handles and memspace addresses.
package object

import "github.com/dbzero-software/dbzero-engine/internal/errs"

// StorageClass tags the type of value stored in an attribute slot or
// range-tree key — spec §4.8's IndexDataType plus the object-model value
// kinds PosVT's dense prefix records.
type StorageClass uint8

const (
	ClassUndefined StorageClass = iota
	ClassNull
	ClassInt64
	ClassUInt64
	ClassFloat64
	ClassString
	ClassAddress // a reference to another managed object
	ClassBool
)

func (c StorageClass) String() string {
	switch c {
	case ClassNull:
		return "Null"
	case ClassInt64:
		return "Int64"
	case ClassUInt64:
		return "UInt64"
	case ClassFloat64:
		return "Float64"
	case ClassString:
		return "String"
	case ClassAddress:
		return "Address"
	case ClassBool:
		return "Bool"
	default:
		return "Undefined"
	}
}

// IndexDataType mirrors spec §4.8: a range-tree's key type is
// auto-assigned from the first non-null key added, and is restricted to
// Int64 or UInt64.
type IndexDataType uint8

const (
	IndexAuto IndexDataType = iota
	IndexInt64
	IndexUInt64
)

// ClassForIndexKey infers the IndexDataType for a StorageClass, per spec
// §4.8 ("Int64, UInt64. UNDEFINED -> Auto"). Any other class returns an
// Input error: inserting a key whose inferred type conflicts with the
// current IndexDataType raises an InputException in the source, mirrored
// here as errs.KindInput.
func ClassForIndexKey(c StorageClass) (IndexDataType, error) {
	switch c {
	case ClassInt64:
		return IndexInt64, nil
	case ClassUInt64, ClassAddress:
		return IndexUInt64, nil
	case ClassUndefined, ClassNull:
		return IndexAuto, nil
	default:
		return IndexAuto, errs.Newf(errs.KindInput, "object.ClassForIndexKey",
			"storage class %s cannot be used as a range-tree key", c)
	}
}
