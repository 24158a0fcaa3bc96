// Package object defines the parts of the Lume object model the code
// generator depends on: small-integer tagging, heap object tagging, class
// ids, and the field layouts of the heap objects the backend reads and
// writes directly.
package object

import "fmt"

const (
	// WordSize is the size of a machine word on all supported targets.
	WordSize = 8

	// Small integers ("smis") carry a zero low bit; heap pointers carry a
	// one. Smi arithmetic therefore works on the tagged representation for
	// add/subtract, and untags one operand for multiply/divide/shift.
	SmiTagMask  = 1
	SmiTagShift = 1
	HeapTag     = 1

	// SmiBits is the number of magnitude bits in a smi payload (the sign
	// bit is excluded). A 64-bit word with one tag bit leaves 62.
	SmiBits = 62

	MaxSmi = int64(1)<<SmiBits - 1
	MinSmi = -(int64(1) << SmiBits)
)

// Ref is a raw machine word holding either a tagged smi or a tagged pointer
// to a heap object. The backend embeds Refs as immediates; materializing
// them through an object pool is the runtime's concern.
type Ref uint64

// NewSmi returns the tagged representation of v. v must be a valid smi.
func NewSmi(v int64) Ref {
	if !IsValidSmi(v) {
		panic(fmt.Sprintf("BUG: %d is not a valid smi", v))
	}
	return Ref(uint64(v) << SmiTagShift)
}

func IsValidSmi(v int64) bool { return v >= MinSmi && v <= MaxSmi }

func (r Ref) IsSmi() bool { return r&SmiTagMask == 0 }

// SmiValue returns the untagged integer payload. r must be a smi.
func (r Ref) SmiValue() int64 {
	if !r.IsSmi() {
		panic("BUG: SmiValue on a heap reference")
	}
	return int64(r) >> SmiTagShift
}

// Raw returns the word as the backend embeds it in code.
func (r Ref) Raw() int64 { return int64(r) }

// ClassID identifies a concrete runtime representation. The optimizer's type
// inference and the runtime's inline caches speak in these.
type ClassID uint16

const (
	IllegalCID ClassID = iota // "no class observed yet" / invalid
	DynamicCID                // statically unknown
	NullCID
	SmiCID
	MintCID // boxed 64-bit integer; unsupported by this backend
	DoubleCID
	BoolCID
	FunctionCID
	FieldCID
	ContextCID

	// Indexable classes. The order within each group matters: the backend
	// and the guard-length logic use range comparisons over these ids, so
	// typed data cids are contiguous, with the external variants adjacent.
	ArrayCID
	ImmutableArrayCID
	OneByteStringCID
	TwoByteStringCID
	TypedDataInt8ArrayCID
	TypedDataUint8ArrayCID
	TypedDataUint8ClampedArrayCID
	TypedDataInt16ArrayCID
	TypedDataUint16ArrayCID
	TypedDataInt32ArrayCID
	TypedDataUint32ArrayCID
	TypedDataFloat32ArrayCID
	TypedDataFloat64ArrayCID
	TypedDataFloat32x4ArrayCID
	TypedDataInt32x4ArrayCID
	TypedDataFloat64x2ArrayCID
	ExternalTypedDataUint8ArrayCID
	ExternalTypedDataUint8ClampedArrayCID

	NumPredefinedCIDs
)

// IsTypedData reports whether cid is one of the internal typed data classes.
func (cid ClassID) IsTypedData() bool {
	return cid >= TypedDataInt8ArrayCID && cid <= TypedDataFloat64x2ArrayCID
}

// IsExternal reports whether the backing store pointer of cid points at raw
// data with no object header (external typed data).
func (cid ClassID) IsExternal() bool {
	return cid == ExternalTypedDataUint8ArrayCID ||
		cid == ExternalTypedDataUint8ClampedArrayCID
}

func (cid ClassID) String() string {
	if int(cid) < len(cidNames) {
		return cidNames[cid]
	}
	return fmt.Sprintf("cid(%d)", uint16(cid))
}

var cidNames = [...]string{
	"illegal", "dynamic", "null", "smi", "mint", "double", "bool",
	"function", "field", "context",
	"array", "immutable-array", "one-byte-string", "two-byte-string",
	"int8-array", "uint8-array", "uint8-clamped-array",
	"int16-array", "uint16-array", "int32-array", "uint32-array",
	"float32-array", "float64-array",
	"float32x4-array", "int32x4-array", "float64x2-array",
	"external-uint8-array", "external-uint8-clamped-array",
}

// Heap object layout. Every heap object starts with a one-word header whose
// low halfword is the class id; the remaining header bits hold GC state and
// the allocation size and do not concern the backend beyond construction.
const (
	HeaderOffset        = 0
	HeaderClassIDOffset = 0 // little-endian low halfword of the header
	HeaderSizeShift     = 16

	ArrayLengthOffset   = WordSize     // smi
	ArrayTypeArgsOffset = 2 * WordSize // tagged
	ArrayDataOffset     = 3 * WordSize

	TypedDataLengthOffset = WordSize // smi
	TypedDataDataOffset   = 2 * WordSize

	StringLengthOffset = WordSize // smi
	StringDataOffset   = 2 * WordSize

	DoubleValueOffset = WordSize
	DoubleSize        = 2 * WordSize

	// Function and Code objects, as read by closure calls.
	FunctionCodeOffset         = 2 * WordSize
	FunctionUsageCounterOffset = 3 * WordSize // untagged int64
	CodeEntryPointOffset       = WordSize     // untagged address

	// Field objects, as read by guard checks and static field access.
	FieldValueOffset             = WordSize     // tagged (static fields)
	FieldGuardedCIDOffset        = 2 * WordSize // untagged, halfword width
	FieldNullabilityCIDOffset    = 3 * WordSize // untagged, halfword width
	FieldGuardedListLengthOffset = 4 * WordSize // smi, negative = no guard
	FieldKindBitsOffset          = 5 * WordSize // untagged byte

	FieldUnboxingCandidateBit = 1

	// GuardedListLengthUnknown is stored (as a smi) in a field's guarded
	// length slot when no fixed length is being tracked.
	GuardedListLengthUnknown = -1
)

// HeaderWord returns the header to store when allocating an instance of cid
// with the given size in bytes.
func HeaderWord(cid ClassID, size int64) int64 {
	return int64(cid) | size<<HeaderSizeShift
}

// ElementSizeFor returns the element size in bytes (the index scale factor)
// for an indexable class.
func ElementSizeFor(cid ClassID) int64 {
	switch cid {
	case TypedDataInt8ArrayCID, TypedDataUint8ArrayCID,
		TypedDataUint8ClampedArrayCID,
		ExternalTypedDataUint8ArrayCID, ExternalTypedDataUint8ClampedArrayCID,
		OneByteStringCID:
		return 1
	case TypedDataInt16ArrayCID, TypedDataUint16ArrayCID, TwoByteStringCID:
		return 2
	case TypedDataInt32ArrayCID, TypedDataUint32ArrayCID,
		TypedDataFloat32ArrayCID:
		return 4
	case ArrayCID, ImmutableArrayCID, TypedDataFloat64ArrayCID:
		return 8
	case TypedDataFloat32x4ArrayCID, TypedDataInt32x4ArrayCID,
		TypedDataFloat64x2ArrayCID:
		return 16
	}
	panic(fmt.Sprintf("BUG: %v is not indexable", cid))
}

// DataOffsetFor returns the offset from an (untagged) object address to the
// first element of an indexable class. External stores point straight at
// their data and have no header offset.
func DataOffsetFor(cid ClassID) int64 {
	switch {
	case cid.IsExternal():
		return 0
	case cid == ArrayCID || cid == ImmutableArrayCID:
		return ArrayDataOffset
	case cid == OneByteStringCID || cid == TwoByteStringCID:
		return StringDataOffset
	case cid.IsTypedData():
		return TypedDataDataOffset
	}
	panic(fmt.Sprintf("BUG: %v is not indexable", cid))
}

// LengthOffsetFor returns the offset of the smi length field for an
// indexable class, relative to the untagged object address.
func LengthOffsetFor(cid ClassID) int64 {
	switch {
	case cid == ArrayCID || cid == ImmutableArrayCID:
		return ArrayLengthOffset
	case cid == OneByteStringCID || cid == TwoByteStringCID:
		return StringLengthOffset
	case cid.IsTypedData():
		return TypedDataLengthOffset
	}
	panic(fmt.Sprintf("BUG: %v has no length field", cid))
}

// InstanceSizeFor returns the allocation size for the fixed-size classes the
// backend allocates inline.
func InstanceSizeFor(cid ClassID) int64 {
	switch cid {
	case DoubleCID:
		return DoubleSize
	}
	panic(fmt.Sprintf("BUG: backend does not allocate %v inline", cid))
}
