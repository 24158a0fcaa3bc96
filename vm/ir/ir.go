// Package ir defines the architecture-independent intermediate
// representation consumed by the native-code backends. The optimizer builds
// and transforms these instructions elsewhere; a backend only reads them,
// attaches a location summary to each, and emits machine code.
package ir

import (
	"github.com/lumevm/lume/vm/location"
	"github.com/lumevm/lume/vm/object"
)

// Kind enumerates the closed set of instruction kinds. Backends dispatch on
// this; a kind absent from a backend's table is a fatal compile error, never
// a silent fallback.
type Kind uint8

const (
	KindInvalid Kind = iota

	KindConstant
	KindUnboxedConstant

	KindBinarySmiOp
	KindUnarySmiOp
	KindTruncDivMod
	KindBinaryDoubleOp

	KindEqualityCompare
	KindRelationalOp
	KindStrictCompare
	KindTestSmi
	KindBranch
	KindIfThenElse
	KindBooleanNegate

	KindCheckSmi
	KindCheckClass
	KindCheckEitherNonSmi
	KindCheckArrayBound
	KindCheckStackOverflow

	KindLoadIndexed
	KindStoreIndexed

	KindLoadField
	KindStoreInstanceField
	KindGuardField
	KindLoadStaticField
	KindStoreStaticField
	KindLoadClassID
	KindLoadUntagged

	KindBoxDouble
	KindUnboxDouble
	KindSmiToDouble
	KindDoubleToSmi

	KindPushArgument
	KindStaticCall
	KindClosureCall
	KindPolymorphicInstanceCall
	KindNativeCall
	KindCreateArray
	KindAllocateObject
	KindAssertBoolean

	KindGoto
	KindReturn
	KindThrow
	KindReThrow

	// 64-bit boxed integer ("mint") arithmetic and SIMD operations exist in
	// the IR but are not implemented by every backend.
	KindBinaryMintOp
	KindShiftMintOp
	KindUnaryMintOp
	KindBoxInteger
	KindUnboxInteger
	KindSimdOp

	NumKinds
)

// DeoptID identifies the deoptimization environment captured for an
// instruction. The backend passes it through to deopt stubs and PC
// descriptors; environment construction is the optimizer's job.
type DeoptID int32

// NoDeoptID marks instructions that cannot deoptimize.
const NoDeoptID DeoptID = -1

// After returns the continuation id recorded after a call with deopt id d,
// marking where unoptimized execution resumes once the call returns.
func (d DeoptID) After() DeoptID { return -d - 2 }

// SourcePos is an opaque source position token passed through to descriptors.
type SourcePos int32

const NoSourcePos SourcePos = -1

// Instr is one IR instruction node.
type Instr interface {
	Kind() Kind
	Locs() *location.Summary
	SetLocs(*location.Summary)
	DeoptID() DeoptID
	Pos() SourcePos
}

// Base carries the attributes common to all instructions. Embed it and set
// the exported fields at construction time.
type Base struct {
	locs  *location.Summary
	Deopt DeoptID
	At    SourcePos
}

func (b *Base) Locs() *location.Summary     { return b.locs }
func (b *Base) SetLocs(s *location.Summary) { b.locs = s }
func (b *Base) DeoptID() DeoptID            { return b.Deopt }
func (b *Base) Pos() SourcePos              { return b.At }

// Operand is the static metadata the optimizer inferred for one input value:
// its concrete class (if known), its integer range (if analyzed), and the
// constant it binds to (if any). The value's physical location lives in the
// instruction's summary, positionally.
type Operand struct {
	CID      object.ClassID // DynamicCID when unknown
	Range    *Range         // nil when not analyzed
	Constant *object.Ref    // non-nil when the operand binds to a constant
	Nullable bool
}

// IsSmi reports whether the operand is statically known to be a smi.
func (o Operand) IsSmi() bool { return o.CID == object.SmiCID }

// BindsToSmiConstant reports whether the operand is a compile-time smi.
func (o Operand) BindsToSmiConstant() bool {
	return o.Constant != nil && o.Constant.IsSmi()
}

// SmiConstant returns the untagged value of a smi-constant operand.
func (o Operand) SmiConstant() int64 { return o.Constant.SmiValue() }

// Token enumerates source-language operator kinds as they reach the backend.
type Token uint8

const (
	TokenIllegal Token = iota

	TokenEQ
	TokenNE
	TokenLT
	TokenGT
	TokenLE
	TokenGE
	TokenEQStrict
	TokenNEStrict

	TokenADD
	TokenSUB
	TokenMUL
	TokenDIV
	TokenTRUNCDIV
	TokenMOD
	TokenBitAnd
	TokenBitOr
	TokenBitXor
	TokenSHL
	TokenSHR

	TokenNegate
	TokenBitNot
)

func (t Token) String() string {
	switch t {
	case TokenEQ:
		return "=="
	case TokenNE:
		return "!="
	case TokenLT:
		return "<"
	case TokenGT:
		return ">"
	case TokenLE:
		return "<="
	case TokenGE:
		return ">="
	case TokenEQStrict:
		return "==="
	case TokenNEStrict:
		return "!=="
	case TokenADD:
		return "+"
	case TokenSUB:
		return "-"
	case TokenMUL:
		return "*"
	case TokenDIV:
		return "/"
	case TokenTRUNCDIV:
		return "~/"
	case TokenMOD:
		return "%"
	case TokenBitAnd:
		return "&"
	case TokenBitOr:
		return "|"
	case TokenBitXor:
		return "^"
	case TokenSHL:
		return "<<"
	case TokenSHR:
		return ">>"
	case TokenNegate:
		return "unary-"
	case TokenBitNot:
		return "~"
	}
	return "illegal"
}

// IsComparison reports whether t is a comparison operator.
func (t Token) IsComparison() bool { return t >= TokenEQ && t <= TokenNEStrict }

// Field is the compile-time view of a runtime field object, including the
// type-feedback guard state observed so far. The runtime object itself is
// reachable through Ref for code that must re-check or update guard state at
// execution time.
type Field struct {
	Ref object.Ref

	// GuardedCID is IllegalCID while no store has been observed,
	// DynamicCID once conflicting classes were seen (guard abandoned), and
	// a concrete class id while the guard holds.
	GuardedCID object.ClassID
	Nullable   bool

	// GuardedListLength is the fixed collection length the guard tracks,
	// or object.GuardedListLengthUnknown. Stores matching the guarded
	// class must re-validate it: hoisted length-dependent code assumes it
	// cannot change.
	GuardedListLength int64

	Final             bool
	UnboxingCandidate bool
}

// NeedsLengthCheck reports whether guard checks must also compare lengths.
func (f *Field) NeedsLengthCheck() bool {
	return f.GuardedListLength != object.GuardedListLengthUnknown
}

// BlockID names a basic block within one flow graph.
type BlockID int32

// Block is one basic block: a straight-line instruction list ending in a
// terminator (Goto, Branch, Return, Throw, ReThrow).
type Block struct {
	ID     BlockID
	Instrs []Instr
}

// Graph is one function's flow graph in reverse-postorder block sequence,
// exactly the order in which the backend emits code.
type Graph struct {
	Blocks []*Block

	// Function is the runtime function object being compiled; tier-up
	// checks read its usage counter.
	Function object.Ref

	// SpillSlotCount is the number of frame-pointer-relative spill slots
	// the allocator reserved; the backend sizes the frame from it.
	SpillSlotCount int32
}
