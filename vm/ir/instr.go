package ir

import (
	"github.com/lumevm/lume/vm/object"
)

// Constant materializes a tagged object reference (smi or heap object).
type Constant struct {
	Base
	Value object.Ref
}

func (*Constant) Kind() Kind { return KindConstant }

// UnboxedConstant materializes a raw double into an FPU register.
type UnboxedConstant struct {
	Base
	Value float64
}

func (*UnboxedConstant) Kind() Kind { return KindUnboxedConstant }

// BinarySmiOp is arithmetic on two tagged smis. Unless Truncating, overflow
// deoptimizes; shift and division operands carry extra validity checks that
// range analysis may prove away.
type BinarySmiOp struct {
	Base
	Op          Token
	Left, Right Operand

	// Truncating means the surrounding code only observes the low bits, so
	// overflow checking is unnecessary.
	Truncating bool

	// ResultRange is the inferred range of this definition, used to elide
	// the overflow check on left shifts.
	ResultRange *Range
}

func (*BinarySmiOp) Kind() Kind { return KindBinarySmiOp }

// RightIsPowerOfTwoConstant reports whether the right operand is a constant
// smi with exactly one bit set, enabling the strength-reduced division form.
func (op *BinarySmiOp) RightIsPowerOfTwoConstant() bool {
	if !op.Right.BindsToSmiConstant() {
		return false
	}
	v := op.Right.SmiConstant()
	return v > 0 && v&(v-1) == 0
}

// CanDeoptimize reports whether any emitted path can reach a deopt stub.
func (op *BinarySmiOp) CanDeoptimize() bool {
	switch op.Op {
	case TokenBitAnd, TokenBitOr, TokenBitXor:
		return false
	case TokenSHR:
		// Right shift saturates; it deoptimizes only on negative counts,
		// which a non-negative range disproves.
		return !op.Right.Range.IsWithin(0, object.MaxSmi)
	case TokenSHL:
		if op.Right.BindsToSmiConstant() {
			return !op.Truncating && op.ResultRange == nil
		}
		return true
	default:
		return !op.Truncating
	}
}

// UnarySmiOp is smi negation or bitwise complement.
type UnarySmiOp struct {
	Base
	Op    Token
	Value Operand
}

func (*UnarySmiOp) Kind() Kind { return KindUnarySmiOp }

// TruncDivMod computes quotient and remainder in one instruction, producing a
// pair output.
type TruncDivMod struct {
	Base
	Left, Right Operand
}

func (*TruncDivMod) Kind() Kind { return KindTruncDivMod }

// BinaryDoubleOp is arithmetic on two unboxed doubles. It never deoptimizes;
// NaN propagation follows the hardware.
type BinaryDoubleOp struct {
	Base
	Op          Token
	Left, Right Operand
}

func (*BinaryDoubleOp) Kind() Kind { return KindBinaryDoubleOp }

// ComparisonInstr is implemented by the comparison kinds that a Branch or
// IfThenElse can fuse with, computing flags instead of a materialized boolean.
type ComparisonInstr interface {
	Instr
	comparison()
}

// EqualityCompare compares two values of a known numeric class for equality.
// OperandCID selects the smi or double comparison form.
type EqualityCompare struct {
	Base
	Op          Token // TokenEQ or TokenNE
	OperandCID  object.ClassID
	Left, Right Operand
}

func (*EqualityCompare) Kind() Kind  { return KindEqualityCompare }
func (*EqualityCompare) comparison() {}

// RelationalOp is an ordered comparison (<, <=, >, >=) on smis or doubles.
type RelationalOp struct {
	Base
	Op          Token
	OperandCID  object.ClassID
	Left, Right Operand
}

func (*RelationalOp) Kind() Kind  { return KindRelationalOp }
func (*RelationalOp) comparison() {}

// StrictCompare is identity comparison: raw reference equality, with an
// optional number normalization call when either side may be a boxed number.
type StrictCompare struct {
	Base
	Op               Token // TokenEQStrict or TokenNEStrict
	NeedsNumberCheck bool
	Left, Right      Operand
}

func (*StrictCompare) Kind() Kind  { return KindStrictCompare }
func (*StrictCompare) comparison() {}

// TestSmi tests bits of the left operand against the right (tst), branching
// on zero/non-zero. Produced by the optimizer for patterns like `x & mask`.
type TestSmi struct {
	Base
	Op          Token // TokenEQ or TokenNE
	Left, Right Operand
}

func (*TestSmi) Kind() Kind  { return KindTestSmi }
func (*TestSmi) comparison() {}

// Branch is a two-way block terminator fused with its comparison: the
// comparison sets flags and Branch consumes them directly.
type Branch struct {
	Base
	Comparison  ComparisonInstr
	TrueTarget  BlockID
	FalseTarget BlockID
}

func (*Branch) Kind() Kind { return KindBranch }

// IfThenElse materializes one of two smi constants from a fused comparison
// without branching over a phi.
type IfThenElse struct {
	Base
	Comparison ComparisonInstr
	TrueValue  int64
	FalseValue int64
}

func (*IfThenElse) Kind() Kind { return KindIfThenElse }

// BooleanNegate flips a boolean value between the canonical true and false
// objects.
type BooleanNegate struct {
	Base
	Value Operand
}

func (*BooleanNegate) Kind() Kind { return KindBooleanNegate }

// CheckSmi deoptimizes unless the value is a smi.
type CheckSmi struct {
	Base
	Value Operand
}

func (*CheckSmi) Kind() Kind { return KindCheckSmi }

// CheckClass deoptimizes unless the value's class id is in CIDs (sorted
// ascending, no duplicates, never containing the smi class: smi-ness is
// tested from the tag bit before the class id is loaded).
type CheckClass struct {
	Base
	Value Operand
	CIDs  []object.ClassID

	// SmiOK means a smi value passes the check; otherwise the smi tag test
	// itself deoptimizes.
	SmiOK bool

	// NullCheck restricts the check to "is not null", comparing against the
	// null object directly without loading a class id.
	NullCheck bool

	// Hoisted marks checks licm moved out of loops; they deoptimize with a
	// distinct reason so the optimizer stops hoisting repeated offenders.
	Hoisted bool
}

func (*CheckClass) Kind() Kind { return KindCheckClass }

// CheckEitherNonSmi deoptimizes when both operands are smis. It guards
// double paths specialized on the assumption that at least one side is a
// boxed double.
type CheckEitherNonSmi struct {
	Base
	Left, Right Operand
}

func (*CheckEitherNonSmi) Kind() Kind { return KindCheckEitherNonSmi }

// CheckArrayBound deoptimizes unless 0 <= index < length. Both operands are
// tagged smis, so the unsigned compare trick covers the negative case.
type CheckArrayBound struct {
	Base
	Length, Index Operand
}

func (*CheckArrayBound) Kind() Kind { return KindCheckArrayBound }

// IsRedundant reports whether the index range is statically inside the
// length range, letting the backend emit nothing.
func (c *CheckArrayBound) IsRedundant() bool {
	if c.Index.Range == nil || c.Length.Range == nil {
		return false
	}
	lenMin, ok := c.Length.Range.SingleValue()
	if !ok {
		lenMin = c.Length.Range.Min
		if c.Length.Range.MinIsUnbounded() {
			return false
		}
	}
	return c.Index.Range.IsWithin(0, lenMin-1)
}

// CheckStackOverflow polls the stack limit and calls the runtime on the slow
// path. Inside loops it doubles as the interrupt check and the on-stack
// replacement trigger.
type CheckStackOverflow struct {
	Base
	LoopDepth int // 0 outside loops
}

func (*CheckStackOverflow) Kind() Kind { return KindCheckStackOverflow }

// LoadIndexed loads element Index of a typed or object array. ElementCID
// selects element size, signedness, and result representation.
type LoadIndexed struct {
	Base
	Array, Index Operand
	ElementCID   object.ClassID

	// External means Array is a raw data pointer (already untagged) rather
	// than a heap object with an inline payload.
	External bool
}

func (*LoadIndexed) Kind() Kind { return KindLoadIndexed }

// StoreIndexed stores Value into element Index. Stores into uint8-clamped
// arrays saturate; stores of objects emit the write barrier unless the value
// is statically a smi or constant.
type StoreIndexed struct {
	Base
	Array, Index, Value Operand
	ElementCID          object.ClassID
	External            bool
}

func (*StoreIndexed) Kind() Kind { return KindStoreIndexed }

// NeedsWriteBarrier reports whether the stored reference may be a heap
// object the collector must hear about.
func (s *StoreIndexed) NeedsWriteBarrier() bool {
	if s.ElementCID != object.ArrayCID {
		return false
	}
	return !s.Value.IsSmi() && s.Value.Constant == nil
}

// LoadField loads a word at a fixed offset inside an instance. When the
// field's guard established an unboxed double representation, the load reads
// the raw payload into an FPU register instead.
type LoadField struct {
	Base
	Instance      Operand
	OffsetInBytes int64
	Field         *Field // nil for offsets with no feedback object
	ResultCID     object.ClassID
}

func (*LoadField) Kind() Kind { return KindLoadField }

// IsUnboxedLoad reports whether the guarded field stores its double inline,
// so the load can bypass the box.
func (l *LoadField) IsUnboxedLoad() bool {
	return l.Field != nil && l.Field.UnboxingCandidate &&
		l.Field.GuardedCID == object.DoubleCID && !l.Field.Nullable
}

// IsPotentialUnboxedLoad reports whether the field may hold a mutable box
// the optimized tier mutates in place, so unoptimized code must dispatch on
// the guard state at run time.
func (l *LoadField) IsPotentialUnboxedLoad() bool {
	return l.Field != nil && l.Field.UnboxingCandidate
}

// StoreInstanceField stores Value at a fixed offset inside Instance, with a
// write barrier unless the value is statically barrier-exempt.
type StoreInstanceField struct {
	Base
	Instance, Value Operand
	OffsetInBytes   int64
	Field           *Field

	// Initialization marks the first store into a freshly allocated object,
	// which cannot need a barrier.
	Initialization bool
}

func (*StoreInstanceField) Kind() Kind { return KindStoreInstanceField }

func (s *StoreInstanceField) NeedsWriteBarrier() bool {
	if s.Initialization {
		return false
	}
	return !s.Value.IsSmi() && s.Value.Constant == nil
}

// IsUnboxedStore mirrors LoadField.IsUnboxedLoad for the store side.
func (s *StoreInstanceField) IsUnboxedStore() bool {
	return s.Field != nil && s.Field.UnboxingCandidate &&
		s.Field.GuardedCID == object.DoubleCID && !s.Field.Nullable
}

// GuardField checks a store's value against the field's guard state and
// deoptimizes on mismatch so the runtime can widen the guard.
type GuardField struct {
	Base
	Value Operand
	Field *Field
}

func (*GuardField) Kind() Kind { return KindGuardField }

// CanSkip reports whether the value statically satisfies the guard: right
// class, permitted nullness, and no tracked length to re-validate.
func (g *GuardField) CanSkip() bool {
	f := g.Field
	if f.GuardedCID == object.DynamicCID {
		return true // guard abandoned, everything passes
	}
	if f.NeedsLengthCheck() {
		return false
	}
	if g.Value.CID == object.DynamicCID || g.Value.CID != f.GuardedCID {
		return false
	}
	return !g.Value.Nullable || f.Nullable
}

// LoadStaticField loads the current value out of a field object.
type LoadStaticField struct {
	Base
	FieldObject Operand
}

func (*LoadStaticField) Kind() Kind { return KindLoadStaticField }

// StoreStaticField stores into a field object's value slot, with barrier.
type StoreStaticField struct {
	Base
	Field *Field
	Value Operand
}

func (*StoreStaticField) Kind() Kind { return KindStoreStaticField }

// LoadClassID loads the value's class id as a tagged smi; smi values yield
// the smi class id without touching memory.
type LoadClassID struct {
	Base
	Object Operand
}

func (*LoadClassID) Kind() Kind { return KindLoadClassID }

// LoadUntagged reads a raw pointer stored inside an object, e.g. the data
// pointer of an external typed array.
type LoadUntagged struct {
	Base
	Object Operand
	Offset int64
}

func (*LoadUntagged) Kind() Kind { return KindLoadUntagged }

// BoxDouble allocates a heap double for a raw value, inline when the
// allocation top has room and via a slow-path runtime call otherwise.
type BoxDouble struct {
	Base
	Value Operand
}

func (*BoxDouble) Kind() Kind { return KindBoxDouble }

// UnboxDouble extracts the raw payload of a boxed double. When the operand
// may be a smi it converts instead; when it may be neither, it deoptimizes.
type UnboxDouble struct {
	Base
	Value Operand
}

func (*UnboxDouble) Kind() Kind { return KindUnboxDouble }

// SmiToDouble converts a tagged smi to a raw double.
type SmiToDouble struct {
	Base
	Value Operand
}

func (*SmiToDouble) Kind() Kind { return KindSmiToDouble }

// DoubleToSmi truncates a raw double to a smi, deoptimizing when the result
// does not fit or the input is NaN.
type DoubleToSmi struct {
	Base
	Value Operand
}

func (*DoubleToSmi) Kind() Kind { return KindDoubleToSmi }

// PushArgument pushes a call argument onto the machine stack.
type PushArgument struct {
	Base
	Value Operand
}

func (*PushArgument) Kind() Kind { return KindPushArgument }

// StaticCall calls a known function through its code object.
type StaticCall struct {
	Base
	Function       object.Ref
	ArgCount       int
	ArgsDescriptor object.Ref
}

func (*StaticCall) Kind() Kind { return KindStaticCall }

// ClosureCall calls through a closure value: load its function, load the
// function's code, jump through the entry point.
type ClosureCall struct {
	Base
	ArgCount       int
	ArgsDescriptor object.Ref
}

func (*ClosureCall) Kind() Kind { return KindClosureCall }

// CallTarget is one (receiver class, target function) pair of a polymorphic
// call site's feedback.
type CallTarget struct {
	CID    object.ClassID
	Target object.Ref
}

// PolymorphicInstanceCall dispatches on the receiver's class id through an
// inline test chain over the observed targets. A receiver outside the set
// deoptimizes for re-profiling, or falls back to the global cache's miss
// handler once the site went megamorphic.
type PolymorphicInstanceCall struct {
	Base
	ArgCount       int
	ArgsDescriptor object.Ref
	Targets        []CallTarget // in observation order

	// Megamorphic routes unobserved receivers through the megamorphic miss
	// entry instead of deoptimizing.
	Megamorphic bool
}

func (*PolymorphicInstanceCall) Kind() Kind { return KindPolymorphicInstanceCall }

// NativeCall invokes a native-extension function through the runtime's
// native call wrapper.
type NativeCall struct {
	Base
	Name     string
	ArgCount int
}

func (*NativeCall) Kind() Kind { return KindNativeCall }

// CreateArray allocates a fixed-length array via the runtime stub. Operands
// arrive in fixed registers dictated by the stub's calling convention.
type CreateArray struct {
	Base
	ElementType, Length Operand
}

func (*CreateArray) Kind() Kind { return KindCreateArray }

// AllocateObject allocates an instance of a class via its allocation stub.
type AllocateObject struct {
	Base
	CID      object.ClassID
	ArgCount int
}

func (*AllocateObject) Kind() Kind { return KindAllocateObject }

// AssertBoolean checks that a condition value is the true or false object,
// calling the runtime to raise a type error otherwise. The value passes
// through as the result.
type AssertBoolean struct {
	Base
	Value Operand
}

func (*AssertBoolean) Kind() Kind { return KindAssertBoolean }

// Goto is an unconditional jump to another block, emitted only when the
// target is not the next block in sequence.
type Goto struct {
	Base
	Target BlockID
}

func (*Goto) Kind() Kind { return KindGoto }

// Return leaves the function with the value in the result register.
type Return struct {
	Base
	Value Operand
}

func (*Return) Kind() Kind { return KindReturn }

// Throw transfers to the runtime's exception unwinder and never returns.
type Throw struct {
	Base
}

func (*Throw) Kind() Kind { return KindThrow }

// ReThrow resumes propagation of the in-flight exception from a catch block.
type ReThrow struct {
	Base
	CatchTryIndex int
}

func (*ReThrow) Kind() Kind { return KindReThrow }

// The remaining kinds are carried in the IR for completeness but have no
// emitter in this backend; compiling them fails with an unsupported error.

type BinaryMintOp struct {
	Base
	Op          Token
	Left, Right Operand
}

func (*BinaryMintOp) Kind() Kind { return KindBinaryMintOp }

type ShiftMintOp struct {
	Base
	Op          Token
	Left, Right Operand
}

func (*ShiftMintOp) Kind() Kind { return KindShiftMintOp }

type UnaryMintOp struct {
	Base
	Op    Token
	Value Operand
}

func (*UnaryMintOp) Kind() Kind { return KindUnaryMintOp }

type BoxInteger struct {
	Base
	Value Operand
}

func (*BoxInteger) Kind() Kind { return KindBoxInteger }

type UnboxInteger struct {
	Base
	Value Operand
}

func (*UnboxInteger) Kind() Kind { return KindUnboxInteger }

type SimdOp struct {
	Base
	Mnemonic string
	Args     []Operand
}

func (*SimdOp) Kind() Kind { return KindSimdOp }
