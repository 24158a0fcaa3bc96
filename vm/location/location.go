// Package location defines the constraint language spoken between the code
// generator and the register allocator: per-instruction location summaries
// declaring where operands must live, and the concrete locations assigned to
// them before emission.
package location

import (
	"fmt"

	"github.com/lumevm/lume/vm/buildoptions"
)

// NilRegister indicates a register slot that holds no actual register.
const NilRegister int16 = -1

func IsNilRegister(r int16) bool { return r == NilRegister }

// Kind discriminates Location values. The unallocated kinds are policies the
// allocator must satisfy; the remaining kinds are concrete assignments.
type Kind byte

const (
	// Unallocated policies.
	Invalid Kind = iota
	Any
	PrefersRegister
	RequiresRegister
	RequiresFPURegister
	WritableRegister // register that the emitter may clobber in place
	SameAsFirstInput

	// Concrete locations.
	RegisterKind
	FPURegisterKind
	StackSlotKind
	ConstantKind
	PairKind
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case Any:
		return "any"
	case PrefersRegister:
		return "prefers-register"
	case RequiresRegister:
		return "requires-register"
	case RequiresFPURegister:
		return "requires-fpu-register"
	case WritableRegister:
		return "writable-register"
	case SameAsFirstInput:
		return "same-as-first-input"
	case RegisterKind:
		return "register"
	case FPURegisterKind:
		return "fpu-register"
	case StackSlotKind:
		return "stack-slot"
	case ConstantKind:
		return "constant"
	case PairKind:
		return "pair"
	}
	return fmt.Sprintf("kind(%d)", byte(k))
}

// Location is one operand, temp, or output slot of a location summary.
// Before allocation it holds a policy; after allocation a concrete place.
// The zero value is the invalid location.
type Location struct {
	kind Kind
	reg  int16
	slot int32
	// constant is the raw word of a compile-time constant operand (a tagged
	// smi or object reference), valid for ConstantKind.
	constant int64
	pair     *[2]Location
}

// Policy constructors.

func AnyLocation() Location         { return Location{kind: Any} }
func RequireRegister() Location     { return Location{kind: RequiresRegister} }
func RequireFPURegister() Location  { return Location{kind: RequiresFPURegister} }
func WritableRegisterLoc() Location { return Location{kind: WritableRegister} }
func SameAsFirstInputLoc() Location { return Location{kind: SameAsFirstInput} }
func PrefersRegisterLoc() Location  { return Location{kind: PrefersRegister} }

// Concrete constructors.

func RegisterLocation(reg int16) Location    { return Location{kind: RegisterKind, reg: reg} }
func FPURegisterLocation(reg int16) Location { return Location{kind: FPURegisterKind, reg: reg} }
func StackSlot(index int32) Location         { return Location{kind: StackSlotKind, slot: index} }

// Constant returns a location binding the operand to a compile-time constant
// raw word, embedded as an immediate instead of occupying a register.
func Constant(raw int64) Location { return Location{kind: ConstantKind, constant: raw} }

// Pair bundles two concrete locations for an instruction producing two
// logically related results (quotient and remainder). The two results' uses
// consume the halves positionally.
func Pair(first, second Location) Location {
	return Location{kind: PairKind, pair: &[2]Location{first, second}}
}

func (l Location) Kind() Kind          { return l.kind }
func (l Location) IsInvalid() bool     { return l.kind == Invalid }
func (l Location) IsConstant() bool    { return l.kind == ConstantKind }
func (l Location) IsRegister() bool    { return l.kind == RegisterKind }
func (l Location) IsFPURegister() bool { return l.kind == FPURegisterKind }
func (l Location) IsStackSlot() bool   { return l.kind == StackSlotKind }
func (l Location) IsPair() bool        { return l.kind == PairKind }

// IsUnallocated reports whether the location still holds a policy.
func (l Location) IsUnallocated() bool {
	return l.kind >= Any && l.kind <= SameAsFirstInput
}

// Reg returns the assigned register. The location must be a concrete
// (integer or FPU) register.
func (l Location) Reg() int16 {
	if l.kind != RegisterKind && l.kind != FPURegisterKind {
		panic(fmt.Sprintf("BUG: Reg() on %s location", l.kind))
	}
	return l.reg
}

// ConstantValue returns the bound raw constant word.
func (l Location) ConstantValue() int64 {
	if l.kind != ConstantKind {
		panic(fmt.Sprintf("BUG: ConstantValue() on %s location", l.kind))
	}
	return l.constant
}

// StackIndex returns the frame-pointer-relative slot index.
func (l Location) StackIndex() int32 {
	if l.kind != StackSlotKind {
		panic(fmt.Sprintf("BUG: StackIndex() on %s location", l.kind))
	}
	return l.slot
}

// PairAt returns half i of a pair location.
func (l Location) PairAt(i int) Location {
	if l.kind != PairKind {
		panic(fmt.Sprintf("BUG: PairAt() on %s location", l.kind))
	}
	return l.pair[i]
}

func (l Location) String() string {
	switch l.kind {
	case RegisterKind:
		return fmt.Sprintf("r%d", l.reg)
	case FPURegisterKind:
		return fmt.Sprintf("f%d", l.reg)
	case StackSlotKind:
		return fmt.Sprintf("fp[%d]", l.slot)
	case ConstantKind:
		return fmt.Sprintf("const(%#x)", l.constant)
	case PairKind:
		return fmt.Sprintf("(%s,%s)", l.pair[0], l.pair[1])
	default:
		return l.kind.String()
	}
}

// CallKind describes whether an instruction calls into the runtime, which
// governs caller-saved register treatment and safepoint recording.
type CallKind byte

const (
	NoCall CallKind = iota
	// Call instructions clobber all allocatable registers; every live value
	// must be spilled by the allocator before emission.
	Call
	// CallOnSlowPath instructions call only on a rarely taken out-of-line
	// path, which saves and restores the live registers itself.
	CallOnSlowPath
)

// Summary is one instruction's declared location constraints: the storage
// class of each input, the scratch registers needed mid-emission, and where
// the output goes. It is created once by the backend's constraint declarator
// and then filled in (policies replaced with concrete locations) by the
// register allocator.
type Summary struct {
	ins   []Location
	temps []Location
	out   Location
	call  CallKind

	// live is the set of registers holding live values across this
	// instruction, recorded by the allocator for CallOnSlowPath summaries
	// so the slow path can save and restore them.
	live RegisterSet
}

// NewSummary creates a summary with the given operand and temp counts. All
// slots start invalid and must be populated via SetIn/SetTemp/SetOut.
func NewSummary(inputs, temps int, call CallKind) *Summary {
	return &Summary{
		ins:   make([]Location, inputs),
		temps: make([]Location, temps),
		call:  call,
	}
}

func (s *Summary) InputCount() int    { return len(s.ins) }
func (s *Summary) TempCount() int     { return len(s.temps) }
func (s *Summary) CallKind() CallKind { return s.call }

func (s *Summary) In(i int) Location   { return s.ins[i] }
func (s *Summary) Temp(i int) Location { return s.temps[i] }
func (s *Summary) Out() Location       { return s.out }

func (s *Summary) SetIn(i int, l Location)   { s.ins[i] = l }
func (s *Summary) SetTemp(i int, l Location) { s.temps[i] = l }
func (s *Summary) SetOut(l Location)         { s.out = l }

// AddTemp appends one more scratch slot.
func (s *Summary) AddTemp(l Location) { s.temps = append(s.temps, l) }

// AlwaysCalls reports whether the main path calls the runtime.
func (s *Summary) AlwaysCalls() bool { return s.call == Call }

// LiveRegisters is the mutable live set consulted by slow paths.
func (s *Summary) LiveRegisters() *RegisterSet { return &s.live }

// CheckAllocated panics in debug builds if any slot still holds a policy.
// The emitters assume fully concrete summaries.
func (s *Summary) CheckAllocated() {
	if !buildoptions.IsDebugMode {
		return
	}
	for i, in := range s.ins {
		if in.IsUnallocated() {
			panic(fmt.Sprintf("BUG: input %d still unallocated (%s)", i, in))
		}
	}
	for i, tmp := range s.temps {
		if tmp.IsUnallocated() {
			panic(fmt.Sprintf("BUG: temp %d still unallocated (%s)", i, tmp))
		}
	}
	if s.out.IsUnallocated() {
		panic(fmt.Sprintf("BUG: output still unallocated (%s)", s.out))
	}
}
