// Package backend defines the contract between the virtual machine and its
// architecture-specific code generators: the compilation configuration, the
// runtime environment the generated code links against, and the artifacts
// (machine code plus metadata tables) a backend produces.
package backend

import (
	"github.com/lumevm/lume/vm/ir"
	"github.com/lumevm/lume/vm/object"
)

// Config carries the per-compilation switches a backend consults while
// emitting code.
type Config struct {
	// Optimizing selects the optimizing compilation mode: deoptimization
	// stubs become legal and type-feedback-dependent fast paths turn on.
	// Unoptimized code instead validates feedback inline.
	Optimizing bool

	// UseOSR lets loop stack checks trigger on-stack replacement.
	UseOSR bool

	// OptimizationCounterThreshold is compared against a function's usage
	// counter by unoptimized entry code.
	OptimizationCounterThreshold int64

	// ForceSlowPathStackOverflow makes every stack check take the runtime
	// call path, for testing slow-path machinery.
	ForceSlowPathStackOverflow bool
}

// RuntimeEntry names a runtime function generated code may call.
type RuntimeEntry int

const (
	EntryStackOverflow RuntimeEntry = iota
	EntryThrow
	EntryReThrow
	EntryNonBoolTypeError
	EntryDeoptimize
	EntryWriteBarrier
	EntryAllocateArray
	EntryAllocateDouble
	EntryNativeCallWrapper
	EntryIdentityCompare
	EntryOptimize
	EntryUpdateFieldCID
	EntryMegamorphicMiss

	numRuntimeEntries
)

func (e RuntimeEntry) String() string {
	switch e {
	case EntryStackOverflow:
		return "StackOverflow"
	case EntryThrow:
		return "Throw"
	case EntryReThrow:
		return "ReThrow"
	case EntryNonBoolTypeError:
		return "NonBoolTypeError"
	case EntryDeoptimize:
		return "Deoptimize"
	case EntryWriteBarrier:
		return "WriteBarrier"
	case EntryAllocateArray:
		return "AllocateArray"
	case EntryAllocateDouble:
		return "AllocateDouble"
	case EntryNativeCallWrapper:
		return "NativeCallWrapper"
	case EntryIdentityCompare:
		return "IdentityCompare"
	case EntryOptimize:
		return "Optimize"
	case EntryUpdateFieldCID:
		return "UpdateFieldCID"
	case EntryMegamorphicMiss:
		return "MegamorphicMiss"
	}
	return "UnknownEntry"
}

// RuntimeEnv resolves the addresses and canonical objects generated code is
// linked against. Implementations are provided by the embedding VM; tests
// supply fakes with fixed addresses.
type RuntimeEnv interface {
	// EntryAddress returns the absolute address of a runtime entry.
	EntryAddress(e RuntimeEntry) int64

	// AllocationStubAddress returns the allocation stub for a class.
	AllocationStubAddress(cid object.ClassID) int64

	// CallTargetAddress returns the entry point recorded for a function's
	// current code object.
	CallTargetAddress(fn object.Ref) int64

	// NativeEntryAddress resolves a native-extension function by name.
	NativeEntryAddress(name string) int64

	// StackLimitAddress is the address of the thread's stack limit word,
	// reachable from the thread register.
	StackLimitAddress() int64

	// StackOverflowFlagsAddress holds the OSR-request flag the runtime sets
	// when a loop should tier up.
	StackOverflowFlagsAddress() int64

	// TopAddress and EndAddress bound the thread-local allocation region
	// used by inline allocation fast paths.
	TopAddress() int64
	EndAddress() int64

	TrueRef() object.Ref
	FalseRef() object.Ref
	NullRef() object.Ref
}

// DeoptReason explains why optimized code bailed out, recorded per deopt
// stub so the runtime can adjust feedback before recompiling.
type DeoptReason int

const (
	DeoptUnknown DeoptReason = iota
	DeoptBinarySmiOp
	DeoptUnarySmiOp
	DeoptBinaryDoubleOp
	DeoptCheckSmi
	DeoptCheckClass
	DeoptHoistedCheckClass
	DeoptCheckArrayBound
	DeoptGuardField
	DeoptUnbox
	DeoptDoubleToSmi
	DeoptPolymorphicInstanceCallTestFail
)

func (r DeoptReason) String() string {
	switch r {
	case DeoptBinarySmiOp:
		return "binary-smi-op"
	case DeoptUnarySmiOp:
		return "unary-smi-op"
	case DeoptBinaryDoubleOp:
		return "binary-double-op"
	case DeoptCheckSmi:
		return "check-smi"
	case DeoptCheckClass:
		return "check-class"
	case DeoptHoistedCheckClass:
		return "hoisted-check-class"
	case DeoptCheckArrayBound:
		return "check-array-bound"
	case DeoptGuardField:
		return "guard-field"
	case DeoptUnbox:
		return "unbox"
	case DeoptDoubleToSmi:
		return "double-to-smi"
	case DeoptPolymorphicInstanceCallTestFail:
		return "polymorphic-test-fail"
	}
	return "unknown"
}

// DescriptorKind classifies PC descriptor entries.
type DescriptorKind byte

const (
	DescDeopt DescriptorKind = iota
	DescCall
	DescRuntimeCall
	DescOSREntry
)

func (k DescriptorKind) String() string {
	switch k {
	case DescDeopt:
		return "deopt"
	case DescCall:
		return "call"
	case DescRuntimeCall:
		return "runtime-call"
	case DescOSREntry:
		return "osr-entry"
	}
	return "unknown"
}

// PCDescriptor associates one code offset with the deopt environment and
// source position active there. The runtime walks these tables to map return
// addresses back to IR state.
type PCDescriptor struct {
	Offset  int
	Kind    DescriptorKind
	DeoptID ir.DeoptID
	Pos     ir.SourcePos
}

// DeoptStubDescriptor records one out-of-line deopt stub: where it starts
// and why it fires.
type DeoptStubDescriptor struct {
	Offset  int
	DeoptID ir.DeoptID
	Reason  DeoptReason
}

// CompiledFunction is the output of one backend compilation: the machine
// code bytes and the metadata tables the runtime needs to install and later
// deoptimize it.
type CompiledFunction struct {
	Code        []byte
	Descriptors []PCDescriptor
	DeoptStubs  []DeoptStubDescriptor
}
