package arm64

import (
	"github.com/twitchyliquid64/golang-asm/obj/arm64"
)

// Register conventions for generated code.
//
// R16 and R17 are the intra-procedure-call scratch registers; the emitters
// use them freely between instructions and the allocator never hands them
// out. R27 belongs to the assembler itself and R18 to the platform. R29 is
// the frame pointer and R30 the link register.
const (
	// resultRegister receives every instruction result that the calling
	// convention fixes, and carries the function's return value.
	resultRegister = arm64.REG_R0

	// argsDescriptorRegister carries the arguments descriptor array into
	// calls, per the calling convention shared with the interpreter.
	argsDescriptorRegister = arm64.REG_R4

	// nativeFunctionRegister carries the resolved native entry address into
	// the native call wrapper.
	nativeFunctionRegister = arm64.REG_R5

	// writeBarrierObjectRegister and writeBarrierValueRegister are the
	// inputs of the write-barrier runtime entry, which preserves all other
	// registers.
	writeBarrierObjectRegister = arm64.REG_R16
	writeBarrierValueRegister  = arm64.REG_R17

	tmpRegister  = arm64.REG_R16
	tmp2Register = arm64.REG_R17

	// fpuTmpRegister is the FPU scratch, outside the allocatable pool.
	fpuTmpRegister = arm64.REG_F31

	framePointerRegister = arm64.REG_R29
	linkRegister         = arm64.REG_R30
	zeroRegister         = arm64.REGZERO
	stackPointerRegister = arm64.REGSP
)

// allocatableGeneralPurposeRegisters is the pool the location assigner draws
// from, ordered so that scratch assignment is deterministic.
var allocatableGeneralPurposeRegisters = []int16{
	arm64.REG_R0, arm64.REG_R1, arm64.REG_R2, arm64.REG_R3,
	arm64.REG_R4, arm64.REG_R5, arm64.REG_R6, arm64.REG_R7,
	arm64.REG_R8, arm64.REG_R9, arm64.REG_R10, arm64.REG_R11,
	arm64.REG_R12, arm64.REG_R13, arm64.REG_R14, arm64.REG_R15,
	arm64.REG_R19, arm64.REG_R20, arm64.REG_R21, arm64.REG_R22,
	arm64.REG_R23, arm64.REG_R24, arm64.REG_R25,
}

// allocatableFPURegisters is the FPU pool.
var allocatableFPURegisters = []int16{
	arm64.REG_F0, arm64.REG_F1, arm64.REG_F2, arm64.REG_F3,
	arm64.REG_F4, arm64.REG_F5, arm64.REG_F6, arm64.REG_F7,
	arm64.REG_F8, arm64.REG_F9, arm64.REG_F10, arm64.REG_F11,
	arm64.REG_F12, arm64.REG_F13, arm64.REG_F14, arm64.REG_F15,
}
