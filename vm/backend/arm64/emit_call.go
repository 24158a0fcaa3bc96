package arm64

import (
	"fmt"

	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/arm64"

	"github.com/lumevm/lume/vm/backend"
	"github.com/lumevm/lume/vm/ir"
	"github.com/lumevm/lume/vm/object"
)

// argumentSlotSize is the stack space one pushed argument occupies. Pushes
// keep 16-byte alignment, so each argument takes a full pair slot.
const argumentSlotSize = 16

func (c *Compiler) emitPushArgument(v *ir.PushArgument) error {
	in := v.Locs().In(0)
	if in.IsConstant() {
		c.movConst(in.ConstantValue(), tmpRegister)
		c.push(tmpRegister)
		return nil
	}
	c.push(in.Reg())
	return nil
}

// dropArguments pops the pushed argument slots after a call returns.
func (c *Compiler) dropArguments(count int) {
	if count == 0 {
		return
	}
	c.emitConstRR(arm64.AADD, int64(count)*argumentSlotSize, stackPointerRegister, stackPointerRegister)
}

func (c *Compiler) emitStaticCall(v *ir.StaticCall) error {
	c.materializeRef(v.ArgsDescriptor, argsDescriptorRegister)
	c.callAddress(c.env.CallTargetAddress(v.Function), backend.DescCall, v.DeoptID(), v.Pos())
	c.dropArguments(v.ArgCount)
	return nil
}

func (c *Compiler) emitClosureCall(v *ir.ClosureCall) error {
	// The closure's function rides in the result register; chase its code
	// object to the entry point.
	fn := v.Locs().In(0).Reg()
	c.load(arm64.AMOVD, fn, object.FunctionCodeOffset-object.HeapTag, tmpRegister)
	c.load(arm64.AMOVD, tmpRegister, object.CodeEntryPointOffset-object.HeapTag, tmpRegister)
	c.materializeRef(v.ArgsDescriptor, argsDescriptorRegister)
	c.callRegister(tmpRegister, backend.DescCall, v.DeoptID(), v.Pos())
	c.dropArguments(v.ArgCount)
	return nil
}

// emitPolymorphicInstanceCall dispatches on the receiver's class through an
// inline chain of compares over the call site's observed targets. A
// receiver outside the observed set deoptimizes so the site can be
// re-profiled.
func (c *Compiler) emitPolymorphicInstanceCall(v *ir.PolymorphicInstanceCall) error {
	if len(v.Targets) == 0 {
		return fmt.Errorf("BUG: polymorphic call with no targets")
	}
	receiver := v.Locs().In(0).Reg()

	// Receiver class id, with smis resolved off the tag bit.
	c.movConst(int64(object.SmiCID), tmp2Register)
	c.tstConst(object.SmiTagMask, receiver)
	haveCID := c.branchOverNext(arm64.ABEQ)
	c.loadClassIDOf(receiver, tmp2Register)
	c.resolveAtNext(haveCID)

	done := c.newLabel()
	for i, t := range v.Targets {
		c.cmpConst(int64(t.CID), tmp2Register)
		last := i == len(v.Targets)-1
		if last && v.Megamorphic {
			miss := c.newLabel()
			c.branchToLabel(condNE.branchOp(), miss)
			c.emitCallToTarget(v, t.Target)
			c.branchToLabel(obj.AJMP, done)
			c.bind(miss)
			// The miss handler finds the target in the global cache and
			// completes the call itself.
			c.materializeRef(v.ArgsDescriptor, argsDescriptorRegister)
			c.callEntry(backend.EntryMegamorphicMiss, backend.DescCall, v.DeoptID(), v.Pos())
		} else if last {
			c.deoptIf(condNE, backend.DeoptPolymorphicInstanceCallTestFail)
			c.emitCallToTarget(v, t.Target)
		} else {
			next := c.newLabel()
			c.branchToLabel(condNE.branchOp(), next)
			c.emitCallToTarget(v, t.Target)
			c.branchToLabel(obj.AJMP, done)
			c.bind(next)
		}
	}
	c.bind(done)
	c.dropArguments(v.ArgCount)
	return nil
}

func (c *Compiler) emitCallToTarget(v *ir.PolymorphicInstanceCall, target object.Ref) {
	c.materializeRef(v.ArgsDescriptor, argsDescriptorRegister)
	c.callAddress(c.env.CallTargetAddress(target), backend.DescCall, v.DeoptID(), v.Pos())
}

func (c *Compiler) emitNativeCall(v *ir.NativeCall) error {
	// The wrapper receives the resolved native entry in its fixed register
	// and marshals the pushed arguments.
	c.movConst(c.env.NativeEntryAddress(v.Name), nativeFunctionRegister)
	c.callEntry(backend.EntryNativeCallWrapper, backend.DescCall, v.DeoptID(), v.Pos())
	c.dropArguments(v.ArgCount)
	return nil
}

func (c *Compiler) emitCreateArray(v *ir.CreateArray) error {
	// Element type and length arrive in the stub's fixed registers.
	c.callEntry(backend.EntryAllocateArray, backend.DescCall, v.DeoptID(), v.Pos())
	return nil
}

func (c *Compiler) emitAllocateObject(v *ir.AllocateObject) error {
	c.callAddress(c.env.AllocationStubAddress(v.CID), backend.DescCall, v.DeoptID(), v.Pos())
	c.dropArguments(v.ArgCount)
	return nil
}

func (c *Compiler) emitAssertBoolean(v *ir.AssertBoolean) error {
	value := v.Locs().In(0).Reg()
	done := c.newLabel()
	c.materializeRef(c.env.TrueRef(), tmpRegister)
	c.cmpRR(tmpRegister, value)
	c.branchToLabel(condEQ.branchOp(), done)
	c.materializeRef(c.env.FalseRef(), tmpRegister)
	c.cmpRR(tmpRegister, value)
	c.branchToLabel(condEQ.branchOp(), done)
	// Neither boolean: raise the type error. The call never returns.
	c.push(value)
	c.callEntry(backend.EntryNonBoolTypeError, backend.DescRuntimeCall, v.DeoptID(), v.Pos())
	brk := c.newProg()
	brk.As = obj.AUNDEF
	c.addInstruction(brk)
	c.bind(done)
	return nil
}
