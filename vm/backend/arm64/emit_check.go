package arm64

import (
	"fmt"

	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/arm64"

	"github.com/lumevm/lume/vm/backend"
	"github.com/lumevm/lume/vm/ir"
	"github.com/lumevm/lume/vm/object"
)

func (c *Compiler) emitCheckSmi(v *ir.CheckSmi) error {
	c.tstConst(object.SmiTagMask, v.Locs().In(0).Reg())
	c.deoptIf(condNE, backend.DeoptCheckSmi)
	return nil
}

func (c *Compiler) emitCheckClass(v *ir.CheckClass) error {
	s := v.Locs()
	value := s.In(0).Reg()
	temp := s.Temp(0).Reg()
	reason := backend.DeoptCheckClass
	if v.Hoisted {
		reason = backend.DeoptHoistedCheckClass
	}

	if v.NullCheck {
		c.materializeRef(c.env.NullRef(), tmpRegister)
		c.cmpRR(tmpRegister, value)
		c.deoptIf(condEQ, reason)
		return nil
	}
	if len(v.CIDs) == 0 {
		return fmt.Errorf("BUG: class check with no classes")
	}

	// The tag bit distinguishes smis before any class id load.
	ok := c.newLabel()
	c.tstConst(object.SmiTagMask, value)
	if v.SmiOK {
		c.branchToLabel(condEQ.branchOp(), ok)
	} else {
		c.deoptIf(condEQ, reason)
	}
	c.loadClassIDOf(value, temp)
	for i, cid := range v.CIDs {
		c.cmpConst(int64(cid), temp)
		if i == len(v.CIDs)-1 {
			// The last mismatch is the failure.
			c.deoptIf(condNE, reason)
		} else {
			c.branchToLabel(condEQ.branchOp(), ok)
		}
	}
	c.bind(ok)
	return nil
}

func (c *Compiler) emitCheckEitherNonSmi(v *ir.CheckEitherNonSmi) error {
	s := v.Locs()
	// Both tags clear means both are smis, which the specialized double
	// code that follows cannot accept.
	c.emitRRR(arm64.AORR, s.In(1).Reg(), s.In(0).Reg(), tmpRegister)
	c.tstConst(object.SmiTagMask, tmpRegister)
	c.deoptIf(condEQ, backend.DeoptBinaryDoubleOp)
	return nil
}

func (c *Compiler) emitCheckArrayBound(v *ir.CheckArrayBound) error {
	if v.IsRedundant() {
		return nil
	}
	s := v.Locs()
	length := s.In(0)
	index := s.In(1)

	switch {
	case index.IsConstant():
		idx := object.Ref(index.ConstantValue())
		if !idx.IsSmi() || idx.SmiValue() < 0 {
			c.branchToLabel(obj.AJMP, c.deoptLabel(backend.DeoptCheckArrayBound))
			return nil
		}
		c.cmpConst(index.ConstantValue(), length.Reg())
		c.deoptIf(condLS, backend.DeoptCheckArrayBound)
	case length.IsConstant():
		// Both operands are tagged, so one unsigned compare also rejects
		// negative indexes: their tagged form is a huge unsigned value.
		c.cmpConst(length.ConstantValue(), index.Reg())
		c.deoptIf(condHS, backend.DeoptCheckArrayBound)
	default:
		c.cmpRR(length.Reg(), index.Reg())
		c.deoptIf(condHS, backend.DeoptCheckArrayBound)
	}
	return nil
}

func (c *Compiler) emitCheckStackOverflow(v *ir.CheckStackOverflow) error {
	slow := &stackOverflowSlowPath{
		instr:   v,
		summary: v.Locs(),
		entry:   c.newLabel(),
		exit:    c.newLabel(),
	}
	c.slowPaths = append(c.slowPaths, slow)

	if c.cfg.ForceSlowPathStackOverflow {
		c.branchToLabel(obj.AJMP, slow.entry)
	} else {
		c.movConst(c.env.StackLimitAddress(), tmpRegister)
		c.load(arm64.AMOVD, tmpRegister, 0, tmpRegister)
		c.movReg(stackPointerRegister, tmp2Register)
		c.cmpRR(tmpRegister, tmp2Register)
		// SP at or below the limit means the frame would not fit.
		c.branchToLabel(condLS.branchOp(), slow.entry)
	}
	if c.cfg.UseOSR && !c.cfg.Optimizing && v.LoopDepth > 0 &&
		c.cfg.OptimizationCounterThreshold > 0 {
		// Hot loops tier up through the same runtime call, which spots the
		// OSR request. Deeper loops wait for a proportionally hotter count.
		threshold := c.cfg.OptimizationCounterThreshold * int64(v.LoopDepth+1)
		c.materializeRef(c.fn, tmpRegister)
		c.load(arm64.AMOVD, tmpRegister, object.FunctionUsageCounterOffset-object.HeapTag, tmp2Register)
		c.cmpConst(threshold, tmp2Register)
		c.branchToLabel(condGE.branchOp(), slow.entry)
	}
	c.bind(slow.exit)
	return nil
}
