package arm64

import (
	"fmt"

	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/arm64"

	"github.com/lumevm/lume/vm/backend"
	"github.com/lumevm/lume/vm/ir"
	"github.com/lumevm/lume/vm/location"
	"github.com/lumevm/lume/vm/object"
)

// compareResult is what a comparison leaves behind: the condition its
// consumer should test, and whether the flags came from a floating compare
// (whose unordered outcome needs separate routing).
type compareResult struct {
	cond      Condition
	unordered bool
}

// emitComparisonCode emits the flag-setting portion of a comparison. Both
// the value-producing form and the fused branch form go through here, so the
// two can never disagree.
func (c *Compiler) emitComparisonCode(comp ir.ComparisonInstr) (compareResult, error) {
	s := comp.Locs()
	switch v := comp.(type) {
	case *ir.EqualityCompare:
		return c.emitNumericCompare(s, v.Op, v.OperandCID)
	case *ir.RelationalOp:
		return c.emitNumericCompare(s, v.Op, v.OperandCID)
	case *ir.StrictCompare:
		return c.emitStrictCompareCode(v)
	case *ir.TestSmi:
		left := s.In(0).Reg()
		if s.In(1).IsConstant() {
			c.tstConst(s.In(1).ConstantValue(), left)
		} else {
			c.tstRR(s.In(1).Reg(), left)
		}
		cond, err := smiCondition(v.Op)
		return compareResult{cond: cond}, err
	default:
		return compareResult{}, fmt.Errorf("BUG: %T is not a comparison", comp)
	}
}

func (c *Compiler) emitNumericCompare(s *location.Summary, op ir.Token, cid object.ClassID) (compareResult, error) {
	if cid == object.DoubleCID {
		c.fcmpd(s.In(1).Reg(), s.In(0).Reg())
		cond, err := doubleCondition(op)
		return compareResult{cond: cond, unordered: true}, err
	}
	if s.In(0).IsConstant() {
		// Constant left commutes into the immediate slot with the condition
		// flipped.
		c.cmpConst(s.In(0).ConstantValue(), s.In(1).Reg())
		cond, err := smiCondition(op)
		if err != nil {
			return compareResult{}, err
		}
		return compareResult{cond: cond.Flip()}, nil
	}
	left := s.In(0).Reg()
	if s.In(1).IsConstant() {
		c.cmpConst(s.In(1).ConstantValue(), left)
	} else {
		c.cmpRR(s.In(1).Reg(), left)
	}
	cond, err := smiCondition(op)
	return compareResult{cond: cond}, err
}

func (c *Compiler) emitStrictCompareCode(v *ir.StrictCompare) (compareResult, error) {
	s := v.Locs()
	cond := condEQ
	if v.Op == ir.TokenNEStrict {
		cond = condNE
	} else if v.Op != ir.TokenEQStrict {
		return compareResult{}, fmt.Errorf("BUG: %s is not a strict comparison", v.Op)
	}

	if v.NeedsNumberCheck {
		// Identity over numbers must not distinguish equal values boxed
		// separately; the runtime compares payloads and answers with the
		// canonical booleans.
		c.push(s.In(0).Reg())
		c.push(s.In(1).Reg())
		c.callEntry(backend.EntryIdentityCompare, backend.DescRuntimeCall, v.DeoptID(), v.Pos())
		c.materializeRef(c.env.TrueRef(), tmpRegister)
		c.cmpRR(tmpRegister, resultRegister)
		return compareResult{cond: cond}, nil
	}

	if s.In(0).IsConstant() {
		c.cmpConst(s.In(0).ConstantValue(), s.In(1).Reg())
	} else if s.In(1).IsConstant() {
		c.cmpConst(s.In(1).ConstantValue(), s.In(0).Reg())
	} else {
		c.cmpRR(s.In(1).Reg(), s.In(0).Reg())
	}
	return compareResult{cond: cond}, nil
}

// emitComparisonResult materializes a comparison into the canonical boolean
// objects.
func (c *Compiler) emitComparisonResult(comp ir.ComparisonInstr) error {
	res, err := c.emitComparisonCode(comp)
	if err != nil {
		return err
	}
	out := comp.Locs().Out().Reg()

	loadTrue := c.newLabel()
	loadFalse := c.newLabel()
	done := c.newLabel()
	if res.unordered {
		// An unordered (NaN) outcome is false for every comparison except
		// "not equal".
		if res.cond == condNE {
			c.branchToLabel(condVS.branchOp(), loadTrue)
		} else {
			c.branchToLabel(condVS.branchOp(), loadFalse)
		}
	}
	c.branchToLabel(res.cond.branchOp(), loadTrue)
	c.bind(loadFalse)
	c.loadBool(false, out)
	c.branchToLabel(obj.AJMP, done)
	c.bind(loadTrue)
	c.loadBool(true, out)
	c.bind(done)
	return nil
}

func (c *Compiler) emitBranch(v *ir.Branch) error {
	res, err := c.emitComparisonCode(v.Comparison)
	if err != nil {
		return err
	}
	trueL := c.labelFor(v.TrueTarget)
	falseL := c.labelFor(v.FalseTarget)
	if res.unordered {
		if res.cond == condNE {
			c.branchToLabel(condVS.branchOp(), trueL)
		} else {
			c.branchToLabel(condVS.branchOp(), falseL)
		}
	}
	switch {
	case v.FalseTarget == c.nextBlock:
		c.branchToLabel(res.cond.branchOp(), trueL)
	case v.TrueTarget == c.nextBlock:
		c.branchToLabel(res.cond.Negate().branchOp(), falseL)
	default:
		c.branchToLabel(res.cond.branchOp(), trueL)
		c.branchToLabel(obj.AJMP, falseL)
	}
	return nil
}

func (c *Compiler) emitIfThenElse(v *ir.IfThenElse) error {
	res, err := c.emitComparisonCode(v.Comparison)
	if err != nil {
		return err
	}
	out := v.Comparison.Locs().Out().Reg()

	loadTrue := c.newLabel()
	loadFalse := c.newLabel()
	done := c.newLabel()
	if res.unordered {
		if res.cond == condNE {
			c.branchToLabel(condVS.branchOp(), loadTrue)
		} else {
			c.branchToLabel(condVS.branchOp(), loadFalse)
		}
	}
	c.branchToLabel(res.cond.branchOp(), loadTrue)
	c.bind(loadFalse)
	c.movConst(object.NewSmi(v.FalseValue).Raw(), out)
	c.branchToLabel(obj.AJMP, done)
	c.bind(loadTrue)
	c.movConst(object.NewSmi(v.TrueValue).Raw(), out)
	c.bind(done)
	return nil
}

func (c *Compiler) emitBooleanNegate(v *ir.BooleanNegate) error {
	s := v.Locs()
	value := s.In(0).Reg()
	out := s.Out().Reg()

	done := c.newLabel()
	c.materializeRef(c.env.TrueRef(), tmpRegister)
	c.cmpRR(tmpRegister, value)
	c.loadBool(false, out)
	c.branchToLabel(condEQ.branchOp(), done)
	c.loadBool(true, out)
	c.bind(done)
	return nil
}

func (c *Compiler) emitGoto(v *ir.Goto) error {
	if v.Target != c.nextBlock {
		c.branchToLabel(obj.AJMP, c.labelFor(v.Target))
	}
	return nil
}

func (c *Compiler) emitReturn(v *ir.Return) error {
	// The value is pinned to the result register by the summary.
	c.emitEpilogue()
	return nil
}

func (c *Compiler) emitThrow(v *ir.Throw) error {
	c.callEntry(backend.EntryThrow, backend.DescRuntimeCall, v.DeoptID(), v.Pos())
	// The unwinder never returns here.
	brk := c.newProg()
	brk.As = obj.AUNDEF
	c.addInstruction(brk)
	return nil
}

func (c *Compiler) emitReThrow(v *ir.ReThrow) error {
	c.movConst(int64(v.CatchTryIndex), arm64.REG_R1)
	c.callEntry(backend.EntryReThrow, backend.DescRuntimeCall, v.DeoptID(), v.Pos())
	brk := c.newProg()
	brk.As = obj.AUNDEF
	c.addInstruction(brk)
	return nil
}
