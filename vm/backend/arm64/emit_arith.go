package arm64

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/arm64"

	"github.com/lumevm/lume/vm/backend"
	"github.com/lumevm/lume/vm/ir"
	"github.com/lumevm/lume/vm/object"
)

func (c *Compiler) emitConstant(v *ir.Constant) error {
	c.materializeRef(v.Value, v.Locs().Out().Reg())
	return nil
}

func (c *Compiler) emitUnboxedConstant(v *ir.UnboxedConstant) error {
	c.movConst(int64(math.Float64bits(v.Value)), tmpRegister)
	c.emitRR(arm64.AFMOVD, tmpRegister, v.Locs().Out().Reg())
	return nil
}

// smiUntagInto emits dst = src >> 1.
func (c *Compiler) smiUntagInto(src, dst int16) {
	c.emitConstRR(arm64.AASR, object.SmiTagShift, src, dst)
}

// smiTagInPlace emits reg = reg << 1.
func (c *Compiler) smiTagInPlace(reg int16) {
	c.emitConstRR(arm64.ALSL, object.SmiTagShift, reg, reg)
}

func (c *Compiler) emitBinarySmiOp(op *ir.BinarySmiOp) error {
	s := op.Locs()
	left := s.In(0).Reg()
	out := s.Out().Reg()
	canDeopt := op.CanDeoptimize()

	if s.In(1).IsConstant() {
		return c.emitBinarySmiOpConstRight(op, left, out, canDeopt)
	}
	right := s.In(1).Reg()

	switch op.Op {
	case ir.TokenADD:
		if canDeopt {
			c.emitRRR(arm64.AADDS, right, left, out)
			c.deoptIf(condVS, backend.DeoptBinarySmiOp)
		} else {
			c.emitRRR(arm64.AADD, right, left, out)
		}
	case ir.TokenSUB:
		if canDeopt {
			c.emitRRR(arm64.ASUBS, right, left, out)
			c.deoptIf(condVS, backend.DeoptBinarySmiOp)
		} else {
			c.emitRRR(arm64.ASUB, right, left, out)
		}
	case ir.TokenMUL:
		// One operand untagged keeps the product correctly tagged.
		c.smiUntagInto(left, tmpRegister)
		c.emitRRR(arm64.AMUL, right, tmpRegister, out)
		if canDeopt {
			// The high 64 bits must equal the sign extension of the low.
			c.emitRRR(arm64.ASMULH, right, tmpRegister, tmpRegister)
			c.cmpShifted(out, shiftASR, 63, tmpRegister)
			c.deoptIf(condNE, backend.DeoptBinarySmiOp)
		}
	case ir.TokenBitAnd:
		c.emitRRR(arm64.AAND, right, left, out)
	case ir.TokenBitOr:
		c.emitRRR(arm64.AORR, right, left, out)
	case ir.TokenBitXor:
		c.emitRRR(arm64.AEOR, right, left, out)
	case ir.TokenTRUNCDIV:
		c.emitSmiTruncDiv(op, left, right, out)
	case ir.TokenMOD:
		c.emitSmiMod(op, left, right, out)
	case ir.TokenSHR:
		c.emitSmiShiftRight(op, left, right, out, canDeopt)
	case ir.TokenSHL:
		c.emitSmiShiftLeft(op, left, right, out)
	default:
		return fmt.Errorf("BUG: unexpected smi binary op %s", op.Op)
	}
	return nil
}

func (c *Compiler) emitBinarySmiOpConstRight(op *ir.BinarySmiOp, left, out int16, canDeopt bool) error {
	raw := op.Locs().In(1).ConstantValue() // tagged
	value := raw >> object.SmiTagShift     // untagged

	switch op.Op {
	case ir.TokenADD:
		if canDeopt {
			c.emitConstRR(arm64.AADDS, raw, left, out)
			c.deoptIf(condVS, backend.DeoptBinarySmiOp)
		} else {
			c.emitConstRR(arm64.AADD, raw, left, out)
		}
	case ir.TokenSUB:
		if canDeopt {
			c.emitConstRR(arm64.ASUBS, raw, left, out)
			c.deoptIf(condVS, backend.DeoptBinarySmiOp)
		} else {
			c.emitConstRR(arm64.ASUB, raw, left, out)
		}
	case ir.TokenMUL:
		// Multiplying the tagged left by the untagged constant keeps the
		// result tagged.
		c.movConst(value, tmp2Register)
		c.emitRRR(arm64.AMUL, tmp2Register, left, out)
		if canDeopt {
			c.emitRRR(arm64.ASMULH, tmp2Register, left, tmpRegister)
			c.cmpShifted(out, shiftASR, 63, tmpRegister)
			c.deoptIf(condNE, backend.DeoptBinarySmiOp)
		}
	case ir.TokenBitAnd:
		c.emitConstRR(arm64.AAND, raw, left, out)
	case ir.TokenBitOr:
		c.emitConstRR(arm64.AORR, raw, left, out)
	case ir.TokenBitXor:
		c.emitConstRR(arm64.AEOR, raw, left, out)
	case ir.TokenTRUNCDIV:
		// Power-of-two divisor: arithmetic shift with bias for negative
		// dividends. The extra shift position accounts for the tag bit.
		if !op.RightIsPowerOfTwoConstant() {
			return fmt.Errorf("BUG: constant smi division by non-power-of-two %d", value)
		}
		shift := int64(bits.TrailingZeros64(uint64(value))) + object.SmiTagShift
		c.emitConstRR(arm64.AASR, 63, left, tmpRegister)
		c.emitShiftedRegOp(arm64.AADD, tmpRegister, shiftLSR, 64-shift, left, tmpRegister)
		c.emitConstRR(arm64.AASR, shift, tmpRegister, out)
		c.smiTagInPlace(out)
	case ir.TokenSHL:
		c.emitSmiShiftLeftConst(op, left, out, value, canDeopt)
	case ir.TokenSHR:
		// The count is untagged and saturated: shifting a smi right by 62
		// or more leaves only the sign.
		count := value + object.SmiTagShift
		if count > 63 {
			count = 63
		}
		c.emitConstRR(arm64.AASR, count, left, out)
		c.smiTagInPlace(out)
	default:
		return fmt.Errorf("BUG: unexpected smi binary op %s with constant", op.Op)
	}
	return nil
}

func (c *Compiler) emitSmiShiftLeftConst(op *ir.BinarySmiOp, left, out int16, count int64, canDeopt bool) {
	if count == 0 {
		c.movReg(left, out)
		return
	}
	if !canDeopt {
		c.emitConstRR(arm64.ALSL, count, left, out)
		return
	}
	// Overflow iff shifting back does not reproduce the input.
	c.emitConstRR(arm64.ALSL, count, left, tmpRegister)
	c.cmpShifted(tmpRegister, shiftASR, count, left)
	c.deoptIf(condNE, backend.DeoptBinarySmiOp)
	c.movReg(tmpRegister, out)
}

func (c *Compiler) emitSmiShiftLeft(op *ir.BinarySmiOp, left, right, out int16) {
	c.smiUntagInto(right, tmpRegister)
	if !op.Right.Range.IsWithin(0, object.MaxSmi) {
		// Negative shift counts are errors even on the truncating path.
		c.cmpConst(0, tmpRegister)
		c.deoptIf(condLT, backend.DeoptBinarySmiOp)
	}
	if op.Truncating || op.ResultRange != nil {
		// Counts of 64 and up produce zero; the hardware would take the
		// count modulo 64 instead.
		inRange := c.newLabel()
		done := c.newLabel()
		c.cmpConst(63, tmpRegister)
		c.branchToLabel(condLE.branchOp(), inRange)
		c.movConst(0, out)
		c.branchToLabel(obj.AJMP, done)
		c.bind(inRange)
		c.emitRRR(arm64.ALSL, tmpRegister, left, out)
		c.bind(done)
		return
	}
	// Overflow-checked: counts at or past the smi width always overflow a
	// non-zero value, and smaller counts are verified by shifting back.
	c.cmpConst(object.SmiBits, tmpRegister)
	c.deoptIf(condGE, backend.DeoptBinarySmiOp)
	c.emitRRR(arm64.ALSL, tmpRegister, left, tmp2Register)
	c.emitRRR(arm64.AASR, tmpRegister, tmp2Register, tmpRegister)
	c.cmpRR(tmpRegister, left)
	c.deoptIf(condNE, backend.DeoptBinarySmiOp)
	c.movReg(tmp2Register, out)
}

func (c *Compiler) emitSmiShiftRight(op *ir.BinarySmiOp, left, right, out int16, canDeopt bool) {
	c.smiUntagInto(right, tmpRegister)
	if canDeopt {
		c.cmpConst(0, tmpRegister)
		c.deoptIf(condLT, backend.DeoptBinarySmiOp)
	}
	// Saturate the count; a variable shift takes it modulo 64 otherwise.
	inRange := c.newLabel()
	c.cmpConst(63, tmpRegister)
	c.branchToLabel(condLE.branchOp(), inRange)
	c.movConst(63, tmpRegister)
	c.bind(inRange)
	c.smiUntagInto(left, tmp2Register)
	c.emitRRR(arm64.AASR, tmpRegister, tmp2Register, out)
	c.smiTagInPlace(out)
}

// emitDivisorCheck deoptimizes on a zero divisor unless range analysis
// excludes it. The divisor register holds the untagged value.
func (c *Compiler) emitDivisorCheck(rangeOfRight *ir.Range, untaggedRight int16) {
	if rangeOfRight.ExcludesZero() {
		return
	}
	c.cmpConst(0, untaggedRight)
	c.deoptIf(condEQ, backend.DeoptBinarySmiOp)
}

// minSmiQuotient is the only quotient magnitude that overflows the smi
// range: MinSmi / -1.
const minSmiQuotient = int64(1) << object.SmiBits

func (c *Compiler) emitSmiTruncDiv(op *ir.BinarySmiOp, left, right, out int16) {
	c.smiUntagInto(left, tmpRegister)
	c.smiUntagInto(right, tmp2Register)
	c.emitDivisorCheck(op.Right.Range, tmp2Register)
	c.emitRRR(arm64.ASDIV, tmp2Register, tmpRegister, out)
	if !op.Left.Range.IsWithin(object.MinSmi+1, object.MaxSmi) {
		// MinSmi / -1 is the one quotient that does not fit.
		c.movConst(minSmiQuotient, tmpRegister)
		c.cmpRR(tmpRegister, out)
		c.deoptIf(condEQ, backend.DeoptBinarySmiOp)
	}
	c.smiTagInPlace(out)
}

// emitSmiMod computes the Euclidean remainder: the result takes the sign
// convention res = left - (left ~/ right) * right, then negative remainders
// are shifted into [0, |right|).
func (c *Compiler) emitSmiMod(op *ir.BinarySmiOp, left, right, out int16) {
	c.smiUntagInto(left, tmpRegister)
	c.smiUntagInto(right, tmp2Register)
	c.emitDivisorCheck(op.Right.Range, tmp2Register)
	c.emitRRR(arm64.ASDIV, tmp2Register, tmpRegister, out)
	c.emitRRR(arm64.AMUL, tmp2Register, out, out)
	c.emitRRR(arm64.ASUB, out, tmpRegister, out)

	done := c.newLabel()
	negDivisor := c.newLabel()
	c.cmpConst(0, out)
	c.branchToLabel(condGE.branchOp(), done)
	c.cmpConst(0, tmp2Register)
	c.branchToLabel(condLT.branchOp(), negDivisor)
	c.emitRRR(arm64.AADD, tmp2Register, out, out)
	c.branchToLabel(obj.AJMP, done)
	c.bind(negDivisor)
	c.emitRRR(arm64.ASUB, tmp2Register, out, out)
	c.bind(done)
	c.smiTagInPlace(out)
}

func (c *Compiler) emitUnarySmiOp(op *ir.UnarySmiOp) error {
	s := op.Locs()
	value := s.In(0).Reg()
	out := s.Out().Reg()
	switch op.Op {
	case ir.TokenNegate:
		// Negating MinSmi overflows.
		c.emitRRR(arm64.ASUBS, value, zeroRegister, out)
		c.deoptIf(condVS, backend.DeoptUnarySmiOp)
	case ir.TokenBitNot:
		c.emitRR(arm64.AMVN, value, out)
		c.emitConstRR(arm64.AAND, ^int64(object.SmiTagMask), out, out)
	default:
		return fmt.Errorf("BUG: unexpected smi unary op %s", op.Op)
	}
	return nil
}

func (c *Compiler) emitTruncDivMod(v *ir.TruncDivMod) error {
	s := v.Locs()
	left := s.In(0).Reg()
	right := s.In(1).Reg()
	quot := s.Out().PairAt(0).Reg()
	rem := s.Out().PairAt(1).Reg()

	c.smiUntagInto(left, tmpRegister)
	c.smiUntagInto(right, tmp2Register)
	if !v.Right.Range.ExcludesZero() {
		c.cmpConst(0, tmp2Register)
		c.deoptIf(condEQ, backend.DeoptBinarySmiOp)
	}
	c.emitRRR(arm64.ASDIV, tmp2Register, tmpRegister, quot)
	if !v.Left.Range.IsWithin(object.MinSmi+1, object.MaxSmi) {
		c.movConst(minSmiQuotient, rem)
		c.cmpRR(rem, quot)
		c.deoptIf(condEQ, backend.DeoptBinarySmiOp)
	}
	c.emitRRR(arm64.AMUL, tmp2Register, quot, rem)
	c.emitRRR(arm64.ASUB, rem, tmpRegister, rem)

	done := c.newLabel()
	negDivisor := c.newLabel()
	c.cmpConst(0, rem)
	c.branchToLabel(condGE.branchOp(), done)
	c.cmpConst(0, tmp2Register)
	c.branchToLabel(condLT.branchOp(), negDivisor)
	c.emitRRR(arm64.AADD, tmp2Register, rem, rem)
	c.branchToLabel(obj.AJMP, done)
	c.bind(negDivisor)
	c.emitRRR(arm64.ASUB, tmp2Register, rem, rem)
	c.bind(done)
	c.smiTagInPlace(quot)
	c.smiTagInPlace(rem)
	return nil
}

func (c *Compiler) emitBinaryDoubleOp(op *ir.BinaryDoubleOp) error {
	s := op.Locs()
	left := s.In(0).Reg()
	right := s.In(1).Reg()
	out := s.Out().Reg()
	var as obj.As
	switch op.Op {
	case ir.TokenADD:
		as = arm64.AFADDD
	case ir.TokenSUB:
		as = arm64.AFSUBD
	case ir.TokenMUL:
		as = arm64.AFMULD
	case ir.TokenDIV:
		as = arm64.AFDIVD
	default:
		return fmt.Errorf("BUG: unexpected double op %s", op.Op)
	}
	c.emitRRR(as, right, left, out)
	return nil
}

func (c *Compiler) emitSmiToDouble(v *ir.SmiToDouble) error {
	s := v.Locs()
	c.smiUntagInto(s.In(0).Reg(), tmpRegister)
	c.emitRR(arm64.ASCVTFD, tmpRegister, s.Out().Reg())
	return nil
}

func (c *Compiler) emitDoubleToSmi(v *ir.DoubleToSmi) error {
	s := v.Locs()
	value := s.In(0).Reg()
	out := s.Out().Reg()
	// NaN compares unordered with itself and has no integer value.
	c.fcmpd(value, value)
	c.deoptIf(condVS, backend.DeoptDoubleToSmi)
	c.emitRR(arm64.AFCVTZSD, value, out)
	// Tagging doubles as an overflow check for values outside smi range.
	c.emitRRR(arm64.AADDS, out, out, out)
	c.deoptIf(condVS, backend.DeoptDoubleToSmi)
	return nil
}

func (c *Compiler) emitUnboxDouble(v *ir.UnboxDouble) error {
	s := v.Locs()
	value := s.In(0).Reg()
	out := s.Out().Reg()

	if v.Value.CID == object.DoubleCID {
		c.load(arm64.AFMOVD, value, object.DoubleValueOffset-object.HeapTag, out)
		return nil
	}
	isSmi := c.newLabel()
	done := c.newLabel()
	c.tstConst(object.SmiTagMask, value)
	c.branchToLabel(condEQ.branchOp(), isSmi)
	c.compareClassID(value, object.DoubleCID, tmpRegister)
	c.deoptIf(condNE, backend.DeoptUnbox)
	c.load(arm64.AFMOVD, value, object.DoubleValueOffset-object.HeapTag, out)
	c.branchToLabel(obj.AJMP, done)
	c.bind(isSmi)
	c.smiUntagInto(value, tmpRegister)
	c.emitRR(arm64.ASCVTFD, tmpRegister, out)
	c.bind(done)
	return nil
}

func (c *Compiler) emitBoxDouble(v *ir.BoxDouble) error {
	s := v.Locs()
	value := s.In(0).Reg()
	temp := s.Temp(0).Reg()
	out := s.Out().Reg()

	slow := &boxDoubleSlowPath{
		summary: s,
		out:     out,
		entry:   c.newLabel(),
		exit:    c.newLabel(),
		pos:     v.Pos(),
	}
	c.slowPaths = append(c.slowPaths, slow)

	c.tryAllocate(object.DoubleCID, object.InstanceSizeFor(object.DoubleCID), out, temp, slow.entry)
	c.bind(slow.exit)
	c.store(arm64.AFMOVD, value, out, object.DoubleValueOffset-object.HeapTag)
	return nil
}
