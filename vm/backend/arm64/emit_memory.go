package arm64

import (
	"fmt"
	"math/bits"

	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/arm64"

	"github.com/lumevm/lume/vm/ir"
	"github.com/lumevm/lume/vm/location"
	"github.com/lumevm/lume/vm/object"
)

// computeElementAddress leaves the untagged address of element index in
// tmpRegister. The index register holds a tagged smi, so the scale applied
// is the element size divided by the tag factor; byte elements shift the
// index right instead.
func (c *Compiler) computeElementAddress(cid object.ClassID, external bool, array, index int16) int64 {
	scale := object.ElementSizeFor(cid)
	var offset int64
	if external {
		offset = 0
	} else {
		offset = object.DataOffsetFor(cid) - object.HeapTag
	}
	switch scale {
	case 1:
		c.smiUntagInto(index, tmpRegister)
		c.emitRRR(arm64.AADD, tmpRegister, array, tmpRegister)
	case 2:
		// The tagged representation is already the byte offset.
		c.emitRRR(arm64.AADD, index, array, tmpRegister)
	default:
		shift := int64(bits.TrailingZeros64(uint64(scale))) - object.SmiTagShift
		c.emitShiftedRegOp(arm64.AADD, index, shiftLSL, shift, array, tmpRegister)
	}
	return offset
}

func (c *Compiler) emitLoadIndexed(v *ir.LoadIndexed) error {
	s := v.Locs()
	array := s.In(0).Reg()
	index := s.In(1).Reg()
	offset := c.computeElementAddress(v.ElementCID, v.External, array, index)
	out := s.Out().Reg()

	switch v.ElementCID {
	case object.ArrayCID, object.ImmutableArrayCID:
		c.load(arm64.AMOVD, tmpRegister, offset, out)

	case object.TypedDataInt8ArrayCID:
		c.load(arm64.AMOVB, tmpRegister, offset, out)
		c.smiTagInPlace(out)
	case object.TypedDataUint8ArrayCID, object.TypedDataUint8ClampedArrayCID,
		object.ExternalTypedDataUint8ArrayCID,
		object.ExternalTypedDataUint8ClampedArrayCID,
		object.OneByteStringCID:
		c.load(arm64.AMOVBU, tmpRegister, offset, out)
		c.smiTagInPlace(out)
	case object.TypedDataInt16ArrayCID:
		c.load(arm64.AMOVH, tmpRegister, offset, out)
		c.smiTagInPlace(out)
	case object.TypedDataUint16ArrayCID, object.TwoByteStringCID:
		c.load(arm64.AMOVHU, tmpRegister, offset, out)
		c.smiTagInPlace(out)
	case object.TypedDataInt32ArrayCID:
		c.load(arm64.AMOVW, tmpRegister, offset, out)
		c.smiTagInPlace(out)
	case object.TypedDataUint32ArrayCID:
		c.load(arm64.AMOVWU, tmpRegister, offset, out)
		c.smiTagInPlace(out)

	case object.TypedDataFloat32ArrayCID:
		// Widen to double; unboxed floats are carried at double width.
		c.load(arm64.AFMOVS, tmpRegister, offset, out)
		c.emitRR(arm64.AFCVTSD, out, out)
	case object.TypedDataFloat64ArrayCID:
		c.load(arm64.AFMOVD, tmpRegister, offset, out)

	default:
		return fmt.Errorf("unsupported: load from %v elements", v.ElementCID)
	}
	return nil
}

func (c *Compiler) emitStoreIndexed(v *ir.StoreIndexed) error {
	s := v.Locs()
	array := s.In(0).Reg()
	index := s.In(1).Reg()
	offset := c.computeElementAddress(v.ElementCID, v.External, array, index)

	switch v.ElementCID {
	case object.ArrayCID:
		if s.In(2).IsConstant() {
			// Constant stores are barrier-exempt.
			c.movConst(s.In(2).ConstantValue(), tmp2Register)
			c.store(arm64.AMOVD, tmp2Register, tmpRegister, offset)
			break
		}
		value := s.In(2).Reg()
		c.store(arm64.AMOVD, value, tmpRegister, offset)
		if v.NeedsWriteBarrier() {
			c.emitWriteBarrier(array, value, true)
		}

	case object.TypedDataInt8ArrayCID, object.TypedDataUint8ArrayCID,
		object.ExternalTypedDataUint8ArrayCID, object.OneByteStringCID:
		c.untagValueForStore(s.In(2))
		c.store(arm64.AMOVB, tmp2Register, tmpRegister, offset)

	case object.TypedDataUint8ClampedArrayCID,
		object.ExternalTypedDataUint8ClampedArrayCID:
		if s.In(2).IsConstant() {
			// Saturation folds into the immediate.
			val := object.Ref(s.In(2).ConstantValue()).SmiValue()
			if val < 0 {
				val = 0
			} else if val > 0xFF {
				val = 0xFF
			}
			c.movConst(val, tmp2Register)
			c.store(arm64.AMOVB, tmp2Register, tmpRegister, offset)
			break
		}
		c.emitClampedByteStore(s.In(2).Reg(), offset)

	case object.TypedDataInt16ArrayCID, object.TypedDataUint16ArrayCID:
		c.untagValueForStore(s.In(2))
		c.store(arm64.AMOVH, tmp2Register, tmpRegister, offset)

	case object.TypedDataInt32ArrayCID, object.TypedDataUint32ArrayCID:
		c.untagValueForStore(s.In(2))
		c.store(arm64.AMOVW, tmp2Register, tmpRegister, offset)

	case object.TypedDataFloat32ArrayCID:
		c.emitRR(arm64.AFCVTDS, s.In(2).Reg(), fpuTmpRegister)
		c.store(arm64.AFMOVS, fpuTmpRegister, tmpRegister, offset)
	case object.TypedDataFloat64ArrayCID:
		c.store(arm64.AFMOVD, s.In(2).Reg(), tmpRegister, offset)

	default:
		return fmt.Errorf("unsupported: store to %v elements", v.ElementCID)
	}
	return nil
}

// untagValueForStore leaves the untagged element value in tmp2Register,
// whether the operand is a register or a compile-time smi.
func (c *Compiler) untagValueForStore(in location.Location) {
	if in.IsConstant() {
		c.movConst(object.Ref(in.ConstantValue()).SmiValue(), tmp2Register)
		return
	}
	c.smiUntagInto(in.Reg(), tmp2Register)
}

// emitClampedByteStore saturates the tagged value to [0, 255] before the
// byte store. The value register is writable per the summary.
func (c *Compiler) emitClampedByteStore(value int16, offset int64) {
	const taggedMax = 0xFF << object.SmiTagShift
	inRange := c.newLabel()

	// Unsigned comparison folds the negative case into "too big": negative
	// tagged smis look like huge unsigned words.
	c.cmpConst(taggedMax, value)
	c.branchToLabel(condLS.branchOp(), inRange)
	big := c.newLabel()
	c.cmpConst(0, value)
	c.branchToLabel(condGE.branchOp(), big)
	c.movConst(0, value)
	c.branchToLabel(obj.AJMP, inRange)
	c.bind(big)
	c.movConst(taggedMax, value)
	c.bind(inRange)

	c.smiUntagInto(value, tmp2Register)
	c.store(arm64.AMOVB, tmp2Register, tmpRegister, offset)
}
