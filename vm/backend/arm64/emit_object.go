package arm64

import (
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/arm64"

	"github.com/lumevm/lume/vm/backend"
	"github.com/lumevm/lume/vm/ir"
	"github.com/lumevm/lume/vm/object"
)

func (c *Compiler) emitLoadField(v *ir.LoadField) error {
	s := v.Locs()
	instance := s.In(0).Reg()

	if v.IsUnboxedLoad() && c.cfg.Optimizing {
		// The guarded field holds a mutable box; read its payload straight
		// into the FPU register.
		out := s.Out().Reg()
		c.load(arm64.AMOVD, instance, v.OffsetInBytes-object.HeapTag, tmpRegister)
		c.load(arm64.AFMOVD, tmpRegister, object.DoubleValueOffset-object.HeapTag, out)
		return nil
	}
	if v.IsPotentialUnboxedLoad() && !c.cfg.Optimizing {
		return c.emitPotentialUnboxedLoad(v)
	}
	c.load(arm64.AMOVD, instance, v.OffsetInBytes-object.HeapTag, s.Out().Reg())
	return nil
}

// emitPotentialUnboxedLoad dispatches on the field's guard state: while the
// guard holds a double the slot contains a mutable box the optimized tier
// writes through, so the payload is copied into a fresh box instead of
// handing out an aliased one.
func (c *Compiler) emitPotentialUnboxedLoad(v *ir.LoadField) error {
	s := v.Locs()
	instance := s.In(0).Reg()
	out := s.Out().Reg()
	temp := s.Temp(0).Reg()
	payload := s.Temp(1).Reg()

	boxed := c.newLabel()
	done := c.newLabel()

	c.materializeRef(v.Field.Ref, temp)
	c.load(arm64.AMOVHU, temp, object.FieldGuardedCIDOffset-object.HeapTag, tmpRegister)
	c.cmpConst(int64(object.DoubleCID), tmpRegister)
	c.branchToLabel(condNE.branchOp(), boxed)

	c.load(arm64.AMOVD, instance, v.OffsetInBytes-object.HeapTag, tmpRegister)
	c.load(arm64.AFMOVD, tmpRegister, object.DoubleValueOffset-object.HeapTag, payload)
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
	c.store(arm64.AFMOVD, payload, out, object.DoubleValueOffset-object.HeapTag)
	c.branchToLabel(obj.AJMP, done)

	c.bind(boxed)
	c.load(arm64.AMOVD, instance, v.OffsetInBytes-object.HeapTag, out)
	c.bind(done)
	return nil
}

func (c *Compiler) emitStoreInstanceField(v *ir.StoreInstanceField) error {
	s := v.Locs()
	instance := s.In(0).Reg()

	if v.IsUnboxedStore() && c.cfg.Optimizing {
		value := s.In(1).Reg()
		if v.Initialization {
			// No box exists yet: allocate it here and install it in the
			// slot. The instance is fresh, so no barrier is needed.
			box := s.Temp(0).Reg()
			slow := &boxDoubleSlowPath{
				summary: s,
				out:     box,
				entry:   c.newLabel(),
				exit:    c.newLabel(),
				pos:     v.Pos(),
			}
			c.slowPaths = append(c.slowPaths, slow)
			c.tryAllocate(object.DoubleCID, object.InstanceSizeFor(object.DoubleCID), box, s.Temp(1).Reg(), slow.entry)
			c.bind(slow.exit)
			c.store(arm64.AFMOVD, value, box, object.DoubleValueOffset-object.HeapTag)
			c.store(arm64.AMOVD, box, instance, v.OffsetInBytes-object.HeapTag)
			return nil
		}
		c.load(arm64.AMOVD, instance, v.OffsetInBytes-object.HeapTag, tmpRegister)
		c.store(arm64.AFMOVD, value, tmpRegister, object.DoubleValueOffset-object.HeapTag)
		return nil
	}

	value := s.In(1).Reg()
	c.store(arm64.AMOVD, value, instance, v.OffsetInBytes-object.HeapTag)
	if v.NeedsWriteBarrier() {
		c.emitWriteBarrier(instance, value, v.Value.CID != object.DoubleCID)
	}
	return nil
}

// emitGuardField validates a stored value against the field's class guard.
// In optimized code a mismatch deoptimizes so the runtime can widen the
// guard and recompile; unoptimized code updates the guard in place through
// the runtime and continues.
func (c *Compiler) emitGuardField(v *ir.GuardField) error {
	if v.CanSkip() {
		return nil
	}
	s := v.Locs()
	value := s.In(0).Reg()
	fieldReg := s.Temp(0).Reg()

	c.materializeRef(v.Field.Ref, fieldReg)

	// Class id of the value, with smis short-circuited off the tag bit.
	c.movConst(int64(object.SmiCID), tmp2Register)
	c.tstConst(object.SmiTagMask, value)
	haveCID := c.branchOverNext(arm64.ABEQ)
	c.loadClassIDOf(value, tmp2Register)
	c.resolveAtNext(haveCID)

	if v.Field.GuardedCID == object.IllegalCID {
		// First observed store: record the class and succeed.
		c.store(arm64.AMOVH, tmp2Register, fieldReg, object.FieldGuardedCIDOffset-object.HeapTag)
		return nil
	}

	ok := c.newLabel()
	fail := c.newLabel()

	c.load(arm64.AMOVHU, fieldReg, object.FieldGuardedCIDOffset-object.HeapTag, tmpRegister)
	c.cmpRR(tmpRegister, tmp2Register)

	if v.Field.NeedsLengthCheck() {
		lengthCheck := c.newLabel()
		c.branchToLabel(condEQ.branchOp(), lengthCheck)
		c.emitGuardNullability(v, value, fieldReg, ok, fail)
		c.bind(lengthCheck)
		// A matching class must also match the guarded length: hoisted
		// bounds checks bake the length in.
		lenReg := s.Temp(1).Reg()
		c.load(arm64.AMOVD, value, object.LengthOffsetFor(v.Field.GuardedCID)-object.HeapTag, lenReg)
		c.load(arm64.AMOVD, fieldReg, object.FieldGuardedListLengthOffset-object.HeapTag, tmpRegister)
		c.cmpRR(tmpRegister, lenReg)
		c.branchToLabel(condNE.branchOp(), fail)
		c.branchToLabel(obj.AJMP, ok)
	} else {
		c.branchToLabel(condEQ.branchOp(), ok)
		c.emitGuardNullability(v, value, fieldReg, ok, fail)
	}

	c.bind(fail)
	if c.cfg.Optimizing {
		c.branchToLabel(obj.AJMP, c.deoptLabel(backend.DeoptGuardField))
	} else {
		// The update entry reads the field and value from the scratch pair
		// and rewrites the guard state.
		c.movReg(fieldReg, writeBarrierObjectRegister)
		c.movReg(value, writeBarrierValueRegister)
		c.callEntry(backend.EntryUpdateFieldCID, backend.DescRuntimeCall, v.DeoptID(), v.Pos())
	}
	c.bind(ok)
	return nil
}

// emitGuardNullability accepts a null value when the guard admits null;
// every other mismatch falls through to fail.
func (c *Compiler) emitGuardNullability(v *ir.GuardField, value, fieldReg int16, ok, fail *label) {
	if !v.Field.Nullable {
		c.branchToLabel(obj.AJMP, fail)
		return
	}
	c.materializeRef(c.env.NullRef(), tmpRegister)
	c.cmpRR(tmpRegister, value)
	c.branchToLabel(condEQ.branchOp(), ok)
	c.branchToLabel(obj.AJMP, fail)
}

func (c *Compiler) emitLoadStaticField(v *ir.LoadStaticField) error {
	s := v.Locs()
	c.load(arm64.AMOVD, s.In(0).Reg(), object.FieldValueOffset-object.HeapTag, s.Out().Reg())
	return nil
}

func (c *Compiler) emitStoreStaticField(v *ir.StoreStaticField) error {
	s := v.Locs()
	value := s.In(0).Reg()
	fieldReg := s.Temp(0).Reg()
	c.materializeRef(v.Field.Ref, fieldReg)
	c.store(arm64.AMOVD, value, fieldReg, object.FieldValueOffset-object.HeapTag)
	c.emitWriteBarrier(fieldReg, value, true)
	return nil
}

func (c *Compiler) emitLoadClassID(v *ir.LoadClassID) error {
	s := v.Locs()
	objReg := s.In(0).Reg()
	out := s.Out().Reg()

	// Result is the class id as a tagged smi; smi values never touch the
	// header.
	c.tstConst(object.SmiTagMask, objReg)
	c.movConst(object.NewSmi(int64(object.SmiCID)).Raw(), out)
	done := c.branchOverNext(arm64.ABEQ)
	c.loadClassIDOf(objReg, out)
	c.smiTagInPlace(out)
	c.resolveAtNext(done)
	nop := c.newProg()
	nop.As = obj.ANOP
	c.addInstruction(nop)
	return nil
}

func (c *Compiler) emitLoadUntagged(v *ir.LoadUntagged) error {
	s := v.Locs()
	c.load(arm64.AMOVD, s.In(0).Reg(), v.Offset-object.HeapTag, s.Out().Reg())
	return nil
}
