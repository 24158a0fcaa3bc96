package arm64

import (
	"fmt"

	"github.com/twitchyliquid64/golang-asm/obj/arm64"

	"github.com/lumevm/lume/vm/backend"
	"github.com/lumevm/lume/vm/ir"
	"github.com/lumevm/lume/vm/location"
	"github.com/lumevm/lume/vm/object"
)

// MakeSummary declares the location constraints of one instruction. The
// register allocator (or the baseline assigner) turns the policies into
// concrete locations before emission.
func MakeSummary(instr ir.Instr, cfg *backend.Config) (*location.Summary, error) {
	switch v := instr.(type) {
	case *ir.Constant:
		s := location.NewSummary(0, 0, location.NoCall)
		s.SetOut(location.RequireRegister())
		return s, nil

	case *ir.UnboxedConstant:
		s := location.NewSummary(0, 0, location.NoCall)
		s.SetOut(location.RequireFPURegister())
		return s, nil

	case *ir.BinarySmiOp:
		s := location.NewSummary(2, 0, location.NoCall)
		s.SetIn(0, location.RequireRegister())
		switch v.Op {
		case ir.TokenTRUNCDIV, ir.TokenMOD:
			s.SetIn(1, location.RequireRegister())
			if v.RightIsPowerOfTwoConstant() {
				s.SetIn(1, registerOrSmiConstant(v.Right))
			}
		default:
			s.SetIn(1, registerOrSmiConstant(v.Right))
		}
		s.SetOut(location.RequireRegister())
		return s, nil

	case *ir.UnarySmiOp:
		s := location.NewSummary(1, 0, location.NoCall)
		s.SetIn(0, location.RequireRegister())
		s.SetOut(location.RequireRegister())
		return s, nil

	case *ir.TruncDivMod:
		s := location.NewSummary(2, 0, location.NoCall)
		s.SetIn(0, location.RequireRegister())
		s.SetIn(1, location.RequireRegister())
		s.SetOut(location.Pair(location.RequireRegister(), location.RequireRegister()))
		return s, nil

	case *ir.BinaryDoubleOp:
		s := location.NewSummary(2, 0, location.NoCall)
		s.SetIn(0, location.RequireFPURegister())
		s.SetIn(1, location.RequireFPURegister())
		s.SetOut(location.RequireFPURegister())
		return s, nil

	case *ir.EqualityCompare:
		return comparisonSummary(v.OperandCID, v.Left, v.Right), nil
	case *ir.RelationalOp:
		return comparisonSummary(v.OperandCID, v.Left, v.Right), nil

	case *ir.StrictCompare:
		s := location.NewSummary(2, 0, location.NoCall)
		if v.NeedsNumberCheck {
			// The identity-with-number-interning check calls the runtime,
			// which needs both sides in registers.
			s = location.NewSummary(2, 0, location.Call)
			s.SetIn(0, location.RequireRegister())
			s.SetIn(1, location.RequireRegister())
		} else {
			s.SetIn(0, registerOrConstant(v.Left))
			s.SetIn(1, registerOrConstant(v.Right))
			// At most one side may be an immediate.
			if s.In(0).IsConstant() && s.In(1).IsConstant() {
				s.SetIn(1, location.RequireRegister())
			}
		}
		s.SetOut(location.RequireRegister())
		return s, nil

	case *ir.TestSmi:
		s := location.NewSummary(2, 0, location.NoCall)
		s.SetIn(0, location.RequireRegister())
		s.SetIn(1, registerOrSmiConstant(v.Right))
		s.SetOut(location.RequireRegister())
		return s, nil

	case *ir.Branch:
		// A branch borrows its fused comparison's summary; the comparison
		// computes flags and the branch consumes them.
		cs, err := MakeSummary(v.Comparison, cfg)
		if err != nil {
			return nil, err
		}
		cs.SetOut(location.Location{})
		v.Comparison.SetLocs(cs)
		return cs, nil

	case *ir.IfThenElse:
		cs, err := MakeSummary(v.Comparison, cfg)
		if err != nil {
			return nil, err
		}
		cs.SetOut(location.RequireRegister())
		v.Comparison.SetLocs(cs)
		return cs, nil

	case *ir.BooleanNegate:
		s := location.NewSummary(1, 0, location.NoCall)
		s.SetIn(0, location.RequireRegister())
		s.SetOut(location.RequireRegister())
		return s, nil

	case *ir.CheckSmi:
		s := location.NewSummary(1, 0, location.NoCall)
		s.SetIn(0, location.RequireRegister())
		return s, nil

	case *ir.CheckClass:
		s := location.NewSummary(1, 1, location.NoCall)
		s.SetIn(0, location.RequireRegister())
		s.SetTemp(0, location.RequireRegister())
		return s, nil

	case *ir.CheckEitherNonSmi:
		s := location.NewSummary(2, 0, location.NoCall)
		s.SetIn(0, location.RequireRegister())
		s.SetIn(1, location.RequireRegister())
		return s, nil

	case *ir.CheckArrayBound:
		s := location.NewSummary(2, 0, location.NoCall)
		s.SetIn(0, registerOrSmiConstant(v.Length))
		s.SetIn(1, registerOrSmiConstant(v.Index))
		// Comparing two immediates never happens: such checks fold away.
		if s.In(0).IsConstant() && s.In(1).IsConstant() {
			s.SetIn(1, location.RequireRegister())
		}
		return s, nil

	case *ir.CheckStackOverflow:
		return location.NewSummary(0, 0, location.CallOnSlowPath), nil

	case *ir.LoadIndexed:
		s := location.NewSummary(2, 0, location.NoCall)
		s.SetIn(0, location.RequireRegister())
		s.SetIn(1, location.RequireRegister())
		if isFPUElement(v.ElementCID) {
			s.SetOut(location.RequireFPURegister())
		} else {
			s.SetOut(location.RequireRegister())
		}
		return s, nil

	case *ir.StoreIndexed:
		s := location.NewSummary(3, 0, location.NoCall)
		s.SetIn(0, location.RequireRegister())
		s.SetIn(1, location.RequireRegister())
		switch v.ElementCID {
		case object.ArrayCID:
			s.SetIn(2, registerOrConstant(v.Value))
		case object.TypedDataUint8ClampedArrayCID,
			object.ExternalTypedDataUint8ClampedArrayCID:
			if v.Value.BindsToSmiConstant() {
				s.SetIn(2, location.Constant(v.Value.Constant.Raw()))
			} else {
				// Clamping rewrites the value in place.
				s.SetIn(2, location.WritableRegisterLoc())
			}
		case object.TypedDataFloat32ArrayCID, object.TypedDataFloat64ArrayCID:
			s.SetIn(2, location.RequireFPURegister())
		default:
			s.SetIn(2, registerOrSmiConstant(v.Value))
		}
		return s, nil

	case *ir.LoadField:
		if v.IsUnboxedLoad() && cfg.Optimizing {
			s := location.NewSummary(1, 0, location.NoCall)
			s.SetIn(0, location.RequireRegister())
			s.SetOut(location.RequireFPURegister())
			return s, nil
		}
		if v.IsPotentialUnboxedLoad() && !cfg.Optimizing {
			// Boxing a fresh double may call the runtime; the payload rides
			// in an FPU temp the slow path saves alongside the rest.
			s := location.NewSummary(1, 2, location.CallOnSlowPath)
			s.SetIn(0, location.RequireRegister())
			s.SetTemp(0, location.RequireRegister())
			s.SetTemp(1, location.RequireFPURegister())
			s.SetOut(location.RequireRegister())
			return s, nil
		}
		s := location.NewSummary(1, 0, location.NoCall)
		s.SetIn(0, location.RequireRegister())
		s.SetOut(location.RequireRegister())
		return s, nil

	case *ir.StoreInstanceField:
		if v.IsUnboxedStore() && cfg.Optimizing {
			if v.Initialization {
				// The first store allocates the mutable box inline.
				s := location.NewSummary(2, 2, location.CallOnSlowPath)
				s.SetIn(0, location.RequireRegister())
				s.SetIn(1, location.RequireFPURegister())
				s.SetTemp(0, location.RequireRegister())
				s.SetTemp(1, location.RequireRegister())
				return s, nil
			}
			s := location.NewSummary(2, 0, location.NoCall)
			s.SetIn(0, location.RequireRegister())
			s.SetIn(1, location.RequireFPURegister())
			return s, nil
		}
		s := location.NewSummary(2, 0, location.NoCall)
		s.SetIn(0, location.RequireRegister())
		s.SetIn(1, location.RequireRegister())
		return s, nil

	case *ir.GuardField:
		s := location.NewSummary(1, 1, location.NoCall)
		s.SetIn(0, location.RequireRegister())
		s.SetTemp(0, location.RequireRegister())
		if v.Field.NeedsLengthCheck() {
			s.AddTemp(location.RequireRegister())
		}
		return s, nil

	case *ir.LoadStaticField:
		s := location.NewSummary(1, 0, location.NoCall)
		s.SetIn(0, location.RequireRegister())
		s.SetOut(location.RequireRegister())
		return s, nil

	case *ir.StoreStaticField:
		s := location.NewSummary(1, 1, location.NoCall)
		s.SetIn(0, location.RequireRegister())
		s.SetTemp(0, location.RequireRegister())
		return s, nil

	case *ir.LoadClassID:
		s := location.NewSummary(1, 0, location.NoCall)
		s.SetIn(0, location.RequireRegister())
		s.SetOut(location.RequireRegister())
		return s, nil

	case *ir.LoadUntagged:
		s := location.NewSummary(1, 0, location.NoCall)
		s.SetIn(0, location.RequireRegister())
		s.SetOut(location.RequireRegister())
		return s, nil

	case *ir.BoxDouble:
		s := location.NewSummary(1, 1, location.CallOnSlowPath)
		s.SetIn(0, location.RequireFPURegister())
		s.SetTemp(0, location.RequireRegister())
		s.SetOut(location.RequireRegister())
		return s, nil

	case *ir.UnboxDouble:
		s := location.NewSummary(1, 0, location.NoCall)
		s.SetIn(0, location.RequireRegister())
		s.SetOut(location.RequireFPURegister())
		return s, nil

	case *ir.SmiToDouble:
		s := location.NewSummary(1, 0, location.NoCall)
		s.SetIn(0, location.RequireRegister())
		s.SetOut(location.RequireFPURegister())
		return s, nil

	case *ir.DoubleToSmi:
		s := location.NewSummary(1, 0, location.NoCall)
		s.SetIn(0, location.RequireFPURegister())
		s.SetOut(location.RequireRegister())
		return s, nil

	case *ir.PushArgument:
		s := location.NewSummary(1, 0, location.NoCall)
		s.SetIn(0, registerOrConstant(v.Value))
		return s, nil

	case *ir.StaticCall:
		s := location.NewSummary(0, 0, location.Call)
		s.SetOut(location.RegisterLocation(resultRegister))
		return s, nil

	case *ir.ClosureCall:
		s := location.NewSummary(1, 0, location.Call)
		s.SetIn(0, location.RegisterLocation(resultRegister))
		s.SetOut(location.RegisterLocation(resultRegister))
		return s, nil

	case *ir.PolymorphicInstanceCall:
		s := location.NewSummary(1, 0, location.Call)
		s.SetIn(0, location.RegisterLocation(resultRegister))
		s.SetOut(location.RegisterLocation(resultRegister))
		return s, nil

	case *ir.NativeCall:
		s := location.NewSummary(0, 0, location.Call)
		s.SetOut(location.RegisterLocation(resultRegister))
		return s, nil

	case *ir.CreateArray:
		// The allocation stub's calling convention fixes both inputs.
		s := location.NewSummary(2, 0, location.Call)
		s.SetIn(0, location.RegisterLocation(createArrayTypeArgsRegister))
		s.SetIn(1, location.RegisterLocation(createArrayLengthRegister))
		s.SetOut(location.RegisterLocation(resultRegister))
		return s, nil

	case *ir.AllocateObject:
		s := location.NewSummary(0, 0, location.Call)
		s.SetOut(location.RegisterLocation(resultRegister))
		return s, nil

	case *ir.AssertBoolean:
		s := location.NewSummary(1, 0, location.Call)
		s.SetIn(0, location.RegisterLocation(resultRegister))
		s.SetOut(location.RegisterLocation(resultRegister))
		return s, nil

	case *ir.Goto:
		return location.NewSummary(0, 0, location.NoCall), nil

	case *ir.Return:
		s := location.NewSummary(1, 0, location.NoCall)
		s.SetIn(0, location.RegisterLocation(resultRegister))
		return s, nil

	case *ir.Throw:
		return location.NewSummary(0, 0, location.Call), nil

	case *ir.ReThrow:
		return location.NewSummary(0, 0, location.Call), nil

	default:
		return nil, fmt.Errorf("unsupported instruction kind %d (%T) on arm64", instr.Kind(), instr)
	}
}

// Stub calling convention registers for array creation.
const (
	createArrayTypeArgsRegister = arm64.REG_R1
	createArrayLengthRegister   = arm64.REG_R2
)

// comparisonSummary covers the numeric comparisons: double operands live in
// FPU registers, smi operands allow a constant on either side.
func comparisonSummary(cid object.ClassID, left, right ir.Operand) *location.Summary {
	s := location.NewSummary(2, 0, location.NoCall)
	if cid == object.DoubleCID {
		s.SetIn(0, location.RequireFPURegister())
		s.SetIn(1, location.RequireFPURegister())
	} else {
		s.SetIn(0, registerOrSmiConstant(left))
		s.SetIn(1, registerOrSmiConstant(right))
		// Comparing two immediates never happens: such comparisons fold away.
		if s.In(0).IsConstant() && s.In(1).IsConstant() {
			s.SetIn(1, location.RequireRegister())
		}
	}
	s.SetOut(location.RequireRegister())
	return s
}

// registerOrConstant lets a constant-bound operand stay an immediate.
func registerOrConstant(op ir.Operand) location.Location {
	if op.Constant != nil {
		return location.Constant(op.Constant.Raw())
	}
	return location.RequireRegister()
}

// registerOrSmiConstant admits only smi immediates.
func registerOrSmiConstant(op ir.Operand) location.Location {
	if op.BindsToSmiConstant() {
		return location.Constant(op.Constant.Raw())
	}
	return location.RequireRegister()
}

// isFPUElement reports whether loads of cid produce an unboxed FPU value.
func isFPUElement(cid object.ClassID) bool {
	switch cid {
	case object.TypedDataFloat32ArrayCID, object.TypedDataFloat64ArrayCID:
		return true
	}
	return false
}
