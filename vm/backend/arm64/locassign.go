package arm64

import (
	"fmt"

	"github.com/lumevm/lume/vm/backend"
	"github.com/lumevm/lume/vm/ir"
	"github.com/lumevm/lume/vm/location"
)

// AssignLocations declares and satisfies location summaries for every
// instruction in the graph, the way unoptimized compilation does: each
// instruction gets registers picked independently from a deterministic
// pool, with no values held in registers across instructions. Optimized
// compilation would run a real register allocator over the same summaries.
func AssignLocations(g *ir.Graph, cfg *backend.Config) error {
	for _, blk := range g.Blocks {
		for _, instr := range blk.Instrs {
			if instr.Locs() != nil {
				continue
			}
			s, err := MakeSummary(instr, cfg)
			if err != nil {
				return err
			}
			if err := satisfySummary(s); err != nil {
				return fmt.Errorf("assigning %T: %w", instr, err)
			}
			instr.SetLocs(s)
		}
	}
	return nil
}

// satisfySummary replaces every policy in s with a concrete register drawn
// from the allocatable pools, honoring fixed assignments first.
func satisfySummary(s *location.Summary) error {
	a := newRegPicker()

	// Fixed registers claim their slots before the free picks.
	for i := 0; i < s.InputCount(); i++ {
		a.reserve(s.In(i))
	}
	for i := 0; i < s.TempCount(); i++ {
		a.reserve(s.Temp(i))
	}
	a.reserve(s.Out())

	for i := 0; i < s.InputCount(); i++ {
		loc, err := a.satisfy(s.In(i))
		if err != nil {
			return err
		}
		s.SetIn(i, loc)
	}
	for i := 0; i < s.TempCount(); i++ {
		loc, err := a.satisfy(s.Temp(i))
		if err != nil {
			return err
		}
		s.SetTemp(i, loc)
	}

	out := s.Out()
	switch out.Kind() {
	case location.SameAsFirstInput:
		s.SetOut(s.In(0))
	case location.PairKind:
		first, err := a.satisfy(out.PairAt(0))
		if err != nil {
			return err
		}
		second, err := a.satisfy(out.PairAt(1))
		if err != nil {
			return err
		}
		s.SetOut(location.Pair(first, second))
	default:
		loc, err := a.satisfy(out)
		if err != nil {
			return err
		}
		s.SetOut(loc)
	}
	return nil
}

// regPicker hands out unused registers from the allocatable pools.
type regPicker struct {
	usedCPU map[int16]bool
	usedFPU map[int16]bool
}

func newRegPicker() *regPicker {
	return &regPicker{usedCPU: map[int16]bool{}, usedFPU: map[int16]bool{}}
}

func (a *regPicker) reserve(loc location.Location) {
	switch loc.Kind() {
	case location.RegisterKind:
		a.usedCPU[loc.Reg()] = true
	case location.FPURegisterKind:
		a.usedFPU[loc.Reg()] = true
	case location.PairKind:
		a.reserve(loc.PairAt(0))
		a.reserve(loc.PairAt(1))
	}
}

func (a *regPicker) satisfy(loc location.Location) (location.Location, error) {
	switch loc.Kind() {
	case location.Any, location.PrefersRegister, location.RequiresRegister,
		location.WritableRegister:
		r, err := a.takeCPU()
		if err != nil {
			return location.Location{}, err
		}
		return location.RegisterLocation(r), nil
	case location.RequiresFPURegister:
		r, err := a.takeFPU()
		if err != nil {
			return location.Location{}, err
		}
		return location.FPURegisterLocation(r), nil
	case location.Invalid, location.RegisterKind, location.FPURegisterKind,
		location.StackSlotKind, location.ConstantKind:
		return loc, nil
	default:
		return location.Location{}, fmt.Errorf("cannot satisfy %s here", loc.Kind())
	}
}

func (a *regPicker) takeCPU() (int16, error) {
	for _, r := range allocatableGeneralPurposeRegisters {
		if !a.usedCPU[r] {
			a.usedCPU[r] = true
			return r, nil
		}
	}
	return 0, fmt.Errorf("out of general purpose registers")
}

func (a *regPicker) takeFPU() (int16, error) {
	for _, r := range allocatableFPURegisters {
		if !a.usedFPU[r] {
			a.usedFPU[r] = true
			return r, nil
		}
	}
	return 0, fmt.Errorf("out of FPU registers")
}
