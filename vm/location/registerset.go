package location

import (
	"sort"
)

// RegisterSet tracks a set of machine registers, split into integer and FPU
// banks. The allocator records live registers here; slow paths walk the set
// to save and restore them around runtime calls.
type RegisterSet struct {
	cpu map[int16]struct{}
	fpu map[int16]struct{}
}

func (s *RegisterSet) init() {
	if s.cpu == nil {
		s.cpu = map[int16]struct{}{}
		s.fpu = map[int16]struct{}{}
	}
}

// Add records loc's register (if it is one) as live.
func (s *RegisterSet) Add(loc Location) {
	s.init()
	switch loc.Kind() {
	case RegisterKind:
		s.cpu[loc.Reg()] = struct{}{}
	case FPURegisterKind:
		s.fpu[loc.Reg()] = struct{}{}
	case PairKind:
		s.Add(loc.PairAt(0))
		s.Add(loc.PairAt(1))
	}
}

// Remove drops loc's register from the set. Used to exclude an instruction's
// own output from slow-path save/restore: at slow-path entry it does not yet
// hold a meaningful value.
func (s *RegisterSet) Remove(loc Location) {
	s.init()
	switch loc.Kind() {
	case RegisterKind:
		delete(s.cpu, loc.Reg())
	case FPURegisterKind:
		delete(s.fpu, loc.Reg())
	case PairKind:
		s.Remove(loc.PairAt(0))
		s.Remove(loc.PairAt(1))
	}
}

func (s *RegisterSet) ContainsRegister(reg int16) bool {
	_, ok := s.cpu[reg]
	return ok
}

func (s *RegisterSet) ContainsFPURegister(reg int16) bool {
	_, ok := s.fpu[reg]
	return ok
}

// CPURegisters returns the live integer registers in ascending order so that
// save and restore sequences pair up deterministically.
func (s *RegisterSet) CPURegisters() []int16 { return sorted(s.cpu) }

// FPURegisters returns the live FPU registers in ascending order.
func (s *RegisterSet) FPURegisters() []int16 { return sorted(s.fpu) }

func sorted(m map[int16]struct{}) []int16 {
	regs := make([]int16, 0, len(m))
	for r := range m {
		regs = append(regs, r)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i] < regs[j] })
	return regs
}
