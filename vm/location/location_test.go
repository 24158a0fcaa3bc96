package location

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Location_Kinds(t *testing.T) {
	require.True(t, RequireRegister().IsUnallocated())
	require.True(t, RequireFPURegister().IsUnallocated())
	require.True(t, AnyLocation().IsUnallocated())
	require.True(t, WritableRegisterLoc().IsUnallocated())
	require.True(t, SameAsFirstInputLoc().IsUnallocated())
	require.True(t, PrefersRegisterLoc().IsUnallocated())

	require.False(t, RegisterLocation(3).IsUnallocated())
	require.False(t, Constant(42).IsUnallocated())
	require.False(t, StackSlot(1).IsUnallocated())
	require.False(t, Location{}.IsUnallocated())
	require.True(t, Location{}.IsInvalid())
}

func Test_Location_Accessors(t *testing.T) {
	require.Equal(t, int16(5), RegisterLocation(5).Reg())
	require.Equal(t, int16(7), FPURegisterLocation(7).Reg())
	require.Equal(t, int64(0x1234), Constant(0x1234).ConstantValue())
	require.Equal(t, int32(3), StackSlot(3).StackIndex())

	require.Panics(t, func() { Constant(1).Reg() })
	require.Panics(t, func() { RegisterLocation(1).ConstantValue() })
	require.Panics(t, func() { RegisterLocation(1).PairAt(0) })
}

func Test_Location_Pair(t *testing.T) {
	p := Pair(RegisterLocation(1), RegisterLocation(2))
	require.True(t, p.IsPair())
	require.Equal(t, int16(1), p.PairAt(0).Reg())
	require.Equal(t, int16(2), p.PairAt(1).Reg())
}

func Test_Summary_Slots(t *testing.T) {
	s := NewSummary(2, 1, NoCall)
	require.Equal(t, 2, s.InputCount())
	require.Equal(t, 1, s.TempCount())
	require.False(t, s.AlwaysCalls())

	s.SetIn(0, RegisterLocation(1))
	s.SetIn(1, Constant(8))
	s.SetTemp(0, RegisterLocation(2))
	s.SetOut(RegisterLocation(3))
	require.Equal(t, int16(1), s.In(0).Reg())
	require.Equal(t, int64(8), s.In(1).ConstantValue())
	require.Equal(t, int16(3), s.Out().Reg())

	s.AddTemp(RegisterLocation(4))
	require.Equal(t, 2, s.TempCount())

	require.True(t, NewSummary(0, 0, Call).AlwaysCalls())
	require.False(t, NewSummary(0, 0, CallOnSlowPath).AlwaysCalls())
}

func Test_RegisterSet(t *testing.T) {
	var s RegisterSet
	s.Add(RegisterLocation(9))
	s.Add(RegisterLocation(2))
	s.Add(FPURegisterLocation(4))
	s.Add(Constant(1)) // not a register, ignored

	require.True(t, s.ContainsRegister(9))
	require.True(t, s.ContainsRegister(2))
	require.False(t, s.ContainsRegister(3))
	require.True(t, s.ContainsFPURegister(4))

	// Ascending order keeps save/restore pairs deterministic.
	require.Equal(t, []int16{2, 9}, s.CPURegisters())
	require.Equal(t, []int16{4}, s.FPURegisters())

	s.Remove(RegisterLocation(9))
	require.False(t, s.ContainsRegister(9))
	require.Equal(t, []int16{2}, s.CPURegisters())
}

func Test_RegisterSet_Pair(t *testing.T) {
	var s RegisterSet
	s.Add(Pair(RegisterLocation(1), RegisterLocation(5)))
	require.Equal(t, []int16{1, 5}, s.CPURegisters())
	s.Remove(Pair(RegisterLocation(1), RegisterLocation(5)))
	require.Empty(t, s.CPURegisters())
}
