package arm64

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumevm/lume/vm/backend"
	"github.com/lumevm/lume/vm/ir"
	"github.com/lumevm/lume/vm/location"
	"github.com/lumevm/lume/vm/object"
)

var testCfg = &backend.Config{Optimizing: true}

func Test_MakeSummary_BinarySmiOp(t *testing.T) {
	s, err := MakeSummary(&ir.BinarySmiOp{Op: ir.TokenADD, Right: smiConstOp(4)}, testCfg)
	require.NoError(t, err)
	require.True(t, s.In(1).IsConstant())
	require.Equal(t, object.NewSmi(4).Raw(), s.In(1).ConstantValue())

	// Division by a non-power-of-two needs the divisor in a register.
	s, err = MakeSummary(&ir.BinarySmiOp{Op: ir.TokenTRUNCDIV, Right: smiConstOp(6)}, testCfg)
	require.NoError(t, err)
	require.Equal(t, location.RequiresRegister, s.In(1).Kind())

	s, err = MakeSummary(&ir.BinarySmiOp{Op: ir.TokenTRUNCDIV, Right: smiConstOp(8)}, testCfg)
	require.NoError(t, err)
	require.True(t, s.In(1).IsConstant())
}

func Test_MakeSummary_StrictCompare_AtMostOneConstant(t *testing.T) {
	left := object.Ref(0xA1)
	right := object.Ref(0xB1)
	s, err := MakeSummary(&ir.StrictCompare{
		Op:    ir.TokenEQStrict,
		Left:  ir.Operand{Constant: &left},
		Right: ir.Operand{Constant: &right},
	}, testCfg)
	require.NoError(t, err)
	require.True(t, s.In(0).IsConstant())
	require.Equal(t, location.RequiresRegister, s.In(1).Kind())
}

func Test_MakeSummary_CallConventionRegisters(t *testing.T) {
	s, err := MakeSummary(&ir.StaticCall{}, testCfg)
	require.NoError(t, err)
	require.True(t, s.AlwaysCalls())
	require.Equal(t, int16(resultRegister), s.Out().Reg())

	s, err = MakeSummary(&ir.CreateArray{}, testCfg)
	require.NoError(t, err)
	require.Equal(t, int16(createArrayTypeArgsRegister), s.In(0).Reg())
	require.Equal(t, int16(createArrayLengthRegister), s.In(1).Reg())
	require.Equal(t, int16(resultRegister), s.Out().Reg())
}

func Test_MakeSummary_BranchSharesComparisonSummary(t *testing.T) {
	cmp := &ir.EqualityCompare{Op: ir.TokenEQ, OperandCID: object.SmiCID}
	branch := &ir.Branch{Comparison: cmp}
	s, err := MakeSummary(branch, testCfg)
	require.NoError(t, err)
	require.Same(t, s, cmp.Locs())
	require.True(t, s.Out().IsInvalid(), "a branch produces no value")
}

func Test_MakeSummary_UnboxedFieldAccessUsesFPU(t *testing.T) {
	f := &ir.Field{GuardedCID: object.DoubleCID, UnboxingCandidate: true}
	s, err := MakeSummary(&ir.LoadField{Field: f}, testCfg)
	require.NoError(t, err)
	require.Equal(t, location.RequiresFPURegister, s.Out().Kind())

	// Unoptimized code keeps the box.
	s, err = MakeSummary(&ir.LoadField{Field: f}, &backend.Config{})
	require.NoError(t, err)
	require.Equal(t, location.RequiresRegister, s.Out().Kind())
}

func Test_satisfySummary_OutputNeverAliasesInputs(t *testing.T) {
	s, err := MakeSummary(&ir.BinarySmiOp{Op: ir.TokenSHL}, testCfg)
	require.NoError(t, err)
	require.NoError(t, satisfySummary(s))
	require.NotEqual(t, s.In(0).Reg(), s.Out().Reg())
	require.NotEqual(t, s.In(1).Reg(), s.Out().Reg())
	require.NotEqual(t, s.In(0).Reg(), s.In(1).Reg())
}

func Test_satisfySummary_PairHalvesDistinct(t *testing.T) {
	s, err := MakeSummary(&ir.TruncDivMod{}, testCfg)
	require.NoError(t, err)
	require.NoError(t, satisfySummary(s))
	quot := s.Out().PairAt(0).Reg()
	rem := s.Out().PairAt(1).Reg()
	require.NotEqual(t, quot, rem)
	require.NotEqual(t, s.In(0).Reg(), quot)
	require.NotEqual(t, s.In(1).Reg(), rem)
}

func Test_satisfySummary_FPUPoolSeparate(t *testing.T) {
	s, err := MakeSummary(&ir.BinaryDoubleOp{Op: ir.TokenADD}, testCfg)
	require.NoError(t, err)
	require.NoError(t, satisfySummary(s))
	require.True(t, s.In(0).IsFPURegister())
	require.True(t, s.In(1).IsFPURegister())
	require.True(t, s.Out().IsFPURegister())
	require.NotEqual(t, s.In(0).Reg(), s.Out().Reg())
}

func Test_satisfySummary_FixedRegistersReservedFirst(t *testing.T) {
	s := location.NewSummary(1, 0, location.NoCall)
	s.SetIn(0, location.RegisterLocation(resultRegister))
	s.SetOut(location.RequireRegister())
	require.NoError(t, satisfySummary(s))
	require.NotEqual(t, int16(resultRegister), s.Out().Reg())
}

func Test_satisfySummary_NeverHandsOutScratch(t *testing.T) {
	s := location.NewSummary(0, 8, location.NoCall)
	for i := 0; i < 8; i++ {
		s.SetTemp(i, location.RequireRegister())
	}
	s.SetOut(location.RequireRegister())
	require.NoError(t, satisfySummary(s))
	for i := 0; i < 8; i++ {
		require.NotEqual(t, int16(tmpRegister), s.Temp(i).Reg())
		require.NotEqual(t, int16(tmp2Register), s.Temp(i).Reg())
	}
}

func Test_AssignLocations(t *testing.T) {
	pre := &ir.CheckSmi{}
	preSummary, err := MakeSummary(pre, testCfg)
	require.NoError(t, err)
	require.NoError(t, satisfySummary(preSummary))
	pre.SetLocs(preSummary)

	add := &ir.BinarySmiOp{Op: ir.TokenADD}
	g := &ir.Graph{Blocks: []*ir.Block{
		{ID: 0, Instrs: []ir.Instr{pre, add, &ir.Return{}}},
	}}
	require.NoError(t, AssignLocations(g, testCfg))

	// Pre-assigned summaries stay untouched; the rest are now concrete.
	require.Same(t, preSummary, pre.Locs())
	require.NotNil(t, add.Locs())
	add.Locs().CheckAllocated()
}

func Test_AssignLocations_UnsupportedKind(t *testing.T) {
	g := &ir.Graph{Blocks: []*ir.Block{
		{ID: 0, Instrs: []ir.Instr{&ir.SimdOp{Mnemonic: "float32x4.add"}}},
	}}
	err := AssignLocations(g, testCfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported")
}
