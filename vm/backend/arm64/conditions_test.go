package arm64

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumevm/lume/vm/ir"
	"github.com/lumevm/lume/vm/object"
)

var allConditions = []Condition{
	condEQ, condNE, condLT, condLE, condGT, condGE,
	condLO, condLS, condHI, condHS, condVS, condVC, condMI, condPL,
}

func Test_Condition_NegateIsInvolution(t *testing.T) {
	for _, c := range allConditions {
		require.Equal(t, c, c.Negate().Negate(), "%s", c)
		require.NotEqual(t, c, c.Negate(), "%s must differ from its negation", c)
	}
}

func Test_Condition_FlipIsInvolution(t *testing.T) {
	flippable := []Condition{
		condEQ, condNE, condLT, condLE, condGT, condGE,
		condLO, condLS, condHI, condHS,
	}
	for _, c := range flippable {
		require.Equal(t, c, c.Flip().Flip(), "%s", c)
	}
	// Equality is symmetric in its operands.
	require.Equal(t, condEQ, condEQ.Flip())
	require.Equal(t, condNE, condNE.Flip())
	// Order comparisons reverse.
	require.Equal(t, condGT, condLT.Flip())
	require.Equal(t, condGE, condLE.Flip())
	require.Equal(t, condHI, condLO.Flip())
}

func Test_Condition_NegateAndFlipDiffer(t *testing.T) {
	// Negation and operand swap are different transforms on ordered
	// comparisons.
	require.NotEqual(t, condLT.Negate(), condLT.Flip())
	require.NotEqual(t, condLE.Negate(), condLE.Flip())
}

func Test_Condition_BranchOpsAreDistinct(t *testing.T) {
	seen := map[int]Condition{}
	for _, c := range allConditions {
		op := int(c.branchOp())
		prev, dup := seen[op]
		require.False(t, dup, "%s and %s share a branch opcode", prev, c)
		seen[op] = c
	}
}

func Test_smiCondition(t *testing.T) {
	tests := map[ir.Token]Condition{
		ir.TokenEQ: condEQ,
		ir.TokenNE: condNE,
		ir.TokenLT: condLT,
		ir.TokenGT: condGT,
		ir.TokenLE: condLE,
		ir.TokenGE: condGE,
	}
	for tok, want := range tests {
		got, err := smiCondition(tok)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := smiCondition(ir.TokenADD)
	require.Error(t, err)
}

func Test_conditionForCID(t *testing.T) {
	got, err := conditionForCID(ir.TokenLT, object.SmiCID)
	require.NoError(t, err)
	require.Equal(t, condLT, got)

	got, err = conditionForCID(ir.TokenGE, object.DoubleCID)
	require.NoError(t, err)
	require.Equal(t, condGE, got)

	// Strict tokens never reach the double mapping.
	_, err = doubleCondition(ir.TokenEQStrict)
	require.Error(t, err)
}
