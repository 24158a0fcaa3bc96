package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumevm/lume/vm/object"
)

func smiOperand(r *Range) Operand {
	return Operand{CID: object.SmiCID, Range: r}
}

func smiConstOperand(v int64) Operand {
	ref := object.NewSmi(v)
	return Operand{CID: object.SmiCID, Constant: &ref}
}

func Test_Token_IsComparison(t *testing.T) {
	for _, tok := range []Token{TokenEQ, TokenNE, TokenLT, TokenGT, TokenLE, TokenGE, TokenEQStrict, TokenNEStrict} {
		require.True(t, tok.IsComparison(), "%s", tok)
	}
	for _, tok := range []Token{TokenADD, TokenSHL, TokenNegate, TokenIllegal} {
		require.False(t, tok.IsComparison(), "%s", tok)
	}
}

func Test_Operand_BindsToSmiConstant(t *testing.T) {
	require.True(t, smiConstOperand(4).BindsToSmiConstant())
	require.Equal(t, int64(4), smiConstOperand(4).SmiConstant())
	require.False(t, smiOperand(nil).BindsToSmiConstant())

	heap := object.Ref(0x2001)
	require.False(t, Operand{Constant: &heap}.BindsToSmiConstant())
}

func Test_BinarySmiOp_CanDeoptimize(t *testing.T) {
	tests := []struct {
		name string
		op   *BinarySmiOp
		want bool
	}{
		{"add", &BinarySmiOp{Op: TokenADD}, true},
		{"add truncating", &BinarySmiOp{Op: TokenADD, Truncating: true}, false},
		{"bit and", &BinarySmiOp{Op: TokenBitAnd}, false},
		{"bit or", &BinarySmiOp{Op: TokenBitOr}, false},
		{"shr unknown count", &BinarySmiOp{Op: TokenSHR}, true},
		{"shr non-negative count",
			&BinarySmiOp{Op: TokenSHR, Right: smiOperand(NewRange(0, 8))}, false},
		{"shl register count", &BinarySmiOp{Op: TokenSHL}, true},
		{"shl const count truncating",
			&BinarySmiOp{Op: TokenSHL, Truncating: true, Right: smiConstOperand(2)}, false},
		{"shl const count with result range",
			&BinarySmiOp{Op: TokenSHL, Right: smiConstOperand(2), ResultRange: NewRange(0, 64)}, false},
		{"div", &BinarySmiOp{Op: TokenTRUNCDIV}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.op.CanDeoptimize())
		})
	}
}

func Test_BinarySmiOp_RightIsPowerOfTwoConstant(t *testing.T) {
	require.True(t, (&BinarySmiOp{Right: smiConstOperand(8)}).RightIsPowerOfTwoConstant())
	require.True(t, (&BinarySmiOp{Right: smiConstOperand(1)}).RightIsPowerOfTwoConstant())
	require.False(t, (&BinarySmiOp{Right: smiConstOperand(6)}).RightIsPowerOfTwoConstant())
	require.False(t, (&BinarySmiOp{Right: smiConstOperand(0)}).RightIsPowerOfTwoConstant())
	require.False(t, (&BinarySmiOp{Right: smiConstOperand(-8)}).RightIsPowerOfTwoConstant())
	require.False(t, (&BinarySmiOp{Right: smiOperand(nil)}).RightIsPowerOfTwoConstant())
}

func Test_StoreIndexed_NeedsWriteBarrier(t *testing.T) {
	require.True(t, (&StoreIndexed{ElementCID: object.ArrayCID, Value: Operand{CID: object.DynamicCID}}).NeedsWriteBarrier())
	require.False(t, (&StoreIndexed{ElementCID: object.ArrayCID, Value: smiOperand(nil)}).NeedsWriteBarrier())
	require.False(t, (&StoreIndexed{ElementCID: object.ArrayCID, Value: smiConstOperand(1)}).NeedsWriteBarrier())
	require.False(t, (&StoreIndexed{ElementCID: object.TypedDataUint8ArrayCID, Value: Operand{}}).NeedsWriteBarrier())
}

func Test_StoreInstanceField_NeedsWriteBarrier(t *testing.T) {
	require.True(t, (&StoreInstanceField{Value: Operand{CID: object.DynamicCID}}).NeedsWriteBarrier())
	require.False(t, (&StoreInstanceField{Value: smiOperand(nil)}).NeedsWriteBarrier())
	// Initializing stores target freshly allocated objects.
	require.False(t, (&StoreInstanceField{Initialization: true, Value: Operand{CID: object.DynamicCID}}).NeedsWriteBarrier())
}

func Test_GuardField_CanSkip(t *testing.T) {
	abandoned := &Field{GuardedCID: object.DynamicCID}
	require.True(t, (&GuardField{Field: abandoned, Value: Operand{}}).CanSkip())

	guarded := &Field{GuardedCID: object.DoubleCID, GuardedListLength: object.GuardedListLengthUnknown}
	require.True(t, (&GuardField{Field: guarded, Value: Operand{CID: object.DoubleCID}}).CanSkip())
	require.False(t, (&GuardField{Field: guarded, Value: Operand{CID: object.DynamicCID}}).CanSkip())
	require.False(t, (&GuardField{Field: guarded, Value: Operand{CID: object.SmiCID}}).CanSkip())

	// Nullable value into a non-nullable guard must be checked.
	require.False(t, (&GuardField{Field: guarded, Value: Operand{CID: object.DoubleCID, Nullable: true}}).CanSkip())
	nullable := &Field{GuardedCID: object.DoubleCID, Nullable: true, GuardedListLength: object.GuardedListLengthUnknown}
	require.True(t, (&GuardField{Field: nullable, Value: Operand{CID: object.DoubleCID, Nullable: true}}).CanSkip())

	// A tracked length always needs revalidation.
	length := &Field{GuardedCID: object.ArrayCID, GuardedListLength: 3}
	require.False(t, (&GuardField{Field: length, Value: Operand{CID: object.ArrayCID}}).CanSkip())
}

func Test_CheckArrayBound_IsRedundant(t *testing.T) {
	check := &CheckArrayBound{
		Length: smiOperand(NewRange(10, 10)),
		Index:  smiOperand(NewRange(0, 9)),
	}
	require.True(t, check.IsRedundant())

	check.Index = smiOperand(NewRange(0, 10))
	require.False(t, check.IsRedundant())

	check.Index = smiOperand(nil)
	require.False(t, check.IsRedundant())

	// A length that may be smaller than the index maximum keeps the check.
	check.Length = smiOperand(NewRange(5, 10))
	check.Index = smiOperand(NewRange(0, 9))
	require.False(t, check.IsRedundant())
}

func Test_DeoptID_After(t *testing.T) {
	require.Equal(t, DeoptID(-3), DeoptID(1).After())
	require.NotEqual(t, DeoptID(1), DeoptID(1).After())
}

func Test_LoadField_IsUnboxedLoad(t *testing.T) {
	f := &Field{GuardedCID: object.DoubleCID, UnboxingCandidate: true}
	require.True(t, (&LoadField{Field: f}).IsUnboxedLoad())
	require.False(t, (&LoadField{}).IsUnboxedLoad())
	require.False(t, (&LoadField{Field: &Field{GuardedCID: object.DoubleCID}}).IsUnboxedLoad())
	require.False(t, (&LoadField{Field: &Field{GuardedCID: object.DoubleCID, UnboxingCandidate: true, Nullable: true}}).IsUnboxedLoad())
}
