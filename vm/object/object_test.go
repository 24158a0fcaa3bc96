package object

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_SmiTagging(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 42, -42, MaxSmi, MinSmi} {
		ref := NewSmi(v)
		require.True(t, ref.IsSmi(), "tagged %d must read back as smi", v)
		require.Equal(t, v, ref.SmiValue())
	}
}

func Test_SmiRange(t *testing.T) {
	require.True(t, IsValidSmi(MaxSmi))
	require.True(t, IsValidSmi(MinSmi))
	require.False(t, IsValidSmi(MaxSmi+1))
	require.False(t, IsValidSmi(MinSmi-1))
	require.Panics(t, func() { NewSmi(MaxSmi + 1) })
}

func Test_HeapRefIsNotSmi(t *testing.T) {
	require.False(t, Ref(0x1001).IsSmi())
	require.Panics(t, func() { Ref(0x1001).SmiValue() })
}

func Test_ElementSizeFor(t *testing.T) {
	tests := []struct {
		cid  ClassID
		size int64
	}{
		{TypedDataInt8ArrayCID, 1},
		{TypedDataUint8ClampedArrayCID, 1},
		{ExternalTypedDataUint8ArrayCID, 1},
		{OneByteStringCID, 1},
		{TypedDataInt16ArrayCID, 2},
		{TwoByteStringCID, 2},
		{TypedDataUint32ArrayCID, 4},
		{TypedDataFloat32ArrayCID, 4},
		{ArrayCID, 8},
		{TypedDataFloat64ArrayCID, 8},
		{TypedDataFloat32x4ArrayCID, 16},
	}
	for _, tc := range tests {
		require.Equal(t, tc.size, ElementSizeFor(tc.cid), "element size of %v", tc.cid)
	}
}

func Test_DataOffsetFor(t *testing.T) {
	// External stores point straight at their payload.
	require.Equal(t, int64(0), DataOffsetFor(ExternalTypedDataUint8ArrayCID))
	require.Equal(t, int64(ArrayDataOffset), DataOffsetFor(ArrayCID))
	require.Equal(t, int64(TypedDataDataOffset), DataOffsetFor(TypedDataFloat64ArrayCID))
	require.Equal(t, int64(StringDataOffset), DataOffsetFor(TwoByteStringCID))
	require.Panics(t, func() { DataOffsetFor(DoubleCID) })
}

func Test_HeaderWord(t *testing.T) {
	h := HeaderWord(DoubleCID, DoubleSize)
	require.Equal(t, int64(DoubleCID), h&0xFFFF)
	require.Equal(t, int64(DoubleSize), h>>HeaderSizeShift)
}

func Test_IsTypedData(t *testing.T) {
	require.True(t, TypedDataInt8ArrayCID.IsTypedData())
	require.True(t, TypedDataFloat64x2ArrayCID.IsTypedData())
	require.False(t, ArrayCID.IsTypedData())
	require.False(t, ExternalTypedDataUint8ArrayCID.IsTypedData())
	require.True(t, ExternalTypedDataUint8ArrayCID.IsExternal())
}
