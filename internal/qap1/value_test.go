package qap1

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStorageSizeMatchesEncodedLength(t *testing.T) {
	nodes := []*Node{
		NewNull(),
		NewInts(1, 2, 3),
		NewDoubles(42.0),
		NewBoolScalar(BoolTrue),
		NewBoolArray(BoolTrue, BoolFalse, BoolNA),
		NewString("x*2"),
		NewStringVector([]string{"a", "bb", "ccc"}),
		NewRaw([]byte{0xde, 0xad, 0xbe, 0xef}),
		NewVector(NewInts(1), NewString("tag")),
		NewSymbol("x"),
		(&Node{Type: XtInt, Ints: []int32{7}}).WithAttr(NewString("names")),
	}
	for _, n := range nodes {
		enc := Encode(n)
		require.EqualValues(t, len(enc), StorageSize(n))
	}
}

func TestValueRoundTripScalarDouble(t *testing.T) {
	n := NewDoubles(2.0)
	enc := Encode(n)
	got, consumed, err := Decode(enc)
	require.NoError(t, err)
	require.Equal(t, len(enc), consumed)
	require.Equal(t, XtArrayDouble, got.Type)
	require.Equal(t, []float64{2.0}, got.Doubles)
}

func TestValueRoundTripStringCollapse(t *testing.T) {
	n := NewStringVector([]string{"only"})
	require.Equal(t, XtStr, n.Type)
	enc := Encode(n)
	got, _, err := Decode(enc)
	require.NoError(t, err)
	require.Equal(t, XtStr, got.Type)
	require.Equal(t, "only", got.Str)
}

func TestValueRoundTripStringArray(t *testing.T) {
	n := NewStringVector([]string{"alpha", "beta", "gamma"})
	enc := Encode(n)
	got, _, err := Decode(enc)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "beta", "gamma"}, got.Strs)
}

func TestValueRoundTripVector(t *testing.T) {
	n := NewVector(NewInts(1, 2), NewDoubles(3.5), NewString("tail"))
	enc := Encode(n)
	got, consumed, err := Decode(enc)
	require.NoError(t, err)
	require.Equal(t, len(enc), consumed)
	require.Len(t, got.Children, 3)
	require.Equal(t, []int32{1, 2}, got.Children[0].Ints)
	require.Equal(t, "tail", got.Children[2].Str)
}

func TestValueRoundTripLangThreeChildren(t *testing.T) {
	n := NewLang(NewSymbol("+"), NewInts(1), NewInts(1))
	enc := Encode(n)
	got, _, err := Decode(enc)
	require.NoError(t, err)
	require.Len(t, got.Children, 3)
}

func TestValueRoundTripAttr(t *testing.T) {
	n := NewInts(1, 2, 3).WithAttr(NewStringVector([]string{"names"}))
	enc := Encode(n)
	got, _, err := Decode(enc)
	require.NoError(t, err)
	require.NotNil(t, got.Attr)
	require.Equal(t, "names", got.Attr.Str)
	require.Equal(t, []int32{1, 2, 3}, got.Ints)
}

func TestValueRoundTripLargeForm(t *testing.T) {
	raw := make([]byte, maxSmallLength+64)
	n := NewRaw(raw)
	enc := Encode(n)
	got, consumed, err := Decode(enc)
	require.NoError(t, err)
	require.Equal(t, len(enc), consumed)
	require.Len(t, got.Raw, len(raw))
}

func TestDecodeTruncatedReturnsError(t *testing.T) {
	n := NewDoubles(1.0)
	enc := Encode(n)
	_, _, err := Decode(enc[:len(enc)-2])
	require.Error(t, err)
}

func TestDecodeMaxDepthExceeded(t *testing.T) {
	var n *Node = NewInts(1)
	for i := 0; i <= maxDecodeDepth+1; i++ {
		n = NewVector(n)
	}
	enc := Encode(n)
	_, _, err := Decode(enc)
	require.ErrorIs(t, err, ErrMaxDepth)
}

func TestSplitCStringsTrimsPadding(t *testing.T) {
	body := append([]byte("a\x00b\x00"), 0, 0)
	got := splitCStrings(body)
	require.Equal(t, []string{"a", "b"}, got)
}

func TestSelfTestPasses(t *testing.T) {
	require.NoError(t, SelfTest())
}
