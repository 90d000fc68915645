package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestDecideBinaryAccessMallocNilLength(t *testing.T) {
	_, err := DecideBinaryAccess(BinaryOptions{Malloc: true}, 10, nil, nil)
	require.ErrorIs(t, err, ErrInvalidAccessOptions)
}

func TestDecideBinaryAccessMallocLengthCapped(t *testing.T) {
	length := intPtr(4)
	plan, err := DecideBinaryAccess(BinaryOptions{Malloc: true}, 10, length, nil)
	require.NoError(t, err)
	require.Equal(t, BinaryPlan{Start: 0, Count: 4, Allocate: true}, plan)
	require.Equal(t, 4, *length)
}

func TestDecideBinaryAccessMallocZeroLengthFull(t *testing.T) {
	length := intPtr(0)
	plan, err := DecideBinaryAccess(BinaryOptions{Malloc: true}, 7, length, nil)
	require.NoError(t, err)
	require.Equal(t, BinaryPlan{Start: 0, Count: 7, Allocate: true}, plan)
	require.Equal(t, 7, *length)
}

func TestDecideBinaryAccessMallocWithCursorInvalid(t *testing.T) {
	length := intPtr(4)
	cursor := intPtr(0)
	_, err := DecideBinaryAccess(BinaryOptions{Malloc: true}, 10, length, cursor)
	require.ErrorIs(t, err, ErrInvalidAccessOptions)
}

func TestDecideBinaryAccessNoMallocCursorAdvances(t *testing.T) {
	length := intPtr(3)
	cursor := intPtr(2)
	plan, err := DecideBinaryAccess(BinaryOptions{}, 10, length, cursor)
	require.NoError(t, err)
	require.Equal(t, BinaryPlan{Start: 2, Count: 3}, plan)
	require.Equal(t, 5, *cursor)
	require.Equal(t, 3, *length)
}

func TestDecideBinaryAccessNoMallocCursorTruncatedAtSourceEnd(t *testing.T) {
	length := intPtr(5)
	cursor := intPtr(8)
	plan, err := DecideBinaryAccess(BinaryOptions{}, 10, length, cursor)
	require.NoError(t, err)
	require.Equal(t, 8, plan.Start)
	require.Equal(t, 2, plan.Count)
	require.Equal(t, 10, *cursor)
}

func TestDecideBinaryAccessNoMallocZeroLengthReportsSize(t *testing.T) {
	length := intPtr(0)
	plan, err := DecideBinaryAccess(BinaryOptions{}, 9, length, nil)
	require.NoError(t, err)
	require.Equal(t, BinaryPlan{Start: 0, Count: 0}, plan)
	require.Equal(t, 9, *length)
}

func TestDecideBinaryAccessNoMallocNoCursorFitsExactly(t *testing.T) {
	length := intPtr(10)
	plan, err := DecideBinaryAccess(BinaryOptions{}, 10, length, nil)
	require.NoError(t, err)
	require.Equal(t, BinaryPlan{Start: 0, Count: 10}, plan)
}

func TestDecideBinaryAccessNoMallocNoCursorOverflowInvalid(t *testing.T) {
	length := intPtr(4)
	_, err := DecideBinaryAccess(BinaryOptions{}, 10, length, nil)
	require.ErrorIs(t, err, ErrInvalidAccessOptions)
}

func TestLiteralFormatterRoundTrip(t *testing.T) {
	text, err := LiteralFormatter.FormatText("hello")
	require.NoError(t, err)
	require.Equal(t, `"hello"`, text)

	value, err := LiteralFormatter.ParseText(text)
	require.NoError(t, err)
	require.Equal(t, "hello", value)
}
