package errqueue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRaiseError1DoesNotUnwind(t *testing.T) {
	q := New()
	require.NotPanics(t, func() {
		q.Raise(Error1, "bad qual: %s", "foo")
	})
	recs := q.Records()
	require.Len(t, recs, 1)
	require.Equal(t, Error1, recs[0].Level)
}

func TestCatchRecoversError2Unwind(t *testing.T) {
	q := New()
	restored := false

	caught := q.Catch(func() { restored = true }, func() {
		q.Raise(Error2, "type not found: %s", "int64")
		t.Fatal("unreachable after Raise at Error2")
	})

	require.NotNil(t, caught)
	require.Equal(t, Error2, caught.Level)
	require.True(t, restored)
}

func TestCatchDoesNotInterceptLowerLevels(t *testing.T) {
	q := New()
	ran := false
	caught := q.Catch(nil, func() {
		q.Raise(Warning, "schema drift noticed")
		ran = true
	})
	require.Nil(t, caught)
	require.True(t, ran)
}

func TestFlushDeliversToSubscribedSinks(t *testing.T) {
	q := New()
	var seen []*Error
	q.Subscribe(Warning, func(e *Error) { seen = append(seen, e) })

	func() {
		defer func() { recover() }()
		q.Raise(Warning, "low disk")
		q.Raise(Error2, "boom")
	}()

	q.Flush(Debug1)
	require.Len(t, seen, 2)
	require.Empty(t, q.Records())
}

func TestRethrowRepanicsLastCaught(t *testing.T) {
	q := New()

	outer := q.Catch(nil, func() {
		inner := q.Catch(nil, func() {
			q.Raise(Error2, "inner failure")
		})
		require.NotNil(t, inner)
		q.Rethrow()
	})

	require.NotNil(t, outer)
	require.Equal(t, "inner failure", outer.Message)
}
