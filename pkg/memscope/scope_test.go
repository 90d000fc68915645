package memscope

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeResource struct {
	released *int
}

func (f *fakeResource) Release() error {
	*f.released++
	return nil
}

func TestScopeDestroyReleasesTrackedAndChildren(t *testing.T) {
	root := New("xact-1")
	child := root.Child("plan-1")

	rootReleases := 0
	childReleases := 0

	require.NoError(t, root.Track(&fakeResource{released: &rootReleases}))
	require.NoError(t, child.Track(&fakeResource{released: &childReleases}))

	require.NoError(t, root.Destroy())

	require.Equal(t, 1, rootReleases)
	require.Equal(t, 1, childReleases)
	require.True(t, root.Closed())
	require.True(t, child.Closed())
}

func TestScopeDestroyIsIdempotent(t *testing.T) {
	root := New("general")
	require.NoError(t, root.Destroy())
	require.NoError(t, root.Destroy())
}

func TestTrackOnClosedScopeFails(t *testing.T) {
	root := New("general")
	require.NoError(t, root.Destroy())

	err := root.Track(&fakeResource{released: new(int)})
	require.Error(t, err)
}

func TestStatsCountLiveAllocations(t *testing.T) {
	root := New("general")
	require.NoError(t, root.Track(&fakeResource{released: new(int)}))
	require.NoError(t, root.Track(&fakeResource{released: new(int)}))

	stats := root.Stats()
	require.Equal(t, int64(2), stats.Allocs)
	require.Equal(t, int64(2), stats.Live)

	require.NoError(t, root.Destroy())
	stats = root.Stats()
	require.Equal(t, int64(2), stats.Frees)
	require.Equal(t, int64(0), stats.Live)
}
