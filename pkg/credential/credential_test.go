package credential

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealRetrieveRoundTrips(t *testing.T) {
	m, err := NewManagerFromPassphrase("correct horse battery staple")
	require.NoError(t, err)

	v := Value{Username: "app", Password: "s3cret", Host: "10.0.0.5", Port: 5432}
	h, err := m.Seal(v)
	require.NoError(t, err)

	got, err := m.Retrieve(h)
	require.NoError(t, err)
	require.Equal(t, v, got)
}

func TestRetrieveFailsWithWrongKey(t *testing.T) {
	m1, err := NewManagerFromPassphrase("key-one")
	require.NoError(t, err)
	m2, err := NewManagerFromPassphrase("key-two")
	require.NoError(t, err)

	h, err := m1.Seal(Value{Username: "app"})
	require.NoError(t, err)

	_, err = m2.Retrieve(h)
	require.Error(t, err)
}

func TestWipeClearsEveryField(t *testing.T) {
	v := Value{Username: "app", Password: "s3cret", ClientSSL: []byte{1, 2, 3}, Host: "h", Port: 1, URI: "u", Socket: "s"}
	v.Wipe()
	require.Equal(t, Value{}, v)
}

func TestNewManagerRejectsWrongKeyLength(t *testing.T) {
	_, err := NewManager([]byte("too-short"))
	require.Error(t, err)
}
