package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshdiag/internal/model"
	"meshdiag/internal/relay"
)

const sampleDoc = `
owner: "!00003000"
nodes:
  - id: "!00001001"
    short_name: A_short
    long_name: Alpha
    last_heard: 100
    snr: 5
    rssi: -60
  - id: 0x2001
    short_name: B_short
    last_heard: 100
    snr: 2.5
    rssi: -50
  - id: 20485
    short_name: FAR
    last_heard: 90
    hops_away: 3
    hop_start: 5
    relay_suffix: 1
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestLoadState_MissingFile_ReturnsEmpty(t *testing.T) {
	t.Parallel()

	st, err := LoadState(filepath.Join(t.TempDir(), "nodes.yaml"))
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Empty(t, st.Nodes)
	assert.Nil(t, st.Owner)
}

func TestLoadState_Parses(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nodes.yaml")
	writeFile(t, path, sampleDoc)

	st, err := LoadState(path)
	require.NoError(t, err)
	require.NotNil(t, st.Owner)
	assert.Equal(t, model.NodeID(0x3000), *st.Owner)
	require.Len(t, st.Nodes, 3)

	a := st.Nodes[0x1001]
	assert.Equal(t, "Alpha", a.LongName)
	assert.Nil(t, a.RelaySuffix)

	assert.Equal(t, 2.5, st.Nodes[0x2001].SNR)

	far := st.Nodes[0x5005]
	require.NotNil(t, far.RelaySuffix)
	assert.Equal(t, uint8(1), *far.RelaySuffix)
	assert.Equal(t, 3, far.HopsAway)
}

func TestLoadState_RejectsOutOfRangeSuffix(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nodes.yaml")
	writeFile(t, path, "nodes:\n  - id: 7\n    hops_away: 1\n    relay_suffix: 256\n")

	_, err := LoadState(path)
	assert.ErrorIs(t, err, relay.ErrInvalidSuffix)
}

func TestLoadState_RejectsDuplicateIDs(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nodes.yaml")
	writeFile(t, path, "nodes:\n  - id: 7\n  - id: \"!00000007\"\n")

	_, err := LoadState(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadState_RejectsBadOwner(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nodes.yaml")
	writeFile(t, path, "owner: nobody\nnodes: []\n")

	_, err := LoadState(path)
	assert.Error(t, err)
}

func TestSaveState_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sub", "nodes.yaml")
	owner := model.NodeID(0x3000)
	s := uint8(0)
	in := &State{
		Owner: &owner,
		Nodes: model.Snapshot{
			0x1001: {ID: 0x1001, ShortName: "A", LastHeard: 5, RSSI: -70},
			0x5005: {ID: 0x5005, ShortName: "F", HopsAway: 2, RelaySuffix: &s},
		},
	}
	require.NoError(t, SaveState(path, in))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err := LoadState(path)
	require.NoError(t, err)
	assert.False(t, out.UpdatedAt.IsZero())
	require.NotNil(t, out.Owner)
	assert.Equal(t, owner, *out.Owner)
	assert.Equal(t, in.Nodes[0x1001], out.Nodes[0x1001])
	// A zero suffix is a real value, not "absent".
	require.NotNil(t, out.Nodes[0x5005].RelaySuffix)
	assert.Equal(t, uint8(0), *out.Nodes[0x5005].RelaySuffix)
}
