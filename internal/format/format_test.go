package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"meshdiag/internal/model"
	"meshdiag/internal/relay"
)

func snapshot() model.Snapshot {
	return model.Snapshot{
		0x1001: {ID: 0x1001, ShortName: "A_short", LongName: "Alpha", SNR: 5, RSSI: -60, LastHeard: 100},
		0x2001: {ID: 0x2001, ShortName: "B_short", LongName: "Bravo", SNR: 2, RSSI: -50, LastHeard: 100},
	}
}

func TestSuffixHex(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0x00", SuffixHex(0))
	assert.Equal(t, "0x0A", SuffixHex(10))
	assert.Equal(t, "0xFF", SuffixHex(255))
}

func TestRelayText_Ambiguous(t *testing.T) {
	t.Parallel()

	owner := model.NodeID(0x3000)
	res := relay.ResolveSuffix(snapshot(), &owner, 0x01)
	assert.Equal(t, "B_short, A_short (0x01)", RelayText(res))
}

func TestRelayText_Unambiguous(t *testing.T) {
	t.Parallel()

	snap := snapshot()
	delete(snap, 0x2001)
	res := relay.ResolveSuffix(snap, nil, 0x01)
	assert.Equal(t, "Alpha (0x01)", RelayText(res))
}

func TestRelayText_NoAttribution(t *testing.T) {
	t.Parallel()

	res := relay.ResolveSuffix(snapshot(), nil, 0x09)
	assert.Equal(t, "0x09", RelayText(res))
}

func TestRelayText_NameFallbacks(t *testing.T) {
	t.Parallel()

	snap := model.Snapshot{0x0A0C: {ID: 0x0A0C, ShortName: "Z", LastHeard: 1}}
	assert.Equal(t, "Z (0x0C)", RelayText(relay.ResolveSuffix(snap, nil, 0x0C)))

	snap = model.Snapshot{
		0x0A0C: {ID: 0x0A0C, LastHeard: 1, RSSI: -40},
		0x0B0C: {ID: 0x0B0C, ShortName: "Y", LastHeard: 1, RSSI: -100},
	}
	assert.Equal(t, "!00000a0c, Y (0x0C)", RelayText(relay.ResolveSuffix(snap, nil, 0x0C)))
}

func TestHopText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "3 of 5 hops", HopText(3, 5))
	assert.Equal(t, "2 hops", HopText(2, 0))
}

func TestLastHeard(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_000_000, 0)
	assert.Equal(t, "never", LastHeard(0, now))
	assert.Equal(t, "30s ago", LastHeard(now.Unix()-30, now))
	assert.Equal(t, "5m ago", LastHeard(now.Unix()-5*60-10, now))
	assert.Equal(t, "2h ago", LastHeard(now.Unix()-2*3600, now))
	assert.Equal(t, "3d ago", LastHeard(now.Unix()-3*86400-1, now))
	assert.Equal(t, "0s ago", LastHeard(now.Unix()+60, now))
}

func TestUptime(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "45s", Uptime(45))
	assert.Equal(t, "2m", Uptime(125))
	assert.Equal(t, "1h 1m", Uptime(3660))
	assert.Equal(t, "1d 2h 3m", Uptime(86400+2*3600+3*60))
}
