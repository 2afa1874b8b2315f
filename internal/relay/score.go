package relay

import (
	"math"

	"meshdiag/internal/model"
)

const (
	// snrWeight puts SNR's ~30 dB swing on par with RSSI's ~90 dB swing.
	snrWeight = 3.0
	// rssiFloor shifts RSSI so typical readings are non-negative.
	rssiFloor = 120.0
)

// Score ranks how well a node is heard; higher is better.
//
//	score = snr*3 + (rssi + 120)
//
// A non-finite SNR is treated as 0 so the result is always a number.
func Score(n model.Node) float64 {
	snr := n.SNR
	if math.IsNaN(snr) || math.IsInf(snr, 0) {
		snr = 0
	}
	return snr*snrWeight + (float64(n.RSSI) + rssiFloor)
}
