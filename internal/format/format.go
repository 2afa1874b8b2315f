package format

import (
	"fmt"
	"strings"
	"time"

	"meshdiag/internal/model"
	"meshdiag/internal/relay"
)

// UnknownShortName is shown in place of an empty short name on detail views.
const UnknownShortName = "???"

// SuffixHex renders a relay suffix as two uppercase hex digits, e.g. 0x0A.
func SuffixHex(suffix uint8) string {
	return fmt.Sprintf("0x%02X", suffix)
}

// LongName falls back to the short name, then to the user id.
func LongName(n model.Node) string {
	if n.LongName != "" {
		return n.LongName
	}
	return ShortName(n)
}

// ShortName falls back to the user id.
func ShortName(n model.Node) string {
	if n.ShortName != "" {
		return n.ShortName
	}
	return n.ID.String()
}

// RelayText renders a resolution for the "last relay" line:
//
//	none         0x09
//	unambiguous  Alpha (0x01)
//	ambiguous    B_short, A_short (0x01)
func RelayText(res relay.Resolution) string {
	hex := SuffixHex(res.Suffix)
	switch res.Kind {
	case relay.Unambiguous:
		best, ok := res.Best()
		if !ok {
			return hex
		}
		return fmt.Sprintf("%s (%s)", LongName(best.Node), hex)
	case relay.Ambiguous:
		names := make([]string, 0, len(res.Candidates))
		for _, c := range res.Candidates {
			names = append(names, ShortName(c.Node))
		}
		return fmt.Sprintf("%s (%s)", strings.Join(names, ", "), hex)
	default:
		return hex
	}
}

// HopText renders hop telemetry; hopStart of 0 means the start is unknown.
func HopText(hopsAway, hopStart int) string {
	if hopStart > 0 {
		return fmt.Sprintf("%d of %d hops", hopsAway, hopStart)
	}
	return fmt.Sprintf("%d hops", hopsAway)
}

// LastHeard renders a coarse age such as "42s ago" or "3h ago".
func LastHeard(lastHeard int64, now time.Time) string {
	if lastHeard == 0 {
		return "never"
	}
	age := now.Sub(time.Unix(lastHeard, 0))
	if age < 0 {
		age = 0
	}
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int(age/time.Second))
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age/time.Minute))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age/time.Hour))
	}
	return fmt.Sprintf("%dd ago", int(age/(24*time.Hour)))
}

// Uptime renders seconds as "1d 2h 3m", dropping leading zero units.
func Uptime(seconds uint32) string {
	d := seconds / 86400
	h := seconds % 86400 / 3600
	m := seconds % 3600 / 60
	switch {
	case d > 0:
		return fmt.Sprintf("%dd %dh %dm", d, h, m)
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", seconds)
}
