package config

// Aggressivity is a user-policy bitmask applied per destination port,
// expressed the same way the plugin's own hackFrequency mask is: a
// combination of flat-percentage flags and time/packet-count "peek" flags.
type Aggressivity uint16

const (
	AggNone Aggressivity = 0

	AggVeryRare Aggressivity = 1 << (iota - 1)
	AggRare
	AggCommon
	AggHeavy
	AggAlways
	AggPackets10Peek
	AggPackets30Peek
	AggTimeBased5s
	AggTimeBased20s
	AggStartPeek
	AggLongPeek
)

// DerivePercentage computes the sum-of-contributions percentage for a given
// aggressivity mask at the current session packet count and clock second.
// Grounded on TCPTrack::derivePercentage (original_source/src/service/TCPTrack.cc):
// each set flag adds its own contribution, peek-window flags contribute a high
// value inside their window and a flat 2 outside it.
func DerivePercentage(frequency Aggressivity, packetNumber uint32, clockSeconds int64) uint32 {
	var pct uint32

	if frequency&AggVeryRare != 0 {
		pct += 5
	}
	if frequency&AggRare != 0 {
		pct += 15
	}
	if frequency&AggCommon != 0 {
		pct += 40
	}
	if frequency&AggHeavy != 0 {
		pct += 75
	}
	if frequency&AggAlways != 0 {
		pct += 100
	}
	if frequency&AggPackets10Peek != 0 {
		n := packetNumber
		if (n+1)%10 == 0 || n%10 == 0 || (n-1)%10 == 0 {
			pct += 80
		} else {
			pct += 2
		}
	}
	if frequency&AggPackets30Peek != 0 {
		n := packetNumber
		if (n+1)%30 == 0 || n%30 == 0 || (n-1)%30 == 0 {
			pct += 90
		} else {
			pct += 2
		}
	}
	if frequency&AggTimeBased5s != 0 {
		if uint8(clockSeconds)%5 == 0 {
			pct += 90
		} else {
			pct += 2
		}
	}
	if frequency&AggTimeBased20s != 0 {
		if uint8(clockSeconds)%20 == 0 {
			pct += 90
		} else {
			pct += 2
		}
	}
	if frequency&AggStartPeek != 0 {
		switch {
		case packetNumber < 20:
			pct += 65
		case packetNumber < 40:
			pct += 20
		default:
			pct += 2
		}
	}
	if frequency&AggLongPeek != 0 {
		switch {
		case packetNumber < 60:
			pct += 65
		case packetNumber < 120:
			pct += 20
		default:
			pct += 2
		}
	}
	if frequency&AggNone != 0 {
		pct = 0
	}

	return pct
}
