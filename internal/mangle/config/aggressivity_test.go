package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDerivePercentageFlatFlags(t *testing.T) {
	cases := []struct {
		agg  Aggressivity
		want uint32
	}{
		{AggNone, 0},
		{AggVeryRare, 5},
		{AggRare, 15},
		{AggCommon, 40},
		{AggHeavy, 75},
		{AggAlways, 100},
		{AggRare | AggHeavy, 90},
	}
	for _, c := range cases {
		require.Equal(t, c.want, DerivePercentage(c.agg, 0, 0), "DerivePercentage(%v)", c.agg)
	}
}

func TestDerivePercentagePacketPeekWindow(t *testing.T) {
	require.EqualValues(t, 80, DerivePercentage(AggPackets10Peek, 10, 0), "at the 10-boundary")
	require.EqualValues(t, 2, DerivePercentage(AggPackets10Peek, 15, 0), "mid-window")
}

func TestDerivePercentageTimeBasedWindow(t *testing.T) {
	require.EqualValues(t, 90, DerivePercentage(AggTimeBased5s, 0, 10), "on a 5s boundary")
	require.EqualValues(t, 2, DerivePercentage(AggTimeBased5s, 0, 11), "off a 5s boundary")
}

func TestDerivePercentageStartPeekDecaysWithPacketCount(t *testing.T) {
	require.EqualValues(t, 65, DerivePercentage(AggStartPeek, 5, 0), "early packets")
	require.EqualValues(t, 20, DerivePercentage(AggStartPeek, 30, 0), "mid packets")
	require.EqualValues(t, 2, DerivePercentage(AggStartPeek, 100, 0), "late packets")
}
