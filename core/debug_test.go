package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureDebug(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	prevWriter, prevEnabled := debugPrintln, debugEnabled
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	t.Cleanup(func() {
		debugPrintln = prevWriter
		debugEnabled = prevEnabled
	})
	return &lines
}

func TestDebugPrintlnHonoursEnable(t *testing.T) {
	lines := captureDebug(t)

	SetDebugEnabled(false)
	DebugPrintln("hidden")
	assert.Empty(t, *lines)

	SetDebugEnabled(true)
	assert.True(t, IsDebugEnabled())
	DebugPrintln("shown")
	assert.Equal(t, []string{"shown"}, *lines)
}

func TestTimingRingKeepsNewest(t *testing.T) {
	ClearTimingRing()
	defer ClearTimingRing()

	for i := 0; i < TimingRingSize+5; i++ {
		RecordTiming(EvtStep, 1, uint32(i), uint32(i), 0)
	}
	events := TimingEvents()
	require.Len(t, events, TimingRingSize)
	assert.Equal(t, uint32(5), events[0].Clock, "oldest surviving event")
	assert.Equal(t, uint32(TimingRingSize+4), events[len(events)-1].Clock)
}

func TestDumpTimingRing(t *testing.T) {
	ClearTimingRing()
	defer ClearTimingRing()
	lines := captureDebug(t)

	RecordTiming(EvtDirChange, 0, 100, 1, 0)
	RecordTiming(EvtLateStep, 2, 250, 40, 30)
	DumpTimingRing()

	require.Len(t, *lines, 4)
	assert.Equal(t, "[TIMING] DIR axis=0 clock=100 v1=1 v2=0", (*lines)[1])
	assert.True(t, strings.HasPrefix((*lines)[2], "[TIMING] LATE! axis=2"))
}
