package utils

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-partitioning-service/pkg/models"
)

func TestRoundTrackerWritesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rounds.jsonl")
	rt, err := NewRoundTracker(path, "ne")
	require.NoError(t, err)

	require.NoError(t, rt.LogRound(models.RoundStats{Bucket: 0, Occupied: 5, StopReason: models.StopCapacity}))
	require.NoError(t, rt.LogRound(models.RoundStats{Bucket: 1, Occupied: 3, StopReason: models.StopFinal}))
	assert.Equal(t, 2, rt.Rounds())
	require.NoError(t, rt.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []RoundEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev RoundEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, events, 2)

	assert.Equal(t, "ne", events[0].Algorithm)
	assert.Equal(t, 0, events[0].Round)
	assert.Equal(t, uint64(5), events[0].Occupied)
	assert.Equal(t, 1, events[1].Bucket)
	assert.Equal(t, models.StopFinal, events[1].StopReason)
}

func TestNilRoundTracker(t *testing.T) {
	var rt *RoundTracker
	assert.NoError(t, rt.LogRound(models.RoundStats{}))
	assert.Equal(t, 0, rt.Rounds())
	assert.NoError(t, rt.Close())
}

func TestRoundTrackerBadPath(t *testing.T) {
	_, err := NewRoundTracker(filepath.Join(t.TempDir(), "missing", "rounds.jsonl"), "ne")
	assert.Error(t, err)
}
