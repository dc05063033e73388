package utils

import (
	"encoding/json"
	"os"
	"time"

	"github.com/gilchrisn/graph-partitioning-service/pkg/models"
)

type RoundEvent struct {
	Round     int    `json:"round"`
	Algorithm string `json:"algorithm"`
	Timestamp int64  `json:"timestamp"`
	models.RoundStats
}

// RoundTracker writes one JSON line per bucket round. A nil tracker is a
// valid no-op tracker.
type RoundTracker struct {
	file      *os.File
	encoder   *json.Encoder
	algorithm string
	rounds    int
}

func NewRoundTracker(filename, algorithm string) (*RoundTracker, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	return &RoundTracker{
		file:      file,
		encoder:   json.NewEncoder(file),
		algorithm: algorithm,
	}, nil
}

func (rt *RoundTracker) LogRound(stats models.RoundStats) error {
	if rt == nil {
		return nil
	}

	event := RoundEvent{
		Round:      rt.rounds,
		Algorithm:  rt.algorithm,
		Timestamp:  time.Now().Unix(),
		RoundStats: stats,
	}
	rt.rounds++

	return rt.encoder.Encode(event)
}

// Rounds returns how many rounds were logged
func (rt *RoundTracker) Rounds() int {
	if rt == nil {
		return 0
	}
	return rt.rounds
}

func (rt *RoundTracker) Close() error {
	if rt != nil && rt.file != nil {
		return rt.file.Close()
	}
	return nil
}
