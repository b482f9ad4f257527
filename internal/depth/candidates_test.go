package depth

import (
	"math"
	"testing"
	"time"
)

func TestCandidateBoard_FreshAndStale(t *testing.T) {
	board := NewCandidateBoard(map[SourceKind]time.Duration{
		SourceLiDAR: 250 * time.Millisecond,
	})

	board.Publish(DepthCandidate{
		Source: SourceLiDAR, DepthMeters: 3.2, Confidence: 0.9, Timestamp: testTime(0),
	})

	if c, ok := board.Fresh(SourceLiDAR, testTime(100*time.Millisecond)); !ok || c.DepthMeters != 3.2 {
		t.Fatalf("candidate within its bound should be fresh, got %v %v", c, ok)
	}
	if _, ok := board.Fresh(SourceLiDAR, testTime(time.Second)); ok {
		t.Fatalf("candidate beyond its staleness bound must read as absent")
	}
}

func TestCandidateBoard_LatestWins(t *testing.T) {
	board := NewCandidateBoard(nil)
	board.Publish(DepthCandidate{Source: SourceNeural, DepthMeters: 40, Confidence: 0.5, Timestamp: testTime(0)})
	board.Publish(DepthCandidate{Source: SourceNeural, DepthMeters: 42, Confidence: 0.6, Timestamp: testTime(time.Second)})

	c, ok := board.Fresh(SourceNeural, testTime(2*time.Second))
	if !ok || c.DepthMeters != 42 {
		t.Fatalf("newest publish should replace the old one, got %v %v", c, ok)
	}
}

func TestCandidateBoard_DropsInvalid(t *testing.T) {
	board := NewCandidateBoard(nil)
	board.Publish(DepthCandidate{Source: SourceDEM, DepthMeters: 0, Confidence: 0.9, Timestamp: testTime(0)})
	board.Publish(DepthCandidate{Source: SourceDEM, DepthMeters: math.NaN(), Confidence: 0.9, Timestamp: testTime(0)})
	board.Publish(DepthCandidate{Source: SourceDEM, DepthMeters: 100, Confidence: 0, Timestamp: testTime(0)})

	if _, ok := board.Fresh(SourceDEM, testTime(0)); ok {
		t.Fatalf("invalid candidates must never land on the board")
	}
}

func TestCandidateBoard_Clear(t *testing.T) {
	board := NewCandidateBoard(nil)
	board.Publish(DepthCandidate{Source: SourceLiDAR, DepthMeters: 2, Confidence: 0.9, Timestamp: testTime(0)})
	board.Clear(SourceLiDAR)
	if _, ok := board.Fresh(SourceLiDAR, testTime(0)); ok {
		t.Fatalf("cleared source should read as absent")
	}
}

func TestCandidateBoard_Snapshot(t *testing.T) {
	board := NewCandidateBoard(map[SourceKind]time.Duration{
		SourceLiDAR:  250 * time.Millisecond,
		SourceNeural: time.Second,
	})
	board.Publish(DepthCandidate{Source: SourceLiDAR, DepthMeters: 2, Confidence: 0.9, Timestamp: testTime(0)})
	board.Publish(DepthCandidate{Source: SourceNeural, DepthMeters: 50, Confidence: 0.5, Timestamp: testTime(0)})

	snap := board.Snapshot(testTime(500 * time.Millisecond))
	if _, ok := snap[SourceLiDAR]; ok {
		t.Fatalf("stale lidar should be dropped from the snapshot")
	}
	if c, ok := snap[SourceNeural]; !ok || c.DepthMeters != 50 {
		t.Fatalf("fresh neural should survive in the snapshot, got %v %v", c, ok)
	}
}
