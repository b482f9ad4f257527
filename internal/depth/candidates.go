package depth

import (
	"sync"
	"time"
)

// CandidateBoard holds the most recently published candidate per source.
// Producers run at their own cadences and publish asynchronously; the
// per-frame fusion step reads the freshest value per source and never
// blocks on a slow producer. A candidate older than its modality's
// staleness bound is treated as absent rather than reused indefinitely.
type CandidateBoard struct {
	mu        sync.RWMutex
	latest    map[SourceKind]DepthCandidate
	staleness map[SourceKind]time.Duration
}

// NewCandidateBoard creates a board with the given per-source staleness
// bounds.
func NewCandidateBoard(staleness map[SourceKind]time.Duration) *CandidateBoard {
	s := make(map[SourceKind]time.Duration, len(staleness))
	for k, v := range staleness {
		s[k] = v
	}
	return &CandidateBoard{
		latest:    make(map[SourceKind]DepthCandidate),
		staleness: s,
	}
}

// Publish records a source's latest candidate. Invalid candidates are
// dropped so a zero or non-finite depth never propagates.
func (b *CandidateBoard) Publish(c DepthCandidate) {
	if !c.Valid() {
		return
	}
	b.mu.Lock()
	b.latest[c.Source] = c
	b.mu.Unlock()
}

// Clear removes a source's candidate, for producers that can report their
// own loss of signal.
func (b *CandidateBoard) Clear(kind SourceKind) {
	b.mu.Lock()
	delete(b.latest, kind)
	b.mu.Unlock()
}

// Fresh returns the candidate for a source if one exists and is within its
// staleness bound at the given time.
func (b *CandidateBoard) Fresh(kind SourceKind, now time.Time) (DepthCandidate, bool) {
	b.mu.RLock()
	c, ok := b.latest[kind]
	b.mu.RUnlock()
	if !ok {
		return DepthCandidate{}, false
	}
	if bound, ok := b.staleness[kind]; ok && now.Sub(c.Timestamp) > bound {
		return DepthCandidate{}, false
	}
	return c, true
}

// Snapshot returns all fresh candidates at the given time, keyed by source.
func (b *CandidateBoard) Snapshot(now time.Time) map[SourceKind]DepthCandidate {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[SourceKind]DepthCandidate, len(b.latest))
	for k, c := range b.latest {
		if bound, ok := b.staleness[k]; ok && now.Sub(c.Timestamp) > bound {
			continue
		}
		out[k] = c
	}
	return out
}
