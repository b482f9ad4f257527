// Package sqlite persists per-frame fusion decisions for offline analysis
// and statistical validation runs. Persistence here is diagnostic only: the
// fusion core itself keeps no state across process restarts.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/rangefinder/internal/depth"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id   TEXT PRIMARY KEY,
	label        TEXT,
	config_json  TEXT,
	started_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS decisions (
	session_id       TEXT NOT NULL,
	frame_index      BIGINT NOT NULL,
	ts_nanos         BIGINT NOT NULL,
	primary_kind     TEXT NOT NULL,
	primary_depth    DOUBLE,
	background_kind  TEXT,
	background_depth DOUBLE,
	fg_uncertainty   DOUBLE,
	reason_flags     BIGINT,
	is_bimodal       INTEGER,
	near_peak        DOUBLE,
	far_peak         DOUBLE,
	ground_truth_m   DOUBLE,
	distance_band    TEXT,
	PRIMARY KEY (session_id, frame_index)
);
CREATE INDEX IF NOT EXISTS idx_decisions_session ON decisions(session_id);
`

// DecisionRecord is one persisted frame decision, optionally annotated with
// the ground truth it was validated against.
type DecisionRecord struct {
	SessionID       string
	FrameIndex      int64
	Timestamp       time.Time
	PrimaryKind     depth.SourceKind
	PrimaryDepth    float64
	BackgroundKind  depth.SourceKind
	BackgroundDepth float64
	FgUncertainty   float64
	ReasonFlags     depth.ReasonFlags
	IsBimodal       bool
	NearPeak        float64
	FarPeak         float64
	GroundTruthM    float64 // 0 when unknown
	DistanceBand    string
}

// Store is a decision log backed by a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates a decision log at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open decision log: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create decision log schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// CreateSession registers a new run and returns its ID.
func (s *Store) CreateSession(label, configJSON string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, label, config_json) VALUES (?, ?, ?)`,
		id, label, configJSON,
	)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// InsertDecision appends one frame decision to a session.
func (s *Store) InsertDecision(rec DecisionRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO decisions (
			session_id, frame_index, ts_nanos,
			primary_kind, primary_depth, background_kind, background_depth,
			fg_uncertainty, reason_flags, is_bimodal, near_peak, far_peak,
			ground_truth_m, distance_band
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.FrameIndex, rec.Timestamp.UnixNano(),
		string(rec.PrimaryKind), rec.PrimaryDepth,
		string(rec.BackgroundKind), rec.BackgroundDepth,
		rec.FgUncertainty, int64(rec.ReasonFlags), boolToInt(rec.IsBimodal),
		rec.NearPeak, rec.FarPeak, rec.GroundTruthM, rec.DistanceBand,
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// Decisions returns all decisions for a session in frame order.
func (s *Store) Decisions(sessionID string) ([]DecisionRecord, error) {
	rows, err := s.db.Query(`
		SELECT session_id, frame_index, ts_nanos,
			primary_kind, primary_depth, background_kind, background_depth,
			fg_uncertainty, reason_flags, is_bimodal, near_peak, far_peak,
			ground_truth_m, distance_band
		FROM decisions WHERE session_id = ? ORDER BY frame_index`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var tsNanos, flags int64
		var primaryKind, backgroundKind string
		var bimodal int
		if err := rows.Scan(
			&rec.SessionID, &rec.FrameIndex, &tsNanos,
			&primaryKind, &rec.PrimaryDepth, &backgroundKind, &rec.BackgroundDepth,
			&rec.FgUncertainty, &flags, &bimodal, &rec.NearPeak, &rec.FarPeak,
			&rec.GroundTruthM, &rec.DistanceBand,
		); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		rec.Timestamp = time.Unix(0, tsNanos)
		rec.PrimaryKind = depth.SourceKind(primaryKind)
		rec.BackgroundKind = depth.SourceKind(backgroundKind)
		rec.ReasonFlags = depth.ReasonFlags(flags)
		rec.IsBimodal = bimodal != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// BandStats summarises accuracy for one distance band of a session.
type BandStats struct {
	Band         string
	Frames       int
	WithEstimate int
	MeanAbsPct   float64 // mean |err|/truth over frames with truth and estimate
}

// SessionBandStats aggregates per-band accuracy for a session, considering
// only frames annotated with ground truth.
func (s *Store) SessionBandStats(sessionID string) ([]BandStats, error) {
	recs, err := s.Decisions(sessionID)
	if err != nil {
		return nil, err
	}

	byBand := map[string]*BandStats{}
	order := []string{}
	for _, rec := range recs {
		if rec.GroundTruthM <= 0 || rec.DistanceBand == "" {
			continue
		}
		st, ok := byBand[rec.DistanceBand]
		if !ok {
			st = &BandStats{Band: rec.DistanceBand}
			byBand[rec.DistanceBand] = st
			order = append(order, rec.DistanceBand)
		}
		st.Frames++
		if rec.PrimaryKind != depth.SourceNone && rec.PrimaryKind != "" {
			st.WithEstimate++
			absPct := abs(rec.PrimaryDepth-rec.GroundTruthM) / rec.GroundTruthM
			// Running mean keeps a single pass.
			st.MeanAbsPct += (absPct - st.MeanAbsPct) / float64(st.WithEstimate)
		}
	}

	out := make([]BandStats, 0, len(order))
	for _, name := range order {
		out = append(out, *byBand[name])
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
