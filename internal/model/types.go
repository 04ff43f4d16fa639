package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type PayoffMatrix struct {
	ExploitComply  float64 `json:"exploit_comply"`
	ComplyExploit  float64 `json:"comply_exploit"`
	ComplyComply   float64 `json:"comply_comply"`
	ExploitExploit float64 `json:"exploit_exploit"`
}

type RunRecord struct {
	VersionedRecord
	ID                   string         `json:"id"`
	CreatedAt            time.Time      `json:"created_at"`
	Seed                 int64          `json:"seed"`
	MinRounds            int            `json:"min_rounds"`
	MaxRounds            int            `json:"max_rounds"`
	Weight               float64        `json:"weight"`
	RandomWeight         bool           `json:"random_weight"`
	Payoffs              PayoffMatrix   `json:"payoffs"`
	InitialPopulation    map[string]int `json:"initial_population"`
	GenerationsCompleted int            `json:"generations_completed"`
	// StopReason is empty while the run is in progress.
	StopReason string `json:"stop_reason,omitempty"`
}

type MemberRecord struct {
	ID              string  `json:"id"`
	Kind            string  `json:"kind"`
	CumulativeScore float64 `json:"cumulative_score"`
	Summary         string  `json:"summary,omitempty"`
}

// PopulationSnapshot is the read-accessor view of an engine after a given
// generation. Generation 0 is the initial population.
type PopulationSnapshot struct {
	VersionedRecord
	RunID      string         `json:"run_id"`
	Generation int            `json:"generation"`
	Counts     map[string]int `json:"counts"`
	Members    []MemberRecord `json:"members"`
}

type GenerationReport struct {
	VersionedRecord
	Generation   int            `json:"generation"`
	Games        int            `json:"games"`
	Rounds       int            `json:"rounds"`
	BestScore    float64        `json:"best_score"`
	MeanScore    float64        `json:"mean_score"`
	MinScore     float64        `json:"min_score"`
	BestKind     string         `json:"best_kind,omitempty"`
	Culled       int            `json:"culled"`
	Born         int            `json:"born"`
	CountsBefore map[string]int `json:"counts_before"`
	CountsAfter  map[string]int `json:"counts_after"`
}
