package dto

import "time"

type QueryStatResponse struct {
	Kind       string                 `json:"kind"`
	Query      string                 `json:"query"`
	Results    int                    `json:"results"`
	DurationMs float64                `json:"duration_ms"`
	Params     map[string]interface{} `json:"params,omitempty"`
	At         time.Time              `json:"at"`
}

type CoverageResponse struct {
	ByStatus map[string]int64 `json:"by_status"`
	Noise    int64            `json:"noise"`
	NotNoise int64            `json:"not_noise"`
}

type TableStatsResponse struct {
	Table     string `json:"table"`
	TotalSize string `json:"total_size"`
	Rows      int64  `json:"rows"`
}

type IndexUsageResponse struct {
	IndexName   string     `json:"index_name"`
	Scans       int64      `json:"scans"`
	Size        string     `json:"size"`
	LastAnalyze *time.Time `json:"last_analyze"`
	LastVacuum  *time.Time `json:"last_vacuum"`
}

type CacheStatsResponse struct {
	Entries    int     `json:"entries"`
	Capacity   int     `json:"capacity"`
	TTLSeconds float64 `json:"ttl_seconds"`
	Durable    bool    `json:"durable"`
}

type BackfillRequest struct {
	Limit     int `json:"limit" validate:"min=0"`
	BatchSize int `json:"batch_size" validate:"min=0,max=1000"`
}

type BackfillResponse struct {
	Batches   int `json:"batches"`
	Processed int `json:"processed"`
	Ready     int `json:"ready"`
	Failed    int `json:"failed"`
}

type RefreshIndicesResponse struct {
	Status   string           `json:"status"`
	Message  string           `json:"message"`
	Backfill BackfillResponse `json:"backfill"`
	Expired  int64            `json:"expired_cache_entries"`
}
