package entity

import "time"

// QueryStat is one logged search, kept in a bounded newest-first ring.
type QueryStat struct {
	Kind       string
	Query      string
	Results    int
	DurationMs float64
	Params     map[string]interface{}
	At         time.Time
}

type Coverage struct {
	ByStatus map[string]int64
	ByNoise  map[bool]int64
}

type TableStats struct {
	Table     string
	TotalSize string
	Rows      int64
}

type IndexUsage struct {
	IndexName   string
	Scans       int64
	Size        string
	LastAnalyze *time.Time
	LastVacuum  *time.Time
}
