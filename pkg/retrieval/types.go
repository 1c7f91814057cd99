package retrieval

import (
	"bytes"
	"math"

	"secondbrain-be/pkg/apperror"

	"github.com/google/uuid"
)

const (
	DefaultKConst   = 60
	DefaultPoolSize = 60
)

// RankedHit is one row of a single ranker's result list, best first.
// Score is whatever the store reported (lexical rank score or vector distance)
// and is informational only: fusion uses positions.
type RankedHit struct {
	SegmentID uuid.UUID
	Rank      int
	Score     float64
}

// FusedHit is a segment in the fused ordering. LexicalRank and VectorRank are
// the 1-based positions in each ranker's list, 0 when absent.
type FusedHit struct {
	SegmentID   uuid.UUID
	Score       float64
	LexicalRank int
	VectorRank  int
}

type FusionParams struct {
	WLexical float64
	WVector  float64
	// KConst is the RRF smoothing constant.
	KConst int
	// PoolSize bounds how deep each ranker is read.
	PoolSize int
}

func DefaultFusionParams() FusionParams {
	return FusionParams{
		WLexical: 0.5,
		WVector:  0.5,
		KConst:   DefaultKConst,
		PoolSize: DefaultPoolSize,
	}
}

// WithDefaults fills zero KConst/PoolSize with the defaults.
func (p FusionParams) WithDefaults() FusionParams {
	if p.KConst == 0 {
		p.KConst = DefaultKConst
	}
	if p.PoolSize == 0 {
		p.PoolSize = DefaultPoolSize
	}
	return p
}

func (p FusionParams) Validate() error {
	if err := ValidateWeight("w_lexical", p.WLexical); err != nil {
		return err
	}
	if err := ValidateWeight("w_vector", p.WVector); err != nil {
		return err
	}
	if p.KConst <= 0 {
		return apperror.Validation("k_const must be a positive integer, got %d", p.KConst)
	}
	if p.PoolSize <= 0 {
		return apperror.Validation("k must be a positive integer, got %d", p.PoolSize)
	}
	return nil
}

func ValidateWeight(name string, w float64) error {
	if math.IsNaN(w) || w < 0 || w > 1 {
		return apperror.Validation("%s must be within [0, 1], got %v", name, w)
	}
	return nil
}

func lessID(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}
