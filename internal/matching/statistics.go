package matching

import "github.com/lodgetix/invoicing/internal/domain/entity"

// Confidence bucket labels used in reconciliation reports.
const (
	BucketHigh    = "90-100"
	BucketGood    = "70-89"
	BucketReview  = "50-69"
	BucketNoMatch = "0-49"
)

// Statistics aggregates a batch of match results by confidence bucket
// and by method. It is a pure reducer over already-computed results.
type Statistics struct {
	Total     int                        `json:"total"`
	Matched   int                        `json:"matched"`
	Unmatched int                        `json:"unmatched"`
	ByBucket  map[string]int             `json:"byBucket"`
	ByMethod  map[entity.MatchMethod]int `json:"byMethod"`
}

// Compute reduces match results into batch statistics.
func Compute(results []*entity.MatchResult) Statistics {
	stats := Statistics{
		ByBucket: map[string]int{
			BucketHigh:    0,
			BucketGood:    0,
			BucketReview:  0,
			BucketNoMatch: 0,
		},
		ByMethod: map[entity.MatchMethod]int{},
	}

	for _, r := range results {
		stats.Total++
		if r.Matched() {
			stats.Matched++
		} else {
			stats.Unmatched++
		}
		stats.ByBucket[bucketFor(r.Confidence)]++
		stats.ByMethod[r.Method]++
	}
	return stats
}

func bucketFor(confidence int) string {
	switch {
	case confidence >= 90:
		return BucketHigh
	case confidence >= 70:
		return BucketGood
	case confidence >= 50:
		return BucketReview
	default:
		return BucketNoMatch
	}
}
