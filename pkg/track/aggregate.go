package track

import (
	"math"
	"sort"
	"time"
)

// DeveloperRollup accumulates totals for a single author. Values only
// ever grow; a rollup is never decremented.
type DeveloperRollup struct {
	TotalPRs      int     `json:"total_prs"`
	TotalEstimate float64 `json:"total_estimate"`
	TotalActual   float64 `json:"total_actual"`
}

// ProjectRollup accumulates totals for a single project key.
// Developers holds every author who contributed at least one record to
// the project, sorted lexicographically once the fold completes.
type ProjectRollup struct {
	TotalPRs      int      `json:"total_prs"`
	TotalEstimate float64  `json:"total_estimate"`
	TotalActual   float64  `json:"total_actual"`
	Developers    []string `json:"developers"`

	developerSet map[string]struct{}
}

// Report is the cacheable aggregation result for one query. Records
// preserves upstream result order. TotalFound is the upstream match
// count before truncation; TotalProcessed is the count actually parsed.
type Report struct {
	Records        []EffortRecord              `json:"records"`
	Developers     map[string]*DeveloperRollup `json:"developers"`
	Projects       map[string]*ProjectRollup   `json:"projects"`
	TotalEstimate  float64                     `json:"total_estimate"`
	TotalActual    float64                     `json:"total_actual"`
	TotalFound     int                         `json:"total_found"`
	TotalProcessed int                         `json:"total_processed"`
	FetchedAt      time.Time                   `json:"fetched_at"`
}

// Aggregate folds records in input order into developer and project
// rollups plus global totals. TotalFound, TotalProcessed and FetchedAt
// are left for the caller to set. Accumulation runs at full precision;
// only the global totals are rounded, once, at the end. The fold is a
// pure function of its input: the same sequence always produces the
// same result.
func Aggregate(records []EffortRecord) *Report {
	rep := &Report{
		Records:    records,
		Developers: make(map[string]*DeveloperRollup),
		Projects:   make(map[string]*ProjectRollup),
	}

	for i := range records {
		rec := &records[i]

		dev := rep.Developers[rec.Author]
		if dev == nil {
			dev = &DeveloperRollup{}
			rep.Developers[rec.Author] = dev
		}
		dev.TotalPRs++
		dev.TotalEstimate += rec.EstimateHours
		dev.TotalActual += rec.ActualHours

		proj := rep.Projects[rec.ProjectKey]
		if proj == nil {
			proj = &ProjectRollup{developerSet: make(map[string]struct{})}
			rep.Projects[rec.ProjectKey] = proj
		}
		proj.TotalPRs++
		proj.TotalEstimate += rec.EstimateHours
		proj.TotalActual += rec.ActualHours
		proj.developerSet[rec.Author] = struct{}{}

		rep.TotalEstimate += rec.EstimateHours
		rep.TotalActual += rec.ActualHours
	}

	for _, proj := range rep.Projects {
		proj.Developers = make([]string, 0, len(proj.developerSet))
		for dev := range proj.developerSet {
			proj.Developers = append(proj.Developers, dev)
		}
		sort.Strings(proj.Developers)
	}

	rep.TotalEstimate = round2(rep.TotalEstimate)
	rep.TotalActual = round2(rep.TotalActual)
	return rep
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
