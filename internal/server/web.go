package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"time"

	"github.com/prtally/prtally/internal/report"
	"github.com/prtally/prtally/pkg/track"
)

var reportTemplate = template.Must(template.New("report.html").Funcs(template.FuncMap{
	"hours": func(h float64) string { return fmt.Sprintf("%.2f", h) },
}).ParseFS(assetFS, "templates/report.html"))

// reportPage is the data handed to the HTML template. Rollup maps are
// materialized into sorted rows so the table order is stable.
type reportPage struct {
	Params        report.Params
	Report        *track.Report
	Developers    []developerRow
	Projects      []projectRow
	CacheHit      bool
	FetchDuration time.Duration
}

type developerRow struct {
	Name   string
	Rollup *track.DeveloperRollup
}

type projectRow struct {
	Key    string
	Rollup *track.ProjectRollup
}

func (s *Server) handleReportPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params, err := s.parseParams(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	start := time.Now()
	rep, hit, err := s.reporter.Report(ctx, params)
	if err != nil {
		s.writeFetchError(w, r, err)
		return
	}

	page := reportPage{
		Params:        params,
		Report:        rep,
		Developers:    developerRows(rep),
		Projects:      projectRows(rep),
		CacheHit:      hit,
		FetchDuration: time.Since(start).Round(time.Millisecond),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := reportTemplate.Execute(w, page); err != nil {
		s.logger.ErrorContext(ctx, "rendering report page", errorKey, err)
	}
}

func developerRows(rep *track.Report) []developerRow {
	rows := make([]developerRow, 0, len(rep.Developers))
	for name, rollup := range rep.Developers {
		rows = append(rows, developerRow{Name: name, Rollup: rollup})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows
}

func projectRows(rep *track.Report) []projectRow {
	rows := make([]projectRow, 0, len(rep.Projects))
	for key, rollup := range rep.Projects {
		rows = append(rows, projectRow{Key: key, Rollup: rollup})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}
