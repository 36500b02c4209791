package service

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/target/mmk-bol-sync/internal/domain/model"
)

// DefaultMinFillRate is the share of records a column must be filled in
// before it stops being reported.
const DefaultMinFillRate = 0.8

// ContentQualityAnalyzer scores a dataset by how completely its fields are
// filled. The score is the percentage of non-empty cells across all columns.
type ContentQualityAnalyzer struct {
	// MinFillRate overrides DefaultMinFillRate when in (0, 1].
	MinFillRate float64
}

// NewContentQualityAnalyzer returns an analyzer with the default threshold.
func NewContentQualityAnalyzer() *ContentQualityAnalyzer {
	return &ContentQualityAnalyzer{MinFillRate: DefaultMinFillRate}
}

// Analyze implements core.Analyzer.
func (a *ContentQualityAnalyzer) Analyze(dataType string, records []map[string]any) model.AnalysisResult {
	if len(records) == 0 {
		return model.AnalysisResult{
			Score:           0,
			Findings:        []string{fmt.Sprintf("no %s records returned", dataType)},
			Recommendations: []string{},
		}
	}

	filled := make(map[string]int)
	for _, rec := range records {
		for key, v := range rec {
			if _, seen := filled[key]; !seen {
				filled[key] = 0
			}
			if !isEmptyValue(v) {
				filled[key]++
			}
		}
	}

	columns := make([]string, 0, len(filled))
	for key := range filled {
		columns = append(columns, key)
	}
	slices.Sort(columns)

	threshold := a.threshold()
	total := float64(len(records))
	var cells, nonEmpty int
	findings := []string{}
	recommendations := []string{}
	for _, col := range columns {
		cells += len(records)
		nonEmpty += filled[col]
		rate := float64(filled[col]) / total
		if rate < threshold {
			findings = append(findings, fmt.Sprintf("%s is filled in %.0f%% of %s records", col, rate*100, dataType))
			recommendations = append(recommendations, fmt.Sprintf("Fill in %s for the remaining %d records", col, len(records)-filled[col]))
		}
	}

	score := 0.0
	if cells > 0 {
		score = math.Round(float64(nonEmpty)/float64(cells)*10000) / 100
	}
	return model.AnalysisResult{Score: score, Findings: findings, Recommendations: recommendations}
}

func (a *ContentQualityAnalyzer) threshold() float64 {
	if a == nil || a.MinFillRate <= 0 || a.MinFillRate > 1 {
		return DefaultMinFillRate
	}
	return a.MinFillRate
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
