package querycounter

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// ReportEntry is one statement group that exceeded the alert threshold.
type ReportEntry struct {
	Key        NormalizedKey `json:"key"`
	KeyHash    string        `json:"key_hash"`
	Count      int           `json:"count"`
	SampleText string        `json:"sample_text"`
	Stacks     []Stack       `json:"stacks,omitempty"`
}

// Report is the ranked result of an analysis: all groups with a count above the threshold,
// ordered by descending count and then by key.
type Report struct {
	IntervalID         string        `json:"interval_id,omitempty"`
	Threshold          int           `json:"threshold"`
	TotalStatements    int           `json:"total_statements"`
	DistinctStatements int           `json:"distinct_statements"`
	Entries            []ReportEntry `json:"entries"`
}

// BuildReport reduces ledger records into a Report; it never modifies the records.
func BuildReport(records []LedgerRecord, threshold int) Report {
	report := Report{
		Threshold:          threshold,
		DistinctStatements: len(records),
		Entries:            make([]ReportEntry, 0),
	}

	for _, record := range records {
		report.TotalStatements += record.Count

		if record.Count <= threshold {
			continue
		}

		report.Entries = append(report.Entries, ReportEntry{
			Key:        record.Key,
			KeyHash:    record.Key.Hash(),
			Count:      record.Count,
			SampleText: record.SampleText,
			Stacks:     record.Stacks,
		})
	}

	slices.SortStableFunc(report.Entries, func(a, b ReportEntry) int {
		if byCount := cmp.Compare(b.Count, a.Count); byCount != 0 {
			return byCount
		}

		return cmp.Compare(a.Key, b.Key)
	})

	return report
}

// Empty tells if no statement group exceeded the threshold.
func (r Report) Empty() bool {
	return len(r.Entries) == 0
}

// Format renders the Report for humans: one "Count: N Query: ..." line per entry,
// followed by at most maxFrames frames of the entry's first captured stack.
func (r Report) Format(maxFrames int) string {
	lines := make([]string, 0, len(r.Entries))

	for _, entry := range r.Entries {
		lines = append(lines, fmt.Sprintf("Count: %d Query: %s", entry.Count, entry.SampleText))
		lines = append(lines, entry.stackPreview(maxFrames)...)
	}

	return strings.Join(lines, "\n")
}

// JSON renders the Report as JSON.
func (r Report) JSON() ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(r)
}

func (e ReportEntry) stackPreview(maxFrames int) []string {
	if len(e.Stacks) == 0 || maxFrames == 0 {
		return nil
	}

	frames := e.Stacks[0]
	if len(frames) > maxFrames {
		frames = frames[:maxFrames]
	}

	preview := make([]string, 0, len(frames))
	for _, frame := range frames {
		preview = append(preview, "    at "+frame.String())
	}

	return preview
}
