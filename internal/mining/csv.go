package mining

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/clintrovert/bugminer/pkg/types"
)

var csvHeader = []string{
	"bug_id", "issue_id", "issue_url",
	"revision_buggy", "revision_fixed",
	"report_path", "patch_path",
}

// WriteBugRecords writes active-bugs.csv. The header is always present, so an
// empty mining result is distinguishable from a missing one.
func WriteBugRecords(path string, records []types.BugRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			strconv.Itoa(r.BugID), r.IssueID, r.IssueURL,
			r.BuggySHA, r.FixedSHA,
			r.ReportPath, r.PatchPath,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write bug %d: %w", r.BugID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}

// ReadBugRecords reads a file written by WriteBugRecords.
func ReadBugRecords(path string) ([]types.BugRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s has no header row", path)
	}

	var records []types.BugRecord
	for i, row := range rows[1:] {
		if len(row) != len(csvHeader) {
			return nil, fmt.Errorf("%s row %d has %d columns, expected %d", path, i+2, len(row), len(csvHeader))
		}
		bugID, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("%s row %d has invalid bug id %q: %w", path, i+2, row[0], err)
		}
		records = append(records, types.BugRecord{
			BugID:      bugID,
			IssueID:    row[1],
			IssueURL:   row[2],
			BuggySHA:   row[3],
			FixedSHA:   row[4],
			ReportPath: row[5],
			PatchPath:  row[6],
		})
	}
	return records, nil
}
