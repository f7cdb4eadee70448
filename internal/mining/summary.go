package mining

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Summarize renders a Markdown table of bug counts for every project found
// under the output directory.
func Summarize(layout Layout) (string, error) {
	entries, err := os.ReadDir(layout.OutputDir)
	if err != nil {
		return "", fmt.Errorf("failed to read output dir: %w", err)
	}

	counts := map[string]int{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		records, err := ReadBugRecords(layout.CSVPath(entry.Name()))
		if err != nil {
			// Directories without a finished active-bugs.csv are not results.
			continue
		}
		counts[entry.Name()] = len(records)
	}

	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("# Mining Summary\n\n")
	b.WriteString("| Project | Bugs |\n")
	b.WriteString("| --- | ---: |\n")
	total := 0
	for _, id := range ids {
		fmt.Fprintf(&b, "| [%s](%s/active-bugs.csv) | %d |\n", id, id, counts[id])
		total += counts[id]
	}
	fmt.Fprintf(&b, "| **Total** | %d |\n", total)
	return b.String(), nil
}

// WriteSummary writes the Markdown summary to path.
func WriteSummary(layout Layout, path string) error {
	summary, err := Summarize(layout)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(summary), 0o644); err != nil {
		return fmt.Errorf("failed to write summary %s: %w", path, err)
	}
	return nil
}
