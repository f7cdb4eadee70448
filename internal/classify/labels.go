// Package classify assigns a category label to each normalized bug report,
// either by asking a chat model directly or by nearest-neighbor search over
// label description embeddings.
package classify

import "strings"

// LabelDef pairs a category label with the one-line description used as the
// embedding exemplar for that category.
type LabelDef struct {
	Name        string
	Description string
}

const (
	// LabelOther is the catch-all for bugs that fit no specific category.
	LabelOther = "Other"
	// LabelUnclassified marks bugs the classifier could not process at all,
	// e.g. after an API failure. It is never a model verdict.
	LabelUnclassified = "Unclassified"
)

// Labels is the fixed taxonomy. Order is stable so prompts and cache files
// stay deterministic across runs.
var Labels = []LabelDef{
	{"Crash/UnhandledException", "The application crashed due to an unhandled exception or error."},
	{"Crash/NullPointer", "The application crashed specifically due to a null pointer or nil reference."},
	{"Crash/Memory", "The application crashed due to out of memory or memory leaks."},
	{"Stability/Freeze", "The application becomes unresponsive, freezes, or hangs indefinitely."},

	{"UI/Layout", "Elements are misaligned, overlapping, or have incorrect spacing/margin."},
	{"UI/Visual", "Visual glitches, wrong colors, blurry images, or broken icons."},
	{"UI/Responsive", "The interface breaks or looks bad on different screen sizes or mobile devices."},
	{"UX/Navigation", "User flow is confusing, navigation links are broken, or buttons are hard to find."},
	{"Accessibility", "Issues with screen readers, keyboard navigation, or color contrast compliance."},

	{"Logic/Calculation", "Mathematical errors, incorrect totals, or wrong data processing logic."},
	{"Logic/Workflow", "The business process flow is stuck or transitions to an incorrect state."},
	{"Data/Corruption", "Data is saved incorrectly, missing, or corrupted in the database."},
	{"Data/Format", "Dates, numbers, or currencies are displayed in the wrong format."},

	{"Network/Timeout", "The request timed out or the connection was refused."},
	{"Network/APIError", "The API returned a 500 error, 404 not found, or invalid JSON response."},
	{"Connectivity", "Issues related to internet connection, offline mode, or socket disconnections."},

	{"Build/Dependency", "Errors related to missing libraries, gems, npm packages, or version conflicts."},
	{"Env/Compatibility", "The issue only occurs on a specific OS (Windows/Linux) or Browser (IE/Firefox)."},
	{"Dev/Test", "Issues related to failing unit tests, CI pipelines, or test configuration."},

	{"Text/Typo", "Spelling mistakes, grammatical errors, or wrong labels in the UI."},
	{"Docs/Missing", "Documentation is outdated, missing, or misleading."},

	{"Security/Auth", "Issues with login, logout, password reset, or permissions."},
	{"Security/Vulnerability", "Potential security risks like XSS, SQL Injection, or sensitive data exposure."},

	{LabelOther, "A generic bug that does not fit into any other specific category."},
}

// LabelNames returns the taxonomy names in definition order.
func LabelNames() []string {
	names := make([]string, len(Labels))
	for i, l := range Labels {
		names[i] = l.Name
	}
	return names
}

// NormalizeLabel maps a raw model answer onto the taxonomy: exact match first,
// then a substring salvage for answers like `The label is "UI/Layout".`, and
// LabelUnclassified when nothing matches. A bug that genuinely fits nowhere is
// the model answering LabelOther; an answer outside the taxonomy is noise, not
// a verdict.
func NormalizeLabel(raw string) string {
	for _, l := range Labels {
		if raw == l.Name {
			return l.Name
		}
	}
	for _, l := range Labels {
		if strings.Contains(raw, l.Name) {
			return l.Name
		}
	}
	return LabelUnclassified
}
