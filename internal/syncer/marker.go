package syncer

import "regexp"

var markerPattern = regexp.MustCompile(`#(\d+)`)

// ExtractAssignmentID pulls the assignment id out of a task description's
// trailing "#<id>" marker. When several markers are present the last one is
// authoritative. Returns "" when no marker exists.
func ExtractAssignmentID(description string) string {
	matches := markerPattern.FindAllStringSubmatch(description, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1][1]
}
