package guardrail

import (
	"regexp"
	"strconv"
)

// citationPattern matches markers like [Source 1]. Citation detection is a
// textual heuristic: a marker's presence says the model referenced a source,
// not that the claim it decorates is actually supported by it.
var citationPattern = regexp.MustCompile(`\[Source (\d+)\]`)

// CitationScan is the result of scanning a response for citation markers.
type CitationScan struct {
	// Markers is the total number of citation markers found, including
	// repeats and out-of-range indices.
	Markers int

	// Cited holds the distinct 1-based source indices that fall within the
	// valid range of retrieved sources.
	Cited map[int]bool
}

// ScanCitations extracts citation markers from a response. sourceCount bounds
// the valid index range [1, sourceCount].
func ScanCitations(response string, sourceCount int) CitationScan {
	scan := CitationScan{Cited: make(map[int]bool)}

	for _, match := range citationPattern.FindAllStringSubmatch(response, -1) {
		scan.Markers++
		idx, err := strconv.Atoi(match[1])
		if err != nil || idx < 1 || idx > sourceCount {
			continue
		}
		scan.Cited[idx] = true
	}

	return scan
}
