package agent

import "strings"

// legacySourcesMarker delimits an inline source list some model outputs still
// append to the answer text. Structured provenance supersedes it; the block
// is parsed out so it never reaches the user verbatim.
const legacySourcesMarker = "--- SOURCES ---"

// splitLegacySources separates an inline source block from the answer text.
// It returns the answer without the block and the filenames listed in it.
func splitLegacySources(answer string) (string, []string) {
	idx := strings.Index(answer, legacySourcesMarker)
	if idx < 0 {
		return answer, nil
	}

	clean := strings.TrimRight(answer[:idx], " \t\n")
	var files []string
	for _, line := range strings.Split(answer[idx+len(legacySourcesMarker):], "\n") {
		line = strings.TrimSpace(line)
		name, ok := strings.CutPrefix(line, "•")
		if !ok {
			name, ok = strings.CutPrefix(line, "-")
		}
		if !ok {
			continue
		}
		if name = strings.TrimSpace(name); name != "" {
			files = append(files, name)
		}
	}
	return clean, files
}
