// internal/orchestrator/files.go
package orchestrator

import (
	"context"
	"strings"

	"codesentry/internal/model"
)

const statusRemoved = "removed"

// FilterFiles keeps files with a matching extension that were not removed and
// do not match any skip pattern. Matching is case-insensitive.
func FilterFiles(files []model.ChangedFile, extensions, skipPatterns []string) []model.ChangedFile {
	var kept []model.ChangedFile
	for _, f := range files {
		if f.Status == statusRemoved {
			continue
		}
		name := strings.ToLower(f.Filename)
		if !hasAnySuffix(name, extensions) || containsAny(name, skipPatterns) {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

func hasAnySuffix(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(name, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

func containsAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(name, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// ContentFromPatch rebuilds the new side of a unified diff: added and context
// lines are kept, headers and deletions dropped.
func ContentFromPatch(patch string) string {
	var lines []string
	for _, line := range strings.Split(patch, "\n") {
		switch {
		case strings.HasPrefix(line, "@@"), strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			continue
		case strings.HasPrefix(line, "+"), strings.HasPrefix(line, " "):
			lines = append(lines, line[1:])
		}
	}
	return strings.Join(lines, "\n")
}

// fetchContent returns the file source. Added files come from the patch since
// their raw URL may not resolve yet; other files fall back to the patch.
func (o *Orchestrator) fetchContent(ctx context.Context, client GitHubClient, f model.ChangedFile) (string, error) {
	if f.Status == "added" && f.Patch != "" {
		return ContentFromPatch(f.Patch), nil
	}

	content, err := client.GetRawContent(ctx, f.RawURL)
	if err != nil {
		if f.Patch != "" {
			o.logger.Warn("Raw content fetch failed, using patch", "file", f.Filename, "error", err)
			return ContentFromPatch(f.Patch), nil
		}
		return "", err
	}
	return content, nil
}
