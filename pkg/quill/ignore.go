package quill

import "strings"

// ignoreList is a minimal gitignore-style matcher for .quillignore: blank
// lines and # comments are skipped; a trailing slash matches a directory
// and everything under it; a single * wildcard splits a pattern into
// prefix and suffix; bare names also match by basename.
type ignoreList struct {
	patterns []string
}

func defaultIgnore() *ignoreList {
	return &ignoreList{patterns: []string{
		".git/",
		".gitignore",
		IgnoreName,
		".DS_Store",
		"node_modules/",
	}}
}

func parseIgnore(content string) *ignoreList {
	var patterns []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return &ignoreList{patterns: patterns}
}

// Match reports whether the slash-separated relative path is ignored.
func (ig *ignoreList) Match(path string) bool {
	for _, p := range ig.patterns {
		if matchPattern(p, path) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, path string) bool {
	if dir, ok := strings.CutSuffix(pattern, "/"); ok {
		return path == dir || strings.HasPrefix(path, dir+"/")
	}
	if !strings.Contains(pattern, "*") {
		return path == pattern || strings.HasSuffix(path, "/"+pattern)
	}
	if pattern == "*" {
		return true
	}
	parts := strings.SplitN(pattern, "*", 2)
	if strings.Contains(parts[1], "*") {
		return false
	}
	switch {
	case parts[0] == "":
		return strings.HasSuffix(path, parts[1])
	case parts[1] == "":
		return strings.HasPrefix(path, parts[0])
	default:
		return strings.HasPrefix(path, parts[0]) && strings.HasSuffix(path, parts[1])
	}
}
