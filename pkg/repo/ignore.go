package repo

import (
	"bufio"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

// IgnoreFile is the name of the per-repository ignore file at the root.
const IgnoreFile = ".rewindignore"

// IgnoreChecker determines if a path should be ignored.
type IgnoreChecker struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	pattern  string
	negated  bool
	dirOnly  bool
	hasSlash bool // pattern contains a slash, so match against full path
	regex    *regexp.Regexp
}

// NewIgnoreChecker creates an IgnoreChecker for the given repository root.
// It always ignores .rewind/ and .git/. If a .rewindignore file exists in
// repoRoot, its patterns are parsed and applied.
func NewIgnoreChecker(fsys afero.Fs, repoRoot string) *IgnoreChecker {
	ic := &IgnoreChecker{}
	ic.patterns = append(ic.patterns,
		ignorePattern{pattern: DirName, dirOnly: true},
		ignorePattern{pattern: ".git", dirOnly: true},
	)

	f, err := fsys.Open(filepath.Join(repoRoot, IgnoreFile))
	if err == nil {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if p := parseIgnoreLine(scanner.Text()); p != nil {
				ic.patterns = append(ic.patterns, *p)
			}
		}
	}
	return ic
}

// parseIgnoreLine parses a single line from an ignore file. Returns nil if
// the line is empty or a comment.
func parseIgnoreLine(line string) *ignorePattern {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	p := &ignorePattern{}
	if strings.HasPrefix(line, "!") {
		p.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	// A leading slash anchors the pattern at the root.
	if strings.HasPrefix(line, "/") {
		line = strings.TrimLeft(line, "/")
		p.hasSlash = true
	}
	if strings.Contains(line, "/") {
		p.hasSlash = true
	}
	if line == "" {
		return nil
	}

	p.pattern = line
	if strings.Contains(line, "**") {
		if re, err := regexp.Compile(globToRegex(line)); err == nil {
			p.regex = re
		}
	}
	return p
}

// IsIgnored checks whether a relative path should be ignored. The path should
// use forward slashes and be relative to the repository root. A path inside
// an ignored directory is ignored. Within one path, the last matching
// pattern wins, which lets "!" re-include files.
func (ic *IgnoreChecker) IsIgnored(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	parts := strings.Split(relPath, "/")
	for i := 1; i <= len(parts); i++ {
		prefix := strings.Join(parts[:i], "/")
		isAncestor := i < len(parts)
		if ic.matchLast(prefix, isAncestor) {
			return true
		}
	}
	return false
}

// matchLast evaluates every pattern against p. Dir-only patterns apply to
// ancestors and to the path itself, since callers may not know whether a
// path is a directory.
func (ic *IgnoreChecker) matchLast(p string, isAncestor bool) bool {
	ignored := false
	for i := range ic.patterns {
		pat := &ic.patterns[i]
		if pat.negated && isAncestor {
			continue
		}
		if pat.matches(p) {
			ignored = !pat.negated
		}
	}
	return ignored
}

func (p *ignorePattern) matches(target string) bool {
	if p.hasSlash {
		return p.match(target)
	}
	return p.match(path.Base(target))
}

func (p *ignorePattern) match(target string) bool {
	if p.regex != nil {
		return p.regex.MatchString(target)
	}
	matched, _ := path.Match(p.pattern, target)
	return matched
}

func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		if ch == '*' {
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					// Globstar directory segment: match zero or more path segments.
					b.WriteString("(?:.*/)?")
					i += 2
				} else {
					b.WriteString(".*")
					i++
				}
				continue
			}
			b.WriteString("[^/]*")
			continue
		}
		if ch == '?' {
			b.WriteString("[^/]")
			continue
		}
		if strings.ContainsRune(`.+()|[]{}^$\\`, rune(ch)) {
			b.WriteByte('\\')
		}
		b.WriteByte(ch)
	}
	b.WriteString("$")
	return b.String()
}
