package pattern

import (
	"fmt"
	"regexp"
)

// Set is a compiled pattern set matched against outbound request lines.
// Patterns are tried in file order and the first match wins, so more
// specific patterns should come first.
//
// Set satisfies the engine's business-event matcher and is safe for
// concurrent use.
type Set struct {
	patterns []*compiledPattern
}

type compiledPattern struct {
	id     string
	action string
	regex  *regexp.Regexp
}

// NewSet compiles all regular expressions in pf.
func NewSet(pf *File) (*Set, error) {
	if pf == nil {
		return nil, fmt.Errorf("pattern file is nil")
	}

	patterns := make([]*compiledPattern, 0, len(pf.Patterns))
	for i, p := range pf.Patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, &PatternError{
				Index:   i,
				ID:      p.ID,
				Field:   "regex",
				Message: fmt.Sprintf("invalid regular expression: %v", err),
				Cause:   err,
			}
		}
		patterns = append(patterns, &compiledPattern{
			id:     p.ID,
			action: p.Action,
			regex:  re,
		})
	}
	return &Set{patterns: patterns}, nil
}

// NewSetFromFile loads a pattern file and compiles it in one step.
func NewSetFromFile(path string) (*Set, error) {
	pf, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewSet(pf)
}

// Match tries each pattern against line in definition order. On the first
// match it returns the pattern's action name plus a detail map of the
// regex's named capture groups; ok is false when nothing matched.
func (s *Set) Match(line string) (action string, detail map[string]string, ok bool) {
	for _, cp := range s.patterns {
		matches := cp.regex.FindStringSubmatch(line)
		if matches == nil {
			continue
		}

		// SubexpNames keeps a 1:1 correspondence with the matches slice,
		// which handles mixed named and unnamed groups correctly.
		names := cp.regex.SubexpNames()
		for i := 1; i < len(names); i++ {
			if names[i] == "" || i >= len(matches) {
				continue
			}
			if detail == nil {
				detail = make(map[string]string)
			}
			detail[names[i]] = matches[i]
		}
		return cp.action, detail, true
	}
	return "", nil, false
}

// Len returns the number of compiled patterns.
func (s *Set) Len() int {
	return len(s.patterns)
}
