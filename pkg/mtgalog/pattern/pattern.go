// Package pattern provides user-configurable matching for Arena client
// business events. Outbound log frames are one-line JSON requests whose
// shape changes between client versions; pattern files let users classify
// the requests they care about via YAML-defined regular expressions
// without code changes.
package pattern

// File represents the structure of a YAML pattern file.
//
// Example:
//
//	version: 1
//	patterns:
//	  - id: deck_submit
//	    action: deck_submit
//	    regex: 'EventSetDeckV2.*"DeckId":\s*"(?P<deck_id>[0-9a-f-]+)"'
//	  - id: rank_update
//	    action: rank_update
//	    regex: 'RankGetCombinedRankInfo'
type File struct {
	// Version is the pattern file format version. Currently only
	// version 1 is supported.
	Version int `yaml:"version"`

	// Patterns is the list of pattern definitions, checked in order.
	Patterns []Pattern `yaml:"patterns"`
}

// Pattern is a single business-event pattern definition. The regex may
// contain named capture groups (?P<name>...) which are extracted into the
// resulting annotation's detail map.
type Pattern struct {
	// ID is a unique identifier for this pattern within the file.
	ID string `yaml:"id"`

	// Action is the action name reported when this pattern matches.
	Action string `yaml:"action"`

	// Regex is the regular expression matched against the frame's
	// request line.
	Regex string `yaml:"regex"`
}
