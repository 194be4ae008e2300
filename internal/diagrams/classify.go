package diagrams

import (
	"fmt"
	"strings"
)

// Kind is the diagram type declared by the first keyword of the source.
type Kind string

const (
	KindFlowchart Kind = "flowchart"
	KindSequence  Kind = "sequence"
	KindClass     Kind = "class"
	KindEntity    Kind = "entity"
	KindState     Kind = "state"
	KindGantt     Kind = "gantt"
	KindPie       Kind = "pie"
	KindGit       Kind = "git"
	KindJourney   Kind = "journey"
	// KindOther covers every source whose keyword is not recognised,
	// including empty sources.
	KindOther Kind = "other"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{
	KindFlowchart, KindSequence, KindClass, KindEntity, KindState,
	KindGantt, KindPie, KindGit, KindJourney, KindOther,
}

var kindLabels = map[Kind]string{
	KindFlowchart: "Flowchart",
	KindSequence:  "Sequence",
	KindClass:     "Class",
	KindEntity:    "Entity Relationship",
	KindState:     "State",
	KindGantt:     "Gantt",
	KindPie:       "Pie",
	KindGit:       "Git Graph",
	KindJourney:   "User Journey",
	KindOther:     "Other",
}

// keywords maps lowercased declaration keywords to kinds.
var keywords = map[string]Kind{
	"graph":           KindFlowchart,
	"flowchart":       KindFlowchart,
	"flowchart-elk":   KindFlowchart,
	"sequencediagram": KindSequence,
	"classdiagram":    KindClass,
	"classdiagram-v2": KindClass,
	"erdiagram":       KindEntity,
	"statediagram":    KindState,
	"statediagram-v2": KindState,
	"gantt":           KindGantt,
	"pie":             KindPie,
	"gitgraph":        KindGit,
	"journey":         KindJourney,
}

// Label is the human-readable name of the kind.
func (k Kind) Label() string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return kindLabels[KindOther]
}

// Classify returns the kind declared by source. Leading blank lines, %%
// comments and directives, and a --- front matter block are skipped before
// the keyword is read.
func Classify(source string) Kind {
	lines := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")
	inFrontMatter := false
	seenContent := false

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if line == "---" && (!seenContent || inFrontMatter) {
			inFrontMatter = !inFrontMatter
			seenContent = true
			continue
		}
		if inFrontMatter || strings.HasPrefix(line, "%%") {
			continue
		}

		word := line
		if i := strings.IndexAny(word, " \t"); i >= 0 {
			word = word[:i]
		}
		word = strings.ToLower(strings.TrimSuffix(word, ":"))
		if k, ok := keywords[word]; ok {
			return k
		}
		return KindOther
	}
	return KindOther
}

// ParseKind parses a filter value. "all" and the empty string mean no filter
// and return ("", nil).
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all" {
		return "", nil
	}
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown diagram type %q", s)
}
