package session

import (
	"context"
	"strings"
)

// Action is something a keyboard accelerator triggers.
type Action string

const (
	ActionSave      Action = "save"
	ActionNew       Action = "new"
	ActionLayout    Action = "layout"
	ActionTemplates Action = "templates"
	ActionHelp      Action = "help"
)

// Shortcut is one row of the help table.
type Shortcut struct {
	Keys        string `json:"keys"`
	Description string `json:"description"`
	Action      Action `json:"action"`
}

var shortcuts = []Shortcut{
	{"Ctrl/Cmd+S", "Save diagram", ActionSave},
	{"Ctrl/Cmd+N", "Create new diagram", ActionNew},
	{"Ctrl/Cmd+L", "Cycle through layouts", ActionLayout},
	{"Ctrl/Cmd+T", "Open templates", ActionTemplates},
	{"F1", "Show help", ActionHelp},
}

var accelerators = map[string]Action{
	"ctrl+s": ActionSave,
	"ctrl+n": ActionNew,
	"ctrl+l": ActionLayout,
	"ctrl+t": ActionTemplates,
	"f1":     ActionHelp,
}

// Shortcuts lists the editor's keyboard accelerators.
func Shortcuts() []Shortcut {
	return append([]Shortcut(nil), shortcuts...)
}

// normalizeKey lowercases an accelerator, drops spaces and treats the
// command and meta keys as ctrl.
func normalizeKey(key string) string {
	key = strings.ToLower(strings.ReplaceAll(key, " ", ""))
	parts := strings.Split(key, "+")
	for i, p := range parts {
		switch p {
		case "cmd", "command", "meta", "control":
			parts[i] = "ctrl"
		}
	}
	return strings.Join(parts, "+")
}

// Lookup maps an accelerator such as "Cmd+S" to its action.
func Lookup(key string) (Action, bool) {
	a, ok := accelerators[normalizeKey(key)]
	return a, ok
}

// HandleKey runs the action bound to key. It reports false for keys with no
// binding. confirm is consulted only when a new diagram would discard
// unsaved changes.
func (s *Session) HandleKey(ctx context.Context, key string, confirm func() bool) (bool, error) {
	action, ok := Lookup(key)
	if !ok {
		return false, nil
	}
	return true, s.Do(ctx, action, confirm)
}

// Do runs action.
func (s *Session) Do(ctx context.Context, action Action, confirm func() bool) error {
	switch action {
	case ActionSave:
		return s.Save(ctx)
	case ActionNew:
		s.New(confirm)
	case ActionLayout:
		s.CycleLayout()
	case ActionTemplates:
		s.ToggleTemplates()
	case ActionHelp:
		s.ToggleHelp()
	}
	return nil
}
