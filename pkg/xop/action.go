package xop

import (
	"strings"
)

// Action selects the pipeline the Handler runs
type Action int

const (
	// ActionUnspecified is the result of resolving an unknown action name
	ActionUnspecified Action = iota
	// ActionEdit1 removes the WS-Security UsernameToken from part 1 and
	// re-emits the multipart message
	ActionEdit1
	// ActionExtractSOAP exposes part 1 as text and part 2 as base64
	ActionExtractSOAP
	// ActionTransformToEmbedded inlines part 2 into the xop:Include of part 1
	ActionTransformToEmbedded
	// ActionGetBase64Str fetches the attachment from a document store
	ActionGetBase64Str
)

// DefaultAction is used when no action is configured
const DefaultAction = ActionEdit1

var actionNames = map[Action]string{
	ActionUnspecified:         "UNSPECIFIED",
	ActionEdit1:               "EDIT_1",
	ActionExtractSOAP:         "EXTRACT_SOAP",
	ActionTransformToEmbedded: "TRANSFORM_TO_EMBEDDED",
	ActionGetBase64Str:        "GET_BASE64STR",
}

var actionsByName = map[string]Action{
	"EDIT_1":                ActionEdit1,
	"EXTRACT_SOAP":          ActionExtractSOAP,
	"TRANSFORM_TO_EMBEDDED": ActionTransformToEmbedded,
	"GET_BASE64STR":         ActionGetBase64Str,
}

// ParseAction maps a name to an Action. Matching is case-insensitive and
// ignores surrounding whitespace; an empty name gives DefaultAction and an
// unknown name gives ActionUnspecified.
func ParseAction(name string) Action {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultAction
	}
	if a, ok := actionsByName[strings.ToUpper(name)]; ok {
		return a
	}
	return ActionUnspecified
}

// String returns the upper-case action name
func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return actionNames[ActionUnspecified]
}

// OutputName returns the lower-case name recorded in the action output
func (a Action) OutputName() string {
	return strings.ToLower(a.String())
}

// multipart reports whether the action reads the message as multipart
func (a Action) multipart() bool {
	switch a {
	case ActionEdit1, ActionExtractSOAP, ActionTransformToEmbedded:
		return true
	}
	return false
}

// RewritesContent reports whether a successful run replaces the message
// content
func (a Action) RewritesContent() bool {
	return a == ActionEdit1 || a == ActionTransformToEmbedded
}
