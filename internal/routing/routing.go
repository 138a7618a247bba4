// Package routing implements the gateway's keyword-based request
// router (spec.md §4.F): an explicit tool always wins; otherwise the
// lowercased message is matched against ordered keyword buckets, and
// the resulting class looks up an ordered tool list, falling back to a
// configured default tool.
package routing

import "strings"

// Class is one of the router's message classes.
type Class string

const (
	ClassCodeEditing        Class = "code_editing"
	ClassResearch           Class = "research"
	ClassTerminalAutomation Class = "terminal_automation"
	ClassGeneralChat        Class = "general_chat"
)

// classKeywords gives the default keyword bucket for each class, tested
// in this exact order: code_editing, then research, then
// terminal_automation, then general_chat as the catch-all.
var classOrder = []Class{ClassCodeEditing, ClassResearch, ClassTerminalAutomation}

var defaultKeywords = map[Class][]string{
	ClassCodeEditing: {
		"refactor", "edit", "fix", "bug", "function", "class", "import", "code", "file",
		"module", "package", "syntax", "error", "compile", "test", "debug", "implement",
		"rewrite", "optimize", "generate", "create", "write", "make", "build", "new",
		"scaffold", "boilerplate", "template",
	},
	ClassResearch: {
		"research", "find", "search", "what is", "explain", "how does", "information",
		"article", "paper", "source", "citation", "reference", "learn about", "tell me about",
		"investigate",
	},
	ClassTerminalAutomation: {
		"run", "execute", "command", "terminal", "shell", "script", "automate", "workflow",
		"cli", "bash", "zsh",
	},
}

// Rules maps a Class to the ordered list of tools to try, and names the
// fallback tool for unmatched messages (spec.md §6 [routing]).
type Rules struct {
	DefaultTool string
	ByClass     map[Class][]string
	Keywords    map[Class][]string // overrides defaultKeywords when non-nil
}

// NewRules builds a Rules table from the §6 [routing] config section,
// falling back to the built-in keyword lists for any class the config
// leaves unset.
func NewRules(defaultTool string, codeEditing, research, generalChat []string) *Rules {
	byClass := map[Class][]string{
		ClassGeneralChat: generalChat,
	}
	if len(codeEditing) > 0 {
		byClass[ClassCodeEditing] = codeEditing
	}
	if len(research) > 0 {
		byClass[ClassResearch] = research
	}
	return &Rules{DefaultTool: defaultTool, ByClass: byClass}
}

// Classify returns the Class a message falls into, scanning
// classOrder in order and returning the first keyword bucket that
// matches a substring of the lowercased message. Falls through to
// general_chat.
func (r *Rules) Classify(message string) Class {
	lower := strings.ToLower(message)
	keywords := r.Keywords
	if keywords == nil {
		keywords = defaultKeywords
	}
	for _, class := range classOrder {
		for _, kw := range keywords[class] {
			if strings.Contains(lower, kw) {
				return class
			}
		}
	}
	return ClassGeneralChat
}

// Route returns the ordered candidate tool list for a request. An
// explicit tool always short-circuits classification and wins outright.
func (r *Rules) Route(message, explicitTool string) []string {
	if explicitTool != "" {
		return []string{explicitTool}
	}
	class := r.Classify(message)
	if tools, ok := r.ByClass[class]; ok && len(tools) > 0 {
		return tools
	}
	return []string{r.DefaultTool}
}
