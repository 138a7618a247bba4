package routing

import "testing"

func TestExplicitToolAlwaysWins(t *testing.T) {
	r := NewRules("general_chat", nil, nil, []string{"chat_tool"})
	got := r.Route("please refactor this function", "forced_tool")
	if len(got) != 1 || got[0] != "forced_tool" {
		t.Fatalf("expected explicit tool to win, got %v", got)
	}
}

func TestCodeEditingOnlyMessageRoutesToCodeEditingRuleFirst(t *testing.T) {
	r := NewRules("general_chat", []string{"code_tool_a", "code_tool_b"}, []string{"research_tool"}, []string{"chat_tool"})
	got := r.Route("can you refactor this function and fix the bug", "")
	if len(got) == 0 || got[0] != "code_tool_a" {
		t.Fatalf("expected code_editing rule list first, got %v", got)
	}
}

func TestUnmatchedMessageFallsBackToDefaultTool(t *testing.T) {
	r := NewRules("default_tool", nil, nil, nil)
	got := r.Route("good morning", "")
	if len(got) != 1 || got[0] != "default_tool" {
		t.Fatalf("expected default tool fallback, got %v", got)
	}
}

func TestClassifyPrefersCodeEditingOverResearch(t *testing.T) {
	r := NewRules("general_chat", nil, nil, nil)
	class := r.Classify("please explain how to fix this bug in the function")
	if class != ClassCodeEditing {
		t.Fatalf("expected code_editing, got %v", class)
	}
}
