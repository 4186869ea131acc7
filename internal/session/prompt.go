package session

import (
	"fmt"
	"strings"
)

// PromptBuilder assembles the text that gets tokenized.
type PromptBuilder interface {
	Build(system, user string) string
}

// RawPrompt passes the user prompt through untouched. The system prompt is
// accepted and dropped.
type RawPrompt struct{}

func (RawPrompt) Build(_, user string) string { return user }

// ChatMLPrompt wraps system and user turns in ChatML markers and opens the
// assistant turn.
type ChatMLPrompt struct{}

func (ChatMLPrompt) Build(system, user string) string {
	var b strings.Builder
	if strings.TrimSpace(system) != "" {
		b.WriteString("<|im_start|>system\n")
		b.WriteString(system)
		b.WriteString("<|im_end|>\n")
	}
	b.WriteString("<|im_start|>user\n")
	b.WriteString(user)
	b.WriteString("<|im_end|>\n<|im_start|>assistant\n")
	return b.String()
}

// PromptBuilderFor maps a config name to a builder. "" means raw.
func PromptBuilderFor(name string) (PromptBuilder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "raw":
		return RawPrompt{}, nil
	case "chatml":
		return ChatMLPrompt{}, nil
	default:
		return nil, fmt.Errorf("unknown prompt format %q (want raw or chatml)", name)
	}
}
