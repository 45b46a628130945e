// Package cliexec runs locally installed AI CLIs (claude, codex, gemini) as
// a backend transport. The tools carry their own subscription auth, so they
// sit ahead of API keys in the fallback chain.
package cliexec

// Tool describes how to invoke one CLI.
type Tool struct {
	ID      string
	Name    string
	Command string

	// PromptFlag precedes the prompt; empty means the prompt is positional.
	PromptFlag string
	ModelFlag  string

	// Providers lists the API provider ids this tool substitutes for.
	Providers []string
}

var tools = []Tool{
	{
		ID:         "claude-code",
		Name:       "Claude Code",
		Command:    "claude",
		PromptFlag: "-p",
		ModelFlag:  "--model",
		Providers:  []string{"anthropic"},
	},
	{
		ID:        "codex-cli",
		Name:      "Codex CLI",
		Command:   "codex",
		ModelFlag: "--model",
		Providers: []string{"openai"},
	},
	{
		ID:         "gemini-cli",
		Name:       "Gemini CLI",
		Command:    "gemini",
		PromptFlag: "-p",
		ModelFlag:  "-m",
		Providers:  []string{"google", "gemini"},
	},
}

// Tools returns the known CLI table.
func Tools() []Tool {
	out := make([]Tool, len(tools))
	copy(out, tools)
	return out
}

// ByID looks a tool up by its id.
func ByID(id string) (Tool, bool) {
	for _, t := range tools {
		if t.ID == id {
			return t, true
		}
	}
	return Tool{}, false
}

// ForProvider returns the tool that can replace an API provider.
func ForProvider(provider string) (Tool, bool) {
	for _, t := range tools {
		for _, p := range t.Providers {
			if p == provider {
				return t, true
			}
		}
	}
	return Tool{}, false
}

// Args builds the invocation arguments for a prompt and optional model.
func (t Tool) Args(prompt, model string) []string {
	var args []string
	if model != "" && t.ModelFlag != "" {
		args = append(args, t.ModelFlag, model)
	}
	if t.PromptFlag != "" {
		args = append(args, t.PromptFlag, prompt)
	} else {
		args = append(args, prompt)
	}
	return args
}
