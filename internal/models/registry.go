package models

// fullCapabilities is the set supported by current frontier models.
var fullCapabilities = []Capability{
	CapVision,
	CapToolUse,
	CapReasoning,
	CapStructuredOutput,
}

// textCapabilities is the set for models without vision input.
var textCapabilities = []Capability{
	CapToolUse,
	CapReasoning,
	CapStructuredOutput,
}

// registry is the internal list of all known Copilot models.
// Only the primary model per family gets the short alias.
var registry = []Model{
	{
		ID:              "gpt-4.1",
		Name:            "GPT-4.1",
		Aliases:         []string{"gpt4.1"},
		Provider:        "openai",
		Capabilities:    fullCapabilities,
		ContextWindow:   1_000_000,
		MaxOutputTokens: 32_000,
	},
	{
		ID:              "gpt-4o",
		Name:            "GPT-4o",
		Aliases:         []string{"gpt4o"},
		Provider:        "openai",
		Capabilities:    fullCapabilities,
		ContextWindow:   128_000,
		MaxOutputTokens: 16_000,
	},
	{
		ID:              "gpt-4o-mini",
		Name:            "GPT-4o mini",
		Provider:        "openai",
		Capabilities:    fullCapabilities,
		ContextWindow:   128_000,
		MaxOutputTokens: 16_000,
	},
	{
		ID:              "o3-mini",
		Name:            "o3-mini",
		Provider:        "openai",
		Capabilities:    textCapabilities,
		ContextWindow:   200_000,
		MaxOutputTokens: 100_000,
	},
	{
		ID:              "claude-sonnet-4",
		Name:            "Claude Sonnet 4",
		Aliases:         []string{"sonnet"},
		Provider:        "anthropic",
		Capabilities:    fullCapabilities,
		ContextWindow:   200_000,
		MaxOutputTokens: 64_000,
	},
	{
		ID:              "claude-haiku-4-5",
		Name:            "Claude Haiku 4.5",
		Aliases:         []string{"haiku"},
		Provider:        "anthropic",
		Capabilities:    fullCapabilities,
		ContextWindow:   200_000,
		MaxOutputTokens: 64_000,
	},
	{
		ID:              "gemini-2.5-pro",
		Name:            "Gemini 2.5 Pro",
		Aliases:         []string{"gemini"},
		Provider:        "google",
		Capabilities:    fullCapabilities,
		ContextWindow:   1_000_000,
		MaxOutputTokens: 64_000,
	},
}
