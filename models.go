package copilotsdk

import "github.com/copilotstream/copilot-sdk-go/internal/models"

// Re-export model types from internal/models.

// Model holds metadata for a single Copilot model.
type Model = models.Model

// ModelCapability represents a model capability such as vision or tool use.
type ModelCapability = models.Capability

// Model capability constants.
const (
	// ModelCapVision indicates the model supports image/vision inputs.
	ModelCapVision = models.CapVision
	// ModelCapToolUse indicates the model supports tool/function calling.
	ModelCapToolUse = models.CapToolUse
	// ModelCapReasoning indicates the model supports extended reasoning.
	ModelCapReasoning = models.CapReasoning
	// ModelCapStructuredOutput indicates the model supports structured JSON output.
	ModelCapStructuredOutput = models.CapStructuredOutput
)

// DefaultModelID is the model used when a session does not specify one.
const DefaultModelID = models.DefaultModelID

// Models returns a copy of all known Copilot models.
func Models() []Model {
	return models.All()
}

// ModelByID looks up a model by ID, alias, or ID prefix.
// Returns nil if no model is found.
func ModelByID(id string) *Model {
	return models.ByID(id)
}

// ModelsByProvider returns all models from the given provider.
func ModelsByProvider(provider string) []Model {
	return models.ByProvider(provider)
}

// ModelCapabilities returns capability strings for the given model ID.
// Returns nil if the model is not found.
func ModelCapabilities(modelID string) []string {
	return models.Capabilities(modelID)
}
