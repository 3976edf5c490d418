// Package provider selects and constructs the chat-model backend at
// runtime. One binary speaks to a local Ollama by default and can be pointed
// at OpenAI, Azure OpenAI, AWS Bedrock, or Google Gemini through the
// environment alone.
package provider

// Backend names an inference provider.
type Backend string

const (
	// BackendOllama is a locally running Ollama instance (the default).
	BackendOllama Backend = "ollama"
	// BackendOpenAI is the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure is Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendBedrock is AWS Bedrock.
	BackendBedrock Backend = "bedrock"
	// BackendGemini is Google Gemini via AI Studio or Vertex.
	BackendGemini Backend = "gemini"
)

// Config is the resolved provider configuration. Fields not relevant to the
// selected backend are ignored by its constructor.
type Config struct {
	// Backend selects the inference provider.
	Backend Backend

	// Model is the model name or deployment id ("llama3", "gpt-4o").
	Model string

	// BaseURL overrides the default API endpoint. Required for Ollama and
	// Azure, optional elsewhere.
	BaseURL string

	// APIKey authenticates against the provider. Unused for Bedrock, which
	// resolves credentials through the AWS chain.
	APIKey string

	// AzureDeployment is the Azure OpenAI deployment name.
	AzureDeployment string

	// AzureAPIVersion is the Azure REST API version ("2024-02-01").
	AzureAPIVersion string

	// AWSRegion is the Bedrock region.
	AWSRegion string

	// MaxTokens caps the tokens generated per response.
	MaxTokens int

	// Temperature controls sampling randomness in [0, 1].
	Temperature float32
}
