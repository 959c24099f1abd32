// Package ollama provides the Ollama LLM provider for the avatar gateway.
//
// It implements the [llm.ChatModel] interface directly against Ollama's own
// Go client (github.com/ollama/ollama/api), talking to a local or remote
// Ollama server's native /api/chat endpoint rather than its
// OpenAI-compatible shim. It supports all models available through Ollama
// including Llama, Mistral, Phi, Gemma, and other open-source models.
//
// # Registration
//
// The provider registers itself as "ollama" via init(). Import the package
// for side effects to make it available through the llm registry:
//
//	import _ "github.com/lookatitude/avatar-gateway/llm/providers/ollama"
//
// # Usage
//
//	model, err := llm.New("ollama", config.ProviderConfig{
//	    Model: "llama3.2",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := model.Generate(ctx, []schema.Message{
//	    schema.NewHumanMessage("Hello!"),
//	})
//
// # Configuration
//
// The following [config.ProviderConfig] fields are used:
//
//   - Model: the Ollama model name (e.g. "llama3.2", "mistral", "phi3")
//   - BaseURL: optional, defaults to "http://127.0.0.1:11434" (Ollama's native
//     API port, not the OpenAI-compatible "/v1" path)
//
// # Direct Construction
//
// Use [New] to create a ChatModel directly without going through the registry.
package ollama
