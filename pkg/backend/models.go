package backend

// DefaultModelID is the model used when no override is configured.
const DefaultModelID = "us.anthropic.claude-sonnet-4-20250514-v1:0"

// DefaultEmbeddingModelID is the model used to embed memory records.
const DefaultEmbeddingModelID = "amazon.titan-embed-text-v1"

// SupportedModels lists the model ids offered in configuration UIs. The
// list is advisory; any id the backend accepts can be set directly.
var SupportedModels = []string{
	DefaultModelID,
	"amazon.titan-text-express-v1",
	"amazon.titan-text-lite-v1",
	"anthropic.claude-v2",
	"anthropic.claude-v2:1",
	"anthropic.claude-instant-v1",
	"ai21.j2-mid-v1",
	"ai21.j2-ultra-v1",
	"cohere.command-text-v14",
	"cohere.command-light-text-v14",
	"cohere.command-r-v1:0",
	"cohere.command-r-plus-v1:0",
	"meta.llama2-13b-chat-v1",
	"meta.llama2-70b-chat-v1",
	"meta.llama3-8b-instruct-v1:0",
	"meta.llama3-70b-instruct-v1:0",
	"mistral.mistral-7b-instruct-v0:2",
	"mistral.mixtral-8x7b-instruct-v0:1",
	"mistral.mistral-large-2402-v1:0",
	"mistral.mistral-small-2402-v1:0",
}

// IsSupportedModel reports whether id appears in SupportedModels.
func IsSupportedModel(id string) bool {
	for _, m := range SupportedModels {
		if m == id {
			return true
		}
	}
	return false
}
