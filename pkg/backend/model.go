package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdoc "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"

	"github.com/hearthd/hearth/internal/observability"
)

// Phrase the runtime puts in the validation error raised by a transcript
// whose role alternation is broken (e.g. two consecutive user turns after
// a crash mid-write). Seeing it means the cached conversation state is
// unrecoverable and must be rebuilt from scratch.
const corruptTurnFragment = "cannot be provided in the same turn"

// ModelClient is the subset of the model runtime API the integration
// uses. *bedrockruntime.Client satisfies it; tests substitute fakes.
type ModelClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Model binds a runtime client to a specific model id and exposes a
// single-turn Converse call. Streaming is intentionally not used; the
// orchestration layer needs complete messages to persist and replay.
type Model struct {
	client  ModelClient
	modelID string
}

// NewModel creates a model handle for the given model id.
func NewModel(client ModelClient, modelID string) *Model {
	return &Model{client: client, modelID: modelID}
}

// ID returns the model identifier this handle invokes.
func (m *Model) ID() string {
	return m.modelID
}

// Client returns the underlying runtime client.
func (m *Model) Client() ModelClient {
	return m.client
}

// Converse sends the transcript to the model and returns the assistant
// message and stop reason. The tools slice may be nil for plain chat.
func (m *Model) Converse(ctx context.Context, messages []types.Message, system string, tools []types.Tool) (*types.Message, types.StopReason, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(m.modelID),
		Messages: messages,
	}
	if system != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: system},
		}
	}
	if len(tools) > 0 {
		input.ToolConfig = &types.ToolConfiguration{Tools: tools}
	}

	start := time.Now()
	out, err := m.client.Converse(ctx, input)
	observability.RecordModelInvoke(time.Since(start), err == nil)
	if err != nil {
		log.Error().Err(err).Str("model", m.modelID).Msg("Model invocation failed")
		return nil, "", WrapProviderError(err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, "", fmt.Errorf("unexpected converse output variant %T", out.Output)
	}
	return &msg.Value, out.StopReason, nil
}

// TextBlock builds a text content block.
func TextBlock(text string) types.ContentBlock {
	return &types.ContentBlockMemberText{Value: text}
}

// ImageBlock builds an image content block from raw bytes. Format is the
// short image format name ("png", "jpeg", "gif", "webp").
func ImageBlock(format string, data []byte) types.ContentBlock {
	return &types.ContentBlockMemberImage{
		Value: types.ImageBlock{
			Format: types.ImageFormat(format),
			Source: &types.ImageSourceMemberBytes{Value: data},
		},
	}
}

// UserMessage builds a user-role message from content blocks.
func UserMessage(blocks ...types.ContentBlock) types.Message {
	return types.Message{Role: types.ConversationRoleUser, Content: blocks}
}

// AssistantMessage builds an assistant-role message from content blocks.
func AssistantMessage(blocks ...types.ContentBlock) types.Message {
	return types.Message{Role: types.ConversationRoleAssistant, Content: blocks}
}

// ToolResultBlock builds a tool result block answering the given tool use id.
func ToolResultBlock(toolUseID string, text string, isError bool) types.ContentBlock {
	status := types.ToolResultStatusSuccess
	if isError {
		status = types.ToolResultStatusError
	}
	return &types.ContentBlockMemberToolResult{
		Value: types.ToolResultBlock{
			ToolUseId: aws.String(toolUseID),
			Status:    status,
			Content: []types.ToolResultContentBlock{
				&types.ToolResultContentBlockMemberText{Value: text},
			},
		},
	}
}

// ToolSpec builds a tool declaration from a name, description and JSON
// schema for the input arguments.
func ToolSpec(name, description string, schema map[string]interface{}) types.Tool {
	return &types.ToolMemberToolSpec{
		Value: types.ToolSpecification{
			Name:        aws.String(name),
			Description: aws.String(description),
			InputSchema: &types.ToolInputSchemaMemberJson{
				Value: awsdoc.NewLazyDocument(schema),
			},
		},
	}
}

// ExtractText concatenates the text blocks of a message. A message that
// carries no text at all (tool-use only, image only) falls back to a
// structural rendering so callers always get a non-empty reply to relay.
func ExtractText(msg *types.Message) string {
	if msg == nil {
		return ""
	}
	var parts []string
	for _, block := range msg.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			parts = append(parts, text.Value)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%v", msg.Content)
	}
	return strings.Join(parts, "\n")
}

// ToolUses returns the tool-use blocks of a message, in order.
func ToolUses(msg *types.Message) []types.ToolUseBlock {
	if msg == nil {
		return nil
	}
	var uses []types.ToolUseBlock
	for _, block := range msg.Content {
		if use, ok := block.(*types.ContentBlockMemberToolUse); ok {
			uses = append(uses, use.Value)
		}
	}
	return uses
}

// IsCorruptTranscript reports whether err is the runtime's validation
// failure for a transcript with broken role alternation. Callers treat
// it as a signal to drop cached conversation state and retry once.
func IsCorruptTranscript(err error) bool {
	if err == nil {
		return false
	}
	var ve *types.ValidationException
	if errors.As(err, &ve) {
		return strings.Contains(aws.ToString(ve.Message), corruptTurnFragment)
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode() == "ValidationException" &&
			strings.Contains(ae.ErrorMessage(), corruptTurnFragment)
	}
	return false
}

// Error wraps a backend failure and preserves the provider's own message
// text, which is what surfaces to the end user.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("model backend error: `%s`", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WrapProviderError converts a raw client error into an *Error carrying
// the provider's message. The original error stays reachable via Unwrap,
// so classifiers like IsCorruptTranscript still work on the result.
func WrapProviderError(err error) error {
	if err == nil {
		return nil
	}
	var wrapped *Error
	if errors.As(err, &wrapped) {
		return err
	}
	msg := err.Error()
	var ae smithy.APIError
	if errors.As(err, &ae) {
		msg = ae.ErrorMessage()
	}
	return &Error{Message: msg, Err: err}
}
