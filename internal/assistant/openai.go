package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/sirupsen/logrus"
)

// replySchema is the strict structured output the model must produce.
var replySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"actions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"action": map[string]any{
						"type": "string",
						"enum": []string{"add", "update", "delete", "complete"},
					},
					"name": map[string]any{
						"type":        "string",
						"description": "Item name. For update, delete and complete use the name from the current list.",
					},
					"amount": map[string]any{
						"type":        []string{"integer", "null"},
						"description": "Positive amount for add and update, null otherwise.",
					},
				},
				"required":             []string{"action", "name", "amount"},
				"additionalProperties": false,
			},
		},
		"message": map[string]any{
			"type":        "string",
			"description": "Short reply to the user describing what was done.",
		},
	},
	"required":             []string{"actions", "message"},
	"additionalProperties": false,
}

// OpenAIModel streams structured replies from the OpenAI chat completions API.
type OpenAIModel struct {
	client openai.Client
	model  string
	logger logrus.FieldLogger
}

// NewOpenAIModel creates a model client. Extra options are passed to the
// OpenAI client, for example a base URL in tests.
func NewOpenAIModel(apiKey, model string, logger logrus.FieldLogger, opts ...option.RequestOption) *OpenAIModel {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIModel{
		client: openai.NewClient(opts...),
		model:  model,
		logger: logger,
	}
}

// Stream starts a completion. The returned stream must be closed.
func (m *OpenAIModel) Stream(ctx context.Context, prompt string) (PartialStream, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(m.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "shopping_list_reply",
					Description: openai.String("Shopping list actions and a reply message"),
					Schema:      replySchema,
					Strict:      openai.Bool(true),
				},
			},
		},
	}

	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start completion: %w", err)
	}

	m.logger.WithField("model", m.model).Debug("Assistant completion started")
	return &openAIStream{chunks: stream}, nil
}

// openAIStream turns content deltas into snapshots, emitting one whenever
// the text received so far can be completed into a parseable reply.
type openAIStream struct {
	chunks  *ssestream.Stream[openai.ChatCompletionChunk]
	buf     strings.Builder
	last    string
	current Partial
	done    bool
	err     error
}

func (s *openAIStream) Next() bool {
	if s.done {
		return false
	}

	for s.chunks.Next() {
		chunk := s.chunks.Current()
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		s.buf.WriteString(chunk.Choices[0].Delta.Content)
		if s.emit(closePartialJSON(s.buf.String())) {
			return true
		}
	}

	s.done = true
	if err := s.chunks.Err(); err != nil {
		s.err = err
		return false
	}

	text := strings.TrimSpace(s.buf.String())
	if text == "" || text == s.last {
		return false
	}
	var p Partial
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		s.err = fmt.Errorf("failed to decode assistant reply: %w", err)
		return false
	}
	s.last = text
	s.current = p
	return true
}

// emit parses candidate and makes it current when it is new and valid.
func (s *openAIStream) emit(candidate string) bool {
	if candidate == s.last {
		return false
	}
	var p Partial
	if err := json.Unmarshal([]byte(candidate), &p); err != nil {
		return false
	}
	s.last = candidate
	s.current = p
	return true
}

func (s *openAIStream) Current() Partial { return s.current }

func (s *openAIStream) Err() error { return s.err }

func (s *openAIStream) Close() error { return s.chunks.Close() }
