// Package extract invokes the language-model service with a field's contract
// and turns its structured response into a persisted extracted value.
package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/confirm-cli/internal/fieldspec"
	"github.com/sells-group/confirm-cli/internal/normalize"
	"github.com/sells-group/confirm-cli/pkg/anthropic"
)

// ErrSchemaViolation marks a response that completed transport but does not
// satisfy the field's declared output schema: not valid JSON, missing the
// output key, wrong primitive type, or a value outside the closed enum. It is
// distinct from a semantic null, which is a successful "not found" answer.
var ErrSchemaViolation = eris.New("response violates output schema")

// Engine performs one schema-constrained extraction call per invocation. It
// never touches the record store.
type Engine struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewEngine creates an extraction engine bound to a model.
func NewEngine(client anthropic.Client, model string, maxTokens int64) *Engine {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &Engine{client: client, model: model, maxTokens: maxTokens}
}

// Extract runs the field's contract against the raw source value. The caller
// guarantees raw is non-blank. Returns nil with a nil error for a semantic
// null ("present but not confidently extractable"); every schema deviation
// returns ErrSchemaViolation.
func (e *Engine) Extract(ctx context.Context, raw string, spec fieldspec.Spec) (*string, error) {
	userMsg := spec.FewShot +
		"\n\nOutput JSON schema:\n" + spec.Schema.JSON() +
		"\n\nInput:\n" + raw +
		"\n\nReturn ONLY the JSON object."

	// The shared preamble is byte-identical across every call, so it carries
	// the cache breakpoint; the field rules ride behind it uncached.
	temperature := 0.0
	req := anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System: anthropic.BuildCachedSystemBlocks(
			fieldspec.Preamble,
			strings.TrimPrefix(spec.System, fieldspec.Preamble),
		),
		Messages: []anthropic.Message{
			{Role: "user", Content: userMsg},
		},
		Temperature: &temperature,
	}

	resp, err := e.client.CreateMessage(ctx, req)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: %s", spec.SourceColumn)
	}
	resp.Usage.LogCost(e.model, "extract:"+spec.SourceColumn)

	return parseResponse(resp.Text(), spec)
}

// parseResponse validates the response against the declared schema and
// canonicalizes the value to its stored text form.
func parseResponse(text string, spec fieldspec.Spec) (*string, error) {
	cleaned := cleanJSON(text)

	var payload map[string]any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, eris.Wrapf(ErrSchemaViolation, "extract: %s: not valid JSON", spec.SourceColumn)
	}

	value, ok := payload[spec.OutputKey]
	if !ok {
		return nil, eris.Wrapf(ErrSchemaViolation, "extract: %s: missing output key %q", spec.SourceColumn, spec.OutputKey)
	}
	if value == nil {
		return nil, nil
	}

	switch spec.Schema.Type {
	case fieldspec.TypeNumber:
		num, ok := value.(float64)
		if !ok {
			return nil, eris.Wrapf(ErrSchemaViolation, "extract: %s: expected number, got %T", spec.SourceColumn, value)
		}
		text := normalize.Amount(num)
		return &text, nil

	case fieldspec.TypeString:
		str, ok := value.(string)
		if !ok {
			return nil, eris.Wrapf(ErrSchemaViolation, "extract: %s: expected string, got %T", spec.SourceColumn, value)
		}
		if len(spec.Schema.Enum) > 0 && !inEnum(str, spec.Schema.Enum) {
			return nil, eris.Wrapf(ErrSchemaViolation, "extract: %s: %q not in enum", spec.SourceColumn, str)
		}
		return &str, nil

	default:
		return nil, eris.Wrapf(ErrSchemaViolation, "extract: %s: unsupported schema type %q", spec.SourceColumn, spec.Schema.Type)
	}
}

func inEnum(v string, enum []string) bool {
	for _, e := range enum {
		if v == e {
			return true
		}
	}
	return false
}
