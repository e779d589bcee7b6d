package extract

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/confirm-cli/internal/fieldspec"
	"github.com/sells-group/confirm-cli/internal/model"
	"github.com/sells-group/confirm-cli/pkg/anthropic"
)

// stubClient implements anthropic.Client for tests.
type stubClient struct {
	mu      sync.Mutex
	calls   int
	lastReq anthropic.MessageRequest
	respond func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

func (s *stubClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastReq = req
	return s.respond(req)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func respondWith(text string) func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	return func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return textResponse(text), nil
	}
}

func TestExtract_RequestShape(t *testing.T) {
	client := &stubClient{respond: respondWith(`{"currency":"USD"}`)}
	engine := NewEngine(client, "claude-haiku-4-5-20251001", 512)
	spec := fieldspec.For(model.FieldCurrency)

	value, err := engine.Extract(context.Background(), "U.S. Dollar", spec)
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "USD", *value)

	req := client.lastReq
	assert.Equal(t, "claude-haiku-4-5-20251001", req.Model)
	require.NotNil(t, req.Temperature)
	assert.Zero(t, *req.Temperature)

	// Shared preamble carries the cache breakpoint; field rules ride behind it.
	require.Len(t, req.System, 2)
	assert.Equal(t, fieldspec.Preamble, req.System[0].Text)
	require.NotNil(t, req.System[0].CacheControl)
	assert.Contains(t, req.System[1].Text, "Field-specific extraction rules:")
	assert.Nil(t, req.System[1].CacheControl)

	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, spec.Schema.JSON())
	assert.Contains(t, req.Messages[0].Content, "Input:\nU.S. Dollar")
	assert.Contains(t, req.Messages[0].Content, "Return ONLY the JSON object.")
}

func TestExtract_SemanticNull(t *testing.T) {
	client := &stubClient{respond: respondWith(`{"currency":null}`)}
	engine := NewEngine(client, "m", 512)

	value, err := engine.Extract(context.Background(), "unknown", fieldspec.For(model.FieldCurrency))
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestExtract_FencedResponse(t *testing.T) {
	client := &stubClient{respond: respondWith("```json\n{\"isin\":\"US9127123213\"}\n```")}
	engine := NewEngine(client, "m", 512)

	value, err := engine.Extract(context.Background(), "ISIN: US9127123213", fieldspec.For(model.FieldISIN))
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "US9127123213", *value)
}

func TestExtract_NumberCanonicalized(t *testing.T) {
	client := &stubClient{respond: respondWith(`{"settlement_amount":-1250.5}`)}
	engine := NewEngine(client, "m", 512)

	value, err := engine.Extract(context.Background(), "(1,250.50)", fieldspec.For(model.FieldSettlementAmount))
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "-1250.5", *value)
}

func TestExtract_InvalidJSON(t *testing.T) {
	client := &stubClient{respond: respondWith("sorry, I cannot help with that")}
	engine := NewEngine(client, "m", 512)

	_, err := engine.Extract(context.Background(), "USD", fieldspec.For(model.FieldCurrency))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaViolation))
}

func TestExtract_MissingOutputKey(t *testing.T) {
	client := &stubClient{respond: respondWith(`{"value":"USD"}`)}
	engine := NewEngine(client, "m", 512)

	_, err := engine.Extract(context.Background(), "USD", fieldspec.For(model.FieldCurrency))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaViolation))
}

func TestExtract_WrongType(t *testing.T) {
	client := &stubClient{respond: respondWith(`{"currency":840}`)}
	engine := NewEngine(client, "m", 512)

	_, err := engine.Extract(context.Background(), "USD", fieldspec.For(model.FieldCurrency))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaViolation))
}

func TestExtract_EnumClosure(t *testing.T) {
	spec := fieldspec.For(model.FieldBuySell)
	engine := NewEngine(&stubClient{respond: respondWith(`{"buy_sell":"HOLD"}`)}, "m", 512)

	_, err := engine.Extract(context.Background(), "holding", spec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaViolation))

	engine = NewEngine(&stubClient{respond: respondWith(`{"buy_sell":"SELL"}`)}, "m", 512)
	value, err := engine.Extract(context.Background(), "we bought from you", spec)
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, "SELL", *value)
}

func TestExtract_TransportErrorIsNotSchemaViolation(t *testing.T) {
	transportErr := eris.New("connection reset by peer")
	client := &stubClient{respond: func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return nil, transportErr
	}}
	engine := NewEngine(client, "m", 512)

	_, err := engine.Extract(context.Background(), "USD", fieldspec.For(model.FieldCurrency))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSchemaViolation))
}

func TestCleanJSON(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                          `{"a":1}`,
		"```json\n{\"a\":1}\n```":          `{"a":1}`,
		"```\n{\"a\":1}\n```":              `{"a":1}`,
		"Here is the answer: {\"a\":1}.":   `{"a":1}`,
		"  \n{\"a\": {\"b\": 2}} trailing": `{"a": {"b": 2}}`,
	}
	for in, want := range cases {
		assert.Equal(t, want, cleanJSON(in), "input %q", in)
	}
}
