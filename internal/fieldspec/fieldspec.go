// Package fieldspec holds the immutable per-field extraction contracts: the
// column bindings, prompt text, and output schema for each confirmation
// field. It is pure data; nothing here talks to the model or the store.
package fieldspec

import (
	"encoding/json"

	"github.com/sells-group/confirm-cli/internal/model"
)

// ValueType is the primitive JSON type an extracted value must have.
type ValueType string

const (
	TypeString ValueType = "string"
	TypeNumber ValueType = "number"
)

// Normalizer selects which normalization the validation pass applies to a
// field's values.
type Normalizer string

const (
	NormGeneric Normalizer = "generic"
	NormSide    Normalizer = "side"
)

// Schema declares the expected shape of the model's JSON response: a single
// named nullable property with a primitive type, plus a closed enum for the
// trade-side field only.
type Schema struct {
	Key         string
	Type        ValueType
	Enum        []string
	Description string
}

type schemaProperty struct {
	Type        []string `json:"type"`
	Enum        []any    `json:"enum,omitempty"`
	Description string   `json:"description,omitempty"`
}

type schemaObject struct {
	Type                 string                    `json:"type"`
	Properties           map[string]schemaProperty `json:"properties"`
	Required             []string                  `json:"required"`
	AdditionalProperties bool                      `json:"additionalProperties"`
}

// JSON renders the schema as the JSON-schema constraint embedded in prompts.
func (s Schema) JSON() string {
	prop := schemaProperty{
		Type:        []string{string(s.Type), "null"},
		Description: s.Description,
	}
	if len(s.Enum) > 0 {
		prop.Enum = make([]any, 0, len(s.Enum)+1)
		for _, e := range s.Enum {
			prop.Enum = append(prop.Enum, e)
		}
		prop.Enum = append(prop.Enum, nil)
	}
	obj := schemaObject{
		Type:       "object",
		Properties: map[string]schemaProperty{s.Key: prop},
		Required:   []string{s.Key},
	}
	out, _ := json.Marshal(obj)
	return string(out)
}

// Spec is the full extraction/validation contract for one field.
type Spec struct {
	Field            model.Field
	SourceColumn     string
	ExtractedColumn  string
	ValidationColumn string
	OutputKey        string
	System           string
	FewShot          string
	Schema           Schema
	Normalizer       Normalizer
}

// Preamble is the shared system prompt prefix for every field. It is
// identical across calls so the service can cache it.
const Preamble = `You are a deterministic information extraction engine for financial trade confirmations.

General rules:
- Output MUST be valid JSON only.
- Do NOT include markdown, commentary, or explanations.
- Return only the field requested by the schema for this task.
- If a field cannot be identified with high confidence, return null.
- Never infer or guess missing information.`

func systemPrompt(rules string) string {
	return Preamble + "\n\nField-specific extraction rules:\n" + rules
}

func spec(f model.Field, rules, fewShot string, schema Schema, norm Normalizer) Spec {
	name := f.String()
	return Spec{
		Field:            f,
		SourceColumn:     name,
		ExtractedColumn:  name + "_LLM",
		ValidationColumn: name + "_validation",
		OutputKey:        name,
		System:           systemPrompt(rules),
		FewShot:          fewShot,
		Schema:           schema,
		Normalizer:       norm,
	}
}

var specs = [...]Spec{
	model.FieldCurrency: spec(
		model.FieldCurrency,
		`- Extract the ISO 3-letter currency code.
- Prefer the currency associated with settlement/net amount when context exists.
- If currency cannot be reliably linked or determined, return null.`,
		"Example:\nInput: \"USD\"\nOutput: {\"currency\":\"USD\"}\n\n"+
			"Example:\nInput: \"U.S. Dollar\"\nOutput: {\"currency\":\"USD\"}\n\n"+
			"Example:\nInput: \"unknown\"\nOutput: {\"currency\":null}",
		Schema{Key: "currency", Type: TypeString, Description: "ISO-4217 3-letter currency code"},
		NormGeneric,
	),
	model.FieldSettlementAmount: spec(
		model.FieldSettlementAmount,
		`- Extract the final net cash amount to be settled when explicit.
- Prefer labels such as Net Amount, Net Consideration, Settlement Amount, Sett Amt.
- If multiple amounts appear, prefer settlement/net amount over gross/principal/clean price/accrued interest.
- Normalize number format:
  - remove separators
  - parentheses indicate negative
  - leading minus sign indicates negative
- If no reliable settlement amount exists, return null.`,
		"Example:\nInput: \"29,851,455.46\"\nOutput: {\"settlement_amount\":29851455.46}\n\n"+
			"Example:\nInput: \"(1,250.50)\"\nOutput: {\"settlement_amount\":-1250.5}\n\n"+
			"Example:\nInput: \"N/A\"\nOutput: {\"settlement_amount\":null}",
		Schema{Key: "settlement_amount", Type: TypeNumber, Description: "Normalized numeric settlement amount"},
		NormGeneric,
	),
	model.FieldBuySell: spec(
		model.FieldBuySell,
		`- Extract trade side as BUY or SELL only.
- If side is not explicit, map directional phrases:
  - payable by you / you bought / we sold to you => BUY
  - payable to you / you sold / we bought from you => SELL
- If ambiguous, return null.`,
		"Example:\nInput: \"BUY\"\nOutput: {\"buy_sell\":\"BUY\"}\n\n"+
			"Example:\nInput: \"we sold to you\"\nOutput: {\"buy_sell\":\"SELL\"}\n\n"+
			"Example:\nInput: \"N/A\"\nOutput: {\"buy_sell\":null}",
		Schema{Key: "buy_sell", Type: TypeString, Enum: []string{"BUY", "SELL"}, Description: "Trade side"},
		NormSide,
	),
	model.FieldISIN: spec(
		model.FieldISIN,
		`- Extract ISIN only when explicit.
- ISIN must be exactly 12 alphanumeric characters.
- Do not infer ISIN from CUSIP, ticker, or security name.
- If invalid or absent, return null.`,
		"Example:\nInput: \"US9127123213\"\nOutput: {\"isin\":\"US9127123213\"}\n\n"+
			"Example:\nInput: \"ISIN: XS1111111111\"\nOutput: {\"isin\":\"XS1111111111\"}\n\n"+
			"Example:\nInput: \"CUSIP 123456789\"\nOutput: {\"isin\":null}",
		Schema{Key: "isin", Type: TypeString, Description: "12-character ISIN"},
		NormGeneric,
	),
	model.FieldSettlementDate: spec(
		model.FieldSettlementDate,
		`- Extract Settlement Date or Value Date when explicit.
- Prefer Settlement Date over Value Date if both are present.
- Normalize to ISO format YYYY-MM-DD.
- Do not infer dates from trade date or context.
- If date cannot be confidently parsed, return null.`,
		"Example:\nInput: \"October 21, 2025\"\nOutput: {\"settlement_date\":\"2025-10-21\"}\n\n"+
			"Example:\nInput: \"01-Oct-25\"\nOutput: {\"settlement_date\":\"2025-10-01\"}\n\n"+
			"Example:\nInput: \"TBD\"\nOutput: {\"settlement_date\":null}",
		Schema{Key: "settlement_date", Type: TypeString, Description: "Settlement date normalized to YYYY-MM-DD"},
		NormGeneric,
	),
	model.FieldSSI: spec(
		model.FieldSSI,
		`- Extract standard settlement instructions when explicitly provided.
- Look for SSI-related labels such as Our SSIs, Settlement Instructions, Delivery Versus Payment.
- Preserve meaningful identifiers (e.g., PSET, BIC, account references).
- Condense multi-line instructions into a single readable string.
- Do not fabricate or complete missing details. If absent, return null.`,
		"Example:\nInput: \"PSET FFFF33\"\nOutput: {\"SSI\":\"PSET FFFF33\"}\n\n"+
			"Example:\nInput: \"BANK OF NEW YORK, NEW YORK (BDS) | FXF\"\n"+
			"Output: {\"SSI\":\"BANK OF NEW YORK, NEW YORK (BDS) | FXF\"}\n\n"+
			"Example:\nInput: \"\"\nOutput: {\"SSI\":null}",
		Schema{Key: "SSI", Type: TypeString, Description: "Standard settlement instruction text"},
		NormGeneric,
	),
}

// All returns the specs in the fields' stable processing order.
func All() []Spec {
	out := make([]Spec, 0, len(specs))
	for _, f := range model.AllFields() {
		out = append(out, specs[f])
	}
	return out
}

// For returns the spec bound to the given field.
func For(f model.Field) Spec {
	return specs[f]
}
