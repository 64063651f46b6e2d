// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package paytask

import (
	"fmt"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// PartKind is the discriminator of the [Part] union on the wire.
type PartKind string

const (
	// PartKindText tags a [TextPart].
	PartKindText PartKind = "text"

	// PartKindData tags a [DataPart].
	PartKindData PartKind = "data"
)

// Well-known DataPart types produced by the engine.
const (
	DataTypePaymentRequired = "payment_required"
	DataTypeTransfer        = "transfer"
	DataTypeQuote           = "quote"
	DataTypeDelegation      = "delegation"
	DataTypeError           = "error"
)

// Part is one element of a Message or Artifact body.
//
// The set of implementations is closed: [TextPart] and [DataPart]. Consumers
// switch on the concrete type.
type Part interface {
	// Kind returns the wire discriminator.
	Kind() PartKind

	// Validate ensures the part is well formed.
	Validate() error

	isPart()
}

// TextPart is a plain text segment.
type TextPart struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitzero"`
}

var _ Part = TextPart{}

// Kind implements [Part].
func (TextPart) Kind() PartKind { return PartKindText }

func (TextPart) isPart() {}

// Validate implements [Part].
func (p TextPart) Validate() error {
	if strings.TrimSpace(p.Text) == "" {
		return fmt.Errorf("text part text cannot be empty")
	}
	return nil
}

// MarshalJSON encodes the part with its kind discriminator.
func (p TextPart) MarshalJSON() ([]byte, error) {
	return json.Marshal(textPartWire{Kind: PartKindText, Text: p.Text, Metadata: p.Metadata})
}

// DataPart is a structured segment. Type names the shape of Data, for
// example "payment_required" or "transfer".
type DataPart struct {
	Type     string         `json:"type"`
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata,omitzero"`
}

var _ Part = DataPart{}

// Kind implements [Part].
func (DataPart) Kind() PartKind { return PartKindData }

func (DataPart) isPart() {}

// Validate implements [Part].
func (p DataPart) Validate() error {
	if p.Type == "" {
		return fmt.Errorf("data part type cannot be empty")
	}
	if p.Data == nil {
		return fmt.Errorf("data part data cannot be nil")
	}
	return nil
}

// MarshalJSON encodes the part with its kind discriminator.
func (p DataPart) MarshalJSON() ([]byte, error) {
	return json.Marshal(dataPartWire{Kind: PartKindData, Type: p.Type, Data: p.Data, Metadata: p.Metadata})
}

type textPartWire struct {
	Kind     PartKind       `json:"kind"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitzero"`
}

type dataPartWire struct {
	Kind     PartKind       `json:"kind"`
	Type     string         `json:"type"`
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata,omitzero"`
}

// Parts is an ordered sequence of parts that knows how to decode the union.
type Parts []Part

// MarshalJSON implements [json.Marshaler].
func (ps Parts) MarshalJSON() ([]byte, error) {
	values := make([]jsontext.Value, 0, len(ps))
	for i, p := range ps {
		if p == nil {
			return nil, fmt.Errorf("part at index %d is nil", i)
		}
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal part at index %d: %w", i, err)
		}
		values = append(values, jsontext.Value(b))
	}
	return json.Marshal(values)
}

// UnmarshalJSON implements [json.Unmarshaler].
func (ps *Parts) UnmarshalJSON(data []byte) error {
	var raw []jsontext.Value
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Parts, 0, len(raw))
	for i, v := range raw {
		p, err := UnmarshalPart(v)
		if err != nil {
			return fmt.Errorf("part at index %d: %w", i, err)
		}
		out = append(out, p)
	}
	*ps = out
	return nil
}

// UnmarshalPart decodes a single JSON part into its concrete type.
func UnmarshalPart(data []byte) (Part, error) {
	var head struct {
		Kind PartKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("read part kind: %w", err)
	}

	switch head.Kind {
	case PartKindText:
		var w textPartWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return TextPart{Text: w.Text, Metadata: w.Metadata}, nil
	case PartKindData:
		var w dataPartWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		return DataPart{Type: w.Type, Data: w.Data, Metadata: w.Metadata}, nil
	case "":
		return nil, fmt.Errorf("part kind is missing")
	default:
		return nil, fmt.Errorf("unknown part kind %q", head.Kind)
	}
}

// Validate ensures every part is valid and the sequence is not empty.
func (ps Parts) Validate() error {
	if len(ps) == 0 {
		return fmt.Errorf("parts cannot be empty")
	}
	for i, p := range ps {
		if p == nil {
			return fmt.Errorf("part at index %d is nil", i)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("part at index %d is invalid: %w", i, err)
		}
	}
	return nil
}

// Text joins all text parts with newlines.
func (ps Parts) Text() string {
	var texts []string
	for _, p := range ps {
		if tp, ok := p.(TextPart); ok {
			texts = append(texts, tp.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Data returns the first data part of the given type.
func (ps Parts) Data(typ string) (DataPart, bool) {
	for _, p := range ps {
		if dp, ok := p.(DataPart); ok && dp.Type == typ {
			return dp, true
		}
	}
	return DataPart{}, false
}

// Clone returns a copy of ps whose maps are not shared with the original.
func (ps Parts) Clone() Parts {
	if ps == nil {
		return nil
	}
	out := make(Parts, len(ps))
	for i, p := range ps {
		switch p := p.(type) {
		case TextPart:
			p.Metadata = cloneMap(p.Metadata)
			out[i] = p
		case DataPart:
			p.Data = cloneMap(p.Data)
			p.Metadata = cloneMap(p.Metadata)
			out[i] = p
		default:
			out[i] = p
		}
	}
	return out
}

// cloneMap copies m one level deep, recursing into nested maps and slices.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
