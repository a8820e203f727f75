package criteria

import (
	"fmt"
	"math"
	"strconv"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// CurrentVersion is the version written by Encode. Documents without a
// version, or with an older one, use the legacy operator catalog.
const CurrentVersion = 2

// Encode serializes a criteria list as protobuf JSON.
func Encode(list List) ([]byte, error) {
	items := make([]any, 0, len(list.Criteria))
	for i, c := range list.Criteria {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("criterion[%d]: %w", i, err)
		}
		items = append(items, map[string]any{
			"target":     c.Target.Selector(),
			"operator":   string(c.Operator),
			"parameters": encodeParams(c.Params),
		})
	}

	doc, err := structpb.NewStruct(map[string]any{
		"version":  CurrentVersion,
		"isAnd":    list.IsAnd,
		"criteria": items,
	})
	if err != nil {
		return nil, fmt.Errorf("build criteria document: %w", err)
	}
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(doc)
}

// Decode parses a document written by Encode. Documents that predate the
// current catalog are translated through TranslateLegacy.
func Decode(data []byte) (List, error) {
	doc := &structpb.Struct{}
	if err := protojson.Unmarshal(data, doc); err != nil {
		return List{}, fmt.Errorf("unmarshal criteria document: %w", err)
	}
	m := doc.AsMap()

	version := 1
	if v, ok := m["version"].(float64); ok {
		version = int(v)
	}
	if version > CurrentVersion {
		return List{}, fmt.Errorf("criteria document version %d is newer than supported version %d", version, CurrentVersion)
	}

	list := List{IsAnd: true}
	if v, ok := m["isAnd"].(bool); ok {
		list.IsAnd = v
	}

	raw, _ := m["criteria"].([]any)
	for i, r := range raw {
		item, ok := r.(map[string]any)
		if !ok {
			return List{}, fmt.Errorf("criterion[%d]: expected object, got %T", i, r)
		}
		c, err := decodeCriterion(item, version)
		if err != nil {
			return List{}, fmt.Errorf("criterion[%d]: %w", i, err)
		}
		list.Criteria = append(list.Criteria, c)
	}
	return list, nil
}

func decodeCriterion(item map[string]any, version int) (Criterion, error) {
	selector, _ := item["target"].(string)
	target, err := ParseSelector(selector)
	if err != nil {
		return Criterion{}, err
	}
	opName, _ := item["operator"].(string)
	payload, _ := item["parameters"].(map[string]any)

	if version < CurrentVersion {
		op, params, err := TranslateLegacy(target, opName, payload)
		if err != nil {
			return Criterion{}, err
		}
		return Criterion{Target: target, Operator: op, Params: params}, nil
	}

	op, err := ParseOperatorID(opName)
	if err != nil {
		return Criterion{}, err
	}
	params, err := decodeParams(op, payload)
	if err != nil {
		return Criterion{}, fmt.Errorf("operator %s: %w", op, err)
	}
	return Criterion{Target: target, Operator: op, Params: params}, nil
}

func encodeParams(p Parameters) map[string]any {
	switch p := p.(type) {
	case ValueParams:
		if !HasLiteral(p.Value) {
			return map[string]any{}
		}
		return map[string]any{
			"value": RenderLiteral(p.Value),
			"type":  LiteralTypeName(p.Value),
		}
	case PatternParams:
		return map[string]any{
			"pattern":       p.Pattern,
			"caseSensitive": p.CaseSensitive,
		}
	case CountParams:
		return map[string]any{"count": strconv.FormatInt(p.Count, 10)}
	default:
		return map[string]any{}
	}
}

func decodeParams(op OperatorID, payload map[string]any) (Parameters, error) {
	switch ShapeOf(op) {
	case ShapeValue:
		text, ok := payloadText(payload, "value")
		if !ok {
			return ValueParams{}, nil
		}
		typeName, _ := payload["type"].(string)
		lit, err := ParseLiteral(typeName, text)
		if err != nil {
			return nil, err
		}
		return ValueParams{Value: lit}, nil

	case ShapePattern:
		p := PatternParams{CaseSensitive: true}
		p.Pattern, _ = payloadText(payload, "pattern")
		if v, ok := payload["caseSensitive"].(bool); ok {
			p.CaseSensitive = v
		}
		return p, nil

	case ShapeCount:
		text, ok := payloadText(payload, "count")
		if !ok {
			// Counts used to be stored under "value".
			text, ok = payloadText(payload, "value")
		}
		if !ok {
			return CountParams{}, nil
		}
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse count %q: %w", text, err)
		}
		return CountParams{Count: n}, nil

	default:
		return NoParams{}, nil
	}
}

// payloadText reads key as a string. JSON numbers are rendered back to
// their decimal form so both encodings are accepted.
func payloadText(payload map[string]any, key string) (string, bool) {
	switch v := payload[key].(type) {
	case string:
		return v, true
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return strconv.FormatInt(int64(v), 10), true
		}
		return strconv.FormatFloat(v, 'g', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}
