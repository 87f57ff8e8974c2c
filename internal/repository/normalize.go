package repository

import (
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/notifyhub/suggestion-worker/internal/domain"
)

// Normalize converts a DynamoDB attribute value into a plain Go value:
// S → string, N → float64, B → []byte, BOOL → bool, NULL → nil,
// L → []any, M → map[string]any, SS → []string, NS → []float64, BS → [][]byte.
// A number that does not parse as float64 is kept as its decimal string.
func Normalize(av types.AttributeValue) any {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return parseNumber(v.Value)
	case *types.AttributeValueMemberB:
		return v.Value
	case *types.AttributeValueMemberBOOL:
		return v.Value
	case *types.AttributeValueMemberNULL:
		return nil
	case *types.AttributeValueMemberL:
		out := make([]any, len(v.Value))
		for i, item := range v.Value {
			out[i] = Normalize(item)
		}
		return out
	case *types.AttributeValueMemberM:
		return normalizeMap(v.Value)
	case *types.AttributeValueMemberSS:
		return append([]string(nil), v.Value...)
	case *types.AttributeValueMemberNS:
		out := make([]float64, 0, len(v.Value))
		for _, n := range v.Value {
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				out = append(out, f)
			}
		}
		return out
	case *types.AttributeValueMemberBS:
		return append([][]byte(nil), v.Value...)
	default:
		return nil
	}
}

// NormalizeItem converts a whole DynamoDB item into a domain.Record.
func NormalizeItem(item map[string]types.AttributeValue) domain.Record {
	return domain.Record(normalizeMap(item))
}

func normalizeMap(m map[string]types.AttributeValue) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Normalize(v)
	}
	return out
}

func parseNumber(s string) any {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return f
}

// stringValues flattens a category attribute, which may be stored as a
// string set, a list of strings or a single string.
func stringValues(v any) []string {
	switch c := v.(type) {
	case string:
		return []string{c}
	case []string:
		return c
	case []any:
		out := make([]string, 0, len(c))
		for _, item := range c {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
