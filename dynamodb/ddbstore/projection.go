package ddbstore

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// projection is a list of top-level attribute names. A nil projection keeps
// every attribute.
type projection []string

// parseProjection resolves a ProjectionExpression such as "#0, #1, age".
// Nested paths are not supported. attributesToGet is the legacy form.
func parseProjection(expr *string, names map[string]string, attributesToGet []string) (projection, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		if len(attributesToGet) > 0 {
			return projection(attributesToGet), nil
		}
		return nil, nil
	}
	if len(attributesToGet) > 0 {
		return nil, fmt.Errorf("ProjectionExpression and AttributesToGet are mutually exclusive")
	}
	var out projection
	for _, part := range strings.Split(*expr, ",") {
		path := strings.TrimSpace(part)
		if path == "" {
			return nil, fmt.Errorf("invalid projection expression %q", *expr)
		}
		if strings.ContainsAny(path, ".[") {
			return nil, fmt.Errorf("nested projection %q is not supported", path)
		}
		if strings.HasPrefix(path, "#") {
			name, ok := names[path]
			if !ok {
				return nil, fmt.Errorf("projection placeholder %q has no expression attribute name", path)
			}
			path = name
		}
		out = append(out, path)
	}
	return out, nil
}

// checkParameterStyle rejects a request that mixes expression parameters
// with legacy ones, as DynamoDB does.
func checkParameterStyle(expression, legacy bool) error {
	if expression && legacy {
		return fmt.Errorf("ValidationException: Can not use both expression and non-expression parameters in the same request")
	}
	return nil
}

func (p projection) apply(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if p == nil || item == nil {
		return item
	}
	out := make(map[string]types.AttributeValue, len(p))
	for _, attr := range p {
		if v, ok := item[attr]; ok {
			out[attr] = v
		}
	}
	return out
}
