package remote

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/itchyny/gojq"
)

var membersQueryCache sync.Map

func compileMembersQuery(expression string) (*gojq.Code, error) {
	expression = strings.TrimSpace(expression)
	if cached, ok := membersQueryCache.Load(expression); ok {
		if code, ok := cached.(*gojq.Code); ok && code != nil {
			return code, nil
		}
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid members query %q: %w", expression, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("invalid members query %q: %w", expression, err)
	}

	actual, _ := membersQueryCache.LoadOrStore(expression, code)
	if typed, ok := actual.(*gojq.Code); ok && typed != nil {
		return typed, nil
	}
	return code, nil
}

// extractMembers runs code over one decoded page. Array results are flattened
// one level so both ".ids" and ".ids[]" style expressions work. Null results
// are kept: every listed entry counts toward the page size, and the caller
// reports entries without an id as malformed.
func extractMembers(ctx context.Context, code *gojq.Code, page any) ([]any, error) {
	iter := code.RunWithContext(ctx, page)
	var out []any
	for {
		value, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := value.(error); isErr {
			return nil, fmt.Errorf("failed to evaluate members query: %w", err)
		}
		switch v := value.(type) {
		case []any:
			out = append(out, v...)
		default:
			out = append(out, v)
		}
	}
	return out, nil
}
