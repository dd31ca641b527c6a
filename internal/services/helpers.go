package services

import (
	"context"
	"strings"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// likeEscape is the escape character used by likePattern; queries add ESCAPE '!'.
const likeEscape = "!"

// likePattern escapes LIKE wildcards in value and wraps it for a lower-cased substring match.
func likePattern(value string) string {
	escaped := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(strings.ToLower(value))
	return "%" + escaped + "%"
}
