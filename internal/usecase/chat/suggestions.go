package chat

import (
	"github.com/infinitum-cloud/infinitum/internal/domain/search/resultset"
	"github.com/infinitum-cloud/infinitum/internal/usecase/intent"
)

// MaxSuggestions bounds the follow-up suggestions per response.
const MaxSuggestions = 3

// suggestions builds follow-up prompts from the extracted intent and the
// result set. Heuristic on purpose: suggestions must work even when the
// model is down.
func suggestions(it intent.Intent, rs resultset.ResultSet) []string {
	out := make([]string, 0, MaxSuggestions)

	for _, hint := range it.CategoryHints {
		if len(out) == MaxSuggestions {
			return out
		}
		out = append(out, "Show me more "+hint)
	}

	if rs.Len() > 0 && len(out) < MaxSuggestions {
		if brand := rs.Items()[0].Attr("brand"); brand != "" {
			out = append(out, "Only show "+brand+" products")
		}
	}
	if rs.Len() > 1 && len(out) < MaxSuggestions {
		out = append(out, "Sort these by price")
	}
	if rs.Len() == 0 && len(out) < MaxSuggestions {
		out = append(out, "Try a broader search")
	}
	return out
}
