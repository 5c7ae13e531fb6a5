package retrieve

import "freshness/internal/config"

// Allocate merges web and document contexts under a split character
// budget, truncating or skipping individual contexts to fit. Ordering
// within each class is preserved; web contexts precede document contexts
// in the returned slice.
func Allocate(webContexts, docContexts []SourceContext, cfg config.ContextBudgetConfig) []SourceContext {
	total := cfg.TotalBudget
	webBudget := int(float64(total) * cfg.WebBudgetFraction)
	docBudget := total - webBudget

	var out []SourceContext

	webUsed := 0
	for _, c := range webContexts {
		text := c.Text
		if cfg.WebMaxChars > 0 && len(text) > cfg.WebMaxChars {
			text = text[:cfg.WebMaxChars]
		}
		if webUsed+len(text) > webBudget {
			continue
		}
		webUsed += len(text)
		c.Text = text
		out = append(out, c)
	}

	// Unused web budget is folded into the document budget.
	docBudget += webBudget - webUsed

	minUseful := cfg.MinUsefulDocChunk
	if minUseful <= 0 {
		minUseful = 200
	}

	docUsed := 0
	for _, c := range docContexts {
		remaining := docBudget - docUsed
		if remaining < minUseful {
			break
		}
		text := c.Text
		if cfg.DocMaxChars > 0 && len(text) > cfg.DocMaxChars {
			text = text[:cfg.DocMaxChars]
		}
		if len(text) > remaining {
			text = text[:remaining]
		}
		docUsed += len(text)
		c.Text = text
		out = append(out, c)
	}

	return out
}
