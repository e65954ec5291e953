package config

import "github.com/charmbracelet/catwalk/pkg/catwalk"

// DefaultModels is the catalog used when the configuration names none.
// Prices are USD per million tokens.
func DefaultModels() []catwalk.Model {
	return []catwalk.Model{
		{
			ID:               "gpt-3.5-turbo",
			Name:             "GPT-3.5 Turbo",
			ContextWindow:    4096,
			DefaultMaxTokens: 1024,
			CostPer1MIn:      2.0,
			CostPer1MOut:     2.0,
		},
		{
			ID:               "gpt-4",
			Name:             "GPT-4",
			ContextWindow:    8192,
			DefaultMaxTokens: 1024,
			CostPer1MIn:      60.0,
			CostPer1MOut:     60.0,
		},
	}
}

// EstimateCost prices a reply from its token counts using the catalog
// entry for model. Unknown models cost nothing.
func (c *Config) EstimateCost(model string, promptTokens, completionTokens int64) float64 {
	m := c.GetModel(model)
	if m == nil {
		return 0
	}
	return (float64(promptTokens)*m.CostPer1MIn + float64(completionTokens)*m.CostPer1MOut) / 1e6
}

// mergeModels overlays src onto dst by model ID, keeping dst's order and
// appending new entries.
func mergeModels(dst, src []catwalk.Model) []catwalk.Model {
	index := make(map[string]int, len(dst))
	for i := range dst {
		index[dst[i].ID] = i
	}
	for i := range src {
		if j, ok := index[src[i].ID]; ok {
			dst[j] = src[i]
			continue
		}
		index[src[i].ID] = len(dst)
		dst = append(dst, src[i])
	}
	return dst
}
