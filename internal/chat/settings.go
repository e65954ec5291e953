package chat

import "github.com/guilhermegouw/parley/internal/models"

// Default settings for new chats.
const (
	DefaultDeterminism = 50
	DefaultMaxTokens   = 1024
	DefaultModel       = "gpt-3.5-turbo"
)

// Settings are the per-chat generation parameters.
type Settings struct {
	// Determinism is the UI-facing 0-100 knob, inversely mapped to sampling
	// temperature.
	Determinism int    `json:"determinism"`
	MaxTokens   int64  `json:"max_tokens"`
	Model       string `json:"model"`
	Prompt      string `json:"prompt,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
}

// DefaultSettings returns the settings used for fresh chats.
func DefaultSettings() Settings {
	return Settings{
		Determinism: DefaultDeterminism,
		MaxTokens:   DefaultMaxTokens,
		Model:       DefaultModel,
	}
}

// Temperature maps determinism onto the 0-2 sampling temperature range.
func (s Settings) Temperature() float64 {
	return float64(100-s.clampedDeterminism()) / 100 * 2
}

// EffectiveAPIKey returns the chat override, else the user's default, else "".
func (s Settings) EffectiveAPIKey(user *models.User) string {
	if s.APIKey != "" {
		return s.APIKey
	}
	if user != nil {
		return user.APIKey
	}
	return ""
}

// Normalize clamps determinism and fills missing fields from defaults.
func (s *Settings) Normalize() {
	s.Determinism = s.clampedDeterminism()
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	if s.Model == "" {
		s.Model = DefaultModel
	}
}

func (s Settings) clampedDeterminism() int {
	switch {
	case s.Determinism < 0:
		return 0
	case s.Determinism > 100:
		return 100
	default:
		return s.Determinism
	}
}
