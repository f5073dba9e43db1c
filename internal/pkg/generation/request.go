package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/snapdeckhq/snapdeck-api/app/models"
)

// Overrides are the caller-supplied knobs on top of a feature's default
// parameter template. The style controls compete for the same slot: an
// explicit color beats a preset, a preset beats a free-text prompt. A model
// variant swaps the model id without touching the parameter payload.
type Overrides struct {
	PresetID     string `json:"preset_id"`
	Prompt       string `json:"prompt"`
	Color        string `json:"color"`
	ModelVariant string `json:"model_variant"`
}

// buildRequest merges the feature defaults with the caller overrides and
// returns the provider input map, its canonical JSON form (the duplicate-check
// key) and the effective model id. Map marshaling sorts keys, so identical
// requests always produce identical JSON.
func buildRequest(cfg *models.FeatureConfig, inputURL string, ov Overrides) (map[string]interface{}, string, string, error) {
	params := make(map[string]interface{})
	if strings.TrimSpace(cfg.DefaultParamsJSON) != "" {
		if err := json.Unmarshal([]byte(cfg.DefaultParamsJSON), &params); err != nil {
			return nil, "", "", fmt.Errorf("feature %s has malformed default params: %w", cfg.FeatureKey, err)
		}
	}

	params["image"] = inputURL

	switch {
	case strings.TrimSpace(ov.Color) != "":
		params["color"] = ov.Color
		delete(params, "preset")
		delete(params, "prompt")
	case strings.TrimSpace(ov.PresetID) != "":
		params["preset"] = ov.PresetID
		delete(params, "prompt")
	case strings.TrimSpace(ov.Prompt) != "":
		params["prompt"] = ov.Prompt
	}

	modelID := cfg.ModelID
	if strings.TrimSpace(ov.ModelVariant) != "" {
		modelID = ov.ModelVariant
	}

	canonical, err := json.Marshal(params)
	if err != nil {
		return nil, "", "", err
	}
	return params, string(canonical), modelID, nil
}
