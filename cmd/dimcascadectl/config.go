package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"dimcascade/internal/model"
	cascadeapi "dimcascade/pkg/dimcascade"
)

func loadValidateRequestFromConfig(path string) (cascadeapi.ValidateRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cascadeapi.ValidateRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return cascadeapi.ValidateRequest{}, err
	}

	var req cascadeapi.ValidateRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asIntSlice(raw["grid_sizes"]); ok {
		req.GridSizes = v
	}
	if v, ok := asInt(raw["patterns"]); ok {
		req.Patterns = v
	}
	if v, ok := asString(raw["rule"]); ok {
		req.Rule = model.RuleName(v)
	}
	if v, ok := asInt(raw["steps"]); ok {
		req.Steps = v
	}
	if v, ok := asBool(raw["evolve_embedded"]); ok {
		req.EvolveEmbedded = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	return req, nil
}

func loadOrDefaultValidateRequest(configPath string) (cascadeapi.ValidateRequest, error) {
	if configPath == "" {
		return cascadeapi.ValidateRequest{}, nil
	}
	req, err := loadValidateRequestFromConfig(configPath)
	if err != nil {
		return cascadeapi.ValidateRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	if f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func asIntSlice(v any) ([]int, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, ok := asInt(item)
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}
