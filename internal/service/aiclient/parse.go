package aiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/heartmarshall/nfc-fortune-backend/internal/domain"
)

// Reply keys requested by the prompt.
const (
	keyOverallRating        = "overallRating"
	keyHealthFortune        = "healthFortune"
	keyHealthSuggestion     = "healthSuggestion"
	keyWealthFortune        = "wealthFortune"
	keyInterpersonalFortune = "interpersonalFortune"
	keyLuckyColor           = "luckyColor"
	keyActionSuggestion     = "actionSuggestion"
)

var errNoObject = errors.New("no JSON object found")

// Parse extracts the fortune fields from a model reply. The text is first
// decoded as is; if that fails, code fences and surrounding commentary are
// removed and the span from the first '{' to the last '}' is decoded.
// The returned raw message is the decoded object, compacted.
func Parse(text string) (domain.FortuneFields, json.RawMessage, error) {
	fields, raw, err := decodeReply([]byte(text))
	if err == nil {
		return fields, raw, nil
	}

	repaired, ok := extractObject(text)
	if !ok {
		return domain.FortuneFields{}, nil, fmt.Errorf("%w (first pass: %v)", errNoObject, err)
	}

	fields, raw, err2 := decodeReply([]byte(repaired))
	if err2 != nil {
		return domain.FortuneFields{}, nil, fmt.Errorf("repaired reply: %w", err2)
	}
	return fields, raw, nil
}

func extractObject(text string) (string, bool) {
	s := strings.TrimSpace(text)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func decodeReply(data []byte) (domain.FortuneFields, json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return domain.FortuneFields{}, nil, err
	}
	if obj == nil {
		return domain.FortuneFields{}, nil, errors.New("reply is null")
	}

	rating, err := decodeRating(obj[keyOverallRating])
	if err != nil {
		return domain.FortuneFields{}, nil, err
	}

	var f domain.FortuneFields
	f.OverallRating = rating

	targets := []struct {
		key string
		dst *string
	}{
		{keyHealthFortune, &f.HealthFortune},
		{keyHealthSuggestion, &f.HealthSuggestion},
		{keyWealthFortune, &f.WealthFortune},
		{keyInterpersonalFortune, &f.InterpersonalFortune},
		{keyLuckyColor, &f.LuckyColor},
		{keyActionSuggestion, &f.ActionSuggestion},
	}
	for _, t := range targets {
		raw, ok := obj[t.key]
		if !ok {
			return domain.FortuneFields{}, nil, fmt.Errorf("missing key %q", t.key)
		}
		if err := json.Unmarshal(raw, t.dst); err != nil {
			return domain.FortuneFields{}, nil, fmt.Errorf("key %q: %w", t.key, err)
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return domain.FortuneFields{}, nil, err
	}
	return f, compact.Bytes(), nil
}

// decodeRating accepts a JSON number or a numeric string and rounds
// fractional values to the nearest integer.
func decodeRating(raw json.RawMessage) (int, error) {
	if raw == nil {
		return 0, fmt.Errorf("missing key %q", keyOverallRating)
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, fmt.Errorf("key %q: not a number", keyOverallRating)
		}
		num = json.Number(strings.TrimSpace(s))
	}

	v, err := strconv.ParseFloat(num.String(), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("key %q: not a number", keyOverallRating)
	}
	v = math.Round(v)
	// The column is a 32-bit INTEGER.
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("key %q: not a number", keyOverallRating)
	}
	return int(v), nil
}
