package aiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_DirectObject(t *testing.T) {
	t.Parallel()

	f, raw, err := Parse(validReply)

	require.NoError(t, err)
	assert.Equal(t, 4, f.OverallRating)
	assert.Equal(t, "精神饱满", f.HealthFortune)
	assert.Equal(t, "多喝温水", f.HealthSuggestion)
	assert.Equal(t, "稳中有进", f.WealthFortune)
	assert.Equal(t, "人缘不错", f.InterpersonalFortune)
	assert.Equal(t, "午后散步", f.ActionSuggestion)
	assert.JSONEq(t, validReply, string(raw))
}

func TestParse_FencedWithCommentary(t *testing.T) {
	t.Parallel()

	text := "以下是今日运势：\n```json\n" + validReply + "\n```\n祝您愉快！"

	f, raw, err := Parse(text)

	require.NoError(t, err)
	assert.Equal(t, 4, f.OverallRating)
	assert.JSONEq(t, validReply, string(raw))
}

func TestParse_Rating(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rating  string
		want    int
		wantErr bool
	}{
		{"integer", `5`, 5, false},
		{"fraction rounds", `3.6`, 4, false},
		{"numeric string", `"3"`, 3, false},
		{"out of range kept", `9`, 9, false},
		{"word", `"high"`, 0, true},
		{"null", `null`, 0, true},
		{"huge exponent", `1e300`, 0, true},
		{"beyond int32", `3000000000`, 0, true},
		{"below int32", `-3000000000`, 0, true},
		{"huge string", `"1e300"`, 0, true},
		{"negative kept", `-2`, -2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			text := `{"overallRating":` + tt.rating + `,"healthFortune":"a","healthSuggestion":"b",` +
				`"wealthFortune":"c","interpersonalFortune":"d","luckyColor":"e","actionSuggestion":"f"}`

			f, _, err := Parse(text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.OverallRating)
		})
	}
}

func TestParse_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"no braces", "今天运势很好"},
		{"unbalanced", "```json\n{\"overallRating\": 4, \"healthFortune\": \"x\"\n```"},
		{"missing key", `{"overallRating":4,"healthFortune":"a"}`},
		{"wrong type", `{"overallRating":4,"healthFortune":1,"healthSuggestion":"b","wealthFortune":"c",` +
			`"interpersonalFortune":"d","luckyColor":"e","actionSuggestion":"f"}`},
		{"array", `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := Parse(tt.text)
			assert.Error(t, err)
		})
	}
}
