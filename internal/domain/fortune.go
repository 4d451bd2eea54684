package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FortuneFields is the structured part of a model reply.
type FortuneFields struct {
	OverallRating        int
	HealthFortune        string
	HealthSuggestion     string
	WealthFortune        string
	InterpersonalFortune string
	LuckyColor           string
	ActionSuggestion     string
}

// Fortune is the persisted daily forecast. At most one exists per
// (UserID, FortuneDate).
type Fortune struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	FortuneDate time.Time
	FortuneFields

	// RawAIResponse keeps the model output and the context it was given for
	// audit. Nothing reads it back.
	RawAIResponse json.RawMessage
	CreatedAt     time.Time
}

// ClampRating returns the rating forced into [lo, hi].
func ClampRating(rating, lo, hi int) int {
	return max(lo, min(rating, hi))
}

// LocationInfo is a resolved administrative area.
type LocationInfo struct {
	Province   string `json:"province"`
	City       string `json:"city"`
	RegionCode string `json:"regionCode"`
}

// Display renders the location the way it appears in prompts: the city alone
// for municipalities (province equals city), otherwise province then city.
func (l LocationInfo) Display() string {
	if l.Province == l.City || l.Province == "" {
		return l.City
	}
	return l.Province + l.City
}

// WeatherSnapshot is the current observation for a region.
type WeatherSnapshot struct {
	Condition       string `json:"condition"`
	TemperatureC    string `json:"temperatureC"`
	WindDirection   string `json:"windDirection"`
	WindPower       string `json:"windPower"`
	HumidityPercent string `json:"humidityPercent"`
	ReportTime      string `json:"reportTime"`
}

// Display renders the weather as a single prompt line.
func (w WeatherSnapshot) Display() string {
	return fmt.Sprintf("%s，气温%s°C，%s风%s级，湿度%s%%",
		w.Condition, w.TemperatureC, w.WindDirection, w.WindPower, w.HumidityPercent)
}

// FortuneContext bundles the time, place and weather used to enrich a prompt.
// Location and Weather are nil when they could not be resolved.
type FortuneContext struct {
	Time     time.Time
	Location *LocationInfo
	Weather  *WeatherSnapshot
	// Note explains where the location came from, e.g. the user's birth place.
	Note string
}
