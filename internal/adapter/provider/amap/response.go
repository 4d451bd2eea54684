package amap

import (
	"bytes"
	"encoding/json"
)

// flexString decodes AMap fields that are usually strings but come back as
// an array when the value is unknown, e.g. city for an IP abroad.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case data[0] == '[':
		// Any array, empty or not, means the value is unknown.
		*f = ""
		return nil
	default:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
}

// apiResponse is implemented by every decoded payload via envelope.
type apiResponse interface {
	ok() bool
	info() string
}

// envelope is the status part shared by every AMap response.
type envelope struct {
	Status   string `json:"status"`
	Info     string `json:"info"`
	InfoCode string `json:"infocode"`
}

func (e envelope) ok() bool { return e.Status == "1" }

// ipResponse is the /v3/ip payload.
type ipResponse struct {
	envelope
	Province flexString `json:"province"`
	City     flexString `json:"city"`
	Adcode   flexString `json:"adcode"`
}

// geocodeResponse is the /v3/geocode/geo payload.
type geocodeResponse struct {
	envelope
	Geocodes []struct {
		Province flexString `json:"province"`
		City     flexString `json:"city"`
		District flexString `json:"district"`
		Adcode   flexString `json:"adcode"`
	} `json:"geocodes"`
}

// weatherResponse is the /v3/weather/weatherInfo payload with extensions=base.
type weatherResponse struct {
	envelope
	Lives []struct {
		Weather       flexString `json:"weather"`
		Temperature   flexString `json:"temperature"`
		WindDirection flexString `json:"winddirection"`
		WindPower     flexString `json:"windpower"`
		Humidity      flexString `json:"humidity"`
		ReportTime    flexString `json:"reporttime"`
	} `json:"lives"`
}

func (e envelope) info() string { return e.Info + " (" + e.InfoCode + ")" }
