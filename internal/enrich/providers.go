package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Default provider endpoints.
const (
	DefaultWeatherURL = "https://api.open-meteo.com"
	DefaultGeocodeURL = "https://nominatim.openstreetmap.org"
)

// OpenMeteo reads current conditions from the Open-Meteo forecast API.
type OpenMeteo struct {
	base string
	http *httpJSON
}

// NewOpenMeteo constructs a weather source; client may be nil.
func NewOpenMeteo(base string, client *http.Client, log *zap.Logger) *OpenMeteo {
	if base == "" {
		base = DefaultWeatherURL
	}
	return &OpenMeteo{base: strings.TrimRight(base, "/"), http: newHTTPJSON("open-meteo", client, "", log)}
}

type openMeteoResponse struct {
	Current *struct {
		Temperature float64 `json:"temperature_2m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

// Current implements WeatherSource.
func (o *OpenMeteo) Current(ctx context.Context, p Position) (Weather, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(p.Lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(p.Lon, 'f', 4, 64))
	q.Set("current", "temperature_2m,weather_code")

	var r openMeteoResponse
	if err := o.http.get(ctx, o.base+"/v1/forecast?"+q.Encode(), &r); err != nil {
		return Weather{}, fmt.Errorf("open-meteo: %w", err)
	}
	if r.Current == nil {
		return Weather{}, errors.New("open-meteo: no current conditions")
	}
	return Weather{
		Code:       r.Current.WeatherCode,
		Descriptor: DescribeWMO(r.Current.WeatherCode),
		TempC:      r.Current.Temperature,
	}, nil
}

// DescribeWMO maps a WMO weather interpretation code to a short descriptor.
func DescribeWMO(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code == 1 || code == 2:
		return "partly cloudy"
	case code == 3:
		return "overcast"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67, code >= 80 && code <= 82:
		return "rain"
	case code >= 71 && code <= 77, code == 85 || code == 86:
		return "snow"
	case code >= 95 && code <= 99:
		return "thunderstorm"
	default:
		return "unknown"
	}
}

// Nominatim resolves place names via the OpenStreetMap reverse geocoder.
type Nominatim struct {
	base string
	http *httpJSON
}

// NewNominatim constructs a geocoder; userAgent identifies the application as
// the service's usage policy requires.
func NewNominatim(base, userAgent string, client *http.Client, log *zap.Logger) *Nominatim {
	if base == "" {
		base = DefaultGeocodeURL
	}
	if userAgent == "" {
		userAgent = "journeyvault"
	}
	return &Nominatim{base: strings.TrimRight(base, "/"), http: newHTTPJSON("nominatim", client, userAgent, log)}
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

// PlaceName implements Geocoder.
func (n *Nominatim) PlaceName(ctx context.Context, p Position) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', 5, 64))
	q.Set("lon", strconv.FormatFloat(p.Lon, 'f', 5, 64))
	q.Set("zoom", "10")

	var r nominatimResponse
	if err := n.http.get(ctx, n.base+"/reverse?"+q.Encode(), &r); err != nil {
		return "", fmt.Errorf("nominatim: %w", err)
	}
	local := firstNonEmpty(r.Address.City, r.Address.Town, r.Address.Village, r.Address.State)
	switch {
	case local != "" && r.Address.Country != "":
		return local + ", " + r.Address.Country, nil
	case local != "":
		return local, nil
	case r.DisplayName != "":
		return r.DisplayName, nil
	default:
		return "", errors.New("nominatim: no place name")
	}
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
