package geo_test

import (
	"testing"

	"github.com/SergeiKhy/paylink/internal/geo"
	"github.com/stretchr/testify/assert"
)

func TestStaticResolver(t *testing.T) {
	r := geo.StaticResolver{"203.0.113.7": "DE"}

	assert.Equal(t, "DE", r.ResolveCountry("203.0.113.7"))
	assert.Equal(t, geo.Unknown, r.ResolveCountry("198.51.100.1"))
}

func TestNewGeoIPResolver_MissingFile(t *testing.T) {
	_, err := geo.NewGeoIPResolver("/nonexistent/GeoLite2-Country.mmdb")
	assert.Error(t, err)
}

func TestDetectDevice(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{"", geo.Unknown},
		{"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", geo.DeviceBot},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1", geo.DeviceMobile},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36", geo.DeviceDesktop},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, geo.DetectDevice(tt.ua), "ua %q", tt.ua)
	}
}
