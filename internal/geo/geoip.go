// Package geo enriches clicks with a country code and a device class.
package geo

import (
	"net"

	geoip2 "github.com/oschwald/geoip2-golang"
)

// Unknown is returned whenever a lookup cannot produce a value.
const Unknown = "Unknown"

// CountryResolver maps an IP to an ISO country code or Unknown.
type CountryResolver interface {
	ResolveCountry(ip string) string
}

// GeoIPResolver resolves IP addresses to country codes using a GeoIP2 database.
type GeoIPResolver struct {
	db *geoip2.Reader
}

// NewGeoIPResolver opens the database at dbPath.
func NewGeoIPResolver(dbPath string) (*GeoIPResolver, error) {
	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &GeoIPResolver{db: db}, nil
}

func (g *GeoIPResolver) Close() error {
	return g.db.Close()
}

// ResolveCountry returns Unknown for private, invalid or unmapped IPs.
func (g *GeoIPResolver) ResolveCountry(ipStr string) string {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return Unknown
	}

	record, err := g.db.Country(ip)
	if err != nil || record.Country.IsoCode == "" {
		return Unknown
	}

	return record.Country.IsoCode
}

// StaticResolver is used when no GeoIP database is configured, and in tests.
type StaticResolver map[string]string

func (s StaticResolver) ResolveCountry(ip string) string {
	if code, ok := s[ip]; ok {
		return code
	}
	return Unknown
}
