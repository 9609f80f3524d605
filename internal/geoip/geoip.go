// Package geoip resolves client IPs to ISO country codes for analytics
// enrichment. It reads a MaxMind GeoIP2 database, with a JSON CIDR table as
// a fallback for environments without the .mmdb file.
package geoip

import (
	"encoding/json"
	"net"
	"os"

	"github.com/oschwald/geoip2-golang"
)

// GeoIP provides country lookup using a MaxMind DB or a JSON fallback.
type GeoIP struct {
	db       *geoip2.Reader
	fallback []record
}

type record struct {
	net     *net.IPNet
	country string
}

// Init opens the GeoIP2 database located at path. When the file is not a
// valid MaxMind database it is retried as a JSON array of
// {"net": "cidr", "country": "CC"} entries.
func Init(path string) (*GeoIP, error) {
	g := &GeoIP{}
	db, err := geoip2.Open(path)
	if err == nil {
		g.db = db
		return g, nil
	}

	data, jerr := os.ReadFile(path)
	if jerr != nil {
		return nil, err
	}
	var entries []struct {
		Net     string `json:"net"`
		Country string `json:"country"`
	}
	if jerr = json.Unmarshal(data, &entries); jerr != nil {
		return nil, err
	}
	for _, e := range entries {
		if _, n, perr := net.ParseCIDR(e.Net); perr == nil {
			g.fallback = append(g.fallback, record{net: n, country: e.Country})
		}
	}
	return g, nil
}

// Country returns the ISO country code for the given IP. If the IP is not
// found or the database hasn't been initialised, an empty string is returned.
func (g *GeoIP) Country(ip net.IP) string {
	if g == nil || ip == nil {
		return ""
	}
	if g.db != nil {
		if rec, err := g.db.Country(ip); err == nil {
			return rec.Country.IsoCode
		}
	}
	for _, r := range g.fallback {
		if r.net.Contains(ip) {
			return r.country
		}
	}
	return ""
}

// Close releases the underlying MaxMind reader, if any.
func (g *GeoIP) Close() error {
	if g != nil && g.db != nil {
		return g.db.Close()
	}
	return nil
}
