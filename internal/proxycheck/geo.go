package proxycheck

import (
	"context"
	"net"
	"net/netip"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang/v2"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cloakbench/api/schemas"
)

// DefaultTimezone is the last-resort zone when nothing about the proxy exit
// node can be determined.
const DefaultTimezone = "America/Los_Angeles"

// Exit describes the proxy exit node as far as it could be determined.
type Exit struct {
	Hostname string
	IP       string
	Timezone string
	City     string
	Country  string
	Method   string // geoip | hostname_hint | country_default | default
}

// Geolocation converts the exit into the override handed to the browser.
// Coordinates come from the timezone's anchor city so the geolocation never
// contradicts the spoofed timezone; zones without an anchor get no override.
func (e Exit) Geolocation() *schemas.Geolocation {
	coords, ok := timezoneCoords[e.Timezone]
	if !ok {
		return nil
	}
	return &schemas.Geolocation{Latitude: coords[0], Longitude: coords[1], Accuracy: 100}
}

// timezoneCoords anchors each supported zone to its major city center.
var timezoneCoords = map[string][2]float64{
	"America/Los_Angeles": {34.0522, -118.2437},
	"America/New_York":    {40.7128, -74.0060},
	"America/Chicago":     {41.8781, -87.6298},
	"America/Denver":      {39.7392, -104.9903},
	"America/Phoenix":     {33.4484, -112.0740},
	"America/Toronto":     {43.6532, -79.3832},
	"America/Vancouver":   {49.2827, -123.1207},
	"Europe/London":       {51.5074, -0.1278},
	"Europe/Paris":        {48.8566, 2.3522},
	"Europe/Berlin":       {52.5200, 13.4050},
	"Asia/Tokyo":          {35.6762, 139.6503},
	"Asia/Singapore":      {1.3521, 103.8198},
	"Asia/Hong_Kong":      {22.3193, 114.1694},
}

// hostnamePatterns maps datacenter naming conventions to zones, checked in
// order so the more specific tokens win.
var hostnamePatterns = []struct {
	token string
	tz    string
}{
	{"newyork", "America/New_York"},
	{"nyc", "America/New_York"},
	{"virginia", "America/New_York"},
	{"losangeles", "America/Los_Angeles"},
	{"california", "America/Los_Angeles"},
	{"sanfrancisco", "America/Los_Angeles"},
	{"seattle", "America/Los_Angeles"},
	{"chicago", "America/Chicago"},
	{"dallas", "America/Chicago"},
	{"texas", "America/Chicago"},
	{"denver", "America/Denver"},
	{"phoenix", "America/Phoenix"},
	{"london", "Europe/London"},
	{"paris", "Europe/Paris"},
	{"berlin", "Europe/Berlin"},
	{"frankfurt", "Europe/Berlin"},
	{"amsterdam", "Europe/Amsterdam"},
	{"tokyo", "Asia/Tokyo"},
	{"singapore", "Asia/Singapore"},
	{"hongkong", "Asia/Hong_Kong"},
	{"sydney", "Australia/Sydney"},
	{"east", "America/New_York"},
	{"west", "America/Los_Angeles"},
	{"central", "America/Chicago"},
	{"mountain", "America/Denver"},
}

var countryTimezones = map[string]string{
	"US": "America/New_York",
	"CA": "America/Toronto",
	"GB": "Europe/London",
	"DE": "Europe/Berlin",
	"FR": "Europe/Paris",
	"IT": "Europe/Rome",
	"ES": "Europe/Madrid",
	"NL": "Europe/Amsterdam",
	"SE": "Europe/Stockholm",
	"PL": "Europe/Warsaw",
	"JP": "Asia/Tokyo",
	"CN": "Asia/Shanghai",
	"KR": "Asia/Seoul",
	"SG": "Asia/Singapore",
	"HK": "Asia/Hong_Kong",
	"IN": "Asia/Kolkata",
	"AU": "Australia/Sydney",
	"BR": "America/Sao_Paulo",
	"MX": "America/Mexico_City",
	"AE": "Asia/Dubai",
}

// GeoResolver determines the proxy exit geography. The GeoLite2-City
// database is optional; without it the hostname-hint and default chains still
// produce a usable timezone. Results are cached per hostname.
type GeoResolver struct {
	db     *geoip2.Reader
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]Exit
}

// NewGeoResolver opens the City database at dbPath when non-empty. A missing
// or unreadable database degrades the resolver, it does not fail it.
func NewGeoResolver(dbPath string, logger *zap.Logger) *GeoResolver {
	r := &GeoResolver{
		logger: logger.Named("proxygeo"),
		cache:  make(map[string]Exit),
	}
	if dbPath == "" {
		return r
	}
	db, err := geoip2.Open(dbPath)
	if err != nil {
		r.logger.Warn("GeoIP database unavailable, falling back to hostname hints.",
			zap.String("path", dbPath), zap.Error(err))
		return r
	}
	r.db = db
	return r
}

// Close releases the database handle.
func (r *GeoResolver) Close() {
	if r.db != nil {
		_ = r.db.Close()
	}
}

// Resolve walks the fallback chain for one proxy spec: DNS, then GeoIP, then
// hostname hints, then the country default, then the static default.
func (r *GeoResolver) Resolve(ctx context.Context, spec Spec) Exit {
	r.mu.Lock()
	if cached, ok := r.cache[spec.Host]; ok {
		r.mu.Unlock()
		return cached
	}
	r.mu.Unlock()

	exit := Exit{Hostname: spec.Host}
	exit.IP = r.resolveIP(ctx, spec.Host)

	if !r.applyGeoIP(&exit) {
		if tz, ok := timezoneFromHostname(spec.Host); ok {
			exit.Timezone = tz
			exit.Method = "hostname_hint"
		} else {
			exit.Timezone = DefaultTimezone
			exit.Method = "default"
		}
	}

	r.logger.Info("Proxy exit resolved.",
		zap.String("host", exit.Hostname),
		zap.String("ip", exit.IP),
		zap.String("timezone", exit.Timezone),
		zap.String("method", exit.Method))

	r.mu.Lock()
	r.cache[spec.Host] = exit
	r.mu.Unlock()
	return exit
}

func (r *GeoResolver) resolveIP(ctx context.Context, host string) string {
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.String()
	}
	resolver := net.Resolver{}
	addrs, err := resolver.LookupHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		r.logger.Warn("Proxy DNS resolution failed.", zap.String("host", host), zap.Error(err))
		return ""
	}
	return addrs[0]
}

// applyGeoIP fills the exit from the City database. Reports false when the
// database or the record cannot supply a timezone, directly or via the
// country default.
func (r *GeoResolver) applyGeoIP(exit *Exit) bool {
	if r.db == nil || exit.IP == "" {
		return false
	}
	addr, err := netip.ParseAddr(exit.IP)
	if err != nil {
		return false
	}
	record, err := r.db.City(addr)
	if err != nil {
		r.logger.Debug("GeoIP lookup failed.", zap.String("ip", exit.IP), zap.Error(err))
		return false
	}

	exit.City = record.City.Names.English
	exit.Country = record.Country.ISOCode

	if tz := record.Location.TimeZone; tz != "" {
		exit.Timezone = tz
		exit.Method = "geoip"
		return true
	}
	if tz, ok := countryTimezones[record.Country.ISOCode]; ok {
		exit.Timezone = tz
		exit.Method = "country_default"
		return true
	}
	return false
}

func timezoneFromHostname(host string) (string, bool) {
	h := strings.ToLower(host)
	for _, p := range hostnamePatterns {
		if strings.Contains(h, p.token) {
			return p.tz, true
		}
	}
	return "", false
}
