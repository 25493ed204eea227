package audit

import (
	"net"

	"authguard/internal/models"

	"github.com/oschwald/geoip2-golang"
)

// GeoLocator resolves an IP address to a coarse location. It returns nil
// when nothing is known.
type GeoLocator interface {
	Lookup(ip string) *models.Location
}

// NoopLocator never resolves anything
type NoopLocator struct{}

func (NoopLocator) Lookup(string) *models.Location { return nil }

// MaxMindLocator reads a GeoLite2/GeoIP2 City database
type MaxMindLocator struct {
	db *geoip2.Reader
}

// OpenMaxMind opens the database at path
func OpenMaxMind(path string) (*MaxMindLocator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &MaxMindLocator{db: db}, nil
}

func (l *MaxMindLocator) Lookup(ip string) *models.Location {
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() {
		return nil
	}

	record, err := l.db.City(parsed)
	if err != nil || record.Country.IsoCode == "" {
		return nil
	}

	return &models.Location{
		Country:   record.Country.IsoCode,
		City:      record.City.Names["en"],
		Latitude:  record.Location.Latitude,
		Longitude: record.Location.Longitude,
	}
}

// Close releases the database
func (l *MaxMindLocator) Close() error {
	return l.db.Close()
}
