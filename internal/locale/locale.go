// Package locale describes the host the analysis ran on, for report headers.
package locale

import (
	"strings"

	tz "github.com/medama-io/go-timezone-country"
	"github.com/thlib/go-timezone-local/tzlocal"
)

// Host is the detected timezone and, where one applies, its country.
type Host struct {
	Timezone string
	Country  string
}

// String renders the host as "Area/City (Country)", or just the timezone
// when no country is known.
func (h Host) String() string {
	if h.Country == "" {
		return h.Timezone
	}
	return h.Timezone + " (" + h.Country + ")"
}

// Detect returns the host's IANA timezone. Falls back to UTC if detection
// fails.
func Detect() Host {
	timezone, err := tzlocal.RuntimeTZ()
	if err != nil || timezone == "" {
		return Host{Timezone: "UTC"}
	}
	return ForTimezone(timezone)
}

// ForTimezone resolves the country for an IANA timezone.
func ForTimezone(timezone string) Host {
	host := Host{Timezone: timezone}

	// UTC/GMT have no country association
	if timezone == "UTC" || timezone == "GMT" || strings.HasPrefix(timezone, "Etc/") {
		return host
	}

	tzMap, err := tz.NewTimezoneCountryMap()
	if err != nil {
		return host
	}

	country, err := tzMap.GetCountry(timezone)
	if err != nil {
		return host
	}
	host.Country = country
	return host
}
