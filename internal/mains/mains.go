// Package mains resolves the mains hum frequency notched out of clinical
// recordings. The frequency follows the country of the system timezone unless
// the user names one.
package mains

import (
	"fmt"
	"strconv"
	"strings"

	tz "github.com/medama-io/go-timezone-country"
	"github.com/thlib/go-timezone-local/tzlocal"

	"github.com/linuxmatters/clinivox/internal/config"
)

// DefaultHz is used when the timezone has no country or lookup fails.
// 50 Hz is the more common standard worldwide.
const DefaultHz = 50

// Detection is the outcome of a hum frequency lookup.
type Detection struct {
	Hz       int
	Timezone string
	Country  string // empty when the timezone has no country
}

func (d Detection) String() string {
	if d.Country == "" {
		return fmt.Sprintf("%d Hz (%s)", d.Hz, d.Timezone)
	}
	return fmt.Sprintf("%d Hz (%s, %s)", d.Hz, d.Country, d.Timezone)
}

// Detect looks up the mains frequency for the system timezone.
func Detect() Detection {
	timezone, err := tzlocal.RuntimeTZ()
	if err != nil {
		return Detection{Hz: DefaultHz, Timezone: "unknown"}
	}
	return ForTimezone(timezone)
}

// ForTimezone looks up the mains frequency for an IANA timezone name.
func ForTimezone(timezone string) Detection {
	d := Detection{Hz: DefaultHz, Timezone: timezone}
	if timezone == "UTC" || timezone == "GMT" || strings.HasPrefix(timezone, "Etc/") {
		return d
	}

	tzMap, err := tz.NewTimezoneCountryMap()
	if err != nil {
		return d
	}
	country, err := tzMap.GetCountry(timezone)
	if err != nil {
		return d
	}
	d.Country = country
	d.Hz = frequencyForCountry(country)
	return d
}

// Resolve turns a hum setting into a notch frequency. The setting is "auto"
// (detect from the timezone), "off", "50" or "60". Zero means no notch.
func Resolve(setting string, detect func() Detection) (float64, error) {
	switch s := strings.ToLower(strings.TrimSpace(setting)); s {
	case "", "auto":
		if detect == nil {
			detect = Detect
		}
		return float64(detect().Hz), nil
	case "off", "none", "0":
		return 0, nil
	default:
		hz, err := strconv.Atoi(strings.TrimSuffix(s, "hz"))
		if err != nil || (hz != 50 && hz != 60) {
			return 0, fmt.Errorf("invalid hum setting %q: want auto, off, 50 or 60", setting)
		}
		return float64(hz), nil
	}
}

// Apply sets the equaliser hum notch in cfg from setting.
func Apply(cfg *config.Config, setting string, detect func() Detection) error {
	hz, err := Resolve(setting, detect)
	if err != nil {
		return err
	}
	cfg.Equaliser.HumHz = hz
	return nil
}

// frequencyForCountry returns the mains frequency for a country name.
// Returns DefaultHz for unknown countries.
func frequencyForCountry(country string) int {
	// Japan is split 50/60 Hz by region; the Tokyo side is the more populous.
	if country == "Japan" {
		return 50
	}
	if hz60Countries[country] {
		return 60
	}
	return DefaultHz
}

// hz60Countries lists countries using 60Hz mains power.
// All other countries use 50Hz.
// Source: https://en.wikipedia.org/wiki/Mains_electricity_by_country
var hz60Countries = map[string]bool{
	// North America
	"United States": true,
	"Canada":        true,
	"Mexico":        true,

	// Central America
	"Belize":      true,
	"Costa Rica":  true,
	"El Salvador": true,
	"Guatemala":   true,
	"Honduras":    true,
	"Nicaragua":   true,
	"Panama":      true,

	// Caribbean
	"Bahamas":             true,
	"Barbados":            true,
	"Cayman Islands":      true,
	"Cuba":                true,
	"Dominican Republic":  true,
	"Haiti":               true,
	"Jamaica":             true,
	"Puerto Rico":         true,
	"Trinidad and Tobago": true,
	"U.S. Virgin Islands": true,

	// South America (partial, most use 50Hz)
	"Brazil":    true, // Note: Brazil has both 50Hz and 60Hz regions; 60Hz predominant
	"Colombia":  true,
	"Ecuador":   true,
	"Guyana":    true,
	"Peru":      true,
	"Suriname":  true,
	"Venezuela": true,

	// Asia (partial)
	"South Korea":  true,
	"Taiwan":       true,
	"Philippines":  true,
	"Saudi Arabia": true,

	// Pacific
	"Guam":             true,
	"American Samoa":   true,
	"Marshall Islands": true,
	"Micronesia":       true,
	"Palau":            true,
}
