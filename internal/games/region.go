package games

import "strings"

// UnknownRegion is reported for server ids missing from the lookup table.
const UnknownRegion = "Unknown"

var regionCodes = map[string]string{
	// genshin
	"os_cht":  "TW",
	"os_asia": "SEA",
	"os_euro": "EU",
	"os_usa":  "NA",
	// star rail
	"prod_official_cht":  "TW",
	"prod_official_asia": "SEA",
	"prod_official_eur":  "EU",
	"prod_official_usa":  "NA",
	// zenless zone zero
	"prod_gf_sg": "TW",
	"prod_gf_jp": "SEA",
	"prod_gf_eu": "EU",
	"prod_gf_us": "NA",
	// honkai impact 3rd
	"overseas01": "SEA",
	"asia01":     "TW",
	"eur01":      "EU",
	"usa01":      "NA",
}

// RegionCode normalizes an upstream server id into a short region label.
func RegionCode(serverID string) string {
	if code, ok := regionCodes[strings.ToLower(strings.TrimSpace(serverID))]; ok {
		return code
	}
	return UnknownRegion
}
