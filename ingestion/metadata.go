package ingestion

import (
	"strings"

	"github.com/poiesic/machinerag/core"
)

// Alias keys per machine field, in priority order. The first alias that
// matches any fact wins.
var (
	machineIDAliases = []string{
		"id", "@id", "machine_id", "machineid", "serial_number", "serialnumber", "serial", "asset_id", "equipment_id",
	}
	machineNameAliases = []string{
		"name", "machine_name", "machinename", "model_name", "modelname", "label", "title", "designation",
	}
	machineVersionAliases = []string{
		"version", "machine_version", "firmware_version", "firmwareversion", "software_version", "revision", "model_version",
	}
	machineValidFromAliases = []string{
		"valid_from", "validfrom", "validity_start", "valid_since", "commissioning_date", "commissioned", "start_date",
	}
	machineValidToAliases = []string{
		"valid_to", "validto", "valid_until", "validity_end", "decommissioning_date", "decommissioned", "end_date",
	}
)

// ExtractMachineMeta derives machine metadata from normalized facts.
// Keys are compared by their last path segment, without property member
// suffixes, case-insensitively; among facts with the same segment the least
// nested wins. A field with no matching fact stays empty.
func ExtractMachineMeta(facts []core.NormalizedFact) core.MachineMeta {
	type match struct {
		value string
		depth int
	}
	byKey := make(map[string]match, len(facts))
	for _, f := range facts {
		key := leafKey(f.Key)
		if key == "" || f.Value == "" {
			continue
		}
		depth := strings.Count(f.Key, ".")
		// shallower keys describe the machine itself rather than a part
		if m, ok := byKey[key]; !ok || depth < m.depth {
			byKey[key] = match{value: f.Value, depth: depth}
		}
	}

	first := func(aliases []string) string {
		for _, alias := range aliases {
			if m, ok := byKey[alias]; ok {
				return m.value
			}
		}
		return ""
	}

	return core.MachineMeta{
		ID:         first(machineIDAliases),
		Name:       first(machineNameAliases),
		Version:    first(machineVersionAliases),
		ValidFrom:  first(machineValidFromAliases),
		ValidUntil: first(machineValidToAliases),
	}
}

// leafKey returns the last path segment of a fact key. Property member
// facts (key__unit and friends) return "" so only values match, and array
// indices are skipped.
func leafKey(key string) string {
	if strings.Contains(key, "__") {
		return ""
	}
	parts := strings.Split(key, ".")
	for i := len(parts) - 1; i >= 0; i-- {
		if !isIndex(parts[i]) {
			return strings.ToLower(parts[i])
		}
	}
	return ""
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
