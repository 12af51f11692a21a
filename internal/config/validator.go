package config

import (
	"fmt"
	"strings"

	"github.com/dohiam/BLE-protocols/internal/addrbook"
)

// Validate checks the config for:
//   - A required version string and nonzero engine capacity
//   - Duplicate roster addresses (by parsed bytes, not raw text, so
//     "06:05:04:03:02:01" and "060504030201" collide)
//   - Duplicate catalog UUIDs
//   - Required fields on every roster/catalog entry
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	if cfg.Engine.RuleCapacity <= 0 {
		return fmt.Errorf("config: engine.rule_capacity must be positive")
	}

	var errs []string

	seenAddrs := make(map[addrbook.Addr]string)
	for i, r := range cfg.Roster {
		if r.Addr == "" {
			errs = append(errs, fmt.Sprintf("roster[%d]: addr is required", i))
			continue
		}
		if r.Name == "" {
			errs = append(errs, fmt.Sprintf("roster[%d]: name is required", i))
		}
		addr, err := addrbook.ParseAddr(r.Addr)
		if err != nil {
			errs = append(errs, fmt.Sprintf("roster[%d]: %v", i, err))
			continue
		}
		if prev, ok := seenAddrs[addr]; ok {
			errs = append(errs, fmt.Sprintf("roster[%d]: address %s duplicates roster entry %q", i, addr, prev))
			continue
		}
		seenAddrs[addr] = r.Name
	}

	seenUUIDs := make(map[string]string)
	for i, c := range cfg.Catalog {
		if c.UUID == "" {
			errs = append(errs, fmt.Sprintf("catalog[%d]: uuid is required", i))
			continue
		}
		if c.Name == "" {
			errs = append(errs, fmt.Sprintf("catalog[%d]: name is required", i))
		}
		if c.Kind != "service" && c.Kind != "characteristic" {
			errs = append(errs, fmt.Sprintf("catalog[%d]: kind must be \"service\" or \"characteristic\", got %q", i, c.Kind))
		}
		key := normalizeUUID(c.UUID)
		if prev, ok := seenUUIDs[key]; ok {
			errs = append(errs, fmt.Sprintf("catalog[%d]: uuid %s duplicates catalog entry %q", i, c.UUID, prev))
			continue
		}
		seenUUIDs[key] = c.Name
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
