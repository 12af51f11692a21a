// Package config loads the YAML file describing how a running BLE
// dispatcher host is tuned: engine capacity and timeouts, the roster
// of devices it is allowed to act on, and the attribute/service
// catalog used to render human-readable names for handles and UUIDs.
//
// Grounded on the teacher's own config package, which loads a rule-DAG
// YAML file the same way; this keeps its Loader/hot-reload shape and
// replaces its scenario/DAG schema with one describing a BLE engine.
package config

// Config is the top-level YAML structure.
type Config struct {
	Version string    `yaml:"version"`
	Engine  EngineConf `yaml:"engine"`
	Roster  []Roster  `yaml:"roster"`
	Catalog []Catalog `yaml:"catalog"`
}

// EngineConf holds the tunables production.New/ruleset.New/protocol
// timeouts are built from.
type EngineConf struct {
	RuleCapacity     int    `yaml:"rule_capacity"`
	MaxNameLength    int    `yaml:"max_name_length"`
	DefaultTimeoutMs uint64 `yaml:"default_timeout_ms"`
}

// Roster is one named device an operator expects to see and may
// connect to, keyed by its BLE address in the text form
// addrbook.ParseAddr accepts.
type Roster struct {
	Addr string `yaml:"addr"`
	Name string `yaml:"name"`
}

// Catalog is one named GATT service or characteristic UUID, used to
// render gattdb records with human-readable names instead of bare hex.
type Catalog struct {
	UUID string `yaml:"uuid"`
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // "service" or "characteristic"
}
