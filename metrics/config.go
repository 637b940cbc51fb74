package metrics

// Config contains the configuration for the metric collection.
type Config struct {
	Enabled bool `toml:",omitempty"`

	EnableInfluxDB       bool   `toml:",omitempty"`
	InfluxDBEndpoint     string `toml:",omitempty"`
	InfluxDBToken        string `toml:",omitempty"`
	InfluxDBBucket       string `toml:",omitempty"`
	InfluxDBOrganization string `toml:",omitempty"`
	InfluxDBTags         string `toml:",omitempty"`
}

// DefaultConfig is the default config for metrics used in tossig.
var DefaultConfig = Config{
	Enabled: false,

	EnableInfluxDB:       false,
	InfluxDBEndpoint:     "http://localhost:8086",
	InfluxDBToken:        "test",
	InfluxDBBucket:       "tossig",
	InfluxDBOrganization: "tossig",
	InfluxDBTags:         "host=localhost",
}
