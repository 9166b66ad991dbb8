package config

import "github.com/torre76/smartcrf/batch"

const (
	defaultMinKbps        = 1500
	defaultMaxKbps        = 1600
	defaultClampMin       = 0
	defaultClampMax       = 51
	defaultPrecision      = 1
	defaultBackend        = BackendMediaInfo
	defaultTimeoutSeconds = 30
	defaultLogLevel       = "warn"
	defaultLogFormat      = "text"
	defaultConfigLocation = "~/.config/smartcrf/config.toml"
)

// Default returns a Config populated with repository defaults. IdealKbps is
// zero, which selects the midpoint of the range once it is final.
func Default() Config {
	return Config{
		Range: Range{
			MinKbps: defaultMinKbps,
			MaxKbps: defaultMaxKbps,
		},
		CRF: CRF{
			Round:     true,
			Clamp:     true,
			ClampMin:  defaultClampMin,
			ClampMax:  defaultClampMax,
			Precision: defaultPrecision,
		},
		Rename: Rename{
			Enabled: true,
		},
		Probe: Probe{
			Backend:        defaultBackend,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Scan: Scan{
			Extensions: append([]string(nil), batch.DefaultExtensions...),
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
