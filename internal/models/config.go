package models

// Config holds every runtime parameter of the engine driver.
type Config struct {
	Symbol            string    `json:"symbol"`              // e.g. "BTCUSDT"
	DBPath            string    `json:"db_path"`             // badger snapshot database
	InitialBalanceUSD float64   `json:"initial_balance_usd"` // paper account funding
	SlippageRate      float64   `json:"slippage_rate"`       // taker fill adjustment
	ThresholdFraction float64   `json:"threshold_fraction"`  // geometry epsilon as a fraction of the visible price range
	MarginCallLevel   float64   `json:"margin_call_level"`   // minimum margin level after an open, percent
	LiquidationLevel  float64   `json:"liquidation_level"`   // forced-liquidation floor, percent
	EventLogCap       int       `json:"event_log_cap"`       // bounded execution event ring
	LiveWSURL         string    `json:"live_ws_url"`         // aggTrade stream base, live mode only
	RSIPeriod         int       `json:"rsi_period"`
	VolumeWindow      int       `json:"volume_window"`
	LogConfig         LogConfig `json:"log"`
}

// LogConfig defines logging output, rotation and verbosity.
type LogConfig struct {
	Level      string `json:"level"`       // "debug", "info", "warn", "error"
	Output     string `json:"output"`      // "console", "file", "both"
	File       string `json:"file"`        // log file path
	MaxSize    int    `json:"max_size"`    // max size of one log file, MB
	MaxBackups int    `json:"max_backups"` // rotated files kept
	MaxAge     int    `json:"max_age"`     // days rotated files are kept
	Compress   bool   `json:"compress"`    // gzip rotated files
}

// ApplyDefaults fills unset numeric fields with engine defaults.
func (c *Config) ApplyDefaults() {
	if c.MarginCallLevel == 0 {
		c.MarginCallLevel = 100
	}
	if c.LiquidationLevel == 0 {
		c.LiquidationLevel = 40
	}
	if c.EventLogCap == 0 {
		c.EventLogCap = 500
	}
	if c.ThresholdFraction == 0 {
		c.ThresholdFraction = 0.001
	}
	if c.RSIPeriod == 0 {
		c.RSIPeriod = 14
	}
	if c.VolumeWindow == 0 {
		c.VolumeWindow = 20
	}
}
