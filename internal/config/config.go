package config

import (
	"encoding/json"
	"os"

	"chart-trigger-bot-go/internal/models"
)

// LoadConfig reads and parses the JSON config file, applying defaults for
// unset engine thresholds.
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	config := &models.Config{}
	if err := decoder.Decode(config); err != nil {
		return nil, err
	}

	config.ApplyDefaults()
	return config, nil
}
