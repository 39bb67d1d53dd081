package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Settlement struct {
		// BaseURL of a remote settlement API. Empty means the server
		// hosts the settlement routes itself and settles in-process.
		BaseURL string `yaml:"baseUrl"`
	} `yaml:"settlement"`
	Generator struct {
		URL    string `yaml:"url"`
		APIKey string `yaml:"apiKey"`
		TTL    string `yaml:"ttl"`
	} `yaml:"generator"`
	Assist struct {
		ExplainURL string `yaml:"explainUrl"`
		SpeechURL  string `yaml:"speechUrl"`
	} `yaml:"assist"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Chain struct {
		RPCURL      string `yaml:"rpcUrl"`
		Contract    string `yaml:"contract"`
		From        string `yaml:"from"`
		ExplorerURL string `yaml:"explorerUrl"`
	} `yaml:"chain"`
	Cooldown struct {
		Window string `yaml:"window"`
	} `yaml:"cooldown"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty
// or malformed.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
