package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds connection defaults loaded from an optional YAML file, so
// repeated conversions against the same engine don't need the full flag set.
type Config struct {
	EngineURL     string `yaml:"engine_url"`
	PasswordFile  string `yaml:"password_file"`
	StorageDomain string `yaml:"storage_domain"`
	CAFile        string `yaml:"ca_file"`
	Cluster       string `yaml:"cluster"`
	Direct        bool   `yaml:"direct"`
	Insecure      bool   `yaml:"insecure"`
}

func LoadConfig(configFile string) (*Config, error) {
	ret := new(Config)

	contents, err := os.ReadFile(configFile)
	if err != nil {
		return ret, err
	}

	err = yaml.Unmarshal(contents, &ret)
	if err != nil {
		return ret, err
	}

	return ret, nil
}
