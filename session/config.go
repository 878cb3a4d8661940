package session

import (
	"os"
	"time"

	"github.com/fossasia/pslab-go/util"
	"gopkg.in/yaml.v2"
)

// Config holds the parameters needed to open a Session, decodable from a
// YAML file. Grounded on envsrv/cfg.go's Config/LoadYaml, adapted from a
// list-of-HTTP-device-routes shape (out of scope here, see DESIGN.md) to
// the single serial connection a Session needs.
type Config struct {
	// Port is the serial device path (e.g. /dev/ttyACM0) or, for a mock
	// or network-bridged device, whatever identifier transport.New
	// accepts.
	Port string `yaml:"port"`

	// Baud is the serial baud rate. Zero selects transport's own default.
	Baud int `yaml:"baud"`

	// TimeoutSeconds bounds each read, in seconds. Zero selects a 1
	// second default. A plain int rather than time.Duration since
	// yaml.v2 has no built-in duration-string support.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the configured read timeout as a time.Duration.
func (c Config) Timeout() time.Duration {
	return util.SecsToDuration(float64(c.TimeoutSeconds))
}

// LoadConfig reads a Session Config from a YAML file at path.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	err = yaml.NewDecoder(f).Decode(&cfg)
	return cfg, err
}
