package config

import (
	"encoding/base64"
	"os"
	"time"

	"github.com/go-yaml/yaml"
	"github.com/pkg/errors"

	"github.com/totegamma/ilp3"
)

type Config struct {
	Receiver     Receiver          `yaml:"receiver"`
	Sender       Sender            `yaml:"sender"`
	Server       Server            `yaml:"server"`
	Fulfillments map[string]string `yaml:"fulfillments"` // condition -> fulfillment
}

type Receiver struct {
	Listen     string `yaml:"listen"`
	Path       string `yaml:"path"`
	Secret     string `yaml:"secret"` // base64, at least 32 bytes
	StreamData bool   `yaml:"streamData"`
	BodyLimit  int64  `yaml:"bodyLimit"`

	// ---
	SecretBytes []byte `yaml:"-"`
}

type Sender struct {
	Timeout     string `yaml:"timeout"`
	TokenWindow string `yaml:"tokenWindow"`
	UserAgent   string `yaml:"userAgent"`

	// ---
	TimeoutDuration     time.Duration `yaml:"-"`
	TokenWindowDuration time.Duration `yaml:"-"`
}

type Server struct {
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	EventChannel  string `yaml:"eventChannel"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

func Default() Config {
	return Config{
		Receiver: Receiver{
			Listen:    ":4000",
			BodyLimit: ilp3.DefaultBodyLimit,
		},
		Sender: Sender{
			TokenWindowDuration: ilp3.DefaultTokenWindow,
		},
		Server: Server{
			EventChannel:  "ilp3.settlement",
			TraceEndpoint: "localhost:4318",
		},
	}
}

// Load reads a YAML config on top of Default.
func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	config := Default()
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}

	if err := config.resolve(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) resolve() error {
	if c.Receiver.Secret != "" {
		secret, err := base64.StdEncoding.DecodeString(c.Receiver.Secret)
		if err != nil {
			secret, err = base64.RawURLEncoding.DecodeString(c.Receiver.Secret)
		}
		if err != nil {
			return errors.Wrap(err, "receiver.secret is not base64")
		}
		if len(secret) < ilp3.MinSecretLength {
			return errors.Errorf("receiver.secret must be at least %d bytes", ilp3.MinSecretLength)
		}
		c.Receiver.SecretBytes = secret
	}

	if c.Sender.Timeout != "" {
		d, err := time.ParseDuration(c.Sender.Timeout)
		if err != nil {
			return errors.Wrap(err, "sender.timeout")
		}
		c.Sender.TimeoutDuration = d
	}
	if c.Sender.TokenWindow != "" {
		d, err := time.ParseDuration(c.Sender.TokenWindow)
		if err != nil {
			return errors.Wrap(err, "sender.tokenWindow")
		}
		if d <= 0 {
			return errors.New("sender.tokenWindow must be positive")
		}
		c.Sender.TokenWindowDuration = d
	}

	return nil
}
