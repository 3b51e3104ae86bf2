package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/go-playground/validator.v9"
)

// Duration is a wrapper type that parses time duration from text.
type Duration struct {
	time.Duration `validate:"required"`
}

// UnmarshalText unmarshalls time duration from text.
func (d *Duration) UnmarshalText(data []byte) error {
	duration, err := time.ParseDuration(string(data))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", data, err)
	}
	d.Duration = duration
	return nil
}

// Domain modes
const (
	DomainMemory  = "memory"
	DomainEnclave = "enclave"
)

// LogConf specifies the log configuration parameters
type LogConf struct {
	Level      string `validate:"required"`
	Encoding   string `validate:"oneof=console json"`
	ErrorsFile string
}

// Node is the configuration of a ledger node: storage, private domain,
// gateway and settlement crank.
type Node struct {
	Log    LogConf `validate:"required"`
	Ledger struct {
		// Path of the leveldb directory. Empty keeps state in memory.
		Path string
		// ProgramID namespaces every derived account address.
		ProgramID          string `validate:"required"`
		CacheSize          int    `validate:"required,min=1"`
		BidRent            uint64
		NotificationBuffer int `validate:"required,min=1"`
	} `validate:"required"`
	Domain struct {
		Mode string `validate:"required,oneof=memory enclave"`
		// EnclaveCID and EnclavePort address the enclave over vsock.
		EnclaveCID  uint32
		EnclavePort uint32
		Timeout     Duration `validate:"required"`
	} `validate:"required"`
	API struct {
		Address      string   `validate:"required"`
		ReadTimeout  Duration `validate:"required"`
		WriteTimeout Duration `validate:"required"`
		// AllowedOrigins is a comma separated CORS origin list.
		AllowedOrigins string
	} `validate:"required"`
	Crank struct {
		Enabled  bool
		Interval Duration `validate:"required"`
		// Operator is the signer name the crank finalizes auctions for. When
		// empty the crank only settles.
		Operator string
	} `validate:"required"`
}

// DefaultValues is applied before the configuration file, so a file only
// needs to name what it changes.
const DefaultValues = `
[Log]
Level = "info"
Encoding = "console"

[Ledger]
ProgramID = "sealedbid"
CacheSize = 512
BidRent = 2039280
NotificationBuffer = 1024

[Domain]
Mode = "memory"
EnclaveCID = 16
EnclavePort = 5000
Timeout = "10s"

[API]
Address = "127.0.0.1:8645"
ReadTimeout = "15s"
WriteTimeout = "15s"
AllowedOrigins = "*"

[Crank]
Enabled = true
Interval = "2s"
`

// Default returns the node configuration with only DefaultValues applied.
func Default() *Node {
	var cfg Node
	if _, err := toml.Decode(DefaultValues, &cfg); err != nil {
		panic(fmt.Errorf("decode default config: %w", err))
	}
	return &cfg
}

// LoadNode loads the Node configuration from path on top of DefaultValues.
// An empty path yields the defaults.
func LoadNode(path string) (*Node, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("error loading configuration file: %w", err)
		}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags and the cross-field rules.
func Validate(cfg *Node) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("error validating configuration file: %w", err)
	}
	if cfg.Domain.Mode == DomainEnclave && cfg.Domain.EnclavePort == 0 {
		return fmt.Errorf("error validating configuration file: Domain.EnclavePort is required in enclave mode")
	}
	return nil
}
