package main

import (
	"fmt"
	"reflect"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/ethereum/go-ethereum/common"
)

// Config is read from the environment at startup.
type Config struct {
	Server struct {
		Network     string        `env:"LISTEN_NETWORK" envDefault:"tcp"`
		Addr        string        `env:"LISTEN_ADDR" envDefault:"127.0.0.1:8545"`
		VsockPort   uint32        `env:"VSOCK_PORT" envDefault:"5000"`
		MaxWorkers  int           `env:"MAX_WORKERS" envDefault:"16"`
		ReadTimeout time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	}
	App struct {
		LogLevel    string `env:"LOG_LEVEL" envDefault:"INFO"`
		MetricsAddr string `env:"METRICS_ADDR" envDefault:":9010"`
	}
	Registry struct {
		Owner    common.Address `env:"REGISTRY_OWNER" envDefault:"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"`
		Upgrader common.Address `env:"REGISTRY_UPGRADER" envDefault:"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"`
	}
	Oracle struct {
		MaxAge time.Duration `env:"ORACLE_MAX_AGE" envDefault:"1h"`
	}
	Relay struct {
		QueueSize int `env:"RELAY_QUEUE_SIZE" envDefault:"64"`
	}
}

// LoadConfig parses the environment into a Config.
func LoadConfig() (Config, error) {
	var c Config
	err := env.ParseWithFuncs(&c, map[reflect.Type]env.ParserFunc{
		reflect.TypeOf(common.Address{}): func(v string) (interface{}, error) {
			if !common.IsHexAddress(v) {
				return nil, fmt.Errorf("%q is not a hex address", v)
			}
			return common.HexToAddress(v), nil
		},
	})
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if c.Server.MaxWorkers <= 0 {
		return Config{}, fmt.Errorf("MAX_WORKERS must be positive, got %d", c.Server.MaxWorkers)
	}
	switch c.Server.Network {
	case "tcp", "vsock":
	default:
		return Config{}, fmt.Errorf("LISTEN_NETWORK must be tcp or vsock, got %q", c.Server.Network)
	}
	return c, nil
}
