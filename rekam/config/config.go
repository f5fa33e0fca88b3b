package config

import (
	"os"

	"github.com/BurntSushi/toml"

	"kafji.net/rekam/logging"
)

var slog = logging.NewLogger("rekam/config")

const filePath = "./rekam.toml"

type Config struct {
	LogLevel string `toml:"log_level"`
	Record   Record `toml:"record"`
	Play     Play   `toml:"play"`
	Serve    Serve  `toml:"serve"`
	Send     Send   `toml:"send"`
}

type Record struct {
	Device  string `toml:"device"`
	Grab    bool   `toml:"grab"`
	StopKey string `toml:"stop_key"`
}

type Play struct {
	Repeat int `toml:"repeat"`
}

type Serve struct {
	Port              uint16 `toml:"port"`
	TLSCertPath       string `toml:"tls_cert_path"`
	TLSKeyPath        string `toml:"tls_key_path"`
	ClientTLSCertPath string `toml:"client_tls_cert_path"`
}

type Send struct {
	ServerAddr        string `toml:"server_addr"`
	TLSCertPath       string `toml:"tls_cert_path"`
	TLSKeyPath        string `toml:"tls_key_path"`
	ServerTLSCertPath string `toml:"server_tls_cert_path"`
}

func ReadConfig() (*Config, error) {
	file, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return readConfigString(string(file))
}

func readConfigString(s string) (*Config, error) {
	var c Config
	err := toml.Unmarshal([]byte(s), &c)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
