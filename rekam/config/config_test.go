package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEmptyConfig(t *testing.T) {
	c, err := readConfigString("")
	assert.NoError(t, err)
	require.Equal(t, Config{}, *c)
}

func TestReadLogLevel(t *testing.T) {
	c, err := readConfigString(`log_level = "debug"
`)
	assert.NoError(t, err)
	require.Equal(t, Config{LogLevel: "debug"}, *c)
}

func TestReadRecordConfig(t *testing.T) {
	c, err := readConfigString(`[record]
device = "/dev/input/event3"
grab = true
stop_key = "ESC"
`)
	assert.NoError(t, err)
	require.Equal(t, Config{Record: Record{
		Device:  "/dev/input/event3",
		Grab:    true,
		StopKey: "ESC",
	}}, *c)
}

func TestReadServeConfig(t *testing.T) {
	c, err := readConfigString(`[serve]
port = 59002
tls_cert_path = "./server_cert.pem"
tls_key_path = "./server_key.pem"
client_tls_cert_path = "./client_cert.pem"
`)
	assert.NoError(t, err)
	require.Equal(t, Config{Serve: Serve{
		Port:              59002,
		TLSCertPath:       "./server_cert.pem",
		TLSKeyPath:        "./server_key.pem",
		ClientTLSCertPath: "./client_cert.pem",
	}}, *c)
}

func TestReadSendConfig(t *testing.T) {
	c, err := readConfigString(`[send]
server_addr = "192.168.0.1:59002"
tls_cert_path = "./client_cert.pem"
tls_key_path = "./client_key.pem"
server_tls_cert_path = "./server_cert.pem"
`)
	assert.NoError(t, err)
	require.Equal(t, Config{Send: Send{
		ServerAddr:        "192.168.0.1:59002",
		TLSCertPath:       "./client_cert.pem",
		TLSKeyPath:        "./client_key.pem",
		ServerTLSCertPath: "./server_cert.pem",
	}}, *c)
}

func TestReadPlayConfig(t *testing.T) {
	c, err := readConfigString(`[play]
repeat = 3
`)
	assert.NoError(t, err)
	require.Equal(t, Config{Play: Play{Repeat: 3}}, *c)
}
