package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		TotalSize:      1 << 20,
		HeaderSize:     512,
		BlockSize:      65536,
		MaxFiles:       8192,
		MaxUsers:       64,
		AdminUsername:  "admin",
		AdminPassword:  "admin123",
		Port:           8080,
		MaxConnections: 64,
		QueueTimeout:   5 * time.Second,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadBlockSize(t *testing.T) {
	cfg := validConfig()
	cfg.BlockSize = 1000 // not a power of two
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsShortPassword(t *testing.T) {
	cfg := validConfig()
	cfg.AdminPassword = "abc"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadHeaderSize(t *testing.T) {
	cfg := validConfig()
	cfg.HeaderSize = 256
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsOutOfRangePort(t *testing.T) {
	cfg := validConfig()
	cfg.Port = 0
	require.Error(t, cfg.Validate())
}
