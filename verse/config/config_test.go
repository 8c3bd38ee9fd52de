// Tests for the INI-backed configuration loader (spec.md §6).
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultFillsBuiltInFallbacks(t *testing.T) {
	cfg := Default()
	require.Equal(t, 4950, cfg.Global.TCPPort)
	require.Equal(t, 4951, cfg.Global.WSPort)
	require.Equal(t, 49152, cfg.Global.UDPPortLow)
	require.Equal(t, 65535, cfg.Global.UDPPortHigh)
	require.Equal(t, 64, cfg.Global.MaxSessionCount)
	require.Equal(t, "tcp_like", cfg.FlowControl.Type)
	require.Equal(t, 1024, cfg.InQueue.MaxSize)
	require.Equal(t, 1024, cfg.OutQueue.MaxSize)
	require.Equal(t, 8, cfg.MongoDB.MaxConcurrentOps)
	require.Equal(t, "@every 30s", cfg.MongoDB.FlushCron)
}

func writeIni(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vs_config.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverridesDefaultsFromFile(t *testing.T) {
	path := writeIni(t, `
[Global]
TCP_port = 5000
WS_port = 5001
UDP_port_low = 50000
UDP_port_high = 50100
MaxSessionCount = 128

[Users]
Method = file
FileType = csv
File = users.csv

[MongoDB]
ServerHostname = localhost
ServerPort = 27017
DatabaseName = verse
FlushCron = @every 10s
MaxConcurrentOps = 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 5000, cfg.Global.TCPPort)
	require.Equal(t, 5001, cfg.Global.WSPort)
	require.Equal(t, 50000, cfg.Global.UDPPortLow)
	require.Equal(t, 50100, cfg.Global.UDPPortHigh)
	require.Equal(t, 128, cfg.Global.MaxSessionCount)
	require.Equal(t, "file", cfg.Users.Method)
	require.Equal(t, "csv", cfg.Users.FileType)
	require.Equal(t, "users.csv", cfg.Users.File)
	require.Equal(t, "localhost", cfg.MongoDB.ServerHostname)
	require.Equal(t, 27017, cfg.MongoDB.ServerPort)
	require.Equal(t, 4, cfg.MongoDB.MaxConcurrentOps)

	// Sections absent from the file keep Default's values.
	require.Equal(t, "tcp_like", cfg.FlowControl.Type)
	require.Equal(t, 1024, cfg.InQueue.MaxSize)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does_not_exist.ini"))
	require.Error(t, err)
}

func TestLoadRejectsOutOfRangeTCPPort(t *testing.T) {
	path := writeIni(t, "[Global]\nTCP_port = 80\n")
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "TCP_port")
}

func TestLoadRejectsOutOfRangeUDPRange(t *testing.T) {
	path := writeIni(t, "[Global]\nUDP_port_low = 1024\n")
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "UDP_port_low")
}

func TestLoadRejectsOutOfRangeWinScale(t *testing.T) {
	path := writeIni(t, "[FlowControl]\nWinScale = 300\n")
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "WinScale")
}

func TestLoadAcceptsMinimalEmptyFile(t *testing.T) {
	path := writeIni(t, "")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default().Global, cfg.Global)
}
