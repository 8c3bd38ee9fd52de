// Package config loads verseserver's INI configuration file
// (vs_config.c's vs_read_config_file), expressed with
// gopkg.in/ini.v1 instead of hand-rolled iniparser calls. Section and
// key names are kept identical to the original file so existing
// config files remain valid.
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package config

import (
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// Config is the fully-resolved set of start-up parameters (spec.md §6
// "configuration surface"), defaulted then overridden by whatever the
// INI file supplies.
type Config struct {
	Global      Global
	Users       Users
	LDAP        LDAP
	Security    Security
	FlowControl FlowControl
	InQueue     Queue
	OutQueue    Queue
	MongoDB     MongoDB
}

type Global struct {
	TCPPort        int `ini:"TCP_port"`
	WSPort         int `ini:"WS_port"`
	UDPPortLow     int `ini:"UDP_port_low"`
	UDPPortHigh    int `ini:"UDP_port_high"`
	MaxSessionCount int `ini:"MaxSessionCount"`
}

// Users selects the authentication backend (spec.md supplemented
// features: CSV and LDAP are both recovered from original_source).
type Users struct {
	Method   string `ini:"Method"`   // "file" or "ldap"
	FileType string `ini:"FileType"` // "csv", when Method == "file"
	File     string `ini:"File"`
}

// LDAP configures the directory-bind backend (vs_auth_ldap.c), not
// present in the original INI format's [Users] section but required
// to drive verse/authn.LDAPAuthenticator; kept as its own section.
// cmd/verseserver uses it when Users.Method is "ldap", in place of the
// CSV file.
type LDAP struct {
	Addr       string `ini:"Addr"`
	DNTemplate string `ini:"DNTemplate"`
	BindTimeoutSeconds int `ini:"BindTimeoutSeconds"`
}

type Security struct {
	Certificate   string `ini:"Certificate"`
	CACertificate string `ini:"CACertificate"`
	PrivateKey    string `ini:"PrivateKey"`
}

type FlowControl struct {
	Type     string `ini:"Type"`     // "tcp_like" or "none"
	WinScale int    `ini:"WinScale"` // 0..255
}

type Queue struct {
	MaxSize int `ini:"MaxSize"`
}

// MongoDB configures the persistence backend (verse/persist), present
// only when WITH_MONGODB was compiled into the original server; here
// it is simply absent/zero-valued when the section is omitted.
type MongoDB struct {
	ServerHostname string `ini:"ServerHostname"`
	ServerPort     int    `ini:"ServerPort"`
	DatabaseName   string `ini:"DatabaseName"`
	Username       string `ini:"Username"`
	Password       string `ini:"Password"`
	FlushCron      string `ini:"FlushCron"` // robfig/cron expression, e.g. "@every 30s"
	MaxConcurrentOps int  `ini:"MaxConcurrentOps"`
}

// Default returns the built-in fallbacks vs_read_config_file assumes
// when a key is absent from the file (its "leave vs_ctx field
// untouched" behavior, made explicit here as defaults applied before
// the file is parsed).
func Default() Config {
	return Config{
		Global: Global{
			TCPPort:         4950,
			WSPort:          4951,
			UDPPortLow:      49152,
			UDPPortHigh:     65535,
			MaxSessionCount: 64,
		},
		FlowControl: FlowControl{Type: "tcp_like", WinScale: 0},
		InQueue:     Queue{MaxSize: 1024},
		OutQueue:    Queue{MaxSize: 1024},
		MongoDB:     MongoDB{MaxConcurrentOps: 8, FlushCron: "@every 30s"},
	}
}

// Load reads path into a Config seeded with Default, validating the
// port ranges vs_read_config_file enforces (1024-65535 for TCP/WS,
// 49152-65535 for the UDP range) and rejecting values outside them
// rather than silently ignoring them as the original does.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := ini.Load(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "config: loading %s", path)
	}

	if err := f.Section("Global").MapTo(&cfg.Global); err != nil {
		return cfg, errors.Wrap(err, "config: [Global]")
	}
	if err := f.Section("Users").MapTo(&cfg.Users); err != nil {
		return cfg, errors.Wrap(err, "config: [Users]")
	}
	if err := f.Section("LDAP").MapTo(&cfg.LDAP); err != nil {
		return cfg, errors.Wrap(err, "config: [LDAP]")
	}
	if err := f.Section("Security").MapTo(&cfg.Security); err != nil {
		return cfg, errors.Wrap(err, "config: [Security]")
	}
	if err := f.Section("FlowControl").MapTo(&cfg.FlowControl); err != nil {
		return cfg, errors.Wrap(err, "config: [FlowControl]")
	}
	if err := f.Section("InQueue").MapTo(&cfg.InQueue); err != nil {
		return cfg, errors.Wrap(err, "config: [InQueue]")
	}
	if err := f.Section("OutQueue").MapTo(&cfg.OutQueue); err != nil {
		return cfg, errors.Wrap(err, "config: [OutQueue]")
	}
	if err := f.Section("MongoDB").MapTo(&cfg.MongoDB); err != nil {
		return cfg, errors.Wrap(err, "config: [MongoDB]")
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if p := cfg.Global.TCPPort; p < 1024 || p > 65535 {
		return errors.Errorf("config: TCP_port %d out of range 1024-65535", p)
	}
	if p := cfg.Global.WSPort; p < 1024 || p > 65535 {
		return errors.Errorf("config: WS_port %d out of range 1024-65535", p)
	}
	if lo := cfg.Global.UDPPortLow; lo < 49152 || lo > 65535 {
		return errors.Errorf("config: UDP_port_low %d out of range 49152-65535", lo)
	}
	if hi := cfg.Global.UDPPortHigh; hi < 49152 || hi > 65535 {
		return errors.Errorf("config: UDP_port_high %d out of range 49152-65535", hi)
	}
	if s := cfg.FlowControl.WinScale; s < 0 || s > 255 {
		return errors.Errorf("config: FlowControl.WinScale %d out of range 0-255", s)
	}
	return nil
}
