// Package cmn holds configuration, error taxonomy, and other cross-cutting
// types shared by every rez package, mirroring AIStore's cmn package
// (cmn.Config, cmn.GCO.Get(), cmn.NewErrAborted, ...).
/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */
package cmn

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

// GridConfig holds the [grid] section: addresses for the backend services a
// region connects out to on startup.
type GridConfig struct {
	GridServer        string
	AssetServer       string
	InventoryServer   string
	UserServer        string
	PresenceServer    string
	GridUserServer    string
	GridServerIsXMLRPC bool
	NewUserserver     bool
	UseXInventory     bool
}

// ScriptConfig holds the [script] section.
type ScriptConfig struct {
	EnableUnsafeFuncs bool
}

// AmbientConfig covers logging and metrics keys, independent of the
// simulation-domain sections above.
type AmbientConfig struct {
	LogLevel      string
	MetricsListen string
}

type Config struct {
	Grid    GridConfig
	Script  ScriptConfig
	Ambient AmbientConfig
}

// ParseINI parses a small "[section] key = value" dialect. It is
// deliberately tiny: the wire/parsing-heavy formats (XML-RPC, LLSD) live in
// their own packages, but this key/value dialect is the core's own
// configuration surface.
func ParseINI(r *bufio.Scanner) (*Config, error) {
	cfg := &Config{}
	section := ""
	for r.Scan() {
		line := strings.TrimSpace(r.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(line, "["), "]"))
			continue
		}
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.TrimSpace(kv[1])
		if err := cfg.set(section, key, val); err != nil {
			return nil, errors.Wrapf(err, "parsing [%s] %s", section, key)
		}
	}
	if err := r.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning config")
	}
	return cfg, nil
}

func (c *Config) set(section, key, val string) error {
	switch section {
	case "grid":
		switch key {
		case "grid_server":
			c.Grid.GridServer = val
		case "asset_server":
			c.Grid.AssetServer = val
		case "inventory_server":
			c.Grid.InventoryServer = val
		case "user_server":
			c.Grid.UserServer = val
		case "presence_server":
			c.Grid.PresenceServer = val
		case "grid_user_server":
			c.Grid.GridUserServer = val
		case "grid_server_is_xmlrpc":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return err
			}
			c.Grid.GridServerIsXMLRPC = b
		case "new_userserver":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return err
			}
			c.Grid.NewUserserver = b
		case "use_xinventory":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return err
			}
			c.Grid.UseXInventory = b
		}
	case "script":
		if key == "enable_unsafe_funcs" {
			b, err := strconv.ParseBool(val)
			if err != nil {
				return err
			}
			c.Script.EnableUnsafeFuncs = b
		}
	case "log":
		if key == "level" {
			c.Ambient.LogLevel = val
		}
	case "metrics":
		if key == "listen" {
			c.Ambient.MetricsListen = val
		}
	}
	return nil
}

// LoadFile is a convenience wrapper around ParseINI for a config file path.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer f.Close()
	return ParseINI(bufio.NewScanner(f))
}

// gco is the "global config owner" singleton, mirroring AIStore's cmn.GCO:
// a single atomic pointer swapped on reload, read via Get().
var gco atomic.Pointer[Config]

// GCO exposes the owner's Get/Put, e.g. `cmn.GCO.Get()` as in AIStore.
var GCO = &gcoHandle{}

type gcoHandle struct{}

func (*gcoHandle) Get() *Config {
	c := gco.Load()
	if c == nil {
		return &Config{}
	}
	return c
}

func (*gcoHandle) Put(c *Config) { gco.Store(c) }
