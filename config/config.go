// Copyright (c) 2026 Tulir Asokan
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"go.mau.fi/util/dbutil"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"
	"maunium.net/go/mautrix/id"

	"go.mau.fi/roomkit/confuser"
)

//go:embed example-config.yaml
var ExampleConfig string

type Config struct {
	Homeserver HomeserverConfig  `yaml:"homeserver"`
	Conference ConferenceConfig  `yaml:"conference"`
	Database   dbutil.Config     `yaml:"database"`
	Logging    zeroconfig.Config `yaml:"logging"`
}

type HomeserverConfig struct {
	URL         string      `yaml:"url"`
	UserID      id.UserID   `yaml:"user_id"`
	AccessToken string      `yaml:"access_token"`
	DeviceID    id.DeviceID `yaml:"device_id"`
}

type ConferenceConfig struct {
	UserPrefix string `yaml:"user_prefix"`
	Domain     string `yaml:"domain"`
	HideRooms  bool   `yaml:"hide_rooms"`
}

// Codec returns the conference user codec for the configured prefix and domain.
// Empty fields fall back to the defaults.
func (cc *ConferenceConfig) Codec() confuser.Codec {
	codec := confuser.Default
	if cc.UserPrefix != "" {
		codec.Prefix = cc.UserPrefix
	}
	if cc.Domain != "" {
		codec.Domain = cc.Domain
	}
	return codec
}

var (
	ErrMissingHomeserver  = errors.New("homeserver.url is not set")
	ErrMissingUserID      = errors.New("homeserver.user_id is not set")
	ErrMissingAccessToken = errors.New("homeserver.access_token is not set")
)

func (c *Config) Validate() error {
	if c.Homeserver.URL == "" {
		return ErrMissingHomeserver
	} else if c.Homeserver.UserID == "" {
		return ErrMissingUserID
	} else if c.Homeserver.AccessToken == "" {
		return ErrMissingAccessToken
	}
	_, _, err := c.Homeserver.UserID.Parse()
	if err != nil {
		return fmt.Errorf("invalid homeserver.user_id: %w", err)
	}
	return nil
}

// Parse reads the config from YAML on top of the example config, so that omitted fields keep their defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	err := yaml.Unmarshal([]byte(ExampleConfig), &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse example config: %w", err)
	}
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}
