// Package config loads server settings from flags, environment variables
// and an optional config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Settings holds everything the server needs at startup. Values are fixed
// once loaded.
type Settings struct {
	Address         string `mapstructure:"address"`
	DocumentRoot    string `mapstructure:"document_root"`
	AllowDirListing bool   `mapstructure:"allow_dir_listing"`

	// SSLCert and SSLKey enable TLS when both are set. A pair that fails
	// to load falls back to plaintext with a warning.
	SSLCert string `mapstructure:"ssl_cert"`
	SSLKey  string `mapstructure:"ssl_key"`

	// AuthCreds is a comma-separated user:pass list. Empty disables auth.
	AuthCreds string `mapstructure:"auth_creds"`

	PHPBinary     string   `mapstructure:"php_binary"`
	CGIExtensions []string `mapstructure:"cgi_extensions"`

	Env string `mapstructure:"env"`

	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	CGITimeout    time.Duration `mapstructure:"cgi_timeout"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`

	MaxHeaderBytes     int `mapstructure:"max_header_bytes"`
	MaxBodyBytes       int `mapstructure:"max_body_bytes"`
	MaxRequestsPerConn int `mapstructure:"max_requests_per_conn"`
	MaxConnections     int `mapstructure:"max_connections"`
}

const envPrefix = "HTTPD"

func setDefaults(v *viper.Viper) {
	v.SetDefault("address", "127.0.0.1:8080")
	v.SetDefault("document_root", ".")
	v.SetDefault("allow_dir_listing", false)
	v.SetDefault("php_binary", "php-cgi")
	v.SetDefault("cgi_extensions", []string{".php"})
	v.SetDefault("env", "development")
	v.SetDefault("idle_timeout", 10*time.Second)
	v.SetDefault("write_timeout", 30*time.Second)
	v.SetDefault("cgi_timeout", 30*time.Second)
	v.SetDefault("shutdown_grace", 5*time.Second)
	v.SetDefault("max_header_bytes", 8*1024)
	v.SetDefault("max_body_bytes", 10*1024*1024)
	v.SetDefault("max_requests_per_conn", 0)
	v.SetDefault("max_connections", 0)
}

// Load resolves settings. flags (may be nil) take precedence over
// HTTPD_* environment variables, which take precedence over the config
// file, which takes precedence over defaults.
func Load(configFile string, flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		// Flag names use dashes; settings keys use underscores.
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects settings the server cannot start with.
func (s *Settings) Validate() error {
	if s.Address == "" {
		return errors.New("address must not be empty")
	}
	if s.DocumentRoot == "" {
		return errors.New("document_root must not be empty")
	}
	if (s.SSLCert == "") != (s.SSLKey == "") {
		return errors.New("ssl_cert and ssl_key must be set together")
	}
	if s.MaxHeaderBytes <= 0 {
		return errors.New("max_header_bytes must be positive")
	}
	if s.MaxBodyBytes <= 0 {
		return errors.New("max_body_bytes must be positive")
	}
	if s.MaxRequestsPerConn < 0 || s.MaxConnections < 0 {
		return errors.New("connection limits must not be negative")
	}
	for _, ext := range s.CGIExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("cgi extension %q must start with a dot", ext)
		}
	}
	if _, err := ParseCredentials(s.AuthCreds); err != nil {
		return err
	}
	return nil
}

// TLSEnabled reports whether a certificate pair is configured.
func (s *Settings) TLSEnabled() bool {
	return s.SSLCert != "" && s.SSLKey != ""
}
