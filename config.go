// config.go: YAML configuration for clusters.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package zeyra

import (
	"fmt"
	"io"
	"os"

	goerrors "github.com/agilira/go-errors"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Config selects the provider, compressor and logging of a cluster set.
//
// Example file:
//
//	provider: software
//	compression: gzip
//	compressionLevel: 9
//	logLevel: info
//	verifyDigest: true
type Config struct {
	Provider         string `yaml:"provider" json:"provider"`
	Compression      string `yaml:"compression" json:"compression"`
	CompressionLevel int    `yaml:"compressionLevel,omitempty" json:"compressionLevel,omitempty"`
	LogLevel         string `yaml:"logLevel,omitempty" json:"logLevel,omitempty"`
	VerifyDigest     bool   `yaml:"verifyDigest,omitempty" json:"verifyDigest,omitempty"`

	// Registry resolves Provider; nil means DefaultRegistry.
	Registry *ProviderRegistry `yaml:"-" json:"-"`
}

// DefaultConfig returns the configuration the package-level functions use.
func DefaultConfig() *Config {
	return &Config{
		Provider:    SoftwareProviderName,
		Compression: CompressionGzip,
	}
}

// LoadConfig reads a YAML configuration file. Missing fields keep their
// DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		richErr := goerrors.Wrap(err, ErrCodeInvalidArgument, fmt.Sprintf("failed to read config %s", path))
		return nil, fail(ErrInvalidArgument, StageDecode, richErr)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration bytes.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		richErr := goerrors.Wrap(err, ErrCodeDecode, "failed to parse config")
		return nil, fail(ErrInvalidEncoding, StageDecode, richErr)
	}
	if cfg.Provider == "" {
		cfg.Provider = SoftwareProviderName
	}
	if cfg.Compression == "" {
		cfg.Compression = CompressionGzip
	}
	return cfg, nil
}

// Options resolves the configuration into cluster options.
func (c *Config) Options() ([]Option, error) {
	registry := c.Registry
	if registry == nil {
		registry = DefaultRegistry
	}
	provider, err := registry.Provider(c.Provider)
	if err != nil {
		return nil, fail(ErrInvalidArgument, StageImport, goerrors.Wrap(err, ErrCodeProvider, "failed to resolve provider"))
	}

	compressor, err := CompressorByName(c.Compression)
	if err != nil {
		return nil, err
	}
	if gz, ok := compressor.(GzipCompressor); ok && c.CompressionLevel != 0 {
		if _, err := gzip.NewWriterLevel(io.Discard, c.CompressionLevel); err != nil {
			richErr := goerrors.Wrap(err, ErrCodeInvalidArgument, fmt.Sprintf("invalid gzip compression level %d", c.CompressionLevel))
			return nil, fail(ErrInvalidArgument, StageDecode, richErr)
		}
		gz.Level = c.CompressionLevel
		compressor = gz
	}

	opts := []Option{WithProvider(provider), WithCompressor(compressor)}
	if c.LogLevel != "" {
		level, err := logrus.ParseLevel(c.LogLevel)
		if err != nil {
			return nil, fail(ErrInvalidArgument, StageDecode, goerrors.Wrap(err, ErrCodeInvalidArgument, "invalid log level"))
		}
		l := logrus.New()
		l.SetLevel(level)
		opts = append(opts, WithLogger(l))
	}
	if c.VerifyDigest {
		opts = append(opts, WithDigestVerification())
	}
	return opts, nil
}

// NewClusters builds a cluster set from the configuration.
func (c *Config) NewClusters() (*Clusters, error) {
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}
	return NewClusters(opts...), nil
}
