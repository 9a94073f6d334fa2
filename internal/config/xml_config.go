// Package config provides XML-based configuration management for the converter service.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/doc2md/backend/internal/models"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"Doc2Markdown"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Upstream service endpoints
	Services ServicesConfig `xml:"Services"`

	// Conversion batch settings
	Conversion ConversionConfig `xml:"Conversion"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`

	// Credentials are only ever sourced from the environment.
	Credentials models.Credentials `xml:"-"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory   string `xml:"DataDirectory"`
	TempDirectory   string `xml:"TempDirectory"`
	CredentialsFile string `xml:"CredentialsFile"`
}

// ServicesConfig contains upstream endpoints and fixed request parameters
type ServicesConfig struct {
	CloudflareBaseURL      string `xml:"CloudflareBaseURL"`
	MistralBaseURL         string `xml:"MistralBaseURL"`
	MistralModel           string `xml:"MistralModel"`
	MistralPurpose         string `xml:"MistralPurpose"`
	SignedURLExpiryHours   int    `xml:"SignedURLExpiryHours"`
	ForwarderBaseURL       string `xml:"ForwarderBaseURL"`
	UpstreamTimeoutSeconds int    `xml:"UpstreamTimeoutSeconds"`
}

// ConversionConfig contains batch processing settings
type ConversionConfig struct {
	PrimaryTimeoutSeconds   int `xml:"PrimaryTimeoutSeconds"`
	MaxSecondaryFileSizeMiB int `xml:"MaxSecondaryFileSizeMiB"`
	BatchRetentionMinutes   int `xml:"BatchRetentionMinutes"`
	CleanupIntervalMinutes  int `xml:"CleanupIntervalMinutes"`
}

// AdvancedConfig contains logging options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	LogFormat            string `xml:"LogFormat"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         3000,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 180,
			IdleTimeout:  120,
			BodyLimit:    "200M",
		},
		Storage: StorageConfig{
			DataDirectory:   "./data",
			TempDirectory:   "./data/temp",
			CredentialsFile: "./data/credentials.yaml",
		},
		Services: ServicesConfig{
			CloudflareBaseURL:      "https://api.cloudflare.com/client/v4",
			MistralBaseURL:         "https://api.mistral.ai",
			MistralModel:           "mistral-ocr-latest",
			MistralPurpose:         "ocr",
			SignedURLExpiryHours:   24,
			ForwarderBaseURL:       "",
			UpstreamTimeoutSeconds: 0,
		},
		Conversion: ConversionConfig{
			PrimaryTimeoutSeconds:   60,
			MaxSecondaryFileSizeMiB: 50,
			BatchRetentionMinutes:   30,
			CleanupIntervalMinutes:  5,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			LogFormat:            "text",
			EnableRequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Doc2Markdown Configuration -->\n<!-- This file is auto-generated on first run. Credentials belong in .env.local -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		c.Server.BindAddress = host
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.TempDirectory = filepath.Join(dataDir, "temp")
		c.Storage.CredentialsFile = filepath.Join(dataDir, "credentials.yaml")
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}

	c.Credentials = CredentialsFromEnv()
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.TempDirectory) {
		c.Storage.TempDirectory = filepath.Join(configDir, c.Storage.TempDirectory)
	}
	if !filepath.IsAbs(c.Storage.CredentialsFile) {
		c.Storage.CredentialsFile = filepath.Join(configDir, c.Storage.CredentialsFile)
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetTempDir returns the absolute directory for temporary uploads
func (c *AppConfig) GetTempDir() string {
	return c.Storage.TempDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// GetForwarderURL returns the base URL the orchestrator uses to reach the
// forwarding endpoint. Defaults to this server over loopback.
func (c *AppConfig) GetForwarderURL() string {
	if c.Services.ForwarderBaseURL != "" {
		return c.Services.ForwarderBaseURL
	}
	return fmt.Sprintf("http://127.0.0.1:%d", c.Server.Port)
}

// PrimaryTimeout is the upper bound for a primary-service batch.
func (c *AppConfig) PrimaryTimeout() time.Duration {
	return time.Duration(c.Conversion.PrimaryTimeoutSeconds) * time.Second
}

// MaxSecondaryFileSize returns the secondary-service size ceiling in bytes.
func (c *AppConfig) MaxSecondaryFileSize() int64 {
	return int64(c.Conversion.MaxSecondaryFileSizeMiB) << 20
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.TempDirectory,
		filepath.Dir(c.Storage.CredentialsFile),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
