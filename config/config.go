// Package config provides configuration management for ckptstore.
// It handles loading and validating configuration from YAML files and environment variables.
package config

// AppConfig represents the complete application configuration
type AppConfig struct {
	Log     LogConfig     `koanf:"log"`
	Storage StorageConfig `koanf:"storage"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// StorageConfig holds checkpoint storage configuration
type StorageConfig struct {
	Backend     string  `koanf:"backend"`      // Backend kind: "s3" or "hdfs"
	BasePath    string  `koanf:"base_path"`    // Local staging base; empty means the system temp directory
	RequestRate float64 `koanf:"request_rate"` // Backend requests per second; 0 disables rate limiting

	S3   S3Config   `koanf:"s3"`
	HDFS HDFSConfig `koanf:"hdfs"`
}

// S3Config holds object-storage backend configuration
type S3Config struct {
	Bucket    string `koanf:"bucket"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint"` // Custom endpoint (e.g., for MinIO)
}

// HDFSConfig holds distributed-filesystem backend configuration
type HDFSConfig struct {
	Addresses []string `koanf:"addresses"` // Namenode host:port addresses
	User      string   `koanf:"user"`
	Path      string   `koanf:"path"` // Remote root under which checkpoints are stored
}
