package config

// DefaultAppConfig returns an AppConfig struct with sensible default values
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			Backend:     "s3",
			BasePath:    "", // Resolved to the system temp directory at construction
			RequestRate: 0,
			S3: S3Config{
				Bucket:    "",
				AccessKey: "",
				SecretKey: "",
				Region:    "us-east-1",
				Endpoint:  "",
			},
			HDFS: HDFSConfig{
				Addresses: nil,
				User:      "",
				Path:      "/checkpoints",
			},
		},
	}
}
