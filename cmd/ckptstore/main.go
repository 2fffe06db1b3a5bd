package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ckptstore/ckptstore/config"
	"github.com/ckptstore/ckptstore/storage"
	"github.com/ckptstore/ckptstore/storage/hdfs"
	"github.com/ckptstore/ckptstore/storage/s3"
)

var rootCmd = &cobra.Command{
	Use:   "ckptstore",
	Short: "ckptstore - checkpoint storage manager",
	Long: `ckptstore stages checkpoint artifacts on local disk and transfers them
to and from interchangeable remote backends (S3 object storage, HDFS).`,
}

var storeCmd = &cobra.Command{
	Use:   "store <storage-id> <dir>",
	Short: "Upload a populated checkpoint directory",
	Long: `Upload every file under <dir> to the configured backend under <storage-id>
and remove the local staging subdirectory afterwards. The resource manifest
is printed to stdout as JSON.`,
	Args: cobra.ExactArgs(2),
	RunE: runStore,
}

var downloadCmd = &cobra.Command{
	Use:   "download <manifest> [dir]",
	Short: "Download a checkpoint to a persistent local directory",
	Long: `Download every resource named by the JSON manifest into [dir] (or the
staging subdirectory for its storage ID). The directory is left in place.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDownload,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <manifest>",
	Short: "Delete a checkpoint from the backend",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Validate the ckptstore configuration and display the loaded settings",
	RunE:  runValidateConfig,
}

var configFilePath string

func main() {
	rootCmd.PersistentFlags().StringVarP(&configFilePath, "config", "c", "", "Path to configuration file")

	configCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(storeCmd, downloadCmd, deleteCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// setup loads configuration and builds the logger and storage manager shared
// by all transfer commands.
func setup() (storage.Manager, *zap.Logger, error) {
	cfg, err := config.LoadConfigFromFile(configFilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initializeLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	mgr, err := newManager(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return mgr, logger, nil
}

// newManager constructs the configured backend adapter
func newManager(cfg config.AppConfig, logger *zap.Logger) (storage.Manager, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return s3.NewManager(cfg.Storage, logger)
	case "hdfs":
		return hdfs.NewManager(cfg.Storage, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func runStore(cmd *cobra.Command, args []string) error {
	storageID, dir := args[0], args[1]

	mgr, logger, err := setup()
	if err != nil {
		return err
	}
	defer mgr.Close()
	defer syncLogger(logger)

	md, err := storage.NewMetadataFromDirectory(storageID, dir)
	if err != nil {
		return err
	}

	if err := mgr.StorePath(context.Background(), storageID, dir, md); err != nil {
		return err
	}

	out, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	md, err := readManifest(args[0])
	if err != nil {
		return err
	}

	dir := ""
	if len(args) == 2 {
		dir = args[1]
	}

	mgr, logger, err := setup()
	if err != nil {
		return err
	}
	defer mgr.Close()
	defer syncLogger(logger)

	return mgr.Download(context.Background(), md, dir)
}

func runDelete(cmd *cobra.Command, args []string) error {
	md, err := readManifest(args[0])
	if err != nil {
		return err
	}

	mgr, logger, err := setup()
	if err != nil {
		return err
	}
	defer mgr.Close()
	defer syncLogger(logger)

	return mgr.Delete(context.Background(), md)
}

func runValidateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigFromFile(configFilePath)
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	fmt.Println("Configuration is valid")
	fmt.Printf("  Backend:      %s\n", cfg.Storage.Backend)
	fmt.Printf("  Staging base: %s\n", stagingBase(cfg.Storage.BasePath))
	fmt.Printf("  Request rate: %v\n", cfg.Storage.RequestRate)
	return nil
}

func stagingBase(basePath string) string {
	if basePath == "" {
		return os.TempDir() + " (default)"
	}
	return basePath
}

// readManifest decodes a checkpoint resource manifest from a JSON file
func readManifest(path string) (storage.Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return storage.Metadata{}, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var md storage.Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return storage.Metadata{}, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if md.StorageID == "" {
		return storage.Metadata{}, fmt.Errorf("manifest %s has no storage_id", path)
	}
	return md, nil
}

// initializeLogger creates a zap logger based on configuration
func initializeLogger(logCfg config.LogConfig) (*zap.Logger, error) {
	var cfg zap.Config

	if logCfg.Format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	switch logCfg.Level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return nil, fmt.Errorf("unknown log level %q", logCfg.Level)
	}

	return cfg.Build()
}

func syncLogger(logger *zap.Logger) {
	if err := logger.Sync(); err != nil {
		// Log to stderr since logger may not be working
		fmt.Fprintf(os.Stderr, "Failed to sync logger: %v\n", err)
	}
}
