// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the docswap CLI.
// Subcommands: convert (files on disk), serve (HTTP upload boundary),
// history (job ledger), and version.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docswap/internal/secrets"
	"github.com/pdiddy/docswap/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the docswap CLI.
var rootCmd = &cobra.Command{
	Use:   "docswap",
	Short: "Convert documents between Word (.docx) and PDF",
	Long: `docswap converts .docx files to PDF and .pdf files to .docx. Each input is
an independent job: a failure in one file never stops the others.

Use convert for files on disk, serve to run the HTTP upload service, and
history to inspect past batches recorded in the job ledger.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}
		s, err := secrets.Load(".secrets/", os.Stderr)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./docswap.yaml or ~/.config/docswap/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("docswap")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "docswap"))
		}
	}

	viper.SetEnvPrefix("DOCSWAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := setDefaults(viper.GetViper(), types.DefaultConfig()); err != nil {
		fmt.Fprintln(os.Stderr, "warning: registering config defaults:", err)
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key of cfg with v so environment variables
// are seen by Unmarshal even when no config file sets the key.
func setDefaults(v *viper.Viper, cfg types.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&tree); err != nil {
		return err
	}
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, val := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if sub, ok := val.(map[string]any); ok {
				walk(key, sub)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)

	// Credential fields are omitted from the YAML form when empty.
	for _, key := range []string{"server.jwt_secret", "storage.s3.access_key", "storage.s3.secret_key"} {
		v.SetDefault(key, "")
	}
	return nil
}

// loadConfig unmarshals file and environment settings over the defaults
// and fills credentials from .secrets/.
func loadConfig() (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}
	secrets.Apply(loadedSecrets, &cfg)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
