// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invowk/hotswap/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "hotswap"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "hotswap"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes the environment overrides, as in HOTSWAP_LISTEN.
	EnvPrefix = "HOTSWAP"

	// MaxFileSize bounds the size of a config file.
	MaxFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// FileName returns the config file name looked up in the project directory.
func FileName() string {
	return ConfigFileName + "." + ConfigFileExt
}

// loadWithOptions performs option-driven config loading. It returns the
// loaded configuration and the path of the file it came from, empty when
// only defaults and environment variables were used.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("root", defaults.Root)
	v.SetDefault("project_root", defaults.ProjectRoot)
	v.SetDefault("ignore", defaults.Ignore)
	v.SetDefault("include", defaults.Include)
	v.SetDefault("boundaries", defaults.Boundaries)
	v.SetDefault("restart", defaults.Restart)
	v.SetDefault("throw_when_boundaries_are_not_dynamically_imported", defaults.ThrowWhenBoundariesAreNotDynamicallyImported)
	v.SetDefault("debounce", defaults.Debounce)
	v.SetDefault("listen", defaults.Listen)
	v.SetDefault("clear_screen", defaults.ClearScreen)
	v.SetDefault("log_level", defaults.LogLevel)

	baseDir := opts.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}

	resolvedPath := ""

	// If a custom config file path is set via --config, use it exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'hotswap config init' to write a default hotswap.cue").
				WithGuide(issue.ConfigLoadFailedID).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else if local := filepath.Join(baseDir, FileName()); fileExists(local) {
		resolvedPath = local
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithGuide(issue.ConfigLoadFailedID).
				Wrap(err).
				BuildError()
		}
		baseDir = filepath.Dir(resolvedPath)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check the glob patterns, listen address and log level").
			WithGuide(issue.ConfigLoadFailedID).
			Wrap(errs[0]).
			BuildError()
	}

	cfg.resolvePaths(baseDir)
	return &cfg, resolvedPath, nil
}

// resolvePaths makes project_root absolute, defaulting to baseDir, and
// anchors root under it.
func (c *Config) resolvePaths(baseDir string) {
	switch {
	case c.ProjectRoot == "":
		c.ProjectRoot = baseDir
	case !filepath.IsAbs(c.ProjectRoot):
		c.ProjectRoot = filepath.Join(baseDir, c.ProjectRoot)
	}
	c.ProjectRoot = filepath.Clean(c.ProjectRoot)
	if c.Root != "" && !filepath.IsAbs(c.Root) {
		c.Root = filepath.Join(c.ProjectRoot, c.Root)
	}
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > MaxFileSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", path, len(data), MaxFileSize)
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	// Unify with schema to validate against #Config definition
	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	// Merge into Viper (preserves defaults, allows env overrides)
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// formatCUEError flattens a CUE error list into "<file>: <path>: <message>" lines.
func formatCUEError(err error, filePath string) error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	lines := make([]string, 0, len(list))
	for _, e := range list {
		msg := e.Error()
		if p := strings.Join(cueerrors.Path(e), "."); p != "" {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, p), ":"))
			msg = p + ": " + msg
		}
		lines = append(lines, msg)
	}
	return fmt.Errorf("%s: %s", filePath, strings.Join(lines, "\n"))
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// WriteDefault writes a default hotswap.cue into dir unless one exists.
// It returns the path of the file and whether it was created.
func WriteDefault(dir string) (string, bool, error) {
	cfgPath := filepath.Join(dir, FileName())
	if fileExists(cfgPath) {
		return cfgPath, false, nil
	}
	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}
	return cfgPath, true, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// hotswap configuration\n")
	sb.WriteString("// Patterns are doublestar globs relative to project_root.\n\n")

	if cfg.Root != "" {
		fmt.Fprintf(&sb, "root: %q\n", cfg.Root)
	}
	if cfg.ProjectRoot != "" {
		fmt.Fprintf(&sb, "project_root: %q\n", cfg.ProjectRoot)
	}

	writeList(&sb, "ignore", cfg.Ignore)
	writeList(&sb, "include", cfg.Include)
	writeList(&sb, "boundaries", cfg.Boundaries)
	writeList(&sb, "restart", cfg.Restart)

	fmt.Fprintf(&sb, "\nthrow_when_boundaries_are_not_dynamically_imported: %v\n", cfg.ThrowWhenBoundariesAreNotDynamicallyImported)
	fmt.Fprintf(&sb, "debounce: %q\n", cfg.Debounce.String())
	fmt.Fprintf(&sb, "listen: %q\n", cfg.Listen)
	fmt.Fprintf(&sb, "clear_screen: %v\n", cfg.ClearScreen)
	fmt.Fprintf(&sb, "log_level: %q\n", cfg.LogLevel)

	return sb.String()
}

func writeList(sb *strings.Builder, name string, patterns []GlobPattern) {
	if len(patterns) == 0 {
		fmt.Fprintf(sb, "%s: []\n", name)
		return
	}
	fmt.Fprintf(sb, "%s: [\n", name)
	for _, p := range patterns {
		fmt.Fprintf(sb, "\t%q,\n", p)
	}
	sb.WriteString("]\n")
}
