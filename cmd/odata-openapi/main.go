// Command odata-openapi converts OData CSDL JSON files into OpenAPI 3.0.2
// documents. Each input file produces a <name>.openapi3.json sibling, or a
// file under --output-dir when set. Outputs are only rewritten when their
// content changes, so repeated runs keep timestamps stable for build
// tooling.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	openapi "github.com/nlstn/odata-openapi"
)

type config struct {
	URL               string   `json:"url"`
	Servers           []string `json:"servers"`
	ODataVersion      string   `json:"odataVersion"`
	Scheme            string   `json:"scheme"`
	Host              string   `json:"host"`
	BasePath          string   `json:"basePath"`
	Diagram           bool     `json:"diagram"`
	MaxLevels         int      `json:"maxLevels"`
	KeyAsSegment      bool     `json:"keyAsSegment"`
	QueryOptionPrefix string   `json:"queryOptionPrefix"`
	Pretty            bool     `json:"pretty"`
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		cfg        config
		configPath string
		outputDir  string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:           "odata-openapi <metadata.json> [more files...]",
		Short:         "Convert OData CSDL JSON metadata to OpenAPI 3.0.2",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			logger = logger.With("run", uuid.NewString())

			if configPath != "" {
				fileCfg, err := loadConfig(configPath)
				if err != nil {
					// A broken config path is fatal before any conversion.
					return err
				}
				mergeConfig(cmd, &cfg, fileCfg)
			}

			for _, path := range args {
				if err := convertFile(path, outputDir, cfg, logger); err != nil {
					return err
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.URL, "url", "", "service root URL for the servers array")
	flags.StringArrayVar(&cfg.Servers, "server", nil, "explicit server URL, repeatable")
	flags.StringVar(&cfg.ODataVersion, "odata-version", "", "override the document's OData version")
	flags.StringVar(&cfg.Scheme, "scheme", "", "URL scheme when assembling the server URL from host")
	flags.StringVar(&cfg.Host, "host", "", "host name when no URL is given")
	flags.StringVar(&cfg.BasePath, "base-path", "", "base path appended to the host")
	flags.BoolVar(&cfg.Diagram, "diagram", false, "include a yUML entity diagram in the description")
	flags.IntVar(&cfg.MaxLevels, "max-levels", 0, "navigation and $expand recursion depth (default 5)")
	flags.BoolVar(&cfg.KeyAsSegment, "key-as-segment", false, "use /EntitySet/{key} paths")
	flags.StringVar(&cfg.QueryOptionPrefix, "query-option-prefix", "", "system query option prefix (default \"$\")")
	flags.BoolVar(&cfg.Pretty, "pretty", false, "indent the JSON output")
	flags.StringVar(&configPath, "config", "", "JSON config file with the same options")
	flags.StringVarP(&outputDir, "output-dir", "o", "", "directory for output files (default: next to input)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func loadConfig(path string) (config, error) {
	var cfg config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// mergeConfig applies file values for every option not set on the command
// line.
func mergeConfig(cmd *cobra.Command, cfg *config, file config) {
	changed := cmd.Flags().Changed
	if !changed("url") {
		cfg.URL = file.URL
	}
	if !changed("server") {
		cfg.Servers = file.Servers
	}
	if !changed("odata-version") {
		cfg.ODataVersion = file.ODataVersion
	}
	if !changed("scheme") {
		cfg.Scheme = file.Scheme
	}
	if !changed("host") {
		cfg.Host = file.Host
	}
	if !changed("base-path") {
		cfg.BasePath = file.BasePath
	}
	if !changed("diagram") {
		cfg.Diagram = file.Diagram
	}
	if !changed("max-levels") {
		cfg.MaxLevels = file.MaxLevels
	}
	if !changed("key-as-segment") {
		cfg.KeyAsSegment = file.KeyAsSegment
	}
	if !changed("query-option-prefix") {
		cfg.QueryOptionPrefix = file.QueryOptionPrefix
	}
	if !changed("pretty") {
		cfg.Pretty = file.Pretty
	}
}

func convertFile(path, outputDir string, cfg config, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	doc, err := openapi.Convert(context.Background(), raw, openapi.Options{
		URL:               cfg.URL,
		Servers:           cfg.Servers,
		ODataVersion:      cfg.ODataVersion,
		Scheme:            cfg.Scheme,
		Host:              cfg.Host,
		BasePath:          cfg.BasePath,
		Diagram:           cfg.Diagram,
		MaxLevels:         cfg.MaxLevels,
		QueryOptionPrefix: cfg.QueryOptionPrefix,
		KeyAsSegment:      cfg.KeyAsSegment,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", path, err)
	}

	var out []byte
	if cfg.Pretty {
		out, err = json.MarshalIndent(doc, "", "  ")
	} else {
		out, err = json.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", path, err)
	}
	out = append(out, '\n')

	target := outputPath(path, outputDir)
	if unchanged(target, out) {
		logger.Info("Output unchanged, skipping write", "file", target)
		return nil
	}
	if err := os.WriteFile(target, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	logger.Info("Wrote OpenAPI document", "file", target, "bytes", len(out))
	return nil
}

func outputPath(input, outputDir string) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base)) + ".openapi3.json"
	if outputDir != "" {
		return filepath.Join(outputDir, base)
	}
	return filepath.Join(filepath.Dir(input), base)
}

// unchanged reports whether the target file already holds content with the
// same fingerprint.
func unchanged(target string, out []byte) bool {
	existing, err := os.ReadFile(target)
	if err != nil {
		return false
	}
	return xxhash.Sum64(existing) == xxhash.Sum64(out)
}
