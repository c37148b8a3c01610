package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sravanigadey/s3audit/internal/batch"
	"github.com/sravanigadey/s3audit/internal/config"
	"github.com/sravanigadey/s3audit/internal/logging"
	"github.com/sravanigadey/s3audit/internal/metrics"
	"github.com/sravanigadey/s3audit/internal/output"
	"github.com/sravanigadey/s3audit/internal/parser"
	"github.com/sravanigadey/s3audit/internal/source"
	"github.com/sravanigadey/s3audit/internal/tailer"
	"github.com/sravanigadey/s3audit/pkg/types"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	inputPath  = flag.String("input", "", "Input path or s3:// URI (overrides config)")
	outputSpec = flag.String("output", "", "Output shorthand: stdout, ndjson:FILE, csv:FILE or avro:FILE")
	watchMode  = flag.Bool("watch", false, "Follow the input file for appended lines")
	version    = "0.1.0"
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logger.Info().Str("version", version).Str("input", cfg.Input.Path).Msg("Starting s3audit")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		go func() {
			if err := collector.Serve(ctx, cfg.Metrics.Address, cfg.Metrics.Path); err != nil {
				logger.Warn().Err(err).Msg("Metrics endpoint stopped")
			}
		}()
	}

	lineParser := parser.New(logger)
	runner := batch.New(lineParser, logger, collector)

	outputs, err := buildOutputs(cfg, lineParser.FieldNames(), logger, collector)
	if err != nil {
		return err
	}
	defer closeOutputs(outputs, logger)

	if cfg.Input.Watch {
		return runWatch(ctx, cfg, runner, outputs, logger)
	}
	return runBatch(ctx, cfg, runner, outputs, logger, collector)
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
	}

	if *inputPath != "" {
		cfg.Input.Path = *inputPath
	}
	if *watchMode {
		cfg.Input.Watch = true
	}
	if *outputSpec != "" {
		out, err := parseOutputSpec(*outputSpec)
		if err != nil {
			return nil, err
		}
		cfg.Outputs = []output.Config{out}
	}
	return cfg, nil
}

// parseOutputSpec turns the -output shorthand into an output config.
func parseOutputSpec(spec string) (output.Config, error) {
	kind, path, found := strings.Cut(spec, ":")
	if !found {
		if kind == "stdout" {
			return output.Config{Type: "stdout"}, nil
		}
		return output.Config{}, fmt.Errorf("invalid output spec %q", spec)
	}

	switch kind {
	case "ndjson", "json", "csv", "avro":
		return output.Config{Type: kind, Path: path}, nil
	default:
		return output.Config{}, fmt.Errorf("unknown output type %q", kind)
	}
}

func buildOutputs(cfg *config.Config, fieldOrder []string, logger *logging.Logger, collector *metrics.Collector) ([]output.Output, error) {
	outputs := make([]output.Output, 0, len(cfg.Outputs))
	for _, oc := range cfg.Outputs {
		out, err := output.New(oc, fieldOrder, logger, collector)
		if err != nil {
			closeOutputs(outputs, logger)
			return nil, fmt.Errorf("failed to create %s output: %w", oc.Type, err)
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func closeOutputs(outputs []output.Output, logger *logging.Logger) {
	for _, out := range outputs {
		if err := out.Close(); err != nil {
			logger.Warn().Str("output", out.Name()).Err(err).Msg("Failed to close output")
		}
	}
}

func runBatch(ctx context.Context, cfg *config.Config, runner *batch.Runner, outputs []output.Output, logger *logging.Logger, collector *metrics.Collector) error {
	var s3cfg source.S3Config
	if cfg.S3 != nil {
		s3cfg = *cfg.S3
	}

	resolver := source.NewResolver(s3cfg, logger, collector)
	path, cleanup, err := resolver.Resolve(ctx, cfg.Input.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve input: %w", err)
	}
	defer cleanup()

	records, stats, err := runner.Run(ctx, path)
	if err != nil {
		return err
	}

	for _, out := range outputs {
		if err := out.Write(ctx, records); err != nil {
			return fmt.Errorf("failed to write %s output: %w", out.Name(), err)
		}
	}

	logger.Info().
		Int64("lines", stats.Lines).
		Int64("records", stats.Parsed).
		Int64("skipped", stats.Skipped).
		Int("outputs", len(outputs)).
		Msg("Export complete")
	return nil
}

func runWatch(ctx context.Context, cfg *config.Config, runner *batch.Runner, outputs []output.Output, logger *logging.Logger) error {
	if strings.HasPrefix(cfg.Input.Path, "s3://") {
		return fmt.Errorf("watch mode requires a local file, got %s", cfg.Input.Path)
	}

	t, err := tailer.New(cfg.Input.Path, runner, cfg.Input.CheckpointPath, logger)
	if err != nil {
		return err
	}
	if err := t.Start(); err != nil {
		return err
	}

	logger.Info().Str("path", cfg.Input.Path).Msg("Watching for appended log lines")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutdown signal received")
			return t.Stop()
		case record, ok := <-t.Records():
			if !ok {
				return t.Stop()
			}
			for _, out := range outputs {
				if err := out.Write(ctx, []types.Record{record}); err != nil {
					logger.Error().Str("output", out.Name()).Err(err).Msg("Failed to write record")
				}
			}
		}
	}
}
