// Package main implements the scriptbox CLI: a thin demo harness around the
// sandboxed executor. Real collaborators embed internal/sandbox directly;
// this binary exists for manual exercise and local debugging of a script
// against a context file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"scriptbox/internal/config"
	"scriptbox/internal/logging"
	"scriptbox/internal/metrics"
	"scriptbox/internal/sandbox"
)

var (
	verbose    bool
	configPath string
	timeoutMS  int64

	logger         *zap.Logger
	tracerProvider *sdktrace.TracerProvider
)

var rootCmd = &cobra.Command{
	Use:   "scriptbox",
	Short: "Run a sandboxed script against a JSON context",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		// Register a local tracer provider so executor spans are sampled and
		// built even without a configured exporter; operators wiring an OTLP
		// collector add a batcher/exporter here.
		tracerProvider = sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
		otel.SetTracerProvider(tracerProvider)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		if tracerProvider != nil {
			_ = tracerProvider.Shutdown(context.Background())
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run <script.lua> [context.json]",
	Short: "Validate and execute a script against an optional JSON context",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runScript,
}

var validateCmd = &cobra.Command{
	Use:   "validate <script.lua>",
	Short: "Run only the static validator against a script",
	Args:  cobra.ExactArgs(1),
	RunE:  validateScript,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "scriptbox.yaml", "path to config file")
	runCmd.Flags().Int64Var(&timeoutMS, "timeout-ms", 0, "override the configured timeout")
	rootCmd.AddCommand(runCmd, validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runScript(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}

	input := sandbox.Null()
	if len(args) == 2 {
		raw, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read context: %w", err)
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return fmt.Errorf("failed to parse context JSON: %w", err)
		}
		input = jsonToBag(generic)
	}

	reg := metrics.New(prometheus.NewRegistry())
	ex := sandbox.NewExecutor(cfg.AllowedHosts, cfg.EssentialJSONKeys, cfg.MaxResponseBytes, logger, reg, cfg.Logging.IsCategoryEnabled(string(logging.CategoryTools)))

	opts := sandbox.Options{TimeoutMS: cfg.Limits.TimeoutMS, MemoryBytes: cfg.Limits.MemoryBytes}
	if timeoutMS > 0 {
		opts.TimeoutMS = timeoutMS
	}

	result, execErr := ex.Execute(context.Background(), string(source), input, opts)
	if execErr != nil {
		return fmt.Errorf("%s: %s", execErr.Kind, execErr.Message)
	}

	out, err := json.MarshalIndent(bagToJSON(result), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func validateScript(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	if err := sandbox.Validate(string(source)); err != nil {
		return fmt.Errorf("%s: %s", err.Kind, err.Message)
	}
	fmt.Println("ok")
	return nil
}

// jsonToBag and bagToJSON give the CLI a JSON front-end over sandbox.Bag
// without reaching into the interpreter. Like the tool mediator, jsonToBag
// turns integral JSON numbers into Int bags; unlike it, nothing is dropped
// (no essential-key or sequence-length simplification).
func jsonToBag(v any) sandbox.Bag {
	switch val := v.(type) {
	case nil:
		return sandbox.Null()
	case bool:
		return sandbox.BoolOf(val)
	case string:
		return sandbox.StringOf(val)
	case float64:
		if val == float64(int64(val)) {
			return sandbox.IntOf(int64(val))
		}
		return sandbox.FloatOf(val)
	case []any:
		seq := make([]sandbox.Bag, len(val))
		for i, e := range val {
			seq[i] = jsonToBag(e)
		}
		return sandbox.SequenceOf(seq)
	case map[string]any:
		m := make(map[string]sandbox.Bag, len(val))
		for k, e := range val {
			m[k] = jsonToBag(e)
		}
		return sandbox.MappingOf(m)
	default:
		return sandbox.Null()
	}
}

func bagToJSON(b sandbox.Bag) any {
	switch b.Kind {
	case sandbox.KindNull:
		return nil
	case sandbox.KindBool:
		return b.Bool
	case sandbox.KindInt:
		return b.Int
	case sandbox.KindFloat:
		return b.Float
	case sandbox.KindString:
		return b.String
	case sandbox.KindSequence:
		out := make([]any, len(b.Sequence))
		for i, v := range b.Sequence {
			out[i] = bagToJSON(v)
		}
		return out
	case sandbox.KindMapping:
		out := make(map[string]any, len(b.Mapping))
		for k, v := range b.Mapping {
			out[k] = bagToJSON(v)
		}
		return out
	default:
		return nil
	}
}
