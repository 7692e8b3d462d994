// Command daedalus fetches a two-level resource graph: the root's ordered
// child references, then each child's detail through a shared concurrency
// limiter, with per-root locking and local retries. Results are printed in
// the original child order.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/wehubfusion/Daedalus/internal/natsconn"
	"github.com/wehubfusion/Daedalus/internal/tracing"
	"github.com/wehubfusion/Daedalus/pkg/concurrency"
	"github.com/wehubfusion/Daedalus/pkg/locking"
	"github.com/wehubfusion/Daedalus/pkg/pipeline"
	"github.com/wehubfusion/Daedalus/pkg/resource"
	"github.com/wehubfusion/Daedalus/pkg/storage"
	"github.com/wehubfusion/Daedalus/pkg/transform"
	"go.uber.org/zap"
)

type options struct {
	baseURL        string
	transport      string
	natsURL        string
	concurrency    int
	retries        int
	lockTimeout    time.Duration
	requestTimeout time.Duration
	stream         bool
	transformPath  string
	upload         bool
	storageConnStr string
	storageContain string
	traceEndpoint  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "daedalus <root-id>",
		Short:        "Fetch a resource graph with bounded concurrency",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(cmd.Context(), args[0], opts)
		},
	}

	cfg := concurrency.LoadConfig()

	cmd.Flags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "base URL of the resource service")
	cmd.Flags().StringVar(&opts.transport, "transport", "http", "resource transport: http or nats")
	cmd.Flags().StringVar(&opts.natsURL, "nats-url", "nats://localhost:4222", "NATS server URL for --transport nats")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", cfg.MaxConcurrent, "maximum concurrent detail fetches")
	cmd.Flags().IntVar(&opts.retries, "retries", cfg.MaxRetries, "additional attempts after a failed fetch")
	cmd.Flags().DurationVar(&opts.lockTimeout, "lock-timeout", cfg.LockTimeout, "maximum wait for the per-root lock")
	cmd.Flags().DurationVar(&opts.requestTimeout, "request-timeout", cfg.RequestTimeout, "timeout for a single fetch request")
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "print each result as it becomes available instead of waiting for the full run")
	cmd.Flags().StringVar(&opts.transformPath, "transform", "", "path to a JavaScript file defining transform(record)")
	cmd.Flags().BoolVar(&opts.upload, "upload", false, "upload the run results to blob storage")
	cmd.Flags().StringVar(&opts.storageConnStr, "storage-connection-string", os.Getenv("AZURE_STORAGE_CONNECTION_STRING"), "Azure storage connection string for --upload")
	cmd.Flags().StringVar(&opts.storageContain, "storage-container", "daedalus-runs", "blob container for --upload")
	cmd.Flags().StringVar(&opts.traceEndpoint, "trace-endpoint", "", "OTLP/HTTP endpoint (host:port) for trace export")

	return cmd
}

func run(ctx context.Context, rootID string, opts *options) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.traceEndpoint != "" {
		tcfg := tracing.DefaultConfig("daedalus")
		tcfg.OTLPEndpoint = opts.traceEndpoint
		shutdown, err := tracing.Setup(ctx, tcfg, logger)
		if err != nil {
			return err
		}
		defer tracing.Shutdown(shutdown, logger)
	}

	client, cleanup, err := buildClient(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	limiter := concurrency.NewLimiter(opts.concurrency)

	p, err := pipeline.New(client, locking.NewManager(logger), limiter, pipeline.Config{
		MaxRetries:  opts.retries,
		LockTimeout: opts.lockTimeout,
	}, logger)
	if err != nil {
		return err
	}

	var tr *transform.Transformer
	if opts.transformPath != "" {
		script, err := os.ReadFile(opts.transformPath)
		if err != nil {
			return fmt.Errorf("failed to read transform script: %w", err)
		}
		tr, err = transform.New(string(script), transform.DefaultTimeout, logger)
		if err != nil {
			return err
		}
	}

	var results []pipeline.Result
	if opts.stream {
		stream, err := p.Stream(ctx, rootID)
		if err != nil {
			return err
		}
		for res := range stream.Results() {
			emit(ctx, res, tr)
			results = append(results, res)
		}
	} else {
		results, err = p.Run(ctx, rootID)
		if err != nil {
			return err
		}
		for _, res := range results {
			emit(ctx, res, tr)
		}
	}

	if opts.upload {
		if err := uploadResults(ctx, rootID, results, opts, logger); err != nil {
			return err
		}
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d children failed", failed, len(results))
	}
	return nil
}

// buildClient selects the resource transport. The returned cleanup is always
// safe to call.
func buildClient(ctx context.Context, opts *options, logger *zap.Logger) (resource.Client, func(), error) {
	switch opts.transport {
	case "http":
		client, err := resource.NewHTTPClient(resource.HTTPConfig{
			BaseURL:        opts.baseURL,
			RequestTimeout: opts.requestTimeout,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil

	case "nats":
		conn, err := natsconn.Connect(ctx, natsconn.DefaultConfig(opts.natsURL), logger)
		if err != nil {
			return nil, nil, err
		}
		client, err := resource.NewNATSClient(conn, logger)
		if err != nil {
			natsconn.Close(conn)
			return nil, nil, err
		}
		return client, func() { natsconn.Close(conn) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown transport %q (expected http or nats)", opts.transport)
	}
}

// emit prints one result: the transformed record when a script is loaded,
// otherwise the detail name. Failures go to stderr without stopping output.
func emit(ctx context.Context, res pipeline.Result, tr *transform.Transformer) {
	if res.Err != nil {
		fmt.Fprintf(os.Stderr, "error: child %d (%s): %v\n", res.Index, res.Ref, res.Err)
		return
	}

	if tr != nil {
		record := map[string]interface{}{
			"index":  res.Index,
			"ref":    string(res.Ref),
			"name":   res.Detail.Name,
			"fields": res.Detail.Fields,
		}
		out, err := tr.Apply(ctx, record)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: transform of child %d: %v\n", res.Index, err)
			return
		}
		fmt.Println(out)
		return
	}

	fmt.Println(res.Detail.Name)
}

func uploadResults(ctx context.Context, rootID string, results []pipeline.Result, opts *options, logger *zap.Logger) error {
	if opts.storageConnStr == "" {
		return fmt.Errorf("--upload requires a storage connection string")
	}

	blobClient, err := storage.NewAzureBlobClient(opts.storageConnStr, opts.storageContain, logger)
	if err != nil {
		return err
	}

	doc := storage.NewRunDocument(rootID, uuid.NewString(), results)
	url, err := storage.NewRunResultWriter(blobClient, logger).Write(ctx, doc)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "results uploaded to %s\n", url)
	return nil
}
