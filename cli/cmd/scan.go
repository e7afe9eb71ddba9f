package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/spotlens-io/spotlens/adapter"
	redisadapter "github.com/spotlens-io/spotlens/adapter/redis"
	"github.com/spotlens-io/spotlens/adapter/webhook"
	"github.com/spotlens-io/spotlens/archive"
	"github.com/spotlens-io/spotlens/cache"
	"github.com/spotlens-io/spotlens/cli/render"
	"github.com/spotlens-io/spotlens/cli/tui"
	"github.com/spotlens-io/spotlens/config"
	"github.com/spotlens-io/spotlens/metrics"
	"github.com/spotlens-io/spotlens/pipeline"
	"github.com/spotlens-io/spotlens/tiler"
	"github.com/spotlens-io/spotlens/types"
	"github.com/spotlens-io/spotlens/vision"
)

// Exit codes for the scan command.
const (
	exitFound      = 0
	exitNoResults  = 1
	exitScanFailed = 2
	exitUsageError = 3
)

// ScanCommand returns the scan command, the only command that executes work.
func ScanCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to spotlens.yaml config file",
		},
		&cli.StringFlag{
			Name:  "endpoint",
			Usage: "Recognition endpoint URL",
		},
		&cli.StringFlag{
			Name:  "api-key",
			Usage: "Recognition API key (bearer token)",
		},
		&cli.IntFlag{
			Name:    "grid",
			Aliases: []string{"g"},
			Usage:   "Grid dimension g (image is split into g×g parts)",
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Usage: "Max in-flight recognition calls",
		},
		&cli.IntFlag{
			Name:  "quality",
			Usage: "Tile JPEG encode quality (1-100)",
		},
		&cli.StringFlag{
			Name:  "source",
			Usage: "Source identifier recorded in scan metadata",
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Usage: "Directory for the tile-result cache (overrides config)",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a JSON scan report to this path ('-' for stderr)",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Suppress result output and progress messages",
		},
	}
	flags = append(flags, OutputFlags()...)

	return &cli.Command{
		Name:      "scan",
		Usage:     "Identify products in an image",
		ArgsUsage: "<image-path>",
		Flags:     flags,
		Action:    scanAction,
	}
}

// scanOptions is the flag snapshot for one scan invocation.
type scanOptions struct {
	endpoint      string
	apiKey        string
	gridSize      int
	maxConcurrent int
	quality       int
	source        string
	cacheDir      string
}

// scanSettings is the effective configuration after merging flags over
// config file values. Flags always win.
type scanSettings struct {
	endpoint      string
	apiKey        string
	gridSize      int
	maxConcurrent int
	quality       int
	source        string
	cacheDir      string
	retry         vision.RetryPolicy
}

func mergeSettings(opts scanOptions, cfg *config.Config) scanSettings {
	s := scanSettings{
		endpoint:      cfg.Recognition.Endpoint,
		apiKey:        cfg.Recognition.APIKey,
		gridSize:      cfg.Scan.GridSize,
		maxConcurrent: cfg.Scan.MaxConcurrent,
		quality:       cfg.Scan.Quality,
		source:        opts.source,
		retry:         retryPolicyFromConfig(cfg.Recognition),
	}
	if cfg.Cache.Enabled {
		s.cacheDir = cfg.Cache.Path
	}

	if opts.endpoint != "" {
		s.endpoint = opts.endpoint
	}
	if opts.apiKey != "" {
		s.apiKey = opts.apiKey
	}
	if opts.gridSize > 0 {
		s.gridSize = opts.gridSize
	}
	if opts.maxConcurrent > 0 {
		s.maxConcurrent = opts.maxConcurrent
	}
	if opts.quality > 0 {
		s.quality = opts.quality
	}
	if opts.cacheDir != "" {
		s.cacheDir = opts.cacheDir
	}

	return s
}

// retryPolicyFromConfig builds a retry policy from config defaults,
// falling back to the stock policy for unset fields.
func retryPolicyFromConfig(rc config.RecognitionConfig) vision.RetryPolicy {
	p := vision.DefaultRetryPolicy()
	if rc.MaxRetries != nil {
		p.MaxRetries = *rc.MaxRetries
	}
	if rc.BaseDelay.Duration > 0 {
		p.BaseDelay = rc.BaseDelay.Duration
	}
	if rc.MaxDelay.Duration > 0 {
		p.MaxDelay = rc.MaxDelay.Duration
	}
	if rc.AttemptTimeout.Duration > 0 {
		p.AttemptTimeout = rc.AttemptTimeout.Duration
	}
	return p
}

// buildAdapter creates the configured scan-completed adapter.
// Returns (nil, nil) when no adapter is configured.
func buildAdapter(ac config.AdapterConfig) (adapter.Adapter, error) {
	switch ac.Type {
	case "":
		return nil, nil
	case "webhook":
		retries := webhook.DefaultRetries
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		return webhook.New(webhook.Config{
			URL:     ac.URL,
			Headers: ac.Headers,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
	case "redis":
		retries := redisadapter.DefaultRetries
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		return redisadapter.New(redisadapter.Config{
			URL:     ac.URL,
			Channel: ac.Channel,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type: %s (must be webhook or redis)", ac.Type)
	}
}

func statusToExitCode(status types.ScanStatus) int {
	switch status {
	case types.ScanStatusOK:
		return exitFound
	case types.ScanStatusNoResults:
		return exitNoResults
	case types.ScanStatusError:
		return exitScanFailed
	default:
		return exitScanFailed
	}
}

func scanAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("image path required", exitUsageError)
	}
	imagePath := c.Args().First()

	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cli.Exit(err.Error(), exitUsageError)
		}
		cfg = loaded
	}

	settings := mergeSettings(scanOptions{
		endpoint:      c.String("endpoint"),
		apiKey:        c.String("api-key"),
		gridSize:      c.Int("grid"),
		maxConcurrent: c.Int("concurrency"),
		quality:       c.Int("quality"),
		source:        c.String("source"),
		cacheDir:      c.String("cache-dir"),
	}, cfg)

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsageError)
	}

	image, err := os.Open(imagePath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot open image: %v", err), exitUsageError)
	}
	defer image.Close()

	client, err := vision.NewClient(vision.Config{
		Endpoint: settings.endpoint,
		APIKey:   settings.apiKey,
		Retry:    settings.retry,
	})
	if err != nil {
		return cli.Exit(err.Error(), exitUsageError)
	}

	if settings.gridSize <= 0 {
		settings.gridSize = tiler.DefaultGridSize
	}
	meta := types.NewScanMeta(settings.gridSize, settings.source)
	collector := metrics.NewCollector(meta.ScanID, meta.GridSize)

	var recognizer vision.Recognizer = client
	if settings.cacheDir != "" {
		store, err := cache.NewStore(settings.cacheDir)
		if err != nil {
			return cli.Exit(fmt.Sprintf("cannot open tile cache: %v", err), exitUsageError)
		}
		recognizer = cache.NewRecognizer(recognizer, store, collector)
	}

	// The progress sink is registered after orchestrator construction so
	// TUI mode can attach its own.
	var progress pipeline.ProgressFunc
	orchestrator, err := pipeline.NewOrchestrator(&pipeline.Config{
		Image:         image,
		Recognizer:    recognizer,
		GridSize:      settings.gridSize,
		Quality:       settings.quality,
		MaxConcurrent: settings.maxConcurrent,
		OnProgress: func(message string) {
			if progress != nil {
				progress(message)
			}
		},
		Meta:      meta,
		Collector: collector,
	})
	if err != nil {
		return cli.Exit(err.Error(), exitUsageError)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	quiet := c.Bool("quiet")

	var scan *pipeline.ScanResult
	if c.Bool("tui") {
		scan, err = tui.RunScanTUI(meta.TileCount(), func(onProgress pipeline.ProgressFunc) *pipeline.ScanResult {
			progress = onProgress
			return orchestrator.Execute(ctx)
		})
		if err != nil {
			return cli.Exit(fmt.Sprintf("TUI failed: %v", err), exitScanFailed)
		}
	} else {
		if !quiet && isStderrTTY() {
			progress = func(message string) {
				fmt.Fprintln(os.Stderr, message)
			}
		}
		scan = orchestrator.Execute(ctx)
	}

	report := pipeline.BuildScanReport(scan, collector.Snapshot())

	if reportPath := c.String("report"); reportPath != "" {
		if err := pipeline.WriteScanReport(report, reportPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: report not written: %v\n", err)
		}
	}

	publishScan(ctx, cfg.Adapter, scan)
	archiveScan(ctx, cfg.Archive, report)

	if !quiet && !c.Bool("tui") {
		if err := r.Render(scan.Result); err != nil {
			return cli.Exit(fmt.Sprintf("render failed: %v", err), exitScanFailed)
		}
	}

	return cli.Exit("", statusToExitCode(scan.Result.Status))
}

// publishScan sends the scan-completed event through the configured
// adapter. Publish failures are warnings, never scan failures.
func publishScan(ctx context.Context, ac config.AdapterConfig, scan *pipeline.ScanResult) {
	pub, err := buildAdapter(ac)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: adapter not configured: %v\n", err)
		return
	}
	if pub == nil {
		return
	}
	defer func() { _ = pub.Close() }()

	if err := pub.Publish(ctx, adapter.NewScanCompletedEvent(scan)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: event not published: %v\n", err)
	}
}

// archiveScan uploads the report to the configured S3 bucket.
// Archive failures are warnings, never scan failures.
func archiveScan(ctx context.Context, ac config.ArchiveConfig, report *pipeline.ScanReport) {
	if ac.Bucket == "" {
		return
	}

	archiver, err := archive.New(ctx, archive.Config{
		Bucket:       ac.Bucket,
		Prefix:       ac.Prefix,
		Region:       ac.Region,
		Endpoint:     ac.Endpoint,
		UsePathStyle: ac.S3PathStyle,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: archive unavailable: %v\n", err)
		return
	}

	key, err := archiver.StoreReport(ctx, report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: report not archived: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "Report archived to s3://%s/%s\n", ac.Bucket, key)
}
