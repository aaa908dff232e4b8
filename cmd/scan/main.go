// Command scan runs one consensus acquisition against a camera endpoint and
// prints the barcode. When the inventory store is reachable the stored product
// is printed as well.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	catalogapp "github.com/scanstock/backend/internal/application/catalog"
	"github.com/scanstock/backend/internal/domain/scanning"
	"github.com/scanstock/backend/internal/domain/shared"
	"github.com/scanstock/backend/internal/infrastructure/camera"
	"github.com/scanstock/backend/internal/infrastructure/config"
	"github.com/scanstock/backend/internal/infrastructure/decoder"
	"github.com/scanstock/backend/internal/infrastructure/logger"
	"github.com/scanstock/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// Exit codes
const (
	exitOK          = 0
	exitFailed      = 1
	exitUsage       = 2
	exitUnreachable = 3
	exitCancelled   = 4
)

type options struct {
	endpoint       string
	reads          int
	retries        int
	delay          time.Duration
	maxFailures    int
	decoder        string
	timeout        time.Duration
	replayInterval time.Duration
	lookup         bool
	asJSON         bool
	verbose        bool
}

type output struct {
	Result  *scanning.Result            `json:"result"`
	Known   bool                        `json:"known"`
	Product *catalogapp.ProductResponse `json:"product,omitempty"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(exitFailed)
	}

	opts := parseFlags(cfg)
	if opts.endpoint == "" {
		fmt.Fprintln(os.Stderr, "no endpoint: pass -endpoint or set scanner.endpoint")
		flag.Usage()
		os.Exit(exitUsage)
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	log, err := logger.New(&logger.Config{
		Level:      level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "15:04:05.000",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(exitFailed)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, opts, log, os.Stdout))
}

func parseFlags(cfg *config.Config) options {
	var o options
	flag.StringVar(&o.endpoint, "endpoint", cfg.Scanner.Endpoint, "Camera URL, device index or replay directory")
	flag.IntVar(&o.reads, "reads", cfg.Scanner.RequiredReads, "Successful decodes required for consensus")
	flag.IntVar(&o.retries, "retries", cfg.Scanner.MaxConnectRetries, "Connect retries after the first failure")
	flag.DurationVar(&o.delay, "delay", cfg.Scanner.RetryDelay, "Delay between connect attempts")
	flag.IntVar(&o.maxFailures, "max-read-failures", cfg.Scanner.MaxReadFailures, "Consecutive frame read failures tolerated")
	flag.StringVar(&o.decoder, "decoder", cfg.Scanner.Decoder, "Decoder: zxing, opencv-qr or all")
	flag.DurationVar(&o.timeout, "timeout", cfg.Scanner.SessionTimeout, "Upper bound for the acquisition (0 = none)")
	flag.DurationVar(&o.replayInterval, "replay-interval", 0, "Pause between replayed frames")
	flag.BoolVar(&o.lookup, "lookup", true, "Look the barcode up in the inventory store")
	flag.BoolVar(&o.asJSON, "json", false, "Print the full result as JSON")
	flag.BoolVar(&o.verbose, "v", false, "Verbose logging on stderr")
	flag.Parse()
	return o
}

func run(ctx context.Context, cfg *config.Config, o options, log *zap.Logger, out io.Writer) int {
	dec, closeDecoder, err := decoder.New(o.decoder)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	defer func() {
		_ = closeDecoder()
	}()

	acquirer, err := scanning.NewAcquirer(
		camera.NewSource(log, camera.WithReplayInterval(o.replayInterval)),
		dec,
		scanning.Policy{
			RequiredReads:     o.reads,
			MaxConnectRetries: o.retries,
			RetryDelay:        o.delay,
			MaxReadFailures:   o.maxFailures,
		},
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	result, err := acquirer.Acquire(ctx, o.endpoint)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCode(err)
	}
	log.Debug("acquisition finished",
		zap.String("barcode", result.Barcode),
		zap.Int("count", result.Count),
		zap.Int("frames", result.FramesRead),
		zap.Duration("duration", result.Duration),
	)

	res := output{Result: result}
	if o.lookup {
		res.Product, res.Known = lookup(ctx, cfg, result.Barcode, log)
	}

	if o.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFailed
		}
		return exitOK
	}

	fmt.Fprintln(out, result.Barcode)
	if res.Product != nil {
		fmt.Fprintf(out, "%s\tstock=%d\tprice=%s\n", res.Product.Name, res.Product.Stock, res.Product.Price.StringFixed(2))
	}
	return exitOK
}

// lookup returns the stored product; a missing or unreachable store is not an error here
func lookup(ctx context.Context, cfg *config.Config, barcode string, log *zap.Logger) (*catalogapp.ProductResponse, bool) {
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(logger.NewGormLogger(log, gormlogger.Silent)))
	if err != nil {
		log.Warn("inventory store unavailable, skipping lookup", zap.Error(err))
		return nil, false
	}
	defer func() {
		_ = db.Close()
	}()

	products := catalogapp.NewProductService(persistence.NewGormProductRepository(db.DB), nil)
	product, err := products.Get(ctx, barcode)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			log.Warn("product lookup failed", zap.String("barcode", barcode), zap.Error(err))
		}
		return nil, false
	}
	return product, true
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, scanning.ErrDeviceUnreachable):
		return exitUnreachable
	case errors.Is(err, scanning.ErrCancelled):
		return exitCancelled
	default:
		return exitFailed
	}
}
