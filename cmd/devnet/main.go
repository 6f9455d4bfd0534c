// Command devnet runs the local simulation gateway: an in-process
// contract environment behind the HTTP gateway, with optional state
// persistence across restarts.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	devnet "github.com/branched-services/go-devnet"
	"github.com/branched-services/go-devnet/dump"
	"github.com/branched-services/go-devnet/server"
	"github.com/branched-services/go-devnet/vm"
)

type options struct {
	host     string
	port     int
	gasPrice uint64
	logLevel string
	logFile  string
	loadPath string
	dumpPath string
}

func main() {
	opts := &options{}

	root := &cobra.Command{
		Use:   "devnet",
		Short: "Local simulation gateway for a contract execution environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
		SilenceUsage: true,
	}

	flags := root.Flags()
	flags.StringVar(&opts.host, "host", "127.0.0.1", "address to bind")
	flags.IntVar(&opts.port, "port", 5050, "port to bind")
	flags.Uint64Var(&opts.gasPrice, "gas-price", vm.DefaultConfig().GasPrice, "gas price applied to every execution")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFile, "log-file", "", "log to this file with rotation instead of stderr")
	flags.StringVar(&opts.loadPath, "load-path", "", "restore state from this dump at startup")
	flags.StringVar(&opts.dumpPath, "dump-path", "", "dump state to this path on shutdown")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger: console to stderr, or rotated
// JSON when a log file is configured.
func newLogger(opts *options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(opts.logLevel)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	if opts.logFile == "" {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		return cfg.Build()
	}

	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   opts.logFile,
		MaxSize:    50, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
	})
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), sink, level)
	return zap.New(core), nil
}

func run(opts *options) error {
	log, err := newLogger(opts)
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg := vm.DefaultConfig()
	cfg.GasPrice = opts.gasPrice
	machine := vm.New(vm.WithConfig(cfg), vm.WithLogger(log.Named("vm")))
	d := devnet.New(machine, devnet.WithLogger(log.Named("devnet")))

	if opts.loadPath != "" {
		image, err := dump.Load(opts.loadPath)
		if err != nil {
			return fmt.Errorf("loading state: %w", err)
		}
		if err := d.Restore(image); err != nil {
			return fmt.Errorf("restoring state: %w", err)
		}
		log.Info("state loaded", zap.String("path", opts.loadPath))
	}

	gateway := server.New(d, server.WithLogger(log.Named("gateway")))
	addr := net.JoinHostPort(opts.host, strconv.Itoa(opts.port))
	srv := &http.Server{Addr: addr, Handler: gateway.Handler()}

	errc := make(chan error, 1)
	go func() {
		log.Info("gateway listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case sig := <-sigc:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	if opts.dumpPath != "" {
		if err := dump.Save(opts.dumpPath, d.Dump()); err != nil {
			log.Error("state dump failed", zap.Error(err))
		} else {
			log.Info("state dumped", zap.String("path", opts.dumpPath))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
