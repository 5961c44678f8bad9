package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/wasefire/wfcore"
	"github.com/wasefire/wfcore/internal/logging"
)

func main() {
	var (
		wasmPath      = flag.String("wasm", "", "Path to the applet wasm module (interpreted engine)")
		nativePath    = flag.String("native", "", "Path to the applet shared object (native engine)")
		memoryPages   = flag.Uint("memory-pages", uint(wasefire.DefaultMemoryPages), "Applet linear memory size, in 64KiB pages")
		transport     = flag.String("transport", "unix", "Host protocol transport: none, unix, tcp")
		transportAddr = flag.String("addr", "", "Transport listen path/address (defaults per transport)")
		numUart       = flag.Int("uart", 1, "Number of simulated UART peripherals")
		verbose       = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	params := wasefire.DefaultParams()
	params.MemoryPages = uint32(*memoryPages)
	params.NumUart = *numUart

	switch {
	case *nativePath != "":
		params.Engine = wasefire.EngineNative
		params.NativePluginPath = *nativePath
	case *wasmPath != "":
		wasmBytes, err := os.ReadFile(*wasmPath)
		if err != nil {
			log.Fatalf("reading applet wasm module: %v", err)
		}
		params.WasmBytes = wasmBytes
	default:
		log.Fatal("one of -wasm or -native is required")
	}

	switch *transport {
	case "none":
		params.Transport = wasefire.TransportNone
	case "unix":
		params.Transport = wasefire.TransportUnix
	case "tcp":
		params.Transport = wasefire.TransportTCP
	default:
		log.Fatalf("unknown transport %q (want none, unix, or tcp)", *transport)
	}
	params.TransportAddr = *transportAddr

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	platform, err := wasefire.Boot(ctx, params, &wasefire.Options{Logger: logger})
	if err != nil {
		logger.Error("failed to boot platform", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("shutting down platform")
		if err := platform.Close(); err != nil {
			logger.Error("error closing platform", "error", err)
		}
	}()

	logger.Info("platform booted", "transport", *transport, "memory_pages", params.MemoryPages)
	fmt.Printf("Platform booted (transport=%s)\n", *transport)
	fmt.Printf("Press Ctrl+C to stop...\n")
	fmt.Printf("Send SIGUSR1 (kill -USR1 %d) to dump goroutine stacks\n", os.Getpid())

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- platform.Run(ctx) }()

	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			buf := make([]byte, 1024*1024)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "\n=== GOROUTINE STACK DUMP ===\n%s\n", buf[:n])
			pprof.Lookup("goroutine").WriteTo(os.Stderr, 2)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		select {
		case <-runErrCh:
		case <-time.After(time.Second):
			logger.Info("run loop did not stop in time, exiting anyway")
		}
	case err := <-runErrCh:
		if err != nil && !wasefire.IsTrapped(err) {
			logger.Error("platform run loop exited", "error", err)
		} else if wasefire.IsTrapped(err) {
			logger.Error("applet trapped", "error", err)
		}
	}
}
