package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aschepis/backscratcher/slots/config"
	"github.com/aschepis/backscratcher/slots/llm"
	slotslogger "github.com/aschepis/backscratcher/slots/logger"
	"github.com/aschepis/backscratcher/slots/model"
	"github.com/aschepis/backscratcher/slots/resilient"
	"github.com/aschepis/backscratcher/slots/slots"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	var (
		configPath  = flag.String("config", config.GetConfigPath(), "Path to config file")
		slotName    = flag.String("slot", config.SlotSonnet, "Slot to invoke")
		prompt      = flag.String("prompt", "", "Prompt to send. If not set, each line read from stdin is sent as a prompt")
		system      = flag.String("system", "", "Optional system prompt")
		maxTokens   = flag.Int64("max-tokens", 0, "Maximum tokens to generate (0 uses the provider default)")
		list        = flag.Bool("list", false, "List available slots and exit")
		logFile     = flag.String("logfile", "", "Path to log file. If not set, logs to stderr")
		pretty      = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
		timeout     = flag.Duration("timeout", 10*time.Minute, "Timeout for each invocation, retries and fallback included")
		metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. localhost:9090)")
	)
	flag.Parse()

	// Validate that --logfile and --pretty are mutually exclusive
	if *logFile != "" && *pretty {
		fmt.Fprintf(os.Stderr, "Error: --logfile and --pretty are mutually exclusive\n")
		os.Exit(1)
	}

	logger, err := slotslogger.InitWithOptions(*logFile, *pretty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
		os.Exit(1)
	}

	catalog, err := model.DefaultCatalog(cfg.ModelSpecs()...)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build model catalog")
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	set, err := slots.Build(cfg, catalog, logger, slots.WithMetrics(resilient.NewMetrics(registry)))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build slots")
		os.Exit(1)
	}

	if *list {
		printSlots(os.Stdout, set)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *metricsAddr != "" {
		srv := serveMetrics(*metricsAddr, registry, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	invoker, err := set.Get(*slotName)
	if err != nil {
		logger.Error().Err(err).Msg("Slot unavailable")
		os.Exit(1)
	}

	run := func(text string) error {
		callCtx, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()

		resp, err := invoker.Invoke(callCtx, &llm.Request{
			System:    *system,
			MaxTokens: *maxTokens,
			Messages:  []llm.Message{llm.NewTextMessage(llm.RoleUser, text)},
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, resp.Text())
		return nil
	}

	exitCode := 0
	if *prompt != "" {
		if err := run(*prompt); err != nil {
			logger.Error().Err(err).Str("slot", *slotName).Msg("Invocation failed")
			exitCode = 1
		}
	} else {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			if err := run(text); err != nil {
				logger.Error().Err(err).Str("slot", *slotName).Msg("Invocation failed")
				exitCode = 1
				if ctx.Err() != nil {
					break
				}
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Error().Err(err).Msg("Failed to read prompts from stdin")
			exitCode = 1
		}
	}

	printCosts(os.Stderr, set.Costs())
	if exitCode != 0 {
		stop()
		os.Exit(exitCode)
	}
}

func serveMetrics(addr string, registry *prometheus.Registry, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("Serving metrics")
	return srv
}

func printSlots(w io.Writer, set *slots.Set) {
	for _, name := range set.Names() {
		invoker, err := set.Get(name)
		if err != nil {
			continue
		}
		fallback := "-"
		if fb := invoker.Fallback(); fb != nil {
			fallback = fb.String()
		}
		fmt.Fprintf(w, "%-10s %-40s %s\n", name, invoker.Primary().String(), fallback)
	}
}

func printCosts(w io.Writer, costs *model.CostTracker) {
	for _, name := range costs.Models() {
		u := costs.Usage(name)
		fmt.Fprintf(w, "%s: %d request(s), %d in / %d out tokens, $%.4f\n", name, u.Requests, u.InputTokens, u.OutputTokens, u.CostUSD)
	}
}
