package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"hfstudio/internal/catalog"
	"hfstudio/internal/config"
	"hfstudio/internal/gui"
	"hfstudio/internal/httpapi"
	"hfstudio/internal/pipeline"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// flagValues collects the persistent flag overrides.
type flagValues struct {
	cfgPath  string
	endpoint string
	token    string
	device   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	fv := &flagValues{}
	root := &cobra.Command{
		Use:           "hfstudio",
		Short:         "Desktop front-end for hosted text-generation and image-captioning pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := resolve(fv)
			if err != nil {
				return err
			}
			factory := pipeline.NewHFClient(cfg.Endpoint, cfg.Token, log)
			gui.New(factory, buildCatalog(cfg), cfg.Device, log).Run()
			return nil
		},
	}
	root.PersistentFlags().StringVar(&fv.cfgPath, "config", "", "Path to a yaml/json/toml config file")
	root.PersistentFlags().StringVar(&fv.endpoint, "endpoint", "", "Inference API base URL (defaults to the hosted Hugging Face endpoint)")
	root.PersistentFlags().StringVar(&fv.token, "token", "", "API token (defaults HFSTUDIO_TOKEN or HF_API_TOKEN)")
	root.PersistentFlags().StringVar(&fv.device, "device", "", "Compute device hint passed to the pipeline factory")
	root.PersistentFlags().StringVar(&fv.logLevel, "log-level", "", "Log level: debug|info|warn|error")

	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the generate/caption API headlessly",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := resolve(fv)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			return runServe(cfg, log)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :8080")

	models := &cobra.Command{
		Use:   "models",
		Short: "Print the model catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := resolve(fv)
			if err != nil {
				return err
			}
			cat := buildCatalog(cfg)
			for _, label := range cat.Labels() {
				d, _ := cat.ByLabel(label)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", d.Label, d.Kind, d.ModelID)
			}
			return nil
		},
	}

	root.AddCommand(serve, models)
	return root
}

// resolve layers configuration: defaults, then config file, then environment,
// then flags.
func resolve(fv *flagValues) (config.Config, zerolog.Logger, error) {
	_ = godotenv.Load() // best effort; a missing .env is fine
	cfg := config.Default()
	if fv.cfgPath != "" {
		fileCfg, err := config.Load(fv.cfgPath)
		if err != nil {
			return cfg, zerolog.Logger{}, fmt.Errorf("load config: %w", err)
		}
		cfg = config.Overlay(cfg, fileCfg)
	}
	cfg = config.Overlay(cfg, config.FromEnv())
	cfg = config.Overlay(cfg, config.Config{
		Endpoint: fv.endpoint,
		Token:    fv.token,
		Device:   fv.device,
		LogLevel: fv.logLevel,
	})
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return cfg, zerolog.Logger{}, err
	}
	return cfg, log, nil
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level %q: %w", level, err)
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// buildCatalog extends the built-in catalog with config entries.
func buildCatalog(cfg config.Config) *catalog.Catalog {
	cat := catalog.Default()
	for _, m := range cfg.Models {
		kind := catalog.KindText
		if m.Kind == string(catalog.KindImage) {
			kind = catalog.KindImage
		}
		cat.Add(catalog.Descriptor{Label: m.Label, Kind: kind, ModelID: m.Model}, m.Brief)
	}
	return cat
}

func runServe(cfg config.Config, log zerolog.Logger) error {
	factory := pipeline.NewHFClient(cfg.Endpoint, cfg.Token, log)
	api := httpapi.New(factory, buildCatalog(cfg), cfg.Device, log)
	srv := &http.Server{Addr: cfg.Addr, Handler: api.Router()}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("hfstudio API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown")
	}
	return nil
}
