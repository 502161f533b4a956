package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shiwa/ledfloor/internal/config"
	"github.com/shiwa/ledfloor/internal/logger"
)

const defaultConfigPath = "ledfloor.yaml"

func newRootCmd() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:          "ledfloor",
		Short:        "LED floor bus master",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.Quiet = v.GetBool("quiet")
			return nil
		},
	}

	f := root.PersistentFlags()
	f.StringP("config", "c", "", "путь к YAML конфигу (по умолчанию "+defaultConfigPath+")")
	f.String("log-level", "", "уровень логов: debug, info, warn, error (переопределяет config)")
	f.Bool("quiet", false, "меньше вывода")
	f.StringSlice("port", nil, "последовательный порт шины, можно несколько (переопределяет config)")
	for _, name := range []string{"config", "log-level", "quiet", "port"} {
		_ = v.BindPFlag(name, f.Lookup(name))
	}
	v.SetEnvPrefix("LEDFLOOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root.AddCommand(newRunCmd(v), newResetCmd(v), newOffCmd(v), newPortsCmd())
	return root
}

// loadConfig читает конфиг (файл по умолчанию может отсутствовать),
// применяет переопределения из флагов и окружения и настраивает логгер.
func loadConfig(v *viper.Viper) (*config.Config, string, error) {
	path := v.GetString("config")
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}
	var cfg *config.Config
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !explicit {
		cfg, path = config.Default(), ""
	} else {
		c, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		cfg = c
	}

	if ports := v.GetStringSlice("port"); len(ports) > 0 {
		tmpl := cfg.Buses[0]
		tmpl.AddressRange = ""
		cfg.Buses = nil
		for _, p := range ports {
			b := tmpl
			b.Device = p
			cfg.Buses = append(cfg.Buses, b)
		}
	}
	if lvl := v.GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := logger.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, "", fmt.Errorf("log: %w", err)
	}
	return cfg, path, nil
}

// signalContext отменяется по SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("получен сигнал %v, завершение...", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
