package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_PortOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floor.yaml")
	data := "buses:\n  - device: /dev/ttyUSB0\n    baud: 250000\n    address_range: 128-150\nlog:\n  level: warn\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	v := viper.New()
	v.Set("config", path)
	v.Set("port", []string{"/dev/ttyACM0", "/dev/ttyACM1"})
	v.Set("log-level", "debug")

	cfg, gotPath, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if gotPath != path {
		t.Errorf("path = %q, want %q", gotPath, path)
	}
	if len(cfg.Buses) != 2 || cfg.Buses[1].Device != "/dev/ttyACM1" {
		t.Fatalf("buses = %+v", cfg.Buses)
	}
	if cfg.Buses[0].Baud != 250000 || cfg.Buses[0].AddressRange != "" {
		t.Errorf("override must keep baud and drop range: %+v", cfg.Buses[0])
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoadConfig_MissingExplicit(t *testing.T) {
	v := viper.New()
	v.Set("config", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, _, err := loadConfig(v); err == nil {
		t.Error("missing explicit config accepted")
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"run", "reset", "off", "ports"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %q: %v", name, err)
		}
	}
}
