package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shiwa/ledfloor/internal/serialport"
	"github.com/shiwa/ledfloor/pkg/floor"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Запустить пол: нумерация, отрисовка, опрос датчиков",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(v)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return floor.RunDaemon(ctx, cfg, path, v.GetBool("quiet"))
		},
	}
}

func newResetCmd(v *viper.Viper) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Сбросить адреса плат и перенумеровать их",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(v)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			boards, err := floor.Reset(ctx, cfg, wait)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d boards enumerated\n", len(boards))
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ADDRESS\tCOLUMN\tROW\tSEQ")
			for _, b := range boards {
				fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", b.Address(), b.Column(), b.Row(), b.SequenceNumber())
			}
			return w.Flush()
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 2*time.Second, "сколько ждать ответов плат после ping")
	return cmd
}

func newOffCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "off",
		Short: "Погасить все плиты",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(v)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return floor.TurnOff(ctx, cfg)
		},
	}
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "Список последовательных портов (для usb:VID:PID в конфиге)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := serialport.List()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PORT\tVID:PID\tSERIAL\tPRODUCT")
			for _, p := range ports {
				id := "-"
				if p.IsUSB {
					id = p.VID + ":" + p.PID
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, id, p.Serial, p.Product)
			}
			return w.Flush()
		},
	}
}
