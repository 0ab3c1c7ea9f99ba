// Command placephoto serves TripSage place photos and trips over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"github.com/tripsage/go-placephoto/config"
)

var log = logging.Logger("placephoto")

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "placephoto",
	Short: "Place photo resolution service",
	Long: `placephoto resolves place identifiers to displayable photo URLs,
falling back to bundled images when the imagery service cannot provide one.

Configuration is read from PLACEPHOTO_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		return logging.SetLogLevel("*", cfg.LogLevel)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, resolveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
