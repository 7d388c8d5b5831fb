package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "iec104client",
		Short: "IEC 60870-5-104 client",
		Long: `iec104client connects to an IEC 60870-5-104 controlled station, keeps the
link alive and writes every decoded ASDU as one JSON line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDecodeCmd())
	rootCmd.AddCommand(newCaptureCmd())
	rootCmd.AddCommand(newCatalogCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
