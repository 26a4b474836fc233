package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "timeclock",
	Short: "An attendance time clock with face-verified clock-ins",
	Long: `Timeclock is the backend for a kiosk attendance system. It tracks
per-employee per-day clock records (clock-in, breaks, clock-out, worked
hours) and gates clock actions behind hold-to-verify face verification
for employees with an enrolled face descriptor.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
