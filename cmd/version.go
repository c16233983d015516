package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (injected at build time via ldflags)
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion()
		},
	}
}

func runVersion() error {
	fmt.Printf("diet-tracker %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Println()

	fmt.Println("Environment:")
	printKeyStatus("OPENAI_API_KEY")
	printKeyStatus("GEMINI_API_KEY")
	printKeyStatus("AIRTABLE_API_KEY")

	return nil
}

// printKeyStatus shows whether an API key is set without printing it.
func printKeyStatus(name string) {
	v := os.Getenv(name)
	if v == "" {
		fmt.Printf("  %s: Not set\n", name)
		return
	}
	if len(v) < 8 {
		fmt.Printf("  %s: (configured)\n", name)
		return
	}
	fmt.Printf("  %s: %s...%s (configured)\n", name, v[:4], v[len(v)-4:])
}
