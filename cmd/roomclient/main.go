package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "roomclient",
		Short: "Join a minigame testing room from the command line",
		Long: `roomclient matchmakes into a testing room with a minigame id and
testing access code, connects over the room websocket, and logs every
event the room forwards to the minigame.

Settings come from MINIGAME_* environment variables and .env files;
flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		joinCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "roomclient", version)
		},
	}
}
