package main

import (
	"log"

	"github.com/spf13/cobra"
)

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:               "waterflow",
		Short:             "Run flow definitions on the waterflow engine",
		PersistentPreRunE: cli.setupConfig,
		SilenceUsage:      true,
	}
	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}
	cmd.AddCommand(validateCommand(cli), runCommand(cli))

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
