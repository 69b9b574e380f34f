package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/userdirectory/core/cmd/api/commands"
)

// @title Users Directory API
// @version 1.0
// @description CRUD API over a JSON-file backed users directory

// @host localhost:5000
// @BasePath /

func main() {
	rootCmd := &cobra.Command{
		Use:          "usersapi",
		Short:        "Users Directory API Server",
		Long:         `Users Directory serves create, read, update and delete operations on users kept in a single JSON document.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewDataCommand())
	rootCmd.AddCommand(commands.NewUserCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
