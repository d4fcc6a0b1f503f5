package cmd

import (
	"github.com/spf13/cobra"
)

const AppName = "cfbx"

func Execute() error {
	rootCmd := &cobra.Command{
		Use:   AppName,
		Short: AppName + " - compound file binary (OLE2) stream reader",
	}

	rootCmd.AddCommand(DefineExtractCommand())
	rootCmd.AddCommand(DefineMountCommand())
	rootCmd.AddCommand(DefineLocateCommand())

	return rootCmd.Execute()
}
