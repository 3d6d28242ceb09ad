package cmd

import (
	"text/template"

	"github.com/spf13/cobra"
)

// newVersionCmd creates the Cobra command for displaying the application version.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of offersync",
		Long:  `All software has versions. This is offersync's.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl := template.Must(template.New("version").Parse(versionTemplate))
			return tmpl.Execute(cmd.OutOrStdout(), rootCmd)
		},
	}
}
