package labels

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/tflitehelper/internal/classifier"
	"github.com/tphakala/tflitehelper/internal/conf"
)

// Command creates a command that prints the label file with indexes.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "Print the labels of the configured model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			labels, err := classifier.LoadLabels(settings.Classifier.LabelPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, label := range labels {
				if _, err := fmt.Fprintf(out, "%d\t%s\n", i, label); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
