package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewInstanceCmd создаёт группу команд для работы с инстансами.
func NewInstanceCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instance",
		Short: "Inspect workflow instances",
	}

	cmd.AddCommand(
		newInstanceHistoryCmd(clientFn, outputFn),
	)

	return cmd
}

func newInstanceHistoryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "history ID",
		Short: "Show the execution history of an instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			hist, err := client.GetHistory(args[0], !raw)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Instance %s (%s): %s",
				hist.Instance.ID, hist.Instance.Workflow, hist.Instance.State))
			out.Entries(hist.Entries, hist)
			return nil
		},
		Args: cobra.ExactArgs(1),
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Show all entries, including per-attempt STARTED records")
	return cmd
}
