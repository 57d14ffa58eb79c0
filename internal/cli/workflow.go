package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewWorkflowCmd создаёт группу команд для работы с workflow.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Manage workflows",
	}

	cmd.AddCommand(
		newWorkflowListCmd(clientFn, outputFn),
		newWorkflowShowCmd(clientFn, outputFn),
		newWorkflowStartCmd(clientFn, outputFn),
		newWorkflowFireCmd(clientFn, outputFn),
		newWorkflowResumeCmd(clientFn, outputFn),
		newWorkflowStatsCmd(clientFn, outputFn),
	)

	return cmd
}

// NewReloadCmd создаёт команду reload манифеста.
func NewReloadCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload the workflow manifest on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			res, err := client.Reload()
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Manifest reloaded: generation %d, %d workflows", res.Generation, len(res.Workflows)))
			return nil
		},
	}
}

func newWorkflowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			workflows, err := client.ListWorkflows()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "START_METHOD", "STEPS", "TRIGGERS", "DESCRIPTION"}
			rows := make([][]string, len(workflows))
			for i, wf := range workflows {
				rows[i] = []string{wf.Name, wf.StartMethod, strconv.Itoa(wf.Steps), strconv.Itoa(wf.Triggers), wf.Description}
			}

			out.Print(headers, rows, workflows)
			return nil
		},
	}
}

func newWorkflowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			detail, err := client.GetWorkflow(args[0])
			if err != nil {
				return err
			}

			// Definition — вложенный JSON, таблицей его не показать
			out.JSON(detail)
			return nil
		},
	}
}

func newWorkflowStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var payloadStr string

	cmd := &cobra.Command{
		Use:   "start NAME",
		Short: "Start a workflow from its first trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			inst, err := client.StartWorkflow(args[0], parsePayload(payloadStr))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Instance %s: %s", inst.ID, inst.State))
			out.Instance(inst)
			return nil
		},
	}

	cmd.Flags().StringVar(&payloadStr, "payload", "", "Initial payload (JSON or plain string)")
	return cmd
}

func newWorkflowFireCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var payloadStr string

	cmd := &cobra.Command{
		Use:   "fire NAME STEP",
		Short: "Fire a specific trigger step",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			inst, err := client.FireTrigger(args[0], args[1], parsePayload(payloadStr))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Instance %s: %s", inst.ID, inst.State))
			out.Instance(inst)
			return nil
		},
	}

	cmd.Flags().StringVar(&payloadStr, "payload", "", "Initial payload (JSON or plain string)")
	return cmd
}

func newWorkflowResumeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var payloadStr string

	cmd := &cobra.Command{
		Use:   "resume NAME STEP",
		Short: "Resume an instance suspended at a wait-for-event step",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			res, err := client.ResumeStep(args[0], args[1], parsePayload(payloadStr))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Resumed instance: %s", res.InstanceID))
			return nil
		},
	}

	cmd.Flags().StringVar(&payloadStr, "payload", "", "Event payload (JSON or plain string)")
	return cmd
}

func newWorkflowStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stats NAME",
		Short: "Show live stats of the workflow's current instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stats, err := client.GetStats(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Instance %s: %s (%d ms)", stats.InstanceID, stats.State, stats.ElapsedMs))
			out.Entries(stats.Log, stats)
			return nil
		},
	}
}

// parsePayload разбирает значение флага --payload: JSON, если
// разбирается, иначе сырая строка.
func parsePayload(s string) any {
	if s == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}
