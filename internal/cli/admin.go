package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

// NewAdminCmd создаёт группу административных команд.
func NewAdminCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "System mode and queue administration",
	}

	cmd.AddCommand(
		newAdminModeCmd(clientFn, outputFn),
		newAdminQueueCmd(clientFn, outputFn),
		newAdminExecutorsCmd(clientFn, outputFn),
	)

	return cmd
}

func newAdminModeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "mode [NORMAL|NOWEBSERVICE|SAFEMODE]",
		Short: "Show or change the system mode",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if len(args) == 0 {
				mode, err := client.GetMode()
				if err != nil {
					return err
				}
				out.Print([]string{"MODE"}, [][]string{{out.Status(mode.Mode)}}, mode)
				return nil
			}

			mode, err := client.SetMode(args[0])
			if err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Mode changed: %s -> %s", mode.Previous, mode.Mode))
			return nil
		},
	}
}

func newAdminQueueCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Dump the dispatcher queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			q, err := client.GetQueue()
			if err != nil {
				return err
			}
			if out.jsonMode {
				out.JSON(q)
				return nil
			}

			rows := make([][]string, len(q.Items))
			for i, item := range q.Items {
				rows[i] = []string{strconv.Itoa(i + 1), item}
			}
			out.Table([]string{"#", "ITEM"}, rows)

			kinds := make([]string, 0, len(q.Active))
			for k := range q.Active {
				kinds = append(kinds, k)
			}
			sort.Strings(kinds)
			active := make([][]string, len(kinds))
			for i, k := range kinds {
				active[i] = []string{k, strconv.Itoa(q.Active[k])}
			}
			out.Section("Active")
			out.Table([]string{"KIND", "ACTIVE"}, active)

			out.Success(fmt.Sprintf("%d queued", q.Size))
			return nil
		},
	}
}

func newAdminExecutorsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "executors",
		Short: "List workflow action types",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			types, err := client.ListExecutors()
			if err != nil {
				return err
			}

			rows := make([][]string, len(types))
			for i, t := range types {
				rows[i] = []string{t}
			}
			out.Print([]string{"TYPE"}, rows, types)
			return nil
		},
	}
}
