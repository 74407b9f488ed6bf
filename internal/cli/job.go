package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewJobCmd создаёт группу команд для управления job.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage workflow, coordinator and bundle jobs",
	}

	cmd.AddCommand(
		newJobSubmitCmd(clientFn, outputFn),
		newJobListCmd(clientFn, outputFn),
		newJobInfoCmd(clientFn, outputFn),
		newJobActionCmd(clientFn, outputFn, "start", "Start a PREP job"),
		newJobActionCmd(clientFn, outputFn, "suspend", "Suspend a job"),
		newJobActionCmd(clientFn, outputFn, "resume", "Resume a suspended job"),
		newJobActionCmd(clientFn, outputFn, "kill", "Kill a job"),
	)

	return cmd
}

func newJobSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string
	var start bool
	var conf []string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a job definition (YAML or JSON)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			def, err := ReadDefinition(file)
			if err != nil {
				return err
			}
			if err := mergeConf(def, conf); err != nil {
				return err
			}

			resp, err := client.Submit(def, start)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job submitted: %s", resp.ID))
			out.Print(
				[]string{"ID", "TYPE", "STARTED"},
				[][]string{{resp.ID, resp.Type, strconv.FormatBool(resp.Started)}},
				resp,
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Definition file (required)")
	cmd.Flags().BoolVar(&start, "start", true, "Start the job after submission")
	cmd.Flags().StringArrayVar(&conf, "conf", nil, "Job property KEY=VALUE (repeatable)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newJobListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListJobsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			list, err := client.ListJobs(opts)
			if err != nil {
				return err
			}

			jobs := list.All()
			headers := []string{"ID", "NAME", "STATUS", "CREATED"}
			rows := make([][]string, len(jobs))
			for i, j := range jobs {
				rows[i] = []string{j.ID, j.DisplayName(), out.Status(j.Status), out.Time(j.CreatedAt)}
			}

			out.Print(headers, rows, jobs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "workflow", "Job type: workflow, coordinator, bundle")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Max number of jobs")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Number of jobs to skip")

	return cmd
}

func newJobInfoCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "info ID",
		Short: "Show job details and actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			info, err := client.GetJob(args[0])
			if err != nil {
				return err
			}
			if out.jsonMode {
				out.JSON(info)
				return nil
			}

			job := info.Job()
			out.Table(
				[]string{"ID", "NAME", "STATUS", "CREATED", "STARTED", "ENDED", "ELAPSED"},
				[][]string{{
					job.ID, job.DisplayName(), out.Status(job.Status),
					out.Time(job.CreatedAt), out.Time(job.StartedAt), out.Time(job.EndedAt),
					out.Elapsed(job.StartedAt, job.EndedAt),
				}},
			)
			if job.ErrorMessage != "" {
				out.Error(job.ErrorMessage)
			}
			printActions(out, info)
			return nil
		},
	}
}

// printActions выводит действия job в зависимости от его типа.
func printActions(out *Output, info *JobInfoResponse) {
	switch {
	case len(info.WorkflowActions) > 0:
		rows := make([][]string, len(info.WorkflowActions))
		for i, a := range info.WorkflowActions {
			rows[i] = []string{a.Name, a.Type, out.Status(a.Status), strconv.Itoa(a.Retries), a.ExternalID, a.ErrorCode}
		}
		out.Section("Workflow actions")
		out.Table([]string{"ACTION", "TYPE", "STATUS", "RETRIES", "EXTERNAL_ID", "ERROR"}, rows)

	case len(info.CoordActions) > 0:
		rows := make([][]string, len(info.CoordActions))
		for i, a := range info.CoordActions {
			rows[i] = []string{strconv.Itoa(a.Number), out.Time(a.NominalTime), out.Status(a.Status), a.ExternalID, a.MissingDependencies}
		}
		out.Section("Coordinator actions")
		out.Table([]string{"NUMBER", "NOMINAL", "STATUS", "WORKFLOW", "MISSING"}, rows)

	case info.Bundle != nil && len(info.Bundle.Actions) > 0:
		rows := make([][]string, len(info.Bundle.Actions))
		for i, a := range info.Bundle.Actions {
			rows[i] = []string{a.CoordName, a.CoordJobID, out.Status(a.Status), strconv.Itoa(a.Pending)}
		}
		out.Section("Bundle coordinators")
		out.Table([]string{"COORDINATOR", "JOB_ID", "STATUS", "PENDING"}, rows)
	}
}

func newJobActionCmd(clientFn func() *Client, outputFn func() *Output, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.JobAction(args[0], action); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job %s: %s requested", args[0], action))
			return nil
		},
	}
}

// ReadDefinition читает файл определения. YAML — надмножество JSON,
// поэтому оба формата разбираются одним парсером.
func ReadDefinition(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}

	var def map[string]any
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}
	if len(def) == 0 {
		return nil, fmt.Errorf("definition %s is empty", path)
	}
	return def, nil
}

// mergeConf добавляет KEY=VALUE пары в conf определения.
func mergeConf(def map[string]any, pairs []string) error {
	if len(pairs) == 0 {
		return nil
	}

	conf, _ := def["conf"].(map[string]any)
	if conf == nil {
		conf = make(map[string]any, len(pairs))
	}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return fmt.Errorf("invalid --conf %q, expected KEY=VALUE", p)
		}
		conf[k] = v
	}
	def["conf"] = conf
	return nil
}
