package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"novacontent/internal/queue"
)

var (
	queueState string
	queueLimit int
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show render queue counts and recent jobs",
	RunE:  runQueue,
}

func init() {
	queueCmd.Flags().StringVarP(&queueState, "state", "s", "", "Only list jobs in this state (waiting, active, completed, failed)")
	queueCmd.Flags().IntVarP(&queueLimit, "limit", "l", 20, "Number of jobs to list")
	rootCmd.AddCommand(queueCmd)
}

func runQueue(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	state := queue.State(queueState)
	if state != "" && !validState(state) {
		return fmt.Errorf("unknown job state %q", queueState)
	}

	service, err := loadService(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	q := service.Queue()
	stats, err := q.Stats(ctx)
	if err != nil {
		return err
	}

	countRows := make([][]string, 0, len(queue.States))
	for _, s := range queue.States {
		countRows = append(countRows, []string{string(s), strconv.Itoa(stats.Counts[s])})
	}
	fmt.Println(stats.Queue)
	fmt.Println(renderTable([]string{"State", "Jobs"}, countRows, 2))

	jobs, err := q.List(ctx, state, queueLimit)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs.")
		return nil
	}

	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			j.ID,
			strconv.FormatInt(j.Payload.ProductionID, 10),
			string(j.State),
			fmt.Sprintf("%d%%", j.Progress),
			fmt.Sprintf("%d/%d", j.AttemptsMade, j.MaxAttempts),
			j.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			truncate(j.LastError, 48),
		})
	}
	fmt.Println(renderTable([]string{"Job", "Production", "State", "Progress", "Attempts", "Created", "Last error"}, rows, 2, 4, 5))
	return nil
}

func validState(s queue.State) bool {
	for _, known := range queue.States {
		if s == known {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
