package main

import (
	"github.com/gsekeres/marginalia/internal/jobs"
	"github.com/spf13/cobra"
)

var jobsLimit int

func init() {
	jobsListCmd.Flags().IntVar(&jobsLimit, "limit", 20, "Maximum jobs to show (0 = all)")
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	rootCmd.AddCommand(jobsCmd)
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect background acquisition and summarization jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs, newest first",
	RunE:  runJobsList,
}

var jobsShowCmd = &cobra.Command{
	Use:     "show <job-id>",
	Aliases: []string{"status"},
	Short:   "Show one job's record",
	Args:    cobra.ExactArgs(1),
	RunE:    runJobsShow,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a pending or running job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCancel,
}

func runJobsList(cmd *cobra.Command, args []string) error {
	root := mustFindVault()
	db := mustOpenStore(root)
	defer db.Close()

	list, err := db.ListJobs(jobsLimit)
	if err != nil {
		exitWithError(ExitError, "listing jobs: %v", err)
	}

	if humanOutput {
		if len(list) == 0 {
			outputHuman("No jobs recorded\n")
			return nil
		}
		for _, j := range list {
			outputHuman("  %s  %-10s %-9s %3.0f%%  %s\n",
				j.ID, j.Kind, j.Status, j.Progress*100, j.Citekey)
		}
	} else {
		if list == nil {
			list = []*jobs.Job{}
		}
		outputJSON(list)
	}

	return nil
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	root := mustFindVault()
	db := mustOpenStore(root)
	defer db.Close()

	j, err := db.GetJob(args[0])
	if err != nil {
		exitWithError(ExitDataError, "no job %q: %v", args[0], err)
	}

	if !humanOutput {
		return outputJSON(j)
	}

	outputHuman("job %s\n", j.ID)
	outputHuman("  kind:     %s\n", j.Kind)
	outputHuman("  citekey:  %s\n", j.Citekey)
	outputHuman("  status:   %s\n", j.Status)
	outputHuman("  progress: %.0f%%\n", j.Progress*100)
	if j.Message != "" {
		outputHuman("  message:  %s\n", j.Message)
	}
	if j.Error != "" {
		outputHuman("  error:    %s\n", j.Error)
	}
	return nil
}

// Cancellation flips the database record. A pending job in a live run is
// skipped when its worker reads the row guard; a finished job is untouched.
func runJobsCancel(cmd *cobra.Command, args []string) error {
	root := mustFindVault()
	db := mustOpenStore(root)
	defer db.Close()

	cancelled, err := db.CancelJob(args[0])
	if err != nil {
		exitWithError(ExitError, "cancelling job: %v", err)
	}
	if !cancelled {
		exitWithError(ExitDataError, "job %s is already finished", args[0])
	}

	if humanOutput {
		outputHuman("Cancelled job %s\n", args[0])
	} else {
		outputJSON(StatusResponse{Status: "cancelled"})
	}
	return nil
}
