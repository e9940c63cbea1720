/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/database"
	"github.com/Zapuzallp/CASUITE-sub000/internal/recurrence"
	"github.com/Zapuzallp/CASUITE-sub000/internal/workflow"
	"github.com/spf13/cobra"
)

// jobsCmd 定时任务的一次性执行入口,供外部 cron 调用
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run scheduled jobs once",
}

var runRecurringCmd = &cobra.Command{
	Use:   "run-recurring",
	Short: "Copy recurring tasks whose next run is due",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd, recurrence.JobRecurring)
	},
}

var generatePeriodsCmd = &cobra.Command{
	Use:   "generate-periods",
	Short: "Create period tasks for active client services",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd, recurrence.JobPeriods)
	},
}

// runJob 连接数据库并执行一次作业,结果以 JSON 输出
func runJob(cmd *cobra.Command, name string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if date, _ := cmd.Flags().GetString("date"); date != "" {
		now, err = time.Parse("2006-01-02", date)
		if err != nil {
			return fmt.Errorf("invalid --date, expected YYYY-MM-DD: %w", err)
		}
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	catalog, err := workflow.LoadCatalog(cfg.Workflow.File)
	if err != nil {
		return fmt.Errorf("failed to load workflow catalog: %w", err)
	}
	engine := workflow.NewEngine(db, catalog, workflow.WithLogger(log))

	var result *recurrence.JobResult
	switch name {
	case recurrence.JobPeriods:
		result, err = recurrence.NewGenerator(db, engine, log).GeneratePeriods(cmd.Context(), now)
	default:
		result, err = recurrence.NewJob(db, recurrence.NewCopier(engine), log).RunRecurring(cmd.Context(), now)
	}
	if result != nil {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}
	return err
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(runRecurringCmd, generatePeriodsCmd)
	jobsCmd.PersistentFlags().String("date", "", "Run as of this date (YYYY-MM-DD), default today")
}
