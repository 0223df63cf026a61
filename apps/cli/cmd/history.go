package cmd

import (
	"github.com/spf13/cobra"

	"github.com/courierhq/courier/packages/history"
	"github.com/courierhq/courier/packages/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently sent requests",
	Args:  cobra.NoArgs,
	RunE:  historyCommand,
}

var (
	historyLimitFlag   int
	historyDBFlag      string
	historyNoColorFlag bool
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "l", 20, "Maximum number of entries to show")
	historyCmd.Flags().StringVar(&historyDBFlag, "db", getEnvString("COURIER_HISTORY_DB", ""), "History database path (env: COURIER_HISTORY_DB)")
	historyCmd.Flags().BoolVar(&historyNoColorFlag, "no-color", getEnvBool("COURIER_NO_COLOR", false), "Disable colored output (env: COURIER_NO_COLOR)")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	formatter := output.NewConsoleFormatter(output.WithNoColor(historyNoColorFlag))

	dbPath := historyDBFlag
	if dbPath == "" {
		dbPath = defaultHistoryPath()
	}
	db, err := history.Open(dbPath)
	if err != nil {
		formatter.FormatError(err)
		return err
	}
	defer db.Close()

	entries, err := db.Recent(historyLimitFlag)
	if err != nil {
		formatter.FormatError(err)
		return err
	}
	formatter.FormatHistory(entries)
	return nil
}
