package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/sarchlab/torii/journal"
	"github.com/sarchlab/torii/trace"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect a recorded journal database.",
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tables a journal database can serve.",
	Run: func(cmd *cobra.Command, _ []string) {
		r := openReader(cmd)
		defer r.Close()

		for _, t := range r.ListTables() {
			fmt.Println(t)
		}
	},
}

var journalDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the rows of one journal table.",
	Run: func(cmd *cobra.Command, _ []string) {
		r := openReader(cmd)
		defer r.Close()

		table, _ := cmd.Flags().GetString("table")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		order, _ := cmd.Flags().GetString("order")

		rows, total, err := r.Query(cmd.Context(), table, journal.QueryParams{
			Limit:   limit,
			Offset:  offset,
			OrderBy: order,
		})
		if err != nil {
			log.Fatalf("Error querying table %s: %v", table, err)
		}

		for _, row := range rows {
			fmt.Printf("%+v\n", row)
		}
		fmt.Printf("%d of %d rows\n", len(rows), total)
	},
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalDumpCmd)

	journalCmd.PersistentFlags().String("db", "",
		"Journal database file to read")
	_ = journalCmd.MarkPersistentFlagRequired("db")

	journalDumpCmd.Flags().String("table", journal.LifecycleTable,
		"Table to dump")
	journalDumpCmd.Flags().Int("limit", 0, "Maximum number of rows, 0 for all")
	journalDumpCmd.Flags().Int("offset", 0, "Number of rows to skip")
	journalDumpCmd.Flags().String("order", "",
		"ORDER BY clause, for example \"Time DESC\"")
}

func openReader(cmd *cobra.Command) journal.Reader {
	db, _ := cmd.Flags().GetString("db")

	r := journal.NewReader(db)
	journal.MapStandardTables(r)
	r.MapTable(trace.SpanTable, trace.SpanRow{})

	return r
}
