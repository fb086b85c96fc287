package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newLoansCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "loans", Short: "Loan reports and administrative closure"}

	cmd.AddCommand(&cobra.Command{
		Use:   "overdue",
		Short: "List open loans past their expected return date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loans, err := a.loans.FindOverdue(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, loans)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "due-soon",
		Short: "List open loans due within the due-soon window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loans, err := a.loans.FindDueSoon(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, loans)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Count loans per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.loans.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		},
	})

	var notes string
	lost := &cobra.Command{
		Use:   "lost <loan-id>",
		Short: "Close an open loan as LOST and mark its book LOST",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			l, err := a.loans.MarkLost(cmd.Context(), id, notes)
			if err != nil {
				return err
			}
			return printJSON(cmd, l)
		},
	}
	lost.Flags().StringVar(&notes, "notes", "", "note stored on the loan")

	cancel := &cobra.Command{
		Use:   "cancel <loan-id>",
		Short: "Cancel an open loan and release its book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			l, err := a.loans.Cancel(cmd.Context(), id, notes)
			if err != nil {
				return err
			}
			return printJSON(cmd, l)
		},
	}
	cancel.Flags().StringVar(&notes, "notes", "", "note stored on the loan")

	cmd.AddCommand(lost, cancel)
	return cmd
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
