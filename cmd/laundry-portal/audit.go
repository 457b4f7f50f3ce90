package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func auditCmd(get func() *app) *cobra.Command {
	var limit int64

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recent session events from the audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if a.audit == nil {
				return errors.New("the audit trail is disabled; set MONGO_URI")
			}
			events, err := a.audit.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "AT\tEVENT\tEMAIL\tROLE\tREASON")
			for _, ev := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", ev.At.Local().Format(time.DateTime), ev.Kind, ev.Email, ev.Role, ev.Reason)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int64VarP(&limit, "limit", "n", 20, "Number of events to show")
	return cmd
}
