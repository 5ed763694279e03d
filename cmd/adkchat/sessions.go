package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage sessions without opening the chat",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions on the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		sessions := client.ListSessions(cmd.Context())
		if len(sessions) == 0 {
			fmt.Println(dateStyle.Render("no sessions"))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, titleStyle.Render("NAME")+"\t"+titleStyle.Render("UPDATED")+"\t"+titleStyle.Render("ID"))
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				s.Name(),
				dateStyle.Render(s.LastUpdate.Time().Format("2006-01-02 15:04")),
				idStyle.Render(s.ID),
			)
		}
		return w.Flush()
	},
}

var sessionsNewCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Create a session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		session := client.CreateSession(cmd.Context(), name)
		if session.IsFallback() {
			fmt.Println(warnStyle.Render("service unreachable, created a local session"))
		}
		fmt.Printf("%s %s\n", titleStyle.Render(session.Name()), idStyle.Render(session.ID))
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		if err := client.DeleteSession(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println(titleStyle.Render("deleted " + args[0]))
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsNewCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}
