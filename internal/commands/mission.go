package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/settleloop/settleloop/internal/ledger"
	"github.com/settleloop/settleloop/internal/money"
)

func newMissionCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mission",
		Short: "Create and list missions",
	}
	cmd.AddCommand(newMissionCreateCommand(opts), newMissionListCommand(opts), newMissionDeleteCommand(opts))
	return cmd
}

// parseMember reads "Name" or "Name:email".
func parseMember(s string) ledger.MemberParams {
	name, email, _ := strings.Cut(s, ":")
	return ledger.MemberParams{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}
}

func newMissionCreateCommand(opts *rootOptions) *cobra.Command {
	var members []string

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Start a mission with its members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			params := make([]ledger.MemberParams, len(members))
			for i, m := range members {
				params[i] = parseMember(m)
			}
			m, err := a.svc.CreateMission(args[0], params)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created mission %s %q with %d members\n", m.ID, m.Title, len(m.Members))
			return a.commit("mission", "create %s", m.Title)
		},
	}
	cmd.Flags().StringArrayVarP(&members, "member", "m", nil, `member as "Name" or "Name:email" (repeatable)`)
	return cmd
}

func newMissionListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List missions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			missions := a.svc.Missions()
			if len(missions) == 0 {
				fmt.Fprintln(a.out, "No missions yet.")
				return nil
			}
			for _, m := range missions {
				total := money.Sum()
				for _, e := range m.Expenses {
					total = total.Add(e.Amount)
				}
				fmt.Fprintf(a.out, "%s  %-24s %-8s %d members  %d expenses  %s\n",
					m.ID, m.Title, m.Status, len(m.Members), len(m.Expenses), money.Format(total))
			}
			return nil
		},
	}
}

func newMissionDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <mission>",
		Short: "Delete a mission with its rules and bill packs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			m, err := a.mission(args[0])
			if err != nil {
				return err
			}
			if err := a.svc.DeleteMission(m.ID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted mission %q\n", m.Title)
			return a.commit("mission", "delete %s", m.Title)
		},
	}
}

func newMemberCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Add and remove mission members",
	}
	cmd.AddCommand(newMemberAddCommand(opts), newMemberRemoveCommand(opts))
	return cmd
}

func newMemberAddCommand(opts *rootOptions) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "add <mission> <name>",
		Short: "Add a member to a mission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			m, err := a.mission(args[0])
			if err != nil {
				return err
			}
			mem, err := a.svc.AddMember(m.ID, ledger.MemberParams{Name: args[1], Email: email})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added %s (%s) to %q\n", mem.Name, mem.ID, m.Title)
			return a.commit("member", "add %s to %s", mem.Name, m.Title)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email used for settlement reminders")
	return cmd
}

func newMemberRemoveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <mission> <member>",
		Short: "Remove a member from a mission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			m, err := a.mission(args[0])
			if err != nil {
				return err
			}
			mem, err := a.svc.ResolveMember(m.ID, args[1])
			if err != nil {
				return err
			}
			if err := a.svc.RemoveMember(m.ID, mem.ID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed %s from %q\n", mem.Name, m.Title)
			return a.commit("member", "remove %s from %s", mem.Name, m.Title)
		},
	}
}
