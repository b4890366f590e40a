package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"

	"github.com/and161185/journeyvault/internal/service"
)

// viewerRun adapts a command body that needs the signed-in account.
func (c *cli) viewerRun(fn func(cmd *cobra.Command, viewer uuid.UUID, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		viewer, err := c.viewer()
		if err != nil {
			return err
		}
		return fn(cmd, viewer, args)
	}
}

// journeyRun additionally parses the journey id in args[0].
func (c *cli) journeyRun(fn func(cmd *cobra.Command, viewer, id uuid.UUID, args []string) error) func(*cobra.Command, []string) error {
	return c.viewerRun(func(cmd *cobra.Command, viewer uuid.UUID, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return fn(cmd, viewer, id, args[1:])
	})
}

func newJourneyCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "journey",
		Aliases: []string{"j"},
		Short:   "Create and administer journeys",
	}
	cmd.AddCommand(
		newJourneyCreateCmd(c),
		newJourneyListCmd(c),
		&cobra.Command{
			Use:   "show ID",
			Short: "Show one journey",
			Args:  cobra.ExactArgs(1),
			RunE: c.journeyRun(func(cmd *cobra.Command, viewer, id uuid.UUID, _ []string) error {
				v, err := c.app.journeys.Get(cmd.Context(), viewer, id)
				if err != nil {
					return err
				}
				return c.printJourney(*v)
			}),
		},
		&cobra.Command{
			Use:   "rename ID NAME",
			Short: "Rename a locked journey",
			Args:  cobra.MinimumNArgs(2),
			RunE: c.journeyRun(func(cmd *cobra.Command, viewer, id uuid.UUID, args []string) error {
				j, err := c.app.journeys.Rename(cmd.Context(), viewer, id, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return c.printSaved(j)
			}),
		},
		&cobra.Command{
			Use:   "reschedule ID WHEN",
			Short: "Move the unlock time of a locked journey",
			Args:  cobra.ExactArgs(2),
			RunE: c.journeyRun(func(cmd *cobra.Command, viewer, id uuid.UUID, args []string) error {
				at, err := parseWhen(args[0], c.now())
				if err != nil {
					return err
				}
				j, err := c.app.journeys.Reschedule(cmd.Context(), viewer, id, at)
				if err != nil {
					return err
				}
				return c.printSaved(j)
			}),
		},
		&cobra.Command{
			Use:   "emoji ID [EMOJI]",
			Short: "Set or clear the journey emoji",
			Args:  cobra.RangeArgs(1, 2),
			RunE: c.journeyRun(func(cmd *cobra.Command, viewer, id uuid.UUID, args []string) error {
				var emoji string
				if len(args) > 0 {
					emoji = args[0]
				}
				j, err := c.app.journeys.SetEmoji(cmd.Context(), viewer, id, emoji)
				if err != nil {
					return err
				}
				return c.printSaved(j)
			}),
		},
		&cobra.Command{
			Use:   "cover ID IMAGE",
			Short: "Upload a cover image",
			Args:  cobra.ExactArgs(2),
			RunE: c.journeyRun(func(cmd *cobra.Command, viewer, id uuid.UUID, args []string) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("%w: %v", errUsage, err)
				}
				j, err := c.app.journeys.SetCover(cmd.Context(), viewer, id, data)
				if err != nil {
					return err
				}
				return c.printSaved(j)
			}),
		},
		&cobra.Command{
			Use:   "unlock ID",
			Short: "Unlock a journey now",
			Args:  cobra.ExactArgs(1),
			RunE: c.journeyRun(func(cmd *cobra.Command, viewer, id uuid.UUID, _ []string) error {
				j, err := c.app.journeys.ForceUnlock(cmd.Context(), viewer, id)
				if err != nil {
					return err
				}
				return c.printSaved(j)
			}),
		},
		&cobra.Command{
			Use:   "invite ID EMAIL",
			Short: "Share a journey with a registered user",
			Args:  cobra.ExactArgs(2),
			RunE: c.journeyRun(func(cmd *cobra.Command, viewer, id uuid.UUID, args []string) error {
				uid, err := c.app.journeys.Invite(cmd.Context(), viewer, id, args[0])
				if err != nil {
					return err
				}
				if c.asJSON {
					return printJSON(c.out, collaboratorOut{ID: uid.String(), Email: args[0]})
				}
				_, err = fmt.Fprintf(c.out, "invited %s (%s)\n", args[0], uid)
				return err
			}),
		},
		&cobra.Command{
			Use:   "uninvite ID USER_ID",
			Short: "Remove a collaborator",
			Args:  cobra.ExactArgs(2),
			RunE: c.journeyRun(func(cmd *cobra.Command, viewer, id uuid.UUID, args []string) error {
				uid, err := parseID(args[0])
				if err != nil {
					return err
				}
				return c.app.journeys.RemoveCollaborator(cmd.Context(), viewer, id, uid)
			}),
		},
		&cobra.Command{
			Use:   "collaborators ID",
			Short: "List collaborators",
			Args:  cobra.ExactArgs(1),
			RunE: c.journeyRun(func(cmd *cobra.Command, viewer, id uuid.UUID, _ []string) error {
				cs, err := c.app.journeys.Collaborators(cmd.Context(), viewer, id)
				if err != nil {
					return err
				}
				return c.printCollaborators(cs)
			}),
		},
		newJourneyDeleteCmd(c),
		&cobra.Command{
			Use:   "memories ID",
			Short: "List the memories of an unlocked journey",
			Args:  cobra.ExactArgs(1),
			RunE: c.journeyRun(func(cmd *cobra.Command, viewer, id uuid.UUID, _ []string) error {
				ms, err := c.app.journeys.Memories(cmd.Context(), viewer, id)
				if err != nil {
					return err
				}
				return c.printMemories(ms)
			}),
		},
	)
	return cmd
}

func newJourneyCreateCmd(c *cli) *cobra.Command {
	var unlock, in, emoji string
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a journey that unlocks at a future time",
		Args:  cobra.MinimumNArgs(1),
		RunE: c.viewerRun(func(cmd *cobra.Command, viewer uuid.UUID, args []string) error {
			when := unlock
			if when == "" {
				when = in
			}
			if when == "" {
				return fmt.Errorf("%w: one of --unlock or --in is required", errUsage)
			}
			at, err := parseWhen(when, c.now())
			if err != nil {
				return err
			}
			j, err := c.app.journeys.Create(cmd.Context(), viewer, service.CreateJourneyInput{
				Name:     strings.Join(args, " "),
				UnlockAt: at,
				Emoji:    emoji,
			})
			if err != nil {
				return err
			}
			return c.printSaved(j)
		}),
	}
	cmd.Flags().StringVar(&unlock, "unlock", "", "unlock time (2006-01-02, 2006-01-02 15:04 or RFC3339)")
	cmd.Flags().StringVar(&in, "in", "", "unlock after an offset such as 7d or 36h")
	cmd.Flags().StringVar(&emoji, "emoji", "", "journey emoji")
	cmd.MarkFlagsMutuallyExclusive("unlock", "in")
	return cmd
}

func newJourneyListCmd(c *cli) *cobra.Command {
	var vault bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List journeys you own or share",
		Args:    cobra.NoArgs,
		RunE: c.viewerRun(func(cmd *cobra.Command, viewer uuid.UUID, _ []string) error {
			var (
				views []service.JourneyView
				err   error
			)
			if vault {
				views, err = c.app.journeys.Vault(cmd.Context(), viewer)
			} else {
				views, err = c.app.journeys.List(cmd.Context(), viewer)
			}
			if err != nil {
				return err
			}
			return c.printJourneys(views)
		}),
	}
	cmd.Flags().BoolVar(&vault, "vault", false, "only unlocked journeys")
	return cmd
}

func newJourneyDeleteCmd(c *cli) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a journey with its memories and media",
		Args:  cobra.ExactArgs(1),
		RunE: c.journeyRun(func(cmd *cobra.Command, viewer, id uuid.UUID, _ []string) error {
			if !yes {
				return fmt.Errorf("%w: deleting is permanent, pass --yes", errUsage)
			}
			if err := c.app.journeys.Delete(cmd.Context(), viewer, id); err != nil {
				return err
			}
			_, err := fmt.Fprintf(c.out, "deleted %s\n", id)
			return err
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func newMemoryCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Manage single memories",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete MEMORY_ID",
		Short: "Delete a memory from a journey you belong to",
		Args:  cobra.ExactArgs(1),
		RunE: c.viewerRun(func(cmd *cobra.Command, viewer uuid.UUID, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := c.app.journeys.DeleteMemory(cmd.Context(), viewer, id); err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.out, "deleted %s\n", id)
			return err
		}),
	})
	return cmd
}
