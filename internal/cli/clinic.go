package cli

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/internal/service/queue"
)

func NewClinicCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clinic",
		Short: "Provision and list clinics",
	}

	var req model.CreateClinicRequest
	var screens []string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a clinic with its operator secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(screens)
			if err != nil {
				return err
			}
			req.LinkedScreenIDs = ids
			b, err := opts.backend()
			if err != nil {
				return err
			}
			defer b.Close()

			c, err := b.Queue.CreateClinic(cmd.Context(), &req)
			if err != nil {
				return err
			}
			return printClinics(opts, cmd, c)
		},
	}
	add.Flags().IntVar(&req.SequenceNumber, "number", 0, "display order of the clinic")
	add.Flags().StringVar(&req.Name, "name", "", "clinic name")
	add.Flags().StringVar(&req.Secret, "secret", "", "operator console secret")
	add.Flags().StringSliceVar(&screens, "screen", nil, "screen id the clinic is shown on (repeatable)")
	_ = add.MarkFlagRequired("number")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("secret")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List clinics and their current numbers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := opts.backend()
			if err != nil {
				return err
			}
			defer b.Close()

			clinics, err := b.Queue.ListClinics(cmd.Context())
			if err != nil {
				return err
			}
			return printClinics(opts, cmd, clinics...)
		},
	})

	return cmd
}

// NewCallCommand issues a call as the admin, e.g. "call <id> set 12".
func NewCallCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "call <clinic-id> <next|previous|repeat|set|reset> [number]",
		Short: "Issue a call on a clinic",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid clinic id %q: %w", args[0], err)
			}
			command := queue.Command{Action: queue.Action(args[1])}
			if !command.Action.Valid() {
				return fmt.Errorf("unknown action %q", args[1])
			}
			if command.Action == queue.ActionSet {
				if len(args) != 3 {
					return fmt.Errorf("set needs a number")
				}
				if command.Number, err = strconv.Atoi(args[2]); err != nil || command.Number < 0 {
					return fmt.Errorf("invalid number %q", args[2])
				}
			}

			b, err := opts.backend()
			if err != nil {
				return err
			}
			defer b.Close()

			c, err := b.Queue.Call(cmd.Context(), model.AdminActor(), id, command)
			if err != nil {
				return err
			}
			return printClinics(opts, cmd, c)
		},
	}
}

func NewResetAllCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-all",
		Short: "Reset every clinic to zero",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := opts.backend()
			if err != nil {
				return err
			}
			defer b.Close()

			clinics, err := b.Queue.ResetAll(cmd.Context(), model.AdminActor())
			if perr := printClinics(opts, cmd, clinics...); perr != nil {
				return perr
			}
			return err
		},
	}
}

func printClinics(opts *RootOptions, cmd *cobra.Command, clinics ...*model.Clinic) error {
	rows := make([][]string, 0, len(clinics))
	for _, c := range clinics {
		rows = append(rows, []string{
			c.ID.String(),
			strconv.Itoa(c.SequenceNumber),
			c.Name,
			strconv.Itoa(c.CurrentNumber),
			string(c.Status),
		})
	}
	return newFormatter(opts, cmd.OutOrStdout()).Table(clinics,
		[]string{"ID", "NO", "NAME", "CURRENT", "STATUS"}, rows)
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", r, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
