package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-queue/internal/model"
)

func NewScreenCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Provision and list waiting room screens",
	}

	var req model.CreateScreenRequest
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a screen with its login secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := opts.backend()
			if err != nil {
				return err
			}
			defer b.Close()

			s, err := b.Display.CreateScreen(cmd.Context(), &req)
			if err != nil {
				return err
			}
			return printScreens(opts, cmd, s)
		},
	}
	add.Flags().IntVar(&req.SequenceNumber, "number", 0, "screen number")
	add.Flags().StringVar(&req.Name, "name", "", "screen name")
	add.Flags().StringVar(&req.Secret, "secret", "", "screen login secret")
	_ = add.MarkFlagRequired("number")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("secret")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List screens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := opts.backend()
			if err != nil {
				return err
			}
			defer b.Close()

			screens, err := b.Display.ListScreens(cmd.Context())
			if err != nil {
				return err
			}
			return printScreens(opts, cmd, screens...)
		},
	})

	return cmd
}

func NewDoctorCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Manage the doctors shown in screen rotation",
	}

	var req model.CreateDoctorRequest
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a doctor to the rotation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := opts.backend()
			if err != nil {
				return err
			}
			defer b.Close()

			d, err := b.Display.AddDoctor(cmd.Context(), &req)
			if err != nil {
				return err
			}
			return newFormatter(opts, cmd.OutOrStdout()).Table(d,
				[]string{"ID", "NO", "NAME", "SPECIALTY", "DAYS"},
				[][]string{{d.ID.String(), strconv.Itoa(d.SequenceNumber), d.Name, d.Specialty, strings.Join(d.WorkingDays, ",")}})
		},
	}
	add.Flags().IntVar(&req.SequenceNumber, "number", 0, "rotation order")
	add.Flags().StringVar(&req.Name, "name", "", "doctor name")
	add.Flags().StringVar(&req.Specialty, "specialty", "", "specialty shown under the name")
	add.Flags().StringVar(&req.ImageRef, "image", "", "image reference")
	add.Flags().StringSliceVar(&req.WorkingDays, "days", nil, "working days, e.g. sat,sun")
	add.Flags().StringVar(&req.Phone, "phone", "", "contact phone")
	_ = add.MarkFlagRequired("number")
	_ = add.MarkFlagRequired("name")
	cmd.AddCommand(add)

	return cmd
}

func printScreens(opts *RootOptions, cmd *cobra.Command, screens ...*model.Screen) error {
	rows := make([][]string, 0, len(screens))
	for _, s := range screens {
		rows = append(rows, []string{s.ID.String(), strconv.Itoa(s.SequenceNumber), s.Name})
	}
	return newFormatter(opts, cmd.OutOrStdout()).Table(screens, []string{"ID", "NO", "NAME"}, rows)
}
