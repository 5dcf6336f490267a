package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"student_registry/internal/model"
	"student_registry/internal/service/xlsx"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ErrNotConfirmed = errors.New("refusing to delete without --yes")

func (a *App) newAddCommand() *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "add <name> <phone>",
		Short: "Add one student",
		Example: `  registryctl add "أحمد محمد" 01012345678
  registryctl add "Ali Hassan" 0111111111 --code ALI7`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			student, err := a.env.Registry.Add(cmd.Context(), model.Entry{
				Name:  args[0],
				Phone: args[1],
				Code:  code,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\t%s\t%s\n", student.Code, student.Name, student.Phone)
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "explicit student code; the counter is not advanced")
	return cmd
}

func (a *App) newBulkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bulk [file]",
		Short: "Add students from pasted text, one \"name, phone\" per line",
		Long: `Reads lines of "name, phone" from file, or from stdin when no file is given
or the file is "-". Lines without a comma or with an invalid phone are skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				src = f
			}
			text, err := io.ReadAll(src)
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			res, err := a.env.Registry.AddBulkText(cmd.Context(), string(text))
			if err != nil {
				return err
			}
			for _, rej := range res.Rejections {
				a.logger.Info("line skipped", zap.Int("line", rej.Index+1), zap.Error(rej.Err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "accepted %d, skipped %d\n", res.Accepted, res.Skipped)
			return nil
		},
	}
}

func (a *App) newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Import students from a workbook",
		Long: `The first sheet must have a header row with the columns "اسم الطالب" and
"رقم التليفون". Nothing is written if the header is missing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := a.env.Registry.Import(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "accepted %d, skipped %d, malformed %d\n",
				res.Batch.Accepted, res.Batch.Skipped, res.Malformed)
			return nil
		},
	}
}

func (a *App) newExportCommand() *cobra.Command {
	var (
		output string
		title  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all students to a workbook",
		Example: `  registryctl export
  registryctl export --title "بيانات الطلاب" -o students.xlsx
  registryctl export -o - > students.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "-" {
				_, err := a.env.Registry.Export(cmd.Context(), cmd.OutOrStdout(), title)
				return err
			}
			if output == "" {
				output = xlsx.FileName(a.env.ExportBase)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			n, err := a.env.Registry.Export(cmd.Context(), f, title)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(output)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d students to %s\n", n, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", `output file, "-" for stdout (default from EXPORT_BASE_NAME)`)
	cmd.Flags().StringVar(&title, "title", "", "title row above the header")
	return cmd
}

func (a *App) newListCommand() *cobra.Command {
	var (
		search string
		format string
	)
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List students, newest first",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				students []model.Student
				err      error
			)
			if strings.TrimSpace(search) != "" {
				students, err = a.env.Registry.Search(cmd.Context(), search)
			} else {
				students, err = a.env.Registry.Students(cmd.Context())
			}
			if err != nil {
				return err
			}
			switch format {
			case "table", "":
				return writeTable(cmd.OutOrStdout(), students, a.env.Location)
			case "json":
				return writeJSON(cmd.OutOrStdout(), students)
			}
			return fmt.Errorf("unknown output format %q", format)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "filter by name or code")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json")
	return cmd
}

func (a *App) newDeleteCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <code>",
		Short: "Delete the student with the given code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return ErrNotConfirmed
			}
			removed, err := a.env.Registry.Delete(cmd.Context(), args[0], true)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("no student with code %q", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")
	return cmd
}

func (a *App) newPrefixCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prefix [new-prefix]",
		Short: "Show or change the prefix of generated codes",
		Long:  `Without arguments prints the current prefix. Issued codes are never rewritten.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				prefix, err := a.env.Registry.Prefix(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), prefix)
				return nil
			}
			prefix := strings.TrimSpace(args[0])
			if prefix == "" {
				return errors.New("prefix must not be empty")
			}
			if err := a.env.Registry.SetPrefix(cmd.Context(), prefix); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "prefix set to %s\n", prefix)
			return nil
		},
	}
}
