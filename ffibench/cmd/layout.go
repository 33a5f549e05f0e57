package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/analogrelay/go-ffi-boundary/boundary"
	"github.com/analogrelay/go-ffi-boundary/interop"
	"github.com/spf13/cobra"
)

// layoutCmd represents the layout command
var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Check Go mirror structs against the native layouts",
	Long: `Compares every Go struct that mirrors a native struct with the layout the C
compiler produced. With --manifest the native layouts are also checked against
a YAML manifest of expected layouts. With --dump the native layouts are
printed as a manifest instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manifestPath, err := cmd.Flags().GetString("manifest")
		if err != nil {
			return fmt.Errorf("failed to get manifest: %w", err)
		}
		dump, err := cmd.Flags().GetBool("dump")
		if err != nil {
			return fmt.Errorf("failed to get dump: %w", err)
		}

		native, err := interop.NativeLayouts()
		if err != nil {
			return fmt.Errorf("failed to read native layouts: %w", err)
		}

		w := cmd.OutOrStdout()
		if dump {
			return (&boundary.Manifest{Layouts: native}).Write(w)
		}

		var expected *boundary.Manifest
		if manifestPath != "" {
			f, err := os.Open(manifestPath)
			if err != nil {
				return fmt.Errorf("failed to open manifest: %w", err)
			}
			defer f.Close()
			if expected, err = boundary.LoadManifest(f); err != nil {
				return err
			}
		}

		var errs []error
		for _, l := range native {
			err := interop.VerifyLayouts([]boundary.Layout{l})
			if err == nil && expected != nil {
				if want, ok := expected.Lookup(l.Name); ok {
					err = want.Compare(l)
				} else {
					err = fmt.Errorf("%s missing from manifest", l.Name)
				}
			}
			status := "ok"
			if err != nil {
				status = err.Error()
				errs = append(errs, err)
			}
			fmt.Fprintf(w, "%s: size %d, align %d, %d fields: %s\n", l.Name, l.Size, l.Align, len(l.Fields), status)
		}
		if len(errs) > 0 {
			return fmt.Errorf("%d of %d layouts do not match: %w", len(errs), len(native), errors.Join(errs...))
		}
		fmt.Fprintf(w, "all %d layouts match\n", len(native))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(layoutCmd)

	layoutCmd.Flags().StringP("manifest", "m", "", "YAML manifest of expected layouts")
	layoutCmd.Flags().Bool("dump", false, "Print the native layouts as a manifest")
}
