package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/analogrelay/go-ffi-boundary/boundary"
	"github.com/analogrelay/go-ffi-boundary/interop"
	"github.com/spf13/cobra"
)

// demoCmd represents the demo command
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the interop scenarios through the boundary",
	Long: `Passes structs by pointer, invokes Go callbacks from native code, owns a C++
object through a handle and shows how the boundary reports misuse.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := cmd.Flags().GetString("encoding")
		if err != nil {
			return fmt.Errorf("failed to get encoding: %w", err)
		}
		enc, ok := boundary.LookupEncoding(name)
		if !ok {
			return fmt.Errorf("unknown encoding %q", name)
		}
		return runDemo(cmd.OutOrStdout(), enc)
	},
}

func runDemo(w io.Writer, enc boundary.Encoding) error {
	fmt.Fprintln(w, "== structs ==")
	if err := demoStructs(w, enc); err != nil {
		return err
	}
	fmt.Fprintln(w, "== callbacks ==")
	if err := demoCallbacks(w); err != nil {
		return err
	}
	fmt.Fprintln(w, "== handles ==")
	return demoHandles(w)
}

func demoStructs(w io.Writer, enc boundary.Encoding) error {
	greeting, err := interop.GreetEncoded(enc, "World", interop.Point{X: 10, Y: 20})
	if err != nil {
		return fmt.Errorf("failed to greet: %w", err)
	}
	fmt.Fprintln(w, greeting)

	alice, err := interop.NewPerson("Alice", 30)
	if err != nil {
		return err
	}
	desc, err := alice.Describe()
	if err != nil {
		return fmt.Errorf("failed to describe person: %w", err)
	}
	fmt.Fprintln(w, desc)
	if err := alice.HaveBirthday(); err != nil {
		return fmt.Errorf("failed to have birthday: %w", err)
	}
	desc, err = alice.Describe()
	if err != nil {
		return fmt.Errorf("failed to describe person: %w", err)
	}
	fmt.Fprintf(w, "after have_birthday: %s\n", desc)

	frame, err := interop.NewFrame(3, 4, interop.Point{})
	if err != nil {
		return err
	}
	area, err := frame.Area()
	if err != nil {
		return fmt.Errorf("failed to compute area: %w", err)
	}
	fmt.Fprintf(w, "frame %dx%d at (%d, %d): area %d\n", frame.Width, frame.Height, frame.Origin.X, frame.Origin.Y, area)

	if _, err := interop.NewFrame(-1, 4, interop.Point{}); err != nil {
		fmt.Fprintf(w, "frame width -1: rejected: %v\n", err)
	}
	return nil
}

func demoCallbacks(w io.Writer) error {
	err := interop.PerformAction(5, func(v int32) error {
		fmt.Fprintf(w, "perform_action(5): callback received %d\n", v)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to perform action: %w", err)
	}

	var seen []int32
	err = interop.PerformActionN(5, 3, func(v int32) error {
		seen = append(seen, v)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to perform action: %w", err)
	}
	fmt.Fprintf(w, "perform_action_n(5, 3): %d invocations %v\n", len(seen), seen)

	values := []int32{1, 2, 3}
	if err := interop.MapValues(values, func(v int32) (int32, error) { return v * v, nil }); err != nil {
		return fmt.Errorf("failed to map values: %w", err)
	}
	fmt.Fprintf(w, "map_values([1 2 3]) squared: %v\n", values)

	err = interop.PerformAction(7, func(int32) error { return errors.New("caller rejected the value") })
	fmt.Fprintf(w, "failing callback: %v\n", err)

	stale := boundary.StaleInvocations()
	calls := 0
	if err := interop.RetainAction(func(int32) error {
		calls++
		return nil
	}); err != nil {
		return fmt.Errorf("failed to retain callback: %w", err)
	}
	if err := interop.FireRetained(1); err != nil {
		return fmt.Errorf("failed to fire retained callback: %w", err)
	}
	fmt.Fprintf(w, "retained callback fired after teardown: %d invocations, %d stale\n", calls, boundary.StaleInvocations()-stale)
	return nil
}

func demoHandles(w io.Writer) error {
	before := interop.LiveGreeters()
	g, err := interop.NewGreeter("World")
	if err != nil {
		return fmt.Errorf("failed to create greeter: %w", err)
	}
	greeting, err := g.Greet()
	if err != nil {
		return fmt.Errorf("failed to greet: %w", err)
	}
	fmt.Fprintln(w, greeting)
	fmt.Fprintf(w, "live greeters: %d\n", interop.LiveGreeters()-before)

	if err := g.Close(); err != nil {
		return fmt.Errorf("failed to close greeter: %w", err)
	}
	fmt.Fprintf(w, "after close: %d\n", interop.LiveGreeters()-before)
	fmt.Fprintf(w, "second close: %v\n", g.Close())
	_, err = g.Greet()
	fmt.Fprintf(w, "greet after close: %v\n", err)

	interop.FailNextGreeter()
	_, err = interop.NewGreeter("World")
	fmt.Fprintf(w, "allocation failure: %v\n", err)
	return nil
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().StringP("encoding", "e", "bytes", "String encoding agreed with the native side (bytes, latin1, windows-1252)")
}
