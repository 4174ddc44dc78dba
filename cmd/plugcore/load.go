package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type loadFlags struct {
	exec []string
}

func newLoadCmd(a *app) *cobra.Command {
	var flags loadFlags

	cmd := &cobra.Command{
		Use:   "load [plugin...]",
		Short: "Load plugins into an editor",
		Long: `Load the named plugins and their requires into a new editor, print the
plugins in the order they were loaded, then run any --exec commands and
print the resulting document.

Examples:
  plugcore load heading
  plugcore load --exec "input hello" --exec enter --exec "heading 2" typing enter heading`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLoad(cmd, args, flags)
		},
	}

	cmd.Flags().StringArrayVarP(&flags.exec, "exec", "e", nil, "command to run after loading (repeatable)")
	return cmd
}

func (a *app) runLoad(cmd *cobra.Command, args []string, flags loadFlags) (err error) {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	st := newStyles(out)

	descs, err := a.catalog.Resolve(a.targets(args)...)
	if err != nil {
		return err
	}

	ed := a.newEditor()
	defer func() {
		err = errors.Join(err, ed.Close(ctx))
	}()

	created, err := ed.LoadPlugins(ctx, descs...)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, st.Title.Render(fmt.Sprintf("Loaded %d plugins", len(created))))
	for i, p := range created {
		fmt.Fprintf(out, "%3d. %s\n", i+1, st.Name.Render(p.Name()))
	}

	fmt.Fprintln(out, st.Muted.Render("commands: "+strings.Join(ed.Commands(), ", ")))

	if len(flags.exec) == 0 {
		return nil
	}
	for _, line := range flags.exec {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if err := ed.ExecuteCommand(ctx, fields[0], fields[1:]...); err != nil {
			return fmt.Errorf("exec %q: %w", line, err)
		}
	}

	fmt.Fprintln(out, st.Title.Render("Document"))
	for _, b := range ed.Document().Blocks() {
		fmt.Fprintf(out, "%-10s %s\n", st.Muted.Render(b.Kind), b.Text)
	}
	return nil
}
