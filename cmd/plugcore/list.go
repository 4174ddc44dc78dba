package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List known plugins",
		Long: `List built-in plugins and the plugins discovered in the search paths,
with their kind, requires and status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runList(cmd)
		},
	}
}

func (a *app) runList(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	st := newStyles(out)

	entries := a.catalog.Entries()
	fmt.Fprintln(out, st.Title.Render(fmt.Sprintf("Plugins (%d)", len(entries))))
	if paths := a.catalog.Paths(); len(paths) > 0 {
		fmt.Fprintln(out, st.Muted.Render("search paths: "+strings.Join(paths, ", ")))
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tREQUIRES\tSTATUS")
	for _, e := range entries {
		requires := "-"
		if len(e.Requires) > 0 {
			requires = strings.Join(e.Requires, ",")
		}

		status := st.Success.Render("ok")
		if e.Err != nil {
			status = st.Error.Render("error: " + e.Err.Error())
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, e.Kind, requires, status)
	}
	return w.Flush()
}
