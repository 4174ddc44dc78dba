package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPlanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [plugin...]",
		Short: "Show the order plugins would be constructed in",
		Long: `Resolve the named plugins and their requires and print the order in
which they would be constructed, without constructing anything.

With no arguments the enabled plugins from the configuration are planned,
or every known plugin when none are enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPlan(cmd, args)
		},
	}
}

func (a *app) runPlan(cmd *cobra.Command, args []string) error {
	descs, err := a.catalog.Resolve(a.targets(args)...)
	if err != nil {
		return err
	}

	order, err := a.newEditor().Plugins().Plan(descs...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	st := newStyles(out)
	fmt.Fprintln(out, st.Title.Render("Construction order"))
	for i, id := range order {
		fmt.Fprintf(out, "%3d. %s\n", i+1, st.Name.Render(string(id)))
	}
	return nil
}
