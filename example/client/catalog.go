package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCatalogCmd() *cobra.Command {
	var catalogPath string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the ASDU types the decoder knows",
		RunE: func(cmd *cobra.Command, args []string) error {
			dec, err := newDecoder(catalogPath, false)
			if err != nil {
				return err
			}
			catalog := dec.Catalog()
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tNAME\tLEN\tFORMAT")
			for _, id := range catalog.TypeIDs() {
				t, _ := catalog.Lookup(id)
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", t.ID, t.Name, t.ElementLength, strings.Join(t.Format, " + "))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "type catalogue yaml (default: built-in)")
	return cmd
}
