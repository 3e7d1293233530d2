/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/perekladach/internal/registry"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List the registered translation providers",
	Long: `List every registered provider with its aliases, whether it streams,
which credentials it needs and whether the current configuration satisfies
them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, reg := buildOrchestrator()
		config := providersConfig()

		defaults := make(map[string]bool)
		for _, name := range reg.DefaultServices() {
			if e, ok := reg.Lookup(name); ok {
				defaults[e.Key] = true
			}
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tNAME\tKIND\tSTREAMS\tDEFAULT\tREADY\tALIASES")
		for _, e := range reg.Entries() {
			_, ready, _ := registry.Resolve(config, e.Key, e)
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%v\t%v\t%s\n",
				e.Key, e.Name, e.Kind, e.Streams(), defaults[e.Key], ready,
				strings.Join(e.Aliases, ", "))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(servicesCmd)
}
