/*
Copyright © 2018-2024 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	mcmd "github.com/blacktop/machedit/internal/commands/macho"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(symsCmd)
	symsCmd.Flags().String("arch", "", "Which architecture to use for fat/universal MachO")
	symsCmd.Flags().BoolP("dyn", "d", false, "List the dynamic (indirect) symbols instead")
	viper.BindPFlag("syms.arch", symsCmd.Flags().Lookup("arch"))
	viper.BindPFlag("syms.dyn", symsCmd.Flags().Lookup("dyn"))
	symsCmd.MarkZshCompPositionalArgumentFile(1)
}

// symsCmd represents the syms command
var symsCmd = &cobra.Command{
	Use:   "syms <MACHO>",
	Short: "List MachO symbols",
	Example: heredoc.Doc(`
		# List symbol table entries
		❯ machedit syms ./hello
		# List stub-resolved dynamic symbols
		❯ machedit syms --dyn ./hello`),
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openMachO(args[0])
		if err != nil {
			return err
		}
		objs, err := selectObjects(m, viper.GetString("syms.arch"))
		if err != nil {
			return err
		}

		for _, o := range objs {
			if len(objs) > 1 {
				log.Info(o.String())
			}
			fmt.Print(mcmd.Symbols(o, viper.GetBool("syms.dyn")))
		}
		return nil
	},
}
