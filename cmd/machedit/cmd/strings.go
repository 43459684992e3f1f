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
	"slices"

	"github.com/apex/log"
	"github.com/blacktop/machedit/internal/colors"
	mcmd "github.com/blacktop/machedit/internal/commands/macho"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(stringsCmd)
	stringsCmd.Flags().String("arch", "", "Which architecture to use for fat/universal MachO")
	viper.BindPFlag("strings.arch", stringsCmd.Flags().Lookup("arch"))
	stringsCmd.MarkZshCompPositionalArgumentFile(1)
}

// stringsCmd represents the strings command
var stringsCmd = &cobra.Command{
	Use:           "strings <MACHO>",
	Short:         "List the C-strings of a MachO",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openMachO(args[0])
		if err != nil {
			return err
		}
		objs, err := selectObjects(m, viper.GetString("strings.arch"))
		if err != nil {
			return err
		}

		colorAddr := colors.FaintHiBlue().SprintfFunc()

		for _, o := range objs {
			if len(objs) > 1 {
				log.Info(o.String())
			}
			strs := mcmd.GetStrings(o)
			addrs := make([]uint64, 0, len(strs))
			for addr := range strs {
				addrs = append(addrs, addr)
			}
			slices.Sort(addrs)
			for _, addr := range addrs {
				fmt.Printf("%s: %q\n", colorAddr("%#09x", addr), strs[addr])
			}
		}
		return nil
	},
}
