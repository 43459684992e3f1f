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
	mcmd "github.com/blacktop/machedit/internal/commands/macho"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().String("arch", "", "Which architecture to use for fat/universal MachO")
	viper.BindPFlag("info.arch", infoCmd.Flags().Lookup("arch"))
	infoCmd.MarkZshCompPositionalArgumentFile(1)
}

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:     "info <MACHO>",
	Aliases: []string{"i"},
	Short:   "Explore a MachO file",
	Example: heredoc.Doc(`
		# Show header, segments, sections, dylibs and versions
		❯ machedit info /bin/ls
		# Only show the arm64e slice of a universal binary
		❯ machedit info --arch arm64e /bin/ls`),
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openMachO(args[0])
		if err != nil {
			return err
		}

		if arch := viper.GetString("info.arch"); arch != "" {
			objs, err := selectObjects(m, arch)
			if err != nil {
				return err
			}
			for _, o := range objs {
				fmt.Println(mcmd.ObjectInfo(o, nil))
			}
			return nil
		}

		fmt.Print(mcmd.Info(m))
		return nil
	},
}
