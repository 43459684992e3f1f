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
	"github.com/blacktop/machedit/internal/colors"
	mcmd "github.com/blacktop/machedit/internal/commands/macho"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().String("arch", "", "Which architecture to compare for fat/universal MachOs")
	diffCmd.Flags().Bool("markdown", false, "Wrap the output in a markdown diff block")
	viper.BindPFlag("diff.arch", diffCmd.Flags().Lookup("arch"))
	viper.BindPFlag("diff.markdown", diffCmd.Flags().Lookup("markdown"))
}

// diffCmd represents the diff command
var diffCmd = &cobra.Command{
	Use:   "diff <OLD> <NEW>",
	Short: "Diff the sections and symbols of two MachOs",
	Example: heredoc.Doc(`
		# Show what a patch changed
		❯ machedit diff ./hello ./hello.patched`),
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		arch := viper.GetString("diff.arch")

		m1, err := openMachO(args[0])
		if err != nil {
			return err
		}
		m2, err := openMachO(args[1])
		if err != nil {
			return err
		}
		objs1, err := selectObjects(m1, arch)
		if err != nil {
			return err
		}
		objs2, err := selectObjects(m2, arch)
		if err != nil {
			return err
		}
		if len(objs1) != len(objs2) {
			return fmt.Errorf("%s has %d slice(s) but %s has %d; select one with --arch", args[0], len(objs1), args[1], len(objs2))
		}

		conf := &mcmd.DiffConfig{
			Color:    colors.Enabled(),
			Markdown: viper.GetBool("diff.markdown"),
		}
		for i := range objs1 {
			out := mcmd.DiffObjects(objs1[i], objs2[i], conf)
			if out == "" {
				log.Infof("%s: no differences", objs1[i].CPUType())
				continue
			}
			if len(objs1) > 1 {
				log.Info(objs1[i].String())
			}
			fmt.Print(out)
		}
		return nil
	},
}
