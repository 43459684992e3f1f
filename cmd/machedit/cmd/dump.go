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
	"context"
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/blacktop/machedit/internal/config"
	"github.com/blacktop/machedit/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().String("arch", "", "Which architecture to use for fat/universal MachO")
	dumpCmd.Flags().StringP("section", "x", "", "Section to dump (i.e. Program, \"C-Strings\")")
	dumpCmd.MarkFlagRequired("section")
	viper.BindPFlag("dump.arch", dumpCmd.Flags().Lookup("arch"))
	viper.BindPFlag("dump.section", dumpCmd.Flags().Lookup("section"))
	dumpCmd.MarkZshCompPositionalArgumentFile(1)
}

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump <MACHO>",
	Short: "Hexdump a MachO section",
	Example: heredoc.Doc(`
		# Dump the code section
		❯ machedit dump --section Program ./hello
		# Dump the version-min bytes of the x86_64 slice
		❯ machedit dump --arch x86_64 --section "Version Min (macOS)" ./hello`),
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.LoadConfig()
		if err != nil {
			return err
		}

		m, err := openMachO(args[0])
		if err != nil {
			return err
		}
		objs, err := selectObjects(m, viper.GetString("dump.arch"))
		if err != nil {
			return err
		}

		name := viper.GetString("dump.section")
		found := false
		for _, o := range objs {
			s := o.SectionByName(name)
			if s == nil {
				continue
			}
			found = true

			log.WithFields(log.Fields{
				"arch":   o.CPUType(),
				"addr":   fmt.Sprintf("%#x", s.Address()),
				"offset": fmt.Sprintf("%#x", s.FileOffset()),
				"size":   humanize.Bytes(s.Size()),
			}).Info(s.Name())

			out, err := utils.Encode(context.Background(), s.Data(), s.Address(), conf.Disass.Workers)
			if err != nil {
				return err
			}
			fmt.Println(out)
		}
		if !found {
			return fmt.Errorf("no section named %q", name)
		}
		return nil
	},
}
