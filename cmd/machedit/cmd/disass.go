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
	"os"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/alecthomas/chroma/v2/quick"
	"github.com/apex/log"
	"github.com/blacktop/machedit/internal/colors"
	"github.com/blacktop/machedit/internal/config"
	"github.com/blacktop/machedit/internal/utils"
	"github.com/blacktop/machedit/pkg/disass"
	"github.com/blacktop/machedit/pkg/object"
	"github.com/briandowns/spinner"
	"github.com/caarlos0/ctrlc"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(disassCmd)
	disassCmd.Flags().String("arch", "", "Which architecture to use for fat/universal MachO")
	disassCmd.Flags().StringP("section", "x", "", "Only disassemble this section")
	disassCmd.Flags().StringP("syntax", "s", "", "x86 assembly syntax (gnu, intel or go)")
	disassCmd.Flags().IntP("workers", "w", 0, "Number of sections to decode in parallel (default: number of CPUs)")
	disassCmd.Flags().StringSliceP("match", "m", []string{}, "Only print instructions equal to this (can be repeated)")
	disassCmd.Flags().StringP("regex", "r", "", "Only print instructions matching this regex")
	viper.BindPFlag("disass.arch", disassCmd.Flags().Lookup("arch"))
	viper.BindPFlag("disass.section", disassCmd.Flags().Lookup("section"))
	viper.BindPFlag("disass.syntax", disassCmd.Flags().Lookup("syntax"))
	viper.BindPFlag("disass.workers", disassCmd.Flags().Lookup("workers"))
	viper.BindPFlag("disass.match", disassCmd.Flags().Lookup("match"))
	viper.BindPFlag("disass.regex", disassCmd.Flags().Lookup("regex"))
	disassCmd.MarkZshCompPositionalArgumentFile(1)
}

// disassCmd represents the disass command
var disassCmd = &cobra.Command{
	Use:     "disass <MACHO>",
	Aliases: []string{"dis"},
	Short:   "Disassemble the code sections of a MachO",
	Example: heredoc.Doc(`
		# Disassemble every code section with Intel syntax
		❯ machedit disass --syntax intel ./hello
		# Find every ret in the arm64 slice
		❯ machedit disass --arch arm64 --match ret /bin/ls
		# Find calls through the stubs
		❯ machedit disass --regex '^call' ./hello`),
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.LoadConfig()
		if err != nil {
			return err
		}
		syntax, err := disass.ParseSyntax(conf.Disass.Syntax)
		if err != nil {
			return err
		}
		matcher, err := disass.NewInstructionMatcher(viper.GetStringSlice("disass.match"), viper.GetString("disass.regex"))
		if err != nil {
			return err
		}

		m, err := openMachO(args[0])
		if err != nil {
			return err
		}
		objs, err := selectObjects(m, viper.GetString("disass.arch"))
		if err != nil {
			return err
		}

		for _, o := range objs {
			sym, err := disass.NewSymbolizer(o, disass.DefaultCacheSize)
			if err != nil {
				return err
			}
			dec, err := disass.NewDecoder(o.CPUType(), syntax, sym.SymName)
			if err != nil {
				if errors.Is(err, disass.ErrUnsupportedCPU) && len(objs) > 1 {
					log.Warnf("skipping %s slice: %v", o.CPUType(), err)
					continue
				}
				return err
			}

			if err := populate(o, dec, conf.Disass.Workers); err != nil {
				return err
			}

			if len(objs) > 1 {
				log.Info(o.String())
			}

			if matcher.HasCriteria() {
				for _, hit := range disass.Find(o, matcher) {
					utils.Indent(log.Info, 2)(fmt.Sprintf("%#x: %s (%s)", hit.Instruction.Address, hit.Instruction, hit.Section))
				}
				continue
			}

			lexer := "gas"
			if o.CPUType().IsARM64() {
				lexer = "armasm"
			}
			only := viper.GetString("disass.section")
			for _, s := range o.Sections() {
				if d := s.Disassembly(); d != nil && (only == "" || s.Name() == only) {
					if err := printDisassembly(s, d, sym.SymName, lexer); err != nil {
						return err
					}
				}
			}
		}

		return nil
	},
}

// populate decodes the code sections of o behind a spinner. Ctrl-C cancels
// the remaining work.
func populate(o *object.BinaryObject, dec disass.Decoder, workers int) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := spinner.New(spinner.CharSets[38], 100*time.Millisecond)
	s.Prefix = color.BlueString("   • Disassembling %s... ", o.CPUType())
	s.Start()
	defer s.Stop()

	if err := ctrlc.Default.Run(ctx, func() error {
		return disass.Populate(ctx, o, dec, workers)
	}); err != nil {
		if errors.As(err, &ctrlc.ErrorCtrlC{}) {
			log.Warn("Exiting...")
		}
		return errors.Wrap(err, "failed to disassemble")
	}
	return nil
}

func printDisassembly(s *object.Section, d *object.Disassembly, sym disass.SymbolLookup, lexer string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; %s (%s)\n", s.Name(), s.Type())
	disass.Render(&sb, d, sym)

	if colors.Enabled() {
		return quick.Highlight(os.Stdout, sb.String()+"\n", lexer, "terminal256", "nord")
	}
	fmt.Println(sb.String())
	return nil
}
