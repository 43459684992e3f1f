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
	"encoding/hex"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/blacktop/machedit/internal/colors"
	mcmd "github.com/blacktop/machedit/internal/commands/macho"
	"github.com/blacktop/machedit/internal/config"
	"github.com/blacktop/machedit/internal/project"
	"github.com/blacktop/machedit/internal/utils"
	"github.com/blacktop/machedit/pkg/format"
	"github.com/blacktop/machedit/pkg/object"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(patchCmd)
	patchCmd.Flags().String("arch", "", "Which architecture to use for fat/universal MachO")
	patchCmd.Flags().String("offset", "", "Absolute file offset to patch")
	patchCmd.Flags().String("vaddr", "", "Virtual address to patch")
	patchCmd.Flags().String("hex", "", "Bytes to write (i.e. \"90 90\" or 0x1f2003d5)")
	patchCmd.Flags().String("version-min", "", "New minimum OS version (X.Y.Z)")
	patchCmd.Flags().String("sdk", "", "New SDK version (X.Y.Z)")
	patchCmd.Flags().BoolP("overwrite", "f", false, "Patch the file in place")
	patchCmd.Flags().BoolP("yes", "y", false, "Do not ask before overwriting")
	patchCmd.Flags().Bool("backup", false, "Keep a .bak copy when patching in place")
	patchCmd.Flags().StringP("output", "o", "", "Directory to save the patched file to")
	patchCmd.Flags().String("save-edits", "", "Save the pending edits to a JSON project file")
	patchCmd.Flags().String("load-edits", "", "Replay the edits of a JSON project file")
	patchCmd.MarkFlagsMutuallyExclusive("offset", "vaddr")
	viper.BindPFlag("patch.arch", patchCmd.Flags().Lookup("arch"))
	viper.BindPFlag("patch.offset", patchCmd.Flags().Lookup("offset"))
	viper.BindPFlag("patch.vaddr", patchCmd.Flags().Lookup("vaddr"))
	viper.BindPFlag("patch.hex", patchCmd.Flags().Lookup("hex"))
	viper.BindPFlag("patch.version-min", patchCmd.Flags().Lookup("version-min"))
	viper.BindPFlag("patch.sdk", patchCmd.Flags().Lookup("sdk"))
	viper.BindPFlag("patch.overwrite", patchCmd.Flags().Lookup("overwrite"))
	viper.BindPFlag("patch.yes", patchCmd.Flags().Lookup("yes"))
	viper.BindPFlag("patch.backup", patchCmd.Flags().Lookup("backup"))
	viper.BindPFlag("patch.dir", patchCmd.Flags().Lookup("output"))
	viper.BindPFlag("patch.save-edits", patchCmd.Flags().Lookup("save-edits"))
	viper.BindPFlag("patch.load-edits", patchCmd.Flags().Lookup("load-edits"))
	patchCmd.MarkZshCompPositionalArgumentFile(1)
}

// patchCmd represents the patch command
var patchCmd = &cobra.Command{
	Use:   "patch <MACHO>",
	Short: "Patch MachO bytes in place",
	Example: heredoc.Doc(`
		# NOP out two bytes at a file offset (writes ./hello.patched)
		❯ machedit patch --offset 0xfa4 --hex "90 90" ./hello
		# Make a function return early
		❯ machedit patch --arch arm64 --vaddr 0x100003f60 --hex c0035fd6 ./hello
		# Lower the minimum macOS version and keep the edits for later
		❯ machedit patch --version-min 10.13 --save-edits hello.json ./hello
		# Replay saved edits into the original file
		❯ machedit patch --load-edits hello.json --overwrite --backup ./hello`),
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
		objs, err := selectObjects(m, viper.GetString("patch.arch"))
		if err != nil {
			return err
		}

		if path := viper.GetString("patch.load-edits"); path != "" {
			proj, err := project.Load(path)
			if err != nil {
				return err
			}
			if proj.File != "" && filepath.Base(proj.File) != filepath.Base(m.File()) {
				log.Warnf("edits were saved for %s", proj.File)
			}
			edits, err := proj.EditMap()
			if err != nil {
				return err
			}
			if err := format.ApplyEdits(m.Objects(), edits); err != nil {
				return errors.Wrap(err, "failed to apply saved edits")
			}
		}

		if err := applyBytePatch(m.Objects(), objs); err != nil {
			return err
		}

		if ver, sdk := viper.GetString("patch.version-min"), viper.GetString("patch.sdk"); ver != "" || sdk != "" {
			for _, o := range objs {
				if _, err := mcmd.PatchVersionMin(o, ver, sdk); err != nil {
					return errors.Wrapf(err, "failed to patch %s slice", o.CPUType())
				}
			}
		}

		edits := format.Edits(m.Objects())
		if len(edits) == 0 {
			return fmt.Errorf("nothing to patch: use --offset/--vaddr with --hex, --version-min/--sdk or --load-edits")
		}
		offs := make([]int64, 0, len(edits))
		for off := range edits {
			offs = append(offs, off)
		}
		slices.Sort(offs)
		log.Infof("%d pending edit(s)", len(edits))
		for _, off := range offs {
			utils.Indent(log.Info, 2)(fmt.Sprintf("%#x: %s", off, colors.Yellow().Sprint(hex.EncodeToString(edits[off]))))
		}

		if path := viper.GetString("patch.save-edits"); path != "" {
			if err := project.New(m.File(), edits).Save(path); err != nil {
				return err
			}
			log.WithField("path", path).Info("Saved edits")
		}

		if viper.GetBool("patch.overwrite") {
			if !confirm(m.File(), viper.GetBool("patch.yes")) {
				return nil
			}
			if err := m.Commit(conf.Patch.Backup); err != nil {
				return errors.Wrap(err, "failed to write patches")
			}
			log.WithField("path", m.File()).Info("Patched")
		} else {
			folder := filepath.Dir(m.File()) // default to folder of macho file
			if len(viper.GetString("patch.dir")) > 0 {
				folder = viper.GetString("patch.dir")
			}
			outPath := filepath.Join(folder, filepath.Base(m.File())) + conf.Patch.Output
			if err := m.Save(outPath); err != nil {
				return errors.Wrap(err, "failed to save patched file")
			}
			log.WithField("path", outPath).Info("Patched")
		}

		log.Warn("code signature has been invalidated (MachO may need to be re-signed)")

		return nil
	},
}

// applyBytePatch handles --offset/--vaddr with --hex.
func applyBytePatch(all, selected []*object.BinaryObject) error {
	offStr, vaddrStr, hexStr := viper.GetString("patch.offset"), viper.GetString("patch.vaddr"), viper.GetString("patch.hex")
	if offStr == "" && vaddrStr == "" {
		if hexStr != "" {
			return fmt.Errorf("--hex needs --offset or --vaddr")
		}
		return nil
	}
	data, err := utils.ParseHexBytes(hexStr)
	if err != nil {
		return errors.Wrap(err, "invalid --hex")
	}

	if offStr != "" {
		off, err := utils.ConvertStrToInt(offStr)
		if err != nil {
			return errors.Wrap(err, "invalid --offset")
		}
		s, err := mcmd.PatchOffset(all, int64(off), data)
		if err != nil {
			return err
		}
		log.WithField("section", s.Name()).Debug("Patched file offset")
		return nil
	}

	if len(selected) > 1 {
		return fmt.Errorf("--vaddr is ambiguous in a universal file; select a slice with --arch")
	}
	addr, err := utils.ConvertStrToInt(vaddrStr)
	if err != nil {
		return errors.Wrap(err, "invalid --vaddr")
	}
	s, err := mcmd.PatchAddress(selected[0], addr, data)
	if err != nil {
		return err
	}
	log.WithField("section", s.Name()).Debug("Patched virtual address")
	return nil
}
