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
	"path/filepath"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/apex/log"
	"github.com/blacktop/machedit/internal/magic"
	"github.com/blacktop/machedit/pkg/format"
	"github.com/blacktop/machedit/pkg/macho"
	"github.com/blacktop/machedit/pkg/object"
	"github.com/briandowns/spinner"
	"github.com/caarlos0/ctrlc"
	"github.com/fatih/color"
	"github.com/pkg/errors"
)

func confirm(path string, overwrite bool) bool {
	if overwrite {
		return true
	}
	yes := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("You are about to overwrite %s. Continue?", filepath.Base(path)),
	}
	survey.AskOne(prompt, &yes)
	return yes
}

// openMachO parses path on a background goroutine behind a spinner. Ctrl-C
// cancels the parse.
func openMachO(path string) (*macho.File, error) {
	path = filepath.Clean(path)

	if ok, err := magic.IsMachO(path); !ok {
		return nil, errors.Wrapf(err, "cannot open %s", path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := spinner.New(spinner.CharSets[38], 100*time.Millisecond)
	s.Prefix = color.BlueString("   • Loading %s... ", filepath.Base(path))
	s.Start()

	var f format.Format
	err := ctrlc.Default.Run(ctx, func() error {
		res := <-format.OpenAsync(ctx, path)
		f = res.Format
		return res.Err
	})
	s.Stop()
	if err != nil {
		if errors.As(err, &ctrlc.ErrorCtrlC{}) {
			log.Warn("Exiting...")
			return nil, err
		}
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}

	m, ok := f.(*macho.File)
	if !ok {
		return nil, fmt.Errorf("%s is a %s file", path, f.Type())
	}
	return m, nil
}

// selectObjects returns the slices of m matching arch, or all of them when
// arch is empty.
func selectObjects(m *macho.File, arch string) ([]*object.BinaryObject, error) {
	if arch == "" {
		return m.Objects(), nil
	}
	var objs []*object.BinaryObject
	var archs []string
	for _, o := range m.Objects() {
		archs = append(archs, o.CPUType().String())
		if strings.EqualFold(o.CPUType().String(), arch) {
			objs = append(objs, o)
		}
	}
	if len(objs) == 0 {
		return nil, fmt.Errorf("no %s slice in %s (found: %s)", arch, m.File(), strings.Join(archs, ", "))
	}
	return objs, nil
}
