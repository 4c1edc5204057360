package dockercli

import (
	"context"
	"strings"
)

// FakeResult scripts the outcome of one fake invocation.
type FakeResult struct {
	Out string
	Err error
}

// Fake is a Runner for tests: invocations are recorded and results come from
// Script, keyed by the space-joined argument list. A key is also accepted as
// a prefix of the actual command, so long build invocations can be scripted
// by their leading args. Unscripted commands succeed with empty output.
type Fake struct {
	Calls  [][]string
	Script map[string]FakeResult
}

func (f *Fake) Run(_ context.Context, args ...string) error {
	f.Calls = append(f.Calls, args)
	return f.lookup(args).Err
}

func (f *Fake) Output(_ context.Context, args ...string) (string, error) {
	f.Calls = append(f.Calls, args)
	r := f.lookup(args)
	return r.Out, r.Err
}

// CommandLines renders recorded calls for assertions.
func (f *Fake) CommandLines() []string {
	out := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		out = append(out, strings.Join(c, " "))
	}
	return out
}

func (f *Fake) lookup(args []string) FakeResult {
	line := strings.Join(args, " ")
	if r, ok := f.Script[line]; ok {
		return r
	}
	for k, r := range f.Script {
		if strings.HasPrefix(line, k) {
			return r
		}
	}
	return FakeResult{}
}
