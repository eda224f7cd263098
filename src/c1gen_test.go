package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"c1gen/src/backend"
	"c1gen/src/backend/emit"
	"c1gen/src/frontend"
	"c1gen/src/ir/hir"
	"c1gen/src/util"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

// ----------------------
// ----- Constants ------
// ----------------------

// p defines the maximum number of parallel threads to pass to the compiler.
const p = 4

// --------------------
// ----- Globals ------
// --------------------

// srcPath defines the relative path from the src directory to the bundled method descriptions.
var srcPath = "../resources/methods/"

// ----------------------
// ----- Functions ------
// ----------------------

// helperSources returns the paths of all bundled method descriptions.
func helperSources(tb testing.TB) []string {
	files, err := filepath.Glob(filepath.Join(srcPath, "*.toml"))
	if err != nil {
		tb.Fatal(err)
	}
	if len(files) == 0 {
		tb.Fatalf("no method descriptions in %s", srcPath)
	}
	return files
}

// helperLoad loads all bundled method descriptions.
func helperLoad(tb testing.TB) []*hir.Method {
	files := helperSources(tb)
	res := make([]*hir.Method, len(files))
	for i1, e1 := range files {
		m, err := frontend.LoadFile(e1)
		if err != nil {
			tb.Fatalf("could not load %s: %s", e1, err)
		}
		res[i1] = m
	}
	return res
}

// TestRootCommand compiles every bundled method through the command line and checks that each method is listed.
func TestRootCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.s")
	files := helperSources(t)

	cmd := newRootCommand()
	cmd.SetArgs(append([]string{"--out", out, "--threads", "2"}, files...))
	assert.NilError(t, cmd.ExecuteContext(context.Background()))

	b, err := os.ReadFile(out)
	assert.NilError(t, err)
	for _, e1 := range helperLoad(t) {
		assert.Check(t, is.Contains(string(b), util.Symbol(e1.Name())+":"))
	}
}

func TestRootCommandBadThreads(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--threads", "0", "x.toml"})
	assert.Check(t, is.ErrorContains(cmd.ExecuteContext(context.Background()), "thread count"))
}

// BenchmarkCompile benchmarks the compilation of every bundled method without producing output.
func BenchmarkCompile(b *testing.B) {
	opt := util.DefaultOptions()
	ctx := context.Background()
	for _, e1 := range helperLoad(b) {
		m := e1
		b.Run(m.Name(), func(b *testing.B) {
			for n := 0; n < b.N; n++ {
				if _, err := backend.Compile(ctx, opt, m, emit.Discard{}); err != nil {
					b.Fatalf("Compiler error: %s\n", err)
				}
			}
		})
	}
}

// BenchmarkGenerateAssembler benchmarks the whole driver on all bundled methods for 1 to p worker go routines.
func BenchmarkGenerateAssembler(b *testing.B) {
	opt := util.DefaultOptions()
	opt.Src = helperSources(b)
	ctx := context.Background()

	f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		b.Fatal(err)
	}
	defer f.Close()

	for i1 := 1; i1 <= p; i1++ {
		opt.Threads = i1
		b.Run(fmt.Sprintf("threads=%d", i1), func(b *testing.B) {
			for n := 0; n < b.N; n++ {
				util.ListenWrite(opt.Threads, f)
				if _, err := backend.GenerateAssembler(ctx, opt); err != nil {
					b.Fatalf("Compiler error: %s\n", err)
				}
				util.Close()
			}
		})
	}
}
