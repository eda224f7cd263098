package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"pgregory.net/rapid"
)

func TestStack(t *testing.T) {
	st := Stack[int]{}
	_, ok := st.Pop()
	assert.Check(t, !ok)

	for i1 := 1; i1 <= 3; i1++ {
		st.Push(i1)
	}
	assert.Check(t, is.Equal(st.Size(), 3))

	for i1 := 3; i1 >= 1; i1-- {
		e, ok := st.Pop()
		assert.Check(t, ok)
		assert.Check(t, is.Equal(e, i1))
	}
	assert.Check(t, is.Equal(st.Size(), 0))
}

// TestStackModel checks the Stack against a slice under random pushes and pops.
func TestStackModel(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		st := Stack[int]{}
		var model []int
		ops := rapid.SliceOf(rapid.IntRange(-1, 100)).Draw(rt, "ops")
		for _, e1 := range ops {
			if e1 >= 0 {
				st.Push(e1)
				model = append(model, e1)
				continue
			}
			e, ok := st.Pop()
			if len(model) == 0 {
				assert.Check(rt, !ok)
				continue
			}
			assert.Check(rt, ok)
			assert.Check(rt, is.Equal(e, model[len(model)-1]))
			model = model[:len(model)-1]
		}
		assert.Check(rt, is.Equal(st.Size(), len(model)))
		for i1 := len(model) - 1; i1 >= 0; i1-- {
			e, ok := st.Pop()
			assert.Check(rt, ok)
			assert.Check(rt, is.Equal(e, model[i1]))
		}
		assert.Check(rt, is.Equal(st.Size(), 0))
	})
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, Symbol("java/lang.String.<init>(I)V"), "java_lang_String__init__I_V")
	assert.Equal(t, NewLabel("ArraySum.sum", "B3"), "_LArraySum_sum_B3")
}

func TestPerror(t *testing.T) {
	pe := NewPerror(0)
	wg := sync.WaitGroup{}
	for i1 := 0; i1 < 12; i1++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pe.Append(errors.Errorf("method %d", i))
			pe.Append(nil)
		}(i1)
	}
	wg.Wait()
	pe.Stop()

	assert.Check(t, is.Equal(pe.Len(), 12))
	err := pe.Err()
	assert.Check(t, is.ErrorContains(err, "12 errors: method "))
	assert.Check(t, strings.HasSuffix(err.Error(), "; ..."))
	assert.Check(t, is.Equal(strings.Count(err.Error(), "method "), maxListed))
}

func TestPerrorFew(t *testing.T) {
	pe := NewPerror(2)
	pe.Stop()
	assert.NilError(t, pe.Err())

	pe = NewPerror(2)
	e := errors.New("only")
	pe.Append(e)
	pe.Stop()
	assert.Check(t, is.Equal(pe.Err(), e))
	assert.Check(t, is.Len(pe.Errors(), 1))
}

func TestStatistics(t *testing.T) {
	st := NewStatistics()
	sum, err := st.Summarise(func(m MethodStats) int { return m.Frame })
	assert.NilError(t, err)
	assert.Check(t, is.Equal(sum, Summary{}))

	wg := sync.WaitGroup{}
	for i1, e1 := range []int{6, 1, 2} {
		wg.Add(1)
		go func(i, frame int) {
			defer wg.Done()
			st.Add(MethodStats{Name: fmt.Sprintf("M.m%d", i), Frame: frame, Instructions: 10 * frame})
		}(i1, e1)
	}
	wg.Wait()
	assert.Check(t, is.Equal(st.Len(), 3))

	sum, err = st.Summarise(func(m MethodStats) int { return m.Frame })
	assert.NilError(t, err)
	assert.Check(t, is.Equal(sum, Summary{Sum: 9, Mean: 3, Median: 2, Max: 6}))

	ms := st.Methods()
	assert.Check(t, is.Equal(ms[0].Name, "M.m0"))
	assert.Check(t, is.Equal(ms[2].Name, "M.m2"))

	sb := strings.Builder{}
	assert.NilError(t, st.Print(&sb))
	out := sb.String()
	assert.Check(t, strings.Index(out, "M.m0") < strings.Index(out, "M.m1"))
	assert.Check(t, is.Contains(out, "median"))
	assert.Check(t, is.Contains(out, "instrs"))
}

func TestViolation(t *testing.T) {
	var err error
	func() {
		defer RecoverViolation(&err)
		Assert(1+1 == 2, "arithmetic")
		Assert(false, "spill slot %d in use", 3)
	}()
	assert.Check(t, is.ErrorContains(err, "invariant violation: spill slot 3 in use"))
	assert.Check(t, IsViolation(err))
	assert.Check(t, IsViolation(errors.Wrap(err, "compiling M.m")))
	assert.Check(t, !IsViolation(errors.New("plain")))
	assert.Check(t, is.Contains(fmt.Sprintf("%+v", err), "violation.go"))

	// Other panics propagate.
	defer func() {
		assert.Check(t, is.Equal(recover(), "boom"))
	}()
	func() {
		defer RecoverViolation(&err)
		panic("boom")
	}()
}

func TestWriter(t *testing.T) {
	w := NewBufferWriter()
	w.Label("_LM_m_B0")
	w.Ins("ret")
	w.Ins1("push", "eax")
	w.Ins2("mov", "eax", "ecx")
	w.Ins("add", "eax", "1")
	w.Flush()
	assert.Equal(t, w.String(), "\n_LM_m_B0:\n\tret\n\tpush\teax\n\tmov\teax, ecx\n\tadd\teax, 1\n")
}

func TestListenWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.s")
	f, err := os.Create(path)
	assert.NilError(t, err)
	defer f.Close()

	ListenWrite(2, f)
	wg := sync.WaitGroup{}
	for i1 := 0; i1 < 4; i1++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := NewWriter()
			defer w.Close()
			w.Write("method %d\n", i)
			w.Flush()
		}(i1)
	}
	wg.Wait()
	Close()

	b, err := os.ReadFile(path)
	assert.NilError(t, err)
	for i1 := 0; i1 < 4; i1++ {
		assert.Check(t, is.Contains(string(b), fmt.Sprintf("method %d\n", i1)))
	}
}

func TestReadSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.toml")
	assert.NilError(t, os.WriteFile(path, []byte(`name = "m"`), 0644))
	b, err := ReadSource(path)
	assert.NilError(t, err)
	assert.Equal(t, string(b), `name = "m"`)

	_, err = ReadSource(filepath.Join(t.TempDir(), "none.toml"))
	assert.Check(t, is.ErrorContains(err, "none.toml"))
}
