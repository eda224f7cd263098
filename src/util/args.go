package util

import (
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/xyproto/env/v2"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options holds the compiler options. They are resolved from defaults, an optional TOML file, C1_ environment
// variables and command line flags, later sources winning.
type Options struct {
	Src        []string // Paths to method description files. "-" reads stdin.
	Out        string   // Path to output file.
	Threads    int      // Thread count.
	Verbose    bool     // Set true if compiler should log progress to stderr.
	TargetArch int      // Output target architecture.
	Config     string   // Path to the TOML configuration file.

	ImplicitNullChecks       bool // Null pointers trap on access, no explicit checks.
	ImplicitDiv0Checks       bool // Division by zero traps, no explicit checks.
	RangeChecks              bool // Array indices are checked against the length.
	CacheLocalsInLoops       bool // Cache the most used locals of innermost loops in registers.
	CacheReceiver            bool // Cache the receiver of methods without loops in ecx.
	SelectiveReceiverCaching bool // Cache the receiver block by block if it cannot be cached everywhere.
	TraceRegAlloc            bool // Log register assignments and spills.
	TraceLoops               bool // Log local caching decisions.
	Statistics               bool // Print compilation statistics.
}

// fileOptions mirrors Options in a configuration file. Absent keys stay nil.
type fileOptions struct {
	Sources                  []string `toml:"sources"`
	Out                      *string  `toml:"out"`
	Threads                  *int     `toml:"threads"`
	Verbose                  *bool    `toml:"verbose"`
	Arch                     *string  `toml:"arch"`
	ImplicitNullChecks       *bool    `toml:"implicit_null_checks"`
	ImplicitDiv0Checks       *bool    `toml:"implicit_div0_checks"`
	RangeChecks              *bool    `toml:"range_checks"`
	CacheLocalsInLoops       *bool    `toml:"cache_locals_in_loops"`
	CacheReceiver            *bool    `toml:"cache_receiver"`
	SelectiveReceiverCaching *bool    `toml:"selective_receiver_caching"`
	TraceRegAlloc            *bool    `toml:"trace_regalloc"`
	TraceLoops               *bool    `toml:"trace_loops"`
	Statistics               *bool    `toml:"statistics"`
}

// boolOption binds a boolean option to its configuration key, which doubles as flag name and environment suffix.
type boolOption struct {
	key   string
	field func(*Options) *bool
	file  func(*fileOptions) *bool
	usage string
}

// ---------------------
// ----- Constants -----
// ---------------------

const maxThreads = 64 // Maximum threads allowed executing in parallel.

// EnvPrefix prefixes the environment variables overriding options.
const EnvPrefix = "C1_"

// Target machine architectures.
const (
	UnknownArch = iota
	X86_32
)

// -------------------
// ----- globals -----
// -------------------

// archNames maps architecture identifiers to TargetArch values.
var archNames = map[string]int{
	"x86_32": X86_32,
	"i386":   X86_32,
}

// boolOptions lists the boolean options in flag order.
var boolOptions = []boolOption{
	{"implicit_null_checks", func(o *Options) *bool { return &o.ImplicitNullChecks }, func(f *fileOptions) *bool { return f.ImplicitNullChecks }, "rely on traps for null pointers"},
	{"implicit_div0_checks", func(o *Options) *bool { return &o.ImplicitDiv0Checks }, func(f *fileOptions) *bool { return f.ImplicitDiv0Checks }, "rely on traps for division by zero"},
	{"range_checks", func(o *Options) *bool { return &o.RangeChecks }, func(f *fileOptions) *bool { return f.RangeChecks }, "check array indices"},
	{"cache_locals_in_loops", func(o *Options) *bool { return &o.CacheLocalsInLoops }, func(f *fileOptions) *bool { return f.CacheLocalsInLoops }, "cache locals of innermost loops in registers"},
	{"cache_receiver", func(o *Options) *bool { return &o.CacheReceiver }, func(f *fileOptions) *bool { return f.CacheReceiver }, "cache the receiver in ecx"},
	{"selective_receiver_caching", func(o *Options) *bool { return &o.SelectiveReceiverCaching }, func(f *fileOptions) *bool { return f.SelectiveReceiverCaching }, "cache the receiver block by block"},
	{"trace_regalloc", func(o *Options) *bool { return &o.TraceRegAlloc }, func(f *fileOptions) *bool { return f.TraceRegAlloc }, "log register assignments and spills"},
	{"trace_loops", func(o *Options) *bool { return &o.TraceLoops }, func(f *fileOptions) *bool { return f.TraceLoops }, "log local caching decisions"},
	{"statistics", func(o *Options) *bool { return &o.Statistics }, func(f *fileOptions) *bool { return f.Statistics }, "print compilation statistics"},
}

// ---------------------
// ----- functions -----
// ---------------------

// DefaultOptions returns the built in option values.
func DefaultOptions() Options {
	return Options{
		Threads:                  1,
		TargetArch:               X86_32,
		ImplicitNullChecks:       true,
		ImplicitDiv0Checks:       true,
		RangeChecks:              true,
		CacheLocalsInLoops:       true,
		CacheReceiver:            true,
		SelectiveReceiverCaching: true,
	}
}

// flagName returns the command line flag of configuration key key.
func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// envName returns the environment variable of configuration key key.
func envName(key string) string {
	return EnvPrefix + strings.ToUpper(key)
}

// ParseArch returns the TargetArch of architecture identifier s.
func ParseArch(s string) (int, error) {
	if a, ok := archNames[strings.ToLower(s)]; ok {
		return a, nil
	}
	return UnknownArch, errors.Errorf("unexpected architecture identifier: %s", s)
}

// BindFlags registers the option flags on fs.
func BindFlags(fs *pflag.FlagSet) {
	def := DefaultOptions()
	fs.StringP("out", "o", "", "Path and name of the output file.")
	fs.IntP("threads", "t", def.Threads, "Number of methods to compile in parallel.")
	fs.BoolP("verbose", "v", false, "Log progress to stderr.")
	fs.String("arch", "x86_32", "Output architecture.")
	fs.StringP("config", "c", "", "Path to a TOML configuration file.")
	for _, e1 := range boolOptions {
		fs.Bool(flagName(e1.key), *e1.field(&def), e1.usage)
	}
}

// ResolveOptions resolves the options of a run with source files args and the flags in fs.
func ResolveOptions(fs *pflag.FlagSet, args []string) (Options, error) {
	opt := DefaultOptions()
	if fs.Changed("config") {
		opt.Config, _ = fs.GetString("config")
	} else if env.Has(envName("config")) {
		opt.Config = env.Str(envName("config"))
	}
	if len(opt.Config) > 0 {
		if err := opt.LoadFile(opt.Config); err != nil {
			return opt, err
		}
	}
	if err := opt.loadEnv(); err != nil {
		return opt, err
	}
	if err := opt.loadFlags(fs); err != nil {
		return opt, err
	}
	if len(args) > 0 {
		opt.Src = args
	}
	if opt.Threads < 1 || opt.Threads > maxThreads {
		return opt, errors.Errorf("thread count must be integer in range [1, %d], got %d", maxThreads, opt.Threads)
	}
	return opt, nil
}

// LoadFile applies the keys present in the TOML file at path.
func (o *Options) LoadFile(path string) error {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading configuration %s", path)
	}
	f := fileOptions{}
	if err := tree.Unmarshal(&f); err != nil {
		return errors.Wrapf(err, "decoding configuration %s", path)
	}
	if len(f.Sources) > 0 {
		o.Src = f.Sources
	}
	if f.Out != nil {
		o.Out = *f.Out
	}
	if f.Threads != nil {
		o.Threads = *f.Threads
	}
	if f.Verbose != nil {
		o.Verbose = *f.Verbose
	}
	if f.Arch != nil {
		if o.TargetArch, err = ParseArch(*f.Arch); err != nil {
			return errors.Wrapf(err, "configuration %s", path)
		}
	}
	for _, e1 := range boolOptions {
		if v := e1.file(&f); v != nil {
			*e1.field(o) = *v
		}
	}
	return nil
}

// loadEnv applies the C1_ environment variables that are set.
func (o *Options) loadEnv() error {
	if n := envName("out"); env.Has(n) {
		o.Out = env.Str(n)
	}
	if n := envName("threads"); env.Has(n) {
		o.Threads = env.Int(n, o.Threads)
	}
	if n := envName("verbose"); env.Has(n) {
		o.Verbose = env.Bool(n)
	}
	if n := envName("arch"); env.Has(n) {
		a, err := ParseArch(env.Str(n))
		if err != nil {
			return errors.Wrapf(err, "environment %s", n)
		}
		o.TargetArch = a
	}
	for _, e1 := range boolOptions {
		if n := envName(e1.key); env.Has(n) {
			*e1.field(o) = env.Bool(n)
		}
	}
	return nil
}

// loadFlags applies the flags the user set on the command line.
func (o *Options) loadFlags(fs *pflag.FlagSet) error {
	var err error
	if fs.Changed("out") {
		o.Out, _ = fs.GetString("out")
	}
	if fs.Changed("threads") {
		o.Threads, _ = fs.GetInt("threads")
	}
	if fs.Changed("verbose") {
		o.Verbose, _ = fs.GetBool("verbose")
	}
	if fs.Changed("arch") {
		s, _ := fs.GetString("arch")
		if o.TargetArch, err = ParseArch(s); err != nil {
			return err
		}
	}
	for _, e1 := range boolOptions {
		if name := flagName(e1.key); fs.Changed(name) {
			*e1.field(o), _ = fs.GetBool(name)
		}
	}
	return nil
}
