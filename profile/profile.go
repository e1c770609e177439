// Package profile adds opt-in pprof capture to long pipeline runs and the
// benchmark verb: a CPU profile over the run plus a heap snapshot at exit.
package profile

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/spf13/pflag"
)

// Config holds profiling output paths. Empty paths disable the respective
// profile; a zero-value Config profiles nothing.
type Config struct {
	CPUProfile  string
	HeapProfile string
}

// RegisterFlags adds profiling flags to the given [*pflag.FlagSet].
func (c *Config) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.CPUProfile, "cpu-profile", "", "write a CPU profile to this file")
	flags.StringVar(&c.HeapProfile, "heap-profile", "", "write a heap profile to this file at exit")
}

// Profiler runs the profiles a [Config] enables. Create with
// [Config.NewProfiler]; call [Profiler.Start] before the measured work and
// [Profiler.Stop] after it.
type Profiler struct {
	Config

	cpuFile *os.File
}

// NewProfiler creates a [Profiler] for this configuration.
func (c *Config) NewProfiler() *Profiler {
	return &Profiler{Config: *c}
}

// Start begins CPU profiling if enabled.
func (p *Profiler) Start() error {
	if p.CPUProfile == "" {
		return nil
	}

	f, err := os.Create(p.CPUProfile)
	if err != nil {
		return fmt.Errorf("creating CPU profile: %w", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()

		return fmt.Errorf("starting CPU profile: %w", err)
	}

	p.cpuFile = f

	return nil
}

// Stop ends CPU profiling and writes the heap snapshot if enabled.
func (p *Profiler) Stop() error {
	if p.cpuFile != nil {
		pprof.StopCPUProfile()

		if err := p.cpuFile.Close(); err != nil {
			return fmt.Errorf("closing CPU profile: %w", err)
		}

		p.cpuFile = nil
	}

	if p.HeapProfile == "" {
		return nil
	}

	f, err := os.Create(p.HeapProfile)
	if err != nil {
		return fmt.Errorf("creating heap profile: %w", err)
	}

	if err := pprof.Lookup("heap").WriteTo(f, 0); err != nil {
		f.Close()

		return fmt.Errorf("writing heap profile: %w", err)
	}

	return f.Close()
}
