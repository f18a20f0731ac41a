package config

import (
	"flag"
	"fmt"
	"runtime"
)

// Flags are the command line settings shared by every run.
type Flags struct {
	ConfigPath  string
	WALDir      string
	ResultsDir  string
	MetricsFile string
	Parallelism int
	Debug       bool
}

// Get parses the command line and loads the runs of the yaml config.
func Get(args []string) (Flags, []Config, error) {
	fs := flag.NewFlagSet("trailgrid", flag.ContinueOnError)
	var f Flags
	fs.StringVar(&f.ConfigPath, "config", "", "path to yaml config")
	fs.StringVar(&f.WALDir, "wal", "./wal/runs", "run log directory, empty string disables it")
	fs.StringVar(&f.ResultsDir, "results", "./results", "directory for full run results, empty string disables it")
	fs.StringVar(&f.MetricsFile, "metrics", "", "write prometheus metrics to this textfile")
	fs.IntVar(&f.Parallelism, "parallel", runtime.NumCPU(), "max runs executed at once")
	fs.BoolVar(&f.Debug, "debug", false, "development logging")
	if err := fs.Parse(args); err != nil {
		return Flags{}, nil, err
	}

	if f.ConfigPath == "" {
		return Flags{}, nil, fmt.Errorf("--config is required, run `trailgrid setup` to generate one")
	}
	if f.Parallelism < 1 {
		return Flags{}, nil, fmt.Errorf("invalid --parallel provided, --parallel=%d", f.Parallelism)
	}

	configs, err := Load(f.ConfigPath)
	if err != nil {
		return Flags{}, nil, err
	}

	return f, configs, nil
}
