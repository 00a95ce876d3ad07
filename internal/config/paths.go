package config

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved locations of the review's inputs
type Paths struct {
	DataDir     string
	SummaryFile string
	TrialsFile  string
	LogsDir     string
}

// GetPaths resolves the configured data files. Relative directories are
// taken from the working directory; file names that are already absolute are
// used as-is.
func (c *Config) GetPaths() (*Paths, error) {
	dataDir, err := filepath.Abs(c.Data.Dir)
	if err != nil {
		return nil, err
	}

	logsDir, err := filepath.Abs(filepath.Dir(c.Logging.FilePath))
	if err != nil {
		return nil, err
	}

	paths := &Paths{
		DataDir:     dataDir,
		SummaryFile: resolveIn(dataDir, c.Data.SummaryFile),
		LogsDir:     logsDir,
	}
	if c.Data.TrialsFile != "" {
		paths.TrialsFile = resolveIn(dataDir, c.Data.TrialsFile)
	}
	return paths, nil
}

func resolveIn(dir, name string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	return filepath.Join(dir, name)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// LogPathResolution logs where the review expects its inputs
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Info("resolved data paths",
		slog.String("data_dir", p.DataDir),
		slog.String("summary_file", p.SummaryFile),
		slog.Bool("summary_exists", FileExists(p.SummaryFile)),
		slog.String("trials_file", p.TrialsFile),
		slog.Bool("trials_exists", FileExists(p.TrialsFile)),
	)
}
