package output

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/vibe-mpc/internal/annotate"
	"github.com/inodb/vibe-mpc/internal/filter"
)

// Param is a named run parameter. Unset parameters have an empty Value.
type Param struct {
	Name  string
	Value string
}

// RunLog records the parameters and outcome of a run in a log file.
type RunLog struct {
	ID     string
	path   string
	file   *os.File
	logger *zap.Logger
}

// NewRunLog creates the run log file at path and writes the run header.
func NewRunLog(path string, start time.Time) (*RunLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create run log: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.CallerKey = zapcore.OmitKey
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(f), zap.InfoLevel)

	rl := &RunLog{
		ID:     uuid.NewString(),
		path:   path,
		file:   f,
		logger: zap.New(core),
	}
	rl.logger.Info("run started",
		zap.String("run_id", rl.ID),
		zap.Time("start", start.UTC()),
		zap.String("user", currentUser()))
	return rl, nil
}

// Path returns the log file path.
func (rl *RunLog) Path() string {
	return rl.path
}

// Params logs every run parameter.
func (rl *RunLog) Params(params []Param) {
	for _, p := range params {
		rl.logger.Info("parameter", zap.String("name", p.Name), zap.String("value", p.Value))
	}
}

// Stages logs the row counts of filter stages.
func (rl *RunLog) Stages(stages []filter.Stage) {
	for _, s := range stages {
		rl.logger.Info("filter",
			zap.String("stage", s.Name),
			zap.Int("before", s.Before),
			zap.Int("after", s.After),
			zap.Int("dropped", s.Dropped()))
	}
}

// Matches logs how records were linked to the reference.
func (rl *RunLog) Matches(m annotate.MatchStats) {
	rl.logger.Info("reference matches",
		zap.Int("coordinate", m.Coordinate),
		zap.Int("protein", m.Protein),
		zap.Int("unmatched", m.None))
}

// Scores logs the MPC score summary of the written annotations.
func (rl *RunLog) Scores(s ScoreSummary) {
	rl.logger.Info("MPC summary",
		zap.Int("scored", s.Count),
		zap.Float64("mean", s.Mean),
		zap.Float64("median", s.Median),
		zap.Float64("min", s.Min),
		zap.Float64("max", s.Max))
}

// Output logs a written output file.
func (rl *RunLog) Output(kind, path string, rows int) {
	rl.logger.Info("output written",
		zap.String("kind", kind),
		zap.String("path", path),
		zap.Int("rows", rows))
}

// Error logs a run failure.
func (rl *RunLog) Error(err error) {
	rl.logger.Error("run failed", zap.Error(err))
}

// Close writes the run footer and closes the file.
func (rl *RunLog) Close(elapsed time.Duration) error {
	rl.logger.Info("run finished", zap.String("run_id", rl.ID), zap.Duration("elapsed", elapsed))
	rl.logger.Sync()
	return rl.file.Close()
}

// ScoreSummary describes the distribution of MPC scores.
type ScoreSummary struct {
	Count  int
	Mean   float64
	Median float64
	Min    float64
	Max    float64
}

// SummarizeMPC computes summary statistics over the non-null MPC scores.
func SummarizeMPC(anns []*annotate.Annotation) (ScoreSummary, error) {
	var data stats.Float64Data
	for _, a := range anns {
		if a.MPC.Valid {
			data = append(data, a.MPC.Float64)
		}
	}
	s := ScoreSummary{Count: len(data)}
	if len(data) == 0 {
		return s, nil
	}

	var err error
	if s.Mean, err = data.Mean(); err != nil {
		return s, fmt.Errorf("MPC mean: %w", err)
	}
	if s.Median, err = data.Median(); err != nil {
		return s, fmt.Errorf("MPC median: %w", err)
	}
	if s.Min, err = data.Min(); err != nil {
		return s, fmt.Errorf("MPC min: %w", err)
	}
	if s.Max, err = data.Max(); err != nil {
		return s, fmt.Errorf("MPC max: %w", err)
	}
	return s, nil
}

func currentUser() string {
	for _, k := range []string{"USER", "USERNAME", "LOGNAME"} {
		if u := os.Getenv(k); u != "" {
			return u
		}
	}
	return "unknown"
}
