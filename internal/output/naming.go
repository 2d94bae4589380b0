package output

import (
	"path/filepath"
	"time"
)

// TimestampLayout formats the UTC run time in output file names.
const TimestampLayout = "2006-01-02_15-04-05"

// File name prefixes.
const (
	annotationsPrefix = "MPC-pph2-annotations-"
	matrixPrefix      = "MPC-pph2-pathways-annotations-"
	logPrefix         = "MPC-pph2_logINFO_"
)

func stamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// AnnotationsPath returns the annotated table path for a run started at t.
func AnnotationsPath(dir string, t time.Time) string {
	return filepath.Join(dir, annotationsPrefix+stamp(t)+".csv")
}

// MatrixPath returns the pathway matrix path for a run started at t.
func MatrixPath(dir string, t time.Time) string {
	return filepath.Join(dir, matrixPrefix+stamp(t)+".csv")
}

// LogPath returns the run log path for a run started at t.
func LogPath(dir string, t time.Time) string {
	return filepath.Join(dir, logPrefix+stamp(t)+".log")
}
