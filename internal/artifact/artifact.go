// Package artifact names and recognizes the files the tool itself leaves
// in the target tree: run log files and quarantine directories. Both carry
// a run timestamp so every run's output is distinct.
package artifact

import "regexp"

// StampLayout is the timestamp layout embedded in artifact names,
// e.g. 20240102T150405.
const StampLayout = "20060102T150405"

const (
	quarantinePrefix = "GOSINK_LOST_AND_FOUND_"
	logPrefix        = "gosink_"
	logSuffix        = ".log"
)

var (
	quarantineRe = regexp.MustCompile(`^GOSINK_LOST_AND_FOUND_\d{8}T\d{6}$`)
	logRe        = regexp.MustCompile(`^gosink_\d{8}T\d{6}\.log$`)
)

// QuarantineDirName returns the quarantine directory name for a run stamp.
func QuarantineDirName(stamp string) string {
	return quarantinePrefix + stamp
}

// LogFileName returns the run log file name for a run stamp.
func LogFileName(stamp string) string {
	return logPrefix + stamp + logSuffix
}

// IsQuarantineDir returns true if the name matches a quarantine directory
// produced by any run of the tool.
func IsQuarantineDir(name string) bool {
	return quarantineRe.MatchString(name)
}

// IsLogFile returns true if the name matches a run log file produced by any
// run of the tool.
func IsLogFile(name string) bool {
	return logRe.MatchString(name)
}

// Ignore returns true for any self-generated artifact. Entries matching it
// are invisible to scans, fingerprints and sync passes, so re-running the
// tool against its own prior output never treats artifacts as data.
func Ignore(name string) bool {
	return IsQuarantineDir(name) || IsLogFile(name)
}
