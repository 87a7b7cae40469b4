package valueparse

// LogLevelMin and LogLevelMax bound the log verbosity levels:
// 0 (terse) through 5 (full request/response dump).
const (
	LogLevelMin = 0
	LogLevelMax = 5
)
