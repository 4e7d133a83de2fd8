package handoff

// DefaultWindow is the assumed context window when the hook input omits one.
const DefaultWindow = 200000

// DefaultThreshold is the usage percentage that must be exceeded.
const DefaultThreshold = 70

// WarningPercent is where the budget level moves from OPTIMAL to WARNING.
const WarningPercent = 60

// Level summarizes how close a session is to its context limit.
type Level string

const (
	LevelOptimal  Level = "OPTIMAL"
	LevelWarning  Level = "WARNING"
	LevelCritical Level = "CRITICAL"
)

// Budget is the evaluated context usage of one session.
type Budget struct {
	Tokens    int `json:"tokens"`
	Window    int `json:"window"`
	Percent   int `json:"percent"`
	Threshold int `json:"threshold"`
}

// Evaluate computes the whole-number usage percentage of window, rounding
// down. A non-positive window falls back to DefaultWindow and a non-positive
// threshold to DefaultThreshold.
func Evaluate(u Usage, window, threshold int) Budget {
	if window <= 0 {
		window = DefaultWindow
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	tokens := max(u.Total(), 0)
	return Budget{
		Tokens:    tokens,
		Window:    window,
		Percent:   tokens * 100 / window,
		Threshold: threshold,
	}
}

// Exceeded reports whether usage is strictly above the threshold.
func (b Budget) Exceeded() bool {
	return b.Percent > b.Threshold
}

// Level returns CRITICAL once the threshold is exceeded and WARNING from
// WarningPercent up.
func (b Budget) Level() Level {
	switch {
	case b.Exceeded():
		return LevelCritical
	case b.Percent >= WarningPercent:
		return LevelWarning
	default:
		return LevelOptimal
	}
}

// Remaining is the unused share of the window in whole percent.
func (b Budget) Remaining() int {
	return max(100-b.Percent, 0)
}
