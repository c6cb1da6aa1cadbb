package runner

import (
	"fmt"
	"strings"
	"time"
)

// StageTiming is one entry of the stage-level breakdown collected around the
// cleaning job.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
	Rows     int           `json:"rows,omitempty"`
}

// MetricsCollector brackets the cleaning job. Begin and End are called
// immediately around the job invocation only — never around dataset load or
// sampling.
type MetricsCollector interface {
	Begin()
	End()
	Stages() []StageTiming
}

// StageMetricsProvider is implemented by sessions that can report a per-stage
// breakdown of the last cleaning job (e.g. parsed from sparkmeasure output).
type StageMetricsProvider interface {
	StageTimings() []StageTiming
}

// stopwatchCollector is the default collector: it times the whole bracket and,
// when the session can provide one, pulls the stage breakdown from it.
type stopwatchCollector struct {
	provider StageMetricsProvider // may be nil
	start    time.Time
	elapsed  time.Duration
}

func newStopwatchCollector(sess Session) *stopwatchCollector {
	c := &stopwatchCollector{}
	if p, ok := sess.(StageMetricsProvider); ok {
		c.provider = p
	}
	return c
}

func (c *stopwatchCollector) Begin() { c.start = time.Now() }
func (c *stopwatchCollector) End()   { c.elapsed = time.Since(c.start) }

func (c *stopwatchCollector) Stages() []StageTiming {
	if c.provider != nil {
		if stages := c.provider.StageTimings(); len(stages) > 0 {
			return stages
		}
	}
	return []StageTiming{{Stage: "run_data_cleaning", Duration: c.elapsed}}
}

func formatStages(stages []StageTiming) string {
	var b strings.Builder
	for _, s := range stages {
		fmt.Fprintf(&b, "  %-32s %10.3fs", s.Stage, s.Duration.Seconds())
		if s.Rows > 0 {
			fmt.Fprintf(&b, "  (%d rows)", s.Rows)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
