package tudat

import (
	"fmt"
	"os"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// ExportConfig configures the CSV export of a propagation or estimation run.
type ExportConfig struct {
	Filename     string
	Timestamp    bool                  // add the creation time to the file name
	CSVAppend    func(st State) string // custom columns (do not include leading comma)
	CSVAppendHdr func() string         // header for the custom columns
}

// IsUseless returns whether this config doesn't actually do anything.
func (c ExportConfig) IsUseless() bool {
	return c.Filename == ""
}

// outputFile creates the export file in the configured output directory.
// The returned file requires a defer close statement!
func (c ExportConfig) outputFile(kind string) *os.File {
	filename := fmt.Sprintf("%s/%s-%s.csv", config().outputDir, kind, c.Filename)
	if c.Timestamp {
		t := time.Now()
		filename = fmt.Sprintf("%s/%s-%s-%d-%02d-%02dT%02d.%02d.%02d.csv", config().outputDir, kind, c.Filename, t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	}
	f, err := os.Create(filename)
	if err != nil {
		panic(err)
	}
	return f
}

// StreamStates consumes a propagation state channel and writes one CSV row
// per accepted step: julian date, epoch, then every augmented state entry in
// layout order. Register it on a propagation via RegisterStateChan.
func StreamStates(conf ExportConfig, layout *StateLayout) func(states <-chan State) {
	if conf.IsUseless() {
		panic("state export needs a file name")
	}
	return func(states <-chan State) {
		f := conf.outputFile("prop")
		defer f.Close()
		f.WriteString(fmt.Sprintf("# Creation date (UTC): %s\njd,epoch", time.Now().UTC()))
		for _, spec := range layout.Specs() {
			for _, name := range spec.Bodies {
				switch spec.Type {
				case Translational:
					for _, c := range []string{"x", "y", "z", "vx", "vy", "vz"} {
						f.WriteString(fmt.Sprintf(",%s_%s", name, c))
					}
				case Rotational:
					for _, c := range []string{"q0", "q1", "q2", "q3", "wx", "wy", "wz"} {
						f.WriteString(fmt.Sprintf(",%s_%s", name, c))
					}
				}
			}
		}
		if conf.CSVAppendHdr != nil {
			f.WriteString("," + conf.CSVAppendHdr())
		}
		for state := range states {
			row := fmt.Sprintf("\n%f,%s", julian.TimeToJD(state.DT), state.DT.UTC().Format("2006-01-02 15:04:05"))
			for i := 0; i < layout.Dim(); i++ {
				row += fmt.Sprintf(",%.9f", state.Vec[i])
			}
			if conf.CSVAppend != nil {
				row += "," + conf.CSVAppend(state)
			}
			if _, err := f.WriteString(row); err != nil {
				panic(err)
			}
		}
		f.WriteString("\n")
	}
}

// ExportResiduals writes the per iteration residuals of an estimation report:
// one row per observation with its residual at every iteration.
func ExportResiduals(conf ExportConfig, report *EstimationReport) error {
	if conf.IsUseless() {
		return fmt.Errorf("residual export needs a file name")
	}
	if len(report.Iterations) == 0 {
		return fmt.Errorf("report carries no iterations")
	}
	f := conf.outputFile("residuals")
	defer f.Close()
	f.WriteString(fmt.Sprintf("# Creation date (UTC): %s\n# Terminal status: %s\nobservation", time.Now().UTC(), report.Status))
	for _, it := range report.Iterations {
		f.WriteString(fmt.Sprintf(",iter%d", it.Iteration))
	}
	nObs := len(report.Iterations[0].Residuals)
	for i := 0; i < nObs; i++ {
		row := fmt.Sprintf("\n%d", i)
		for _, it := range report.Iterations {
			row += fmt.Sprintf(",%.12f", it.Residuals[i])
		}
		if _, err := f.WriteString(row); err != nil {
			return err
		}
	}
	f.WriteString("\n")
	return nil
}
