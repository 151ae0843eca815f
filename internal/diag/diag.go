// Package diag records what each configuration step did and renders the
// result of a run.
package diag

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"etmcfg/common"
)

// Status is the outcome of a step.
type Status int

const (
	Applied Status = iota // register written
	Checked               // preconditions only, nothing written
	Skipped               // a precondition failed, nothing written
	Failed                // the access itself failed
)

func (s Status) String() string {
	switch s {
	case Applied:
		return "applied"
	case Checked:
		return "checked"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Record describes one step.
type Record struct {
	Step     string
	Register string
	Before   uint64
	After    uint64
	Readback *uint64
	Gates    []string
	Status   Status
	Err      error
}

// Line is the one-line form logged for each step.
func (r Record) Line() string {
	switch r.Status {
	case Applied:
		s := fmt.Sprintf("step %s: %s 0x%08X -> 0x%08X", r.Step, r.Register, r.Before, r.After)
		if r.Readback != nil {
			s += fmt.Sprintf(" (read back 0x%08X)", *r.Readback)
		}
		return s
	case Checked:
		return fmt.Sprintf("step %s: %s checked [%s]", r.Step, r.Register, strings.Join(r.Gates, " "))
	case Skipped:
		return fmt.Sprintf("step %s: %s skipped: %v", r.Step, r.Register, r.Err)
	}
	return fmt.Sprintf("step %s: %s failed: %v", r.Step, r.Register, r.Err)
}

// Recorder collects step records and logs each one as it arrives.
type Recorder struct {
	log  common.Logger
	recs []Record
}

func NewRecorder(log common.Logger) *Recorder {
	if log == nil {
		log = common.NewNoOpLogger()
	}
	return &Recorder{log: log}
}

// Add logs rec and keeps it.
func (r *Recorder) Add(rec Record) {
	r.recs = append(r.recs, rec)
	switch rec.Status {
	case Applied, Checked:
		r.log.Info(rec.Line())
	case Skipped:
		r.log.Warning(rec.Line())
	default:
		r.log.Log(common.SeverityError, rec.Line())
	}
}

func (r *Recorder) Records() []Record {
	out := make([]Record, len(r.recs))
	copy(out, r.recs)
	return out
}

// Report is the outcome of a configuration run.
type Report struct {
	Backend string
	Mode    string
	State   string
	Records []Record
	Err     error
}

// Find returns the record for the named step.
func (rep *Report) Find(step string) (Record, bool) {
	for _, r := range rep.Records {
		if r.Step == step {
			return r, true
		}
	}
	return Record{}, false
}

// WriteText writes one line per step followed by the final state.
func (rep *Report) WriteText(w io.Writer) error {
	for _, r := range rep.Records {
		if _, err := fmt.Fprintln(w, r.Line()); err != nil {
			return err
		}
	}
	var err error
	if rep.Err != nil {
		_, err = fmt.Fprintf(w, "state %s (%s): %v\n", rep.State, rep.Backend, rep.Err)
	} else {
		_, err = fmt.Fprintf(w, "state %s (%s)\n", rep.State, rep.Backend)
	}
	return err
}

type yamlRecord struct {
	Step     string   `yaml:"step"`
	Register string   `yaml:"register"`
	Status   string   `yaml:"status"`
	Before   string   `yaml:"before,omitempty"`
	After    string   `yaml:"after,omitempty"`
	Readback string   `yaml:"readback,omitempty"`
	Gates    []string `yaml:"gates,omitempty,flow"`
	Error    string   `yaml:"error,omitempty"`
}

type yamlReport struct {
	Backend string       `yaml:"backend"`
	Mode    string       `yaml:"mode"`
	State   string       `yaml:"state"`
	Error   string       `yaml:"error,omitempty"`
	Steps   []yamlRecord `yaml:"steps"`
}

func hex32(v uint64) string { return fmt.Sprintf("0x%08X", v) }

// WriteYAML writes the report as a YAML document. Register values are hex
// strings.
func (rep *Report) WriteYAML(w io.Writer) error {
	out := yamlReport{Backend: rep.Backend, Mode: rep.Mode, State: rep.State}
	if rep.Err != nil {
		out.Error = rep.Err.Error()
	}
	for _, r := range rep.Records {
		yr := yamlRecord{Step: r.Step, Register: r.Register, Status: r.Status.String(), Gates: r.Gates}
		if r.Status == Applied {
			yr.Before, yr.After = hex32(r.Before), hex32(r.After)
		}
		if r.Readback != nil {
			yr.Readback = hex32(*r.Readback)
		}
		if r.Err != nil {
			yr.Error = r.Err.Error()
		}
		out.Steps = append(out.Steps, yr)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}
