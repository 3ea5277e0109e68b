package events

// Event type constants for kelindar/event.
const (
	TypeStatus uint32 = iota + 1
	TypeProgress
	TypeOutput
	TypeFinished
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// Stage names the step a job is in.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageDownload Stage = "download"
	StageUnpack   Stage = "unpack"
	StageProbe    Stage = "probe"
	StageFlash    Stage = "flash"
	StageDriver   Stage = "driver"
	StageDone     Stage = "done"
)

// Status reports that a job entered a stage.
type Status struct {
	Job     string
	Stage   Stage
	Message string
}

// Type returns the event type identifier for Status.
func (e Status) Type() uint32 { return TypeStatus }

// Progress reports bytes transferred. Total is -1 when unknown.
type Progress struct {
	Job   string
	Done  int64
	Total int64
}

// Type returns the event type identifier for Progress.
func (e Progress) Type() uint32 { return TypeProgress }

// Percent returns the completed fraction in [0, 100], or -1 if unknown.
func (e Progress) Percent() int {
	if e.Total <= 0 {
		return -1
	}
	p := int(e.Done * 100 / e.Total)
	if p > 100 {
		p = 100
	}
	return p
}

// Output carries one line of external tool output.
type Output struct {
	Job  string
	Line string
}

// Type returns the event type identifier for Output.
func (e Output) Type() uint32 { return TypeOutput }

// Finished is the last event of a job. Err is nil on success.
type Finished struct {
	Job string
	Err error
}

// Type returns the event type identifier for Finished.
func (e Finished) Type() uint32 { return TypeFinished }
