package jobs

import "time"

// Stage is a named phase in a job's fixed-order progression.
type Stage string

const (
	StageQueued       Stage = "queued"
	StageExtracting   Stage = "extracting"
	StageInterpreting Stage = "interpreting"
	StageTranslating  Stage = "translating"
	StageFormatting   Stage = "formatting"
	StageCompleted    Stage = "completed"
	StageFailed       Stage = "failed"
)

// workStages is the execution order between Queued and Completed.
var workStages = []Stage{StageExtracting, StageInterpreting, StageTranslating, StageFormatting}

var stageOrder = map[Stage]int{
	StageQueued:       0,
	StageExtracting:   1,
	StageInterpreting: 2,
	StageTranslating:  3,
	StageFormatting:   4,
	StageCompleted:    5,
	StageFailed:       5,
}

// Progress checkpoints per stage. Failed jobs freeze at whatever percentage
// they reached, so StageFailed has no checkpoint of its own.
var stagePercent = map[Stage]int{
	StageQueued:       0,
	StageExtracting:   20,
	StageInterpreting: 45,
	StageTranslating:  70,
	StageFormatting:   90,
	StageCompleted:    100,
}

// Terminal reports whether no further transitions occur after this stage.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Percent returns the progress checkpoint for the stage.
func (s Stage) Percent() int {
	return stagePercent[s]
}

// Status maps the stage onto the coarse client-facing status string.
func (s Stage) Status() string {
	switch s {
	case StageCompleted:
		return "completed"
	case StageFailed:
		return "failed"
	default:
		return "processing"
	}
}

// ErrorInfo records why a job failed and at which stage.
type ErrorInfo struct {
	Stage   Stage  `json:"stage"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Job is one unit of document-analysis work. Values are immutable snapshots;
// the registry replaces the whole value on every transition.
type Job struct {
	ID              string     `json:"id"`
	FileName        string     `json:"fileName"`
	MediaType       string     `json:"mediaType"`
	SizeBytes       int64      `json:"sizeBytes"`
	Stage           Stage      `json:"stage"`
	ProgressPercent int        `json:"progressPercent"`
	StorageKey      string     `json:"storageKey,omitempty"`
	Report          string     `json:"report,omitempty"`
	Err             *ErrorInfo `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

// Upload is an accepted candidate file. The raw bytes live only until the
// extraction stage has consumed them.
type Upload struct {
	Name      string
	MediaType string
	SizeBytes int64
	Data      []byte
}
