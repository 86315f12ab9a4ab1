// Package edf holds the decoded EyeLink record streams that the trial
// segmenter consumes.
//
// The vendor EDF binary is decoded elsewhere; this package only models the
// decoder's output. Field names follow the decoder's record layout, so a
// record's origin index is serialised as "elementIndex". Every record except
// the header carries an origin index, and origin indices from different
// streams share one global ordering.
package edf

import "fmt"

// MissingValue is the reserved raw value the tracker writes when a sample
// channel has no data.
const MissingValue = -32768

// Eye identifies which eye (or both) a recording tracked.
type Eye string

const (
	EyeLeft      Eye = "Left"
	EyeRight     Eye = "Right"
	EyeBinocular Eye = "Binocular"
)

// Valid reports whether e is one of the three known labels.
func (e Eye) Valid() bool {
	switch e {
	case EyeLeft, EyeRight, EyeBinocular:
		return true
	}
	return false
}

// TrackerState is the recording-state marker on a RecordingRecord.
type TrackerState string

const (
	StateStart TrackerState = "START"
	StateEnd   TrackerState = "END"
)

// RecordingRecord is one START or END marker in the recording stream.
type RecordingRecord struct {
	SamplingRate   int          `json:"samplingRate"`
	EyeTracked     Eye          `json:"eyeTracked"`
	PupilDataType  string       `json:"pupilDataType,omitempty"`
	TrackerState   TrackerState `json:"trackerState"`
	RecordType     string       `json:"recordType,omitempty"`
	ParsedByType   string       `json:"parsedbyType,omitempty"`
	FilterType     string       `json:"filterType,omitempty"`
	RecordingMode  string       `json:"recordingMode,omitempty"`
	EndFlags       int          `json:"endflags,omitempty"`
	StartFlags     int          `json:"startflags,omitempty"`
	OriginIndex    int64        `json:"elementIndex"`
	RecordingIndex int64        `json:"recordingIndex"`
}

func (r RecordingRecord) String() string {
	return fmt.Sprintf("%s@%d (%s, %d Hz)", r.TrackerState, r.OriginIndex, r.EyeTracked, r.SamplingRate)
}

// MessageRecord is a MSG event written by the experiment software.
type MessageRecord struct {
	Time          int64   `json:"time"`
	Message       string  `json:"message"`
	MessageLength int     `json:"messageLength,omitempty"`
	ReadFlags     int     `json:"readFlags,omitempty"`
	Flags         float64 `json:"flags,omitempty"`
	ParsedBy      string  `json:"parsedby,omitempty"`
	Status        int     `json:"status,omitempty"`
	OriginIndex   int64   `json:"elementIndex"`
	MsgIndex      int64   `json:"msgIndex"`
}

// EventRecord is a parsed tracker event (fixation, saccade, blink, ...).
type EventRecord struct {
	Time           int64   `json:"time"`
	EventType      string  `json:"eventType"`
	EyeTracked     Eye     `json:"eyeTracked,omitempty"`
	GazeType       string  `json:"gazeType,omitempty"`
	StartTime      int64   `json:"startTime,omitempty"`
	StartPosX      float64 `json:"startPosX,omitempty"`
	StartPosY      float64 `json:"startPosY,omitempty"`
	StartPupilSize float64 `json:"StartPupilSize,omitempty"`
	StartVel       float64 `json:"startVEL,omitempty"`
	StartPPDX      float64 `json:"startPPDX,omitempty"`
	StartPPDY      float64 `json:"startPPDY,omitempty"`
	EndTime        int64   `json:"endTime,omitempty"`
	Duration       int64   `json:"duration,omitempty"`
	EndPosX        float64 `json:"endPosX,omitempty"`
	EndPosY        float64 `json:"endPosY,omitempty"`
	EndPupilSize   float64 `json:"endPupilSize,omitempty"`
	EndVel         float64 `json:"endVEL,omitempty"`
	EndPPDX        float64 `json:"endPPDX,omitempty"`
	EndPPDY        float64 `json:"endPPDY,omitempty"`
	AvgPosX        float64 `json:"avgPosX,omitempty"`
	AvgPosY        float64 `json:"avgPosY,omitempty"`
	AvgPupilSize   float64 `json:"avgPupilSize,omitempty"`
	AvgVel         float64 `json:"avgVEL,omitempty"`
	PeakVel        float64 `json:"peakVEL,omitempty"`
	Message        string  `json:"message,omitempty"`
	ReadFlags      float64 `json:"readFlags,omitempty"`
	Flags          float64 `json:"flags,omitempty"`
	ParsedBy       string  `json:"parsedby,omitempty"`
	Status         float64 `json:"status,omitempty"`
	OriginIndex    int64   `json:"elementIndex"`
	EventIndex     int64   `json:"eventIndex"`
}

// IOEventRecord is a button or input-port change.
type IOEventRecord struct {
	Time         int64 `json:"time"`
	IOData       int   `json:"IOData"`
	IOType       int   `json:"iotype"`
	OriginIndex  int64 `json:"elementIndex"`
	IOEventIndex int64 `json:"ioEventIndex"`
}
