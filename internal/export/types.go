package export

import (
	"fmt"
	"strings"
)

const DefaultPauseThreshold = 2.0

// Segment is a span of source video to keep, in seconds.
type Segment struct {
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Description string  `json:"description"`
}

func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Group is a run of segments rendered as one clip.
type Group struct {
	Index    int       `json:"index"`
	Segments []Segment `json:"segments"`
}

func (g Group) Start() float64 {
	return g.Segments[0].Start
}

func (g Group) End() float64 {
	return g.Segments[len(g.Segments)-1].End
}

func (g Group) Duration() float64 {
	return g.End() - g.Start()
}

// CutPause is a gap removed from inside a group.
type CutPause struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
	Group    int     `json:"group"`
}

type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

var crfByQuality = map[Quality]int{
	QualityHigh:   18,
	QualityMedium: 23,
	QualityLow:    28,
}

// Normalize maps unknown or empty values to medium.
func (q Quality) Normalize() Quality {
	q = Quality(strings.ToLower(strings.TrimSpace(string(q))))
	if _, ok := crfByQuality[q]; ok {
		return q
	}
	return QualityMedium
}

// CRF returns the x264 constant rate factor for the quality tier.
func (q Quality) CRF() int {
	return crfByQuality[q.Normalize()]
}

// Settings are the caller's export options.
type Settings struct {
	PauseThreshold *float64 `json:"pause_threshold,omitempty"`
	Quality        Quality  `json:"exportQuality,omitempty"`
	EDL            bool     `json:"edl,omitempty"`
}

// Threshold returns the pause threshold in seconds, defaulting when unset.
func (s Settings) Threshold() float64 {
	if s.PauseThreshold == nil {
		return DefaultPauseThreshold
	}
	return *s.PauseThreshold
}

type SegmentInput struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Request is a submitted export.
type Request struct {
	Segments         []SegmentInput `json:"segments"`
	Settings         Settings       `json:"export_settings"`
	OriginalFilename string         `json:"original_filename"`
	InputVideoPath   string         `json:"input_video_path"`
}

// ToSegments converts the wire segments, naming undescribed ones by position.
func (r Request) ToSegments() []Segment {
	segs := make([]Segment, len(r.Segments))
	for i, in := range r.Segments {
		desc := in.Text
		if strings.TrimSpace(desc) == "" {
			desc = fmt.Sprintf("Segment %d", i)
		}
		segs[i] = Segment{Start: in.Start, End: in.End, Description: desc}
	}
	return segs
}

// EstimatedDuration is the advisory completion estimate returned on submit.
func (r Request) EstimatedDuration() int {
	return len(r.Segments) * 2
}

// Profile describes the single output format produced.
type Profile struct {
	Container  string         `json:"container"`
	VideoCodec string         `json:"video_codec"`
	AudioCodec string         `json:"audio_codec"`
	MimeType   string         `json:"mime_type"`
	Qualities  map[string]int `json:"qualities"`
}

func OutputProfile() Profile {
	q := make(map[string]int, len(crfByQuality))
	for k, v := range crfByQuality {
		q[string(k)] = v
	}
	return Profile{
		Container:  "mp4",
		VideoCodec: "h264",
		AudioCodec: "aac",
		MimeType:   "video/mp4",
		Qualities:  q,
	}
}
