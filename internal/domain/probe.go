package domain

import (
	"fmt"
	"math"
	"strconv"
)

// SourceInfo is the metadata read once from a job's input file.
type SourceInfo struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FrameRate  float64 `json:"frame_rate"`
	FrameCount int     `json:"frame_count"`
	Duration   float64 `json:"duration"`
}

// EstimatedFrames returns FrameCount, or an estimate from duration and frame
// rate when the container does not store it.
func (s SourceInfo) EstimatedFrames() int {
	if s.FrameCount > 0 {
		return s.FrameCount
	}
	if s.Duration > 0 && s.FrameRate > 0 {
		return int(math.Round(s.Duration * s.FrameRate))
	}
	return 0
}

type ProbeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	NbStreams  int    `json:"nb_streams"`
}

type ProbeStream struct {
	Index        int    `json:"index"`
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	PixFmt       string `json:"pix_fmt"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NbFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`
}

type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

func (p *ProbeResult) VideoStream() *ProbeStream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "video" {
			return &p.Streams[i]
		}
	}
	return nil
}

// SourceInfo extracts the first video stream's metadata.
func (p *ProbeResult) SourceInfo() (SourceInfo, error) {
	vs := p.VideoStream()
	if vs == nil {
		return SourceInfo{}, fmt.Errorf("no video stream found")
	}

	fps := ParseFrameRate(vs.AvgFrameRate)
	if fps == 0 {
		fps = ParseFrameRate(vs.RFrameRate)
	}

	duration := ParseDuration(vs.Duration)
	if duration == 0 {
		duration = ParseDuration(p.Format.Duration)
	}

	frames, _ := strconv.Atoi(vs.NbFrames)

	return SourceInfo{
		Width:      vs.Width,
		Height:     vs.Height,
		FrameRate:  fps,
		FrameCount: frames,
		Duration:   duration,
	}, nil
}

func ParseFrameRate(fraction string) float64 {
	if fraction == "" || fraction == "0/0" {
		return 0
	}
	var num, den int
	if _, err := fmt.Sscanf(fraction, "%d/%d", &num, &den); err == nil && den > 0 {
		return float64(num) / float64(den)
	}
	if v, err := strconv.ParseFloat(fraction, 64); err == nil {
		return v
	}
	return 0
}

func ParseDuration(durationStr string) float64 {
	if durationStr == "" || durationStr == "N/A" {
		return 0
	}
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0
	}
	return duration
}
