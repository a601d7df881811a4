// Package trace reads and writes pose frames in the JSON-lines wire format
// shared by recorded traces, the HTTP frame endpoint and the MQTT pose topic:
//
//	{"t": 1736067600000, "joints": {"leftKnee": {"x": 0.51, "y": 0.62, "c": 0.93}}}
//
// t is a Unix timestamp in milliseconds. It may be omitted; the frame then
// carries a zero timestamp and consumers stamp it on arrival.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/claude/repcounter/internal/models"
)

// Frame is one pose frame on the wire.
type Frame struct {
	T      int64                            `json:"t,omitempty"`
	Joints map[models.Joint]models.Keypoint `json:"joints"`
}

// FromPose converts a pose into its wire form.
func FromPose(p models.DetectedPose) Frame {
	f := Frame{Joints: p.Joints}
	if !p.Timestamp.IsZero() {
		f.T = p.Timestamp.UnixMilli()
	}
	return f
}

// Pose converts a wire frame into a pose.
func (f Frame) Pose() models.DetectedPose {
	joints := f.Joints
	if joints == nil {
		joints = map[models.Joint]models.Keypoint{}
	}
	var at time.Time
	if f.T != 0 {
		at = time.UnixMilli(f.T).UTC()
	}
	return models.DetectedPose{Timestamp: at, Joints: joints}
}

// Decode parses a single frame.
func Decode(data []byte) (models.DetectedPose, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return models.DetectedPose{}, fmt.Errorf("decoding pose frame: %w", err)
	}
	return f.Pose(), nil
}

// Read parses a whole trace. Blank lines and lines starting with # are
// skipped.
func Read(r io.Reader) ([]models.DetectedPose, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var poses []models.DetectedPose
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var f Frame
		if err := json.Unmarshal([]byte(line), &f); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		poses = append(poses, f.Pose())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	return poses, nil
}

// Write encodes poses as a trace, one frame per line.
func Write(w io.Writer, poses []models.DetectedPose) error {
	enc := json.NewEncoder(w)
	for i, p := range poses {
		if err := enc.Encode(FromPose(p)); err != nil {
			return fmt.Errorf("writing frame %d: %w", i, err)
		}
	}
	return nil
}
