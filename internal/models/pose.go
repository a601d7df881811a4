package models

import "time"

// Joint names a body landmark reported by the pose estimator.
type Joint string

// Landmarks used by the built-in profiles. The estimator may report more;
// unknown names pass through untouched.
const (
	JointNose          Joint = "nose"
	JointLeftShoulder  Joint = "leftShoulder"
	JointRightShoulder Joint = "rightShoulder"
	JointLeftElbow     Joint = "leftElbow"
	JointRightElbow    Joint = "rightElbow"
	JointLeftWrist     Joint = "leftWrist"
	JointRightWrist    Joint = "rightWrist"
	JointLeftHip       Joint = "leftHip"
	JointRightHip      Joint = "rightHip"
	JointLeftKnee      Joint = "leftKnee"
	JointRightKnee     Joint = "rightKnee"
	JointLeftAnkle     Joint = "leftAnkle"
	JointRightAnkle    Joint = "rightAnkle"
)

// Keypoint is one joint position in normalized [0,1] image coordinates.
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"c"`
}

// DetectedPose is a single frame from the pose estimator. The core never
// modifies it.
type DetectedPose struct {
	Timestamp time.Time          `json:"timestamp"`
	Joints    map[Joint]Keypoint `json:"joints"`
}

// Keypoint returns the named joint, or a zero-confidence keypoint when the
// estimator did not report it.
func (p DetectedPose) Keypoint(j Joint) Keypoint {
	kp, ok := p.Joints[j]
	if !ok {
		return Keypoint{}
	}
	return kp
}

// JointTriple selects the angle measured at Vertex between A and C.
type JointTriple struct {
	A      Joint `json:"a"`
	Vertex Joint `json:"vertex"`
	C      Joint `json:"c"`
}

// Joints returns the triple in A, Vertex, C order.
func (t JointTriple) Joints() [3]Joint {
	return [3]Joint{t.A, t.Vertex, t.C}
}

// Valid reports whether all three joints are set and distinct.
func (t JointTriple) Valid() bool {
	if t.A == "" || t.Vertex == "" || t.C == "" {
		return false
	}
	return t.A != t.Vertex && t.A != t.C && t.Vertex != t.C
}
