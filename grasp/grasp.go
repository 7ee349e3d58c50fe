// Package grasp holds the gripper timing heuristics applied to a planned
// trajectory before it is executed. Everything here is a pure function over
// slices; no robot state is touched.
package grasp

const (
	// AngleTolerance is how far a gripper angle has to move away from the
	// first sample before the gripper counts as "changing".
	AngleTolerance = 0.0005

	// DefaultEffortGrabThreshold is the gripper effort below which the gripper
	// is assumed to be holding something.
	DefaultEffortGrabThreshold = -10.0
)

// CloseIndex returns the first index where the gripper starts to close.
func CloseIndex(angles []float64) int {
	if len(angles) == 0 {
		return 0
	}
	start := angles[0]
	for i, a := range angles {
		if start-a > AngleTolerance {
			return i
		}
	}
	return len(angles)
}

// OpenIndex returns the first index where the gripper starts to open.
func OpenIndex(angles []float64) int {
	if len(angles) == 0 {
		return 0
	}
	start := angles[0]
	for i, a := range angles {
		if a-start > AngleTolerance {
			return i
		}
	}
	return len(angles)
}

// ReplaceRange returns a copy of seq with [start, end) set to value.
// A negative end means len(seq).
func ReplaceRange[T any](value T, seq []T, start, end int) []T {
	if end < 0 || end > len(seq) {
		end = len(seq)
	}
	if start < 0 {
		start = 0
	}
	out := make([]T, len(seq))
	copy(out, seq)
	for i := start; i < end; i++ {
		out[i] = value
	}
	return out
}

// IsGripped reports whether an effort reading means the gripper holds an object.
func IsGripped(effort, threshold float64) bool {
	return effort < threshold
}

// CorrectAngles makes sure a gripper that is about to close closes, and that a
// gripper already holding something stays closed until the plan opens it.
func CorrectAngles(angles []float64, gripped bool) []float64 {
	if gripped {
		return ReplaceRange(0.0, angles, 0, OpenIndex(angles))
	}
	return ReplaceRange(0.0, angles, CloseIndex(angles), -1)
}

// CorrectJoints holds the arm still from the grasp transition onwards. The
// transition index comes from the gripper angles; the arm is frozen at the
// configuration right before it.
func CorrectJoints(angles []float64, joints [][]float64, gripped bool) [][]float64 {
	idx := CloseIndex(angles)
	if gripped {
		idx = OpenIndex(angles)
	}
	if idx <= 0 || idx >= len(joints) {
		return cloneRows(joints)
	}
	hold := append([]float64(nil), joints[idx-1]...)
	out := cloneRows(joints)
	for i := idx; i < len(out); i++ {
		out[i] = append([]float64(nil), hold...)
	}
	return out
}

// ApplyAngleBias adds bias to every angle strictly below the given value.
func ApplyAngleBias(angles []float64, below, bias float64) []float64 {
	out := make([]float64, len(angles))
	for i, a := range angles {
		if a < below {
			a += bias
		}
		out[i] = a
	}
	return out
}

func cloneRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}
