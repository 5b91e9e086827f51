// Package detection reshapes raw model predictions into the detection list
// consumed by the browser UI.
package detection

// Severity is a UI-facing tier derived from a detection's confidence.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
)

// Thresholds holds the confidence cut-offs for each tier. Both comparisons
// are strict, so a confidence equal to a threshold falls into the lower tier.
type Thresholds struct {
	CriticalAbove float64
	ModerateAbove float64
}

var DefaultThresholds = Thresholds{
	CriticalAbove: 0.8,
	ModerateAbove: 0.6,
}

func (t Thresholds) Classify(confidence float64) Severity {
	switch {
	case confidence > t.CriticalAbove:
		return SeverityCritical
	case confidence > t.ModerateAbove:
		return SeverityModerate
	default:
		return SeverityMinor
	}
}

// Prediction is one raw box as reported by the hosted model: (X, Y) is the
// box center.
type Prediction struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
	Class      string  `json:"class"`
	ClassID    *int    `json:"class_id,omitempty"`
}

// Detection is the simplified record returned to clients. Class and Type
// carry the same label; older clients read "type".
type Detection struct {
	Class      string     `json:"class"`
	Type       string     `json:"type"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
	Severity   Severity   `json:"severity"`
}

// TopLeft converts a center+size box into its top-left corner.
func TopLeft(centerX, centerY, width, height float64) (x, y float64) {
	return centerX - width/2, centerY - height/2
}

func (t Thresholds) FromPrediction(p Prediction) Detection {
	x, y := TopLeft(p.X, p.Y, p.Width, p.Height)
	return Detection{
		Class:      p.Class,
		Type:       p.Class,
		Confidence: p.Confidence,
		BBox:       [4]float64{x, y, p.Width, p.Height},
		Severity:   t.Classify(p.Confidence),
	}
}

// FromPredictions maps predictions in order. The result is never nil so it
// encodes as [] rather than null.
func (t Thresholds) FromPredictions(preds []Prediction) []Detection {
	out := make([]Detection, 0, len(preds))
	for _, p := range preds {
		out = append(out, t.FromPrediction(p))
	}
	return out
}

// Response is the body of a successful prediction.
type Response struct {
	Detections []Detection `json:"detections"`
}
