package stroke

import "math"

type BBox struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// Metadata summarizes a normalized stroke's geometry for auditing and
// aggregation. Length and bbox are in normalized units.
type Metadata struct {
	BBox       BBox    `json:"bbox"`
	Length     float64 `json:"length"`
	AvgAngle   float64 `json:"avgAngle"`
	PointCount int     `json:"pointCount"`
}

// ComputeMetadata derives bbox, arc length and mean segment angle. AvgAngle
// is a plain arithmetic mean of per-segment atan2 angles in degrees; it is
// unstable for strokes oscillating around the ±180° boundary. Downstream
// consumers of this field are unspecified, so the formula is kept as-is.
func ComputeMetadata(s Stroke) Metadata {
	meta := Metadata{PointCount: len(s.Points)}
	if len(s.Points) == 0 {
		return meta
	}

	meta.BBox = BBox{
		MinX: s.Points[0].X, MinY: s.Points[0].Y,
		MaxX: s.Points[0].X, MaxY: s.Points[0].Y,
	}
	for _, p := range s.Points[1:] {
		meta.BBox.MinX = math.Min(meta.BBox.MinX, p.X)
		meta.BBox.MinY = math.Min(meta.BBox.MinY, p.Y)
		meta.BBox.MaxX = math.Max(meta.BBox.MaxX, p.X)
		meta.BBox.MaxY = math.Max(meta.BBox.MaxY, p.Y)
	}

	var angleSum float64
	for i := 1; i < len(s.Points); i++ {
		dx := s.Points[i].X - s.Points[i-1].X
		dy := s.Points[i].Y - s.Points[i-1].Y
		meta.Length += math.Hypot(dx, dy)
		angleSum += math.Atan2(dy, dx) * 180 / math.Pi
	}
	if len(s.Points) > 1 {
		meta.AvgAngle = angleSum / float64(len(s.Points)-1)
	}

	return meta
}

// ArcLength is the polyline length of a point sequence in normalized units.
func ArcLength(points []Point) float64 {
	var length float64
	for i := 1; i < len(points); i++ {
		length += math.Hypot(points[i].X-points[i-1].X, points[i].Y-points[i-1].Y)
	}
	return length
}
