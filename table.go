package verb_traj

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/r3"
	goutils "go.viam.com/utils"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
)

// TableBoundsParam is the shared parameter holding the table extents.
const TableBoundsParam = "table_bounds"

// TableBounds is an axis aligned box in request units.
type TableBounds struct {
	XMin, XMax float64
	YMin, YMax float64
	ZMin, ZMax float64
}

// ParseTableBounds parses "xmin xmax ymin ymax zmin zmax".
func ParseTableBounds(s string) (TableBounds, error) {
	fields := strings.Fields(s)
	if len(fields) != 6 {
		return TableBounds{}, fmt.Errorf("table_bounds needs 6 values, got %d", len(fields))
	}
	var v [6]float64
	for i, f := range fields {
		parsed, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return TableBounds{}, fmt.Errorf("table_bounds value %d: %w", i, err)
		}
		v[i] = parsed
	}
	tb := TableBounds{XMin: v[0], XMax: v[1], YMin: v[2], YMax: v[3], ZMin: v[4], ZMax: v[5]}
	if tb.XMax < tb.XMin || tb.YMax < tb.YMin || tb.ZMax < tb.ZMin {
		return TableBounds{}, fmt.Errorf("table_bounds min exceeds max: %q", s)
	}
	return tb, nil
}

func (tb TableBounds) Center() r3.Vector {
	return r3.Vector{X: (tb.XMin + tb.XMax) / 2, Y: (tb.YMin + tb.YMax) / 2, Z: (tb.ZMin + tb.ZMax) / 2}
}

func (tb TableBounds) HalfExtents() r3.Vector {
	return r3.Vector{X: (tb.XMax - tb.XMin) / 2, Y: (tb.YMax - tb.YMin) / 2, Z: (tb.ZMax - tb.ZMin) / 2}
}

// minTableExtentMM is the thinnest the table box gets along any axis.
const minTableExtentMM = 1.0

// Geometry builds the table box, scaled from request units. Flat extents,
// such as a table given as a plane, are padded to minTableExtentMM around
// their centre since spatialmath rejects boxes without volume.
func (tb TableBounds) Geometry(scale float64) (spatialmath.Geometry, error) {
	dims := tb.HalfExtents().Mul(2 * scale)
	dims.X = math.Max(dims.X, minTableExtentMM)
	dims.Y = math.Max(dims.Y, minTableExtentMM)
	dims.Z = math.Max(dims.Z, minTableExtentMM)
	return spatialmath.NewBox(spatialmath.NewPoseFromPoint(tb.Center().Mul(scale)), dims, "table")
}

// ParamSource provides shared string parameters.
type ParamSource interface {
	Param(key string) (string, bool)
}

// StaticParams is a fixed set of parameters.
type StaticParams map[string]string

func (p StaticParams) Param(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

// FileParams reads a JSON object of parameters each time it is queried, so a
// parameter written by another process shows up without a restart.
type FileParams struct {
	Path string
}

func (p *FileParams) Param(key string) (string, bool) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return "", false
	}
	var params map[string]interface{}
	if err := json.Unmarshal(data, &params); err != nil {
		return "", false
	}
	v, ok := params[key]
	if !ok {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case []interface{}:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = fmt.Sprint(e)
		}
		return strings.Join(parts, " "), true
	default:
		return fmt.Sprint(val), true
	}
}

// WaitForTableBounds blocks until the table_bounds parameter can be read and
// parsed, or ctx is done.
func WaitForTableBounds(ctx context.Context, src ParamSource, interval time.Duration, logger logging.Logger) (TableBounds, error) {
	if interval <= 0 {
		interval = time.Second
	}
	for {
		if raw, ok := src.Param(TableBoundsParam); ok {
			tb, err := ParseTableBounds(raw)
			if err == nil {
				return tb, nil
			}
			logger.Warnf("ignoring malformed table_bounds: %v", err)
		}
		logger.Warn("waiting until table_bounds set")
		if !goutils.SelectContextOrWait(ctx, interval) {
			return TableBounds{}, ctx.Err()
		}
	}
}
