// Package biophys runs the biophysical model engine: an opaque external
// program that derives one scalar field (LAI, CCC or CWC) from the Sentinel-2
// band stack of a single date. The engine is either a local command (SNAP gpt
// with a biophysical graph, or a compatible wrapper) or a docker image.
package biophys

import (
	"context"
	"fmt"
	"strings"

	"github.com/cropsense/s2-biophys/common"
	"github.com/cropsense/s2-biophys/service/raster"
)

// Request is one model invocation over the band stack of a single date.
// Bands are indexed [band][row][col] in cube order, named by BandNames.
type Request struct {
	Variable  common.Indicator
	Bands     [][][]float64
	BandNames []string
	Grid      raster.Grid
}

// Result is the scalar field of the requested variable, shaped like the
// request window, with common.NoDataValue wherever the model abstains.
type Result struct {
	Values [][]float64
}

// Runner runs the biophysical model for one variable at a time.
// Implementations must be safe for concurrent use: dates are processed in
// parallel.
type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, req Request) (Result, error)

// Run implements Runner
func (f RunnerFunc) Run(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// arguments builds the engine invocation: fixed arguments first, then the
// input/output rasters and the variable in SNAP gpt -P style.
func arguments(fixed []string, input, output string, req Request) []string {
	args := append([]string{}, fixed...)
	args = append(args,
		fmt.Sprintf("-Pinput=%s", input),
		fmt.Sprintf("-Poutput=%s", output),
		fmt.Sprintf("-Pvariable=%s", req.Variable),
	)
	if len(req.BandNames) > 0 {
		args = append(args, fmt.Sprintf("-Pbands=%s", strings.Join(req.BandNames, ",")))
	}
	return args
}

// readResult loads the engine output and checks it against the request window.
func readResult(output string, req Request) (Result, error) {
	out, err := raster.ReadGTiff(output)
	if err != nil {
		return Result{}, fmt.Errorf("readResult.%w", err)
	}
	if len(out.Bands) == 0 || out.Width != req.Grid.Width || out.Height != req.Grid.Height {
		return Result{}, fmt.Errorf("readResult[%s]: engine output %dx%d does not match the %dx%d request window",
			req.Variable, out.Width, out.Height, req.Grid.Width, req.Grid.Height)
	}
	return Result{Values: out.Bands[0]}, nil
}
