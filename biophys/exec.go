package biophys

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cropsense/s2-biophys/service"
	"github.com/cropsense/s2-biophys/service/log"
	"github.com/cropsense/s2-biophys/service/raster"
	"github.com/google/uuid"
	"go.uber.org/zap/zapcore"
)

// ExecEngine runs the biophysical model as a local command. Each run writes
// the request bands to a scratch GeoTIFF, invokes the command with
// -Pinput/-Poutput/-Pvariable arguments and reads the output raster back.
type ExecEngine struct {
	Command   string
	Args      []string
	Workdir   string
	newFilter func() LogFilter
}

// NewExecEngine builds an engine from a command line ("/path/to/gpt
// /graphs/biophys.xml -x" style: executable first, fixed arguments after).
// The log filter is derived from the executable: SNAP gpt logs java-style,
// python wrappers python-style, anything else is treated as a plain command.
func NewExecEngine(commandLine, workdir string) (*ExecEngine, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, fmt.Errorf("NewExecEngine: empty command")
	}
	e := &ExecEngine{Command: fields[0], Args: fields[1:], Workdir: workdir}
	switch {
	case filepath.Base(e.Command) == "gpt":
		e.newFilter = func() LogFilter { return &SNAPLogFilter{} }
	case strings.HasSuffix(e.Command, ".py"):
		e.newFilter = func() LogFilter { return &PythonLogFilter{} }
	default:
		e.newFilter = func() LogFilter { return &CmdLogFilter{} }
	}
	return e, nil
}

// Run implements Runner
func (e *ExecEngine) Run(ctx context.Context, req Request) (Result, error) {
	workdir := filepath.Join(e.Workdir, uuid.New().String())
	if err := os.MkdirAll(workdir, 0766); err != nil {
		return Result{}, service.MakeTemporary(fmt.Errorf("make directory %s: %w", workdir, err))
	}
	defer os.RemoveAll(workdir)

	input := filepath.Join(workdir, "input.tif")
	output := filepath.Join(workdir, "output.tif")
	in := raster.Raster{Grid: req.Grid, Bands: req.Bands}
	if err := in.WriteGTiff(input); err != nil {
		return Result{}, fmt.Errorf("Run.%w", err)
	}

	filter := e.filter()
	cmd := exec.Command(e.Command, e.arguments(input, output, req)...)
	log.Logger(ctx).Sugar().Debug(cmdToString(cmd))
	if err := log.Exec(ctx, cmd, log.StdoutLevel(zapcore.DebugLevel), log.StdoutFilter(filter), log.StderrFilter(filter)); err != nil {
		return Result{}, fmt.Errorf("Run[%s]: %w", req.Variable, filter.WrapError(err))
	}

	res, err := readResult(output, req)
	if err != nil {
		return Result{}, fmt.Errorf("Run.%w", err)
	}
	return res, nil
}

func (e *ExecEngine) arguments(input, output string, req Request) []string {
	return arguments(e.Args, input, output, req)
}

func (e *ExecEngine) filter() LogFilter {
	if e.newFilter == nil {
		return &CmdLogFilter{}
	}
	return e.newFilter()
}

func cmdToString(cmd *exec.Cmd) string {
	return strings.Join(cmd.Args, " ")
}
