package biophys_test

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/cropsense/s2-biophys/biophys"
	"github.com/cropsense/s2-biophys/common"
)

func TestArguments(t *testing.T) {
	req := biophys.Request{Variable: common.CWC, BandNames: []string{"B3", "B4", "B8A"}}
	args := biophys.Arguments([]string{"/graphs/biophys.xml", "-q", "2"}, "/scratch/input.tif", "/scratch/output.tif", req)
	want := []string{"/graphs/biophys.xml", "-q", "2", "-Pinput=/scratch/input.tif", "-Poutput=/scratch/output.tif", "-Pvariable=CWC", "-Pbands=B3,B4,B8A"}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("arguments:\n got %v\nwant %v", args, want)
	}

	req.BandNames = nil
	args = biophys.Arguments(nil, "in.tif", "out.tif", req)
	want = []string{"-Pinput=in.tif", "-Poutput=out.tif", "-Pvariable=CWC"}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("arguments without bands:\n got %v\nwant %v", args, want)
	}
}

func TestNewExecEngine(t *testing.T) {
	if _, err := biophys.NewExecEngine("  ", "/tmp"); err == nil {
		t.Fatalf("an empty command line should be rejected")
	}

	e, err := biophys.NewExecEngine("/opt/snap/bin/gpt /graphs/biophys.xml -x", "/scratch")
	if err != nil {
		t.Fatalf("NewExecEngine: %v", err)
	}
	if e.Command != "/opt/snap/bin/gpt" {
		t.Errorf("Command=%s, want /opt/snap/bin/gpt", e.Command)
	}
	if !reflect.DeepEqual(e.Args, []string{"/graphs/biophys.xml", "-x"}) {
		t.Errorf("Args=%v", e.Args)
	}
}

func TestNewExecEngineFilterSelection(t *testing.T) {
	tests := []struct {
		commandLine string
		filter      string
	}{
		{"/opt/snap/bin/gpt /graphs/biophys.xml", "*biophys.SNAPLogFilter"},
		{"/models/run_biophys.py --quiet", "*biophys.PythonLogFilter"},
		{"biophys-cli compute", "*biophys.CmdLogFilter"},
	}
	for _, tc := range tests {
		e, err := biophys.NewExecEngine(tc.commandLine, "/tmp")
		if err != nil {
			t.Fatalf("NewExecEngine(%q): %v", tc.commandLine, err)
		}
		if got := fmt.Sprintf("%T", e.NewFilter()); got != tc.filter {
			t.Errorf("NewExecEngine(%q): filter %s, want %s", tc.commandLine, got, tc.filter)
		}
	}
}
