package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDemoPlanArithmeticHasOutputAndNoRegistry(t *testing.T) {
	plan, registry, output, err := demoPlan("arithmetic", "")
	if err != nil {
		t.Fatalf("demoPlan: %v", err)
	}
	if registry != nil {
		t.Fatalf("expected the arithmetic demo to have no registry")
	}
	if output == nil {
		t.Fatalf("expected an output node")
	}
	_ = plan
}

func TestDemoPlanUnknownNameErrors(t *testing.T) {
	if _, _, _, err := demoPlan("nonexistent", ""); err == nil {
		t.Fatalf("expected an error for an unknown demo plan name")
	}
}

func TestRunCommandArithmetic(t *testing.T) {
	cmd := NewRunCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"arithmetic"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "3" {
		t.Fatalf("expected output \"3\", got %q", buf.String())
	}
}

func TestRunCommandPipelineWritesStores(t *testing.T) {
	dir := t.TempDir()
	cmd := NewRunCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"pipeline", "--store-dir", dir})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "21" { // area(add(1,2), add(3,4)) == 3*7
		t.Fatalf("expected output \"21\", got %q", buf.String())
	}
	for _, name := range []string{"x.json", "y.json", "z.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to be written: %v", name, err)
		}
	}
}

func TestRunCommandDependentSourceCopiesOnFirstRunOnly(t *testing.T) {
	dir := t.TempDir()

	cmd := NewRunCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"dependent-source", "--store-dir", dir})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "441" { // pow2(21) == 21*21
		t.Fatalf("expected output \"441\", got %q", buf.String())
	}
	bPath := filepath.Join(dir, "b.json")
	info, err := os.Stat(bPath)
	if err != nil {
		t.Fatalf("expected b.json to be written by the first run: %v", err)
	}
	firstModified := info.ModTime()

	// b is now at least as fresh as a, so the second run must not rerun
	// the preparatory copy: b.json's modified time should not change.
	cmd2 := NewRunCmd()
	buf2 := &bytes.Buffer{}
	cmd2.SetOut(buf2)
	cmd2.SetArgs([]string{"dependent-source", "--store-dir", dir})
	if err := cmd2.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.TrimSpace(buf2.String()) != "441" {
		t.Fatalf("expected output \"441\", got %q", buf2.String())
	}
	info2, err := os.Stat(bPath)
	if err != nil {
		t.Fatalf("expected b.json to still exist: %v", err)
	}
	if !info2.ModTime().Equal(firstModified) {
		t.Fatalf("expected the dependent source's copy to be elided on the second run, but b.json was rewritten")
	}
}

func TestRunCommandDryRun(t *testing.T) {
	cmd := NewRunCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"arithmetic", "--dry-run"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(buf.String(), "dry run") {
		t.Fatalf("expected dry-run output to mention \"dry run\", got %q", buf.String())
	}
}

func TestRunCommandUnknownSchedulerIsBadArgument(t *testing.T) {
	cmd := NewRunCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"arithmetic", "--scheduler", "bogus"})
	err := cmd.Execute()
	if err == nil {
		t.Fatalf("expected an error for an unknown scheduler")
	}
	exitErr, ok := err.(*ExitError)
	if !ok {
		t.Fatalf("expected *ExitError, got %T", err)
	}
	if exitErr.Code != exitBadArgument {
		t.Fatalf("expected exitBadArgument, got %d", exitErr.Code)
	}
}

func TestRenderCommandProducesDOT(t *testing.T) {
	cmd := NewRenderCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"arithmetic"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(buf.String(), "digraph uberjob") {
		t.Fatalf("expected DOT output, got %q", buf.String())
	}
}
