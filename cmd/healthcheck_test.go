package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/iksnae/jarvis-console/testutil"
)

func TestHealthcheckCommand(t *testing.T) {
	out, err := execute(t, "", "healthcheck", "--help")
	if err != nil {
		t.Fatalf("healthcheck command failed: %v", err)
	}
	if out == "" {
		t.Error("healthcheck --help should produce output")
	}
}

func TestHealthcheckDetailsFlag(t *testing.T) {
	c := findCommand(t, "healthcheck")
	if c.Flag("details") == nil {
		t.Error("healthcheck command should have --details flag")
	}
	if c.Flags().ShorthandLookup("d") == nil {
		t.Error("healthcheck command should have -d flag")
	}
}

func TestHealthcheckPasses(t *testing.T) {
	e := newCLIEnv(t)

	out, err := e.run(t, "", "--token", testutil.TestToken, "healthcheck", "--details")
	if err != nil {
		t.Fatalf("healthcheck failed: %v\n%s", err, out)
	}
	for _, want := range []string{
		"Backend reachable",
		"Jarvis is running",
		"Signed in as " + testutil.TestUserName,
		"Speech is disabled",
		"History cache ready",
		"Health check passed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
}

func TestHealthcheckGuestWarns(t *testing.T) {
	e := newCLIEnv(t)

	out, err := e.run(t, "", "healthcheck")
	if err != nil {
		t.Fatalf("guest healthcheck should pass: %v", err)
	}
	if !strings.Contains(out, "running as GUEST") {
		t.Errorf("output:\n%s", out)
	}
	if strings.Contains(out, "Jarvis is running") {
		t.Error("details printed without --details")
	}
}

func TestHealthcheckFailures(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "rejected token",
			args: []string{"--token", "bogus", "healthcheck"},
			want: "Token rejected",
		},
		{
			name: "unreachable backend",
			args: []string{"--backend", "http://127.0.0.1:1", "healthcheck"},
			want: "Backend unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newCLIEnv(t)
			out, err := e.run(t, "", tt.args...)
			if err == nil {
				t.Fatal("expected healthcheck to fail")
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output does not contain %q:\n%s", tt.want, out)
			}
		})
	}
}

func TestReportProbes(t *testing.T) {
	var buf bytes.Buffer
	err := reportProbes(&buf, []probeResult{
		{Name: "A", Level: probeOK, Summary: "fine", Details: []string{"detail a"}},
		{Name: "B", Level: probeWarn, Summary: "meh"},
		{Name: "C", Level: probeFail, Summary: "broken"},
	}, true)
	if err == nil || !strings.Contains(err.Error(), "C") {
		t.Errorf("error = %v, want it to name the failed probe", err)
	}
	out := buf.String()
	for _, want := range []string{"Step 1: A", "fine", "detail a", "meh", "broken", "Health check failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("report does not contain %q", want)
		}
	}
}
