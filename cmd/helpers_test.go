package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/iksnae/jarvis-console/testutil"
)

const testConfig = `backend:
  base_url: %s
  timeout: 5s
presenter:
  chars_per_second: 1000
  min_duration: 1ms
  lead_trim: 0s
  min_char_delay: 1ms
restriction:
  notice_duration: 10ms
cache:
  enabled: true
  dir: %s
log:
  level: error
%s`

const speechOff = `speech:
  enabled: false
`

// cliEnv runs commands against a fake backend with HOME, the working
// directory and the history cache inside a temp dir.
type cliEnv struct {
	fb      *testutil.FakeBackend
	dir     string
	cfgPath string
}

// chdir changes the working directory for the rest of the test and restores
// it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("JARVIS_TOKEN", "")
	t.Setenv("JARVIS_BACKEND_BASE_URL", "")
	chdir(t, dir)

	e := &cliEnv{fb: testutil.NewFakeBackend(t), dir: dir}
	e.configure(t, speechOff)
	return e
}

// configure rewrites the config file with an extra top-level section
func (e *cliEnv) configure(t *testing.T, extra string) {
	t.Helper()
	data := fmt.Sprintf(testConfig, e.fb.URL(), filepath.Join(e.dir, "cache"), extra)
	e.cfgPath = testutil.WriteFile(t, e.dir, "test-config.yaml", []byte(data))
}

// run executes the root command and returns what it wrote to stdout
func (e *cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	return execute(t, stdin, append([]string{"--config", e.cfgPath}, args...)...)
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	if stderr.Len() > 0 {
		t.Logf("stderr: %s", stderr.String())
	}
	return stdout.String(), err
}

// resetFlags puts every flag of c and its subcommands back to its default,
// since cobra keeps parsed values between executions.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func findCommand(t *testing.T, path ...string) *cobra.Command {
	t.Helper()
	c, _, err := rootCmd.Find(path)
	if err != nil {
		t.Fatalf("command %v not found: %v", path, err)
	}
	return c
}
