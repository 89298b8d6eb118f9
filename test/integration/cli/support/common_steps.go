package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MeKo-Tech/barscan/cmd/barscan/cmd"
	"github.com/cucumber/godog"
	"github.com/spf13/viper"
)

// commandTimeout bounds a single in-process CLI run.
const commandTimeout = 60 * time.Second

// iRunCommand executes the barscan root command in-process from the scratch
// directory. A leading "barscan" is dropped.
func (testCtx *TestContext) iRunCommand(command string) error {
	testCtx.LastCommand = command
	args := strings.Fields(command)
	if len(args) > 0 && args[0] == "barscan" {
		args = args[1:]
	}

	restore, err := testCtx.enterScratch()
	if err != nil {
		return err
	}
	defer restore()

	viper.Reset()
	root := cmd.GetRootCommand()
	cmd.ResetFlags(root)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	defer func() {
		root.SetOut(nil)
		root.SetErr(nil)
		root.SetArgs(nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	runErr := root.ExecuteContext(ctx)

	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = runErr
	testCtx.LastExitCode = 0
	if runErr != nil {
		testCtx.LastExitCode = 1
	}
	return nil
}

// enterScratch switches the working directory and the configuration search
// locations to the scratch directory until the returned func is called.
func (testCtx *TestContext) enterScratch() (func(), error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	if err := os.Chdir(testCtx.TempDir); err != nil {
		return nil, fmt.Errorf("failed to enter %s: %w", testCtx.TempDir, err)
	}
	home, hadHome := os.LookupEnv("HOME")
	xdg, hadXDG := os.LookupEnv("XDG_CONFIG_HOME")
	_ = os.Setenv("HOME", testCtx.TempDir)
	_ = os.Setenv("XDG_CONFIG_HOME", testCtx.TempDir)

	return func() {
		_ = os.Chdir(wd)
		restoreEnv("HOME", home, hadHome)
		restoreEnv("XDG_CONFIG_HOME", xdg, hadXDG)
	}, nil
}

func restoreEnv(name, value string, had bool) {
	if had {
		_ = os.Setenv(name, value)
		return
	}
	_ = os.Unsetenv(name)
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command %q failed: %v\nstdout:\n%s\nstderr:\n%s",
			testCtx.LastCommand, testCtx.LastError, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command %q succeeded, expected failure\nstdout:\n%s",
			testCtx.LastCommand, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(testCtx.LastOutput, expected) {
		return fmt.Errorf("output does not contain %q\noutput:\n%s", expected, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(unexpected string) error {
	if strings.Contains(testCtx.LastOutput, unexpected) {
		return fmt.Errorf("output unexpectedly contains %q\noutput:\n%s", unexpected, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theStderrShouldContain(expected string) error {
	if !strings.Contains(testCtx.LastStderr, expected) {
		return fmt.Errorf("stderr does not contain %q\nstderr:\n%s", expected, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theErrorShouldContain(expected string) error {
	if testCtx.LastError == nil {
		return errors.New("expected an error, command succeeded")
	}
	if !strings.Contains(testCtx.LastError.Error(), expected) {
		return fmt.Errorf("error %q does not contain %q", testCtx.LastError.Error(), expected)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	if !json.Valid([]byte(testCtx.LastOutput)) {
		return fmt.Errorf("output is not valid JSON:\n%s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldHaveLines(n int) error {
	lines := strings.Split(strings.TrimRight(testCtx.LastOutput, "\n"), "\n")
	if len(lines) != n {
		return fmt.Errorf("expected %d lines, got %d:\n%s", n, len(lines), testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	if _, err := os.Stat(testCtx.Path(name)); err != nil {
		return fmt.Errorf("file %s does not exist: %w", name, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(name, expected string) error {
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("file %s does not contain %q:\n%s", name, expected, data)
	}
	return nil
}

func (testCtx *TestContext) theDirectoryShouldContainFiles(name string, n int) error {
	entries, err := os.ReadDir(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", name, err)
	}
	if len(entries) != n {
		return fmt.Errorf("directory %s has %d entries, expected %d", name, len(entries), n)
	}
	return nil
}

// RegisterCommonSteps registers command execution and output assertions.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)

	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the error should contain "([^"]*)"$`, testCtx.theErrorShouldContain)

	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^stderr should contain "([^"]*)"$`, testCtx.theStderrShouldContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the output should have (\d+) lines$`, testCtx.theOutputShouldHaveLines)

	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the directory "([^"]*)" should contain (\d+) files$`, testCtx.theDirectoryShouldContainFiles)
}
