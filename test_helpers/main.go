// Package test_helpers runs Tarantool instances for integration tests and
// provides in-memory mocks of the connector for unit tests.
//
// An instance is started with an init Lua script that configures box.cfg
// from the TEST_TNT_WORK_DIR and TEST_TNT_LISTEN environment variables. The
// script sets listen last, so a successful connect means the instance is
// configured. Connect does not retry by itself, StartTarantool retries it,
// see tarantool/go-tarantool/#136.
package test_helpers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/JeffCarpenter/go-tarantool"
)

// StartOpts describes how to start a Tarantool instance.
type StartOpts struct {
	// InitScript is a Lua script to run, relative to the working
	// directory of the test.
	InitScript string

	// Listen is passed to box.cfg listen and is the address to connect to.
	Listen string

	// WorkDir is passed to box.cfg work_dir. A temporary directory is
	// created if it is empty, otherwise snapshots and xlogs are removed
	// from it. Every running instance needs its own directory.
	WorkDir string

	// WaitStart is a pause before the first connect attempt.
	WaitStart time.Duration

	// ConnectRetry is a count of connect attempts after the first one. A
	// negative value disables the readiness check.
	ConnectRetry int

	// RetryTimeout is a pause between connect attempts.
	RetryTimeout time.Duration

	// Dialer is used to check that the instance is ready.
	Dialer tarantool.Dialer
}

// TarantoolInstance is a running Tarantool process.
type TarantoolInstance struct {
	// Cmd is the process command. Use Stop instead of killing the process
	// directly.
	Cmd *exec.Cmd

	// Opts are the options the instance was started with.
	Opts StartOpts

	mutex   sync.Mutex
	done    chan struct{}
	exitErr error
	stopped bool
}

func (t *TarantoolInstance) wait() {
	err := t.Cmd.Wait()

	t.mutex.Lock()
	t.exitErr = err
	stopped := t.stopped
	t.mutex.Unlock()
	close(t.done)

	if !stopped {
		log.Printf("Tarantool %q was unexpectedly terminated: %v", t.Opts.Listen, err)
	}
}

// exited returns true and the exit error once the process is finished.
func (t *TarantoolInstance) exited() (bool, error) {
	select {
	case <-t.done:
		t.mutex.Lock()
		defer t.mutex.Unlock()
		return true, t.exitErr
	default:
		return false, nil
	}
}

// Stop kills the process and waits until it exits.
func (t *TarantoolInstance) Stop() error {
	t.mutex.Lock()
	t.stopped = true
	t.mutex.Unlock()

	if done, _ := t.exited(); done {
		return nil
	}
	if err := t.Cmd.Process.Kill(); err != nil {
		if done, _ := t.exited(); !done {
			return fmt.Errorf("failed to kill tarantool %q (pid %d): %w",
				t.Opts.Listen, t.Cmd.Process.Pid, err)
		}
	}
	<-t.done
	return nil
}

func isReady(dialer tarantool.Dialer) error {
	ctx, cancel := GetConnectContext()
	defer cancel()

	conn, err := tarantool.Connect(ctx, dialer, tarantool.Opts{
		Timeout:    500 * time.Millisecond,
		SkipSchema: true,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Ping()
	return err
}

var versionRegexp = regexp.MustCompile(`Tarantool (?:Enterprise )?(\d+)\.(\d+)\.(\d+)`)

// IsTarantoolAvailable reports whether a tarantool executable could be
// found. Integration tests are skipped without it.
func IsTarantoolAvailable() bool {
	_, err := exec.LookPath(tarantoolExec())
	return err == nil
}

// tarantoolExec returns TARANTOOL_BIN or "tarantool".
func tarantoolExec() string {
	if bin := os.Getenv("TARANTOOL_BIN"); bin != "" {
		return bin
	}
	return "tarantool"
}

func parseVersion(out string) ([3]uint64, error) {
	var version [3]uint64

	parsed := versionRegexp.FindStringSubmatch(out)
	if parsed == nil {
		return version, fmt.Errorf("failed to parse output %q", out)
	}
	for i := range version {
		n, err := strconv.ParseUint(parsed[i+1], 10, 64)
		if err != nil {
			return version, fmt.Errorf("failed to parse version from output %q: %w", out, err)
		}
		version[i] = n
	}
	return version, nil
}

// IsTarantoolVersionLess reports whether the tarantool version is less than
// major.minor.patch.
func IsTarantoolVersionLess(major, minor, patch uint64) (bool, error) {
	out, err := exec.Command(tarantoolExec(), "--version").Output()
	if err != nil {
		return true, err
	}
	version, err := parseVersion(string(out))
	if err != nil {
		return true, err
	}

	min := [3]uint64{major, minor, patch}
	for i := range version {
		if version[i] != min[i] {
			return version[i] < min[i], nil
		}
	}
	return false, nil
}

func prepareDir(workDir string) (string, error) {
	if workDir == "" {
		return os.MkdirTemp("", "work_dir")
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return "", err
	}

	err := filepath.WalkDir(workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		for _, mask := range []string{"*.snap", "*.xlog"} {
			if ok, _ := filepath.Match(mask, d.Name()); ok {
				return os.Remove(path)
			}
		}
		return nil
	})
	return workDir, err
}

// StartTarantool starts an instance and waits until it accepts connections.
// The instance must be stopped with StopTarantool or
// StopTarantoolWithCleanup.
func StartTarantool(startOpts StartOpts) (*TarantoolInstance, error) {
	inst := &TarantoolInstance{done: make(chan struct{})}

	var err error
	if startOpts.WorkDir, err = prepareDir(startOpts.WorkDir); err != nil {
		return nil, fmt.Errorf("failed to prepare working dir %q: %w", startOpts.WorkDir, err)
	}

	var args []string
	if startOpts.InitScript != "" {
		script, err := filepath.Abs(startOpts.InitScript)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve init script: %w", err)
		}
		args = append(args, script)
	}

	inst.Opts = startOpts
	inst.Cmd = exec.Command(tarantoolExec(), args...)
	inst.Cmd.Dir = startOpts.WorkDir
	inst.Cmd.Env = append(os.Environ(),
		"TEST_TNT_WORK_DIR="+startOpts.WorkDir,
		"TEST_TNT_LISTEN="+startOpts.Listen,
	)
	if err = inst.Cmd.Start(); err != nil {
		return nil, err
	}
	go inst.wait()

	time.Sleep(startOpts.WaitStart)

	err = errors.New("readiness check is disabled")
	for i := 0; i <= startOpts.ConnectRetry; i++ {
		if err = isReady(startOpts.Dialer); err == nil {
			break
		}
		if i != startOpts.ConnectRetry {
			time.Sleep(startOpts.RetryTimeout)
		}
	}
	if startOpts.ConnectRetry < 0 {
		err = nil
	}

	if done, exitErr := inst.exited(); done && exitErr != nil {
		StopTarantool(inst)
		return nil, fmt.Errorf("unexpected terminated Tarantool %q: %w", startOpts.Listen, exitErr)
	}
	if err != nil {
		StopTarantool(inst)
		return nil, fmt.Errorf("failed to connect Tarantool %q: %w", startOpts.Listen, err)
	}
	return inst, nil
}

// StopTarantool stops an instance started with StartTarantool. It fails
// the test binary if the process could not be stopped.
func StopTarantool(inst *TarantoolInstance) {
	if err := inst.Stop(); err != nil {
		log.Fatal(err)
	}
}

// StopTarantoolWithCleanup stops an instance and removes its working
// directory. A nil instance is ignored.
func StopTarantoolWithCleanup(inst *TarantoolInstance) {
	if inst == nil {
		return
	}
	StopTarantool(inst)

	if inst.Opts.WorkDir != "" {
		if err := os.RemoveAll(inst.Opts.WorkDir); err != nil {
			log.Fatalf("Failed to clean work directory, got %s", err)
		}
	}
}

// ConvertUint64 converts any integer decoded by msgpack to uint64.
func ConvertUint64(v interface{}) (uint64, error) {
	switch v := v.(type) {
	case uint:
		return uint64(v), nil
	case uint8:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint32:
		return uint64(v), nil
	case uint64:
		return v, nil
	case int:
		return uint64(v), nil
	case int8:
		return uint64(v), nil
	case int16:
		return uint64(v), nil
	case int32:
		return uint64(v), nil
	case int64:
		return uint64(v), nil
	}
	return 0, fmt.Errorf("non-number value %T", v)
}

// GetConnectContext returns a context for a connection to a test instance.
func GetConnectContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 500*time.Millisecond)
}
