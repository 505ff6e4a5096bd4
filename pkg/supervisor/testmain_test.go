package supervisor

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/yaklabco/unistack/internal/ish"
	"github.com/yaklabco/unistack/internal/runner"
	"github.com/yaklabco/unistack/pkg/ipc"
)

var fakeCore string

func init() {
	flag.StringVar(&fakeCore, "fakeCore", "", "")
}

func TestMain(m *testing.M) {
	flag.Parse()

	if fakeCore != "" {
		os.Exit(runFakeCore(fakeCore))
	}
	os.Exit(m.Run())
}

// runFakeCore plays the worker side of the protocol.
func runFakeCore(mode string) int {
	if mode == "silent" {
		time.Sleep(30 * time.Second)
		return 0
	}
	if mode == "die" {
		return 3
	}

	ch, err := ipc.OpenInherited()
	if err != nil {
		return 2
	}

	protocol := "1.2.0"
	if mode == "oldProtocol" {
		protocol = "0.9.0"
	}
	if err := ch.SendReady(ipc.Ready{Protocol: protocol, PID: os.Getpid()}); err != nil {
		return 2
	}

	switch mode {
	case "exit111":
		return 111
	case "exitZero":
		return 0
	case "mystery":
		status, _ := ipc.NewStatus("mystery_event", map[string]int{"n": 1})
		_ = ch.SendStatus(status)
	case "built":
		_ = ch.SendStatus(ipc.DetailStatus(ipc.StatusTypeBundleBuilt, ipc.Detail{
			Message: ipc.MessageBundleBuilt,
			Target:  "node",
		}))
	case "server":
		srv := runner.New(runner.Config{Cmd: ish.Cmd{Name: "sleep", Args: []string{"60"}}})
		if err := srv.Start(context.Background()); err != nil {
			return 2
		}
		pid := srv.PID()
		fds := make([]string, 0, 2)
		for _, fd := range []string{"3", "4"} {
			link, _ := os.Readlink(filepath.Join("/proc", strconv.Itoa(pid), "fd", fd))
			fds = append(fds, link)
		}
		status, _ := ipc.NewStatus("server_started", map[string]any{"pid": pid, "fds": fds})
		_ = ch.SendStatus(status)

		signal.Ignore(syscall.SIGTERM)
		for range ch.Incoming() {
		}
		time.Sleep(30 * time.Second)
		return 0
	case "stubborn":
		signal.Ignore(syscall.SIGTERM)
		for range ch.Incoming() {
		}
		time.Sleep(30 * time.Second)
		return 0
	}

	for msg := range ch.Incoming() {
		var cmd ipc.Command
		if msg.Decode(&cmd) == nil && cmd.Kind() == ipc.CommandTerminate {
			return ExitGraceful
		}
	}
	return ExitGraceful
}
