//go:build unix

package pipechan_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/creachadair/pipechan"
	"github.com/creachadair/pipechan/codec"
	"github.com/creachadair/pipechan/internal/echo"
	"github.com/creachadair/pipechan/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

// When this variable is set, the test binary runs as an echo counterpart
// instead of running tests. Its value is "in,out,count".
const echoEnv = "PIPECHAN_TEST_ECHO"

func TestMain(m *testing.M) {
	if v := os.Getenv(echoEnv); v != "" {
		os.Exit(runEcho(v))
	}
	os.Exit(m.Run())
}

func runEcho(arg string) int {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("proc", "echo").Logger()

	parts := strings.Split(arg, ",")
	if len(parts) != 3 {
		log.Error().Str("value", arg).Msg("invalid " + echoEnv)
		return 2
	}
	count, err := strconv.Atoi(parts[2])
	if err != nil {
		log.Error().Err(err).Msg("invalid count")
		return 2
	}
	c, err := pipechan.NewInitiator(parts[0], parts[1], testutil.Options(codec.JSON))
	if err != nil {
		log.Error().Err(err).Msg("opening channel")
		return 1
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.Initialize(ctx); err != nil {
		log.Error().Err(err).Msg("initializing channel")
		return 1
	}
	if _, err := echo.Serve(ctx, c, count, log); err != nil {
		log.Error().Err(err).Msg("echo failed")
		return 1
	}
	return 0
}

// startChild starts a copy of the test binary as an echo counterpart for a,
// that exits after echoing count values.
func startChild(t *testing.T, a *pipechan.Acceptor, count int) *exec.Cmd {
	t.Helper()

	cmd := exec.Command(os.Args[0], "-test.run=^$")
	in, out, err := a.Attach(cmd)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%s,%s,%d", echoEnv, in, out, count))
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("Starting child: %v", err)
	}
	return cmd
}

func TestChildProcess(t *testing.T) {
	acc, err := pipechan.NewAcceptor(testutil.Options(codec.JSON))
	if err != nil {
		t.Fatalf("NewAcceptor failed: %v", err)
	}
	defer acc.Close()

	cmd := startChild(t, acc, 2)
	testutil.Initialize(t, acc.Channel)
	if got, want := acc.PeerIdentity(), pipechan.ProcessIdentity(cmd.Process.Pid); got != want {
		t.Errorf("PeerIdentity: got %d, want %d", got, want)
	}

	// After the handshake, the pipe ends of the child are no longer available
	// to attach.
	if _, _, err := acc.Attach(exec.Command("true")); err == nil {
		t.Error("Attach after Initialize: got nil error, want error")
	}

	ctx := context.Background()
	for _, want := range []any{"Hello", testutil.Record{Text: "Hello", N: 1}} {
		if err := acc.Send(ctx, want); err != nil {
			t.Fatalf("Send(%#v) failed: %v", want, err)
		}
		got, err := acc.Receive(ctx)
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Echo of %#v (-want, +got):\n%s", want, diff)
		}
	}

	// The child exits after its second echo, and its departure is observed
	// by both directions of the channel.
	if err := cmd.Wait(); err != nil {
		t.Fatalf("Child process failed: %v", err)
	}
	if _, err := acc.Receive(ctx); !errors.Is(err, pipechan.ErrPipeBroken) {
		t.Errorf("Receive after exit: got %v, want ErrPipeBroken", err)
	}
	if err := acc.Send(ctx, "Hello"); !errors.Is(err, pipechan.ErrPipeBroken) {
		t.Errorf("Send after exit: got %v, want ErrPipeBroken", err)
	}
}

func TestChildProcessKilled(t *testing.T) {
	acc, err := pipechan.NewAcceptor(testutil.Options(codec.JSON))
	if err != nil {
		t.Fatalf("NewAcceptor failed: %v", err)
	}
	defer acc.Close()

	cmd := startChild(t, acc, 0)
	testutil.Initialize(t, acc.Channel)

	errc := make(chan error, 1)
	acc.OnReceiveError(func(err error) { errc <- err })
	if err := acc.SetReceiveEvents(true); err != nil {
		t.Fatalf("SetReceiveEvents(true) failed: %v", err)
	}
	cmd.Process.Kill()
	cmd.Wait()

	select {
	case err := <-errc:
		if !errors.Is(err, pipechan.ErrPipeBroken) {
			t.Errorf("Receive error: got %v, want ErrPipeBroken", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Timed out waiting for the child to be seen as gone")
	}
}
