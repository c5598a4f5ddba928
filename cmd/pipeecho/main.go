// Program pipeecho exchanges values with a copy of itself over a pipe channel.
//
// Usage:
//
//	pipeecho [options]
//
// Run without -in and -out, pipeecho starts a copy of itself as a child
// process attached to a new channel, sends each line of standard input to the
// child as a string, and prints each value the child sends back. Run with
// -in and -out, it serves as the echo counterpart on the inherited handles.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/creachadair/pipechan"
	"github.com/creachadair/pipechan/codec/codecutil"
	"github.com/creachadair/pipechan/internal/echo"
	"github.com/rs/zerolog"
)

var (
	inHandle   = flag.String("in", "", "Handle of the inbound pipe (serve mode)")
	outHandle  = flag.String("out", "", "Handle of the outbound pipe (serve mode)")
	codecName  = flag.String("codec", "json", "Message codec")
	configFile = flag.String("config", "", "Read settings from this TOML file")
	echoCount  = flag.Int("count", 0, "Exit after echoing this many values (0 for no limit)")
	maxFrame   = flag.Int("max-frame", 0, "Maximum encoded message size (0 for the default, <0 for no limit)")
	logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: %s [options]

Without -in and -out, start a copy of this program as an echo counterpart,
send each line of standard input to it, and print the values it returns.

With -in and -out, serve as an echo counterpart on the given handles.

Settings in a -config file are overridden by flags given explicitly.

Options:
`, filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	cfg, err := settings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pipeecho: %v\n", err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *inHandle != "" || *outHandle != "" {
		log := newLogger("echo", cfg.LogLevel)
		if err := serve(ctx, cfg, log); err != nil {
			log.Fatal().Err(err).Msg("serve failed")
		}
		return
	}
	log := newLogger("driver", cfg.LogLevel)
	if err := drive(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("drive failed")
	}
}

// settings returns the effective configuration, from the -config file if
// one is given, with explicitly-set flags taking precedence.
func settings() (config, error) {
	cfg := defaultConfig()
	if *configFile != "" {
		var err error
		if cfg, err = loadConfig(*configFile); err != nil {
			return config{}, err
		}
	}

	var ferr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "codec":
			cfg.Codec = *codecName
		case "count":
			cfg.Count = *echoCount
		case "max-frame":
			cfg.MaxFrameSize = *maxFrame
		case "log-level":
			lvl, err := parseLevel(*logLevel)
			if err != nil {
				ferr = err
			}
			cfg.LogLevel = lvl
		}
	})
	if ferr != nil {
		return config{}, ferr
	}
	return cfg, cfg.check()
}

func (c config) options(log zerolog.Logger) *pipechan.Options {
	return &pipechan.Options{
		Codec:        codecutil.Codec(c.Codec, pipechan.NewRegistry()),
		MaxFrameSize: c.MaxFrameSize,
		Logger:       &log,
	}
}

// serve runs the echo counterpart on the handles given by -in and -out.
func serve(ctx context.Context, cfg config, log zerolog.Logger) error {
	c, err := pipechan.NewInitiator(*inHandle, *outHandle, cfg.options(log))
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Initialize(ctx); err != nil {
		return err
	}
	n, err := echo.Serve(ctx, c, cfg.Count, log)
	log.Info().Int("echoed", n).Msg("done")
	return err
}

// drive starts an echo counterpart in a child process, and sends it each line
// of standard input.
func drive(ctx context.Context, cfg config, log zerolog.Logger) error {
	acc, err := pipechan.NewAcceptor(cfg.options(log))
	if err != nil {
		return err
	}
	defer acc.Close()

	self, err := os.Executable()
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, self)
	in, out, err := acc.Attach(cmd)
	if err != nil {
		return err
	}
	cmd.Args = append(cmd.Args,
		"-in", in, "-out", out,
		"-codec", cfg.Codec,
		"-max-frame", strconv.Itoa(cfg.MaxFrameSize),
		"-log-level", cfg.LogLevel.String(),
	)
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting counterpart: %w", err)
	}
	if err := acc.Initialize(ctx); err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return err
	}
	log.Debug().Int("pid", int(acc.PeerIdentity())).Msg("counterpart ready")

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if err := acc.Send(ctx, sc.Text()); err != nil {
			return err
		}
		v, err := acc.Receive(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%v\n", v)
	}
	if err := sc.Err(); err != nil {
		return err
	}

	// Closing our end tells the counterpart to stop.
	acc.Close()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("counterpart: %w", err)
	}
	st := acc.Stats()
	log.Info().Int64("sent", st.FramesSent).Int64("received", st.FramesReceived).Msg("done")
	return nil
}
