// Command v543-query sends SCPI commands to a V543 gateway.
//
// Without commands an interactive console is started:
//
//  $> v543-query --addr raspberrypi:5555
//  v543> :measure:voltage:dc?
//  -1.000000E-04
//
// With commands each command is sent on its own connection, which works with
// both protocol revisions:
//
//  $> v543-query --addr raspberrypi:5555 '*idn?' ':meter:raw?'
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/urfave/cli/v2"
	"github.com/womat/debug"

	"v543/pkg/scpi"
)

const prompt = "v543> "

func main() {
	var (
		addr    string
		timeout time.Duration
	)

	cliApp := &cli.App{
		Name:      "v543-query",
		Usage:     "send SCPI commands to a V543 gateway",
		UsageText: "v543-query [--addr host:port] [--timeout 2s] [command...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Aliases: []string{"a"}, Destination: &addr, Value: "localhost:5555", Usage: "`ADDRESS` of the gateway"},
			&cli.DurationFlag{Name: "timeout", Aliases: []string{"t"}, Destination: &timeout, Value: 2 * time.Second, Usage: "`DURATION` of a query"},
		},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() > 0 {
				return oneShot(ctx.Context, addr, timeout, ctx.Args().Slice())
			}
			return console(ctx.Context, addr, timeout)
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		debug.FatalLog.Print(err)
		os.Exit(1)
	}
}

func oneShot(ctx context.Context, addr string, timeout time.Duration, cmds []string) error {
	for _, cmd := range cmds {
		qctx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := scpi.Query(qctx, addr, cmd)
		cancel()
		if err != nil {
			return err
		}
		fmt.Println(resp)
	}
	return nil
}

func console(ctx context.Context, addr string, timeout time.Duration) error {
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := scpi.Dial(dctx, addr)
	if err != nil {
		return err
	}
	defer c.Close()
	c.SetTimeout(timeout)

	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)

	history := filepath.Join(os.TempDir(), ".v543-query_history")
	if f, err := os.Open(history); err == nil {
		_, _ = term.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(history); err == nil {
			_, _ = term.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Printf("connected to %s, an empty line or ctrl-d ends the session\n", addr)
	for {
		line, err := term.Prompt(prompt)
		switch {
		case errors.Is(err, liner.ErrPromptAborted), errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("could not read command: %w", err)
		}

		cmd := strings.TrimSpace(line)
		if cmd == "" {
			return nil
		}
		term.AppendHistory(cmd)

		resp, err := c.Query(cmd)
		if err != nil {
			return err
		}
		fmt.Println(resp)
	}
}
