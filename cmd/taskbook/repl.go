package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stemsi/taskbook/internal/app"
	"github.com/stemsi/taskbook/internal/model"
)

func runRepl(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return repl(ctx, a, callerID, cmd.InOrStdin(), cmd.OutOrStdout())
}

// repl answers every non-empty line of in. It stops at EOF or when ctx ends.
func repl(ctx context.Context, a *app.App, caller string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		cmd, ok := parseMessage(scanner.Text(), caller)
		if !ok {
			continue
		}
		res := a.Commands.Execute(ctx, cmd)
		fmt.Fprintln(out, res.Text)
	}
	return scanner.Err()
}

// parseMessage splits a chat line into a command. The leading '/' and a
// trailing "@botname" on the command word are dropped.
func parseMessage(line, caller string) (model.Command, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return model.Command{}, false
	}

	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i]
	}
	if name == "" {
		return model.Command{}, false
	}
	return model.Command{Name: name, Args: fields[1:], CallerID: caller}, true
}
