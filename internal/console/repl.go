package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rovlink/rovconsole/internal/bus"
	"github.com/rovlink/rovconsole/internal/connection"
)

const prompt = "rov> "

// ReadLoop reads operator commands from in until EOF, quit, or ctx ends.
// Command errors are printed and do not end the loop.
func (c *Console) ReadLoop(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	fmt.Fprint(out, prompt)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			reply, err := c.Execute(ctx, line)
			switch {
			case errors.Is(err, ErrQuit):
				return nil
			case err != nil:
				fmt.Fprintf(out, "error: %v\n", err)
			case reply != "":
				fmt.Fprintln(out, reply)
			}
			fmt.Fprint(out, prompt)
		}
	}
}

// Watch prints connection status transitions to out until ctx ends.
func (c *Console) Watch(ctx context.Context, out io.Writer) error {
	sub := c.bus.Subscribe(bus.TopicConnStatus)
	defer c.bus.Release(sub)

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-sub:
			if !ok {
				return nil
			}
			if ev, ok := raw.(connection.StatusEvent); ok {
				fmt.Fprintln(out, describeStatus(ev))
			}
		}
	}
}
