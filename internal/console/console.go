// ABOUTME: Interactive terminal harness for exercising the conversation locally
// ABOUTME: Reads lines as inbound texts and prints the bot's replies in color

package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"

	"github.com/civicbots/courtbot/internal/conversation"
	"github.com/civicbots/courtbot/internal/message"
)

// CommType is the communication type the console transport serves.
const CommType = "console"

// exitWord ends the session.
const exitWord = "END"

// Console drives a registration conversation over stdin/stdout. Every line
// typed is one inbound text from a fixed synthetic contact.
type Console struct {
	regs     conversation.RegistrationStore
	lookup   conversation.PartyLookup
	composer message.Composer
	logger   *slog.Logger

	in      io.Reader
	out     io.Writer
	contact string
}

// New creates a console session reading from in and writing to out.
func New(regs conversation.RegistrationStore, lookup conversation.PartyLookup,
	composer message.Composer, in io.Reader, out io.Writer, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		regs:     regs,
		lookup:   lookup,
		composer: composer,
		logger:   logger.With("component", "console"),
		in:       in,
		out:      out,
		contact:  "console-user",
	}
}

// Run loops until the input closes, the context is cancelled or the user
// types END.
func (c *Console) Run(ctx context.Context) error {
	bot := color.New(color.FgCyan)
	prompt := color.New(color.FgGreen, color.Bold)

	fmt.Fprintf(c.out, "Type a case number to begin. %s exits.\n", exitWord)

	replier := conversation.ReplierFunc(func(_ context.Context, msg string) error {
		_, err := bot.Fprintf(c.out, "%s\n", msg)
		return err
	})
	driver := conversation.NewDriver(CommType, c.regs, c.lookup, c.composer, replier, c.logger)

	scanner := bufio.NewScanner(c.in)
	for {
		prompt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, exitWord) {
			fmt.Fprintln(c.out, "Goodbye.")
			return nil
		}
		if err := driver.Parse(ctx, line, c.contact); err != nil {
			color.New(color.FgRed).Fprintf(c.out, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

// Sender prints sweep-originated messages to the console transport, so
// reminders show up in local runs the same way texts would.
type Sender struct {
	out io.Writer
}

// NewSender creates a console message sender writing to out.
func NewSender(out io.Writer) *Sender { return &Sender{out: out} }

func (s *Sender) CommunicationType() string { return CommType }

func (s *Sender) Send(_ context.Context, to, msg string) error {
	_, err := color.New(color.FgYellow).Fprintf(s.out, "[to %s] %s\n", to, msg)
	return err
}
