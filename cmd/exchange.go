package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/guilhermegouw/parley/internal/chat"
	"github.com/guilhermegouw/parley/internal/events"
	"github.com/guilhermegouw/parley/internal/pubsub"
)

// busyPoll catches a finished exchange whose terminal event was dropped.
const busyPoll = 500 * time.Millisecond

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send [message...]",
		Short: "Send a message and stream the reply",
		Long:  `Send a message to the open chat and stream the reply. With no arguments, or "-", the message is read from stdin.`,
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			text, err := messageArg(args)
			if err != nil {
				return err
			}
			if text == "" {
				return errors.New("message is empty")
			}
			return streamReply(cmd, a, func() (string, error) {
				m, err := a.store.Send(text)
				if err != nil {
					return "", err
				}
				return m.ID, nil
			})
		}),
	}
}

func newReplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reply [message]",
		Short: "Stream a reply to the chat as it stands",
		Long: `Stream a reply to the open chat without adding a message of your own.
With a message reference the reply is written into that message, from the
history up to and including it; otherwise a new reply is appended.`,
		Args: cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			target := ""
			if len(args) == 1 {
				id, err := resolveMessage(a.store.View().Active, args[0])
				if err != nil {
					return err
				}
				target = id
			}
			return streamReply(cmd, a, func() (string, error) {
				m, err := a.store.Chat(target)
				if err != nil {
					return "", err
				}
				return m.ID, nil
			})
		}),
	}
}

func newContinueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "continue [message]",
		Short: "Extend a reply that stopped at the token limit",
		Long:  `Extend a reply that stopped at the token limit. The message defaults to the last one.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := messageRef(a, args)
			if err != nil {
				return err
			}
			return streamReply(cmd, a, func() (string, error) {
				return id, a.store.Continue(id)
			})
		}),
	}
}

func newRerollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reroll [message]",
		Short: "Regenerate a reply in place",
		Long:  `Regenerate a reply from the conversation before it. The message defaults to the last one.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := messageRef(a, args)
			if err != nil {
				return err
			}
			return streamReply(cmd, a, func() (string, error) {
				return id, a.store.Reroll(id)
			})
		}),
	}
}

func messageRef(a *app, args []string) (string, error) {
	ref := "last"
	if len(args) == 1 {
		ref = args[0]
	}
	return resolveMessage(a.store.View().Active, ref)
}

// streamReply starts an exchange and prints its progress until it ends.
// Interrupting cancels the exchange and keeps the partial reply.
func streamReply(cmd *cobra.Command, a *app, start func() (string, error)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	updates := a.hub.Exchange.Subscribe(subCtx)

	target, err := start()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	p := &progressPrinter{out: out}
	ticker := time.NewTicker(busyPoll)
	defer ticker.Stop()

	// handle reports whether ev ended the exchange.
	handle := func(ev pubsub.Event[events.ExchangeEvent]) (bool, error) {
		if ev.Payload.MessageID != target {
			return false, nil
		}
		if ev.Payload.Type == events.ExchangeEventProgress {
			p.update(ev.Payload.Content)
		}
		if ev.Payload.Terminal() {
			return true, reportOutcome(out, a, p, target, ev)
		}
		return false, nil
	}

	for {
		select {
		case <-ctx.Done():
			a.store.Cancel()
			p.finish()
			fmt.Fprintln(out, "(cancelled)")
			return nil
		case ev, ok := <-updates:
			if !ok {
				return nil
			}
			if done, err := handle(ev); done {
				return err
			}
		case <-ticker.C:
			if a.exchange.Busy() {
				continue
			}
			for {
				select {
				case ev, ok := <-updates:
					if !ok {
						return nil
					}
					if done, err := handle(ev); done {
						return err
					}
					continue
				default:
				}
				break
			}
			p.finish()
			return replyError(a, target)
		}
	}
}

func reportOutcome(out io.Writer, a *app, p *progressPrinter, target string, ev pubsub.Event[events.ExchangeEvent]) error {
	p.finish()
	if ev.Payload.Type == events.ExchangeEventCancelled {
		fmt.Fprintln(out, "(cancelled)")
		return nil
	}
	if ev.Payload.Error != nil {
		return fmt.Errorf("reply failed: %w", ev.Payload.Error)
	}
	if m, ok := a.store.View().Active.Find(target); ok {
		if m.Continuable() {
			fmt.Fprintln(out, "(stopped at the token limit; \"parley continue\" extends it)")
		}
		fmt.Fprintf(out, "(%d tokens, %s)\n", m.TotalTokens(), chat.FormatCostUSD(m.CostUSD))
	}
	return nil
}

func replyError(a *app, target string) error {
	if m, ok := a.store.View().Active.Find(target); ok && m.Error != "" {
		return fmt.Errorf("reply failed: %s", m.Error)
	}
	return nil
}

// progressPrinter writes streamed content incrementally. Updates carry
// the full text so far; a rewrite that does not extend the printed text
// starts over on a new line.
type progressPrinter struct {
	out     io.Writer
	printed string
}

func (p *progressPrinter) update(content string) {
	if strings.HasPrefix(content, p.printed) {
		fmt.Fprint(p.out, content[len(p.printed):])
	} else {
		fmt.Fprint(p.out, "\n", content)
	}
	p.printed = content
}

func (p *progressPrinter) finish() {
	if p.printed != "" {
		fmt.Fprintln(p.out)
		p.printed = ""
	}
}
