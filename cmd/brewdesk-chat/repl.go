// ABOUTME: Chat REPL: reads questions and slash commands, prints replies from chat events
// ABOUTME: A printer goroutine renders assistant messages as they are published

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/brewdesk/internal/apiclient"
	"github.com/2389/brewdesk/internal/chat"
	"github.com/2389/brewdesk/internal/events"
	"github.com/2389/brewdesk/internal/render"
)

// historyAPI reads and clears the server-side record of a session.
type historyAPI interface {
	ChatHistory(ctx context.Context, sessionID string) ([]apiclient.Turn, error)
	ClearChatHistory(ctx context.Context, sessionID string) error
}

type chatREPL struct {
	sess    *chat.Session
	history historyAPI
	bus     *events.Broadcaster
	in      *bufio.Scanner
	out     io.Writer

	// outMu serializes writes from the printer and the prompt loop.
	outMu sync.Mutex
	// idle receives once the printer has shown a reply.
	idle chan struct{}
}

func newChatREPL(sess *chat.Session, history historyAPI, bus *events.Broadcaster, in io.Reader, out io.Writer) *chatREPL {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), 1024*1024)
	return &chatREPL{
		sess:    sess,
		history: history,
		bus:     bus,
		in:      sc,
		out:     out,
		idle:    make(chan struct{}, 1),
	}
}

func (r *chatREPL) run(ctx context.Context) error {
	// Cancelling pctx closes ch, which ends the printer.
	pctx, stop := context.WithCancel(ctx)
	ch, _ := r.bus.Subscribe(pctx, events.TopicChat)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.printEvents(ch)
	}()
	defer func() {
		stop()
		wg.Wait()
	}()

	r.println(color.CyanString("Ask about outlets, products, food or drinks. Type /help for commands."))
	r.printExamples()

	for ctx.Err() == nil {
		r.print(color.GreenString("you> "))
		if !r.in.Scan() {
			r.println("")
			return nil
		}
		line := strings.TrimSpace(r.in.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := r.command(ctx, line)
			if err != nil {
				r.println(color.RedString("  error: %v", err))
			}
			if quit {
				return nil
			}
			continue
		}
		r.ask(ctx, line)
	}
	return nil
}

// ask sends text and waits for the printer to show the reply.
func (r *chatREPL) ask(ctx context.Context, text string) {
	if !r.sess.Send(ctx, text) {
		return
	}
	select {
	case <-r.idle:
	case <-ctx.Done():
	}
}

func (r *chatREPL) command(ctx context.Context, line string) (bool, error) {
	cmd, args, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	args = strings.TrimSpace(args)

	switch cmd {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		r.printHelp()
	case "examples":
		r.printExamples()
	case "example", "ex":
		n, err := strconv.Atoi(args)
		if err != nil || n < 1 || n > len(chat.ExampleQueries) {
			return false, fmt.Errorf("pick an example between 1 and %d", len(chat.ExampleQueries))
		}
		q := chat.ExampleQueries[n-1]
		r.println(color.GreenString("you> ") + q)
		r.ask(ctx, q)
	case "transcript":
		msgs := r.sess.Transcript()
		if len(msgs) == 0 {
			r.println("  No messages yet.")
			return false, nil
		}
		for _, m := range msgs {
			r.println(fmt.Sprintf("  %s %s: %s",
				color.HiBlackString(m.Timestamp.Format("15:04:05")), m.Sender, m.Text))
		}
	case "history":
		turns, err := r.history.ChatHistory(ctx, r.sess.ID())
		if err != nil {
			return false, err
		}
		if len(turns) == 0 {
			r.println("  No stored history for this session.")
			return false, nil
		}
		for _, t := range turns {
			r.println(fmt.Sprintf("  %s: %s", t.Role, t.Content))
		}
	case "forget":
		if err := r.history.ClearChatHistory(ctx, r.sess.ID()); err != nil {
			return false, err
		}
		r.println(color.GreenString("  Server history cleared for session %s.", r.sess.ID()))
	case "session":
		r.println("  " + r.sess.ID())
	default:
		return false, fmt.Errorf("unknown command /%s (try /help)", cmd)
	}
	return false, nil
}

// printEvents renders chat events until ch closes.
func (r *chatREPL) printEvents(ch <-chan events.Event) {
	for ev := range ch {
		switch ev.Type {
		case "pending":
			busy, _ := ev.Data.(bool)
			if busy {
				r.println(color.HiBlackString("  thinking..."))
				continue
			}
			select {
			case r.idle <- struct{}{}:
			default:
			}
		case "message":
			m, ok := ev.Data.(chat.Message)
			if !ok || m.Sender != chat.SenderAssistant {
				continue
			}
			r.println(color.CyanString("assistant>"))
			r.println(indent(render.Markdown(m.Text), "  "))
			r.println("")
		}
	}
}

func (r *chatREPL) printExamples() {
	r.println(color.HiBlackString("Try asking:"))
	for i, q := range chat.ExampleQueries {
		r.println(color.HiBlackString("  %d. %s", i+1, q))
	}
	r.println("")
}

func (r *chatREPL) printHelp() {
	r.println(color.CyanString("Commands:"))
	r.println("  /examples      List example questions")
	r.println("  /example N     Ask example question N")
	r.println("  /transcript    Show this conversation")
	r.println("  /history       Show the server's stored history for this session")
	r.println("  /forget        Clear the server's stored history for this session")
	r.println("  /session       Show the session id")
	r.println("  /quit          Exit")
}

func (r *chatREPL) print(s string) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	fmt.Fprint(r.out, s)
}

func (r *chatREPL) println(s string) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	fmt.Fprintln(r.out, s)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}
