// ABOUTME: Admin REPL: login loop and console commands over the console controller
// ABOUTME: An expired session sends the operator back to the password prompt

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/brewdesk/internal/apiclient"
	"github.com/2389/brewdesk/internal/catalog"
	"github.com/2389/brewdesk/internal/console"
	"github.com/2389/brewdesk/internal/events"
	"github.com/2389/brewdesk/internal/render"
	"github.com/2389/brewdesk/internal/session"
)

// adminAPI is the backend surface the REPL uses.
type adminAPI interface {
	console.Resources
	session.AuthAPI
	Search(ctx context.Context, k catalog.Kind, f apiclient.Filter) ([]catalog.Record, error)
	Reindex(ctx context.Context) (apiclient.ReindexResult, error)
	IndexStatus(ctx context.Context) (apiclient.IndexStatus, error)
}

// errLoggedOut ends a console run and returns to the login prompt.
var errLoggedOut = errors.New("logged out")

type repl struct {
	client adminAPI
	sess   *session.Machine
	bus    *events.Broadcaster
	in     *prompter
	out    io.Writer
	logger *slog.Logger

	ctl *console.Controller
}

// run alternates between the login prompt and the console until input ends.
func (r *repl) run(ctx context.Context) error {
	r.sess.CheckAuth(ctx)
	for ctx.Err() == nil {
		if r.sess.Status() != session.StatusAuthenticated {
			if !r.login(ctx) {
				return nil
			}
		}
		err := r.console(ctx)
		if errors.Is(err, errLoggedOut) {
			continue
		}
		return err
	}
	return nil
}

func (r *repl) login(ctx context.Context) bool {
	for ctx.Err() == nil {
		pw, ok := r.in.password("Admin password: ")
		if !ok {
			return false
		}
		if pw == "" {
			continue
		}
		if r.sess.Login(ctx, pw) {
			color.New(color.FgGreen).Fprintln(r.out, "Logged in.")
			fmt.Fprintln(r.out)
			return true
		}
		color.New(color.FgRed).Fprintln(r.out, "Login failed.")
	}
	return false
}

// console runs one authenticated session. It returns errLoggedOut when the
// operator should log in again and nil when input ends.
func (r *repl) console(ctx context.Context) error {
	r.ctl = console.New(r.client, r.sess, console.Config{
		Confirmer: console.ConfirmFunc(r.in.confirm),
		Notifier: console.NotifyFunc(func(msg string) {
			color.New(color.FgRed).Fprintf(r.out, "  %s\n", msg)
		}),
		Events: r.bus,
		Logger: r.logger,
	})
	defer r.ctl.Close()

	// Collection tables and save/delete notes are printed from console
	// events, drained after every command.
	sctx, unsubscribe := context.WithCancel(ctx)
	defer unsubscribe()
	updates, _ := r.bus.Subscribe(sctx, events.TopicConsole)

	err := r.ctl.Mount(ctx)
	r.drain(updates)
	if err != nil {
		if r.expired(ctx, err) {
			return errLoggedOut
		}
		r.printErr(err)
	}

	for ctx.Err() == nil {
		st := r.ctl.State()
		line, ok := r.in.line(color.GreenString("%s> ", strings.ToLower(st.ActiveKind.Plural())))
		if !ok {
			return nil
		}
		if line == "" {
			continue
		}

		cmd, args, _ := strings.Cut(line, " ")
		args = strings.TrimSpace(args)
		if cmd == "quit" || cmd == "exit" || cmd == "q" {
			return nil
		}

		err := r.dispatch(ctx, cmd, args)
		r.drain(updates)
		if errors.Is(err, errLoggedOut) {
			return err
		}
		if err != nil {
			if r.expired(ctx, err) {
				color.New(color.FgYellow).Fprintln(r.out, "Session expired. Please log in again.")
				return errLoggedOut
			}
			r.printErr(err)
		}
	}
	return nil
}

// expired re-checks the session after an auth failure.
func (r *repl) expired(ctx context.Context, err error) bool {
	if !errors.Is(err, apiclient.ErrAuth) && !errors.Is(err, session.ErrAnonymous) {
		return false
	}
	return r.sess.CheckAuth(ctx) != session.StatusAuthenticated
}

func (r *repl) dispatch(ctx context.Context, cmd, args string) error {
	switch cmd {
	case "tab", "use":
		return r.cmdTab(ctx, args)
	case "outlets", "products", "food", "drinks":
		return r.cmdTab(ctx, cmd)
	case "list", "ls":
		r.printCollection()
		return nil
	case "refresh":
		return r.ctl.Refresh(ctx)
	case "show":
		rec, err := r.find(args)
		if err != nil {
			return err
		}
		return render.Detail(r.out, rec)
	case "add", "new":
		if err := r.ctl.OpenCreate(); err != nil {
			return err
		}
		return r.editModal(ctx)
	case "edit":
		rec, err := r.find(args)
		if err != nil {
			return err
		}
		if err := r.ctl.OpenEdit(rec); err != nil {
			return err
		}
		return r.editModal(ctx)
	case "delete", "rm":
		id, err := parseID(args)
		if err != nil {
			return err
		}
		_, err = r.ctl.RequestDelete(ctx, id)
		return err
	case "search":
		return r.cmdSearch(ctx, args)
	case "reindex":
		res, err := r.client.Reindex(ctx)
		if err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(r.out, "  %s (%d documents)\n", res.Message, res.TotalEmbeddings)
		return nil
	case "index":
		st, err := r.client.IndexStatus(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "  status: %s, documents: %d, index: %v\n", st.Status, st.TotalEmbeddings, st.FaissIndexExists)
		return nil
	case "logout":
		err := r.sess.Logout(ctx)
		if r.sess.Status() == session.StatusAnonymous {
			if err != nil {
				r.printErr(err)
			}
			color.New(color.FgGreen).Fprintln(r.out, "Logged out.")
			return errLoggedOut
		}
		return err
	case "help", "?":
		printHelp(r.out)
		return nil
	}
	return fmt.Errorf("unknown command %q (try help)", cmd)
}

func (r *repl) cmdTab(ctx context.Context, name string) error {
	k, err := catalog.ParseKind(name)
	if err != nil {
		return err
	}
	return r.ctl.SelectKind(ctx, k)
}

// editModal fills the modal's form and saves it, offering a retry after a
// failed save. The modal is closed if the operator gives up.
func (r *repl) editModal(ctx context.Context) error {
	form := r.ctl.Form()
	for {
		if !r.in.fillForm(form) {
			r.ctl.CloseModal()
			return nil
		}
		err := r.ctl.SaveForm(ctx, form)
		if err == nil {
			return nil
		}
		if errors.Is(err, apiclient.ErrAuth) {
			r.ctl.CloseModal()
			return err
		}
		if !r.in.confirm("Edit again?") {
			r.ctl.CloseModal()
			return nil
		}
	}
}

func (r *repl) cmdSearch(ctx context.Context, args string) error {
	f, err := parseFilter(args)
	if err != nil {
		return err
	}
	k := r.ctl.State().ActiveKind
	recs, err := r.client.Search(ctx, k, f)
	if err != nil {
		return err
	}
	return render.Table(r.out, k, recs)
}

// find looks up a record in the loaded collection by id.
func (r *repl) find(arg string) (catalog.Record, error) {
	id, err := parseID(arg)
	if err != nil {
		return nil, err
	}
	for _, rec := range r.ctl.State().Collection {
		if got, ok := rec.Identifier(); ok && got == id {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("no %s with id %d in the current list", r.ctl.State().ActiveKind.Label(), id)
}

// drain prints the console events published so far without blocking.
func (r *repl) drain(updates <-chan events.Event) {
	for {
		select {
		case ev, ok := <-updates:
			if !ok {
				return
			}
			r.show(ev)
		default:
			return
		}
	}
}

func (r *repl) show(ev events.Event) {
	switch ev.Type {
	case "loaded":
		r.printCollection()
	case "saved":
		color.New(color.FgGreen).Fprintln(r.out, "  Saved.")
	case "deleted":
		color.New(color.FgGreen).Fprintln(r.out, "  Deleted.")
	}
}

func (r *repl) printCollection() {
	st := r.ctl.State()
	if err := render.Table(r.out, st.ActiveKind, st.Collection); err != nil {
		r.printErr(err)
	}
}

func (r *repl) printErr(err error) {
	color.New(color.FgRed).Fprintf(r.out, "  error: %v\n", err)
}

func parseID(arg string) (int64, error) {
	if arg == "" {
		return 0, errors.New("an id is required")
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

// parseFilter reads key=value pairs. A bare word searches by name.
func parseFilter(args string) (apiclient.Filter, error) {
	var f apiclient.Filter
	for _, tok := range strings.Fields(args) {
		key, val, ok := strings.Cut(tok, "=")
		if !ok {
			f.Name = strings.TrimSpace(f.Name + " " + tok)
			continue
		}
		switch strings.ToLower(key) {
		case "name":
			f.Name = val
		case "category", "region":
			f.Category = val
		case "address":
			f.Address = val
		case "min", "min_price":
			p, err := catalog.ParsePrice(val)
			if err != nil {
				return f, err
			}
			f.MinPrice = p
		case "max", "max_price":
			p, err := catalog.ParsePrice(val)
			if err != nil {
				return f, err
			}
			f.MaxPrice = p
		case "limit":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return f, fmt.Errorf("invalid limit %q", val)
			}
			f.Limit = n
		default:
			return f, fmt.Errorf("unknown search key %q", key)
		}
	}
	return f, nil
}

func printHelp(w io.Writer) {
	cyan := color.New(color.FgCyan)
	cyan.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  outlets | products | food | drinks   Switch tab")
	fmt.Fprintln(w, "  list                                 Show the loaded collection")
	fmt.Fprintln(w, "  refresh                              Reload the collection")
	fmt.Fprintln(w, "  show ID                              Show one record")
	fmt.Fprintln(w, "  add                                  Create a record")
	fmt.Fprintln(w, "  edit ID                              Edit a record (Enter keeps, - clears)")
	fmt.Fprintln(w, "  delete ID                            Delete a record")
	fmt.Fprintln(w, "  search [name] [key=value ...]        Keys: name category address min max limit")
	fmt.Fprintln(w, "  reindex                              Rebuild the assistant's search index")
	fmt.Fprintln(w, "  index                                Show search index status")
	fmt.Fprintln(w, "  logout                               End the admin session")
	fmt.Fprintln(w, "  quit                                 Exit")
}
