// ABOUTME: Admin console controller: kind tabs, collection fetches, edit modal, save and delete
// ABOUTME: Network calls run outside the lock; superseded fetches are cancelled and ignored

package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/brewdesk/internal/apiclient"
	"github.com/2389/brewdesk/internal/catalog"
	"github.com/2389/brewdesk/internal/events"
)

// Messages shown to the operator.
const (
	DeletePrompt    = "Are you sure you want to delete this item?"
	MsgSaveFailed   = "Failed to save item"
	MsgDeleteFailed = "Failed to delete item"
)

// Controller errors.
var (
	ErrNotMounted   = errors.New("console is not mounted")
	ErrClosed       = errors.New("console is closed")
	ErrSuperseded   = errors.New("fetch superseded by a newer selection")
	ErrKindMismatch = errors.New("record kind does not match the active tab")
)

// Resources is the backend surface the console drives.
type Resources interface {
	List(ctx context.Context, k catalog.Kind) ([]catalog.Record, error)
	Create(ctx context.Context, rec catalog.Record) (catalog.Record, error)
	Update(ctx context.Context, id int64, rec catalog.Record) (catalog.Record, error)
	Delete(ctx context.Context, k catalog.Kind, id int64) error
}

// Gate reports whether protected content may be shown.
type Gate interface {
	Require() error
}

// Confirmer asks the operator a yes/no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Notifier shows a message to the operator.
type Notifier interface {
	Notify(msg string)
}

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(msg string)

// Notify calls f.
func (f NotifyFunc) Notify(msg string) { f(msg) }

// Modal is the edit dialog. Editing is nil when creating.
type Modal struct {
	Open    bool
	Editing catalog.Record
}

// State is a snapshot of the console.
type State struct {
	Mounted    bool
	ActiveKind catalog.Kind
	Collection []catalog.Record
	IsLoading  bool
	Modal      Modal
}

// Config holds optional collaborators. A nil Confirmer declines every delete.
type Config struct {
	Confirmer Confirmer
	Notifier  Notifier
	Events    *events.Broadcaster
	Logger    *slog.Logger
}

// Controller is the admin console state machine. It is safe for concurrent use.
type Controller struct {
	res     Resources
	gate    Gate
	confirm Confirmer
	notify  Notifier
	events  *events.Broadcaster
	logger  *slog.Logger

	life context.Context
	stop context.CancelFunc

	mu          sync.Mutex
	state       State
	gen         uint64
	cancelFetch context.CancelFunc
	closed      bool
}

// New creates an unmounted controller.
func New(res Resources, gate Gate, cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	confirm := cfg.Confirmer
	if confirm == nil {
		confirm = ConfirmFunc(func(string) bool { return false })
	}
	notify := cfg.Notifier
	if notify == nil {
		notify = NotifyFunc(func(string) {})
	}
	life, stop := context.WithCancel(context.Background())
	return &Controller{
		res:     res,
		gate:    gate,
		confirm: confirm,
		notify:  notify,
		events:  cfg.Events,
		logger:  logger.With("component", "console"),
		life:    life,
		stop:    stop,
		state:   State{ActiveKind: catalog.KindOutlet},
	}
}

// State returns a snapshot. The collection slice is a copy; records are shared.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Collection = append([]catalog.Record(nil), c.state.Collection...)
	return s
}

// Mount opens the console on the outlets tab. The gate must allow it.
func (c *Controller) Mount(ctx context.Context) error {
	if err := c.gate.Require(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.state.Mounted = true
	c.mu.Unlock()

	return c.SelectKind(ctx, catalog.KindOutlet)
}

// SelectKind switches the active tab and fetches its collection. On failure
// the collection stays empty and the error is returned.
func (c *Controller) SelectKind(ctx context.Context, k catalog.Kind) error {
	if !k.Valid() {
		return fmt.Errorf("%w: %q", catalog.ErrUnknownKind, string(k))
	}
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	gen, fctx := c.beginFetchLocked(ctx, k)
	c.mu.Unlock()

	c.publish("loading", k)
	return c.runFetch(fctx, gen, k)
}

// Refresh refetches the active kind.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	k := c.state.ActiveKind
	c.mu.Unlock()
	return c.SelectKind(ctx, k)
}

func (c *Controller) usableLocked() error {
	if c.closed {
		return ErrClosed
	}
	if !c.state.Mounted {
		return ErrNotMounted
	}
	return nil
}

// beginFetchLocked supersedes any running fetch and marks the tab loading.
func (c *Controller) beginFetchLocked(ctx context.Context, k catalog.Kind) (uint64, context.Context) {
	if c.cancelFetch != nil {
		c.cancelFetch()
	}
	c.gen++

	fctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.life, cancel)
	c.cancelFetch = func() {
		stop()
		cancel()
	}

	c.state.ActiveKind = k
	c.state.IsLoading = true
	c.state.Collection = nil
	return c.gen, fctx
}

func (c *Controller) runFetch(ctx context.Context, gen uint64, k catalog.Kind) error {
	recs, err := c.res.List(ctx, k)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("dropping superseded fetch", "kind", k)
		return ErrSuperseded
	}
	c.cancelFetch()
	c.cancelFetch = nil
	c.state.IsLoading = false
	if err != nil {
		c.state.Collection = nil
	} else {
		c.state.Collection = recs
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("fetching collection failed", "kind", k, "error", err)
		c.publish("load_failed", k)
		return fmt.Errorf("fetching %s: %w", k.Plural(), err)
	}
	c.logger.Debug("collection loaded", "kind", k, "count", len(recs))
	c.publish("loaded", k)
	return nil
}

// OpenCreate opens the modal for a new record of the active kind.
func (c *Controller) OpenCreate() error {
	return c.openModal(nil)
}

// OpenEdit opens the modal on rec. The record is held by reference.
func (c *Controller) OpenEdit(rec catalog.Record) error {
	if rec == nil {
		return errors.New("no record to edit")
	}
	return c.openModal(rec)
}

func (c *Controller) openModal(rec catalog.Record) error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if rec != nil && rec.Kind() != c.state.ActiveKind {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s on %s tab", ErrKindMismatch, rec.Kind(), c.state.ActiveKind)
	}
	c.state.Modal = Modal{Open: true, Editing: rec}
	k := c.state.ActiveKind
	c.mu.Unlock()

	c.publish("modal_opened", k)
	return nil
}

// CloseModal dismisses the modal without saving.
func (c *Controller) CloseModal() {
	c.mu.Lock()
	wasOpen := c.state.Modal.Open
	c.state.Modal = Modal{}
	k := c.state.ActiveKind
	c.mu.Unlock()

	if wasOpen {
		c.publish("modal_closed", k)
	}
}

// Form returns a fresh form for the modal: seeded from the record under edit,
// or from the active kind's default when creating.
func (c *Controller) Form() *catalog.Form {
	c.mu.Lock()
	rec := c.state.Modal.Editing
	k := c.state.ActiveKind
	c.mu.Unlock()

	if rec == nil {
		rec = catalog.Default(k)
	}
	return catalog.NewForm(rec)
}

// Save persists rec: an update when it carries an identifier, a create
// otherwise. Success closes the modal and refetches once. Failure notifies
// the operator, keeps the modal open, and leaves the collection alone.
func (c *Controller) Save(ctx context.Context, rec catalog.Record) error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	k := c.state.ActiveKind
	c.mu.Unlock()

	if rec == nil || rec.Kind() != k {
		return fmt.Errorf("%w: saving on %s tab", ErrKindMismatch, k)
	}

	tctx, done := c.task(ctx)
	var err error
	id, persisted := rec.Identifier()
	if persisted {
		_, err = c.res.Update(tctx, id, rec.WithID(nil))
	} else {
		_, err = c.res.Create(tctx, rec)
	}
	done()

	if err != nil {
		if c.life.Err() != nil {
			return ErrClosed
		}
		c.logger.Error("saving item failed", "kind", k, "update", persisted, "error", err)
		c.notify.Notify(failureMessage(MsgSaveFailed, err))
		return fmt.Errorf("saving %s: %w", k, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.state.Modal = Modal{}
	gen, fctx := c.beginFetchLocked(ctx, k)
	c.mu.Unlock()

	c.publish("saved", k)
	_ = c.runFetch(fctx, gen, k)
	return nil
}

// SaveForm validates form and saves the resulting record. Validation errors
// are reported before any network call.
func (c *Controller) SaveForm(ctx context.Context, form *catalog.Form) error {
	rec, err := form.Record()
	if err != nil {
		c.notify.Notify(MsgSaveFailed + ": " + err.Error())
		return err
	}
	return c.Save(ctx, rec)
}

// RequestDelete asks for confirmation and deletes record id of the active
// kind. It reports whether the delete went through. A declined prompt does
// nothing. A failed delete notifies the operator and skips the refetch.
func (c *Controller) RequestDelete(ctx context.Context, id int64) (bool, error) {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return false, err
	}
	k := c.state.ActiveKind
	c.mu.Unlock()

	if !c.confirm.Confirm(DeletePrompt) {
		return false, nil
	}

	tctx, done := c.task(ctx)
	err := c.res.Delete(tctx, k, id)
	done()

	if err != nil {
		if c.life.Err() != nil {
			return false, ErrClosed
		}
		c.logger.Error("deleting item failed", "kind", k, "id", id, "error", err)
		c.notify.Notify(failureMessage(MsgDeleteFailed, err))
		return false, fmt.Errorf("deleting %s %d: %w", k, id, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return true, nil
	}
	gen, fctx := c.beginFetchLocked(ctx, k)
	c.mu.Unlock()

	c.publish("deleted", k)
	_ = c.runFetch(fctx, gen, k)
	return true, nil
}

// Close cancels every in-flight call. Later results are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	c.cancelFetch = nil
	c.state.IsLoading = false
	c.state.Modal = Modal{}
	c.mu.Unlock()

	c.stop()
	c.publish("closed", "")
}

// task derives a context that ends with ctx or with the controller.
func (c *Controller) task(ctx context.Context) (context.Context, context.CancelFunc) {
	tctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.life, cancel)
	return tctx, func() {
		stop()
		cancel()
	}
}

func (c *Controller) publish(typ string, k catalog.Kind) {
	c.events.Publish(events.Event{Topic: events.TopicConsole, Type: typ, Data: k})
}

// failureMessage appends the server's explanation for rejected input.
func failureMessage(base string, err error) string {
	if errors.Is(err, apiclient.ErrValidation) {
		if d := apiclient.Detail(err); d != "" {
			return base + ": " + d
		}
	}
	return base
}
