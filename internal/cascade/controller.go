package cascade

// Field-change cascade: recomputes dependent domains and drops stale resolver
// responses using per-field request tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tturner/gpdplot/internal/gpd"
	"github.com/tturner/gpdplot/internal/logging"
	"github.com/tturner/gpdplot/internal/session"
)

// Resolver answers domain queries against the model service.
type Resolver interface {
	ResolveForModel(ctx context.Context, model gpd.Model, g gpd.GPD) (gpd.Domain, error)
	ResolveForXbj(ctx context.Context, model gpd.Model, g gpd.GPD, xbj float64) (gpd.XbjUpdate, error)
	ResolveForT(ctx context.Context, model gpd.Model, g gpd.GPD, t float64) (gpd.TUpdate, error)
}

// Field is one dependent part of the domain a resolution may replace.
type Field int

const (
	FieldXbjChoices Field = iota
	FieldTChoices
	FieldQ2Range
)

func (f Field) String() string {
	switch f {
	case FieldXbjChoices:
		return "xbj-choices"
	case FieldTChoices:
		return "t-choices"
	case FieldQ2Range:
		return "q2-range"
	}
	return fmt.Sprintf("field(%d)", int(f))
}

var (
	modelFields = []Field{FieldXbjChoices, FieldTChoices, FieldQ2Range}
	xbjFields   = []Field{FieldTChoices, FieldQ2Range}
	tFields     = []Field{FieldXbjChoices, FieldQ2Range}
)

// Outcome describes what happened to one resolution request.
type Outcome struct {
	Token     gpd.RequestToken
	Applied   []Field
	Discarded []Field
	// Refreshed holds the resolutions issued because this response moved xbj
	// or t while their dependent choices belonged to a later request.
	Refreshed []Outcome
}

// Stale reports whether nothing from the response was applied.
func (o Outcome) Stale() bool {
	return len(o.Applied) == 0 && len(o.Discarded) > 0
}

// errSelectionMoved skips a refresh whose value is no longer selected.
var errSelectionMoved = errors.New("selection moved")

// refresh names the selections a response moved away from the value their
// dependent choices were resolved for.
type refresh struct {
	xbj, t       bool
	xbjVal, tVal float64
}

type pending struct {
	fields []Field
	cancel context.CancelFunc
}

// Controller owns every write to the selection and displayed domain that
// results from a field change.
type Controller struct {
	resolver Resolver
	state    *session.State
	logger   *logging.Logger

	mu      sync.Mutex
	next    gpd.RequestToken
	latest  map[Field]gpd.RequestToken
	pending map[gpd.RequestToken]*pending
	failed  map[Field]bool // fields behind the current notice
}

// New creates a controller writing to state.
func New(resolver Resolver, state *session.State, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Controller{
		resolver: resolver,
		state:    state,
		logger:   logger,
		latest:   make(map[Field]gpd.RequestToken),
		pending:  make(map[gpd.RequestToken]*pending),
		failed:   make(map[Field]bool),
	}
}

// Init resolves the domain for the current model and GPD.
func (c *Controller) Init(ctx context.Context) (Outcome, error) {
	return c.changeModel(ctx, func(o gpd.Options) gpd.Options { return o })
}

// SetModel switches the model and re-resolves the whole domain.
func (c *Controller) SetModel(ctx context.Context, m gpd.Model) (Outcome, error) {
	return c.changeModel(ctx, func(o gpd.Options) gpd.Options { return o.WithModel(m) })
}

// SetGPD switches the GPD type and re-resolves the whole domain.
func (c *Controller) SetGPD(ctx context.Context, g gpd.GPD) (Outcome, error) {
	return c.changeModel(ctx, func(o gpd.Options) gpd.Options { return o.WithGPD(g) })
}

func (c *Controller) changeModel(ctx context.Context, change func(gpd.Options) gpd.Options) (Outcome, error) {
	var opts gpd.Options
	token, reqCtx, _ := c.issue(ctx, modelFields, func() error {
		c.state.Update(func(o gpd.Options, d gpd.Domain) (gpd.Options, gpd.Domain) {
			opts = change(o)
			return opts, d
		})
		return nil
	})
	c.logger.Debug("cascade #%d: resolve domain for %s/%s", token, opts.Model, opts.GPD)

	domain, err := c.resolver.ResolveForModel(reqCtx, opts.Model, opts.GPD)
	out, next, err := c.complete(token, "model", err, func(apply map[Field]bool, o gpd.Options, d gpd.Domain) (gpd.Options, gpd.Domain) {
		if apply[FieldXbjChoices] {
			d.XbjChoices = append([]float64(nil), domain.XbjChoices...)
			o = o.WithXbj(reconcile(d.XbjChoices, o.Xbj))
		}
		if apply[FieldTChoices] {
			d.TChoices = append([]float64(nil), domain.TChoices...)
			o = o.WithT(reconcile(d.TChoices, o.T))
		}
		if apply[FieldQ2Range] {
			d.Q2Range = gpd.Q2Range{}
		}
		return o, d
	})
	return c.chain(ctx, out, err, next)
}

// SetXbj selects xbj and re-resolves the t choices and q2 range.
func (c *Controller) SetXbj(ctx context.Context, xbj float64) (Outcome, error) {
	return c.setXbj(ctx, xbj, false)
}

// setXbj with isRefresh re-resolves only while xbj is still selected and
// never chains further refreshes.
func (c *Controller) setXbj(ctx context.Context, xbj float64, isRefresh bool) (Outcome, error) {
	var opts gpd.Options
	token, reqCtx, err := c.issue(ctx, xbjFields, func() error {
		var rejected error
		c.state.Update(func(o gpd.Options, d gpd.Domain) (gpd.Options, gpd.Domain) {
			if isRefresh && !gpd.Same(o.Xbj, xbj) {
				rejected = errSelectionMoved
				return o, d
			}
			i := gpd.IndexOf(d.XbjChoices, xbj)
			if i < 0 {
				rejected = fmt.Errorf("xbj %s: %w", gpd.FormatValue(xbj), gpd.ErrNotInDomain)
				return o, d
			}
			opts = o.WithXbj(d.XbjChoices[i])
			return opts, d
		})
		return rejected
	})
	if errors.Is(err, errSelectionMoved) {
		return Outcome{}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	c.logger.Debug("cascade #%d: resolve t for xbj=%s", token, gpd.FormatValue(opts.Xbj))

	update, err := c.resolver.ResolveForXbj(reqCtx, opts.Model, opts.GPD, opts.Xbj)
	out, next, err := c.complete(token, "xbj", err, func(apply map[Field]bool, o gpd.Options, d gpd.Domain) (gpd.Options, gpd.Domain) {
		if apply[FieldTChoices] {
			d.TChoices = append([]float64(nil), update.TChoices...)
			o = o.WithT(reconcile(d.TChoices, o.T))
		}
		if apply[FieldQ2Range] {
			d.Q2Range = update.Q2Range
			o = o.WithQ2(d.Q2Range.Clamp(o.Q2))
		}
		return o, d
	})
	if isRefresh {
		return out, err
	}
	return c.chain(ctx, out, err, next)
}

// SetT selects t and re-resolves the xbj choices and q2 range.
func (c *Controller) SetT(ctx context.Context, t float64) (Outcome, error) {
	return c.setT(ctx, t, false)
}

func (c *Controller) setT(ctx context.Context, t float64, isRefresh bool) (Outcome, error) {
	var opts gpd.Options
	token, reqCtx, err := c.issue(ctx, tFields, func() error {
		var rejected error
		c.state.Update(func(o gpd.Options, d gpd.Domain) (gpd.Options, gpd.Domain) {
			if isRefresh && !gpd.Same(o.T, t) {
				rejected = errSelectionMoved
				return o, d
			}
			i := gpd.IndexOf(d.TChoices, t)
			if i < 0 {
				rejected = fmt.Errorf("t %s: %w", gpd.FormatValue(t), gpd.ErrNotInDomain)
				return o, d
			}
			opts = o.WithT(d.TChoices[i])
			return opts, d
		})
		return rejected
	})
	if errors.Is(err, errSelectionMoved) {
		return Outcome{}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	c.logger.Debug("cascade #%d: resolve xbj for t=%s", token, gpd.FormatValue(opts.T))

	update, err := c.resolver.ResolveForT(reqCtx, opts.Model, opts.GPD, opts.T)
	out, next, err := c.complete(token, "t", err, func(apply map[Field]bool, o gpd.Options, d gpd.Domain) (gpd.Options, gpd.Domain) {
		if apply[FieldXbjChoices] {
			d.XbjChoices = append([]float64(nil), update.XbjChoices...)
			o = o.WithXbj(reconcile(d.XbjChoices, o.Xbj))
		}
		if apply[FieldQ2Range] {
			d.Q2Range = update.Q2Range
			o = o.WithQ2(d.Q2Range.Clamp(o.Q2))
		}
		return o, d
	})
	if isRefresh {
		return out, err
	}
	return c.chain(ctx, out, err, next)
}

// SetQ2 sets q2 directly. No resolution is needed.
func (c *Controller) SetQ2(q2 float64) error {
	var rejected error
	c.state.Update(func(o gpd.Options, d gpd.Domain) (gpd.Options, gpd.Domain) {
		if !d.Q2Range.Contains(q2) {
			rejected = fmt.Errorf("q2 %s not in %s: %w", gpd.FormatValue(q2), d.Q2Range, gpd.ErrQ2OutOfRange)
			return o, d
		}
		return o.WithQ2(q2), d
	})
	return rejected
}

// LatestToken returns the newest token registered for f, 0 if none.
func (c *Controller) LatestToken(f Field) gpd.RequestToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest[f]
}

// issue runs prepare and, when it succeeds, stamps a new request and registers
// it as latest for fields. Both happen under one lock so token order matches
// the order selections were written. Requests left with no field they are
// still latest for get cancelled.
func (c *Controller) issue(ctx context.Context, fields []Field, prepare func() error) (gpd.RequestToken, context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := prepare(); err != nil {
		return 0, nil, err
	}
	c.next++
	token := c.next
	for _, f := range fields {
		c.latest[f] = token
	}

	reqCtx, cancel := context.WithCancel(ctx)
	c.pending[token] = &pending{fields: fields, cancel: cancel}
	for tok, p := range c.pending {
		if tok != token && !c.latestForAny(tok, p.fields) {
			c.logger.Debug("cascade #%d: superseded, cancelling", tok)
			p.cancel()
		}
	}
	return token, reqCtx, nil
}

type applyFunc func(apply map[Field]bool, o gpd.Options, d gpd.Domain) (gpd.Options, gpd.Domain)

func (c *Controller) complete(token gpd.RequestToken, trigger string, err error, apply applyFunc) (Outcome, refresh, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pending[token]
	delete(c.pending, token)
	if p == nil {
		return Outcome{Token: token}, refresh{}, nil
	}
	p.cancel()

	out := Outcome{Token: token}
	current := make(map[Field]bool, len(p.fields))
	for _, f := range p.fields {
		if c.latest[f] == token {
			current[f] = true
			out.Applied = append(out.Applied, f)
		} else {
			out.Discarded = append(out.Discarded, f)
		}
	}

	if err != nil {
		out.Discarded = append(out.Discarded, out.Applied...)
		out.Applied = nil
		if len(current) == 0 {
			c.logger.Debug("cascade #%d: stale %s failure dropped: %v", token, trigger, err)
			return out, refresh{}, nil
		}
		c.logger.Info("Domain update after %s change failed, keeping previous choices: %v", trigger, err)
		for f := range current {
			c.failed[f] = true
		}
		c.state.SetNotice(noticeFor(err))
		return out, refresh{}, err
	}

	if len(current) == 0 {
		c.logger.Debug("cascade #%d: stale %s response discarded", token, trigger)
		return out, refresh{}, nil
	}
	var before, after gpd.Options
	c.state.Update(func(o gpd.Options, d gpd.Domain) (gpd.Options, gpd.Domain) {
		before = o
		o, d = apply(current, o, d)
		after = o
		return o, d
	})
	for f := range current {
		delete(c.failed, f)
	}
	if len(c.failed) == 0 {
		c.state.SetNotice("")
	}
	if len(out.Discarded) > 0 {
		c.logger.Debug("cascade #%d: applied %s, discarded %s", token, joinFields(out.Applied), joinFields(out.Discarded))
	}

	// Choices a later request resolved for the old selection no longer match it.
	var next refresh
	if !gpd.Same(before.Xbj, after.Xbj) && c.ownedByLater(token, xbjFields) {
		next.xbj, next.xbjVal = true, after.Xbj
	}
	if !gpd.Same(before.T, after.T) && c.ownedByLater(token, tFields) {
		next.t, next.tVal = true, after.T
	}
	return out, next, nil
}

// chain runs the refreshes a response asked for and records them in out.
func (c *Controller) chain(ctx context.Context, out Outcome, err error, next refresh) (Outcome, error) {
	if err != nil {
		return out, err
	}
	var errs []error
	if next.xbj {
		c.logger.Debug("cascade #%d: xbj moved to %s, refreshing t choices", out.Token, gpd.FormatValue(next.xbjVal))
		r, rerr := c.setXbj(ctx, next.xbjVal, true)
		if r.Token != 0 {
			out.Refreshed = append(out.Refreshed, r)
		}
		errs = append(errs, rerr)
	}
	if next.t {
		c.logger.Debug("cascade #%d: t moved to %s, refreshing xbj choices", out.Token, gpd.FormatValue(next.tVal))
		r, rerr := c.setT(ctx, next.tVal, true)
		if r.Token != 0 {
			out.Refreshed = append(out.Refreshed, r)
		}
		errs = append(errs, rerr)
	}
	return out, errors.Join(errs...)
}

// ownedByLater reports whether a request newer than token owns any of fields.
func (c *Controller) ownedByLater(token gpd.RequestToken, fields []Field) bool {
	for _, f := range fields {
		if c.latest[f] > token {
			return true
		}
	}
	return false
}

func (c *Controller) latestForAny(token gpd.RequestToken, fields []Field) bool {
	for _, f := range fields {
		if c.latest[f] == token {
			return true
		}
	}
	return false
}

// reconcile keeps current when it is one of choices, else falls back to the
// first choice.
func reconcile(choices []float64, current float64) float64 {
	if i := gpd.IndexOf(choices, current); i >= 0 {
		return choices[i]
	}
	if len(choices) == 0 {
		return current
	}
	return choices[0]
}

func noticeFor(err error) string {
	var du *gpd.DomainUnavailableError
	if errors.As(err, &du) {
		return fmt.Sprintf("Could not refresh choices (%s): %v. Previous choices kept.", du.Op, du.Err)
	}
	return fmt.Sprintf("Could not refresh choices: %v. Previous choices kept.", err)
}

func joinFields(fields []Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.String()
	}
	return strings.Join(names, ",")
}
