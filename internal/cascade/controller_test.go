package cascade

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tturner/gpdplot/internal/gpd"
	"github.com/tturner/gpdplot/internal/session"
)

type reply struct {
	domain gpd.Domain
	xbj    gpd.XbjUpdate
	t      gpd.TUpdate
	err    error
}

// call is one resolver invocation held until the test answers it.
type call struct {
	kind   string
	model  gpd.Model
	gpd    gpd.GPD
	value  float64
	ctx    context.Context
	answer chan reply
}

// gatedResolver parks every request on a channel so tests control the order
// in which responses arrive.
type gatedResolver struct {
	calls       chan *call
	honorCancel bool
}

func newGatedResolver() *gatedResolver {
	return &gatedResolver{calls: make(chan *call, 16)}
}

func (r *gatedResolver) wait(ctx context.Context, c *call) reply {
	r.calls <- c
	if !r.honorCancel {
		return <-c.answer
	}
	select {
	case rep := <-c.answer:
		return rep
	case <-ctx.Done():
		return reply{err: &gpd.DomainUnavailableError{Op: c.kind, Err: ctx.Err()}}
	}
}

func (r *gatedResolver) ResolveForModel(ctx context.Context, m gpd.Model, g gpd.GPD) (gpd.Domain, error) {
	rep := r.wait(ctx, &call{kind: "model", model: m, gpd: g, ctx: ctx, answer: make(chan reply, 1)})
	return rep.domain, rep.err
}

func (r *gatedResolver) ResolveForXbj(ctx context.Context, m gpd.Model, g gpd.GPD, xbj float64) (gpd.XbjUpdate, error) {
	rep := r.wait(ctx, &call{kind: "xbj", model: m, gpd: g, value: xbj, ctx: ctx, answer: make(chan reply, 1)})
	return rep.xbj, rep.err
}

func (r *gatedResolver) ResolveForT(ctx context.Context, m gpd.Model, g gpd.GPD, t float64) (gpd.TUpdate, error) {
	rep := r.wait(ctx, &call{kind: "t", model: m, gpd: g, value: t, ctx: ctx, answer: make(chan reply, 1)})
	return rep.t, rep.err
}

func (r *gatedResolver) next(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-r.calls:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for resolver call")
		return nil
	}
}

type result struct {
	out Outcome
	err error
}

func async(fn func() (Outcome, error)) chan result {
	ch := make(chan result, 1)
	go func() {
		out, err := fn()
		ch <- result{out, err}
	}()
	return ch
}

func await(t *testing.T, ch chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for cascade operation")
		return result{}
	}
}

func newController(r Resolver) (*Controller, *session.State) {
	state := session.New(gpd.DefaultOptions(), gpd.DefaultDomain())
	return New(r, state, nil), state
}

// initWith runs Init against the gated resolver and answers it with domain.
func initWith(t *testing.T, c *Controller, r *gatedResolver, domain gpd.Domain) {
	t.Helper()
	done := async(func() (Outcome, error) { return c.Init(context.Background()) })
	r.next(t).answer <- reply{domain: domain}
	if res := await(t, done); res.err != nil {
		t.Fatalf("Init: %v", res.err)
	}
}

func TestInitReplacesDomainAndKeepsValidSelection(t *testing.T) {
	r := newGatedResolver()
	c, state := newController(r)

	done := async(func() (Outcome, error) { return c.Init(context.Background()) })
	call := r.next(t)
	if call.kind != "model" || call.model != gpd.ModelBKM || call.gpd != gpd.GPDE {
		t.Fatalf("unexpected call %+v", call)
	}
	call.answer <- reply{domain: gpd.Domain{
		XbjChoices: []float64{0.0001, 0.001, 0.6},
		TChoices:   []float64{-0.2, -0.3},
	}}
	res := await(t, done)
	if res.err != nil {
		t.Fatalf("Init: %v", res.err)
	}
	if len(res.out.Applied) != 3 || len(res.out.Discarded) != 0 {
		t.Errorf("outcome = %+v", res.out)
	}

	snap := state.Snapshot()
	if !reflect.DeepEqual(snap.Domain.XbjChoices, []float64{0.0001, 0.001, 0.6}) {
		t.Errorf("xbj choices = %v", snap.Domain.XbjChoices)
	}
	if snap.Options.Xbj != 0.001 {
		t.Errorf("xbj 0.001 is still valid and should be kept, got %v", snap.Options.Xbj)
	}
	if snap.Options.T != -0.2 {
		t.Errorf("t -0.1 is gone, expected first choice -0.2, got %v", snap.Options.T)
	}
	if snap.Domain.Q2Range.Known {
		t.Error("model change should clear the q2 range")
	}
}

func TestXbjThenTExample(t *testing.T) {
	r := newGatedResolver()
	c, state := newController(r)
	xbjGrid := gpd.DefaultXbjChoices()
	initWith(t, c, r, gpd.Domain{XbjChoices: xbjGrid, TChoices: gpd.DefaultTChoices()})

	done := async(func() (Outcome, error) { return c.SetXbj(context.Background(), 0.01) })
	call := r.next(t)
	if call.kind != "xbj" || call.value != 0.01 {
		t.Fatalf("unexpected call %+v", call)
	}
	if got := state.Options().Xbj; got != 0.01 {
		t.Errorf("xbj should be set before the response, got %v", got)
	}
	call.answer <- reply{xbj: gpd.XbjUpdate{
		TChoices: gpd.DefaultTChoices(),
		Q2Range:  gpd.Q2Range{Min: 0.05, Max: 2.0, Known: true},
	}}
	if res := await(t, done); res.err != nil {
		t.Fatalf("SetXbj: %v", res.err)
	}

	snap := state.Snapshot()
	if snap.Domain.TChoices[0] != -0.1 || snap.Domain.TChoices[18] != -1.9 {
		t.Errorf("t choices = %v", snap.Domain.TChoices)
	}
	if snap.Domain.Q2Range.String() != "(0.05 to 2)" {
		t.Errorf("q2 range = %s", snap.Domain.Q2Range)
	}
	if !reflect.DeepEqual(snap.Domain.XbjChoices, xbjGrid) {
		t.Error("xbj change must not touch xbj choices")
	}

	tChoicesBefore := snap.Domain.TChoices
	done = async(func() (Outcome, error) { return c.SetT(context.Background(), -0.3) })
	call = r.next(t)
	if call.kind != "t" || call.value != -0.3 {
		t.Fatalf("expected resolveForT(-0.3), got %+v", call)
	}
	call.answer <- reply{t: gpd.TUpdate{
		XbjChoices: xbjGrid,
		Q2Range:    gpd.Q2Range{Min: 0.05, Max: 2.0, Known: true},
	}}
	if res := await(t, done); res.err != nil {
		t.Fatalf("SetT: %v", res.err)
	}

	snap = state.Snapshot()
	if !reflect.DeepEqual(snap.Domain.XbjChoices, xbjGrid) {
		t.Errorf("xbj choices changed: %v", snap.Domain.XbjChoices)
	}
	if !reflect.DeepEqual(snap.Domain.TChoices, tChoicesBefore) {
		t.Error("t change must not touch t choices")
	}
	if snap.Options.T != -0.3 || snap.Options.Xbj != 0.01 {
		t.Errorf("options = %s", snap.Options)
	}
}

func TestEarlierXbjResponseArrivingLateIsDiscarded(t *testing.T) {
	r := newGatedResolver()
	c, state := newController(r)
	initWith(t, c, r, gpd.DefaultDomain())

	first := async(func() (Outcome, error) { return c.SetXbj(context.Background(), 0.01) })
	firstCall := r.next(t)
	second := async(func() (Outcome, error) { return c.SetXbj(context.Background(), 0.4) })
	secondCall := r.next(t)

	// later request answers first
	secondCall.answer <- reply{xbj: gpd.XbjUpdate{
		TChoices: []float64{-0.5, -0.6},
		Q2Range:  gpd.Q2Range{Min: 0.05, Max: 4, Known: true},
	}}
	if res := await(t, second); res.err != nil || len(res.out.Applied) != 2 {
		t.Fatalf("second: %+v %v", res.out, res.err)
	}

	firstCall.answer <- reply{xbj: gpd.XbjUpdate{
		TChoices: []float64{-0.1, -0.2},
		Q2Range:  gpd.Q2Range{Min: 0.05, Max: 2, Known: true},
	}}
	res := await(t, first)
	if res.err != nil {
		t.Fatalf("first: %v", res.err)
	}
	if !res.out.Stale() {
		t.Errorf("first response should be stale, outcome %+v", res.out)
	}

	snap := state.Snapshot()
	if !reflect.DeepEqual(snap.Domain.TChoices, []float64{-0.5, -0.6}) {
		t.Errorf("t choices = %v, want the later response", snap.Domain.TChoices)
	}
	if snap.Domain.Q2Range.Max != 4 {
		t.Errorf("q2 range = %s", snap.Domain.Q2Range)
	}
	if snap.Options.Xbj != 0.4 {
		t.Errorf("xbj = %v", snap.Options.Xbj)
	}
}

func TestRapidModelChangesKeepOnlyLatest(t *testing.T) {
	r := newGatedResolver()
	c, state := newController(r)
	initWith(t, c, r, gpd.DefaultDomain())

	domainFor := map[string]gpd.Domain{
		"A": {XbjChoices: []float64{0.1}, TChoices: []float64{-0.1}},
		"B": {XbjChoices: []float64{0.2}, TChoices: []float64{-0.2}},
		"C": {XbjChoices: []float64{0.4}, TChoices: []float64{-0.4}},
	}

	a := async(func() (Outcome, error) { return c.SetModel(context.Background(), gpd.ModelUVA) })
	callA := r.next(t)
	b := async(func() (Outcome, error) { return c.SetGPD(context.Background(), gpd.GPDH) })
	callB := r.next(t)
	cc := async(func() (Outcome, error) { return c.SetModel(context.Background(), gpd.ModelBKM) })
	callC := r.next(t)

	if callC.model != gpd.ModelBKM || callC.gpd != gpd.GPDH {
		t.Fatalf("C should carry the accumulated selection, got %s/%s", callC.model, callC.gpd)
	}

	callA.answer <- reply{domain: domainFor["A"]}
	callC.answer <- reply{domain: domainFor["C"]}
	callB.answer <- reply{domain: domainFor["B"]}

	for name, ch := range map[string]chan result{"A": a, "B": b} {
		res := await(t, ch)
		if res.err != nil || !res.out.Stale() {
			t.Errorf("%s: expected stale outcome, got %+v %v", name, res.out, res.err)
		}
	}
	if res := await(t, cc); res.err != nil || res.out.Stale() {
		t.Fatalf("C: %+v %v", res.out, res.err)
	}

	snap := state.Snapshot()
	if !reflect.DeepEqual(snap.Domain, domainFor["C"]) {
		t.Errorf("domain = %+v, want C's", snap.Domain)
	}
	if snap.Options.Xbj != 0.4 || snap.Options.T != -0.4 {
		t.Errorf("options = %s", snap.Options)
	}
}

func TestModelResponseIsPartiallyOverriddenByLaterXbj(t *testing.T) {
	r := newGatedResolver()
	c, state := newController(r)
	initWith(t, c, r, gpd.DefaultDomain())

	model := async(func() (Outcome, error) { return c.SetModel(context.Background(), gpd.ModelUVA) })
	modelCall := r.next(t)
	xbj := async(func() (Outcome, error) { return c.SetXbj(context.Background(), 0.01) })
	xbjCall := r.next(t)

	xbjCall.answer <- reply{xbj: gpd.XbjUpdate{
		TChoices: []float64{-0.7},
		Q2Range:  gpd.Q2Range{Min: 0.1, Max: 1, Known: true},
	}}
	await(t, xbj)

	modelCall.answer <- reply{domain: gpd.Domain{
		XbjChoices: []float64{0.001, 0.01},
		TChoices:   []float64{-0.1},
	}}
	res := await(t, model)
	if res.err != nil {
		t.Fatal(res.err)
	}
	if !reflect.DeepEqual(res.out.Applied, []Field{FieldXbjChoices}) {
		t.Errorf("applied = %v", res.out.Applied)
	}
	if !reflect.DeepEqual(res.out.Discarded, []Field{FieldTChoices, FieldQ2Range}) {
		t.Errorf("discarded = %v", res.out.Discarded)
	}

	snap := state.Snapshot()
	if !reflect.DeepEqual(snap.Domain.XbjChoices, []float64{0.001, 0.01}) {
		t.Errorf("xbj choices = %v", snap.Domain.XbjChoices)
	}
	if !reflect.DeepEqual(snap.Domain.TChoices, []float64{-0.7}) {
		t.Errorf("t choices = %v", snap.Domain.TChoices)
	}
	if !snap.Domain.Q2Range.Known || snap.Domain.Q2Range.Max != 1 {
		t.Errorf("q2 range = %+v", snap.Domain.Q2Range)
	}
}

func TestModelResponseMovingXbjRefreshesLaterTChoices(t *testing.T) {
	r := newGatedResolver()
	c, state := newController(r)
	initWith(t, c, r, gpd.DefaultDomain())

	model := async(func() (Outcome, error) { return c.SetModel(context.Background(), gpd.ModelUVA) })
	modelCall := r.next(t)
	xbj := async(func() (Outcome, error) { return c.SetXbj(context.Background(), 0.01) })
	xbjCall := r.next(t)

	xbjCall.answer <- reply{xbj: gpd.XbjUpdate{
		TChoices: []float64{-0.7},
		Q2Range:  gpd.Q2Range{Min: 0.1, Max: 1, Known: true},
	}}
	await(t, xbj)

	// 0.01 is not offered by the new model, so xbj moves to 0.2
	modelCall.answer <- reply{domain: gpd.Domain{
		XbjChoices: []float64{0.2, 0.4},
		TChoices:   []float64{-0.1},
	}}
	refresh := r.next(t)
	if refresh.kind != "xbj" || refresh.value != 0.2 || refresh.model != gpd.ModelUVA {
		t.Fatalf("expected t choices resolved for xbj 0.2, got %+v", refresh)
	}
	if snap := state.Snapshot(); snap.Options.Xbj != 0.2 {
		t.Errorf("xbj = %v before refresh completes", snap.Options.Xbj)
	}
	refresh.answer <- reply{xbj: gpd.XbjUpdate{
		TChoices: []float64{-0.3, -0.4},
		Q2Range:  gpd.Q2Range{Min: 0.05, Max: 2, Known: true},
	}}

	res := await(t, model)
	if res.err != nil {
		t.Fatal(res.err)
	}
	if len(res.out.Refreshed) != 1 || len(res.out.Refreshed[0].Applied) != 2 {
		t.Errorf("refreshed = %+v", res.out.Refreshed)
	}

	snap := state.Snapshot()
	if snap.Options.Xbj != 0.2 {
		t.Errorf("xbj = %v", snap.Options.Xbj)
	}
	if !reflect.DeepEqual(snap.Domain.TChoices, []float64{-0.3, -0.4}) {
		t.Errorf("t choices = %v, want the ones for xbj 0.2", snap.Domain.TChoices)
	}
	if snap.Options.T != -0.3 {
		t.Errorf("t = %v, want reconciled into refreshed choices", snap.Options.T)
	}
	if snap.Domain.Q2Range.Max != 2 {
		t.Errorf("q2 range = %s", snap.Domain.Q2Range)
	}
	select {
	case call := <-r.calls:
		t.Fatalf("unexpected extra resolve: %+v", call)
	default:
	}
}

func TestXbjResponseMovingTRefreshesLaterXbjChoices(t *testing.T) {
	r := newGatedResolver()
	c, state := newController(r)
	initWith(t, c, r, gpd.DefaultDomain())

	xbj := async(func() (Outcome, error) { return c.SetXbj(context.Background(), 0.01) })
	xbjCall := r.next(t)
	tc := async(func() (Outcome, error) { return c.SetT(context.Background(), -0.3) })
	tCall := r.next(t)

	tCall.answer <- reply{t: gpd.TUpdate{
		XbjChoices: []float64{0.01, 0.1},
		Q2Range:    gpd.Q2Range{Min: 0.1, Max: 1, Known: true},
	}}
	await(t, tc)

	// t -0.3 is gone for xbj 0.01; t moves to -0.5 and the xbj choices
	// resolved for -0.3 must be refreshed
	xbjCall.answer <- reply{xbj: gpd.XbjUpdate{
		TChoices: []float64{-0.5, -0.6},
		Q2Range:  gpd.Q2Range{Min: 0.05, Max: 3, Known: true},
	}}
	refresh := r.next(t)
	if refresh.kind != "t" || refresh.value != -0.5 {
		t.Fatalf("expected xbj choices resolved for t -0.5, got %+v", refresh)
	}
	refresh.answer <- reply{t: gpd.TUpdate{
		XbjChoices: []float64{0.01, 0.2},
		Q2Range:    gpd.Q2Range{Min: 0.05, Max: 3, Known: true},
	}}
	res := await(t, xbj)
	if res.err != nil {
		t.Fatal(res.err)
	}
	if !reflect.DeepEqual(res.out.Applied, []Field{FieldTChoices}) {
		t.Errorf("applied = %v", res.out.Applied)
	}

	snap := state.Snapshot()
	if snap.Options.T != -0.5 || snap.Options.Xbj != 0.01 {
		t.Errorf("options = %s", snap.Options)
	}
	if !reflect.DeepEqual(snap.Domain.XbjChoices, []float64{0.01, 0.2}) {
		t.Errorf("xbj choices = %v, want the ones for t -0.5", snap.Domain.XbjChoices)
	}
	if snap.Domain.Q2Range.Max != 3 {
		t.Errorf("q2 range = %s", snap.Domain.Q2Range)
	}
}

func TestSupersededRequestIsCancelled(t *testing.T) {
	r := newGatedResolver()
	r.honorCancel = true
	c, state := newController(r)

	first := async(func() (Outcome, error) { return c.SetModel(context.Background(), gpd.ModelUVA) })
	firstCall := r.next(t)
	second := async(func() (Outcome, error) { return c.SetModel(context.Background(), gpd.ModelBKM) })
	secondCall := r.next(t)

	select {
	case <-firstCall.ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("superseded request was not cancelled")
	}
	res := await(t, first)
	if res.err != nil {
		t.Errorf("stale cancellation should not surface an error: %v", res.err)
	}
	if state.Notice() != "" {
		t.Errorf("stale failure set a notice: %q", state.Notice())
	}

	secondCall.answer <- reply{domain: gpd.DefaultDomain()}
	if res := await(t, second); res.err != nil {
		t.Fatal(res.err)
	}
	if secondCall.ctx.Err() == nil {
		t.Error("completed request context should be released")
	}
}

func TestDomainUnavailableKeepsPreviousDomain(t *testing.T) {
	r := newGatedResolver()
	c, state := newController(r)
	initWith(t, c, r, gpd.DefaultDomain())
	before := state.Snapshot()

	done := async(func() (Outcome, error) { return c.SetXbj(context.Background(), 0.01) })
	r.next(t).answer <- reply{err: &gpd.DomainUnavailableError{Op: "domain-for-xbj", Err: fmt.Errorf("connection refused")}}
	res := await(t, done)

	if !gpd.IsDomainUnavailable(res.err) {
		t.Fatalf("error = %v", res.err)
	}
	snap := state.Snapshot()
	if !reflect.DeepEqual(snap.Domain, before.Domain) {
		t.Errorf("domain changed on failure: %+v", snap.Domain)
	}
	if snap.Options.Xbj != 0.01 {
		t.Errorf("the selection itself stands, xbj = %v", snap.Options.Xbj)
	}
	if !strings.Contains(snap.Notice, "Previous choices kept") {
		t.Errorf("notice = %q", snap.Notice)
	}

	// the t choices are still the ones kept from before the failure
	done = async(func() (Outcome, error) { return c.SetT(context.Background(), -0.2) })
	r.next(t).answer <- reply{t: gpd.TUpdate{XbjChoices: gpd.DefaultXbjChoices(), Q2Range: gpd.Q2Range{Min: 0.05, Max: 2, Known: true}}}
	if res := await(t, done); res.err != nil {
		t.Fatal(res.err)
	}
	if state.Notice() == "" {
		t.Error("notice cleared although t choices were not re-resolved")
	}

	done = async(func() (Outcome, error) { return c.SetXbj(context.Background(), 0.01) })
	r.next(t).answer <- reply{xbj: gpd.XbjUpdate{TChoices: gpd.DefaultTChoices(), Q2Range: gpd.Q2Range{Min: 0.05, Max: 2, Known: true}}}
	if res := await(t, done); res.err != nil {
		t.Fatal(res.err)
	}
	if state.Notice() != "" {
		t.Errorf("notice not cleared: %q", state.Notice())
	}
}

func TestSetXbjRejectsValueOutsideDomain(t *testing.T) {
	r := newGatedResolver()
	c, state := newController(r)

	_, err := c.SetXbj(context.Background(), 0.33)
	if !errors.Is(err, gpd.ErrNotInDomain) {
		t.Fatalf("error = %v", err)
	}
	_, err = c.SetT(context.Background(), 0.5)
	if !errors.Is(err, gpd.ErrNotInDomain) {
		t.Fatalf("error = %v", err)
	}
	if state.Options() != gpd.DefaultOptions() {
		t.Errorf("options changed: %s", state.Options())
	}
	if c.LatestToken(FieldTChoices) != 0 || c.LatestToken(FieldXbjChoices) != 0 {
		t.Error("rejected edits must not claim a token")
	}
	select {
	case call := <-r.calls:
		t.Fatalf("rejected edit reached the resolver: %+v", call)
	default:
	}
}

func TestReconcileAfterResponses(t *testing.T) {
	r := newGatedResolver()
	c, state := newController(r)
	initWith(t, c, r, gpd.DefaultDomain())

	// q2 is clamped into the new range, t falls back to the first choice
	if err := c.SetQ2(9); err != nil {
		t.Fatalf("unknown range accepts any q2: %v", err)
	}
	done := async(func() (Outcome, error) { return c.SetXbj(context.Background(), 0.6) })
	r.next(t).answer <- reply{xbj: gpd.XbjUpdate{
		TChoices: []float64{-0.8, -0.9},
		Q2Range:  gpd.Q2Range{Min: 0.05, Max: 4, Known: true},
	}}
	await(t, done)

	opts := state.Options()
	if opts.T != -0.8 {
		t.Errorf("t = %v, want first new choice", opts.T)
	}
	if opts.Q2 != 4 {
		t.Errorf("q2 = %v, want clamped to 4", opts.Q2)
	}
}

func TestSetQ2(t *testing.T) {
	r := newGatedResolver()
	c, state := newController(r)
	initWith(t, c, r, gpd.DefaultDomain())

	done := async(func() (Outcome, error) { return c.SetXbj(context.Background(), 0.01) })
	r.next(t).answer <- reply{xbj: gpd.XbjUpdate{
		TChoices: gpd.DefaultTChoices(),
		Q2Range:  gpd.Q2Range{Min: 0.05, Max: 2, Known: true},
	}}
	await(t, done)

	tests := []struct {
		q2      float64
		wantErr bool
	}{
		{0.05, false},
		{1.5, false},
		{2, false},
		{0.01, true},
		{2.5, true},
	}
	for _, tt := range tests {
		err := c.SetQ2(tt.q2)
		if tt.wantErr != (err != nil) {
			t.Errorf("SetQ2(%v) error = %v", tt.q2, err)
		}
		if tt.wantErr && !errors.Is(err, gpd.ErrQ2OutOfRange) {
			t.Errorf("SetQ2(%v) error = %v, want ErrQ2OutOfRange", tt.q2, err)
		}
	}
	if state.Options().Q2 != 2 {
		t.Errorf("q2 = %v, last accepted value was 2", state.Options().Q2)
	}
	select {
	case call := <-r.calls:
		t.Fatalf("q2 edits must not resolve: %+v", call)
	default:
	}
}

func TestFieldString(t *testing.T) {
	if FieldQ2Range.String() != "q2-range" || Field(9).String() != "field(9)" {
		t.Error("unexpected field names")
	}
}
