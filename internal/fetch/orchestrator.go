package fetch

// Plot and Download actions: fetch a dataset for an options snapshot and route
// it to a tab or to the download buffer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tturner/gpdplot/internal/gpd"
	"github.com/tturner/gpdplot/internal/logging"
	"github.com/tturner/gpdplot/internal/session"
	"github.com/tturner/gpdplot/internal/tabs"
)

// DefaultFilename is offered when the user does not name the export.
const DefaultFilename = "model.csv"

// Fetcher retrieves the full table for one options snapshot.
type Fetcher interface {
	FetchDataset(ctx context.Context, opts gpd.Options) ([]gpd.DataPoint, error)
}

// Renderer draws every dataset of a tab, oldest first.
type Renderer interface {
	Render(tabID gpd.TabID, datasets []gpd.Dataset) error
}

// Exporter writes one dataset under filename.
type Exporter interface {
	Export(points []gpd.DataPoint, filename string) error
}

// Orchestrator runs Plot and Download. Both may be in flight at once.
type Orchestrator struct {
	fetcher  Fetcher
	store    *tabs.Store
	state    *session.State
	renderer Renderer
	exporter Exporter
	logger   *logging.Logger

	// plotMu makes append+render one step, so renders follow completion order.
	plotMu sync.Mutex

	mu          sync.Mutex
	download    gpd.Dataset
	hasDownload bool
}

// New creates an orchestrator. renderer and exporter may be nil.
func New(fetcher Fetcher, store *tabs.Store, state *session.State, renderer Renderer, exporter Exporter, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Orchestrator{
		fetcher:  fetcher,
		store:    store,
		state:    state,
		renderer: renderer,
		exporter: exporter,
		logger:   logger,
	}
}

// Plot fetches the current selection and overlays it on tab tabID.
func (o *Orchestrator) Plot(ctx context.Context, tabID gpd.TabID) (gpd.Dataset, error) {
	return o.PlotWith(ctx, o.state.Options(), tabID)
}

// PlotWith fetches opts and appends the result to tab tabID, then renders the
// tab. An invalid tab fails before anything is fetched.
func (o *Orchestrator) PlotWith(ctx context.Context, opts gpd.Options, tabID gpd.TabID) (ds gpd.Dataset, err error) {
	if err := o.store.EnsureTab(tabID); err != nil {
		return gpd.Dataset{}, err
	}

	o.state.BeginFetch()
	defer func() { o.state.EndFetch(userMessage(err)) }()

	o.logger.Verbose("Plot tab %d: %s", tabID, opts)
	points, err := o.fetch(ctx, opts)
	if err != nil {
		o.logger.Error("Plot tab %d failed: %v", tabID, err)
		return gpd.Dataset{}, err
	}
	ds = gpd.Dataset{Options: opts, Points: points}

	o.plotMu.Lock()
	defer o.plotMu.Unlock()
	datasets, err := o.store.AppendAndRead(tabID, ds)
	if err != nil {
		return gpd.Dataset{}, err
	}
	o.logger.Info("Plotted %s on tab %d (%d points, %d datasets)", opts, tabID, len(points), len(datasets))
	if o.renderer != nil {
		if err := o.renderer.Render(tabID, datasets); err != nil {
			return ds, &RenderError{TabID: tabID, Err: err}
		}
	}
	return ds, nil
}

// Download fetches the current selection and exports it as filename.
func (o *Orchestrator) Download(ctx context.Context, filename string) (gpd.Dataset, error) {
	return o.DownloadWith(ctx, o.state.Options(), filename)
}

// DownloadWith fetches opts into the download buffer and exports it. The tab
// store is never touched.
func (o *Orchestrator) DownloadWith(ctx context.Context, opts gpd.Options, filename string) (ds gpd.Dataset, err error) {
	if filename == "" {
		filename = DefaultFilename
	}

	o.state.BeginFetch()
	defer func() { o.state.EndFetch(userMessage(err)) }()

	o.logger.Verbose("Download %s -> %s", opts, filename)
	points, err := o.fetch(ctx, opts)
	if err != nil {
		o.logger.Error("Download failed: %v", err)
		return gpd.Dataset{}, err
	}
	ds = gpd.Dataset{Options: opts, Points: points}

	o.mu.Lock()
	o.download = gpd.Dataset{Options: opts, Points: append([]gpd.DataPoint(nil), points...)}
	o.hasDownload = true
	o.mu.Unlock()

	if o.exporter != nil {
		if err := o.exporter.Export(points, filename); err != nil {
			return ds, &ExportError{Filename: filename, Err: err}
		}
	}
	o.logger.Info("Downloaded %s to %s (%d points)", opts, filename, len(points))
	return ds, nil
}

func (o *Orchestrator) fetch(ctx context.Context, opts gpd.Options) ([]gpd.DataPoint, error) {
	points, err := o.fetcher.FetchDataset(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, &gpd.DatasetFetchError{Options: opts, Err: fmt.Errorf("%w: empty table", gpd.ErrDataNotFound)}
	}
	return points, nil
}

// LastDownload returns a copy of the most recent download buffer.
func (o *Orchestrator) LastDownload() (gpd.Dataset, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.hasDownload {
		return gpd.Dataset{}, false
	}
	return gpd.Dataset{
		Options: o.download.Options,
		Points:  append([]gpd.DataPoint(nil), o.download.Points...),
	}, true
}

// RenderError reports a dataset that was stored but could not be drawn.
type RenderError struct {
	TabID gpd.TabID
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render tab %d: %v", e.TabID, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// ExportError reports a fetched dataset that could not be exported.
type ExportError struct {
	Filename string
	Err      error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Filename, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// userMessage is the error line shown by the UI shell.
func userMessage(err error) string {
	if err == nil {
		return ""
	}
	var fe *gpd.DatasetFetchError
	if !errors.As(err, &fe) {
		return "Error: " + err.Error()
	}
	if errors.Is(err, gpd.ErrDataNotFound) {
		return fmt.Sprintf("Error: Data not found (%v)", fe.Err)
	}
	return fmt.Sprintf("Error: could not fetch data (%v)", fe.Err)
}
