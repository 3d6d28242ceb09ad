package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"

	"offersync/internal/audit"
	"offersync/internal/config"
	"offersync/internal/reconciler"
	"offersync/internal/remote"
	"offersync/internal/store"
	"offersync/pkg/logging"
)

// session holds everything one command needs to reconcile or plan.
type session struct {
	cfg       config.Config
	store     store.DesiredStore
	engine    *reconciler.Engine
	metrics   *reconciler.Metrics
	resources []store.Resource
}

// openSession opens the store, builds the remote client and engine and
// resolves the selected resources. An empty selection means every resource
// the store lists.
func openSession(ctx context.Context, cfg config.Config, selected []string) (*session, error) {
	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}

	client, err := remote.NewClient(cfg.Remote)
	if err != nil {
		st.Close()
		return nil, err
	}

	all, err := st.ListResources(ctx)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("list resources: %w", err)
	}
	resources, err := selectResources(all, selected)
	if err != nil {
		st.Close()
		return nil, err
	}

	metrics := reconciler.NewMetrics()
	engine := reconciler.NewEngine(st, client, reconciler.NewConfig(cfg.Reconcile), reconciler.WithMetrics(metrics))

	return &session{
		cfg:       cfg,
		store:     st,
		engine:    engine,
		metrics:   metrics,
		resources: resources,
	}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// selectResources keeps the resources whose remote or local id is listed,
// in store order.
func selectResources(all []store.Resource, ids []string) ([]store.Resource, error) {
	if len(ids) == 0 {
		return all, nil
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[strings.TrimSpace(id)] = false
	}

	var out []store.Resource
	for _, r := range all {
		_, byRemote := wanted[r.RemoteID]
		_, byLocal := wanted[r.LocalID]
		if !byRemote && !byLocal {
			continue
		}
		if byRemote {
			wanted[r.RemoteID] = true
		}
		if byLocal {
			wanted[r.LocalID] = true
		}
		out = append(out, r)
	}

	var missing []string
	for _, id := range ids {
		if !wanted[strings.TrimSpace(id)] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unknown or unselected resources: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// auditSink builds the configured audit sinks. It returns nil when auditing
// is disabled.
func (s *session) auditSink() (audit.Sink, error) {
	var sinks audit.MultiSink
	if strings.TrimSpace(s.cfg.Audit.Dir) != "" {
		fs, err := audit.NewFileSink(s.cfg.Audit)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fs)
	}
	if s.cfg.Audit.SQLite {
		rec, ok := s.store.(store.AuditRecorder)
		if !ok {
			logging.Warn("Audit", "audit.sqlite is set but the %s store cannot record audit rows", s.cfg.Store.Driver)
		} else {
			sinks = append(sinks, audit.NewStoreSink(rec))
		}
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

// markDone records the configured done status on every resource that
// reached its desired state.
func (s *session) markDone(ctx context.Context, results []reconciler.Result) int {
	status := s.cfg.Store.MarkDoneStatus
	if status == "" {
		return 0
	}
	marker, ok := s.store.(store.StatusMarker)
	if !ok {
		logging.Warn("Store", "store.markDoneStatus is set but the %s store cannot record status", s.cfg.Store.Driver)
		return 0
	}

	marked := 0
	for _, r := range results {
		if !r.Success() {
			continue
		}
		if err := marker.MarkResourceStatus(ctx, r.Resource.LocalID, status); err != nil {
			logging.Error("Store", err, "Failed to mark %s as %s", r.Resource, status)
			continue
		}
		marked++
	}
	logging.Info("Store", "Marked %d resources as %s", marked, status)
	return marked
}

// outputFormat returns the flag value when set, otherwise the configured format.
func outputFormat(cfg config.Config, flag string) (string, error) {
	format := cfg.Report.Format
	if flag != "" {
		format = flag
	}
	if format == "" {
		format = config.ReportFormatTable
	}
	allowed := []string{config.ReportFormatTable, config.ReportFormatJSON, config.ReportFormatYAML}
	if err := config.ValidateOneOf("output", format, allowed); err != nil {
		return "", err
	}
	return format, nil
}

// progress drives a spinner while resources reconcile. It stays silent
// unless out is a terminal and the report is a table.
type progress struct {
	s    *spinner.Spinner
	verb string
}

func newProgress(out io.Writer, format, verb string, total int) *progress {
	f, ok := out.(*os.File)
	if !ok || format != config.ReportFormatTable || !term.IsTerminal(int(f.Fd())) {
		return &progress{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(f))
	s.Suffix = fmt.Sprintf(" %s 0/%d resources...", verb, total)
	return &progress{s: s, verb: verb}
}

func (p *progress) Start() {
	if p.s != nil {
		p.s.Start()
	}
}

func (p *progress) Stop() {
	if p.s != nil {
		p.s.Stop()
	}
}

func (p *progress) Update(done, total int, r reconciler.Result) {
	if p.s == nil {
		return
	}
	p.s.Lock()
	p.s.Suffix = fmt.Sprintf(" %s %d/%d resources (last: %s)...", p.verb, done, total, r.Resource.RemoteID)
	p.s.Unlock()
}
