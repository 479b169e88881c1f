package command

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sahilm/fuzzy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/dtrl/pkg/compile"
	"github.com/macropower/dtrl/pkg/log"
	"github.com/macropower/dtrl/pkg/profile"
	"github.com/macropower/dtrl/pkg/rule"
	"github.com/macropower/dtrl/pkg/source"
	"github.com/macropower/dtrl/pkg/table"
)

var (
	// ErrNoProfile is returned when no rule matches a table.
	ErrNoProfile = errors.New("no matching profile")

	// ErrUnknownProfile is returned when a profile name is not configured.
	ErrUnknownProfile = errors.New("unknown profile")
)

// Runner compiles the decision tables found at a path. It manages:
//   - Table-to-profile mappings.
//   - Filesystem notifications / watching.
//   - Writing output files.
type Runner struct {
	tracer   trace.Tracer
	profiles map[string]*profile.Profile
	watcher  *fsnotify.Watcher

	// Digests of the last content written to each output file.
	digests map[string]uint64

	// Track watched directories.
	// Enables un-watching in re-configuration scenarios.
	watchedDirs map[string]struct{}

	cancelFunc  context.CancelFunc
	path        string
	profileName string
	output      string
	listeners   []chan<- Event
	rules       []*rule.Rule
	jobs        int
	mu          sync.Mutex
	color       bool
	watch       bool
}

// NewRunner creates a new [Runner] for the tables at path.
func NewRunner(path string, opts ...RunnerOpt) (*Runner, error) {
	cr := &Runner{
		digests:     make(map[string]uint64),
		watchedDirs: make(map[string]struct{}),
		profiles:    make(map[string]*profile.Profile),
		tracer:      otel.Tracer("command-runner"),
	}

	if len(opts) == 0 {
		// Defaults if no options are provided.
		opts = append(opts,
			WithRules(DefaultConfig.Rules),
			WithProfiles(DefaultConfig.Profiles))
	}

	opts = append(opts, WithPath(path))

	err := cr.Configure(opts...)
	if err != nil {
		return nil, err
	}

	return cr, nil
}

func (cr *Runner) Configure(opts ...RunnerOpt) error {
	return cr.ConfigureContext(context.Background(), opts...)
}

// ConfigureContext applies options to an existing runner.
// This allows reconfiguration after creation.
func (cr *Runner) ConfigureContext(ctx context.Context, opts ...RunnerOpt) error {
	ctx, span := cr.tracer.Start(ctx, "configure")
	defer span.End()

	cr.mu.Lock()
	defer cr.mu.Unlock()

	cr.removeWatchers(ctx)

	// Cancel any currently running compilation.
	if cr.cancelFunc != nil {
		// Note: The cancel event is broadcast by the canceled goroutine.
		cr.cancelFunc()
	}

	for _, opt := range opts {
		err := opt(cr)
		if err != nil {
			return fmt.Errorf("apply option: %w", err)
		}
	}

	if cr.profileName != "" {
		_, err := cr.lookupProfile(cr.profileName)
		if err != nil {
			return err
		}
	}

	if cr.watch {
		err := cr.watchPath(ctx)
		if err != nil {
			return err
		}
	}

	cr.broadcast(ctx, EventConfigure{})
	log.WithContext(ctx).DebugContext(ctx, "configured runner",
		slog.String("path", cr.path),
		slog.String("profile", cr.profileName),
		slog.Bool("watch", cr.watch),
	)

	return nil
}

type RunnerOpt func(cr *Runner) error

// WithPath sets the file or directory containing decision tables.
func WithPath(path string) RunnerOpt {
	return func(cr *Runner) error {
		path = filepath.Clean(path)

		_, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat path %q: %w", path, err)
		}

		cr.path = path

		return nil
	}
}

// WithWatch sets the watch flag for the runner.
func WithWatch(watch bool) RunnerOpt {
	return func(cr *Runner) error {
		cr.watch = watch

		return nil
	}
}

// WithProfile forces every table to compile with the named profile.
func WithProfile(name string) RunnerOpt {
	return func(cr *Runner) error {
		cr.profileName = name

		return nil
	}
}

// WithAutoProfile configures the runner to select profiles via rules.
func WithAutoProfile() RunnerOpt {
	return func(cr *Runner) error {
		cr.profileName = ""

		return nil
	}
}

// WithRules sets the rules from which the first matching rule selects a
// table's profile.
func WithRules(rs []*rule.Rule) RunnerOpt {
	return func(cr *Runner) error {
		cr.rules = rs

		return nil
	}
}

// WithProfiles sets the profiles available to rules and [WithProfile].
func WithProfiles(profiles map[string]*profile.Profile) RunnerOpt {
	return func(cr *Runner) error {
		cr.profiles = profiles

		return nil
	}
}

// WithJobs sets the number of rows compiled in parallel per table.
func WithJobs(n int) RunnerOpt {
	return func(cr *Runner) error {
		if n < 0 {
			return fmt.Errorf("jobs must not be negative, got %d", n)
		}

		cr.jobs = n

		return nil
	}
}

// WithOutput sets a file that compiled source is written to after each run.
// An empty path disables writing.
func WithOutput(path string) RunnerOpt {
	return func(cr *Runner) error {
		if path != "" {
			path = filepath.Clean(path)
		}

		cr.output = path

		return nil
	}
}

// WithColor enables colored source annotations in table errors.
func WithColor(color bool) RunnerOpt {
	return func(cr *Runner) error {
		cr.color = color

		return nil
	}
}

// lookupProfile returns the named profile. Unknown names produce an error
// suggesting the closest configured profile.
func (cr *Runner) lookupProfile(name string) (*profile.Profile, error) {
	p, ok := cr.profiles[name]
	if ok {
		return p, nil
	}

	names := slices.Sorted(maps.Keys(cr.profiles))

	matches := fuzzy.Find(name, names)
	if len(matches) > 0 {
		return nil, fmt.Errorf("%w %q, did you mean %q?", ErrUnknownProfile, name, matches[0].Str)
	}

	return nil, fmt.Errorf("%w %q, expected one of: %s", ErrUnknownProfile, name, strings.Join(names, ", "))
}

// FindProfile returns the profile used to compile t, loaded from path.
// A profile forced via [WithProfile] takes precedence over rules.
func (cr *Runner) FindProfile(path string, t *table.Table) (string, *profile.Profile, error) {
	cr.mu.Lock()
	name := cr.profileName
	cr.mu.Unlock()

	return cr.findProfile(path, t, name)
}

func (cr *Runner) findProfile(path string, t *table.Table, name string) (string, *profile.Profile, error) {
	if name != "" {
		p, err := cr.lookupProfile(name)
		if err != nil {
			return "", nil, err
		}

		return name, p, nil
	}

	for _, r := range cr.rules {
		if !r.MatchTable(path, t) {
			continue
		}

		p, err := cr.lookupProfile(r.Profile)
		if err != nil {
			return "", nil, fmt.Errorf("rule %q: %w", r.String(), err)
		}

		return r.Profile, p, nil
	}

	return "", nil, fmt.Errorf("%w for table %q", ErrNoProfile, t.Name)
}

func (cr *Runner) GetProfiles() map[string]*profile.Profile {
	return cr.profiles
}

func (cr *Runner) GetRules() []*rule.Rule {
	return cr.rules
}

// TableInfo describes a discovered decision table.
type TableInfo struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Parent  string `json:"parent,omitempty"`
	Profile string `json:"profile,omitempty"`
	Error   string `json:"error,omitempty"`
	Rows    int    `json:"rows"`
}

// Tables lists the decision tables at path along with the profile each would
// be compiled with. Files that fail to load are reported with an error.
func (cr *Runner) Tables(ctx context.Context, path string) ([]TableInfo, error) {
	_, span := cr.tracer.Start(ctx, "tables", trace.WithAttributes(
		attribute.String("path", path),
	))
	defer span.End()

	files, err := source.Discover(path)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("discover tables: %w", err)
	}

	infos := []TableInfo{}

	for _, f := range files {
		tbls, err := source.Load(f, source.WithColor(cr.color))
		if err != nil {
			infos = append(infos, TableInfo{Path: f, Error: err.Error()})
			continue
		}

		for _, t := range tbls {
			info := TableInfo{
				Path:   f,
				Name:   t.Name,
				Parent: t.ParentName,
				Rows:   len(t.Rows),
			}

			name, _, err := cr.FindProfile(f, t)
			if err != nil {
				info.Error = err.Error()
			} else {
				info.Profile = name
			}

			infos = append(infos, info)
		}
	}

	return infos, nil
}

// Compile loads and compiles every table at path. If profileName is empty,
// each table's profile is selected via rules. Compile does not broadcast
// events or write output.
func (cr *Runner) Compile(ctx context.Context, path, profileName string) Output {
	ctx, span := cr.tracer.Start(ctx, "compile", trace.WithAttributes(
		attribute.String("path", path),
		attribute.String("profile", profileName),
	))
	defer span.End()

	units, err := cr.compile(ctx, path, profileName)
	if err != nil {
		span.RecordError(err)
		return NewOutput(WithError(err))
	}

	return NewOutput(WithUnits(units...))
}

func (cr *Runner) compile(ctx context.Context, path, profileName string) ([]*Unit, error) {
	logger := log.WithContext(ctx)

	files, err := source.Discover(path)
	if err != nil {
		return nil, fmt.Errorf("discover tables: %w", err)
	}

	var units []*Unit

	for _, f := range files {
		tbls, err := source.Load(f, source.WithColor(cr.color))
		if err != nil {
			return nil, err //nolint:wrapcheck // Errors carry the file path.
		}

		for _, t := range tbls {
			err := ctx.Err()
			if err != nil {
				return nil, err //nolint:wrapcheck // Return the original error.
			}

			name, p, err := cr.findProfile(f, t, profileName)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f, err)
			}

			opts := append(p.CompilerOpts(), compile.WithConcurrency(cr.jobs))

			rules, err := compile.New(opts...).CompileRules(ctx, t)
			if err != nil {
				return nil, fmt.Errorf("%s: table %q: %w", f, t.Name, err)
			}

			logger.DebugContext(ctx, "compiled table",
				slog.String("path", f),
				slog.String("table", t.Name),
				slog.String("profile", name),
				slog.Int("rules", len(rules)),
			)

			units = append(units, &Unit{
				Path:    f,
				Table:   t.Name,
				Profile: name,
				Header:  p.Header(),
				Rules:   rules,
			})
		}
	}

	return units, nil
}

// Run compiles the configured path. See [Runner.RunContext].
func (cr *Runner) Run() Output {
	return cr.RunContext(context.Background())
}

// RunContext compiles the configured path, cancelling any run in progress.
// Events are broadcast to subscribers, and the output is written to the
// configured output file if its content changed.
func (cr *Runner) RunContext(ctx context.Context) Output {
	cr.mu.Lock()

	var (
		path        = cr.path
		profileName = cr.profileName
		output      = cr.output
	)

	ctx, span := cr.tracer.Start(ctx, "run", trace.WithAttributes(
		attribute.String("path", path),
		attribute.String("profile", profileName),
	))
	defer span.End()

	// Cancel any currently running compilation.
	if cr.cancelFunc != nil {
		// Note: The cancel event is broadcast by the canceled goroutine.
		cr.cancelFunc()
	}

	ctx, cr.cancelFunc = context.WithCancel(ctx)

	cr.mu.Unlock()

	cr.broadcast(ctx, EventStart{})

	co := cr.Compile(ctx, path, profileName)

	if co.Error != nil && errors.Is(ctx.Err(), context.Canceled) {
		cr.broadcast(ctx, EventCancel{})

		return co
	}

	if co.Error == nil && output != "" {
		src := co.Source()

		written, err := cr.writeIfChanged(ctx, output, src)
		if err != nil {
			co.Error = err
		} else if written {
			cr.broadcast(ctx, EventWrite{Path: output, Bytes: len(src)})
		}
	}

	cr.broadcast(ctx, EventEnd(co))

	return co
}

func (cr *Runner) watchPath(ctx context.Context) error {
	if cr.watcher == nil {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create fsnotify watcher: %w", err)
		}

		cr.watcher = watcher
	}

	info, err := os.Stat(cr.path)
	if err != nil {
		return fmt.Errorf("stat %q: %w", cr.path, err)
	}

	var dirs []string

	if info.IsDir() {
		err = filepath.WalkDir(cr.path, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != cr.path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}

			dirs = append(dirs, path)

			return nil
		})
		if err != nil {
			return fmt.Errorf("walk %q: %w", cr.path, err)
		}
	} else {
		dirs = append(dirs, filepath.Dir(cr.path))
	}

	for _, dir := range dirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("resolve %q: %w", dir, err)
		}

		err = cr.watcher.Add(absDir)
		if err != nil {
			return fmt.Errorf("add path to watcher: %w", err)
		}

		cr.watchedDirs[absDir] = struct{}{}
	}

	log.WithContext(ctx).DebugContext(ctx, "added file watchers",
		slog.String("path", cr.path),
		slog.Int("count", len(cr.watchedDirs)),
	)

	return nil
}

func (cr *Runner) removeWatchers(ctx context.Context) {
	if cr.watcher == nil || len(cr.watchedDirs) == 0 {
		return
	}

	logger := log.WithContext(ctx)

	removedCount := 0
	for dir := range cr.watchedDirs {
		err := cr.watcher.Remove(dir)
		if errors.Is(err, fsnotify.ErrNonExistentWatch) {
			continue
		}
		if err != nil {
			logger.ErrorContext(ctx, "remove path from watcher", slog.Any("err", err))
		}

		removedCount++
	}

	logger.DebugContext(ctx, "removed file watchers",
		slog.String("path", cr.path),
		slog.Int("count", removedCount),
	)

	clear(cr.watchedDirs)
}

// ShouldReload reports whether a filesystem event should trigger a new run.
// Chmod-only events and writes to the output file are ignored. Otherwise the
// event must satisfy the reload expression of at least one candidate profile:
// the forced profile, or every profile referenced by a rule.
func (cr *Runner) ShouldReload(ctx context.Context, evt fsnotify.Event) bool {
	if evt.Op == fsnotify.Chmod {
		return false
	}

	cr.mu.Lock()
	output := cr.output
	profileName := cr.profileName
	cr.mu.Unlock()

	if output != "" {
		absOutput, err := filepath.Abs(output)
		if err == nil && absOutput == evt.Name {
			return false
		}
	}

	candidates := map[string]*profile.Profile{}
	if profileName != "" {
		p, err := cr.lookupProfile(profileName)
		if err != nil {
			return false
		}

		candidates[profileName] = p
	} else {
		for _, r := range cr.rules {
			p, ok := cr.profiles[r.Profile]
			if ok {
				candidates[r.Profile] = p
			}
		}
	}

	logger := log.WithContext(ctx)

	for name, p := range candidates {
		matched, err := p.MatchFileEvent(evt.Name, evt.Op)
		if err != nil {
			logger.ErrorContext(ctx, "match file event",
				slog.String("profile", name),
				slog.String("event", evt.String()),
				slog.Any("error", err),
			)

			continue
		}
		if matched {
			return true
		}
	}

	return false
}

// RunOnEvent listens for file system events and compiles in response.
// The output should be collected via [Runner.Subscribe].
func (cr *Runner) RunOnEvent() {
	if cr.watcher == nil {
		return
	}

	for {
		select {
		case evt, ok := <-cr.watcher.Events:
			if !ok {
				return
			}

			// Create a new context for this run.
			ctx := context.Background()

			if !cr.ShouldReload(ctx, evt) {
				continue
			}

			log.WithContext(ctx).DebugContext(ctx, "reloading",
				slog.String("event", evt.String()),
			)

			// Run in a goroutine so we can handle cancellation properly.
			go cr.RunContext(ctx)

		case err, ok := <-cr.watcher.Errors:
			if !ok {
				return
			}

			ctx := context.Background()
			cr.broadcast(ctx, EventEnd(NewOutput(WithError(err))))
		}
	}
}

// Subscribe allows other components to listen for runner events.
func (cr *Runner) Subscribe(ch chan<- Event) {
	cr.listeners = append(cr.listeners, ch)
}

func (cr *Runner) broadcast(ctx context.Context, evt Event) {
	log.WithContext(ctx).DebugContext(ctx, "broadcasting event",
		slog.String("event", fmt.Sprintf("%T", evt)),
	)

	for _, ch := range cr.listeners {
		ch <- evt
	}
}

func (cr *Runner) Close() {
	if cr.watcher == nil {
		return
	}

	err := cr.watcher.Close()
	if err != nil {
		slog.Error("close watcher", slog.Any("err", err))
	}
}

func (cr *Runner) String() string {
	if cr.profileName != "" {
		return fmt.Sprintf("%s (profile %s)", cr.path, cr.profileName)
	}

	return cr.path
}
