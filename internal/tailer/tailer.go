package tailer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/modelgate/modelgate/internal/eventbus"
	"github.com/modelgate/modelgate/internal/telemetry/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("modelgate")

const (
	// monthScanSchedule runs the periodic month-directory scan every ten
	// minutes, as a backstop for real-time directory watching.
	monthScanSchedule = "*/10 * * * *"

	// pollInterval is the fallback polling cadence, used because native
	// file-watch signals are unreliable on some platforms.
	pollInterval = time.Second

	// retryDelay is how long the tailer waits before retrying after an I/O
	// error, rather than terminating the process.
	retryDelay = 2 * time.Second
)

var monthDirPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// Tailer follows the backend's rolling log directory and turns new lines
// into Event Bus events.
//
// Layout assumed: <root>/YYYY-MM/YYYY-MM-DD.N.log. Tailer holds no lock
// across file I/O; state is a handful of strings and an offset, guarded by
// mu only for the duration of reading or updating them.
type Tailer struct {
	root      string
	bus       *eventbus.Bus
	collector *metrics.Collector

	mu         sync.Mutex
	activeDir  string
	activeFile string
	cursor     int64
}

// New builds a Tailer rooted at root. Nothing is read from disk until Run
// is called.
func New(root string, bus *eventbus.Bus, collector *metrics.Collector) *Tailer {
	return &Tailer{root: root, bus: bus, collector: collector}
}

// Run bootstraps the tailer and follows the log directory until ctx is
// canceled. Errors while following the directory are logged and retried.
// It returns an error when the file watcher cannot be created; otherwise it
// returns only when ctx is done, and the initial bootstrap keeps retrying
// until a month directory appears or ctx is done.
func (t *Tailer) Run(ctx context.Context) error {
	if err := t.bootstrapWithRetry(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := t.watchCurrentDirs(watcher); err != nil {
		slog.WarnContext(ctx, "tailer: failed to watch log directories", "error", err)
	}

	sched := cron.New()
	monthScanTrigger := make(chan struct{}, 1)
	if _, err := sched.AddFunc(monthScanSchedule, func() {
		select {
		case monthScanTrigger <- struct{}{}:
		default:
		}
	}); err != nil {
		slog.WarnContext(ctx, "tailer: failed to schedule month scan", "error", err)
	}
	sched.Start()
	defer sched.Stop()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			t.handleFSEvent(ctx, watcher, ev)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "tailer: fsnotify error", "error", err)

		case <-monthScanTrigger:
			t.scanForMonthTransition(ctx)
			_ = t.watchCurrentDirs(watcher)

		case <-ticker.C:
			t.drain(ctx)
		}
	}
}

// bootstrapWithRetry performs the initial bootstrap (§4.C.1), retrying
// indefinitely on failure since the backend's log directory may not exist
// yet when the gateway starts.
func (t *Tailer) bootstrapWithRetry(ctx context.Context) error {
	for {
		if err := t.bootstrap(); err != nil {
			slog.WarnContext(ctx, "tailer: bootstrap failed, retrying", "error", err)
			select {
			case <-time.After(retryDelay):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}
}

// bootstrap identifies the latest month directory and its newest .log
// file, and sets the cursor to end-of-file without backfilling.
func (t *Tailer) bootstrap() error {
	dir, err := latestMonthDir(t.root)
	if err != nil {
		return err
	}
	file, err := newestLogFile(dir)
	if err != nil {
		return err
	}

	info, err := os.Stat(file)
	if err != nil {
		return fmt.Errorf("stat active file: %w", err)
	}

	t.mu.Lock()
	t.activeDir = dir
	t.activeFile = file
	t.cursor = info.Size()
	t.mu.Unlock()

	slog.Info("tailer: bootstrapped", "dir", dir, "file", file, "cursor", info.Size())
	return nil
}

func (t *Tailer) watchCurrentDirs(watcher *fsnotify.Watcher) error {
	t.mu.Lock()
	dir := t.activeDir
	t.mu.Unlock()

	if err := watcher.Add(t.root); err != nil {
		return fmt.Errorf("watch root %s: %w", t.root, err)
	}
	if dir != "" {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch active dir %s: %w", dir, err)
		}
	}
	return nil
}

func (t *Tailer) handleFSEvent(ctx context.Context, watcher *fsnotify.Watcher, ev fsnotify.Event) {
	t.mu.Lock()
	activeDir := t.activeDir
	t.mu.Unlock()

	dir := filepath.Dir(ev.Name)
	if dir == t.root {
		// A new sibling directory may have appeared under root.
		t.scanForMonthTransition(ctx)
		_ = t.watchCurrentDirs(watcher)
		return
	}
	if dir == activeDir {
		t.checkRotationAndDrain(ctx)
	}
}

// checkRotationAndDrain handles intra-directory rotation (§4.C.3) before
// draining any new data from the (possibly just-switched) active file.
func (t *Tailer) checkRotationAndDrain(ctx context.Context) {
	t.mu.Lock()
	dir := t.activeDir
	currentFile := t.activeFile
	t.mu.Unlock()

	newest, err := newestLogFile(dir)
	if err != nil {
		slog.WarnContext(ctx, "tailer: failed to list active directory", "dir", dir, "error", err)
		return
	}
	if newest != currentFile {
		curInfo, curErr := os.Stat(currentFile)
		newInfo, newErr := os.Stat(newest)
		if newErr == nil && (curErr != nil || newInfo.ModTime().After(curInfo.ModTime())) {
			t.mu.Lock()
			t.activeFile = newest
			t.cursor = 0
			t.mu.Unlock()
			slog.Info("tailer: switched to newer log file", "dir", dir, "file", newest)
		}
	}

	t.drain(ctx)
}

// scanForMonthTransition implements §4.C.4: both the cron-triggered
// periodic scan and the real-time directory-watch path funnel through
// here.
func (t *Tailer) scanForMonthTransition(ctx context.Context) {
	t.mu.Lock()
	currentDir := t.activeDir
	t.mu.Unlock()

	latest, err := latestMonthDir(t.root)
	if err != nil {
		slog.WarnContext(ctx, "tailer: month scan failed", "error", err)
		return
	}
	if latest == currentDir || filepath.Base(latest) <= filepath.Base(currentDir) {
		return
	}

	newest, err := newestLogFile(latest)
	if err != nil {
		slog.WarnContext(ctx, "tailer: no log file in new month directory yet", "dir", latest, "error", err)
		return
	}

	t.mu.Lock()
	oldDir := t.activeDir
	t.activeDir = latest
	t.activeFile = newest
	t.cursor = 0
	t.mu.Unlock()

	slog.Info("tailer: month transition", "old_dir", oldDir, "new_dir", latest, "new_file", newest)
	t.publish(eventbus.EventLMStudioMonthTransition, map[string]interface{}{
		"old_dir":  oldDir,
		"new_dir":  latest,
		"new_file": newest,
	})
}

// drain reads everything new since the cursor, parses it line by line, and
// emits events. It resets the cursor to 0 on rotation-in-place (§4.C.2).
func (t *Tailer) drain(ctx context.Context) {
	t.mu.Lock()
	file := t.activeFile
	cursor := t.cursor
	t.mu.Unlock()

	if file == "" {
		return
	}

	f, err := os.Open(file)
	if err != nil {
		slog.WarnContext(ctx, "tailer: failed to open active file", "file", file, "error", err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		slog.WarnContext(ctx, "tailer: failed to stat active file", "file", file, "error", err)
		return
	}
	if info.Size() < cursor {
		cursor = 0
	}
	if info.Size() == cursor {
		return
	}

	if _, err := f.Seek(cursor, 0); err != nil {
		slog.WarnContext(ctx, "tailer: failed to seek active file", "file", file, "error", err)
		return
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			return i + 1, data[:i], nil
		}
		// An unterminated last line is left for the next drain.
		return 0, nil, nil
	})
	var consumed int64
	for scanner.Scan() {
		line := scanner.Bytes()
		consumed += int64(len(line)) + 1 // +1 for the newline the Scanner stripped
		t.emitLine(ctx, string(bytes.TrimRight(line, "\r")))
	}
	if err := scanner.Err(); err != nil {
		slog.WarnContext(ctx, "tailer: error scanning active file", "file", file, "error", err)
	}

	t.mu.Lock()
	t.cursor = cursor + consumed
	t.mu.Unlock()
}

func (t *Tailer) emitLine(ctx context.Context, raw string) {
	_, span := tracer.Start(ctx, "tailer.parse_line")
	defer span.End()

	base, typed := ParseLine(raw)
	if base == nil {
		return
	}
	span.SetAttributes(attribute.String("event.level", base.Level))

	t.publish(eventbus.EventDebugLog, map[string]interface{}{
		"timestamp": base.Timestamp,
		"level":     base.Level,
		"message":   base.Message,
		"raw":       base.Raw,
	})
	for _, ev := range typed {
		t.publish(ev.Type, ev.Data)
	}
}

func (t *Tailer) publish(eventType string, data map[string]interface{}) {
	if t.collector != nil {
		t.collector.RecordTailerLine(eventType)
	}
	if t.bus == nil {
		return
	}
	t.bus.Publish(eventType, data)
}

// latestMonthDir returns the lexicographically greatest YYYY-MM directory
// under root.
func latestMonthDir(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("read root %s: %w", root, err)
	}

	var months []string
	for _, e := range entries {
		if e.IsDir() && monthDirPattern.MatchString(e.Name()) {
			months = append(months, e.Name())
		}
	}
	if len(months) == 0 {
		return "", fmt.Errorf("no %s-shaped month directory under %s", "YYYY-MM", root)
	}
	sort.Strings(months)
	return filepath.Join(root, months[len(months)-1]), nil
}

// newestLogFile returns the *.log file in dir with the greatest
// modification time.
func newestLogFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read dir %s: %w", dir, err)
	}

	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".log" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(dir, e.Name())
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no .log file under %s", dir)
	}
	return newest, nil
}
