package cli

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/valter-silva-au/blockplan/internal/storage"
)

// watchDebounce is how long the store files must stay quiet before a pass runs.
var watchDebounce = 500 * time.Millisecond

var watchedFiles = []string{storage.TasksFileName, storage.CalendarFileName}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run a full pass whenever tasks.yaml or calendar.yaml changes",
	Long: `Watch the base directory and run a full scheduling pass each time the
task or calendar file changes. Bursts of writes are collapsed into one
pass. Writes made by the pass itself do not trigger another pass.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Scheduler == nil || Calendar == nil {
			return fmt.Errorf("scheduler not initialized")
		}
		parent := cmd.Context()
		if parent == nil {
			parent = context.Background()
		}
		ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
		defer stop()

		w, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("creating watcher: %w", err)
		}
		defer func() { _ = w.Close() }()
		if err := w.Add(BasePath); err != nil {
			return fmt.Errorf("watching %s: %w", BasePath, err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Watching %s (ctrl+c to stop)\n", BasePath)

		snap := newFileSnapshot(BasePath, watchedFiles)
		snap.update()
		return watchLoop(ctx, w.Events, w.Errors, watchDebounce, func() {
			if !snap.changed() {
				Logger.Debug().Msg("store files unchanged, skipping pass")
				return
			}
			runWatchPass(out)
			snap.update()
		})
	},
}

// watchLoop calls run once per burst of relevant file events, after the
// events have been quiet for debounce. Everything happens on the calling
// goroutine, so passes never overlap. It returns when ctx is done or the
// event channel closes.
func watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, debounce time.Duration, run func()) error {
	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-events:
			if !ok {
				timer.Stop()
				return nil
			}
			if !isWatchedEvent(ev) {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			Logger.Warn().Err(err).Msg("watcher error")

		case <-timer.C:
			run()
		}
	}
}

func isWatchedEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(ev.Name)
	for _, f := range watchedFiles {
		if name == f {
			return true
		}
	}
	return false
}

func runWatchPass(out io.Writer) {
	fmt.Fprintf(out, "\n%s change detected\n", Clock.Now().Format("15:04:05"))
	if err := Calendar.Refresh(); err != nil {
		Logger.Warn().Err(err).Msg("reloading calendar")
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	result, err := Scheduler.ScheduleTasks(0)
	if err := reportPass(out, result, err, false); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
	}
}

// fileSnapshot remembers content hashes of the watched files.
type fileSnapshot struct {
	dir    string
	names  []string
	hashes map[string][32]byte
}

func newFileSnapshot(dir string, names []string) *fileSnapshot {
	return &fileSnapshot{dir: dir, names: names, hashes: make(map[string][32]byte)}
}

func (s *fileSnapshot) current() map[string][32]byte {
	out := make(map[string][32]byte, len(s.names))
	for _, n := range s.names {
		data, err := os.ReadFile(filepath.Join(s.dir, n))
		if err != nil {
			continue
		}
		out[n] = sha256.Sum256(data)
	}
	return out
}

func (s *fileSnapshot) update() {
	s.hashes = s.current()
}

func (s *fileSnapshot) changed() bool {
	cur := s.current()
	if len(cur) != len(s.hashes) {
		return true
	}
	for n, h := range cur {
		if prev, ok := s.hashes[n]; !ok || prev != h {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
