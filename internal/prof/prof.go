// Package prof writes CPU and memory profiles for the command line tools.
package prof

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/oneconcern/fileref/internal/rand"
	"go.uber.org/zap"
)

// CPU starts a CPU profile written to path. The returned function stops it.
func CPU(path string) (func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return func() error {
		pprof.StopCPUProfile()
		return f.Close()
	}, nil
}

// Heap writes the heap and allocation profiles as <prefix>.mem.prof and
// <prefix>.alloc.prof, keeping existing files.
func Heap(prefix string) error {
	if err := writeProfIfNotExist(prefix+".mem.prof", "heap"); err != nil {
		return err
	}
	return writeProfIfNotExist(prefix+".alloc.prof", "allocs")
}

func writeProfIfNotExist(path string, name string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return pprof.Lookup(name).WriteTo(f, 0)
}

// MinMB are the heap sizes, in MiB, from which a memory profile is taken
type MinMB struct {
	Alloc   uint64
	HeapSys uint64
}

// PollParams configure MemPoll
type PollParams struct {
	Interval    time.Duration
	LogInterval time.Duration
	Thresholds  []MinMB
	DestDir     string
	Logger      *zap.Logger
}

func (p PollParams) withDefaults() PollParams {
	if p.Interval == 0 {
		p.Interval = 50 * time.Millisecond
	}
	if p.DestDir == "" {
		p.DestDir = os.TempDir()
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return p
}

// MemPoll watches the heap until ctx is done. It logs when the heap grows,
// and takes one memory profile for each threshold crossed.
func MemPoll(ctx context.Context, params PollParams) {
	params = params.withDefaults()
	prefix := "mem_" + rand.LetterString(3)
	mstats := new(runtime.MemStats)
	ticker := time.NewTicker(params.Interval)
	defer ticker.Stop()

	var (
		maxHeap  uint64
		sinceLog time.Duration
		profiled = make(map[MinMB]bool, len(params.Thresholds))
	)
	for {
		runtime.ReadMemStats(mstats)
		if params.LogInterval != 0 && sinceLog >= params.LogInterval {
			params.Logger.Info("mempoll",
				zap.Uint64("heap MiB", mstats.Alloc/1024/1024),
				zap.Uint64("max heap MiB", mstats.HeapSys/1024/1024),
				zap.Int("goroutines", runtime.NumGoroutine()),
			)
			sinceLog = 0
		}
		if mstats.HeapSys > maxHeap {
			maxHeap = mstats.HeapSys
			params.Logger.Debug("grew heap", zap.Uint64("max heap MiB", maxHeap/1024/1024))
		}
		for _, min := range params.Thresholds {
			if profiled[min] || mstats.Alloc/1024/1024 < min.Alloc || mstats.HeapSys/1024/1024 < min.HeapSys {
				continue
			}
			profiled[min] = true
			base := filepath.Join(params.DestDir, strings.Join([]string{
				prefix,
				strconv.FormatUint(min.Alloc, 10),
				strconv.FormatUint(min.HeapSys, 10),
			}, "-"))
			if err := Heap(base); err != nil {
				params.Logger.Error("memory profiling error", zap.Error(err))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sinceLog += params.Interval
		}
	}
}
