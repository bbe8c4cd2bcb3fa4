// Package demo serves a deterministic synthetic query service. It backs
// `sirius demo serve` and the HTTP client tests.
package demo

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/timewindow"
)

const (
	sampleInterval      = time.Second
	defaultLogInterval  = 250 * time.Millisecond
	defaultProcessCount = 5
	processSpacing      = 37 * time.Minute
	maxSubsamples       = 64
	maxLogPage          = 5000
	maxProcessList      = 100
	maxPointsPerRequest = 200_000
)

var (
	_ domain.Backend       = (*Dataset)(nil)
	_ domain.MetricCatalog = (*Dataset)(nil)
)

// signal describes how one synthetic metric moves over time.
type signal struct {
	info      domain.MetricInfo
	base      float64
	amplitude float64
	period    time.Duration
	noise     float64
	floor     float64
}

var signals = []signal{
	{info: domain.MetricInfo{Name: "cpu_usage", Unit: "percent"}, base: 35, amplitude: 25, period: 10 * time.Minute, noise: 8},
	{info: domain.MetricInfo{Name: "memory_used", Unit: "bytes"}, base: 512 << 20, amplitude: 128 << 20, period: 3 * time.Hour, noise: 16 << 20},
	{info: domain.MetricInfo{Name: "frame_time", Unit: "ms"}, base: 16.6, amplitude: 4, period: 45 * time.Second, noise: 6, floor: 1},
	{info: domain.MetricInfo{Name: "requests", Unit: "count"}, base: 120, amplitude: 90, period: 24 * time.Hour, noise: 30},
}

var executables = []string{"render-worker", "ingest-gateway", "scheduler", "physics-sim", "asset-baker"}

var logTargets = []string{"http::server", "db::pool", "render::frame", "scheduler::queue", "gc"}

// Dataset is an in-memory backend whose answers are a pure function of the
// seed, the process start times and the clock. Data only exists up to now, so
// polling the live edge yields new samples and log entries as time passes.
type Dataset struct {
	seed        string
	now         func() time.Time
	logInterval time.Duration
	processes   []domain.ProcessSummary
}

// DatasetOption configures a Dataset.
type DatasetOption func(*datasetConfig)

type datasetConfig struct {
	now         func() time.Time
	logInterval time.Duration
	count       int
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) DatasetOption {
	return func(c *datasetConfig) { c.now = now }
}

// WithLogInterval sets the spacing between synthetic log entries.
func WithLogInterval(d time.Duration) DatasetOption {
	return func(c *datasetConfig) {
		if d > 0 {
			c.logInterval = d
		}
	}
}

// WithProcessCount sets how many processes the dataset holds.
func WithProcessCount(n int) DatasetOption {
	return func(c *datasetConfig) {
		if n > 0 {
			c.count = n
		}
	}
}

// NewDataset builds a dataset whose first process started at start. Later
// processes start at fixed intervals after it.
func NewDataset(seed string, start time.Time, opts ...DatasetOption) *Dataset {
	cfg := datasetConfig{now: time.Now, logInterval: defaultLogInterval, count: defaultProcessCount}
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &Dataset{seed: seed, now: cfg.now, logInterval: cfg.logInterval}
	parent := ""
	for i := range cfg.count {
		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed+"/"+strconv.Itoa(i))).String()
		started := start.Add(time.Duration(i) * processSpacing).Truncate(sampleInterval)
		d.processes = append(d.processes, domain.ProcessSummary{
			ProcessID:       id,
			Exe:             executables[i%len(executables)],
			Username:        "sirius",
			Realname:        "Sirius Demo",
			Computer:        fmt.Sprintf("demo-%02d", i%3),
			Distro:          "Linux 6.8",
			CPUBrand:        "Synthetic CPU @ 3.20GHz",
			TSCFrequency:    3_200_000_000,
			StartTime:       started,
			StartTicks:      started.UnixNano() / 10,
			ParentProcessID: parent,
		})
		if i == 0 {
			parent = id
		}
	}
	return d
}

// ProcessIDs returns the ids of every process in start order.
func (d *Dataset) ProcessIDs() []string {
	ids := make([]string, len(d.processes))
	for i, p := range d.processes {
		ids[i] = p.ProcessID
	}
	return ids
}

// ListProcesses implements domain.Backend. Processes that have not started
// yet are hidden; the newest come first.
func (d *Dataset) ListProcesses(ctx context.Context) ([]domain.ProcessSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := d.now()
	var out []domain.ProcessSummary
	for _, p := range d.processes {
		if !p.StartTime.After(now) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.ProcessSummary) int {
		return b.StartTime.Compare(a.StartTime)
	})
	if len(out) > maxProcessList {
		out = out[:maxProcessList]
	}
	return out, nil
}

// ListMetrics implements domain.MetricCatalog.
func (d *Dataset) ListMetrics(ctx context.Context, processID string) ([]domain.MetricInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := d.process("metrics", processID); err != nil {
		return nil, err
	}
	out := make([]domain.MetricInfo, len(signals))
	for i, s := range signals {
		out[i] = s.info
	}
	return out, nil
}

// FetchSamples implements domain.Backend. Raw samples are returned when the
// requested resolution is the sample interval or finer; otherwise the points
// are buckets of the requested width. The covered range ends at the clock.
func (d *Dataset) FetchSamples(ctx context.Context, metric domain.MetricID, w timewindow.Window) (domain.SampleBatch, error) {
	if err := ctx.Err(); err != nil {
		return domain.SampleBatch{}, err
	}
	if !w.Valid() {
		return domain.SampleBatch{}, &domain.BackendError{Op: "samples", Status: 400, Message: fmt.Sprintf("invalid window %s", w)}
	}
	if w.Duration()/max(w.Resolution, sampleInterval) > maxPointsPerRequest {
		return domain.SampleBatch{}, &domain.BackendError{Op: "samples", Status: 400, Message: fmt.Sprintf("window %s holds too many points", w)}
	}
	proc, err := d.process("samples", metric.ProcessID)
	if err != nil {
		return domain.SampleBatch{}, err
	}
	sig, ok := findSignal(metric.Name)
	if !ok {
		return domain.SampleBatch{}, &domain.BackendError{Op: "samples", Status: 404, Message: "unknown metric " + metric.Name, Err: domain.ErrNotFound}
	}

	end := w.End
	if now := d.now(); now.Before(end) {
		end = now
	}
	if !w.Start.Before(end) {
		return domain.SampleBatch{}, nil
	}
	covered := timewindow.Window{Start: w.Start, End: end, Resolution: w.Resolution}
	from := w.Start
	if from.Before(proc.StartTime) {
		from = proc.StartTime
	}

	var points []domain.DataPoint
	if w.Resolution <= sampleInterval {
		for ts := ceilTo(from, sampleInterval); ts.Before(end); ts = ts.Add(sampleInterval) {
			points = append(points, domain.RawPoint(ts, d.value(sig, metric.ProcessID, ts)))
		}
		return domain.SampleBatch{Points: points, Covered: covered}, nil
	}

	for b := timewindow.AlignDown(w.Start, w.Resolution); b.Before(end); b = b.Add(w.Resolution) {
		lo, hi := maxTime(b, from), minTime(b.Add(w.Resolution), end)
		if !lo.Before(hi) {
			continue
		}
		if p, ok := d.bucket(sig, metric.ProcessID, lo, hi); ok {
			points = append(points, p)
		}
	}
	return domain.SampleBatch{Points: points, Covered: covered}, nil
}

// bucket aggregates the samples in [lo, hi) from at most maxSubsamples of
// them. Count reports every sample the bucket stands for.
func (d *Dataset) bucket(sig signal, processID string, lo, hi time.Time) (domain.DataPoint, bool) {
	first := ceilTo(lo, sampleInterval)
	if !first.Before(hi) {
		return domain.DataPoint{}, false
	}
	count := int64((hi.Sub(first)-1)/sampleInterval) + 1
	step := max(sampleInterval, (hi.Sub(first)/maxSubsamples).Truncate(sampleInterval))

	minV, maxV, sum, n := math.Inf(1), math.Inf(-1), 0.0, 0
	for ts := first; ts.Before(hi); ts = ts.Add(step) {
		v := d.value(sig, processID, ts)
		minV, maxV = math.Min(minV, v), math.Max(maxV, v)
		sum += v
		n++
	}
	return domain.BucketPoint(lo, hi, minV, maxV, sum/float64(n), count), true
}

func (d *Dataset) value(sig signal, processID string, ts time.Time) float64 {
	phase := unit(d.seed, processID, sig.info.Name) * 2 * math.Pi
	angle := 2*math.Pi*float64(ts.UnixNano())/float64(sig.period) + phase
	noise := (unit(d.seed, processID, sig.info.Name, strconv.FormatInt(ts.Unix(), 10))*2 - 1) * sig.noise
	return math.Max(sig.floor, sig.base+sig.amplitude*math.Sin(angle)+noise)
}

// FetchLogPage implements domain.Backend. Entry n (counting from 1) was
// recorded n-1 log intervals after the process started; its cursor is n.
func (d *Dataset) FetchLogPage(ctx context.Context, processID string, after *domain.Cursor, limit int) (domain.LogPage, error) {
	if err := ctx.Err(); err != nil {
		return domain.LogPage{}, err
	}
	proc, err := d.process("log_page", processID)
	if err != nil {
		return domain.LogPage{}, err
	}
	if limit <= 0 || limit > maxLogPage {
		limit = maxLogPage
	}

	var available uint64
	if now := d.now(); !now.Before(proc.StartTime) {
		available = uint64(now.Sub(proc.StartTime)/d.logInterval) + 1
	}
	first := uint64(1)
	if after != nil {
		first = uint64(*after) + 1
	}
	last := min(first+uint64(limit)-1, available)

	page := domain.LogPage{Entries: []domain.LogEntry{}}
	for n := first; n <= last; n++ {
		page.Entries = append(page.Entries, d.entry(proc, domain.Cursor(n)))
	}
	if last < available {
		next := domain.Cursor(last)
		page.NextCursor = &next
	}
	return page, nil
}

func (d *Dataset) entry(proc domain.ProcessSummary, c domain.Cursor) domain.LogEntry {
	ts := proc.StartTime.Add(time.Duration(c-1) * d.logInterval)
	roll := unit(d.seed, proc.ProcessID, "log", strconv.FormatUint(uint64(c), 10))
	target := logTargets[int(roll*1000)%len(logTargets)]

	e := domain.LogEntry{
		Time:      ts,
		Cursor:    c,
		ProcessID: proc.ProcessID,
		Target:    target,
		Fields:    map[string]string{"seq": strconv.FormatUint(uint64(c), 10)},
	}
	switch {
	case roll < 0.01:
		e.Level = domain.LevelError
		e.Message = fmt.Sprintf("%s: operation failed after %d attempts", target, 1+int(roll*1000)%5)
	case roll < 0.06:
		e.Level = domain.LevelWarn
		e.Message = fmt.Sprintf("%s: slow operation took %dms", target, 100+int(roll*10000)%900)
	case roll < 0.30:
		e.Level = domain.LevelDebug
		e.Message = fmt.Sprintf("%s: tick %d", target, c)
	default:
		e.Level = domain.LevelInfo
		e.Message = fmt.Sprintf("%s: handled request in %dms", target, 1+int(roll*1000)%50)
	}
	return e
}

func (d *Dataset) process(op, id string) (domain.ProcessSummary, error) {
	for _, p := range d.processes {
		if p.ProcessID == id {
			return p, nil
		}
	}
	return domain.ProcessSummary{}, &domain.BackendError{Op: op, Status: 404, Message: "unknown process " + id, Err: domain.ErrNotFound}
}

func findSignal(name string) (signal, bool) {
	for _, s := range signals {
		if s.info.Name == name {
			return s, true
		}
	}
	return signal{}, false
}

// unit hashes parts to a float in [0, 1).
func unit(parts ...string) float64 {
	h := xxhash.New()
	for _, p := range parts {
		_, _ = h.WriteString(p)
		_, _ = h.WriteString("\x00")
	}
	return float64(h.Sum64()>>11) / (1 << 53)
}

func ceilTo(t time.Time, d time.Duration) time.Time {
	if tr := t.Truncate(d); tr.Before(t) {
		return tr.Add(d)
	}
	return t
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
