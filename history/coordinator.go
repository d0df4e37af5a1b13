package history

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/theoremus-urban-solutions/fleet-replay/config"
	"github.com/theoremus-urban-solutions/fleet-replay/store"
	"github.com/theoremus-urban-solutions/fleet-replay/telemetry"
)

// Options modify a history request.
type Options struct {
	// ForceFetch bypasses the coverage check and always goes to the network.
	ForceFetch bool
}

// Result is what a history request resolves to. Raw is sorted descending by
// timestamp and capped at the configured maximum record count.
type Result struct {
	Raw        []telemetry.Sample    `json:"raw"`
	FuelEvents []telemetry.FuelEvent `json:"fuelEvents"`
}

// Coordinator decides cache versus network per request and owns the
// request-coalescing state. All memoization lives on the instance; there
// are no package-level caches.
type Coordinator struct {
	store  store.Store
	client *Client

	maxChunks          int
	chunkSpanMS        int64
	previewThresholdMS int64
	maxRecords         int

	mu       sync.Mutex
	inflight map[string]*historyCall

	fuelMu       sync.Mutex
	fuelResults  map[string][]telemetry.FuelEvent
	fuelInflight map[string]*fuelCall
}

type historyCall struct {
	done    chan struct{}
	samples []telemetry.Sample
}

// NewCoordinator wires a coordinator over a store and a remote client.
func NewCoordinator(st store.Store, client *Client, cfg config.AppConfig) *Coordinator {
	c := &Coordinator{
		store:              st,
		client:             client,
		maxChunks:          cfg.Fetch.MaxChunks,
		chunkSpanMS:        cfg.Fetch.ChunkSpanMS,
		previewThresholdMS: cfg.Fetch.PreviewThresholdMS,
		maxRecords:         cfg.Cache.MaxRecords,
		inflight:           map[string]*historyCall{},
		fuelResults:        map[string][]telemetry.FuelEvent{},
		fuelInflight:       map[string]*fuelCall{},
	}
	if c.maxChunks <= 0 {
		c.maxChunks = 8
	}
	if c.chunkSpanMS <= 0 {
		c.chunkSpanMS = 6 * 60 * 60 * 1000
	}
	if c.maxRecords <= 0 {
		c.maxRecords = 10000
	}
	return c
}

// GetHistory resolves samples and fuel events for a device window.
// Invalid windows resolve to an empty result, not an error: absence of data
// is a normal state for the dashboard.
func (c *Coordinator) GetHistory(ctx context.Context, deviceID string, from, to int64, opts Options) (Result, error) {
	from = telemetry.NormalizeEpochMS(from)
	to = telemetry.NormalizeEpochMS(to)
	if deviceID == "" || from <= 0 || to <= 0 || from >= to {
		return Result{}, nil
	}

	fuelCh := make(chan []telemetry.FuelEvent, 1)
	go func() {
		fuelCh <- c.GetFuelEvents(ctx, deviceID, from, to)
	}()

	samples := c.samplesForWindow(ctx, deviceID, from, to, opts.ForceFetch)
	return Result{Raw: samples, FuelEvents: <-fuelCh}, nil
}

// samplesForWindow coalesces concurrent identical requests into a single
// execution. This is a hard invariant: duplicate concurrent fetches would
// double-write the cache.
func (c *Coordinator) samplesForWindow(ctx context.Context, deviceID string, from, to int64, force bool) []telemetry.Sample {
	key := requestKey(deviceID, from, to)

	c.mu.Lock()
	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.samples
		case <-ctx.Done():
			return nil
		}
	}
	call := &historyCall{done: make(chan struct{})}
	c.inflight[key] = call
	c.mu.Unlock()

	call.samples = c.fetchWindow(ctx, deviceID, from, to, force)

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
	close(call.done)
	return call.samples
}

func (c *Coordinator) fetchWindow(ctx context.Context, deviceID string, from, to int64, force bool) []telemetry.Sample {
	cached, err := c.store.Get(ctx, deviceID, from, to, store.GetOptions{Direction: store.Descending})
	if err != nil {
		log.Printf("history: cache read failed for %s: %v", deviceID, err)
		cached = nil
	}
	cached = dropUnstamped(cached)

	if !force && store.Covers(cached, from, to) {
		return cached
	}

	chunks := c.chunkCount(ctx, deviceID, from, to)
	raw := c.fetchChunks(ctx, deviceID, from, to, chunks)
	if len(raw) == 0 {
		// Stale data beats no data.
		if len(cached) > 0 {
			return cached
		}
		return nil
	}

	samples, kept := sanitizeSortCap(raw, c.maxRecords)

	// Write-through is fire-and-forget: the caller's result does not block
	// on persistence.
	go c.persist(deviceID, kept)

	return samples
}

// chunkCount sizes the parallel fetch from the window span; wide windows may
// be re-sized by the preview endpoint. Preview errors are ignored.
func (c *Coordinator) chunkCount(ctx context.Context, deviceID string, from, to int64) int {
	span := to - from
	n := int((span + c.chunkSpanMS - 1) / c.chunkSpanMS)
	if n < 1 {
		n = 1
	}
	if n > c.maxChunks {
		n = c.maxChunks
	}
	if c.previewThresholdMS > 0 && span > c.previewThresholdMS {
		if pc, err := c.client.FetchPreview(ctx, deviceID, from, to); err == nil && pc > 0 {
			n = pc
			if n > c.maxChunks {
				n = c.maxChunks
			}
		}
	}
	return n
}

// fetchChunks splits [from,to] into n contiguous windows and fetches them in
// parallel. A failed chunk contributes nothing and never aborts its siblings.
func (c *Coordinator) fetchChunks(ctx context.Context, deviceID string, from, to int64, n int) []telemetry.RawSample {
	span := to - from
	results := make([][]telemetry.RawSample, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		chunkFrom := from + span*int64(i)/int64(n)
		chunkTo := from + span*int64(i+1)/int64(n)
		wg.Add(1)
		go func(i int, f, t int64) {
			defer wg.Done()
			raw, err := c.client.FetchHistory(ctx, deviceID, f, t)
			if err != nil {
				log.Printf("history: chunk %d/%d failed for %s: %v", i+1, n, deviceID, err)
				return
			}
			results[i] = raw
		}(i, chunkFrom, chunkTo)
	}
	wg.Wait()

	var merged []telemetry.RawSample
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged
}

// sanitizeSortCap produces the caller-facing sample set (descending,
// deduplicated by timestamp, capped at max) and the raw records backing it,
// for write-through. Adjacent chunk windows share their boundary instant,
// so a merged batch can carry the same sample twice.
func sanitizeSortCap(raw []telemetry.RawSample, max int) ([]telemetry.Sample, []telemetry.RawSample) {
	type pair struct {
		sample telemetry.Sample
		raw    telemetry.RawSample
	}
	pairs := make([]pair, 0, len(raw))
	for _, r := range raw {
		if s, ok := telemetry.Sanitize(r); ok {
			pairs = append(pairs, pair{sample: s, raw: r})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].sample.Timestamp > pairs[j].sample.Timestamp })
	deduped := pairs[:0]
	for _, p := range pairs {
		if len(deduped) > 0 && deduped[len(deduped)-1].sample.Timestamp == p.sample.Timestamp {
			continue
		}
		deduped = append(deduped, p)
	}
	pairs = deduped
	if max > 0 && len(pairs) > max {
		pairs = pairs[:max]
	}
	samples := make([]telemetry.Sample, len(pairs))
	kept := make([]telemetry.RawSample, len(pairs))
	for i, p := range pairs {
		samples[i] = p.sample
		kept[i] = p.raw
	}
	return samples, kept
}

func (c *Coordinator) persist(deviceID string, records []telemetry.RawSample) {
	ctx := context.Background()
	if err := c.store.EnsureDevice(ctx, deviceID); err != nil {
		log.Printf("history: ensure device %s failed: %v", deviceID, err)
		return
	}
	res, err := c.store.AddMany(ctx, deviceID, records, store.AddOptions{OnDuplicate: store.UpdateOnDuplicate})
	if err != nil {
		log.Printf("history: write-through failed for %s: %v", deviceID, err)
		return
	}
	if len(res.Errors) > 0 {
		log.Printf("history: write-through for %s rejected %d records", deviceID, len(res.Errors))
	}
}

func dropUnstamped(samples []telemetry.Sample) []telemetry.Sample {
	out := samples[:0]
	for _, s := range samples {
		if s.Timestamp > 0 {
			out = append(out, s)
		}
	}
	return out
}

func requestKey(deviceID string, from, to int64) string {
	return fmt.Sprintf("%s|%d|%d", deviceID, from, to)
}

// Stats reports coalescing/memoization occupancy for the health endpoint.
type Stats struct {
	InflightHistory int `json:"inflight_history"`
	FuelMemoEntries int `json:"fuel_memo_entries"`
}

func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	inflight := len(c.inflight)
	c.mu.Unlock()
	c.fuelMu.Lock()
	memo := len(c.fuelResults)
	c.fuelMu.Unlock()
	return Stats{InflightHistory: inflight, FuelMemoEntries: memo}
}
