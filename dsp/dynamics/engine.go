package dynamics

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-dynamics/dsp/core"
	"github.com/cwbudde/algo-dynamics/dsp/envelope"
	"github.com/cwbudde/algo-dynamics/dsp/filter/crossover"
	"github.com/cwbudde/algo-dynamics/dsp/param"
)

const (
	maxChannels = 16
	maxBlockCap = 1 << 16

	// retuneThresholdHz is the smallest crossover movement worth a
	// coefficient recomputation. Smaller steps are deferred until the
	// smoothed frequency has drifted far enough.
	retuneThresholdHz = 0.5
)

// EngineConfig configures an [Engine].
type EngineConfig struct {
	// Channels is the number of audio channels processed per block.
	Channels int
	// CrossoverFreqs are the initial crossover frequencies in Hz, strictly
	// ascending. len(CrossoverFreqs)+1 bands are created; empty means a
	// single full-range band.
	CrossoverFreqs []float64
	// CrossoverOrder is the Linkwitz-Riley order (even, default 4).
	CrossoverOrder int
	// DetectorMode selects peak or RMS detection for all bands.
	DetectorMode envelope.Mode
}

// Metering is a snapshot of the engine's meters.
type Metering struct {
	// BandReductionDB holds the decaying per-band gain reduction in dB,
	// ordered low to high. Length equals the active band count.
	BandReductionDB []float64
	// OutputPeak is the decaying output peak across all channels (linear).
	OutputPeak float64
	// Faults counts blocks in which a non-finite sample forced a channel
	// into dry passthrough.
	Faults uint64
}

// Engine is the block processor tying the dynamics core to a lock-free
// control surface. It owns a [param.Registry] of typed parameters, smooths
// continuous changes, stages structural changes (band count) for pickup at
// the next block boundary, and guards the output against non-finite samples.
//
// Threading contract: Process runs on exactly one goroutine (the audio
// thread). SetParameter may be called concurrently from any goroutine.
// Prepare and Reset must not overlap Process.
//
// Process performs no allocation for blocks within the prepared maximum
// size.
type Engine struct {
	channels int
	order    int
	mode     envelope.Mode

	params  *param.Registry
	handles engineHandles

	topo   atomic.Pointer[topology]
	staged atomic.Pointer[topology]

	sampleRate float64
	maxBlock   int
	prepared   bool

	peak     *PeakMeter
	grMeters [maxBands]*PeakMeter
	faults   atomic.Uint64
}

// engineHandles caches the resolved atomic target cells so the audio thread
// never touches the registry map.
type engineHandles struct {
	threshold [maxBands]*param.Value
	ratio     [maxBands]*param.Value
	knee      [maxBands]*param.Value
	attack    [maxBands]*param.Value
	release   [maxBands]*param.Value
	makeup    [maxBands]*param.Value
	bypass    [maxBands]*param.Value
	crossover [maxBands - 1]*param.Value
	mix       *param.Value
	bandCount *param.Value
}

// topology is the per-configuration processing state: one crossover network
// and band chain per channel, plus the smoothers and scratch buffers shared
// across channels. A topology is immutable in shape after construction; band
// count changes build a new topology off the audio thread and swap it in at
// a block boundary.
type topology struct {
	bands int

	xovers []*crossover.MultiBand // per channel, nil when bands == 1
	procs  [][]*Band              // [channel][band]

	curFreqs []float64 // active crossover frequencies

	split   [][]float64 // [band][maxBlock]
	dry     []float64
	mixBuf  []float64
	blockGR []float64 // per-band max reduction of the current block

	thresholdSm []*param.Smoother
	ratioInvSm  []*param.Smoother // smooths 1/ratio so +Inf targets stay finite
	kneeSm      []*param.Smoother
	makeupSm    []*param.Smoother
	freqSm      []*param.Smoother
	mixSm       *param.Smoother
}

// NewEngine creates an engine and registers the full parameter set: per-band
// threshold, ratio, knee, attack, release, makeup gain and bypass; per-split
// crossover frequency; global mix and band count. Call Prepare before
// processing.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Channels <= 0 || cfg.Channels > maxChannels {
		return nil, fmt.Errorf("engine: channels must be in [1, %d], got %d", maxChannels, cfg.Channels)
	}

	if cfg.CrossoverOrder == 0 {
		cfg.CrossoverOrder = 4
	}

	if cfg.CrossoverOrder < minCrossoverOrder || cfg.CrossoverOrder > maxCrossoverOrder || cfg.CrossoverOrder%2 != 0 {
		return nil, fmt.Errorf("engine: crossover order must be even and in [%d, %d], got %d",
			minCrossoverOrder, maxCrossoverOrder, cfg.CrossoverOrder)
	}

	bands := len(cfg.CrossoverFreqs) + 1
	if bands > maxBands {
		return nil, fmt.Errorf("engine: at most %d bands supported, got %d", maxBands, bands)
	}

	if cfg.DetectorMode != envelope.ModePeak && cfg.DetectorMode != envelope.ModeRMS {
		return nil, fmt.Errorf("engine: unknown detector mode %d", int(cfg.DetectorMode))
	}

	e := &Engine{
		channels: cfg.Channels,
		order:    cfg.CrossoverOrder,
		mode:     cfg.DetectorMode,
		params:   param.NewRegistry(),
	}

	if err := e.registerParams(bands, cfg.CrossoverFreqs); err != nil {
		return nil, err
	}

	return e, nil
}

// Params returns the engine's parameter registry for descriptor inspection.
func (e *Engine) Params() *param.Registry { return e.params }

// SetParameter validates and stores a parameter target. Continuous
// parameters are picked up and smoothed by the next processed block.
// The structural band-count parameter stages a rebuilt topology that the
// audio thread swaps in at the next block boundary; filter and detector
// state of surviving configuration does not carry over.
//
// Rejected values leave the previous target in effect.
func (e *Engine) SetParameter(id param.ID, v float64) error {
	if err := e.params.Set(id, v); err != nil {
		return err
	}

	if id.Kind().Class() == param.ClassStructural {
		return e.stageBandCount(int(v))
	}

	return nil
}

// Parameter returns the current target value for id.
func (e *Engine) Parameter(id param.ID) (float64, error) {
	return e.params.Get(id)
}

// Prepare allocates processing state for the given sample rate and maximum
// block size. It must be called before Process and after any sample rate
// change; it discards all DSP state.
func (e *Engine) Prepare(sampleRate float64, maxBlock int) error {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return fmt.Errorf("engine: sample rate must be positive and finite, got %v", sampleRate)
	}

	if maxBlock <= 0 || maxBlock > maxBlockCap {
		return fmt.Errorf("engine: max block size must be in [1, %d], got %d", maxBlockCap, maxBlock)
	}

	e.sampleRate = sampleRate
	e.maxBlock = maxBlock

	bands := int(e.handles.bandCount.Load())

	t, err := e.buildTopology(bands)
	if err != nil {
		return err
	}

	e.topo.Store(t)
	e.staged.Store(nil)

	e.peak = NewPeakMeter(sampleRate)
	for i := range e.grMeters {
		e.grMeters[i] = NewPeakMeter(sampleRate)
	}

	e.faults.Store(0)
	e.prepared = true

	return nil
}

// Process runs one block in place. buffers holds one slice per channel, all
// of equal length, at most the prepared maximum block size.
//
// If processing produces a non-finite sample on a channel, that channel's
// block is replaced with the unprocessed input, the channel's DSP state is
// reset, and the fault counter is incremented; the engine keeps running.
func (e *Engine) Process(buffers [][]float64) error {
	if !e.prepared {
		return fmt.Errorf("engine: Prepare must be called before Process")
	}

	if len(buffers) != e.channels {
		return fmt.Errorf("engine: expected %d channel buffers, got %d", e.channels, len(buffers))
	}

	n := len(buffers[0])
	if n == 0 {
		return nil
	}

	if n > e.maxBlock {
		return fmt.Errorf("engine: block of %d samples exceeds prepared maximum %d", n, e.maxBlock)
	}

	for ch := 1; ch < e.channels; ch++ {
		if len(buffers[ch]) != n {
			return fmt.Errorf("engine: channel %d has %d samples, channel 0 has %d", ch, len(buffers[ch]), n)
		}
	}

	if staged := e.staged.Swap(nil); staged != nil {
		e.topo.Store(staged)
	}

	t := e.topo.Load()

	e.applyParams(t, n)

	for i := range t.blockGR {
		t.blockGR[i] = 0
	}

	var blockPeak float64

	for ch, buf := range buffers {
		peak := e.processChannel(t, ch, buf[:n])
		if peak > blockPeak {
			blockPeak = peak
		}
	}

	e.peak.Update(blockPeak, n)

	for b := 0; b < t.bands; b++ {
		e.grMeters[b].Update(t.blockGR[b], n)
	}

	return nil
}

// Reset clears all DSP state, snaps smoothers to their current targets, and
// zeroes the meters and fault counter. Parameters are kept.
func (e *Engine) Reset() {
	t := e.topo.Load()
	if t == nil {
		return
	}

	for ch := 0; ch < e.channels; ch++ {
		e.resetChannel(t, ch)
	}

	for b := 0; b < t.bands; b++ {
		t.thresholdSm[b].Snap(e.handles.threshold[b].Load())
		t.ratioInvSm[b].Snap(1 / e.handles.ratio[b].Load())
		t.kneeSm[b].Snap(e.handles.knee[b].Load())
		t.makeupSm[b].Snap(e.handles.makeup[b].Load())
	}

	for i := range t.freqSm {
		t.freqSm[i].Snap(e.handles.crossover[i].Load())
	}

	t.mixSm.Snap(e.handles.mix.Load())

	e.peak.Reset()
	for _, m := range e.grMeters {
		if m != nil {
			m.Reset()
		}
	}

	e.faults.Store(0)
}

// Metering returns a snapshot of the engine's meters. Safe to call from any
// goroutine.
func (e *Engine) Metering() Metering {
	t := e.topo.Load()
	if t == nil || !e.prepared {
		return Metering{}
	}

	gr := make([]float64, t.bands)
	for b := range gr {
		gr[b] = e.grMeters[b].Read()
	}

	return Metering{
		BandReductionDB: gr,
		OutputPeak:      e.peak.Read(),
		Faults:          e.faults.Load(),
	}
}

// NumBands returns the active band count.
func (e *Engine) NumBands() int {
	if t := e.staged.Load(); t != nil {
		return t.bands
	}

	if t := e.topo.Load(); t != nil {
		return t.bands
	}

	return int(e.handles.bandCount.Load())
}

func (e *Engine) registerParams(bands int, freqs []float64) error {
	type spec struct {
		kind     param.Kind
		name     string
		unit     string
		min      float64
		max      float64
		def      float64
		smoothMs float64
	}

	perBand := []spec{
		{param.KindThreshold, "Threshold", "dB", -80, 0, -20, 20},
		{param.KindRatio, "Ratio", ":1", 1, math.Inf(1), 4, 20},
		{param.KindKnee, "Knee", "dB", minKneeDB, maxKneeDB, 6, 20},
		{param.KindAttack, "Attack", "ms", minAttackMs, maxAttackMs, 10, 0},
		{param.KindRelease, "Release", "ms", minReleaseMs, maxReleaseMs, 100, 0},
		{param.KindMakeupGain, "Makeup", "dB", -24, 24, 0, 20},
		{param.KindBypass, "Bypass", "", 0, 1, 0, 0},
	}

	store := func(v *param.Value, s spec, idx int) {
		switch s.kind {
		case param.KindThreshold:
			e.handles.threshold[idx] = v
		case param.KindRatio:
			e.handles.ratio[idx] = v
		case param.KindKnee:
			e.handles.knee[idx] = v
		case param.KindAttack:
			e.handles.attack[idx] = v
		case param.KindRelease:
			e.handles.release[idx] = v
		case param.KindMakeupGain:
			e.handles.makeup[idx] = v
		case param.KindBypass:
			e.handles.bypass[idx] = v
		}
	}

	for idx := 0; idx < maxBands; idx++ {
		for _, s := range perBand {
			v, err := e.params.Register(param.Descriptor{
				ID:          param.MakeID(s.kind, idx),
				Name:        fmt.Sprintf("%s %d", s.name, idx+1),
				Unit:        s.unit,
				Min:         s.min,
				Max:         s.max,
				Default:     s.def,
				SmoothingMs: s.smoothMs,
			})
			if err != nil {
				return err
			}

			store(v, s, idx)
		}
	}

	defaults := defaultCrossoverFreqs(maxBands)

	for i := 0; i < maxBands-1; i++ {
		def := defaults[i]
		if i < len(freqs) {
			def = freqs[i]
		}

		v, err := e.params.Register(param.Descriptor{
			ID:          param.MakeID(param.KindCrossoverFreq, i),
			Name:        fmt.Sprintf("Crossover %d", i+1),
			Unit:        "Hz",
			Min:         crossover.MinFrequency,
			Max:         20000,
			Default:     def,
			SmoothingMs: 50,
		})
		if err != nil {
			return err
		}

		e.handles.crossover[i] = v
	}

	mix, err := e.params.Register(param.Descriptor{
		ID:          param.MakeID(param.KindMix, 0),
		Name:        "Mix",
		Unit:        "",
		Min:         0,
		Max:         1,
		Default:     1,
		SmoothingMs: 10,
	})
	if err != nil {
		return err
	}

	e.handles.mix = mix

	bandCount, err := e.params.Register(param.Descriptor{
		ID:      param.MakeID(param.KindBandCount, 0),
		Name:    "Bands",
		Unit:    "",
		Min:     1,
		Max:     maxBands,
		Default: float64(bands),
	})
	if err != nil {
		return err
	}

	e.handles.bandCount = bandCount

	return nil
}

func (e *Engine) stageBandCount(bands int) error {
	if !e.prepared {
		return nil
	}

	if t := e.topo.Load(); t != nil && t.bands == bands && e.staged.Load() == nil {
		return nil
	}

	t, err := e.buildTopology(bands)
	if err != nil {
		return err
	}

	e.staged.Store(t)

	return nil
}

// buildTopology allocates the processing state for the given band count.
// Runs off the audio thread; the result is handed over atomically.
func (e *Engine) buildTopology(bands int) (*topology, error) {
	if bands < 1 || bands > maxBands {
		return nil, fmt.Errorf("engine: band count must be in [1, %d], got %d", maxBands, bands)
	}

	t := &topology{
		bands:   bands,
		procs:   make([][]*Band, e.channels),
		split:   make([][]float64, bands),
		dry:     make([]float64, e.maxBlock),
		mixBuf:  make([]float64, e.maxBlock),
		blockGR: make([]float64, bands),
	}

	for b := range t.split {
		t.split[b] = make([]float64, e.maxBlock)
	}

	if bands > 1 {
		t.curFreqs = e.crossoverFreqsFor(bands)
		t.xovers = make([]*crossover.MultiBand, e.channels)

		for ch := range t.xovers {
			xo, err := crossover.NewMultiBand(t.curFreqs, e.order, e.sampleRate)
			if err != nil {
				return nil, fmt.Errorf("engine: %w", err)
			}

			t.xovers[ch] = xo
		}
	}

	for ch := range t.procs {
		t.procs[ch] = make([]*Band, bands)

		for b := range t.procs[ch] {
			band, err := NewBand(e.mode, e.sampleRate)
			if err != nil {
				return nil, fmt.Errorf("engine: %w", err)
			}

			t.procs[ch][b] = band
		}
	}

	newSm := func(ms, initial float64) (*param.Smoother, error) {
		sm, err := param.NewSmoother(param.SmoothingExponential, ms, e.sampleRate)
		if err != nil {
			return nil, err
		}

		sm.Snap(initial)

		return sm, nil
	}

	t.thresholdSm = make([]*param.Smoother, bands)
	t.ratioInvSm = make([]*param.Smoother, bands)
	t.kneeSm = make([]*param.Smoother, bands)
	t.makeupSm = make([]*param.Smoother, bands)

	for b := 0; b < bands; b++ {
		var err error

		if t.thresholdSm[b], err = newSm(20, e.handles.threshold[b].Load()); err != nil {
			return nil, err
		}

		if t.ratioInvSm[b], err = newSm(20, 1/e.handles.ratio[b].Load()); err != nil {
			return nil, err
		}

		if t.kneeSm[b], err = newSm(20, e.handles.knee[b].Load()); err != nil {
			return nil, err
		}

		if t.makeupSm[b], err = newSm(20, e.handles.makeup[b].Load()); err != nil {
			return nil, err
		}
	}

	t.freqSm = make([]*param.Smoother, bands-1)
	for i := range t.freqSm {
		var err error
		if t.freqSm[i], err = newSm(50, t.curFreqs[i]); err != nil {
			return nil, err
		}
	}

	var err error
	if t.mixSm, err = newSm(10, e.handles.mix.Load()); err != nil {
		return nil, err
	}

	// Seed band parameters from the current targets.
	for ch := range t.procs {
		for b, band := range t.procs[ch] {
			_ = band.SetThreshold(e.handles.threshold[b].Load())
			_ = band.SetRatio(e.handles.ratio[b].Load())
			_ = band.SetKnee(e.handles.knee[b].Load())
			_ = band.SetAttack(e.handles.attack[b].Load())
			_ = band.SetRelease(e.handles.release[b].Load())
			_ = band.SetMakeupGain(e.handles.makeup[b].Load())
			band.SetBypassed(e.handles.bypass[b].Load() >= 0.5)
		}
	}

	return t, nil
}

// crossoverFreqsFor reads the per-split frequency targets for a band count,
// falling back to a geometric layout when the stored targets would not form
// a strictly ascending set within range.
func (e *Engine) crossoverFreqsFor(bands int) []float64 {
	freqs := make([]float64, bands-1)
	for i := range freqs {
		freqs[i] = e.handles.crossover[i].Load()
	}

	if crossover.ValidateFrequencies(freqs, e.sampleRate) == nil {
		return freqs
	}

	freqs = defaultCrossoverFreqs(bands)
	for i, f := range freqs {
		e.handles.crossover[i].Store(f)
	}

	return freqs
}

// applyParams folds the atomic parameter targets into the topology for one
// block of n samples. Smoothed values advance by the full block; the mix is
// rendered per sample since it scales the output directly.
func (e *Engine) applyParams(t *topology, n int) {
	for b := 0; b < t.bands; b++ {
		t.thresholdSm[b].SetTarget(e.handles.threshold[b].Load())
		thr := t.thresholdSm[b].SkipBlock(n)

		t.ratioInvSm[b].SetTarget(1 / e.handles.ratio[b].Load())
		ratio := 1 / t.ratioInvSm[b].SkipBlock(n)

		t.kneeSm[b].SetTarget(e.handles.knee[b].Load())
		knee := t.kneeSm[b].SkipBlock(n)

		t.makeupSm[b].SetTarget(e.handles.makeup[b].Load())
		makeup := t.makeupSm[b].SkipBlock(n)

		attack := e.handles.attack[b].Load()
		release := e.handles.release[b].Load()
		bypassed := e.handles.bypass[b].Load() >= 0.5

		for ch := range t.procs {
			band := t.procs[ch][b]

			if band.Threshold() != thr {
				_ = band.SetThreshold(thr)
			}

			if band.Ratio() != ratio {
				_ = band.SetRatio(ratio)
			}

			if band.Knee() != knee {
				_ = band.SetKnee(knee)
			}

			band.SetBypassed(bypassed)

			if band.MakeupGain() != makeup {
				_ = band.SetMakeupGain(makeup)
			}

			if band.Attack() != attack {
				_ = band.SetAttack(attack)
			}

			if band.Release() != release {
				_ = band.SetRelease(release)
			}
		}
	}

	for i := range t.freqSm {
		t.freqSm[i].SetTarget(e.handles.crossover[i].Load())
		f := t.freqSm[i].SkipBlock(n)

		if math.Abs(f-t.curFreqs[i]) <= retuneThresholdHz {
			continue
		}

		ok := true

		for _, xo := range t.xovers {
			if err := xo.SetFrequency(i, f); err != nil {
				ok = false
				break
			}
		}

		if ok {
			t.curFreqs[i] = f
		}
	}

	t.mixSm.SetTarget(e.handles.mix.Load())
	for i := 0; i < n; i++ {
		t.mixBuf[i] = t.mixSm.Next()
	}
}

// processChannel runs one channel's block in place and returns its absolute
// output peak.
func (e *Engine) processChannel(t *topology, ch int, buf []float64) float64 {
	n := len(buf)
	dry := t.dry[:n]
	copy(dry, buf)

	if t.bands == 1 {
		band := t.procs[ch][0]

		for i, x := range buf {
			buf[i] = band.ProcessSample(x)

			if r := band.ReductionDB(); r > t.blockGR[0] {
				t.blockGR[0] = r
			}
		}
	} else {
		split := t.split
		for b := range split {
			split[b] = split[b][:n]
		}

		t.xovers[ch].ProcessBlockInto(buf, split)

		for b, band := range t.procs[ch] {
			sb := split[b]

			for i, x := range sb {
				sb[i] = band.ProcessSample(x)

				if r := band.ReductionDB(); r > t.blockGR[b] {
					t.blockGR[b] = r
				}
			}
		}

		for i := range buf {
			var sum float64
			for b := range split {
				sum += split[b][i]
			}

			buf[i] = sum
		}
	}

	var peak float64

	healthy := true

	for i, wet := range buf {
		mix := t.mixBuf[i]
		v := wet*mix + dry[i]*(1-mix)

		if !core.IsFinite(v) {
			healthy = false
			break
		}

		buf[i] = v

		if v < 0 {
			v = -v
		}

		if v > peak {
			peak = v
		}
	}

	if !healthy {
		copy(buf, dry)
		e.resetChannel(t, ch)
		e.faults.Add(1)

		peak = 0

		for _, v := range buf {
			if v < 0 {
				v = -v
			}

			if v > peak {
				peak = v
			}
		}
	}

	return peak
}

func (e *Engine) resetChannel(t *topology, ch int) {
	if t.xovers != nil {
		t.xovers[ch].Reset()
	}

	for _, band := range t.procs[ch] {
		band.Reset()
	}
}

// defaultCrossoverFreqs lays out bands-1 split frequencies geometrically
// between 100 Hz and 8 kHz.
func defaultCrossoverFreqs(bands int) []float64 {
	if bands <= 1 {
		return nil
	}

	const lo, hi = 100.0, 8000.0

	freqs := make([]float64, bands-1)
	for i := range freqs {
		freqs[i] = lo * math.Pow(hi/lo, float64(i+1)/float64(bands))
	}

	return freqs
}
