// Command dynproc applies single-band or multiband compression to a WAV
// file, processing offline with the same engine a real-time host would use.
package main

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-dynamics/dsp/core"
	"github.com/cwbudde/algo-dynamics/dsp/dynamics"
	"github.com/cwbudde/algo-dynamics/dsp/envelope"
	"github.com/cwbudde/algo-dynamics/dsp/param"
)

type options struct {
	inputFile  string
	outputFile string

	thresholdDB float64
	ratio       float64
	kneeDB      float64
	attackMs    float64
	releaseMs   float64
	makeupDB    float64
	mix         float64

	crossovers []float64
	order      int
	rms        bool

	blockSize int
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "dynproc",
		Short:         "Apply single-band or multiband compression to a WAV file",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	rootCmd.Flags().StringVarP(&opts.inputFile, "input", "i", "", "input WAV file (required)")
	rootCmd.Flags().StringVarP(&opts.outputFile, "output", "o", "", "output WAV file (required)")

	rootCmd.Flags().Float64VarP(&opts.thresholdDB, "threshold", "t", -20, "compression threshold in dB")
	rootCmd.Flags().Float64VarP(&opts.ratio, "ratio", "r", 4, "compression ratio (0 = limiting)")
	rootCmd.Flags().Float64VarP(&opts.kneeDB, "knee", "k", 6, "soft-knee width in dB")
	rootCmd.Flags().Float64VarP(&opts.attackMs, "attack", "a", 10, "attack time in ms")
	rootCmd.Flags().Float64Var(&opts.releaseMs, "release", 100, "release time in ms")
	rootCmd.Flags().Float64VarP(&opts.makeupDB, "makeup", "m", 0, "makeup gain in dB")
	rootCmd.Flags().Float64Var(&opts.mix, "mix", 1, "dry/wet mix in [0, 1]")

	rootCmd.Flags().Float64SliceVarP(&opts.crossovers, "crossover", "x", nil,
		"crossover frequencies in Hz, ascending (repeat or comma-separate; empty = single band)")
	rootCmd.Flags().IntVar(&opts.order, "order", 4, "Linkwitz-Riley crossover order (even)")
	rootCmd.Flags().BoolVar(&opts.rms, "rms", false, "use RMS detection instead of peak")

	rootCmd.Flags().IntVarP(&opts.blockSize, "block", "b", 512, "processing block size in samples")

	_ = rootCmd.MarkFlagRequired("input")
	_ = rootCmd.MarkFlagRequired("output")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dynproc: %v\n", err)
		os.Exit(1)
	}
}

func run(opts *options) error {
	channels, sampleRate, bitDepth, samples, err := readWAV(opts.inputFile)
	if err != nil {
		return err
	}

	engine, err := buildEngine(opts, channels)
	if err != nil {
		return err
	}

	if err := engine.Prepare(float64(sampleRate), opts.blockSize); err != nil {
		return err
	}

	if err := processBuffers(engine, samples, opts.blockSize); err != nil {
		return err
	}

	if err := writeWAV(opts.outputFile, channels, sampleRate, bitDepth, samples); err != nil {
		return err
	}

	printMetering(engine)

	return nil
}

func buildEngine(opts *options, channels int) (*dynamics.Engine, error) {
	mode := envelope.ModePeak
	if opts.rms {
		mode = envelope.ModeRMS
	}

	engine, err := dynamics.NewEngine(dynamics.EngineConfig{
		Channels:       channels,
		CrossoverFreqs: opts.crossovers,
		CrossoverOrder: opts.order,
		DetectorMode:   mode,
	})
	if err != nil {
		return nil, err
	}

	ratio := opts.ratio
	if ratio == 0 {
		ratio = math.Inf(1)
	}

	for band := 0; band < engine.NumBands(); band++ {
		settings := map[param.Kind]float64{
			param.KindThreshold:  opts.thresholdDB,
			param.KindRatio:      ratio,
			param.KindKnee:       opts.kneeDB,
			param.KindAttack:     opts.attackMs,
			param.KindRelease:    opts.releaseMs,
			param.KindMakeupGain: opts.makeupDB,
		}

		for kind, v := range settings {
			if err := engine.SetParameter(param.MakeID(kind, band), v); err != nil {
				return nil, err
			}
		}
	}

	if err := engine.SetParameter(param.MakeID(param.KindMix, 0), opts.mix); err != nil {
		return nil, err
	}

	return engine, nil
}

func processBuffers(engine *dynamics.Engine, samples [][]float64, blockSize int) error {
	total := len(samples[0])
	block := make([][]float64, len(samples))

	for pos := 0; pos < total; pos += blockSize {
		end := pos + blockSize
		if end > total {
			end = total
		}

		for ch := range samples {
			block[ch] = samples[ch][pos:end]
		}

		if err := engine.Process(block); err != nil {
			return err
		}
	}

	return nil
}

// readWAV decodes a WAV file into per-channel float64 slices in [-1, 1].
func readWAV(path string) (channels, sampleRate, bitDepth int, samples [][]float64, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, nil, err
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		return 0, 0, 0, nil, fmt.Errorf("%s: not a valid WAV file", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return 0, 0, 0, nil, fmt.Errorf("%s: %w", path, err)
	}

	channels = buf.Format.NumChannels
	sampleRate = buf.Format.SampleRate

	bitDepth = int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}

	frames := len(buf.Data) / channels
	scale := 1.0 / float64(int(1)<<(bitDepth-1))

	samples = make([][]float64, channels)
	for ch := range samples {
		samples[ch] = make([]float64, frames)
	}

	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			samples[ch][i] = float64(buf.Data[i*channels+ch]) * scale
		}
	}

	return channels, sampleRate, bitDepth, samples, nil
}

// writeWAV encodes per-channel float64 slices into a PCM WAV file, clipping
// to the representable range.
func writeWAV(path string, channels, sampleRate, bitDepth int, samples [][]float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := wav.NewEncoder(file, sampleRate, bitDepth, channels, 1)

	frames := len(samples[0])
	scale := float64(int(1) << (bitDepth - 1))
	lo, hi := -scale, scale-1

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		SourceBitDepth: bitDepth,
		Data:           make([]int, frames*channels),
	}

	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			v := core.Clamp(math.Round(samples[ch][i]*scale), lo, hi)
			buf.Data[i*channels+ch] = int(v)
		}
	}

	if err := enc.Write(buf); err != nil {
		return err
	}

	return enc.Close()
}

func printMetering(engine *dynamics.Engine) {
	m := engine.Metering()

	for band, gr := range m.BandReductionDB {
		fmt.Printf("band %d: gain reduction %.2f dB\n", band+1, gr)
	}

	fmt.Printf("output peak: %.2f dBFS\n", core.LinearToDB(m.OutputPeak))

	if m.Faults > 0 {
		fmt.Printf("warning: %d channel blocks degraded to passthrough\n", m.Faults)
	}
}
