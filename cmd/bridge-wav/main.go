// Command bridge-wav runs a WAV file through the audio bridge offline.
//
// The file's own sample rate plays the role of the producer clock and
// the bridge resamples to the requested target rate, exactly as it
// would against a live emulator core.
//
// Usage:
//
//	bridge-wav -rate 48000 input.wav output.wav
//	bridge-wav -rate 44100 -gain 0.8 input.wav output.wav
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	audiobridge "github.com/tphakala/go-audio-bridge"
)

const (
	// Upper bound on frames fed to the bridge per batched chunk. The
	// effective chunk shrinks for heavy upsampling so a single chunk's
	// output stays well inside the bridge's sanity bound.
	maxChunkFrames = 4096

	// Output frame budget per chunk used to derive the chunk size.
	chunkOutputBudget = 5000

	// Frames pulled from the bridge per drain pass.
	pullFrames = 4096

	// Output ring capacity in frames.
	outputRingFrames = 16384

	// Arbitrary producer clock scale; only the ratio to the WAV rate
	// matters offline.
	syncBase = 1000000.0

	// Output sample scaling.
	maxInt16  = 32767.0
	bitDepth  = 16
	pcmFormat = 1

	minRequiredArgs = 2
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	targetRate := flag.Int("rate", 48000, "Target sample rate in Hz")
	gain := flag.Float64("gain", 1.0, "Master gain applied to the output")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	args := flag.Args()
	if len(args) < minRequiredArgs {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] input.wav output.wav\n\n", os.Args[0])
		flag.PrintDefaults()
		return fmt.Errorf("insufficient arguments")
	}

	in, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer in.Close()

	decoder := wav.NewDecoder(in)
	if !decoder.IsValidFile() {
		return fmt.Errorf("invalid WAV file: %s", args[0])
	}

	format := decoder.Format()
	inputRate := format.SampleRate
	channels := format.NumChannels
	inputDepth := int(decoder.BitDepth)

	if *verbose {
		log.Printf("input: %d Hz, %d channels, %d-bit", inputRate, channels, inputDepth)
	}

	cfg := &audiobridge.Config{
		TargetRate:       *targetRate,
		Channels:         channels,
		OutputRingFrames: outputRingFrames,
		SyncBase:         syncBase,
	}
	if *verbose {
		cfg.Logger = log.Default()
	}
	bridge, err := audiobridge.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create bridge: %w", err)
	}
	defer bridge.Close()

	out, err := os.Create(args[1])
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	encoder := wav.NewEncoder(out, *targetRate, bitDepth, channels, pcmFormat)

	if err := process(decoder, encoder, bridge, inputRate, channels, inputDepth, float32(*gain)); err != nil {
		return err
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to finalize output: %w", err)
	}

	if *verbose {
		stats := bridge.Stats()
		log.Printf("done: %d chunks, %d frames out, overruns=%d",
			stats.ChunkCalls, stats.OutputRing.TotalRead, stats.OutputRing.Overruns)
	}
	return nil
}

// process streams the decoded file through the bridge chunk by chunk,
// draining the output ring between chunks so it never overruns.
func process(
	decoder *wav.Decoder,
	encoder *wav.Encoder,
	bridge *audiobridge.Bridge,
	inputRate, channels, inputDepth int,
	gain float32,
) error {
	cyclesPerSample := syncBase / float64(inputRate)
	shift := inputDepth - bitDepth
	chunkFrames := chunkSize(inputRate, encoder.SampleRate)

	pcm := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: channels, SampleRate: inputRate},
		Data:   make([]int, chunkFrames*channels),
	}
	chunk := make([]int16, chunkFrames*channels)
	pulled := make([]float32, pullFrames*channels)
	outBuf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: encoder.SampleRate},
		Data:           make([]int, 0, pullFrames*channels),
		SourceBitDepth: bitDepth,
	}

	for {
		n, err := decoder.PCMBuffer(pcm)
		if err != nil {
			return fmt.Errorf("decode error: %w", err)
		}
		if n == 0 {
			break
		}

		frames := n / channels
		for i := 0; i < frames*channels; i++ {
			chunk[i] = toInt16(pcm.Data[i], shift)
		}

		bridge.ProcessChunk(chunk, frames, cyclesPerSample, syncBase)

		if err := drain(encoder, bridge, pulled, outBuf, channels, gain); err != nil {
			return err
		}
	}

	// Flush whatever is left in the output ring.
	return drain(encoder, bridge, pulled, outBuf, channels, gain)
}

// chunkSize picks the per-chunk frame count so the resampled output of
// one chunk stays inside the output frame budget.
func chunkSize(inputRate, targetRate int) int {
	frames := maxChunkFrames
	if limit := chunkOutputBudget * inputRate / targetRate; frames > limit {
		frames = limit
	}
	if frames < 64 {
		frames = 64
	}
	return frames
}

// drain empties the bridge's output ring into the encoder.
func drain(
	encoder *wav.Encoder,
	bridge *audiobridge.Bridge,
	pulled []float32,
	outBuf *audio.IntBuffer,
	channels int,
	gain float32,
) error {
	for {
		avail := bridge.Stats().OutputFrames
		if avail == 0 {
			return nil
		}
		if avail > pullFrames {
			avail = pullFrames
		}

		bridge.PullSamples(pulled, avail)

		outBuf.Data = outBuf.Data[:0]
		for _, v := range pulled[:avail*channels] {
			outBuf.Data = append(outBuf.Data, clampToInt16(v*gain))
		}
		if err := encoder.Write(outBuf); err != nil {
			return fmt.Errorf("encode error: %w", err)
		}
	}
}

// toInt16 rescales a decoded sample of the source bit depth to 16 bits.
func toInt16(v, shift int) int16 {
	switch {
	case shift > 0:
		return int16(v >> shift)
	case shift < 0:
		return int16(v << -shift)
	default:
		return int16(v)
	}
}

// clampToInt16 converts a float sample to the 16-bit range with
// clamping, truncation toward zero.
func clampToInt16(v float32) int {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int(v * maxInt16)
}
