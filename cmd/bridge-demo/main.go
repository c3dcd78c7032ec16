// Command bridge-demo plays a synthetic chip tone through the audio
// bridge and an oto output device.
//
// A producer goroutine generates a sine at a slowly wobbling rate,
// standing in for an emulated sound chip whose timing drifts with
// load. The oto player's pull callback drives the sink adapter.
//
// Usage:
//
//	bridge-demo
//	bridge-demo -config demo.toml -duration 30s
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/ebitengine/oto/v3"
	audiobridge "github.com/tphakala/go-audio-bridge"
)

const (
	// Producer pacing: frames generated per sleep interval.
	producerBatchFrames = 256

	// Period of the simulated rate wobble.
	driftPeriod = 7 * time.Second

	statsInterval = time.Second
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", "", "TOML config file")
	duration := flag.Duration("duration", 0, "Stop after this long (0 = until interrupted)")
	flag.Parse()

	cfg, err := Load(*configPath)
	if err != nil {
		return err
	}

	bridge, err := audiobridge.New(&audiobridge.Config{
		TargetRate:       cfg.TargetRate,
		Channels:         2,
		OutputRingFrames: cfg.OutputRingFrames,
		SyncBase:         cfg.SyncBase,
		Logger:           log.Default(),
	})
	if err != nil {
		return fmt.Errorf("failed to create bridge: %w", err)
	}
	defer bridge.Close()

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.TargetRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   20 * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	<-ready

	reader, err := newBridgeReader(bridge, cfg)
	if err != nil {
		return err
	}

	player := ctx.NewPlayer(reader)
	player.Play()
	defer player.Close()

	stop := make(chan struct{})
	go produce(bridge, cfg, stop)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	var timeout <-chan time.Time
	if *duration > 0 {
		timeout = time.After(*duration)
	}

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			printStats(bridge, reader.adapter)
		case <-interrupt:
			close(stop)
			return nil
		case <-timeout:
			close(stop)
			return nil
		}
	}
}

// produce generates the wobbling test tone and pushes it frame by
// frame, pacing itself in small batches against the wall clock.
func produce(bridge *audiobridge.Bridge, cfg Config, stop <-chan struct{}) {
	var phase float64
	start := time.Now()
	frames := 0

	for {
		select {
		case <-stop:
			return
		default:
		}

		elapsed := time.Since(start).Seconds()
		wobble := math.Sin(2 * math.Pi * elapsed / driftPeriod.Seconds())
		rate := cfg.ProducerRate * (1 + cfg.DriftPercent/100*wobble/2)
		cycles := float32(cfg.SyncBase / rate)

		for i := 0; i < producerBatchFrames; i++ {
			v := int16(12000 * math.Sin(phase))
			phase += 2 * math.Pi * cfg.ToneHz / rate
			bridge.PushSample(v, v, cycles)
		}
		if phase > 2*math.Pi {
			phase -= 2 * math.Pi * math.Floor(phase/(2*math.Pi))
		}
		frames += producerBatchFrames

		// Sleep off any lead over real time.
		ahead := float64(frames)/cfg.ProducerRate - time.Since(start).Seconds()
		if ahead > 0 {
			time.Sleep(time.Duration(ahead * float64(time.Second)))
		}
	}
}

// printStats renders one status line.
func printStats(bridge *audiobridge.Bridge, adapter *audiobridge.SinkAdapter) {
	stats := bridge.Stats()
	sink := adapter.Stats()

	health := okStyle.Render("ok")
	if stats.OutputRing.Overruns > 0 || sink.Underruns > 0 {
		health = warnStyle.Render(fmt.Sprintf("overruns=%d underruns=%d",
			stats.OutputRing.Overruns, sink.Underruns))
	}

	fmt.Printf("%s rate=%.1f Hz fill=%.1f%% pushed=%d pulled=%d %s\n",
		labelStyle.Render("bridge"),
		stats.EstimatedRate,
		stats.FillFraction*100,
		stats.PushCalls,
		sink.FramesWritten,
		health)
}
