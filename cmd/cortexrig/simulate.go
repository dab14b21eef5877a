package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/normanking/cortexrig/internal/clip"
	"github.com/normanking/cortexrig/internal/config"
	"github.com/normanking/cortexrig/internal/engine"
	"github.com/normanking/cortexrig/internal/viseme"
)

// tailSeconds of silence are simulated after the last phoneme so the
// return to idle shows up in the report.
const tailSeconds = 1.0

type simulateOptions struct {
	avatar   string
	clips    string
	phonemes string
	emotion  string
	frames   int
	every    int
	timer    bool
	realtime bool
	jsonOut  bool
}

func simulateCmd() *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a phoneme timeline through the engine and report each frame",
		Long: `Binds an avatar, plays a speech response against a simulated audio clock
and prints the locomotion state, active clip and mouth weights.

The phoneme file is JSON or YAML, either a list of {start, end, value}
or a document with "emotion" and "phonemes" keys. Without --avatar a
built-in humanoid carrying every ARKit blendshape is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSimulate(ctx, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.avatar, "avatar", "", "glTF/GLB avatar (built-in reference rig when empty)")
	cmd.Flags().StringVar(&opts.clips, "clips", "", "clip directory (overrides clips.dir)")
	cmd.Flags().StringVarP(&opts.phonemes, "phonemes", "p", "", "phoneme timeline file (silence when empty)")
	cmd.Flags().StringVarP(&opts.emotion, "emotion", "e", "", "emotion label (overrides the file and engine.default_emotion)")
	cmd.Flags().IntVarP(&opts.frames, "frames", "n", 0, "frames to run (timeline length plus one second when 0)")
	cmd.Flags().IntVar(&opts.every, "every", 6, "print every Nth frame")
	cmd.Flags().BoolVar(&opts.timer, "timer", false, "no audio source: drive the clock in timer mode")
	cmd.Flags().BoolVar(&opts.realtime, "realtime", false, "tick at wall-clock rate and hot-reload clips and config")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print only the final engine state, as JSON")
	return cmd
}

func runSimulate(ctx context.Context, out io.Writer, opts *simulateOptions) error {
	if opts.clips != "" {
		cfg.Clips.Dir = opts.clips
	}
	clog := log.Component("simulate")

	avatar, loaders, err := loadAvatar(opts.avatar, cfg.Clips.Dir)
	if err != nil {
		return err
	}
	profiles, err := loadProfiles(cfg.LipSync.ProfilesFile)
	if err != nil {
		return err
	}

	sc := &script{}
	if opts.phonemes != "" {
		if sc, err = readScript(opts.phonemes); err != nil {
			return err
		}
	}

	e := engine.New(engine.Options{
		Config:   cfg,
		Clips:    clip.NewStore(loaders, log.Component("clips")),
		Profiles: profiles,
		Log:      log.Zerolog(),
	})
	if err := e.Bind(avatar); err != nil {
		return err
	}

	emotion := cfg.Engine.DefaultEmotion
	if sc.Emotion != "" {
		emotion = sc.Emotion
	}
	if opts.emotion != "" {
		emotion = opts.emotion
	}
	e.SetEmotion(emotion)

	var audio *simAudio
	if len(sc.Phonemes) > 0 {
		if opts.timer {
			e.PushPhonemes(sc.Phonemes, nil)
		} else {
			audio = newSimAudio(sc.end())
			e.PushPhonemes(sc.Phonemes, audio)
		}
	}

	dt := 1 / float32(cfg.Engine.FPS)
	frames := opts.frames
	if frames <= 0 {
		frames = int((sc.end() + tailSeconds) * float64(cfg.Engine.FPS))
	}
	every := max(opts.every, 1)

	var ticker *time.Ticker
	if opts.realtime {
		ticker = time.NewTicker(time.Second / time.Duration(cfg.Engine.FPS))
		defer ticker.Stop()
		if err := startWatchers(ctx, e, clog); err != nil {
			return err
		}
	}

	clog.Info().
		Str("skeleton", avatar.Skeleton.ID).
		Int("phonemes", len(sc.Phonemes)).
		Int("frames", frames).
		Str("emotion", emotion).
		Msg("Simulation started")

	if !opts.jsonOut {
		fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%-6s %-7s %-9s %-10s %-8s %-7s %-7s %s",
			"frame", "time", "state", "action", "mouth", "jaw", "close", "smile")))
	}

	var st engine.EngineState
	for i := 0; i < frames; i++ {
		if ticker != nil {
			select {
			case <-ctx.Done():
			case <-ticker.C:
			}
			if ctx.Err() != nil {
				break
			}
		}
		if audio != nil {
			audio.advance(float64(dt))
		}

		frame := e.Tick(dt)
		if opts.jsonOut || (i%every != 0 && i != frames-1) {
			continue
		}
		st = e.State()
		printFrame(out, i, float64(i+1)*float64(dt), st, frame)
	}

	st = e.State()
	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	printSummary(out, st)
	return nil
}

func printFrame(out io.Writer, i int, t float64, st engine.EngineState, frame engine.Frame) {
	w := frame.Weights
	line := fmt.Sprintf("%-6d %-7.3f %-9s %-10s %-8s %-7.3f %-7.3f %.3f",
		i, t, st.Locomotion, st.CurrentAction, st.Mouth,
		w[viseme.JawOpen], w[viseme.MouthClose], w[viseme.MouthSmileLeft])
	if st.Speaking {
		fmt.Fprintln(out, successStyle.Render(line))
		return
	}
	fmt.Fprintln(out, line)
}

func printSummary(out io.Writer, st engine.EngineState) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Skeleton:  %s\n", dimStyle.Render(st.SkeletonID))
	fmt.Fprintf(out, "  Frames:    %d\n", st.Frames)
	fmt.Fprintf(out, "  Actions:   %v\n", st.Actions)
	fmt.Fprintf(out, "  Rotation:  idle=%q talking=%q\n", st.IdleCursor, st.TalkingCursor)
	fmt.Fprintf(out, "  Responses: %d\n", st.Sync.Responses)
	if len(st.MissingMorphs) > 0 {
		fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("  Missing blendshapes: %d (%d writes skipped)",
			len(st.MissingMorphs), st.SkippedMorphWrites)))
	}
}

// startWatchers hot-reloads changed clip files and, when a config file is
// in use, live-tunes the lip-sync parameters.
func startWatchers(ctx context.Context, e *engine.Engine, clog zerolog.Logger) error {
	if cfg.Clips.Watch {
		w, err := clip.NewWatcher(cfg.Clips.Dir, log.Component("watcher"))
		if err != nil {
			clog.Warn().Err(err).Str("dir", cfg.Clips.Dir).Msg("Clip hot-reload disabled")
		} else {
			go func() {
				if err := e.WatchClips(ctx, w); err != nil {
					clog.Warn().Err(err).Msg("Clip watcher stopped")
				}
			}()
		}
	}

	if cfgPath == "" {
		return nil
	}
	_, err := config.Watch(cfgPath, log.Component("config"), func(next *config.Config) {
		profiles, err := loadProfiles(next.LipSync.ProfilesFile)
		if err != nil {
			clog.Warn().Err(err).Msg("Emotion profiles not reloaded")
			profiles = nil
		}
		e.Retune(next.LipSync.Params, profiles)
	})
	return err
}
