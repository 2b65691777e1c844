package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"time"

	"utter/audio"
	"utter/capture"
	"utter/config"
	"utter/doctor"
	"utter/log"
	"utter/shutdown"
	"utter/transcriber"
)

var version = "dev"

type flags struct {
	configPath string
	mode       string
	maxSeconds float64
	device     string
	setup      bool
	lang       string
	stt        string
	logPath    string
	wav        string
	once       bool
	saveDir    string
	doctor     bool
	version    bool
	verbose    bool
}

func parseFlags(fs *flag.FlagSet, args []string) (flags, error) {
	var f flags
	fs.StringVar(&f.configPath, "config", "", "Settings file (default "+config.DefaultPath+" if present)")
	fs.StringVar(&f.mode, "mode", "", "Recording mode: auto (stop on silence) or manual (stop on Enter)")
	fs.Float64Var(&f.maxSeconds, "max", 0, "Maximum recording time in seconds")
	fs.StringVar(&f.device, "device", "", "Use named microphone device")
	fs.BoolVar(&f.setup, "setup", false, "Select microphone device (otherwise uses system default)")
	fs.StringVar(&f.lang, "lang", "", "Language code for transcription (e.g., en, es, pt)")
	fs.StringVar(&f.stt, "stt", "", "Transcription provider: groq, openai, whisper or none")
	fs.StringVar(&f.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	fs.StringVar(&f.wav, "wav", "", "Replay a 16 kHz mono WAV file instead of the microphone")
	fs.BoolVar(&f.once, "once", false, "Capture a single utterance and exit")
	fs.StringVar(&f.saveDir, "save", "", "Keep a WAV of every utterance in this directory")
	fs.BoolVar(&f.doctor, "doctor", false, "Run microphone diagnostics and exit")
	fs.BoolVar(&f.version, "version", false, "Print version and exit")
	fs.BoolVar(&f.verbose, "v", false, "Show transcription metrics")
	err := fs.Parse(args)
	return f, err
}

// loadConfig reads the settings file and applies flag overrides.
func loadConfig(f flags) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if f.configPath != "" {
		cfg, err = config.Load(f.configPath)
	} else {
		cfg, err = config.LoadOrDefault(config.DefaultPath)
	}
	if err != nil {
		return nil, err
	}

	if f.mode != "" {
		cfg.Audio.RecordingMode = f.mode
	}
	if f.maxSeconds != 0 {
		cfg.Audio.MaxRecordingTime = f.maxSeconds
	}
	if f.device != "" {
		cfg.Audio.Device = f.device
	}
	if f.saveDir != "" {
		cfg.Audio.SaveDir = f.saveDir
	}
	if f.lang != "" {
		cfg.STT.Language = f.lang
	}
	if f.stt != "" && f.stt != cfg.STT.Provider {
		cfg.STT.Provider = f.stt
		cfg.STT.Model = ""
		cfg.STT.APIKey = ""
		cfg.ApplyDefaults()
	}
	if f.logPath != "" {
		cfg.Log.Path = f.logPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogging(cfg *config.Config) {
	logPath, err := log.ResolveDir(cfg.Log.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to resolve log directory: %v\n", err)
		return
	}
	log.SetDir(logPath)
	if err := log.SetLevel(cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
		return
	}

	if crashFile, err := log.CrashFile(); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
}

func openAudio(f flags) (audio.Context, error) {
	if f.wav != "" {
		return audio.NewFakeContext(f.wav, false)
	}
	return audio.NewContext()
}

func resolveDevice(ctx audio.Context, f flags, cfg *config.Config, con *console) *audio.DeviceInfo {
	if f.setup && f.wav == "" {
		dev, err := audio.SelectDevice(ctx, os.Stdin, os.Stdout)
		if err == nil {
			return dev
		}
		if !errors.Is(err, audio.ErrSelectionCanceled) {
			log.Warnf("device selection failed: %v", err)
			con.warn("Device selection failed: %v", err)
		}
		con.help("Falling back to default device")
		return nil
	}
	if cfg.Audio.Device == "" {
		return nil
	}
	dev, err := audio.FindDevice(ctx, cfg.Audio.Device)
	if err != nil || dev == nil {
		log.Warnf("device not found: %s", cfg.Audio.Device)
		con.warn("Device %q not found, using system default", cfg.Audio.Device)
		return nil
	}
	if audio.IsBluetooth(dev.Name) {
		con.warn("%s looks like a Bluetooth headset; capture quality may be reduced", dev.Name)
	}
	return dev
}

func newTranscriber(cfg *config.Config) (transcriber.Transcriber, error) {
	return transcriber.New(transcriber.Options{
		Provider: cfg.STT.Provider,
		APIKey:   cfg.STT.APIKey,
		Model:    cfg.STT.Model,
		Language: cfg.STT.Language,
	})
}

func closeTranscriber(t transcriber.Transcriber) {
	if c, ok := t.(interface{ Close() error }); ok {
		c.Close()
	}
}

// doctorOptions prepares the mic check. A provider that cannot be set up,
// usually for lack of an API key, only skips the transcription check.
func doctorOptions(cfg *config.Config, actx audio.Context, device *audio.DeviceInfo, con *console, out io.Writer) doctor.Options {
	opts := doctor.Options{
		Audio:   actx,
		Device:  device,
		Capture: cfg.Audio.Capture(),
		Out:     out,
	}
	stt, err := newTranscriber(cfg)
	if err != nil {
		log.Warnf("doctor: transcriber unavailable: %v", err)
		con.warn("Skipping transcription check: %v", err)
		return opts
	}
	opts.Transcriber = stt
	return opts
}

func run() int {
	f, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		return 2
	}
	if f.version {
		fmt.Printf("utter %s\n", version)
		return 0
	}

	con := newConsole(os.Stdout)

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	mode, _ := cfg.Audio.Mode()

	initLogging(cfg)
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), shutdown.Signals()...)
	defer stop()

	actx, err := openAudio(f)
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		return 1
	}
	defer actx.Close()

	device := resolveDevice(actx, f, cfg, con)

	if f.doctor {
		opts := doctorOptions(cfg, actx, device, con, os.Stdout)
		defer closeTranscriber(opts.Transcriber)
		return doctor.Run(ctx, opts)
	}

	stt, err := newTranscriber(cfg)
	if err != nil {
		log.Errorf("transcriber init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeTranscriber(stt)

	a := &app{
		cfg:     cfg,
		mode:    mode,
		audio:   actx,
		device:  device,
		stt:     stt,
		lines:   newLineReader(os.Stdin),
		con:     con,
		once:    f.once,
		verbose: f.verbose,
	}
	if f.wav != "" {
		// Replayed files arrive faster than real time.
		a.frameQueue = 4096
	}

	providerName := "none"
	if stt != nil {
		providerName = stt.Name()
	}
	deviceName := "default"
	if device != nil {
		deviceName = device.Name
	}
	log.SessionStart(providerName, mode.String(), deviceName)

	runErr := a.run(ctx)
	log.SessionEnd(a.utterances, a.audioS)

	if ctx.Err() != nil {
		con.warn("Session interrupted")
	}
	a.summary()

	if runErr != nil {
		var ce *capture.CaptureError
		if errors.As(runErr, &ce) {
			fmt.Fprintf(os.Stderr, "Error: microphone unavailable: %v\n", ce.Err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		}
		log.Errorf("session error: %v", runErr)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
