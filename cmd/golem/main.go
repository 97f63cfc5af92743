// Golem - voice-to-macro desktop assistant
// Records a short click/paste macro, then replays it with dictated text on the clipboard
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golem/internal/api"
	"golem/internal/autostart"
	"golem/internal/clipboard"
	"golem/internal/config"
	"golem/internal/hotkey"
	"golem/internal/input"
	"golem/internal/macro"
	"golem/internal/notify"
	"golem/internal/orchestrator"
	"golem/internal/transcribe"
	"golem/internal/tray"
	"golem/internal/voice"
	"golem/internal/voice/mic"
)

var (
	version    = "0.1.0"
	showVer    = flag.Bool("version", false, "Show version")
	initConfig = flag.Bool("init-config", false, "Write the default configuration file and exit")
	configPath = flag.String("config", "", "Path to the configuration file")
	headless   = flag.Bool("headless", false, "Run without the tray icon")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("golem version %s\n", version)
		return
	}

	// Initialize config
	var cfgMgr *config.Manager
	if *configPath != "" {
		cfgMgr = config.NewManagerAt(*configPath)
	} else {
		var err error
		cfgMgr, err = config.NewManager()
		if err != nil {
			log.Fatalf("Failed to initialize config: %v", err)
		}
	}

	if *initConfig {
		if err := cfgMgr.Save(); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Wrote default configuration to %s\n", cfgMgr.Path())
		return
	}

	if err := cfgMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config, using defaults: %v", err)
	}

	runService(cfgMgr)
}

func runService(cfgMgr *config.Manager) {
	log.Println("Golem starting...")
	cfg := cfgMgr.Get()

	capturer, err := macro.NewCapturer(cfg.Macro.StopKey, cfg.Macro.Combos)
	if err != nil {
		log.Fatalf("Invalid macro config: %v", err)
	}
	policy, err := macro.ParseClickPolicy(cfg.Macro.ClickPolicy)
	if err != nil {
		log.Fatalf("Invalid macro config: %v", err)
	}
	player := macro.NewPlayer(input.NewSynthesizer(), policy)

	recorder := voice.NewRecorder(mic.NewSource(), voice.Format{
		SampleRate:      cfg.Audio.SampleRate,
		Channels:        cfg.Audio.Channels,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
	}, cfg.Audio.TempDir)

	client, err := transcribe.New(transcribe.Options{
		URL:            cfg.Server.URL,
		Token:          cfg.Server.Token,
		TextPath:       cfg.Server.TextPath,
		RequestTimeout: cfg.Server.Timeout(),
		EnableHTTP2:    cfg.Server.EnableHTTP2,
	}, nil)
	if err != nil {
		log.Fatalf("Failed to create transcription client: %v", err)
	}
	go checkServer(client, cfg.Server.URL)

	clip := clipboard.New()
	if !clip.Available() {
		log.Println("Warning: clipboard is not available, transcripts cannot be pasted")
	}

	listener := input.NewListener()

	orch := orchestrator.New(orchestrator.Deps{
		Capturer:    capturer,
		Player:      player,
		Voice:       recorder,
		Transcriber: client,
		Clipboard:   clip,
		KeepAudio:   cfg.Audio.KeepAudio,
		Exit: func(code int) {
			log.Println("Emergency stop: exiting")
			_ = listener.Stop()
			os.Exit(code)
		},
	})

	// Hotkeys
	hkMgr := hotkey.NewManager()
	register := func(name, chord string, fn func()) {
		if _, err := hkMgr.Register(chord, fn); err != nil {
			log.Printf("Warning: failed to register %s hotkey %q: %v", name, chord, err)
		}
	}
	register("record", cfg.Bindings.RecordToggle, func() {
		if err := orch.ToggleMacro(); err != nil {
			log.Printf("Hotkey: record toggle: %v", err)
		}
	})
	register("listen", cfg.Bindings.Listen, func() {
		if err := orch.Listen(); err != nil {
			log.Printf("Hotkey: listen: %v", err)
		}
	})
	register("stop listening", cfg.Bindings.StopListening, func() {
		// Space is an ordinary key outside voice capture
		if orch.State() != orchestrator.RecordingVoice {
			return
		}
		if _, err := orch.StopListening(context.Background()); err != nil {
			log.Printf("Hotkey: stop listening: %v", err)
		}
	})
	register("emergency stop", cfg.Bindings.EmergencyStop, func() {
		log.Printf("EMERGENCY: %s pressed", cfg.Bindings.EmergencyStop)
		orch.EmergencyStop()
	})

	// Listener hooks must return quickly, so events are handed to a dispatch goroutine
	events := make(chan input.Event, 256)
	go func() {
		for ev := range events {
			hkMgr.Handle(ev)
			orch.HandleInput(ev)
		}
	}()
	if err := listener.Start(func(ev input.Event) {
		select {
		case events <- ev:
		default:
			log.Printf("Input Listener: dropped %s %s, dispatcher is busy", ev.Kind, ev.Key)
		}
	}); err != nil {
		if errors.Is(err, input.ErrUnsupported) {
			log.Printf("Warning: global hotkeys are not supported on %s; use the tray or the control API", runtime.GOOS)
		} else {
			log.Printf("Warning: input listener failed to start: %v", err)
		}
	}

	// Control API
	var apiServer *api.Server
	if cfg.General.APIEnabled {
		apiServer = api.NewServer(orch, cfg.General.APIToken)
		go func() {
			if err := apiServer.Start(cfg.General.APIPort); err != nil {
				log.Printf("API server error: %v", err)
			}
		}()
	}

	notifier := notify.New(cfg.General.ShowNotifications)

	// Login item follows the config; the tray can flip it
	launcher, err := autostart.New()
	if err != nil {
		log.Printf("Warning: autostart unavailable: %v", err)
	} else if err := launcher.Sync(cfg.General.LaunchAtLogin); err != nil {
		if errors.Is(err, autostart.ErrUnsupported) {
			launcher = nil
		}
		log.Printf("Warning: failed to update login item: %v", err)
	}
	if launcher != nil {
		// Bindings and audio settings are read at startup only; the login item follows live changes
		cfgMgr.RegisterChangeCallback(func() {
			if err := launcher.Sync(cfgMgr.Get().General.LaunchAtLogin); err != nil {
				log.Printf("Autostart: %v", err)
			}
		})
	}

	shutdown := func() {
		_ = listener.Stop()
		if apiServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := apiServer.Shutdown(ctx); err != nil {
				log.Printf("API shutdown: %v", err)
			}
		}
	}

	updates, unsubscribe := orch.Subscribe()
	defer unsubscribe()

	if *headless {
		go func() {
			for st := range updates {
				log.Printf("Status: %s", st.Message)
				showStatus(notifier, st)
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		log.Println("Golem running headless. Press Ctrl+C to stop.")
		<-sigCh
		log.Println("Shutting down...")
		shutdown()
		return
	}

	// Tray instance
	t := tray.New("Golem - Ready.")

	// start-only: the mouse hook would record the clicks that stop a session from the menu
	recordID := t.AddMenuItem("Record Macro", func() {
		if err := orch.RecordMacro(); err != nil {
			log.Printf("Tray: record: %v", err)
		}
	})
	listenID := t.AddMenuItem("Listen", func() {
		var err error
		if orch.State() == orchestrator.RecordingVoice {
			_, err = orch.StopListening(context.Background())
		} else {
			err = orch.Listen()
		}
		if err != nil {
			log.Printf("Tray: listen: %v", err)
		}
	})
	t.SetItemEnabled(listenID, false)
	t.AddMenuItem("Copy Transcript", func() {
		if _, err := orch.CopyTranscript(); err != nil {
			log.Printf("Tray: copy transcript: %v", err)
			notifier.Notify("No transcript yet")
		}
	})

	t.AddSeparator()

	if launcher != nil {
		var loginID int
		loginID = t.AddMenuItem(loginTitle(cfg.General.LaunchAtLogin), func() {
			next := *cfgMgr.Get()
			next.General.LaunchAtLogin = !next.General.LaunchAtLogin
			if err := cfgMgr.Set(&next); err != nil {
				log.Printf("Tray: launch at login: %v", err)
				return
			}
			if err := cfgMgr.Save(); err != nil {
				log.Printf("Failed to save config: %v", err)
			}
			t.SetItemTitle(loginID, loginTitle(next.General.LaunchAtLogin))
		})
		t.AddSeparator()
	}

	t.AddMenuItem("Quit", func() {
		t.Stop()
	})

	go func() {
		for st := range updates {
			applyStatus(t, recordID, listenID, cfg.Macro.StopKey, st)
			showStatus(notifier, st)
		}
	}()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		t.Stop()
	}()

	log.Println("Golem running. Press Ctrl+C to stop.")
	t.Run()
	shutdown()
}

// menuState is how the record and listen items look for one status
type menuState struct {
	recordTitle   string
	recordEnabled bool
	listenTitle   string
	listenEnabled bool
}

func trayMenu(st orchestrator.Status, stopKey string) menuState {
	switch st.State {
	case orchestrator.RecordingMacro.String():
		return menuState{recordTitle: fmt.Sprintf("Recording... press %s to stop", stopKey), listenTitle: "Listen"}
	case orchestrator.RecordingVoice.String():
		return menuState{recordTitle: "Record Macro", listenTitle: "Stop Listening", listenEnabled: true}
	case orchestrator.Processing.String(), orchestrator.Terminated.String():
		return menuState{recordTitle: "Record Macro", listenTitle: "Listen"}
	default:
		return menuState{recordTitle: "Record Macro", recordEnabled: true, listenTitle: "Listen", listenEnabled: st.HasMacro}
	}
}

// applyStatus mirrors the orchestrator state onto the tray menu
func applyStatus(t *tray.Tray, recordID, listenID int, stopKey string, st orchestrator.Status) {
	t.SetTooltip("Golem - " + st.Message)

	m := trayMenu(st, stopKey)
	t.SetItemTitle(recordID, m.recordTitle)
	t.SetItemEnabled(recordID, m.recordEnabled)
	t.SetItemTitle(listenID, m.listenTitle)
	t.SetItemEnabled(listenID, m.listenEnabled)
}

func loginTitle(enabled bool) string {
	if enabled {
		return "Launch at Login: On"
	}
	return "Launch at Login: Off"
}

func showStatus(n *notify.Notifier, st orchestrator.Status) {
	if st.Error != "" {
		n.Alert(st.Message)
		return
	}
	n.Notify(st.Message)
}

func checkServer(client *transcribe.Client, url string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, err := client.Health(ctx)
	if err != nil {
		log.Printf("Warning: transcription server %s is not reachable: %v", url, err)
		return
	}
	log.Printf("Transcription server %s: %s", url, msg)
}
