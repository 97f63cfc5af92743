// golemctl drives a running Golem instance through its control API
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golem/internal/config"
	"golem/internal/orchestrator"
	"golem/internal/protocol"
	"golem/internal/remote"
)

var (
	addr    = flag.String("addr", "", "Control API address (default: 127.0.0.1:<api_port> from the config)")
	token   = flag.String("token", "", "API token (default: api_token from the config)")
	timeout = flag.Duration("timeout", 2*time.Minute, "How long to wait for a command result")
)

var actions = map[string]string{
	"record":         protocol.ActionRecord,
	"stop":           protocol.ActionStopMacro,
	"listen":         protocol.ActionListen,
	"stop-listening": protocol.ActionStopListening,
	"copy":           protocol.ActionCopy,
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: golemctl [flags] status|watch|record|stop|listen|stop-listening|copy\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	verb := flag.Arg(0)

	apiAddr, apiToken := *addr, *token
	if apiAddr == "" || apiToken == "" {
		if cfgMgr, err := config.NewManager(); err == nil {
			if err := cfgMgr.Load(); err != nil {
				log.Printf("Warning: failed to load config: %v", err)
			}
			cfg := cfgMgr.Get()
			if apiAddr == "" {
				apiAddr = fmt.Sprintf("127.0.0.1:%d", cfg.General.APIPort)
			}
			if apiToken == "" {
				apiToken = cfg.General.APIToken
			}
		}
	}

	client := remote.NewClient(apiAddr, apiToken)
	statuses := make(chan orchestrator.Status, 16)
	client.OnStatus = func(st orchestrator.Status) {
		select {
		case statuses <- st:
		default:
		}
	}
	client.Start()
	defer client.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	defer connectCancel()
	if err := client.WaitConnected(connectCtx); err != nil {
		log.Fatalf("Cannot reach Golem at %s: %v", apiAddr, err)
	}

	switch verb {
	case "status":
		select {
		case st := <-statuses:
			printStatus(st)
		case <-connectCtx.Done():
			log.Fatalf("No status received")
		}

	case "watch":
		for {
			select {
			case st := <-statuses:
				printStatus(st)
			case <-ctx.Done():
				return
			}
		}

	default:
		action, ok := actions[verb]
		if !ok {
			usage()
			os.Exit(2)
		}
		cmdCtx, cmdCancel := context.WithTimeout(ctx, *timeout)
		defer cmdCancel()

		res, err := client.Command(cmdCtx, action)
		if err != nil {
			log.Fatalf("%s: %v", verb, err)
		}
		if !res.OK {
			fmt.Fprintf(os.Stderr, "%s failed: %s\n", verb, res.Error)
			client.Close()
			os.Exit(1)
		}
		if res.Text != "" {
			fmt.Println(res.Text)
		} else {
			fmt.Printf("%s: ok\n", verb)
		}
	}
}

func printStatus(st orchestrator.Status) {
	line := fmt.Sprintf("[%s] %-16s %s", st.Time.Format("15:04:05"), st.State, st.Message)
	if st.HasMacro {
		line += fmt.Sprintf(" (macro: %d steps)", st.Steps)
	}
	if st.Error != "" {
		line += " error: " + st.Error
	}
	fmt.Println(line)
}
