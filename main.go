package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"Scribe/mcp"
)

// version is set at build time via -ldflags.
var version = "1.0.0"

const usageText = `scribe — capture browser interactions as replayable semantic actions

Usage:
  scribe [flags]
  scribe -mcp                 Run as an MCP stdio server
  scribe -url <page>          Open a page and record until interrupted

Flags:
  -url <page>       Page URL to open and record
  -name <name>      Session name for the capture
  -data <dir>       Data directory (default: user config dir)
  -plugins <dir>    Action plugin directory (default: <data>/plugins)
  -headless         Run the browser headless
  -mcp              Serve the MCP stdio protocol instead of capturing
  -version          Print the version and exit

Examples:
  scribe -url https://shop.example.com/checkout -name "checkout flow"
  scribe -mcp
`

func main() {
	os.Exit(run())
}

func run() int {
	var (
		urlFlag      = flag.String("url", "", "page URL to open and record")
		nameFlag     = flag.String("name", "", "session name")
		dataFlag     = flag.String("data", "", "data directory")
		pluginsFlag  = flag.String("plugins", "", "plugin directory")
		headlessFlag = flag.Bool("headless", false, "run the browser headless")
		mcpFlag      = flag.Bool("mcp", false, "serve the MCP stdio protocol")
		versionFlag  = flag.Bool("version", false, "print the version and exit")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usageText)
	}
	flag.Parse()

	if *versionFlag {
		fmt.Printf("scribe %s\n", version)
		return 0
	}

	dataDir := *dataFlag
	if dataDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			configDir = os.TempDir()
		}
		dataDir = filepath.Join(configDir, "Scribe")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot create data directory: %v\n", err)
		return 1
	}

	logConfig := PersistentLogConfig(dataDir)
	if *mcpFlag {
		// Stdout carries the MCP protocol, keep logs off the console.
		logConfig.Console = false
	}
	if err := InitLogger(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error: logger init failed: %v\n", err)
		return 1
	}
	defer CloseLogger()

	app, err := NewApp(version, dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer app.Shutdown()

	if *pluginsFlag != "" {
		if err := app.SetPluginDir(*pluginsFlag); err != nil {
			LogWarn("main").Err(err).Msg("Plugin reload failed")
		}
	}

	if *mcpFlag {
		server := mcp.NewMCPServer(NewMCPBridge(app))
		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: MCP server failed: %v\n", err)
			return 1
		}
		return 0
	}

	if *urlFlag == "" {
		flag.Usage()
		return 2
	}

	sessionID, err := app.StartCapture(*urlFlag, *nameFlag, *headlessFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Recording session %s at %s\nPress Ctrl+C to stop.\n", sessionID, *urlFlag)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	if err := app.StopCapture("completed"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if session, err := app.GetSession(sessionID); err == nil && session != nil {
		fmt.Printf("Captured %d actions in session %s\n", session.ActionCount, sessionID)
	}
	return 0
}
