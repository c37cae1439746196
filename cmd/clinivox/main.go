package main

import (
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/linuxmatters/clinivox/internal/cli"
	"github.com/linuxmatters/clinivox/internal/config"
	"github.com/linuxmatters/clinivox/internal/logging"
	"github.com/linuxmatters/clinivox/internal/mains"
	"github.com/linuxmatters/clinivox/internal/pipeline"
	"github.com/linuxmatters/clinivox/internal/ui"
)

var (
	version = "0.0.1"
)

// CLI defines the command-line interface
type CLI struct {
	Version     bool     `short:"v" help:"Show version information"`
	Config      string   `group:"Processing" short:"c" type:"existingfile" help:"Path to YAML config file (optional)"`
	Logs        bool     `group:"Logging" help:"Save a session report next to each recording"`
	LogLevel    string   `group:"Logging" name:"log-level" default:"info" enum:"debug,info,warn,error" help:"Debug log verbosity"`
	DebugLog    string   `group:"Logging" name:"debug-log" default:"clinivox-debug.log" type:"path" help:"Debug log file"`
	FrameSize   int      `group:"Processing" name:"frame-size" default:"0" help:"Samples per capture frame; 0 uses the analysis window"`
	CaptureRate int      `group:"Processing" name:"capture-rate" default:"0" help:"Resample input to this rate before processing; 0 keeps the file rate"`
	HumNotch    string   `group:"Processing" name:"hum-notch" default:"auto" help:"Mains hum notch: auto, off, 50 or 60"`
	NoSpeakers  bool     `group:"Processing" name:"no-speakers" help:"Disable speaker attribution"`
	Files       []string `arg:"" name:"recordings" help:"WAV recordings to process" type:"existingfile" optional:""`
}

func main() {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("clinivox"),
		kong.Description("Real-time clinical audio enhancement and speaker attribution"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	// Handle version flag
	if cliArgs.Version {
		cli.PrintVersion(version, mains.Detect().String())
		os.Exit(0)
	}

	// Validate input
	if len(cliArgs.Files) == 0 {
		cli.PrintError("No input recordings specified")
		ctx.PrintUsage(false)
		os.Exit(1)
	}

	cfg, err := loadConfig(cliArgs)
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}

	debugLog, err := os.Create(cliArgs.DebugLog)
	if err != nil {
		cli.PrintError(fmt.Sprintf("cannot create debug log: %v", err))
		os.Exit(1)
	}
	defer debugLog.Close()

	logger, err := logging.NewLogger(cliArgs.LogLevel, debugLog, false)
	if err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
	log := logrus.NewEntry(logger)
	ui.SetLogger(log)
	log.WithFields(logrus.Fields{
		"version":  version,
		"files":    len(cliArgs.Files),
		"hum_hz":   cfg.Equaliser.HumHz,
		"speakers": cfg.Speaker.Enabled,
	}).Info("Starting")

	// Create the Bubbletea UI model
	model := ui.NewModel(cliArgs.Files)

	// Start the TUI
	p := tea.NewProgram(model, tea.WithAltScreen())

	// Start processing in background
	go func() {
		for i, inputPath := range cliArgs.Files {
			processOne(p, log, cfg, cliArgs, i, inputPath)
		}
		log.Debug("Sending AllCompleteMsg")
		p.Send(ui.AllCompleteMsg{})
	}()

	// Run the program
	final, err := p.Run()
	if err != nil {
		cli.PrintError(fmt.Sprintf("UI error: %v", err))
		os.Exit(1)
	}
	m, ok := final.(ui.Model)
	if !ok {
		return
	}
	// The alternate screen is gone once the program exits; leave the outputs on the terminal.
	for _, f := range m.Files {
		switch {
		case f.Result != nil:
			cli.PrintKeyValue("Enhanced", f.Result.OutputPath)
			cli.PrintKeyValue("Speakers", f.Result.SpeakersPath)
			if f.ReportPath != "" {
				cli.PrintKeyValue("Report", f.ReportPath)
			}
		case f.Error != nil:
			cli.PrintError(fmt.Sprintf("%s: %v", f.InputPath, f.Error))
		}
	}
	if m.FailedFiles > 0 {
		debugLog.Close()
		os.Exit(1)
	}
}

// loadConfig builds the session configuration from the config file and flags.
func loadConfig(args *CLI) (config.Config, error) {
	cfg := config.Default()
	if args.Config != "" {
		loaded, err := config.Load(args.Config)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	// An explicit hum notch in the config file wins over detection.
	if args.HumNotch != "auto" || cfg.Equaliser.HumHz == 0 {
		if err := mains.Apply(&cfg, args.HumNotch, nil); err != nil {
			return cfg, err
		}
	}
	if args.NoSpeakers {
		cfg.Speaker.Enabled = false
	}
	return cfg, cfg.Validate()
}

// processOne runs a single recording and reports its outcome to the UI.
func processOne(p *tea.Program, log *logrus.Entry, cfg config.Config, args *CLI, index int, inputPath string) {
	fileLog := log.WithField("file", inputPath)
	start := time.Now()

	fileLog.Debugf("Sending FileStartMsg for file %d", index)
	p.Send(ui.FileStartMsg{
		FileIndex: index,
		FileName:  inputPath,
	})

	result, err := pipeline.ProcessFile(inputPath, cfg, pipeline.FileOptions{
		FrameSize:   args.FrameSize,
		CaptureRate: args.CaptureRate,
		Session:     []pipeline.Option{pipeline.WithLogger(fileLog)},
		Progress: func(pr pipeline.Progress) {
			p.Send(ui.ProgressMsg{Progress: pr})
		},
	})
	if err != nil {
		fileLog.WithError(err).Error("Processing failed")
		p.Send(ui.FileCompleteMsg{FileIndex: index, Error: err})
		return
	}

	var reportPath string
	if args.Logs {
		reportPath, err = logging.GenerateReport(logging.ReportData{
			InputPath: inputPath,
			StartTime: start,
			EndTime:   time.Now(),
			Result:    result,
			Config:    cfg,
		})
		if err != nil {
			fileLog.WithError(err).Warn("Failed to generate session report")
		}
	}

	fileLog.WithFields(logrus.Fields{
		"segments": len(result.Segments),
		"tier":     result.Quality.Tier(),
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Info("Recording complete")
	p.Send(ui.FileCompleteMsg{
		FileIndex:  index,
		Result:     result,
		ReportPath: reportPath,
	})
}
