package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/atotto/clipboard"
	"go.uber.org/zap"

	"github.com/hayeah/codesum/bundle"
	"github.com/hayeah/codesum/config"
	"github.com/hayeah/codesum/ignore"
	"github.com/hayeah/codesum/mcpserver"
	"github.com/hayeah/codesum/openai"
	"github.com/hayeah/codesum/picker"
	"github.com/hayeah/codesum/state"
	"github.com/hayeah/codesum/tokens"
	"github.com/hayeah/codesum/tree"
)

// Args defines the command-line arguments
type Args struct {
	Configure   bool   `arg:"--configure" help:"Run the configuration wizard and exit"`
	Serve       bool   `arg:"--serve" help:"Run the MCP HTTP server instead of the interactive picker"`
	Port        int    `arg:"--port" default:"8000" help:"Port for the MCP server"`
	NoClipboard bool   `arg:"--no-clipboard" help:"Do not copy the generated summary to the clipboard"`
	Root        string `arg:"positional" help:"Project root (default: current directory)"`
}

func (Args) Description() string {
	return "codesum: select project files interactively and bundle them for an LLM.\n"
}

// Runner encapsulates the state shared across the run.
type Runner struct {
	Args     Args
	RootPath string
	Settings config.Settings
	Log      *zap.SugaredLogger
}

// NewRunner resolves the project root and loads user settings.
func NewRunner(args Args, log *zap.SugaredLogger) (*Runner, error) {
	root := args.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("cannot access %s: %w", absRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absRoot)
	}

	settings, err := config.Load()
	if err != nil {
		return nil, err
	}

	return &Runner{
		Args:     args,
		RootPath: absRoot,
		Settings: settings,
		Log:      log,
	}, nil
}

// Run dispatches to the selected mode.
func (r *Runner) Run() error {
	switch {
	case r.Args.Configure:
		return config.ConfigureInteractive(os.Stdin, os.Stdout)
	case r.Args.Serve:
		return r.runServer()
	default:
		return r.runInteractive()
	}
}

// buildTree assembles the ignore resolver (built-in names, nested ignore
// pattern files, the user's custom list) and walks the project.
func (r *Runner) buildTree() (*tree.Dir, *state.Store, error) {
	store := state.NewStore(r.RootPath, r.Log)
	if err := store.EnsureDir(); err != nil {
		return nil, nil, err
	}

	custom, err := ignore.LoadCustomNames(filepath.Join(store.Dir(), ignore.CustomIgnoreFilename))
	if err != nil {
		r.Log.Warnw("could not read custom ignore file", "error", err)
	}

	resolver, err := ignore.NewResolver(r.RootPath, custom)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build ignore rules: %w", err)
	}

	fileTree, err := tree.Build(r.RootPath, resolver)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan %s: %w", r.RootPath, err)
	}
	return fileTree, store, nil
}

func (r *Runner) runServer() error {
	fileTree, _, err := r.buildTree()
	if err != nil {
		return err
	}

	var ranker mcpserver.Ranker
	if r.Settings.Enabled() {
		ranker = openai.NewClient(r.Settings.OpenAIAPIKey, r.Settings.LLMModel, r.Log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf(":%d", r.Args.Port)
	r.Log.Infow("starting MCP server", "addr", addr, "root", r.RootPath)
	srv := mcpserver.New(r.RootPath, fileTree, ranker, r.Log)
	return srv.ListenAndServe(ctx, addr)
}

func (r *Runner) runInteractive() error {
	fileTree, store, err := r.buildTree()
	if err != nil {
		return err
	}

	counter, err := tokens.NewCounter(r.Settings.TokenEncoding)
	if err != nil {
		r.Log.Warnw("token counting disabled", "error", err)
		counter = tokens.NewCounterWithEncoder(nil)
	}

	sel, exit, err := picker.Select(fileTree, store, counter)
	if err != nil {
		return fmt.Errorf("selection failed: %w", err)
	}
	if exit != picker.ExitConfirmed {
		fmt.Println("Selection cancelled.")
		return nil
	}
	if len(sel.Selected) == 0 {
		fmt.Println("No files selected.")
		return nil
	}

	if err := store.Save(sel); err != nil {
		return fmt.Errorf("failed to persist selection: %w", err)
	}

	writer := bundle.NewWriter(r.RootPath, store, r.Log)
	content, err := writer.WriteCodeSummary(sel)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d files).\n", filepath.Join(store.Dir(), bundle.CodeSummaryFilename), len(sel.Selected))

	if !r.Args.NoClipboard {
		if err := clipboard.WriteAll(content); err != nil {
			r.Log.Warnw("could not copy to clipboard", "error", err)
		} else {
			fmt.Println("Copied code summary to clipboard.")
		}
	}

	return r.runAIFlow(store, writer, sel)
}

// runAIFlow offers the optional AI steps: compressed summary generation
// when files are marked for compression, then README generation from it.
func (r *Runner) runAIFlow(store *state.Store, writer *bundle.Writer, sel *state.SelectionState) error {
	if !r.Settings.Enabled() {
		if len(sel.Compressed) > 0 {
			fmt.Println("Files are marked for compression, but no OpenAI API key is configured.")
			fmt.Println("Run 'codesum --configure' to set one.")
		}
		return nil
	}
	if len(sel.Compressed) == 0 {
		return nil
	}

	reader := bufio.NewReader(os.Stdin)
	if !confirm(reader, "Generate compressed summary with AI?") {
		return nil
	}

	client := openai.NewClient(r.Settings.OpenAIAPIKey, r.Settings.LLMModel, r.Log)
	fmt.Println("Waiting for summaries. This may take a few minutes...")

	ctx := context.Background()
	compressed, err := writer.WriteCompressedSummary(ctx, sel, client)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s.\n", filepath.Join(store.Dir(), bundle.CompressedSummaryFilename))

	if !confirm(reader, "Generate README.md from the compressed summary?") {
		return nil
	}
	readme := client.GenerateReadme(ctx, compressed)
	readmePath := filepath.Join(r.RootPath, "README.md")
	if err := os.WriteFile(readmePath, []byte(readme), 0o644); err != nil {
		return fmt.Errorf("failed to write README.md: %w", err)
	}
	fmt.Printf("Wrote %s.\n", readmePath)
	return nil
}

// confirm asks a y/N question on stdin.
func confirm(reader *bufio.Reader, prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func newLogger() *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return log.Sugar()
}

func main() {
	var args Args
	arg.MustParse(&args)

	log := newLogger()
	defer log.Sync()

	runner, err := NewRunner(args, log)
	if err == nil {
		err = runner.Run()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
