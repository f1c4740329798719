// Command ReviewChat runs a performance review in the terminal.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/BTreeMap/ReviewPipe/internal/flow"
	"github.com/BTreeMap/ReviewPipe/internal/genai"
	"github.com/BTreeMap/ReviewPipe/internal/models"
	"github.com/BTreeMap/ReviewPipe/internal/review"
	"github.com/BTreeMap/ReviewPipe/internal/util"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	stageConfig := flag.String("stage-config", os.Getenv("STAGE_CONFIG"), "YAML stage configuration (overrides $STAGE_CONFIG)")
	model := flag.String("openai-model", util.GetenvDefault("OPENAI_MODEL", genai.DefaultModel), "chat model (overrides $OPENAI_MODEL)")
	name := flag.String("name", "", "employee name used in the greeting")
	position := flag.String("position", "", "employee position")
	verbose := flag.Bool("v", false, "log debug output to stderr")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := review.DefaultConfig()
	if *stageConfig != "" {
		loaded, err := review.LoadConfig(*stageConfig)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to load stage config:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	llm, err := genai.NewClient(genai.WithAPIKey(os.Getenv("OPENAI_API_KEY")), genai.WithModel(*model))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	f := flow.NewInterviewFlow(llm, nil, cfg)
	emp := flow.EmployeeContext{Name: *name, Position: *position}
	if err := run(ctx, f, emp, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run drives one in-memory session from in until "exit", "quit" or EOF.
func run(ctx context.Context, f *flow.InterviewFlow, emp flow.EmployeeContext, in io.Reader, out io.Writer) error {
	cfg := f.Config()
	sess := f.NewSession(util.NewSessionID(), emp)

	printBanner(out, cfg, sess.State.CurrentStage)
	fmt.Fprintf(out, "Assistant: %s\n", lastAssistant(sess))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), models.MaxMessageLength)
	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit"):
			fmt.Fprintln(out, "Goodbye.")
			return nil
		}

		res, err := f.ProcessSessionMessage(ctx, sess, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		sess.State = res.State

		fmt.Fprintf(out, "\nAssistant: %s\n", res.Reply)
		if res.Transitioned {
			printBanner(out, cfg, res.CurrentStage)
		}
	}
}

func printBanner(out io.Writer, cfg *review.Config, stage review.StageID) {
	p := review.Progress(stage, cfg)
	fmt.Fprintf(out, "\n=== %s (%.0f%%) ===\n", cfg.Stage(stage).Label, p.ProgressPercentage)
}

func lastAssistant(sess models.Session) string {
	msgs := sess.State.Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == review.RoleAssistant {
			return msgs[i].Content
		}
	}
	return ""
}
