package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ngoclaw/agentcore/internal/application"
	"github.com/ngoclaw/agentcore/internal/domain/entity"
	"github.com/ngoclaw/agentcore/internal/domain/hitl"
	"github.com/ngoclaw/agentcore/internal/infrastructure/config"
	"github.com/ngoclaw/agentcore/internal/infrastructure/eventbus"
	"github.com/ngoclaw/agentcore/internal/infrastructure/logger"
)

const (
	cmdVersion = "0.1.0"
	cmdName    = "agentcore"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   cmdName + " [message]",
		Short: "agentcore — graph-driven tool-using agent runtime",
		Args:  cobra.ArbitraryArgs,
		RunE:  runInteractive,
	}

	rootCmd.Flags().StringP("model", "m", "", "override the configured LLM model")
	rootCmd.Flags().StringP("workspace", "w", "", "workspace root (defaults to the current directory)")
	rootCmd.Flags().BoolP("yolo", "y", false, "auto-approve every HITL interrupt instead of prompting")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", cmdName, cmdVersion)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runInteractive drives the graph runtime over a single persistent thread
// for the life of the process: every line of stdin becomes one human turn,
// appended to the same entity.SessionState, until the process exits.
func runInteractive(cmd *cobra.Command, args []string) error {
	log, err := logger.NewLogger(logger.Config{Level: "warn", Format: "console", OutputPath: "stderr"})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if m, _ := cmd.Flags().GetString("model"); m != "" {
		cfg.LLM.Model = m
	}
	workspace, _ := os.Getwd()
	if w, _ := cmd.Flags().GetString("workspace"); w != "" {
		workspace = w
	}
	cfg.Workspace = workspace
	yolo, _ := cmd.Flags().GetBool("yolo")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	app, err := application.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("app init: %w", err)
	}
	defer app.Close()

	runtime := app.Runtime()

	events := make(chan entity.AgentEvent, 16)
	runtime.SetEvents(events)
	bus := eventbus.NewInMemoryBus(log, 16)
	bus.Subscribe(eventbus.EventTypeStateChange, renderStepEvent)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridgeEvents(ctx, events, bus)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\ngoodbye")
		cancel()
		os.Exit(0)
	}()

	threadID := uuid.NewString()
	state, err := entity.NewSessionState(threadID, workspace, cfg.Loop.MaxLoops)
	if err != nil {
		return fmt.Errorf("session init: %w", err)
	}

	fmt.Printf("agentcore ready — model=%s workspace=%s thread=%s\n", cfg.LLM.Model, workspace, threadID)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[1;36m>\033[0m ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer rl.Close()

	initial := strings.TrimSpace(strings.Join(args, " "))

	for {
		var line string
		if initial != "" {
			line, initial = initial, ""
		} else {
			raw, err := rl.Readline()
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("readline: %w", err)
			}
			line = strings.TrimSpace(raw)
		}
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		human, err := entity.NewMessage(uuid.NewString(), entity.RoleHuman, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		state = state.Apply(entity.StatePatch{AppendMessages: []*entity.Message{human}}).ResetForNewTurn()

		final, interrupt, err := runtime.Run(ctx, state)
		for interrupt != nil && err == nil {
			resolution := resolveInterrupt(*interrupt, yolo, rl)
			final, interrupt, err = runtime.Resume(ctx, threadID, resolution)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "run error: %v\n", err)
			continue
		}
		state = final

		if last := state.LastMessage(); last != nil {
			fmt.Printf("%s\n", last.Content())
		}
	}
}

// resolveInterrupt prints the pending approval request and, unless running
// in --yolo mode, blocks on stdin for a y/n answer.
func resolveInterrupt(interrupt hitl.Interrupt, yolo bool, rl *readline.Instance) hitl.Resolution {
	if yolo {
		return hitl.Resolution{Approved: true, Reason: "auto-approved (--yolo)"}
	}
	fmt.Printf("\napproval requested: %s(%v) [risk=%s] — %s\n", interrupt.ToolName, interrupt.Arguments, interrupt.RiskLevel, interrupt.Reason)
	rl.SetPrompt("approve? [y/N] ")
	defer rl.SetPrompt("\033[1;36m>\033[0m ")
	answer, err := rl.Readline()
	if err != nil {
		return hitl.Resolution{Approved: false, Reason: "stdin closed"}
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == "y" || answer == "yes" {
		return hitl.Resolution{Approved: true}
	}
	return hitl.Resolution{Approved: false, Reason: "denied by operator"}
}

// bridgeEvents forwards the runtime's AgentEvent stream onto the
// eventbus.Bus so a host can subscribe by event type instead of switching
// on entity.AgentEventType directly.
func bridgeEvents(ctx context.Context, events <-chan entity.AgentEvent, bus *eventbus.InMemoryBus) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			toState := string(ev.Type)
			if ev.StepInfo != nil {
				toState = ev.StepInfo.State
			}
			bus.Publish(ctx, eventbus.NewEvent(eventbus.EventTypeStateChange, eventbus.StateChangePayload{
				ToState: toState,
			}))
			if ev.Type == entity.EventError {
				bus.Publish(ctx, eventbus.NewEvent(eventbus.EventTypeError, eventbus.ErrorPayload{
					Component: "runtime",
					Error:     ev.Error,
				}))
			}
		}
	}
}

func renderStepEvent(_ context.Context, event eventbus.Event) {
	payload, ok := event.Payload().(eventbus.StateChangePayload)
	if !ok || payload.ToState == "" {
		return
	}
	fmt.Fprintf(os.Stderr, "\033[90m… %s\033[0m\n", payload.ToState)
}
