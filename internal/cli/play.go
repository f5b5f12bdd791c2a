package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"quiztake-service/internal/client"
	"quiztake-service/internal/domain"
	"quiztake-service/internal/infra/catalog"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewPlayCmd builds the terminal quiz client. It keeps a local mirror of the
// attempt so an interrupted run can be resumed, and still works (with a
// locally computed, unverified score) when the server is down.
func NewPlayCmd() *cobra.Command {
	var (
		serverURL  string
		quizID     string
		playerName string
		cachePath  string
		quizzesDir string
		minutes    int
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Take a quiz from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := playOptions{
				serverURL:  serverURL,
				quizID:     quizID,
				playerName: playerName,
				cachePath:  cachePath,
				quizzesDir: quizzesDir,
				totalTime:  time.Duration(minutes) * time.Minute,
			}
			return runPlay(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "quiz server base URL")
	cmd.Flags().StringVar(&quizID, "quiz", "", "quiz id to take (prompted when empty)")
	cmd.Flags().StringVar(&playerName, "name", "", "display name for the results board")
	cmd.Flags().StringVar(&cachePath, "cache", ".quiztake.json", "path of the local attempt mirror")
	cmd.Flags().StringVar(&quizzesDir, "quizzes-dir", "quizzes", "directory holding the quiz files")
	cmd.Flags().IntVar(&minutes, "minutes", 25, "time budget for the attempt")
	return cmd
}

type playOptions struct {
	serverURL  string
	quizID     string
	playerName string
	cachePath  string
	quizzesDir string
	totalTime  time.Duration
}

func runPlay(ctx context.Context, opts playOptions) error {
	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
	store := catalog.New(opts.quizzesDir)
	in := bufio.NewScanner(os.Stdin)

	quizID := opts.quizID
	if quizID == "" {
		infos, err := store.ListQuizzes(ctx)
		if err != nil || len(infos) == 0 {
			return fmt.Errorf("no quizzes found in %s", opts.quizzesDir)
		}
		fmt.Println("Available quizzes:")
		for i, info := range infos {
			fmt.Printf("  %d) %s (%s)\n", i+1, info.Name, info.ID)
		}
		choice := promptLine(in, "Pick a quiz: ")
		idx, err := strconv.Atoi(choice)
		if err != nil || idx < 1 || idx > len(infos) {
			return fmt.Errorf("invalid choice %q", choice)
		}
		quizID = infos[idx-1].ID
	}

	quiz, err := store.LoadQuiz(ctx, quizID)
	if err != nil {
		return fmt.Errorf("load quiz %s: %w", quizID, err)
	}

	api := client.NewAPIClient(opts.serverURL, 5*time.Second)
	cache := client.NewCache(opts.cachePath)
	syncer := client.NewSynchronizer(api, cache, logger)

	rec, answers, remaining, err := openAttempt(ctx, syncer, cache, in, quiz, opts)
	if err != nil {
		return err
	}
	if answers == nil {
		answers = make([]*int, len(quiz.Questions))
	}

	answered := make(chan struct{})
	go func() {
		defer close(answered)
		askQuestions(in, quiz, answers, func() { syncer.SaveProgress(quiz.ID, answers) })
	}()

	timer := client.StartTimer(remaining,
		func(left time.Duration) {
			if left.Round(time.Second)%time.Minute == 0 {
				fmt.Printf("\n[%s remaining]\n", client.FormatRemaining(left))
			}
		},
		nil,
	)
	defer timer.Stop()

	select {
	case <-answered:
	case <-timer.Done():
		fmt.Println("\nTime is up, submitting your answers.")
		// The input goroutine still owns the live sheet; submit the
		// mirrored copy instead of racing it.
		if cached, ok := cache.LoadAnswers(quiz.ID, len(quiz.Questions)); ok {
			answers = cached
		}
	}

	printResult(submitAttempt(ctx, syncer, quiz, rec, answers))
	return nil
}

// openAttempt reconciles local state with the server and returns the session
// to play under, any recovered answers, and the remaining time budget.
func openAttempt(ctx context.Context, syncer *client.Synchronizer, cache *client.Cache, in *bufio.Scanner, quiz domain.Quiz, opts playOptions) (client.SessionRecord, []*int, time.Duration, error) {
	decision := syncer.Resume(ctx, quiz.ID, len(quiz.Questions))

	switch decision.Action {
	case client.ResumeSubmitNow:
		fmt.Println("A previous attempt ran out of time; submitting it now.")
		printResult(submitAttempt(ctx, syncer, quiz, decision.Session, decision.Answers))
		return client.SessionRecord{}, nil, 0, fmt.Errorf("previous attempt closed, run again to start fresh")

	case client.ResumePrompt, client.ResumePromptLocal:
		note := ""
		if decision.Offline {
			note = " (server unreachable, using local clocks)"
		}
		fmt.Printf("Found an unfinished attempt with %s left%s.\n", client.FormatRemaining(decision.Remaining), note)
		if promptYes(in, "Resume it? [y/N] ") {
			return decision.Session, decision.Answers, decision.Remaining, nil
		}
		syncer.DiscardLocal(quiz.ID)

	case client.ResumeConflict:
		fmt.Println("A saved attempt exists but the server rejected its token.")
		if !promptYes(in, "Discard it and start fresh? [y/N] ") {
			return client.SessionRecord{}, nil, 0, fmt.Errorf("aborted: saved attempt token rejected")
		}
		syncer.DiscardLocal(quiz.ID)
	}

	name := strings.TrimSpace(opts.playerName)
	if name == "" {
		if name = cache.LoadName(); name == "" {
			name = promptLine(in, "Your name: ")
		}
	}

	rec, offline, err := syncer.StartSession(ctx, name, quiz.ID, "", opts.totalTime)
	if err != nil {
		return client.SessionRecord{}, nil, 0, err
	}
	if offline {
		fmt.Println("Server unreachable: playing offline, the final score will be unverified.")
	}
	fmt.Printf("Starting %s: %d questions, %s on the clock.\n", quiz.Name, len(quiz.Questions), client.FormatRemaining(opts.totalTime))
	return rec, nil, opts.totalTime, nil
}

// askQuestions walks the quiz. Enter a number to answer, "n"/"p" to move,
// "s" to submit early. Every change is mirrored to the local cache.
func askQuestions(in *bufio.Scanner, quiz domain.Quiz, answers []*int, onChange func()) {
	pos := 0
	for {
		q := quiz.Questions[pos]
		fmt.Printf("\nQuestion %d/%d: %s\n", pos+1, len(quiz.Questions), q.Question)
		for i, opt := range q.Options {
			marker := " "
			if answers[pos] != nil && *answers[pos] == i {
				marker = "*"
			}
			fmt.Printf(" %s %d) %s\n", marker, i+1, opt)
		}
		input := promptLine(in, "> ")

		switch strings.ToLower(input) {
		case "s":
			return
		case "p":
			if pos > 0 {
				pos--
			}
			continue
		case "", "n":
			if pos < len(quiz.Questions)-1 {
				pos++
				continue
			}
			return
		}

		choice, err := strconv.Atoi(input)
		if err != nil || choice < 1 || choice > len(q.Options) {
			fmt.Println("Enter an option number, n(ext), p(rev), or s(ubmit).")
			continue
		}
		idx := choice - 1
		answers[pos] = &idx
		onChange()
		if pos < len(quiz.Questions)-1 {
			pos++
		}
	}
}

func submitAttempt(ctx context.Context, syncer *client.Synchronizer, quiz domain.Quiz, rec client.SessionRecord, answers []*int) (client.Result, error) {
	if answers == nil {
		answers = make([]*int, len(quiz.Questions))
	}
	return syncer.Submit(ctx, quiz, rec, answers)
}

func printResult(result client.Result, err error) {
	if err != nil {
		fmt.Printf("Submit failed: %v\n", err)
		return
	}
	fmt.Printf("\nScore: %d/%d in %s\n", result.Score, result.Total, (time.Duration(result.DurationMs) * time.Millisecond).Round(time.Second))
	if result.Offline {
		fmt.Println("(calculated locally, server unreachable, unverified)")
	}
	if result.Suspicious {
		fmt.Println("Note: this attempt was flagged for review.")
	}
}

func promptLine(in *bufio.Scanner, prompt string) string {
	fmt.Print(prompt)
	if !in.Scan() {
		return ""
	}
	return strings.TrimSpace(in.Text())
}

func promptYes(in *bufio.Scanner, prompt string) bool {
	answer := strings.ToLower(promptLine(in, prompt))
	return answer == "y" || answer == "yes"
}
