package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/clone-chat/backend/internal/config"
	analysisModel "github.com/zhouzirui/clone-chat/backend/internal/model/analysis"
	"github.com/zhouzirui/clone-chat/backend/internal/model/questionnaire"
	"github.com/zhouzirui/clone-chat/backend/internal/service/ai"
	"github.com/zhouzirui/clone-chat/backend/internal/service/analysis"
	"github.com/zhouzirui/clone-chat/backend/internal/service/chat"
	"github.com/zhouzirui/clone-chat/backend/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] failed to load .env, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	mode := flag.String("mode", "", "mode: analyze, prompt or chat")
	logPath := flag.String("log", "", "exported chat log to analyze")
	userName := flag.String("user", "", "display name of the user inside the chat log")
	answersPath := flag.String("answers", "", "file with one questionnaire answer per line")
	name := flag.String("name", "", "AI display name")
	message := flag.String("message", "", "chat message to send")
	session := flag.String("session", "cli", "analysis slot key")
	reveal := flag.Bool("reveal", false, "print the reply character by character")
	timeout := flag.Duration("timeout", 90*time.Second, "request timeout")

	flag.Parse()

	if *mode != "analyze" && *mode != "prompt" && *mode != "chat" {
		flag.Usage()
		log.Fatal("select a mode with -mode=analyze, -mode=prompt or -mode=chat")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store := analysisModel.Store(analysisModel.NewMemoryStore())
	if cfg.Analysis.StorePath != "" {
		slots, err := sqlite.Open(cfg.Analysis.StorePath)
		if err != nil {
			log.Fatalf("failed to open analysis store: %v", err)
		}
		defer slots.Close()
		store = slots
	}

	tmpl := ai.NewPromptManager().TemplateOrDefault(cfg.AI.Locale)
	client := newClient(ctx, cfg, tmpl)

	switch *mode {
	case "analyze":
		runAnalyze(ctx, client, store, *session, *logPath, *userName)
	case "prompt":
		svc := chat.NewService(client, tmpl, store)
		sessionID := prepareSession(ctx, svc, *session, *answersPath, *name)
		prompt, err := svc.PersonaPrompt(ctx, sessionID)
		if err != nil {
			log.Fatalf("failed to build prompt: %v", err)
		}
		fmt.Println(prompt)
	case "chat":
		svc := chat.NewService(client, tmpl, store)
		sessionID := prepareSession(ctx, svc, *session, *answersPath, *name)
		runChat(ctx, svc, sessionID, *message, *reveal)
	}
}

func newClient(ctx context.Context, cfg *config.Config, tmpl *ai.PromptTemplate) *ai.Client {
	generator, err := ai.NewGenerator(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("failed to initialize %s generator: %v", cfg.AI.Provider, err)
	}
	if generator == nil {
		log.Printf("[WARN] %s credentials not configured", cfg.AI.Provider)
	}
	return ai.NewClient(generator, cfg.AI.Credential(), tmpl)
}

func runAnalyze(ctx context.Context, client *ai.Client, store analysisModel.Store, key, logPath, userName string) {
	if logPath == "" {
		log.Fatal("analyze mode requires -log")
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		log.Fatalf("failed to read chat log: %v", err)
	}

	extractor := analysis.NewExtractor(client, store)
	result, err := extractor.Analyze(ctx, key, string(data), userName, func(stage analysisModel.Stage, detail string) {
		log.Printf("[%s] %s", stage, detail)
	})
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	fmt.Println(result.Summary)
	fmt.Println()
	fmt.Println(result.Analysis)
}

// prepareSession answers the questionnaire from answersPath and starts the
// chat on a session reading the analysis stored under key.
func prepareSession(ctx context.Context, svc *chat.Service, key, answersPath, name string) string {
	answers, err := readAnswers(answersPath)
	if err != nil {
		log.Fatalf("failed to read answers: %v", err)
	}

	session, err := svc.CreateSession(ctx, name, key)
	if err != nil {
		log.Fatalf("failed to create session: %v", err)
	}

	for i := range session.Questions {
		answer := ""
		if i < len(answers) {
			answer = answers[i]
		}
		if _, err := svc.AnswerQuestion(ctx, session.ID, answer); err != nil {
			log.Fatalf("failed to answer question %d: %v", i+1, err)
		}
	}

	if _, err := svc.StartChat(ctx, session.ID); err != nil {
		log.Fatalf("failed to start chat: %v", err)
	}
	return session.ID
}

func readAnswers(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	answers := make([]string, 0, len(questionnaire.Seed()))
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		answers = append(answers, strings.TrimSpace(scanner.Text()))
	}
	return answers, scanner.Err()
}

func runChat(ctx context.Context, svc *chat.Service, sessionID, message string, reveal bool) {
	if strings.TrimSpace(message) == "" {
		log.Fatal("chat mode requires -message")
	}

	var emit chat.EmitFunc
	if reveal {
		emit = func(delta string) error {
			_, err := fmt.Print(delta)
			return err
		}
	}

	reply, err := svc.SendMessage(ctx, sessionID, message, emit)
	if err != nil {
		log.Fatalf("chat turn failed: %v", err)
	}
	if reveal {
		fmt.Println()
		return
	}
	fmt.Println(reply.Content)
}
