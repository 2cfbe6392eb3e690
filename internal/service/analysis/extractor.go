package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/zhouzirui/clone-chat/backend/internal/model/analysis"
	"github.com/zhouzirui/clone-chat/backend/internal/service/ai"
)

var (
	ErrAnalysisFailed     = errors.New("analysis failed")
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	ErrInputRequired      = errors.New("chat log and user name are required")
)

// failureMarkers appear in replies that carry an apology or error instead
// of an analysis.
var failureMarkers = []string{"エラー", "すみません"}

// Sender sends one request to the model. *ai.Client implements it.
type Sender interface {
	Send(ctx context.Context, req ai.Request) (string, error)
}

// ProgressFunc receives stage changes and human-readable log lines.
type ProgressFunc func(stage analysis.Stage, detail string)

// Extractor derives a stylistic summary of a user from an uploaded chat
// log and stores it in the slot of the caller's key.
type Extractor struct {
	client Sender
	store  analysis.Store

	mu      sync.Mutex
	running map[string]struct{}
}

// NewExtractor creates an extractor writing into store.
func NewExtractor(client Sender, store analysis.Store) *Extractor {
	return &Extractor{
		client:  client,
		store:   store,
		running: make(map[string]struct{}),
	}
}

// Analyze runs one analysis for key. On failure the returned result has
// stage idle, the error wraps ErrAnalysisFailed and the slot is untouched.
func (e *Extractor) Analyze(ctx context.Context, key, corpus, userName string, progress ProgressFunc) (*analysis.Result, error) {
	userName = strings.TrimSpace(userName)
	if strings.TrimSpace(corpus) == "" || userName == "" {
		return nil, ErrInputRequired
	}

	if !e.begin(key) {
		return nil, ErrAnalysisInProgress
	}
	defer e.end(key)

	result := &analysis.Result{Stage: analysis.StageIdle}
	report := func(stage analysis.Stage, format string, args ...any) {
		detail := fmt.Sprintf(format, args...)
		result.Stage = stage
		result.Details = append(result.Details, detail)
		if progress != nil {
			progress(stage, detail)
		}
	}
	fail := func(cause error) (*analysis.Result, error) {
		log.Printf("[analysis] key=%s failed: %v", key, cause)
		report(analysis.StageIdle, "エラーが発生しました: %v", cause)
		result.Summary = fmt.Sprintf("分析中にエラーが発生しました: %v", cause)
		return result, fmt.Errorf("%w: %w", ErrAnalysisFailed, cause)
	}

	report(analysis.StageExtracting, "LINEデータの抽出を開始しています...")
	report(analysis.StageExtracting, "ユーザー名「%s」のメッセージを検索中...", userName)
	text := Normalize(corpus)
	report(analysis.StageExtracting, "約%d行のデータを処理中...", CountLines(text))

	report(analysis.StageAnalyzing, "分析プロンプトを生成中...")
	instruction := BuildInstruction(userName, Sample(text))

	report(analysis.StageAnalyzing, "AIに分析を依頼中...")
	raw, err := e.client.Send(ctx, ai.Request{Message: instruction})
	if err != nil {
		return fail(err)
	}

	report(analysis.StageUpdating, "AIからの分析結果を受信しました。")
	if reason := rejectReason(raw); reason != "" {
		return fail(errors.New(reason))
	}

	cleaned := Clean(raw)
	if cleaned == "" {
		return fail(errors.New("analysis reply was empty after cleaning"))
	}
	count := CountMessages(raw)

	if err := e.store.Save(ctx, key, cleaned); err != nil {
		return fail(err)
	}

	report(analysis.StageComplete, "分析完了！約%s件のメッセージを分析しました。", count)
	report(analysis.StageComplete, "質問回答後、この分析結果が自動的にプロンプトに組み込まれます。")
	result.Analysis = cleaned
	result.MessageCount = count
	result.Summary = fmt.Sprintf("分析が完了しました。約%s件のメッセージを分析し、特徴を抽出しました。全ての質問に回答すると、このLINE分析結果がAIクローンに自動的に反映されます。", count)

	log.Printf("[analysis] key=%s complete, messages=%s, length=%d", key, count, len(cleaned))
	return result, nil
}

// Clear removes the stored analysis of key.
func (e *Extractor) Clear(ctx context.Context, key string) error {
	return e.store.Delete(ctx, key)
}

// Running reports whether an analysis for key is in flight.
func (e *Extractor) Running(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.running[key]
	return ok
}

func (e *Extractor) begin(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.running[key]; ok {
		return false
	}
	e.running[key] = struct{}{}
	return true
}

func (e *Extractor) end(key string) {
	e.mu.Lock()
	delete(e.running, key)
	e.mu.Unlock()
}

func rejectReason(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "AI分析からの有効な結果が得られませんでした。"
	}
	for _, marker := range failureMarkers {
		if strings.Contains(raw, marker) {
			return "AI分析からの有効な結果が得られませんでした。" + raw
		}
	}
	return ""
}
