package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/clicktoassignment/backend/internal/config"
	"github.com/clicktoassignment/backend/internal/logger"
	"github.com/google/uuid"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	maxTrackedCalls = 100
)

// ErrLLMNotConfigured is returned when no provider endpoint/key is set.
var ErrLLMNotConfigured = errors.New("LLM provider not configured")

// RateLimitError is a provider failure worth retrying after a pause.
type RateLimitError struct {
	StatusCode int
	Body       string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (status %d): %s", e.StatusCode, e.Body)
}

// IsRateLimited reports whether err is a rate-limit or quota failure.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "quota")
}

type LLMService struct {
	provider    string
	baseURL     string
	model       string
	apiKey      string
	client      *http.Client
	timeout     time.Duration
	maxAttempts int
	backoffBase time.Duration
	sleep       func(ctx context.Context, d time.Duration) error

	apiCalls  []LLMAPICall
	callMutex sync.RWMutex
}

type OllamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type OllamaGenerateResponse struct {
	Model     string `json:"model"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	CreatedAt string `json:"created_at"`
}

type OllamaModelsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// LLMAPICall is one tracked request to the provider.
type LLMAPICall struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Endpoint  string                 `json:"endpoint"`
	Model     string                 `json:"model"`
	JobID     *uint                  `json:"jobId,omitempty"`
	CallType  string                 `json:"callType"`
	Attempt   int                    `json:"attempt"`
	Payload   map[string]interface{} `json:"payload"`
	Status    int                    `json:"status"`
	Duration  time.Duration          `json:"duration"`
	Response  string                 `json:"response"`
	Error     string                 `json:"error,omitempty"`
}

func NewLLMService(cfg config.LLMConfig) *LLMService {
	provider := cfg.Provider
	if provider == "" {
		provider = ProviderOllama
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 3
	}
	backoff := time.Duration(cfg.BackoffBaseMs) * time.Millisecond
	if backoff <= 0 {
		backoff = time.Second
	}

	return &LLMService{
		provider:    provider,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		client:      &http.Client{Timeout: timeout + 5*time.Second},
		timeout:     timeout,
		maxAttempts: attempts,
		backoffBase: backoff,
		sleep:       sleepContext,
		apiCalls:    make([]LLMAPICall, 0),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Configured reports whether the provider has what it needs to be called.
func (ls *LLMService) Configured() bool {
	if ls.baseURL == "" || ls.model == "" {
		return false
	}
	if ls.provider == ProviderOpenAI && ls.apiKey == "" {
		return false
	}
	return true
}

func (ls *LLMService) Provider() string { return ls.provider }
func (ls *LLMService) Model() string    { return ls.model }

// GetAPICalls returns all tracked LLM API calls
func (ls *LLMService) GetAPICalls() []LLMAPICall {
	ls.callMutex.RLock()
	defer ls.callMutex.RUnlock()

	calls := make([]LLMAPICall, len(ls.apiCalls))
	copy(calls, ls.apiCalls)
	return calls
}

// ClearAPICalls clears the API call history
func (ls *LLMService) ClearAPICalls() {
	ls.callMutex.Lock()
	defer ls.callMutex.Unlock()
	ls.apiCalls = make([]LLMAPICall, 0)
}

func (ls *LLMService) addAPICall(call LLMAPICall) {
	ls.callMutex.Lock()
	defer ls.callMutex.Unlock()

	if len(ls.apiCalls) >= maxTrackedCalls {
		ls.apiCalls = ls.apiCalls[1:]
	}
	ls.apiCalls = append(ls.apiCalls, call)
}

func (ls *LLMService) endpoint() string {
	if ls.provider == ProviderOpenAI {
		return "/chat/completions"
	}
	return "/api/generate"
}

// Generate sends prompt to the provider and returns the plain-text answer.
// Rate-limit failures are retried with exponential backoff; anything else
// is returned immediately.
func (ls *LLMService) Generate(ctx context.Context, prompt string, jobID *uint, callType string) (string, error) {
	if !ls.Configured() {
		return "", ErrLLMNotConfigured
	}

	var lastErr error
	for attempt := 1; attempt <= ls.maxAttempts; attempt++ {
		text, err := ls.callOnce(ctx, prompt, jobID, callType, attempt)
		if err == nil {
			return StripMarkdown(text), nil
		}
		lastErr = err

		if !IsRateLimited(err) || attempt == ls.maxAttempts {
			break
		}
		wait := ls.backoffBase * time.Duration(1<<(attempt-1))
		logger.WithLLM(jobID, callType).WithFields(map[string]interface{}{
			"attempt": attempt,
			"wait":    wait.String(),
		}).Warn("LLM rate limited, backing off")
		if err := ls.sleep(ctx, wait); err != nil {
			return "", fmt.Errorf("generation cancelled during backoff: %w", err)
		}
	}
	return "", lastErr
}

func (ls *LLMService) callOnce(ctx context.Context, prompt string, jobID *uint, callType string, attempt int) (string, error) {
	start := time.Now()
	call := LLMAPICall{
		ID:        uuid.NewString(),
		Timestamp: start,
		Endpoint:  ls.endpoint(),
		Model:     ls.model,
		JobID:     jobID,
		CallType:  callType,
		Attempt:   attempt,
		Payload:   map[string]interface{}{"prompt_length": len(prompt)},
	}
	defer func() {
		call.Duration = time.Since(start)
		ls.addAPICall(call)
	}()

	body, err := ls.requestBody(prompt)
	if err != nil {
		call.Error = err.Error()
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, ls.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, ls.baseURL+ls.endpoint(), bytes.NewReader(body))
	if err != nil {
		call.Error = err.Error()
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ls.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+ls.apiKey)
	}

	resp, err := ls.client.Do(req)
	if err != nil {
		call.Error = err.Error()
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()
	call.Status = resp.StatusCode

	if resp.StatusCode == http.StatusTooManyRequests {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		rl := &RateLimitError{StatusCode: resp.StatusCode, Body: string(raw)}
		call.Error = rl.Error()
		return "", rl
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		call.Error = fmt.Sprintf("status %d: %s", resp.StatusCode, string(raw))
		return "", fmt.Errorf("LLM API returned status %d, body: %s", resp.StatusCode, string(raw))
	}

	text, err := ls.decode(resp.Body)
	if err != nil {
		call.Error = err.Error()
		return "", err
	}
	call.Response = text
	return text, nil
}

func (ls *LLMService) requestBody(prompt string) ([]byte, error) {
	var payload interface{}
	if ls.provider == ProviderOpenAI {
		payload = chatCompletionRequest{
			Model:       ls.model,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			Temperature: 0.4,
		}
	} else {
		payload = OllamaGenerateRequest{
			Model:  ls.model,
			Prompt: prompt,
			Stream: false,
			Options: map[string]interface{}{
				"temperature": 0.4,
				"top_p":       0.9,
			},
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return data, nil
}

func (ls *LLMService) decode(r io.Reader) (string, error) {
	if ls.provider == ProviderOpenAI {
		var out chatCompletionResponse
		if err := json.NewDecoder(r).Decode(&out); err != nil {
			return "", fmt.Errorf("failed to decode completion response: %w", err)
		}
		if len(out.Choices) == 0 {
			return "", fmt.Errorf("completion response has no choices")
		}
		return out.Choices[0].Message.Content, nil
	}

	var out OllamaGenerateResponse
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode Ollama response: %w", err)
	}
	return out.Response, nil
}

func (ls *LLMService) modelsURL() string {
	if ls.provider == ProviderOpenAI {
		return ls.baseURL + "/models"
	}
	return ls.baseURL + "/api/tags"
}

func (ls *LLMService) getModels(ctx context.Context) (*http.Response, error) {
	if !ls.Configured() {
		return nil, ErrLLMNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ls.modelsURL(), nil)
	if err != nil {
		return nil, err
	}
	if ls.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+ls.apiKey)
	}
	return ls.client.Do(req)
}

// CheckLLMHealth verifies the provider is reachable
func (ls *LLMService) CheckLLMHealth(ctx context.Context) error {
	resp, err := ls.getModels(ctx)
	if err != nil {
		return fmt.Errorf("LLM service not available: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("LLM service returned status %d", resp.StatusCode)
	}
	return nil
}

// GetAvailableModels returns the list of available models
func (ls *LLMService) GetAvailableModels(ctx context.Context) ([]string, error) {
	resp, err := ls.getModels(ctx)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get models: status %d", resp.StatusCode)
	}

	var names []string
	if ls.provider == ProviderOpenAI {
		var out chatModelsResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, err
		}
		for _, m := range out.Data {
			names = append(names, m.ID)
		}
		return names, nil
	}

	var out OllamaModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	for _, m := range out.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

var (
	headingPrefix = regexp.MustCompile(`^#+\s*`)
	bulletPrefix  = regexp.MustCompile(`^[-*•]\s+`)
)

// StripMarkdown removes leading heading marks and bullets from each line.
func StripMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimLeft(line, " \t")
		line = headingPrefix.ReplaceAllString(line, "")
		line = bulletPrefix.ReplaceAllString(line, "")
		lines[i] = strings.TrimRight(line, "\r")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
