package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/logger"
)

const (
	GeminiBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	GroqBaseURL       = "https://api.groq.com/openai/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"

	GroqModel = "llama-3.3-70b-versatile"

	DefaultProviderTimeout = 60 * time.Second

	systemInstruction = "You are a coach for competitive programmers reviewing a finished contest. Always respond with valid JSON only."

	llmTemperature = 0.7
	llmMaxTokens   = 2000
)

// PreferredGeminiModels orders the models discovered for a key, best first.
// Models not listed here are tried afterwards in discovery order.
var PreferredGeminiModels = []string{
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
	"gemini-1.5-pro",
	"gemini-1.5-flash",
	"gemini-1.5-flash-8b",
}

// OpenRouterFallbackModels are sent together with route=fallback.
var OpenRouterFallbackModels = []string{
	"google/gemma-3-1b-it:free",
	"meta-llama/llama-3.2-3b-instruct:free",
	"mistralai/mistral-7b-instruct:free",
}

var errEmptyCompletion = errors.New("empty response content")

// ProviderConfig configures the provider chain. Empty keys disable a
// provider; base URLs default to the public endpoints.
type ProviderConfig struct {
	GeminiKeys    []string
	GroqKey       string
	OpenRouterKey string
	Timeout       time.Duration

	GeminiBaseURL     string
	GroqBaseURL       string
	OpenRouterBaseURL string
}

// ProviderChain generates reflections by asking Gemini (each configured key,
// each available model), then Groq, then OpenRouter, stopping at the first
// non-empty completion.
type ProviderChain struct {
	cfg    ProviderConfig
	client *http.Client

	mu           sync.Mutex
	geminiModels map[string][]string
}

func NewProviderChain(cfg ProviderConfig) *ProviderChain {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProviderTimeout
	}
	if cfg.GeminiBaseURL == "" {
		cfg.GeminiBaseURL = GeminiBaseURL
	}
	if cfg.GroqBaseURL == "" {
		cfg.GroqBaseURL = GroqBaseURL
	}
	if cfg.OpenRouterBaseURL == "" {
		cfg.OpenRouterBaseURL = OpenRouterBaseURL
	}
	keys := cfg.GeminiKeys[:0:0]
	for _, k := range cfg.GeminiKeys {
		if k != "" {
			keys = append(keys, k)
		}
	}
	cfg.GeminiKeys = keys

	return &ProviderChain{
		cfg:          cfg,
		client:       &http.Client{Timeout: cfg.Timeout},
		geminiModels: make(map[string][]string),
	}
}

// Configured reports whether at least one provider has a key.
func (p *ProviderChain) Configured() bool {
	return len(p.cfg.GeminiKeys) > 0 || p.cfg.GroqKey != "" || p.cfg.OpenRouterKey != ""
}

func (p *ProviderChain) Generate(ctx context.Context, in ReflectionInput) ReflectionOutput {
	if !p.Configured() {
		return ReflectionOutput{Error: "No reflection provider keys configured (GEMINI_API_KEY, GROQ_API_KEY or OPENROUTER_API_KEY)"}
	}

	prompt := BuildReflectionPrompt(in)
	var failures []string

	if len(p.cfg.GeminiKeys) > 0 {
		content, model, err := p.callGeminiWithFallback(ctx, prompt)
		if err == nil {
			return ParseReflection(content, model)
		}
		failures = append(failures, "Gemini: "+err.Error())
	} else {
		failures = append(failures, "Gemini: not configured")
	}

	if p.cfg.GroqKey != "" {
		content, model, err := p.callGroq(ctx, prompt)
		if err == nil {
			return ParseReflection(content, model)
		}
		failures = append(failures, "Groq: "+err.Error())
	} else {
		failures = append(failures, "Groq: not configured")
	}

	if p.cfg.OpenRouterKey != "" {
		content, model, err := p.callOpenRouter(ctx, prompt)
		if err == nil {
			return ParseReflection(content, model)
		}
		failures = append(failures, "OpenRouter: "+err.Error())
	} else {
		failures = append(failures, "OpenRouter: not configured")
	}

	logger.Warn().Strs("failures", failures).Msg("All reflection providers failed")
	return ReflectionOutput{Error: "All providers failed. " + strings.Join(failures, ". ")}
}

func (p *ProviderChain) callGeminiWithFallback(ctx context.Context, prompt string) (string, string, error) {
	var errs []string
	for i, key := range p.cfg.GeminiKeys {
		label := fmt.Sprintf("key%d", i+1)
		models, err := p.geminiModelsFor(ctx, key)
		if err != nil || len(models) == 0 {
			errs = append(errs, label+": no models available")
			continue
		}
		for _, model := range models {
			content, err := p.callGemini(ctx, prompt, model, key)
			if err == nil {
				logger.Debug().Str("model", model).Str("key", label).Msg("Gemini reflection generated")
				return content, "gemini/" + model, nil
			}
			errs = append(errs, fmt.Sprintf("%s/%s: %v", label, model, err))
			logger.Debug().Err(err).Str("model", model).Str("key", label).Msg("Gemini model failed")
			if ctx.Err() != nil {
				return "", "", ctx.Err()
			}
		}
	}
	if len(errs) > 5 {
		errs = errs[:5]
	}
	return "", "", fmt.Errorf("all keys/models failed: %s", strings.Join(errs, "; "))
}

type geminiModelList struct {
	Models []struct {
		Name                       string   `json:"name"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

// geminiModelsFor lists the models a key can call, in preference order.
// Successful listings are cached per key for the life of the chain.
func (p *ProviderChain) geminiModelsFor(ctx context.Context, key string) ([]string, error) {
	p.mu.Lock()
	cached, ok := p.geminiModels[key]
	p.mu.Unlock()
	if ok {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.cfg.GeminiBaseURL+"/models?key="+url.QueryEscape(key), nil)
	if err != nil {
		return nil, err
	}
	var list geminiModelList
	if err := p.doJSON(req, &list); err != nil {
		logger.Warn().Err(err).Msg("Failed to list Gemini models")
		return nil, err
	}

	var available []string
	for _, m := range list.Models {
		if slices.Contains(m.SupportedGenerationMethods, "generateContent") {
			available = append(available, strings.TrimPrefix(m.Name, "models/"))
		}
	}
	sorted := make([]string, 0, len(available))
	for _, preferred := range PreferredGeminiModels {
		if slices.Contains(available, preferred) {
			sorted = append(sorted, preferred)
		}
	}
	for _, m := range available {
		if !slices.Contains(sorted, m) {
			sorted = append(sorted, m)
		}
	}

	p.mu.Lock()
	p.geminiModels[key] = sorted
	p.mu.Unlock()
	return sorted, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction geminiContent   `json:"systemInstruction"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *ProviderChain) callGemini(ctx context.Context, prompt, model, key string) (string, error) {
	body := geminiRequest{
		Contents:          []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: systemInstruction}}},
	}
	body.GenerationConfig.Temperature = llmTemperature
	body.GenerationConfig.MaxOutputTokens = llmMaxTokens

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.cfg.GeminiBaseURL, model, url.QueryEscape(key))
	req, err := newJSONRequest(ctx, endpoint, body)
	if err != nil {
		return "", err
	}

	var resp geminiResponse
	if err := p.doJSON(req, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", errors.New(resp.Error.Message)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("no candidates in response")
	}
	parts := resp.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].Text == "" {
		return "", errEmptyCompletion
	}
	return parts[0].Text, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Models      []string      `json:"models,omitempty"`
	Route       string        `json:"route,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func chatMessages(prompt string) []chatMessage {
	return []chatMessage{
		{Role: "system", Content: systemInstruction},
		{Role: "user", Content: prompt},
	}
}

func (p *ProviderChain) callGroq(ctx context.Context, prompt string) (string, string, error) {
	req, err := newJSONRequest(ctx, p.cfg.GroqBaseURL+"/chat/completions", chatRequest{
		Model:       GroqModel,
		Messages:    chatMessages(prompt),
		Temperature: llmTemperature,
		MaxTokens:   llmMaxTokens,
	})
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.GroqKey)

	var resp chatResponse
	if err := p.doJSON(req, &resp); err != nil {
		return "", "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", "", errEmptyCompletion
	}
	return resp.Choices[0].Message.Content, "groq/" + GroqModel, nil
}

func (p *ProviderChain) callOpenRouter(ctx context.Context, prompt string) (string, string, error) {
	req, err := newJSONRequest(ctx, p.cfg.OpenRouterBaseURL+"/chat/completions", chatRequest{
		Models:      OpenRouterFallbackModels,
		Route:       "fallback",
		Messages:    chatMessages(prompt),
		Temperature: llmTemperature,
		MaxTokens:   llmMaxTokens,
	})
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.OpenRouterKey)
	req.Header.Set("X-Title", "Circle of Inevitability")

	var resp chatResponse
	if err := p.doJSON(req, &resp); err != nil {
		return "", "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", "", errEmptyCompletion
	}
	model := resp.Model
	if model == "" {
		model = OpenRouterFallbackModels[0]
	}
	return resp.Choices[0].Message.Content, model, nil
}

func newJSONRequest(ctx context.Context, endpoint string, body any) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (p *ProviderChain) doJSON(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
