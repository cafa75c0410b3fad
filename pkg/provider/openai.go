package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/comfydata276/reviewforge/pkg/models"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	pollDeadline         = 10 * time.Minute
	pollInterval         = 3 * time.Second
	completionWindow     = "24h"
	batchEndpointChat    = "/v1/chat/completions"
)

// OpenAI is the reference batch-oriented adapter. It follows the state
// machine build_jsonl -> upload_file -> create_batch -> poll_status ->
// download_output, falling back to per-item calls when any stage fails.
type OpenAI struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewOpenAI constructs an adapter bound to a decrypted API key.
func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{
		apiKey:  apiKey,
		baseURL: defaultOpenAIBaseURL,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) authHeader(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
}

type chatBody struct {
	Model           string        `json:"model"`
	Messages        []chatMessage `json:"messages"`
	ReasoningEffort string        `json:"reasoning_effort,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// batchLine is one JSONL request line in the Batch API's envelope format.
// custom_id ties the (unordered) output line back to its input.
type batchLine struct {
	CustomID string   `json:"custom_id"`
	Method   string   `json:"method"`
	URL      string   `json:"url"`
	Body     chatBody `json:"body"`
}

func customID(i int) string {
	return fmt.Sprintf("req-%d", i)
}

// AnalyzeBatch uploads a JSONL file of per-input chat requests, creates a
// batch job, polls it to completion, and downloads the output, realigning
// the unordered output lines to inputs by custom_id. Any non-completed
// terminal state or HTTP failure at any stage downgrades to per-item
// AnalyzeSingle calls.
func (o *OpenAI) AnalyzeBatch(ctx context.Context, inputs []string, prompt, model string, effort models.ReasoningEffort, progress ProgressFunc) ([]Result, error) {
	fallback := func() []Result {
		out := make([]Result, len(inputs))
		for i, inp := range inputs {
			out[i] = o.AnalyzeSingle(ctx, BuildPrompt(prompt, inp), model, effort)
			if progress != nil {
				progress(i+1, len(inputs))
			}
		}
		return out
	}

	var jsonl bytes.Buffer
	for i, inp := range inputs {
		body := chatBody{
			Model:    model,
			Messages: []chatMessage{{Role: "user", Content: BuildPrompt(prompt, inp)}},
		}
		if effort != "" {
			body.ReasoningEffort = string(effort)
		}
		line, err := json.Marshal(batchLine{
			CustomID: customID(i),
			Method:   http.MethodPost,
			URL:      batchEndpointChat,
			Body:     body,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal batch line: %w", err)
		}
		jsonl.Write(line)
		jsonl.WriteByte('\n')
	}

	fileID, ok := o.uploadFile(ctx, jsonl.Bytes())
	if !ok {
		return fallback(), nil
	}

	batchID, ok := o.createBatch(ctx, fileID)
	if !ok {
		return fallback(), nil
	}

	outputFileID, ok := o.pollBatch(ctx, batchID)
	if !ok {
		return fallback(), nil
	}

	lines, ok := o.downloadOutput(ctx, outputFileID)
	if !ok {
		return fallback(), nil
	}

	// Output lines come back in arbitrary order; realign them to inputs by
	// custom_id. An input with no matching output line carries a per-item
	// error instead of someone else's response.
	results := make([]Result, len(inputs))
	for i := range results {
		results[i] = Result{Err: fmt.Errorf("batch output missing line for %s", customID(i))}
	}
	matched := 0
	for _, line := range lines {
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			continue
		}
		id, _ := obj["custom_id"].(string)
		idxStr, ok := strings.CutPrefix(id, "req-")
		if !ok {
			continue
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil || idx < 0 || idx >= len(inputs) {
			continue
		}
		results[idx] = Result{Raw: obj}
		matched++
	}
	if progress != nil {
		progress(matched, len(inputs))
	}
	return results, nil
}

func (o *OpenAI) uploadFile(ctx context.Context, jsonl []byte) (string, bool) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("purpose", "batch")
	part, err := w.CreateFormFile("file", "requests.jsonl")
	if err != nil {
		return "", false
	}
	if _, err := part.Write(jsonl); err != nil {
		return "", false
	}
	if err := w.Close(); err != nil {
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/files", &body)
	if err != nil {
		return "", false
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	o.authHeader(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", false
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return "", false
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.ID == "" {
		return "", false
	}
	return out.ID, true
}

func (o *OpenAI) createBatch(ctx context.Context, inputFileID string) (string, bool) {
	payload := map[string]string{
		"input_file_id":     inputFileID,
		"endpoint":          batchEndpointChat,
		"completion_window": completionWindow,
	}
	b, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/batches", bytes.NewReader(b))
	if err != nil {
		return "", false
	}
	req.Header.Set("Content-Type", "application/json")
	o.authHeader(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", false
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return "", false
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.ID == "" {
		return "", false
	}
	return out.ID, true
}

func (o *OpenAI) pollBatch(ctx context.Context, batchID string) (string, bool) {
	deadline := time.Now().Add(pollDeadline)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", false
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/batches/"+batchID, nil)
		if err != nil {
			return "", false
		}
		o.authHeader(req)

		resp, err := o.client.Do(req)
		if err != nil {
			return "", false
		}

		var out struct {
			Status       string `json:"status"`
			OutputFileID string `json:"output_file_id"`
		}
		decodeErr := json.NewDecoder(resp.Body).Decode(&out)
		_ = resp.Body.Close()
		if resp.StatusCode >= 300 || decodeErr != nil {
			return "", false
		}

		switch out.Status {
		case "completed":
			if out.OutputFileID == "" {
				return "", false
			}
			return out.OutputFileID, true
		case "failed", "cancelled":
			return "", false
		}
	}
	return "", false
}

func (o *OpenAI) downloadOutput(ctx context.Context, fileID string) ([]string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/files/"+fileID+"/content", nil)
	if err != nil {
		return nil, false
	}
	o.authHeader(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return nil, false
	}

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, false
	}
	return lines, true
}

// AnalyzeSingle issues a single chat-completions call.
func (o *OpenAI) AnalyzeSingle(ctx context.Context, fullPrompt, model string, effort models.ReasoningEffort) Result {
	body := chatBody{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: fullPrompt}},
	}
	if effort != "" {
		body.ReasoningEffort = string(effort)
	}
	b, err := json.Marshal(body)
	if err != nil {
		return Result{Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return Result{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	o.authHeader(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return Result{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{Err: fmt.Errorf("decode response: %w", err)}
	}
	return Result{Raw: out}
}
