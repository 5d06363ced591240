package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DeltaKind labels one typed delta produced by a line parser.
type DeltaKind string

const (
	// DeltaChunk is primary output text.
	DeltaChunk DeltaKind = "chunk"
	// DeltaReasoning is secondary/explanatory text.
	DeltaReasoning DeltaKind = "reasoning"
	// DeltaDone is emitted exactly once by the reader when the stream ends.
	DeltaDone DeltaKind = "done"
)

// Delta is one typed unit decoded from a protocol frame. Providers may emit
// kinds beyond chunk/reasoning; the reader forwards them untouched.
type Delta struct {
	Kind DeltaKind      `json:"kind"`
	Text string         `json:"text,omitempty"`
	Raw  map[string]any `json:"raw,omitempty"`
}

// LineParser decodes one frame payload into zero or more typed deltas. Each
// provider supplies its own. Returning an error skips the frame; a single
// malformed line must not abort an otherwise healthy stream.
type LineParser func(payload string) ([]Delta, error)

// StreamRequest is a fully constructed request; the reader adds nothing to
// it beyond executing it.
type StreamRequest struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
}

// StreamResult is the accumulated output of one finished stream.
type StreamResult struct {
	Text      string
	Reasoning string
}

const (
	streamEventMarker  = "data:"
	streamDoneSentinel = "[DONE]"
	errorBodySnippet   = 2048
)

// StreamClient reads line-oriented chunked response bodies.
type StreamClient struct {
	HTTP   *http.Client
	Logger *Logger
}

func NewStreamClient(logger *Logger) *StreamClient {
	return &StreamClient{
		HTTP:   &http.Client{Timeout: 0}, // streams are bounded by ctx, not a client timeout
		Logger: logger,
	}
}

// Stream executes the request and feeds every decoded delta to onDelta in
// arrival order, with no batching. Chunk and reasoning deltas are also
// accumulated into the returned result. When the body ends cleanly a single
// done delta is forwarded after everything else.
func (c *StreamClient) Stream(ctx context.Context, req StreamRequest, parseLine LineParser, onDelta func(Delta)) (StreamResult, error) {
	var result StreamResult
	if parseLine == nil {
		return result, errors.New("stream: nil line parser")
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return result, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	client := c.HTTP
	if client == nil {
		client = &http.Client{}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return result, fmt.Errorf("stream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodySnippet))
		return result, fmt.Errorf("stream request failed: status %d: %s", resp.StatusCode, RedactSecrets(strings.TrimSpace(string(body))))
	}
	if resp.Body == nil {
		return result, errors.New("stream request failed: empty response body")
	}

	err = readStreamLines(resp.Body, func(line string) {
		c.handleLine(line, parseLine, onDelta, &result)
	})
	if err != nil {
		return result, fmt.Errorf("read stream: %w", err)
	}

	if onDelta != nil {
		onDelta(Delta{Kind: DeltaDone})
	}
	return result, nil
}

// readStreamLines splits the body into newline-terminated lines, carrying
// the trailing incomplete segment over to the next read. Cutting only at
// newline bytes keeps multi-byte characters intact across chunk boundaries.
func readStreamLines(body io.Reader, onLine func(string)) error {
	var carry []byte
	buf := make([]byte, 8192)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			carry = append(carry, buf[:n]...)
			for {
				idx := bytes.IndexByte(carry, '\n')
				if idx < 0 {
					break
				}
				line := string(carry[:idx])
				carry = carry[idx+1:]
				onLine(strings.TrimSuffix(line, "\r"))
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(carry) > 0 {
					onLine(strings.TrimSuffix(string(carry), "\r"))
				}
				return nil
			}
			return err
		}
	}
}

func (c *StreamClient) handleLine(line string, parseLine LineParser, onDelta func(Delta), result *StreamResult) {
	if !strings.HasPrefix(line, streamEventMarker) {
		return
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, streamEventMarker))
	if payload == "" || payload == streamDoneSentinel {
		return
	}

	deltas, err := parseLine(payload)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Info("skipping malformed stream frame", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return
	}
	for _, d := range deltas {
		switch d.Kind {
		case DeltaChunk:
			result.Text += d.Text
		case DeltaReasoning:
			result.Reasoning += d.Text
		}
		if onDelta != nil {
			onDelta(d)
		}
	}
}

// Complete executes a non-streaming request and returns the raw response
// body. Used for short one-shot calls like title generation.
func (c *StreamClient) Complete(ctx context.Context, req StreamRequest) ([]byte, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodySnippet))
		return nil, fmt.Errorf("request failed: status %d: %s", resp.StatusCode, RedactSecrets(strings.TrimSpace(string(body))))
	}
	return io.ReadAll(resp.Body)
}
