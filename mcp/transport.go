package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// stopTimeout bounds how long Close waits for a server process to exit.
const stopTimeout = 2 * time.Second

// StreamTransport exchanges newline-delimited JSON over a reader and a
// writer, such as the two ends of a pipe.
type StreamTransport struct {
	w       io.WriteCloser
	encoder *json.Encoder
	decoder *json.Decoder
	mu      sync.Mutex
}

func NewStreamTransport(r io.Reader, w io.WriteCloser) *StreamTransport {
	return &StreamTransport{
		w:       w,
		encoder: json.NewEncoder(w),
		decoder: json.NewDecoder(r),
	}
}

func (t *StreamTransport) Send(request JSONRPCRequest) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.encoder.Encode(request); err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return nil
}

func (t *StreamTransport) SendNotification(notification JSONRPCNotification) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.encoder.Encode(notification); err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	return nil
}

func (t *StreamTransport) Receive() (JSONRPCResponse, error) {
	var response JSONRPCResponse
	if err := t.decoder.Decode(&response); err != nil {
		return response, fmt.Errorf("failed to decode response: %w", err)
	}
	return response, nil
}

// Close closes the writing side, which ends the peer's input.
func (t *StreamTransport) Close() error {
	return t.w.Close()
}

// StdioTransport talks to an MCP server it launches as a subprocess.
type StdioTransport struct {
	*StreamTransport
	cmd *exec.Cmd
}

// NewStdioTransport creates a new stdio transport that launches a subprocess
func NewStdioTransport(command string, args ...string) (*StdioTransport, error) {
	return NewStdioTransportWithEnv(command, nil, args...)
}

// NewStdioTransportWithEnv launches command with env added to the current
// environment. The server's stderr is passed through.
func NewStdioTransportWithEnv(command string, env map[string]string, args ...string) (*StdioTransport, error) {
	cmd := exec.Command(command, args...)
	cmd.Env = os.Environ()
	for key, value := range env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("failed to start MCP server process: %w", err)
	}

	return &StdioTransport{
		StreamTransport: NewStreamTransport(stdout, stdin),
		cmd:             cmd,
	}, nil
}

// Close ends the server's input and waits for it to exit, killing it if it
// does not.
func (t *StdioTransport) Close() error {
	var errs []error
	if err := t.StreamTransport.Close(); err != nil {
		errs = append(errs, err)
	}

	exited := make(chan struct{})
	go func() {
		_ = t.cmd.Wait()
		close(exited)
	}()
	select {
	case <-exited:
	case <-time.After(stopTimeout):
		if err := t.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, err)
		}
		<-exited
	}
	return errors.Join(errs...)
}

// ConnectTransport creates a transport based on the provided configuration
func ConnectTransport(config TransportConfig) (Transport, error) {
	switch config.Type {
	case "stdio":
		if config.Command == "" {
			return nil, fmt.Errorf("command is required for stdio transport")
		}
		return NewStdioTransportWithEnv(config.Command, config.Env, config.Args...)

	default:
		return nil, fmt.Errorf("unsupported transport type: %s", config.Type)
	}
}

// ConnectClient creates and initializes an MCP client with the given configuration
func ConnectClient(ctx context.Context, config TransportConfig) (*Client, error) {
	transport, err := ConnectTransport(config)
	if err != nil {
		return nil, err
	}

	client := NewClient(transport)
	if err := client.Initialize(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}
