// Package worker runs the face detector as an external process.
//
// Frames go to the child's stdin and results come back on a dedicated pipe
// (FD 3) so the child's own logging on stdout/stderr never corrupts the
// stream. Every message in both directions is framed as [uint32 BE length][body].
//
// Request body:  [uint32 width][uint32 height][RGB565 pixels]
// Response body: [status byte] then
//
//	status 0: [uint32 faces] faces x ([4]int32 box, [128]float32 feature, float32 score)
//	status 1: [uint32 length][message]
package worker

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/andresmejia3/kiosk/internal/types"
	"github.com/andresmejia3/kiosk/internal/utils" // Using the SafeCommand wrapper
	"github.com/rs/zerolog/log"
)

const (
	statusOK    = 0
	statusError = 1

	// Upper bound on a response, guards against a desynchronized stream.
	maxResponse = 16 << 20
)

// DefaultCommand starts the bundled Python worker.
var DefaultCommand = []string{"python3", "-u", "python/worker.py"}

type PythonWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser

	mu  sync.Mutex
	req bytes.Buffer
}

// NewPythonWorker starts command (DefaultCommand when empty) as worker id.
func NewPythonWorker(id int, command []string) (*PythonWorker, error) {
	if len(command) == 0 {
		command = DefaultCommand
	}
	py := utils.NewSafeCommand(command[0], command[1:]...)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	log.Debug().Int("worker", id).Strs("cmd", command).Msg("Detector worker started")
	return &PythonWorker{
		ID:       id,
		Cmd:      py,
		Stdin:    stdin,
		DataPipe: r,
	}, nil
}

// Communicate sends one framed request and reads one framed response.
func (w *PythonWorker) Communicate(data []byte) ([]byte, error) {
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, err // This is where we catch the "ModuleNotFoundError" crash
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen > maxResponse {
		return nil, fmt.Errorf("response of %d bytes exceeds limit", respLen)
	}
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// ProcessFrame runs detection on one frame. The frame is copied into the
// request before returning, so f.Data may be a borrowed capture buffer.
func (w *PythonWorker) ProcessFrame(f types.Frame) ([]types.Candidate, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.req.Reset()
	binary.Write(&w.req, binary.BigEndian, uint32(f.Width))
	binary.Write(&w.req, binary.BigEndian, uint32(f.Height))
	w.req.Write(f.Data)

	resp, err := w.Communicate(w.req.Bytes())
	if err != nil {
		return nil, fmt.Errorf("worker %d: %w", w.ID, err)
	}
	return decodeResponse(resp)
}

// Detect implements the recognition detector.
func (w *PythonWorker) Detect(f types.Frame) ([]types.Candidate, error) {
	return w.ProcessFrame(f)
}

// Close shuts the worker down and waits for the process to exit.
func (w *PythonWorker) Close() error {
	w.Stdin.Close()
	w.DataPipe.Close()
	if w.Cmd == nil {
		return nil
	}
	if err := w.Cmd.Wait(); err != nil && w.Cmd.Stderr.Len() > 0 {
		log.Debug().Int("worker", w.ID).Str("stderr", w.Cmd.Stderr.String()).Msg("Detector worker exited")
	}
	return nil
}

func decodeResponse(resp []byte) ([]types.Candidate, error) {
	r := bytes.NewReader(resp)
	status, err := r.ReadByte()
	if err != nil {
		return nil, errors.New("empty worker response")
	}

	switch status {
	case statusOK:
	case statusError:
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, fmt.Errorf("malformed worker error: %w", err)
		}
		if int64(n) > int64(r.Len()) {
			return nil, fmt.Errorf("malformed worker error: message of %d bytes", n)
		}
		msg := make([]byte, n)
		io.ReadFull(r, msg)
		return nil, fmt.Errorf("python worker error: %s", msg)
	default:
		return nil, fmt.Errorf("unknown worker status %d", status)
	}

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("malformed worker response: %w", err)
	}

	cands := make([]types.Candidate, 0, min(int(count), 16))
	for i := uint32(0); i < count; i++ {
		var face struct {
			Box   [4]int32
			Vec   [types.FeatureSize]float32
			Score float32
		}
		if err := binary.Read(r, binary.BigEndian, &face); err != nil {
			return nil, fmt.Errorf("malformed face %d: %w", i, err)
		}
		c := types.Candidate{Vec: face.Vec[:], Score: face.Score}
		for j, v := range face.Box {
			c.Loc[j] = int(v)
		}
		cands = append(cands, c)
	}
	return cands, nil
}
