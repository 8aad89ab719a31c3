package sensor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// Serial reads from a microcontroller that prints one decimal ADC count per
// line (e.g. "512\r\n"). Read returns the most recent complete line.
type Serial struct {
	port io.ReadCloser

	mu      sync.RWMutex
	latest  int
	hasData bool
	readErr error
	done    chan struct{}
}

// OpenSerial opens portName at baud and starts consuming lines.
func OpenSerial(portName string, baud int) (*Serial, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	slog.Info("sensor: serial port open", "port", portName, "baud", baud)
	return newSerial(port), nil
}

func newSerial(port io.ReadCloser) *Serial {
	s := &Serial{port: port, done: make(chan struct{})}
	go s.readLines()
	return s
}

func (s *Serial) readLines() {
	defer close(s.done)
	scanner := bufio.NewScanner(s.port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := parseSample(line)
		if err != nil {
			slog.Debug("sensor: ignore serial line", "line", line, "error", err)
			continue
		}
		s.mu.Lock()
		s.latest = v
		s.hasData = true
		s.mu.Unlock()
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	s.mu.Lock()
	s.readErr = err
	s.mu.Unlock()
}

// parseSample accepts a bare integer or a "label: value" line such as the
// "Flex Value: 512" console output of the reference firmware.
func parseSample(line string) (int, error) {
	if i := strings.LastIndexByte(line, ':'); i >= 0 {
		line = strings.TrimSpace(line[i+1:])
	}
	v, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("parse sample %q: %w", line, err)
	}
	return v, nil
}

func (s *Serial) Read(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.readErr != nil {
		return 0, fmt.Errorf("serial read: %w", s.readErr)
	}
	if !s.hasData {
		return 0, ErrNoSample
	}
	return s.latest, nil
}

func (s *Serial) Close() error {
	err := s.port.Close()
	<-s.done
	return err
}
