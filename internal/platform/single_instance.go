package platform

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// ErrAlreadyRunning indicates another instance already holds the lock.
var ErrAlreadyRunning = errors.New("instance already running")

// Request is what a second launch forwards to the running instance.
type Request struct {
	Action string `json:"action"`
	URL    string `json:"url,omitempty"`
}

const (
	ActionOpen = "open"
	ActionShow = "show"
)

// InstanceGuard holds the single-instance lock.
type InstanceGuard struct {
	listener net.Listener
	address  string
	logger   logrus.FieldLogger

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// AddressFor returns the deterministic localhost address for appName.
func AddressFor(appName string) string {
	return fmt.Sprintf("127.0.0.1:%d", portFromName(appName))
}

// AcquireSingleInstance binds the deterministic localhost port for appName.
func AcquireSingleInstance(appName string, logger logrus.FieldLogger) (*InstanceGuard, error) {
	return Listen(AddressFor(appName), logger)
}

// Listen binds address as the single-instance lock.
func Listen(address string, logger logrus.FieldLogger) (*InstanceGuard, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, ErrAlreadyRunning
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &InstanceGuard{
		listener: listener,
		address:  listener.Addr().String(),
		logger:   logger.WithField("component", "instance"),
	}, nil
}

// Serve hands every forwarded request to handle until ctx is done.
func (guard *InstanceGuard) Serve(ctx context.Context, handle func(Request)) error {
	go func() {
		<-ctx.Done()
		_ = guard.Release()
	}()

	for {
		conn, err := guard.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				guard.wg.Wait()
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		guard.wg.Add(1)
		go func() {
			defer guard.wg.Done()
			guard.handleConn(conn, handle)
		}()
	}
}

func (guard *InstanceGuard) handleConn(conn net.Conn, handle func(Request)) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var request Request
		if err := json.Unmarshal(scanner.Bytes(), &request); err != nil {
			guard.logger.WithError(err).Warn("Dropping malformed instance request")
			continue
		}
		handle(request)
	}
}

// Release frees the single instance lock.
func (guard *InstanceGuard) Release() error {
	if guard == nil || guard.listener == nil {
		return nil
	}
	var err error
	guard.closeOnce.Do(func() {
		err = guard.listener.Close()
	})
	return err
}

// Address returns the bound address.
func (guard *InstanceGuard) Address() string {
	if guard == nil {
		return ""
	}
	return guard.address
}

// Forward sends requests to the instance listening on address.
func Forward(ctx context.Context, address string, requests ...Request) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("forward to running instance: %w", err)
	}
	defer conn.Close()

	encoder := json.NewEncoder(conn)
	for _, request := range requests {
		if err := encoder.Encode(request); err != nil {
			return fmt.Errorf("forward to running instance: %w", err)
		}
	}
	return nil
}

func portFromName(appName string) int {
	const (
		minPort = 20000
		maxPort = 39999
	)
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(appName))
	rangeSize := maxPort - minPort + 1
	return minPort + int(hash.Sum32()%uint32(rangeSize))
}
