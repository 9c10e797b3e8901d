package runner

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// T is the test handle passed to harness methods. It implements the subset of
// testing.TB that test bodies and assertion helpers use, and satisfies the
// handle the gate signals skips on.
type T interface {
	Helper()
	Name() string
	Log(args ...any)
	Logf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Fail()
	FailNow()
	Failed() bool
	Skip(args ...any)
	Skipf(format string, args ...any)
	SkipNow()
	Skipped() bool
}

var _ T = (*common)(nil)

// common is the T handed to one method execution. FailNow and SkipNow stop the
// executing goroutine, so every execution runs on a goroutine of its own.
type common struct {
	mu      sync.Mutex
	name    string
	log     log.Logger
	failed  bool
	skipped bool
	errs    []string
	skipMsg string
	panicV  any
}

func newCommon(name string, logger log.Logger) *common {
	return &common{name: name, log: logger}
}

func (c *common) Helper() {}

func (c *common) Name() string {
	return c.name
}

func (c *common) Log(args ...any) {
	c.log.Debug(fmt.Sprint(args...), "test", c.name)
}

func (c *common) Logf(format string, args ...any) {
	c.log.Debug(fmt.Sprintf(format, args...), "test", c.name)
}

func (c *common) Error(args ...any) {
	c.fail(fmt.Sprint(args...))
}

func (c *common) Errorf(format string, args ...any) {
	c.fail(fmt.Sprintf(format, args...))
}

func (c *common) Fatal(args ...any) {
	c.fail(fmt.Sprint(args...))
	c.FailNow()
}

func (c *common) Fatalf(format string, args ...any) {
	c.fail(fmt.Sprintf(format, args...))
	c.FailNow()
}

func (c *common) Fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = true
}

func (c *common) FailNow() {
	c.Fail()
	runtime.Goexit()
}

func (c *common) Failed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

func (c *common) Skip(args ...any) {
	c.setSkip(fmt.Sprint(args...))
	c.SkipNow()
}

func (c *common) Skipf(format string, args ...any) {
	c.setSkip(fmt.Sprintf(format, args...))
	c.SkipNow()
}

func (c *common) SkipNow() {
	c.mu.Lock()
	c.skipped = true
	c.mu.Unlock()
	runtime.Goexit()
}

func (c *common) Skipped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skipped
}

func (c *common) fail(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = true
	c.errs = append(c.errs, msg)
}

func (c *common) setSkip(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipMsg = msg
}

// run executes fn on its own goroutine and waits for it to finish, normally,
// through FailNow/SkipNow, or by panicking.
func (c *common) run(fn func(T)) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				c.mu.Lock()
				c.failed = true
				c.panicV = r
				c.mu.Unlock()
			}
		}()
		fn(c)
	}()
	<-done
}

// failure returns the error a failed execution ends with. A panic value that
// is an error is returned as is.
func (c *common) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.panicV != nil {
		return panicError(c.panicV)
	}
	if len(c.errs) == 0 {
		return errors.New("test failed")
	}
	return errors.New(strings.Join(c.errs, "\n"))
}

func panicError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return errors.New(fmt.Sprint(v))
}
