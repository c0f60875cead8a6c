// Package fake provides fake implementations for interfaces commonly used in
// the repository. The implementations offer configuration to return errors
// when it is needed by the unit test and it is also possible to record the
// calls of the functions of an object in some cases.
package fake

import (
	"encoding/json"
	"io"

	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

// Call is a tool to keep track of a function calls.
type Call struct {
	calls [][]interface{}
}

// NewCall returns a new empty call monitor.
func NewCall() *Call {
	return &Call{}
}

// Get returns the nth call ith parameter.
func (c *Call) Get(n, i int) interface{} {
	if c == nil {
		return nil
	}

	return c.calls[n][i]
}

// Len returns the number of calls.
func (c *Call) Len() int {
	if c == nil {
		return 0
	}

	return len(c.calls)
}

// Add adds a call to the list.
func (c *Call) Add(args ...interface{}) {
	if c == nil {
		return
	}

	c.calls = append(c.calls, args)
}

// GetError returns the fake error.
func GetError() error {
	return fakeErr
}

// Err returns the message wrapped the same way the fake error is wrapped by
// the implementations.
func Err(msg string) string {
	return msg + ": fake error"
}

var fakeErr = xerrors.New("fake error")

// GoodFormat is the format used by the fake contexts.
const GoodFormat = serde.Format("FakeFormat")

// BadFormat is a format to register engines that produce errors.
const BadFormat = serde.Format("BadFormat")

// Message is a fake implementation of a message.
//
// - implements serde.Message
type Message struct {
	Digest []byte
}

// Fingerprint implements serde.Fingerprinter.
func (m Message) Fingerprint(w io.Writer) error {
	_, err := w.Write(m.Digest)
	return err
}

// Serialize implements serde.Message.
func (m Message) Serialize(ctx serde.Context) ([]byte, error) {
	return []byte(`{}`), nil
}

// MessageFactory is a fake implementation of a message factory.
//
// - implements serde.Factory
type MessageFactory struct {
	err error
}

// NewBadMessageFactory returns a factory that returns an error.
func NewBadMessageFactory() MessageFactory {
	return MessageFactory{err: fakeErr}
}

// Deserialize implements serde.Factory.
func (f MessageFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	return Message{}, f.err
}

// Format is a fake implementation of a format engine.
//
// - implements serde.FormatEngine
type Format struct {
	err  error
	Msg  serde.Message
	Call *Call
}

// NewBadFormat returns a format engine that returns an error.
func NewBadFormat() Format {
	return Format{err: fakeErr}
}

// Encode implements serde.FormatEngine.
func (f Format) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	f.Call.Add(ctx, msg)
	return []byte(`fake format`), f.err
}

// Decode implements serde.FormatEngine.
func (f Format) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	f.Call.Add(ctx, data)

	if f.Msg != nil {
		return f.Msg, f.err
	}

	return Message{}, f.err
}

// ContextEngine is a fake implementation of a serialization context.
//
// - implements serde.ContextEngine
type ContextEngine struct {
	Count  *Counter
	format serde.Format
	err    error
}

// NewContext returns a fake context.
func NewContext() serde.Context {
	return serde.NewContext(ContextEngine{
		format: serde.Format("FakeFormat"),
	})
}

// NewContextWithFormat returns a fake context using the format.
func NewContextWithFormat(f serde.Format) serde.Context {
	return serde.NewContext(ContextEngine{
		format: f,
	})
}

// NewBadContext returns a fake context that produces errors.
func NewBadContext() serde.Context {
	return serde.NewContext(ContextEngine{
		format: serde.Format("FakeFormat"),
		err:    fakeErr,
	})
}

// NewBadContextWithDelay returns a fake context that produces errors after a
// given amount of calls.
func NewBadContextWithDelay(delay int) serde.Context {
	return serde.NewContext(ContextEngine{
		Count:  &Counter{Value: delay},
		format: serde.Format("FakeFormat"),
		err:    fakeErr,
	})
}

// GetFormat implements serde.ContextEngine.
func (ctx ContextEngine) GetFormat() serde.Format {
	return ctx.format
}

// Marshal implements serde.ContextEngine.
func (ctx ContextEngine) Marshal(m interface{}) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	if ctx.errAllowed() {
		return data, ctx.err
	}

	return data, nil
}

// Unmarshal implements serde.ContextEngine.
func (ctx ContextEngine) Unmarshal(data []byte, m interface{}) error {
	if ctx.errAllowed() {
		return ctx.err
	}

	return json.Unmarshal(data, m)
}

func (ctx ContextEngine) errAllowed() bool {
	if ctx.err == nil {
		return false
	}

	if ctx.Count != nil && !ctx.Count.Done() {
		ctx.Count.Decrease()
		return false
	}

	return true
}

// Counter is a helper to delay errors or actions. It can be nil without
// panics.
type Counter struct {
	Value int
}

// NewCounter returns a new counter set to the given value.
func NewCounter(value int) *Counter {
	return &Counter{
		Value: value,
	}
}

// Done returns true when the counter reached zero.
func (c *Counter) Done() bool {
	return c == nil || c.Value <= 0
}

// Decrease decrements the counter.
func (c *Counter) Decrease() {
	if c == nil {
		return
	}

	c.Value--
}
