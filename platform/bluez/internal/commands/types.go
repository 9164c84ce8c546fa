//go:build linux

package commands

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/ftag"
	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
	"github.com/godbus/dbus/v5"
)

type NoResult = struct{}

// T is the return value type of the method call.
// If T is of type NoResult, it means the method only returns errors, and no other values.
type Command[T any] struct {
	method string
	args   []any
}

// CommandError describes an error returned by the remote method.
type CommandError struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

func (c CommandError) Error() string {
	sb := strings.Builder{}

	sb.WriteString(c.Name)
	sb.WriteString(": ")
	if c.Description == "" {
		sb.WriteString("No information is provided for this error")
	} else {
		sb.WriteString(c.Description)
	}
	sb.WriteString(".")

	count := 0
	length := len(c.Metadata)
	if length == 0 {
		goto Print
	}

	sb.WriteString(" (")
	for k, v := range c.Metadata {
		count++
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(v)

		if count < length {
			sb.WriteString(", ")
		}
	}
	sb.WriteString(")")

Print:
	return sb.String()
}

func (c *Command[T]) String() string {
	return c.method
}

func (c *Command[T]) Method() string {
	return c.method
}

func (c *Command[T]) Arguments() []any {
	return c.args
}

func (c *Command[T]) WithArgument(value any) *Command[T] {
	c.args = append(c.args, value)

	return c
}

func (c *Command[T]) WithArguments(values ...any) *Command[T] {
	c.args = append(c.args, values...)

	return c
}

// ExecuteWith calls the method on obj, and stores the reply in T.
// If ctx expires before a reply is received, the error carries errorkinds.ErrMethodTimeout.
func (c *Command[T]) ExecuteWith(ctx context.Context, obj dbus.BusObject) (T, error) {
	var result T

	call := obj.CallWithContext(ctx, c.method, 0, c.args...)
	if call.Err != nil {
		return result, c.convertError(ctx, call.Err)
	}

	if _, ok := any(&result).(*NoResult); ok {
		return result, nil
	}

	if err := call.Store(&result); err != nil {
		return result, fault.Wrap(errorkinds.As(errorkinds.ErrMethodCall, err),
			fctx.With(ctx, "error_at", c.method),
			ftag.With(ftag.Internal),
		)
	}

	return result, nil
}

func (c *Command[T]) convertError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return errorkinds.As(errorkinds.ErrMethodTimeout, ctx.Err())

	case ctx.Err() != nil:
		return ctx.Err()
	}

	return errorkinds.As(errorkinds.ErrMethodCall, NewCommandError(err))
}

// NewCommandError converts a D-Bus error to a CommandError.
// Other errors are returned as is.
func NewCommandError(err error) error {
	var dbusErr dbus.Error

	switch e := err.(type) {
	case dbus.Error:
		dbusErr = e

	case *dbus.Error:
		if e == nil {
			return err
		}
		dbusErr = *e

	default:
		if !errors.As(err, &dbusErr) {
			return err
		}
	}

	cerr := CommandError{Name: dbusErr.Name}
	for i, b := range dbusErr.Body {
		s, ok := b.(string)
		if !ok {
			continue
		}

		if i == 0 {
			cerr.Description = s
			continue
		}

		if cerr.Metadata == nil {
			cerr.Metadata = make(map[string]string)
		}
		cerr.Metadata["detail_"+strconv.Itoa(i)] = s
	}

	return cerr
}
