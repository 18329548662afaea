package stack

import (
	"runtime"
	"strconv"
	"strings"
)

type Caller interface {
	FunctionID() string
}

type call struct {
	function uintptr
	file     string
	line     int
}

// Call captures the function which called Call, skipping depth frames.
func Call(depth int) Caller {
	var c call
	c.function, c.file, c.line, _ = runtime.Caller(depth + 1)

	return c
}

// Record returns `pkg.(*Type).Func(file.go:42)` for the caller at depth.
func Record(depth int) string {
	var c call
	c.function, c.file, c.line, _ = runtime.Caller(depth + 1)

	return c.record(true)
}

func (c call) FunctionID() string {
	return c.record(false)
}

func (c call) record(withFile bool) string {
	var b strings.Builder

	name := strings.ReplaceAll(runtime.FuncForPC(c.function).Name(), "[...]", "")
	if i := strings.LastIndex(name, "/"); i > -1 {
		b.WriteString(name[:i+1])
		name = name[i+1:]
	}
	parts := strings.Split(name, ".")
	for len(parts) > 1 && strings.HasPrefix(parts[len(parts)-1], "func") {
		parts = parts[:len(parts)-1]
	}
	b.WriteString(strings.Join(parts, "."))

	if withFile {
		file := c.file
		if i := strings.LastIndex(file, "/"); i > -1 {
			file = file[i+1:]
		}
		b.WriteByte('(')
		b.WriteString(file)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(c.line))
		b.WriteByte(')')
	}

	return b.String()
}

type functionID string

func (id functionID) FunctionID() string {
	return string(id)
}

// FunctionID returns a caller with static id or, if id is empty, the caller of FunctionID.
func FunctionID(id string) Caller {
	if id != "" {
		return functionID(id)
	}

	return Call(1)
}
