package cmd

import (
	"github.com/ppp/pppctl/internal/operation"
)

// mockOutputInterface is a manual mock for testing
type mockOutputInterface struct {
	calls   []call
	answers map[string]string
}

type call struct {
	method string
	args   []any
}

func (m *mockOutputInterface) Infof(format string, a ...any) {
	m.calls = append(m.calls, call{method: "Infof", args: []any{format, a}})
}
func (m *mockOutputInterface) Errorf(format string, a ...any) {
	m.calls = append(m.calls, call{method: "Errorf", args: []any{format, a}})
}
func (m *mockOutputInterface) Successf(format string, a ...any) {
	m.calls = append(m.calls, call{method: "Successf", args: []any{format, a}})
}
func (m *mockOutputInterface) Warningf(format string, a ...any) {
	m.calls = append(m.calls, call{method: "Warningf", args: []any{format, a}})
}
func (m *mockOutputInterface) Table(headers []string, rows [][]string) {
	m.calls = append(m.calls, call{method: "Table", args: []any{headers, rows}})
}
func (m *mockOutputInterface) Println(a ...any) {
	m.calls = append(m.calls, call{method: "Println", args: a})
}
func (m *mockOutputInterface) Blank() {
	m.calls = append(m.calls, call{method: "Blank", args: []any{}})
}
func (m *mockOutputInterface) Bold(text string) string {
	return text
}
func (m *mockOutputInterface) KeyValue(key, value string) {
	m.calls = append(m.calls, call{method: "KeyValue", args: []any{key, value}})
}
func (m *mockOutputInterface) Prompt(prompt string) string {
	m.calls = append(m.calls, call{method: "Prompt", args: []any{prompt}})
	return m.answers[prompt]
}
func (m *mockOutputInterface) PromptSecret(prompt string) string {
	m.calls = append(m.calls, call{method: "PromptSecret", args: []any{prompt}})
	return m.answers[prompt]
}
func (m *mockOutputInterface) OperationSink(title string) operation.Sink {
	m.calls = append(m.calls, call{method: "OperationSink", args: []any{title}})
	return operation.Discard{}
}

// calledWith returns the calls to method.
func (m *mockOutputInterface) calledWith(method string) []call {
	var out []call
	for _, c := range m.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

// keyValues collects every KeyValue call.
func (m *mockOutputInterface) keyValues() map[string]string {
	out := map[string]string{}
	for _, c := range m.calledWith("KeyValue") {
		out[c.args[0].(string)] = c.args[1].(string)
	}
	return out
}
