// Package testutil holds shared fixtures: dotfiles tree builders and
// scripted fakes for the secret engine and prompter.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteFiles creates files under root from relative path -> content,
// creating parent directories as needed.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

// ReadFile reads a file or fails the test.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// FakeSecretEngine serves secrets from a map and counts lookups.
type FakeSecretEngine struct {
	Calls  int
	Values map[string]string
}

func (e *FakeSecretEngine) Resolve(engine, reference string) (string, error) {
	e.Calls++
	if value, ok := e.Values[engine+":"+reference]; ok {
		return value, nil
	}
	return "", fmt.Errorf("no such secret: %s:%s", engine, reference)
}

// ScriptedPrompter replays canned answers. Running out of answers is a
// test bug and fails loudly.
type ScriptedPrompter struct {
	Selections []int
	Inputs     []string
}

func (p *ScriptedPrompter) Select(prompt string, options []string, defaultIndex int) (int, error) {
	if len(p.Selections) == 0 {
		return 0, fmt.Errorf("unexpected Select(%q)", prompt)
	}
	choice := p.Selections[0]
	p.Selections = p.Selections[1:]
	return choice, nil
}

func (p *ScriptedPrompter) Input(prompt, initial string) (string, error) {
	if len(p.Inputs) == 0 {
		return "", fmt.Errorf("unexpected Input(%q)", prompt)
	}
	text := p.Inputs[0]
	p.Inputs = p.Inputs[1:]
	return text, nil
}
