// Package types defines the shared interfaces that decouple the pipeline
// from its side effects: the filesystem, the external secret engines, the
// template renderer, and interactive prompts. Tests substitute fakes for
// any of them.
package types

import "io/fs"

// FS abstracts filesystem operations so the pipeline can run against the
// real OS filesystem in production and a scratch tree in tests.
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	Lstat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error
	MkdirAll(path string, perm fs.FileMode) error
	Remove(name string) error
	Rename(oldpath, newpath string) error
	Symlink(oldname, newname string) error
	Readlink(name string) (string, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	Chmod(name string, mode fs.FileMode) error
}

// SecretEngine resolves a secret reference through an external backend.
// The engine identifier selects the backend (currently only "1password");
// the reference is backend-specific (e.g. "op://Vault/Item/field").
type SecretEngine interface {
	Resolve(engine, reference string) (string, error)
}

// Renderer turns a template body plus a flattened variable mapping into
// rendered text. The template language itself is a collaborator, not part
// of the pipeline.
type Renderer interface {
	Render(name, body string, vars map[string]interface{}) (string, error)
}

// Prompter abstracts interactive terminal prompts. Select presents a list
// of options and returns the chosen index; Input collects free-form text
// seeded with an initial value.
type Prompter interface {
	Select(prompt string, options []string, defaultIndex int) (int, error)
	Input(prompt, initial string) (string, error)
}
