package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

var _ driven.PromptStore = (*PromptStore)(nil)

// promptTemplate is a built-in prompt and the number of %s verbs a
// customised copy must keep.
type promptTemplate struct {
	text  string
	verbs int
}

//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var builtinPrompts = map[string]promptTemplate{
	driven.PromptSystem: {
		text: `You are a helpful assistant that answers questions based on the provided context.`,
	},
	driven.PromptAnswerWithSources: {
		verbs: 2,
		text: `Use the following context to answer the question. If you use information from the context, cite the source by referencing [Source X].
If the context doesn't contain relevant information, say so.

Context:
%s

Question: %s

Answer (with source citations):`,
	},
	driven.PromptAnswer: {
		verbs: 2,
		text: `Use the following context to answer the question.
If the context doesn't contain relevant information, say so.

Context:
%s

Question: %s

Answer:`,
	},
}

const promptsReadme = "# docqa prompts\n\n" +
	"Each `.txt` file here replaces a built-in prompt:\n\n" +
	"- `system.txt`: system instruction sent with every question\n" +
	"- `answer_with_sources.txt`: answer prompt asking for [Source N] citations\n" +
	"- `answer.txt`: answer prompt without citations\n\n" +
	"The answer prompts take two `%s` verbs, the retrieved context and then the\n" +
	"question. A file that does not keep both is ignored and the built-in prompt is\n" +
	"used instead. Edits apply to the next command, or to the next query of a\n" +
	"running MCP server.\n"

// PromptStore serves answer prompts from text files in a directory. Missing
// or malformed files fall back to the built-in prompt of the same name.
// The directory is populated with the built-ins on first use.
type PromptStore struct {
	dir string

	seed    sync.Once
	seedErr error

	mu     sync.RWMutex
	loaded map[string]string
}

// NewPromptStore creates a prompt store rooted at dir, or at
// ~/.docqa/prompts when dir is empty. No files are touched until Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".docqa", "prompts")
	}
	return &PromptStore{dir: dir, loaded: make(map[string]string)}, nil
}

// Load returns the prompt called name.
func (s *PromptStore) Load(name string) (string, error) {
	builtin, known := builtinPrompts[name]

	s.seed.Do(s.populate)
	if s.seedErr != nil {
		if known {
			return builtin.text, nil
		}
		return "", fmt.Errorf("prompt %q: %w", name, s.seedErr)
	}

	s.mu.RLock()
	text, ok := s.loaded[name]
	s.mu.RUnlock()
	if ok {
		return text, nil
	}

	text, err := s.read(name)
	switch {
	case err != nil && !known:
		return "", fmt.Errorf("prompt %q: %w", name, err)
	case err != nil:
		text = builtin.text
	case known && strings.Count(text, "%s") != builtin.verbs:
		logger.Warn("prompt %s: expected %d %%s verbs, using the built-in prompt", s.path(name), builtin.verbs)
		text = builtin.text
	}

	s.mu.Lock()
	if prev, ok := s.loaded[name]; ok {
		text = prev
	} else {
		s.loaded[name] = text
	}
	s.mu.Unlock()
	return text, nil
}

// Reload forgets loaded prompts so the next Load reads the files again.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.loaded = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

func (s *PromptStore) path(name string) string {
	return filepath.Join(s.dir, name+".txt")
}

func (s *PromptStore) read(name string) (string, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// populate writes every built-in prompt and the README that is not already
// on disk. User files are never overwritten.
func (s *PromptStore) populate() {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		s.seedErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}
	files := map[string]string{"README.md": promptsReadme}
	for name, p := range builtinPrompts {
		files[name+".txt"] = p.text
	}
	for file, content := range files {
		if err := writeIfAbsent(filepath.Join(s.dir, file), content); err != nil {
			s.seedErr = fmt.Errorf("write %s: %w", file, err)
			return
		}
	}
}

func writeIfAbsent(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
