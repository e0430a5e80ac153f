package module

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Store is a directory of installed modules.
type Store struct {
	Root   string
	logger *zap.Logger
}

type StoreOption func(*Store)

// WithLogger sets the logger that reports modules skipped by Load.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

func NewStore(root string, opts ...StoreOption) *Store {
	s := &Store{Root: root, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads every module under the root, sorted by canonical name. A missing
// root yields no modules. A module that cannot be read or whose header is
// invalid is logged and skipped.
func (s *Store) Load() ([]Module, error) {
	authors, err := os.ReadDir(s.Root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read modules dir: %w", err)
	}

	var mods []Module
	for _, a := range authors {
		if !a.IsDir() || !namePattern.MatchString(a.Name()) {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.Root, a.Name()))
		if err != nil {
			return nil, fmt.Errorf("read author dir: %w", err)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			mod, ok, err := s.load(a.Name(), f.Name())
			if err != nil {
				s.logger.Warn("skipping module",
					zap.String("file", filepath.Join(a.Name(), f.Name())),
					zap.Error(err))
				continue
			}
			if ok {
				mods = append(mods, mod)
			}
		}
	}

	sort.Slice(mods, func(i, j int) bool {
		return mods[i].Canonical() < mods[j].Canonical()
	})
	return mods, nil
}

// Get loads one module by "author/name".
func (s *Store) Get(canonical string) (Module, error) {
	author, name, _, err := ParseName(canonical)
	if err != nil {
		return Module{}, err
	}
	for _, kind := range []Kind{KindLua, KindWASM} {
		mod, ok, err := s.load(author, name+"."+string(kind))
		if err != nil {
			return Module{}, err
		}
		if ok {
			return mod, nil
		}
	}
	return Module{}, fmt.Errorf("%w: %s", ErrNotFound, canonical)
}

// Install writes a Lua module's source, replacing any installed copy.
func (s *Store) Install(author, name, code string) (Module, error) {
	if err := ValidateName(author, name); err != nil {
		return Module{}, err
	}
	md, err := ParseMetadata(code)
	if err != nil {
		return Module{}, err
	}

	dir := filepath.Join(s.Root, author)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Module{}, fmt.Errorf("create author dir: %w", err)
	}
	path := filepath.Join(dir, name+".lua")
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return Module{}, fmt.Errorf("write module: %w", err)
	}

	return Module{
		Author:   author,
		Name:     name,
		Kind:     KindLua,
		Path:     path,
		Code:     []byte(code),
		Metadata: md,
	}, nil
}

func (s *Store) load(author, file string) (Module, bool, error) {
	ext := filepath.Ext(file)
	name := strings.TrimSuffix(file, ext)
	if !namePattern.MatchString(name) {
		return Module{}, false, nil
	}

	var kind Kind
	switch ext {
	case ".lua":
		kind = KindLua
	case ".wasm":
		kind = KindWASM
	default:
		return Module{}, false, nil
	}

	path := filepath.Join(s.Root, author, file)
	code, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Module{}, false, nil
	}
	if err != nil {
		return Module{}, false, fmt.Errorf("read module: %w", err)
	}

	mod := Module{Author: author, Name: name, Kind: kind, Path: path, Code: code}
	if kind == KindLua {
		md, err := ParseMetadata(string(code))
		if err != nil {
			return Module{}, false, fmt.Errorf("%s/%s: %w", author, name, err)
		}
		mod.Metadata = md
	}
	return mod, true, nil
}
