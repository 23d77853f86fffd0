// Package badger provides a BadgerDB-backed rule store for embedded,
// single-node deployments.
package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/rules"
)

// ============================================================================
// Database Key Namespace Design
// ============================================================================
//
// BadgerDB is a key-value store, so rules are laid out for the two scans the
// store must answer: all rules at one exact path, and all rules below a
// path. Paths never contain NUL, so a NUL byte terminates the path segment
// unambiguously (a ":"-style separator would collide with ":" in paths).
//
// Data Type   Key Format                                   Value Type
// ======================================================================
// Rule        r:<folderID>:<path>\x00<subjectType>:<id>    acl.Rule (JSON)
//
// Scans:
//   rules at path        prefix  r:<folderID>:<path>\x00
//   rules below path     prefix  r:<folderID>:<path>/
//   rules in folder      prefix  r:<folderID>:

const (
	prefixRule = "r:"
	pathSep    = "\x00"
)

// keyRule generates the key for one rule: "r:<folderID>:<path>\x00<subject>"
func keyRule(folderID int64, path string, subject acl.Subject) []byte {
	return []byte(prefixRule + strconv.FormatInt(folderID, 10) + ":" + path + pathSep + subject.String())
}

// keyPathPrefix generates the scan prefix for all rules at an exact path.
func keyPathPrefix(folderID int64, path string) []byte {
	return []byte(prefixRule + strconv.FormatInt(folderID, 10) + ":" + path + pathSep)
}

// keySubtreePrefix generates the scan prefix for all rules strictly below a
// path. For the root it covers the whole folder.
func keySubtreePrefix(folderID int64, path string) []byte {
	if path == "" {
		return keyFolderPrefix(folderID)
	}
	return []byte(prefixRule + strconv.FormatInt(folderID, 10) + ":" + path + "/")
}

// keyFolderPrefix generates the scan prefix for every rule in a folder.
func keyFolderPrefix(folderID int64) []byte {
	return []byte(prefixRule + strconv.FormatInt(folderID, 10) + ":")
}

func encodeRule(rule *acl.Rule) ([]byte, error) {
	bytes, err := json.Marshal(rule)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rule: %w", err)
	}
	return bytes, nil
}

func decodeRule(bytes []byte) (*acl.Rule, error) {
	var rule acl.Rule
	if err := json.Unmarshal(bytes, &rule); err != nil {
		return nil, fmt.Errorf("failed to decode rule: %w", err)
	}
	return &rule, nil
}

// ============================================================================
// Store
// ============================================================================

// BadgerRuleStore implements rules.Store on a BadgerDB database.
type BadgerRuleStore struct {
	db *badgerdb.DB
}

var _ rules.Store = (*BadgerRuleStore)(nil)

// New opens (or creates) a rule database at the given directory.
func New(path string) (*BadgerRuleStore, error) {
	opts := badgerdb.DefaultOptions(path)
	opts.Logger = nil
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open rule database: %w", err)
	}
	return &BadgerRuleStore{db: db}, nil
}

func (s *BadgerRuleStore) GetRule(ctx context.Context, folderID int64, subject acl.Subject, path string) (*acl.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rule *acl.Rule
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyRule(folderID, acl.CleanPath(path), subject))
		if err == badgerdb.ErrKeyNotFound {
			return rules.ErrRuleNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			r, err := decodeRule(val)
			if err != nil {
				return err
			}
			rule = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *BadgerRuleStore) GetRulesForPaths(ctx context.Context, folderID int64, paths []string) (map[string][]acl.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make(map[string][]acl.Rule)
	err := s.db.View(func(txn *badgerdb.Txn) error {
		for _, p := range paths {
			clean := acl.CleanPath(p)
			matched, err := scanPrefix(ctx, txn, keyPathPrefix(folderID, clean))
			if err != nil {
				return err
			}
			if len(matched) > 0 {
				result[clean] = matched
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan rules: %w", err)
	}
	return result, nil
}

func (s *BadgerRuleStore) GetRulesForPrefix(ctx context.Context, folderID int64, prefix string) ([]acl.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clean := acl.CleanPath(prefix)
	var matched []acl.Rule
	err := s.db.View(func(txn *badgerdb.Txn) error {
		below, err := scanPrefix(ctx, txn, keySubtreePrefix(folderID, clean))
		if err != nil {
			return err
		}
		matched = below
		if clean == "" {
			return nil // the folder scan already covered the root's own rules
		}
		at, err := scanPrefix(ctx, txn, keyPathPrefix(folderID, clean))
		if err != nil {
			return err
		}
		matched = append(matched, at...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan rules: %w", err)
	}
	sortRules(matched)
	return matched, nil
}

func (s *BadgerRuleStore) SetRule(ctx context.Context, rule acl.Rule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		data, err := encodeRule(&rule)
		if err != nil {
			return err
		}
		if err := txn.Set(keyRule(rule.FolderID, rule.Path, rule.Subject), data); err != nil {
			return fmt.Errorf("failed to store rule: %w", err)
		}
		return nil
	})
}

func (s *BadgerRuleStore) DeleteRule(ctx context.Context, folderID int64, subject acl.Subject, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(keyRule(folderID, acl.CleanPath(path), subject))
	})
}

func (s *BadgerRuleStore) ListRules(ctx context.Context, folderID int64) ([]acl.Rule, error) {
	return s.GetRulesForPrefix(ctx, folderID, "")
}

func (s *BadgerRuleStore) ListFolders(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{})
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixRule)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		count := 0
		for it.Rewind(); it.Valid(); it.Next() {
			if count%100 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			count++

			key := string(it.Item().Key())
			rest := strings.TrimPrefix(key, prefixRule)
			idx := strings.IndexByte(rest, ':')
			if idx < 0 {
				continue
			}
			id, err := strconv.ParseInt(rest[:idx], 10, 64)
			if err != nil {
				continue
			}
			seen[id] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan folders: %w", err)
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *BadgerRuleStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying database handle for runtime statistics
// collectors and backup tooling.
func (s *BadgerRuleStore) DB() *badgerdb.DB {
	return s.db
}

// scanPrefix collects every rule whose key starts with prefix.
func scanPrefix(ctx context.Context, txn *badgerdb.Txn, prefix []byte) ([]acl.Rule, error) {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = true

	it := txn.NewIterator(opts)
	defer it.Close()

	var matched []acl.Rule
	count := 0
	for it.Rewind(); it.Valid(); it.Next() {
		if count%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		count++

		err := it.Item().Value(func(val []byte) error {
			r, err := decodeRule(val)
			if err != nil {
				return err
			}
			matched = append(matched, *r)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return matched, nil
}

// sortRules orders rules by path, then subject, for deterministic output.
func sortRules(rs []acl.Rule) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Path != rs[j].Path {
			return rs[i].Path < rs[j].Path
		}
		return rs[i].Subject.String() < rs[j].Subject.String()
	})
}
