package backup

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/otiai10/copy"
	"github.com/xeipuuv/gojsonschema"

	"github.com/akuity/npmauth/internal/io/fs"
)

const (
	// IndexFileName is the name of the index file inside a backup directory.
	IndexFileName = "index.json"
	// counterKey is the key of the index file holding the next backup ID.
	counterKey = "index"
)

// ErrCorruptIndex is returned when an existing index file cannot be read as a
// backup index. The index is never reset in that case, since that would lose
// track of backups that still need restoring.
var ErrCorruptIndex = errors.New("backup index is corrupt")

//go:embed index.schema.json
var indexSchema []byte

var indexSchemaLoader = gojsonschema.NewBytesLoader(indexSchema)

// Index maps the paths of original files to the IDs of their backups within a
// single backup directory. Each original file is backed up at most once, no
// matter how many times EnsureBackup is called for it.
type Index struct {
	dir     string
	entries map[string]int
	next    int
}

// Open loads the index of the backup directory dir. A missing index file
// yields an empty index. An index file that exists but is not a valid index
// results in an error wrapping ErrCorruptIndex.
func Open(dir string) (*Index, error) {
	idx := &Index{
		dir:     dir,
		entries: map[string]int{},
	}
	data, err := os.ReadFile(filepath.Join(dir, IndexFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("%w: error reading %s: %w", ErrCorruptIndex, IndexFileName, err)
	}
	if err = validate(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}
	raw := map[string]int{}
	if err = json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}
	idx.next = raw[counterKey]
	delete(raw, counterKey)
	for path, id := range raw {
		if id >= idx.next {
			return nil, fmt.Errorf(
				"%w: backup ID %d of %s is not below the counter %d",
				ErrCorruptIndex, id, path, idx.next,
			)
		}
		idx.entries[path] = id
	}
	return idx, nil
}

func validate(data []byte) error {
	result, err := gojsonschema.Validate(
		indexSchemaLoader,
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("could not validate %s: %w", IndexFileName, err)
	}
	if !result.Valid() {
		errs := make([]error, len(result.Errors()))
		for i, err := range result.Errors() {
			errs[i] = errors.New(err.String())
		}
		return fmt.Errorf("invalid %s: %w", IndexFileName, errors.Join(errs...))
	}
	return nil
}

// Dir returns the backup directory.
func (i *Index) Dir() string {
	return i.dir
}

// Lookup returns the backup ID of the original file at path, if it has one.
func (i *Index) Lookup(path string) (int, bool) {
	id, ok := i.entries[path]
	return id, ok
}

// Paths returns the paths of all backed up files ordered by backup ID.
func (i *Index) Paths() []string {
	paths := make([]string, 0, len(i.entries))
	for path := range i.entries {
		paths = append(paths, path)
	}
	sort.Slice(paths, func(a, b int) bool {
		return i.entries[paths[a]] < i.entries[paths[b]]
	})
	return paths
}

// EnsureBackup backs up the file at path unless it was backed up before and
// returns the ID of its backup. created is false if a backup already existed,
// in which case the earlier snapshot is left untouched.
func (i *Index) EnsureBackup(path string) (id int, created bool, err error) {
	if id, ok := i.entries[path]; ok {
		return id, false, nil
	}
	id = i.next
	backupPath, err := i.backupPath(id, path)
	if err != nil {
		return 0, false, err
	}
	// The copy happens before the index is persisted so an index entry always
	// has a backup behind it.
	if err = copy.Copy(path, backupPath); err != nil {
		return 0, false, fmt.Errorf("error backing up %s: %w", path, err)
	}
	i.entries[path] = id
	i.next++
	if err = i.save(); err != nil {
		delete(i.entries, path)
		i.next--
		return 0, false, err
	}
	return id, true, nil
}

// Restore overwrites the original file at path with its backup.
func (i *Index) Restore(path string) error {
	id, ok := i.entries[path]
	if !ok {
		return fmt.Errorf("no backup of %s in %s", path, i.dir)
	}
	backupPath, err := i.backupPath(id, path)
	if err != nil {
		return err
	}
	if err = copy.Copy(backupPath, path); err != nil {
		return fmt.Errorf("error restoring %s from backup %d: %w", path, id, err)
	}
	return nil
}

// RestoreAll restores every backed up file. It attempts all of them and
// returns the combined errors.
func (i *Index) RestoreAll() error {
	var errs []error
	for _, path := range i.Paths() {
		if err := i.Restore(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Remove deletes the backup directory with all backups and the index.
func (i *Index) Remove() error {
	if err := os.RemoveAll(i.dir); err != nil {
		return fmt.Errorf("error removing backup directory %s: %w", i.dir, err)
	}
	i.entries = map[string]int{}
	i.next = 0
	return nil
}

func (i *Index) backupPath(id int, originalPath string) (string, error) {
	name := fmt.Sprintf("%d%s", id, filepath.Ext(originalPath))
	backupPath, err := securejoin.SecureJoin(i.dir, name)
	if err != nil {
		return "", fmt.Errorf("could not secure join backup path %q: %w", name, err)
	}
	return backupPath, nil
}

func (i *Index) save() error {
	raw := make(map[string]int, len(i.entries)+1)
	for path, id := range i.entries {
		raw[path] = id
	}
	raw[counterKey] = i.next
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("error marshaling %s: %w", IndexFileName, err)
	}
	if err = fs.WriteFileAtomic(filepath.Join(i.dir, IndexFileName), data, 0o600); err != nil {
		return fmt.Errorf("error saving %s: %w", IndexFileName, err)
	}
	return nil
}
