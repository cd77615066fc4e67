// Package scaffold embeds the starter files `stratagen init` installs into a
// project. The embedded filesystem is rooted at "files/" and contains
// stratagen.yml, hooks-policy.yaml and a replay fixture set under fixtures/.
package scaffold

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FS contains the embedded starter files. Walk from Root to iterate over all
// of them.
//
//go:embed all:files
var FS embed.FS

// Root is the embed directory the starter files live under.
const Root = "files"

// Action describes what Install did with one file.
type Action string

const (
	ActionCreated     Action = "created"
	ActionOverwritten Action = "overwritten"
	ActionSkipped     Action = "skipped"
)

// Install copies the starter files into dir, keeping their layout. Existing
// files are skipped unless force is set. report, if non-nil, is called once
// per file with the destination path.
func Install(dir string, force bool, report func(Action, string)) error {
	if report == nil {
		report = func(Action, string) {}
	}
	return fs.WalkDir(FS, Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(Root, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(dir, rel)

		if d.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}

		action := ActionCreated
		if _, err := os.Stat(dest); err == nil {
			if !force {
				report(ActionSkipped, dest)
				return nil
			}
			action = ActionOverwritten
		}

		data, err := FS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("scaffold: reading embedded %s: %w", path, err)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("scaffold: writing %s: %w", dest, err)
		}
		report(action, dest)
		return nil
	})
}
