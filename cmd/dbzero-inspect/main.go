// Command dbzero-inspect is a read-only inspector for a prefix directory:
// it dumps the superblock and the change-log without mutating anything
// on disk. Grounded on the teacher's
// cmd/tinysqlpage and cmd/debug for CLI shape (flag-based, single binary,
// plain stdout output) and internal/storage/pager.InspectSuperblock/
// InspectPage for "what an inspector surfaces about a page store".
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dbzero-software/dbzero-engine/internal/config"
	"github.com/dbzero-software/dbzero-engine/internal/pager"
)

func main() {
	dir := flag.String("dir", "", "path to a prefix directory (contains superblock.db, blocks.db, changelog.db, versions.db)")
	showLog := flag.Bool("changelog", false, "dump every change-log entry")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: dbzero-inspect -dir <prefix-dir> [-changelog]")
		os.Exit(2)
	}

	if err := run(*dir, *showLog); err != nil {
		fmt.Fprintln(os.Stderr, "dbzero-inspect:", err)
		os.Exit(1)
	}
}

func run(dir string, showLog bool) error {
	cfg := config.DefaultConfig()
	cfg.AccessType = config.AccessRead

	prefix, err := pager.OpenPrefix(dir, cfg, zap.NewNop())
	if err != nil {
		return err
	}
	defer prefix.Close()

	fmt.Printf("prefix: %s\n", dir)
	fmt.Printf("  page size:     %d\n", prefix.PageSize())
	fmt.Printf("  current state: %d\n", prefix.CurrentState())

	if showLog {
		if err := dumpChangeLog(dir); err != nil {
			return err
		}
	}
	return nil
}

func dumpChangeLog(dir string) error {
	cl, err := pager.OpenChangeLog(filepath.Join(dir, "changelog.db"))
	if err != nil {
		return err
	}
	defer cl.Close()

	entries, _, err := cl.ReadFrom(0)
	if err != nil {
		return err
	}
	fmt.Printf("  change-log entries: %d\n", len(entries))
	for _, e := range entries {
		fmt.Printf("    state=%d modified_pages=%d end_storage_page=%d\n",
			e.State, len(e.ModifiedPages), e.EndStoragePage)
	}
	return nil
}
