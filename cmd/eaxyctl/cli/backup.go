package cli

import (
	"context"
	"fmt"
	"io"
)

// BackupRunner snapshots offices and returns the written files.
type BackupRunner interface {
	Run(ctx context.Context, offices []string) ([]string, error)
}

// RunBackup runs a backup in-process and lists the written files. Files
// written before a failure are still listed.
func RunBackup(ctx context.Context, runner BackupRunner, offices []string, stdout io.Writer) error {
	paths, err := runner.Run(ctx, offices)
	for _, path := range paths {
		fmt.Fprintln(stdout, path)
	}
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	return nil
}
