package storage

import (
	"fmt"
	"path/filepath"
)

// GlobalArchiveFile returns the path to the trace's top-level header
// file, relative to traceDir.
func GlobalArchiveFile(traceDir string) string {
	return filepath.Join(traceDir, "main.pallas")
}

// ArchiveDir returns the subdirectory holding one archive's files.
func ArchiveDir(traceDir string, archiveID uint32) string {
	return filepath.Join(traceDir, fmt.Sprintf("archive_%d", archiveID))
}

// ArchiveFile returns the path to one archive's header file.
func ArchiveFile(traceDir string, archiveID uint32) string {
	return filepath.Join(ArchiveDir(traceDir, archiveID), "archive.pallas")
}

// ThreadFile returns the path to one thread's grammar+columns file.
func ThreadFile(traceDir string, archiveID uint32, threadID uint64) string {
	return filepath.Join(ArchiveDir(traceDir, archiveID), fmt.Sprintf("thread_%d.pallas", threadID))
}
