package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// logFile is the rotating file writer behind the "file" and "both"
// outputs.
//
// sigscope binaries are short-lived, so rotation happens inline rather
// than on timers or background goroutines that process exit would cut
// short: the write that would push the file past its size cap archives
// it, compresses the archive, and prunes old archives before returning.
// A file that outgrew the cap between runs is rotated when it is next
// opened for writing.
type logFile struct {
	cfg *Config

	mu   sync.Mutex
	f    *os.File
	size int64
}

// openLogFile opens (creating if needed) the configured log file for
// appending, rotating first if a previous run left it over the cap.
func openLogFile(cfg *Config) (*logFile, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	lf := &logFile{cfg: cfg}
	if err := lf.open(); err != nil {
		return nil, err
	}
	if lf.size > lf.limit() {
		if err := lf.rotate(); err != nil {
			return nil, err
		}
	}
	return lf, nil
}

// limit is the size cap in bytes.
func (lf *logFile) limit() int64 {
	return lf.cfg.MaxSize * 1024 * 1024
}

func (lf *logFile) open() error {
	f, err := os.OpenFile(lf.cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	lf.f = f
	lf.size = info.Size()
	return nil
}

// Write implements io.Writer. An empty file is never archived, so a
// single entry larger than the cap still lands in the active file.
func (lf *logFile) Write(p []byte) (int, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.f == nil {
		if err := lf.open(); err != nil {
			return 0, err
		}
	}

	if lf.size > 0 && lf.size+int64(len(p)) > lf.limit() {
		if err := lf.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}

	n, err := lf.f.Write(p)
	lf.size += int64(n)
	return n, err
}

// rotate archives the active file under a timestamped name and starts a
// fresh one.
func (lf *logFile) rotate() error {
	if lf.f != nil {
		if err := lf.f.Close(); err != nil {
			return fmt.Errorf("close log file: %w", err)
		}
		lf.f = nil
	}

	archived := lf.archivePath()
	if err := os.Rename(lf.cfg.FilePath, archived); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("archive log file: %w", err)
		}
	} else if lf.cfg.Compress {
		compressArchive(archived)
	}

	lf.prune()
	return lf.open()
}

// archivePath names the archive after the rotation instant, with a
// sequence suffix when several rotations land in the same second.
func (lf *logFile) archivePath() string {
	dir, name, ext := splitLogPath(lf.cfg.FilePath)
	stamp := time.Now().Format("20060102-150405")

	path := filepath.Join(dir, name+"-"+stamp+ext)
	for seq := 1; pathExists(path) || pathExists(path+".gz"); seq++ {
		path = filepath.Join(dir, fmt.Sprintf("%s-%s.%d%s", name, stamp, seq, ext))
	}
	return path
}

// archiveGlob matches every archive of the active file, compressed or
// not.
func (lf *logFile) archiveGlob() string {
	dir, name, ext := splitLogPath(lf.cfg.FilePath)
	return filepath.Join(dir, name+"-*"+ext+"*")
}

// prune applies the retention policy to the archives: at most
// MaxBackups files, none older than MaxAge days.
func (lf *logFile) prune() {
	archives := listArchives(lf.archiveGlob())

	if drop := len(archives) - lf.cfg.MaxBackups; drop > 0 {
		for _, a := range archives[:drop] {
			os.Remove(a.path)
		}
		archives = archives[drop:]
	}

	cutoff := time.Now().AddDate(0, 0, -lf.cfg.MaxAge)
	for _, a := range archives {
		if a.modTime.Before(cutoff) {
			os.Remove(a.path)
		}
	}
}

// Close closes the active file.
func (lf *logFile) Close() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.f != nil {
		err := lf.f.Close()
		lf.f = nil
		return err
	}
	return nil
}

// Sync flushes the active file to disk.
func (lf *logFile) Sync() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.f != nil {
		return lf.f.Sync()
	}
	return nil
}

// Files returns the active log file followed by its archives, oldest
// archive first.
func (lf *logFile) Files() []string {
	files := []string{lf.cfg.FilePath}
	for _, a := range listArchives(lf.archiveGlob()) {
		files = append(files, a.path)
	}
	return files
}

type archive struct {
	path    string
	modTime time.Time
}

// listArchives returns the archives matching glob, oldest first.
func listArchives(glob string) []archive {
	matches, err := filepath.Glob(glob)
	if err != nil {
		return nil
	}

	archives := make([]archive, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		archives = append(archives, archive{path: match, modTime: info.ModTime()})
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].modTime.Before(archives[j].modTime)
	})
	return archives
}

// compressArchive gzips an archive and removes the original. Failures
// leave the uncompressed archive in place.
func compressArchive(path string) {
	in, err := os.Open(path)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.Create(path + ".gz")
	if err != nil {
		return
	}

	gz := gzip.NewWriter(out)
	gz.Name = filepath.Base(path)
	_, err = io.Copy(gz, in)
	if cerr := gz.Close(); err == nil {
		err = cerr
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path + ".gz")
		return
	}
	os.Remove(path)
}

func splitLogPath(path string) (dir, name, ext string) {
	dir = filepath.Dir(path)
	base := filepath.Base(path)
	ext = filepath.Ext(base)
	name = strings.TrimSuffix(base, ext)
	return dir, name, ext
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
