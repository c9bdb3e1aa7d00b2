// Package integrity registers files on the ledger and checks them against
// their latest recorded digest.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"fileledger/core/audit"
	"fileledger/core/block"
	"fileledger/core/chain"
	"fileledger/core/metrics"
)

var (
	ErrFileNotFound   = errors.New("file not found")
	ErrFileUnreadable = errors.New("file unreadable")
	// ErrAppendFailed wraps the chain error that rejected a registration.
	ErrAppendFailed = errors.New("append to chain failed")
	// ErrNoRecord means no block names the file.
	ErrNoRecord = errors.New("no ledger record for file")
)

// DefaultUploader is recorded when a registration names no uploader.
const DefaultUploader = "anonymous"

// Status is the verdict of a verification.
type Status string

const (
	Verified Status = "verified"
	Tampered Status = "tampered"
)

// Report compares a file on disk with its latest ledger record.
type Report struct {
	Filename     string    `json:"filename"`
	Status       Status    `json:"status"`
	RecordedHash string    `json:"recorded_hash"`
	CurrentHash  string    `json:"current_hash"`
	RecordedSize int64     `json:"recorded_size"`
	CurrentSize  int64     `json:"current_size"`
	SizeMatches  bool      `json:"size_matches"`
	BlockIndex   uint64    `json:"block_index"`
	BlockTime    time.Time `json:"block_time"`
	UploaderID   string    `json:"uploader_id"`
}

// Verified reports whether the current digest matches the recorded one.
func (r *Report) Verified() bool { return r.Status == Verified }

// Service ties file digests to a chain.
type Service struct {
	chain   *chain.Chain
	log     *slog.Logger
	audit   audit.AuditLogger
	metrics *metrics.Ledger
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithAudit(a audit.AuditLogger) Option {
	return func(s *Service) { s.audit = a }
}

func WithMetrics(m *metrics.Ledger) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(c *chain.Chain, opts ...Option) *Service {
	s := &Service{
		chain: c,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		audit: audit.Nop(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(slog.String("component", "integrity"))
	return s
}

func (s *Service) Chain() *chain.Chain { return s.chain }

// FileDigest streams the file through SHA-256 and returns the hex digest and
// the number of bytes read.
func FileDigest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", 0, fmt.Errorf("%s: %w", path, ErrFileNotFound)
		}
		return "", 0, fmt.Errorf("%s: %w: %w", path, ErrFileUnreadable, err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w: %w", path, ErrFileUnreadable, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// RegisterFile records the file's current digest and size under its path.
// An empty uploaderID becomes "anonymous" and an empty action
// FILE_REGISTERED.
func (s *Service) RegisterFile(path, uploaderID, action string) (*block.Block, error) {
	return s.RegisterContent(path, path, uploaderID, action)
}

// RegisterContent records the digest and size of the file at path under
// filename. Uploads stage content in a temporary file and register it under
// its final name.
func (s *Service) RegisterContent(filename, path, uploaderID, action string) (*block.Block, error) {
	if uploaderID == "" {
		uploaderID = DefaultUploader
	}
	if action == "" {
		action = block.ActionFileRegistered
	}
	digest, size, err := FileDigest(path)
	if err != nil {
		s.log.Warn("register: read file", slog.String("path", path), slog.String("error", err.Error()))
		return nil, err
	}

	ev := block.FileEvent{
		Filename:   filename,
		FileHash:   digest,
		FileSize:   size,
		UploaderID: uploaderID,
		Action:     action,
		Timestamp:  s.now(),
	}
	b, err := s.chain.Append(ev.Payload())
	if err != nil {
		s.log.Error("register: append", slog.String("filename", filename), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrAppendFailed, err)
	}

	ae := audit.NewEvent(audit.EventFileRegistered, filename, "success")
	ae.Metadata["block_index"] = strconv.FormatUint(b.Index(), 10)
	ae.Metadata["file_hash"] = digest
	ae.Metadata["uploader_id"] = uploaderID
	ae.Metadata["action"] = action
	s.audit.LogEvent(ae)

	s.log.Info("file registered",
		slog.String("filename", filename),
		slog.Uint64("block", b.Index()),
		slog.String("uploader_id", uploaderID),
		slog.String("action", action),
	)
	return b, nil
}

// VerifyFile compares the file's current digest with the latest block that
// names it. Digest equality alone decides the verdict; the size comparison is
// informational.
func (s *Service) VerifyFile(path string) (*Report, error) {
	return s.VerifyContent(path, path)
}

// VerifyContent checks the file at path against the latest record for
// filename. Uploads use it to verify a copy without replacing the
// registered file.
func (s *Service) VerifyContent(filename, path string) (*Report, error) {
	b, ok := s.chain.FindLatestForFile(filename)
	if !ok {
		s.metrics.Verified("no_record")
		return nil, fmt.Errorf("%s: %w", filename, ErrNoRecord)
	}
	digest, size, err := FileDigest(path)
	if err != nil {
		s.metrics.Verified("error")
		return nil, err
	}

	recorded := block.FileEventFromPayload(b.Data())
	r := &Report{
		Filename:     filename,
		Status:       Tampered,
		RecordedHash: recorded.FileHash,
		CurrentHash:  digest,
		RecordedSize: recorded.FileSize,
		CurrentSize:  size,
		SizeMatches:  recorded.FileSize == size,
		BlockIndex:   b.Index(),
		BlockTime:    b.Time(),
		UploaderID:   recorded.UploaderID,
	}
	if r.UploaderID == "" {
		r.UploaderID = "unknown"
	}
	if digest == recorded.FileHash {
		r.Status = Verified
	}

	eventType, result := audit.EventFileVerified, "success"
	if !r.Verified() {
		eventType, result = audit.EventFileTampered, "failure"
	}
	ae := audit.NewEvent(eventType, filename, result)
	ae.Metadata["block_index"] = strconv.FormatUint(b.Index(), 10)
	ae.Metadata["recorded_hash"] = r.RecordedHash
	ae.Metadata["current_hash"] = r.CurrentHash
	if !r.Verified() {
		ae.Reason = "digest mismatch"
	}
	s.audit.LogEvent(ae)
	s.metrics.Verified(string(r.Status))

	s.log.Info("file verified",
		slog.String("filename", filename),
		slog.String("status", string(r.Status)),
		slog.Uint64("block", b.Index()),
	)
	return r, nil
}
