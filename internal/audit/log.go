package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/longregen/cogito/internal/adapters/metrics"
	"github.com/longregen/cogito/internal/domain"
	"github.com/longregen/cogito/internal/domain/models"
	"github.com/longregen/cogito/internal/ports"
)

const maskedValue = "***MASKED***"

// sensitiveKeySubstrings flags argument keys whose values never reach the log.
var sensitiveKeySubstrings = []string{"password", "token", "key", "secret", "auth"}

const maxSummaryValueLen = 256

// Stages distinguish the wall decision entry from the post-execution entry
// sharing a turn id. Every approved wall entry is followed by an execution
// entry for the same turn.
const (
	StageWall      = "wall"
	StageExecution = "execution"
)

// Execution entry outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
)

// Record is one append-only audit entry. Every wall decision produces one,
// approved or not; executed plans produce a second entry carrying the
// result summary, the verifier verdict, and a digest of the reply.
type Record struct {
	AuditID       string               `json:"audit_id"`
	Timestamp     time.Time            `json:"timestamp"`
	Stage         string               `json:"stage,omitempty"`
	TurnID        string               `json:"turn_id"`
	UserID        string               `json:"user_id"`
	ToolName      string               `json:"tool_name"`
	Risk          string               `json:"risk"`
	Args          map[string]any       `json:"args_summary,omitempty"`
	Decision      models.WallDecision  `json:"decision,omitempty"`
	Tier          string               `json:"tier,omitempty"`
	Code          string               `json:"code,omitempty"`
	Tiers         []models.TierOutcome `json:"tiers,omitempty"`
	Outcome       string               `json:"outcome,omitempty"`
	ResultSummary string               `json:"result_summary,omitempty"`
	Verdict       string               `json:"verdict,omitempty"`
	ReplyDigest   string               `json:"reply_digest,omitempty"`
}

// Log is an append-only JSONL audit trail with a single writer. Entries are
// fsynced before Append returns so an approved plan is never executed without
// its durable audit record.
type Log struct {
	mu          sync.Mutex
	path        string
	rotateBytes int64
	file        *os.File
	size        int64
	ids         ports.IDGenerator
	logger      *slog.Logger
}

func NewLog(path string, rotateBytes int64, ids ports.IDGenerator, logger *slog.Logger) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat audit log: %w", err)
	}
	return &Log{
		path:        path,
		rotateBytes: rotateBytes,
		file:        f,
		size:        info.Size(),
		ids:         ids,
		logger:      logger,
	}, nil
}

// Append writes one record and syncs it to disk. The caller treats a non-nil
// error as an audit failure and must refuse the action it was recording.
func (l *Log) Append(rec *Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.AuditID == "" {
		rec.AuditID = l.ids.GenerateAuditID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	rec.Args = Redact(rec.Args)

	line, err := json.Marshal(rec)
	if err != nil {
		metrics.AuditWritesTotal.WithLabelValues("error").Inc()
		return domain.NewDomainError(domain.ErrAuditFailure, "marshal audit record: "+err.Error())
	}
	line = append(line, '\n')

	if _, err := l.file.Write(line); err != nil {
		metrics.AuditWritesTotal.WithLabelValues("error").Inc()
		return domain.NewDomainError(domain.ErrAuditFailure, "write audit record: "+err.Error())
	}
	if err := l.file.Sync(); err != nil {
		metrics.AuditWritesTotal.WithLabelValues("error").Inc()
		return domain.NewDomainError(domain.ErrAuditFailure, "sync audit record: "+err.Error())
	}
	l.size += int64(len(line))
	metrics.AuditWritesTotal.WithLabelValues("ok").Inc()

	if l.rotateBytes > 0 && l.size >= l.rotateBytes {
		if err := l.rotateLocked(); err != nil {
			l.logger.Error("audit rotation failed", "error", err)
		}
	}
	return nil
}

// Rotate closes the current segment, renames it with a timestamp suffix and
// starts a fresh one. Exposed for the admin surface; also triggered by size.
func (l *Log) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rotateLocked()
}

func (l *Log) rotateLocked() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close audit segment: %w", err)
	}
	rotated := fmt.Sprintf("%s.%s", l.path, time.Now().UTC().Format("20060102T150405"))
	if err := os.Rename(l.path, rotated); err != nil {
		return fmt.Errorf("rename audit segment: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open fresh audit segment: %w", err)
	}
	l.file = f
	l.size = 0
	l.logger.Info("audit log rotated", "segment", rotated)
	return nil
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Path returns the active segment path.
func (l *Log) Path() string {
	return l.path
}

// Redact produces a loggable copy of tool arguments: sensitive keys masked,
// long strings truncated, nested maps handled recursively.
func Redact(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if isSensitiveKey(k) {
			out[k] = maskedValue
			continue
		}
		switch t := v.(type) {
		case string:
			if len(t) > maxSummaryValueLen {
				out[k] = t[:maxSummaryValueLen] + "..."
			} else {
				out[k] = t
			}
		case map[string]any:
			out[k] = Redact(t)
		default:
			out[k] = v
		}
	}
	return out
}

func isSensitiveKey(k string) bool {
	lower := strings.ToLower(k)
	for _, s := range sensitiveKeySubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
