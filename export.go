package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	kflate "github.com/klauspost/compress/flate"

	"Scribe/pkg/types"
)

// ========================================
// Session Export/Import
// ========================================

const (
	archiveExt           = ".scribe"
	archiveFormatVersion = 1

	// Above this payload size the action stream is brotli-compressed and
	// stored raw in the archive instead of going through deflate.
	brotliThreshold = 1 << 20
)

// ScribeExportManifest describes the export archive
type ScribeExportManifest struct {
	FormatVersion int    `json:"formatVersion"` // 1
	AppVersion    string `json:"appVersion"`
	ExportTime    int64  `json:"exportTime"` // Unix ms
	SessionID     string `json:"sessionId"`
	SessionName   string `json:"sessionName"`
	ActionCount   int    `json:"actionCount"`
	Encoding      string `json:"encoding"` // "deflate" or "br"
}

// ExportManager writes capture sessions to .scribe archives and reads
// them back.
type ExportManager struct {
	store      *ActionStore
	appVersion string
}

func NewExportManager(store *ActionStore, appVersion string) *ExportManager {
	return &ExportManager{store: store, appVersion: appVersion}
}

// newArchiveWriter returns a zip writer whose deflate entries go through
// klauspost's encoder instead of the stdlib one.
func newArchiveWriter(w io.Writer) *zip.Writer {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return kflate.NewWriter(out, kflate.BestSpeed)
	})
	return zw
}

// ExportSessionToPath writes one session and its actions to outputPath.
func (m *ExportManager) ExportSessionToPath(sessionID, outputPath string) (*types.ExportResult, error) {
	session, err := m.store.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}

	if outputPath == "" {
		outputPath = defaultArchivePath(session)
	}
	if !strings.HasSuffix(outputPath, archiveExt) {
		outputPath += archiveExt
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	LogInfo("export").Str("sessionId", sessionID).Str("path", outputPath).Msg("Starting session export")

	actions, err := m.store.ListActions(sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load actions: %w", err)
	}

	var actionBuf bytes.Buffer
	encoder := json.NewEncoder(&actionBuf)
	for i := range actions {
		if err := encoder.Encode(actions[i]); err != nil {
			return nil, fmt.Errorf("failed to encode action: %w", err)
		}
	}

	zipFile, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer zipFile.Close()

	w := newArchiveWriter(zipFile)

	// 1. Action stream. Large streams use brotli and are stored raw;
	// zip deflate would just fight the brotli layer.
	encoding := "deflate"
	if actionBuf.Len() > brotliThreshold {
		encoding = "br"
		entry, err := w.CreateHeader(&zip.FileHeader{Name: "actions.jsonl.br", Method: zip.Store})
		if err != nil {
			return nil, m.abort(outputPath, fmt.Errorf("failed to create actions entry: %w", err))
		}
		bw := brotli.NewWriter(entry)
		if _, err := bw.Write(actionBuf.Bytes()); err != nil {
			return nil, m.abort(outputPath, fmt.Errorf("failed to compress actions: %w", err))
		}
		if err := bw.Close(); err != nil {
			return nil, m.abort(outputPath, fmt.Errorf("failed to finish brotli stream: %w", err))
		}
	} else {
		entry, err := w.Create("actions.jsonl")
		if err != nil {
			return nil, m.abort(outputPath, fmt.Errorf("failed to create actions entry: %w", err))
		}
		if _, err := entry.Write(actionBuf.Bytes()); err != nil {
			return nil, m.abort(outputPath, fmt.Errorf("failed to write actions: %w", err))
		}
	}

	// 2. Session metadata
	sessionWriter, err := w.Create("session.json")
	if err != nil {
		return nil, m.abort(outputPath, fmt.Errorf("failed to create session entry: %w", err))
	}
	sessionJSON, _ := json.MarshalIndent(session, "", "  ")
	sessionWriter.Write(sessionJSON)

	// 3. Manifest (last, so it carries final stats)
	manifest := ScribeExportManifest{
		FormatVersion: archiveFormatVersion,
		AppVersion:    m.appVersion,
		ExportTime:    time.Now().UnixMilli(),
		SessionID:     session.ID,
		SessionName:   session.Name,
		ActionCount:   len(actions),
		Encoding:      encoding,
	}
	manifestWriter, err := w.Create("manifest.json")
	if err != nil {
		return nil, m.abort(outputPath, fmt.Errorf("failed to create manifest entry: %w", err))
	}
	manifestJSON, _ := json.MarshalIndent(manifest, "", "  ")
	manifestWriter.Write(manifestJSON)

	if err := w.Close(); err != nil {
		return nil, m.abort(outputPath, fmt.Errorf("failed to finish archive: %w", err))
	}
	if err := zipFile.Close(); err != nil {
		return nil, m.abort(outputPath, fmt.Errorf("failed to close archive: %w", err))
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, err
	}

	LogInfo("export").
		Str("sessionId", sessionID).
		Int("actionCount", len(actions)).
		Str("encoding", encoding).
		Int64("bytes", info.Size()).
		Msg("Session exported successfully")

	return &types.ExportResult{
		SessionID: sessionID,
		Path:      outputPath,
		Format:    encoding,
		SizeBytes: info.Size(),
	}, nil
}

func (m *ExportManager) abort(path string, err error) error {
	os.Remove(path)
	return err
}

func defaultArchivePath(session *types.CaptureSession) string {
	safeName := strings.ReplaceAll(session.Name, " ", "_")
	safeName = strings.ReplaceAll(safeName, "/", "_")
	if safeName == "" {
		safeName = "session"
	}
	ts := time.UnixMilli(session.StartTime).Format("2006-01-02")
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", safeName, ts, archiveExt))
}

// ImportSessionFromPath reads a .scribe archive and stores it as a new
// session. Returns the new session id.
func (m *ExportManager) ImportSessionFromPath(inputPath string) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("file not found: %s", inputPath)
	}

	LogInfo("export").Str("path", inputPath).Msg("Starting session import")

	r, err := zip.OpenReader(inputPath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	var (
		manifestData []byte
		sessionData  []byte
		actionsData  []byte
	)

	for _, f := range r.File {
		switch f.Name {
		case "manifest.json":
			manifestData, err = readArchiveFile(f)
			if err != nil {
				return "", fmt.Errorf("failed to read manifest: %w", err)
			}
		case "session.json":
			sessionData, err = readArchiveFile(f)
			if err != nil {
				return "", fmt.Errorf("failed to read session: %w", err)
			}
		case "actions.jsonl":
			actionsData, err = readArchiveFile(f)
			if err != nil {
				return "", fmt.Errorf("failed to read actions: %w", err)
			}
		case "actions.jsonl.br":
			raw, err := readArchiveFile(f)
			if err != nil {
				return "", fmt.Errorf("failed to read actions: %w", err)
			}
			actionsData, err = io.ReadAll(brotli.NewReader(bytes.NewReader(raw)))
			if err != nil {
				return "", fmt.Errorf("failed to decompress actions: %w", err)
			}
		}
	}

	if sessionData == nil {
		return "", fmt.Errorf("invalid %s archive: missing session.json", archiveExt)
	}

	if manifestData != nil {
		var manifest ScribeExportManifest
		if err := json.Unmarshal(manifestData, &manifest); err != nil {
			LogWarn("export").Err(err).Msg("Failed to parse manifest, continuing anyway")
		} else if manifest.FormatVersion > archiveFormatVersion {
			return "", fmt.Errorf("archive format version %d is newer than supported %d",
				manifest.FormatVersion, archiveFormatVersion)
		}
	}

	var session types.CaptureSession
	if err := json.Unmarshal(sessionData, &session); err != nil {
		return "", fmt.Errorf("failed to parse session: %w", err)
	}

	// Fresh id so an archive can be imported next to its origin.
	oldID := session.ID
	session.ID = uuid.New().String()
	session.Status = "completed"
	session.Name = session.Name + " (imported)"

	var actions []Action
	if actionsData != nil {
		for _, line := range strings.Split(strings.TrimSpace(string(actionsData)), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var a Action
			if err := json.Unmarshal([]byte(line), &a); err != nil {
				LogWarn("export").Err(err).Msg("Failed to parse action line, skipping")
				continue
			}
			a.ID = uuid.New().String()
			a.SessionID = session.ID
			actions = append(actions, a)
		}
	}
	session.ActionCount = int64(len(actions))

	if err := m.store.CreateSession(&session); err != nil {
		return "", fmt.Errorf("failed to import session: %w", err)
	}
	for i := range actions {
		if err := m.store.WriteAction(actions[i]); err != nil {
			return "", fmt.Errorf("failed to import action: %w", err)
		}
	}
	m.store.Flush()

	LogInfo("export").
		Str("oldId", oldID).
		Str("newId", session.ID).
		Int("actionCount", len(actions)).
		Msg("Session imported successfully")

	return session.ID, nil
}

func readArchiveFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
