package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"fileledger/core/block"
	"fileledger/core/chain"
	"fileledger/core/integrity"
)

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type registerResponse struct {
	messageResponse
	Block *block.Block `json:"block"`
}

type verifyResponse struct {
	messageResponse
	Report *integrity.Report `json:"report"`
}

type validateResponse struct {
	messageResponse
	Index  *uint64 `json:"index,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

type historyResponse struct {
	Difficulty int            `json:"difficulty"`
	Blocks     []*block.Block `json:"blocks"`
}

type fileHistoryResponse struct {
	Success  bool           `json:"success"`
	Filename string         `json:"filename"`
	Count    int            `json:"count"`
	Blocks   []*block.Block `json:"blocks"`
}

type userBlock struct {
	Index     uint64  `json:"index"`
	Filename  string  `json:"filename"`
	FileHash  string  `json:"file_hash"`
	FileSize  int64   `json:"file_size"`
	Action    string  `json:"action"`
	Timestamp float64 `json:"timestamp"`
	Hash      string  `json:"hash"`
}

type userHistoryResponse struct {
	Success bool        `json:"success"`
	Count   int         `json:"count"`
	Blocks  []userBlock `json:"blocks"`
}

// receiveUpload stages the multipart "file" field in a scratch file in the
// upload dir. It returns the record key (upload dir + base name) and the
// staged path; the caller owns the staged file.
func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeFileTooLarge, "upload exceeds size limit")
			return "", "", false
		}
		writeError(w, http.StatusBadRequest, codeValidation, "multipart field 'file' is required")
		return "", "", false
	}
	defer f.Close()

	name := filepath.Base(strings.ReplaceAll(hdr.Filename, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid filename")
		return "", "", false
	}
	key := filepath.Join(s.uploadDir, name)

	out, err := os.CreateTemp(s.uploadDir, ".upload-*")
	if err != nil {
		s.log.Error("create upload file", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, "cannot store upload")
		return "", "", false
	}
	if _, err := io.Copy(out, f); err != nil {
		out.Close()
		os.Remove(out.Name())
		writeError(w, http.StatusInternalServerError, codeInternal, "cannot store upload")
		return "", "", false
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		writeError(w, http.StatusInternalServerError, codeInternal, "cannot store upload")
		return "", "", false
	}
	return key, out.Name(), true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	key, tmp, ok := s.receiveUpload(w, r)
	if !ok {
		return
	}
	uploader := r.FormValue("uploader_id")
	if uploader == "" {
		uploader = subject(r)
	}
	action := r.FormValue("action")

	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	b, err := s.svc.RegisterContent(key, tmp, uploader, action)
	if err != nil {
		os.Remove(tmp)
		s.writeRegisterError(w, err)
		return
	}
	if err := os.Rename(tmp, key); err != nil {
		os.Remove(tmp)
		s.log.Error("store registered upload", slog.String("file", key), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, "block appended but upload could not be stored")
		return
	}
	if s.store != nil {
		if err := s.chain.Save(s.store); err != nil {
			s.log.Error("persist after register", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, codeInternal, "block appended but chain could not be saved")
			return
		}
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		messageResponse: messageResponse{Success: true, Message: fmt.Sprintf("%s registered successfully", filepath.Base(key))},
		Block:           b,
	})
}

func (s *Server) writeRegisterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chain.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, block.ErrMiningExhausted):
		writeError(w, http.StatusServiceUnavailable, codeMiningExhausted, "mining gave up before meeting the difficulty target")
	default:
		s.log.Error("register", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, "registration failed")
	}
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	key, tmp, ok := s.receiveUpload(w, r)
	if !ok {
		return
	}
	defer os.Remove(tmp)

	name := filepath.Base(key)
	report, err := s.svc.VerifyContent(key, tmp)
	switch {
	case errors.Is(err, integrity.ErrNoRecord):
		writeError(w, http.StatusNotFound, codeNoRecord, fmt.Sprintf("%s is not registered", name))
		return
	case err != nil:
		s.log.Error("verify", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternal, "verification failed")
		return
	}
	report.Filename = name

	msg := fmt.Sprintf("%s integrity verified.", name)
	if !report.Verified() {
		msg = fmt.Sprintf("%s appears tampered.", name)
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		messageResponse: messageResponse{Success: report.Verified(), Message: msg},
		Report:          report,
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	err := s.chain.Validate()
	if err == nil {
		writeJSON(w, http.StatusOK, validateResponse{
			messageResponse: messageResponse{Success: true, Message: "Blockchain valid, no corruption found."},
		})
		return
	}
	var ve *chain.ValidationError
	if !errors.As(err, &ve) {
		writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
		return
	}
	idx := ve.Index
	writeJSON(w, http.StatusOK, validateResponse{
		messageResponse: messageResponse{Success: false, Message: "Blockchain corrupted: " + ve.Error()},
		Index:           &idx,
		Reason:          string(ve.Reason),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, historyResponse{
		Difficulty: s.chain.Difficulty(),
		Blocks:     s.chain.Blocks(),
	})
}

func (s *Server) handleFileHistory(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("filename")
	if name == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "filename required")
		return
	}
	blocks := s.chain.HistoryForFile(name)
	if len(blocks) == 0 {
		blocks = s.chain.HistoryForFile(filepath.Join(s.uploadDir, filepath.Base(name)))
	}
	writeJSON(w, http.StatusOK, fileHistoryResponse{
		Success:  true,
		Filename: name,
		Count:    len(blocks),
		Blocks:   blocks,
	})
}

func (s *Server) handleUserHistory(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "username required")
		return
	}
	blocks := s.chain.HistoryForUploader(username)
	out := make([]userBlock, 0, len(blocks))
	for _, b := range blocks {
		ev := block.FileEventFromPayload(b.Data())
		out = append(out, userBlock{
			Index:     b.Index(),
			Filename:  filepath.Base(ev.Filename),
			FileHash:  ev.FileHash,
			FileSize:  ev.FileSize,
			Action:    ev.Action,
			Timestamp: b.Timestamp(),
			Hash:      b.Hash(),
		})
	}
	writeJSON(w, http.StatusOK, userHistoryResponse{Success: true, Count: len(out), Blocks: out})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.chain.Statistics())
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "index must be a non-negative integer")
		return
	}
	b, ok := s.chain.Block(idx)
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, fmt.Sprintf("block %d not found", idx))
		return
	}
	writeJSON(w, http.StatusOK, b)
}
