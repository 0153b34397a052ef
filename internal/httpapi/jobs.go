package httpapi

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/taskconvert/internal/dispatch"
	"github.com/you/taskconvert/internal/domain"
	"github.com/you/taskconvert/internal/results"
	"github.com/you/taskconvert/internal/storage"
	"github.com/you/taskconvert/internal/validate"
)

type submitResponse struct {
	JobID string `json:"jobId"`
}

func (s *Server) handleAudioSubmit(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	userID := r.URL.Query().Get("userID")

	audioPath, size, err := s.spoolAudio(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sub := domain.AudioSubmission{UserID: userID, AudioPath: audioPath, SizeBytes: size}
	if err := s.validator.Audio(sub); err != nil {
		removeSpooled(audioPath, s.log)
		s.writeError(w, err)
		return
	}

	job, err := s.store.Create(r.Context(), storage.CreateJobParams{UserID: userID, Type: domain.TypeAudio})
	if err != nil {
		removeSpooled(audioPath, s.log)
		s.writeError(w, err)
		return
	}
	s.log.Info("audio job accepted",
		zap.String("job_id", job.JobID),
		zap.String("user_id", userID),
		zap.Int64("bytes", size))

	if err := s.disp.Enqueue(r.Context(), dispatch.Work{Job: job, Audio: &sub}); err != nil {
		removeSpooled(audioPath, s.log)
		if _, terr := s.store.Transition(r.Context(), job.JobID, domain.StatusFailed, "not scheduled: "+err.Error()); terr != nil {
			s.log.Error("failing unscheduled job", zap.String("job_id", job.JobID), zap.Error(terr))
		}
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, submitResponse{JobID: job.JobID})
}

type taskRequest struct {
	Description string              `json:"description"`
	Geo         *domain.GeoLocation `json:"geo,omitempty"`
	Name        string              `json:"name,omitempty"`
	Group       string              `json:"group,omitempty"`
	Data        string              `json:"data,omitempty"`
}

func (s *Server) handleTaskSubmit(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	userID := r.URL.Query().Get("userID")

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(validate.ErrInvalidInput, "malformed task body"))
		return
	}

	sub := domain.TaskSubmission{
		UserID:      userID,
		Description: req.Description,
		Geo:         req.Geo,
		Name:        req.Name,
		Group:       req.Group,
		Data:        req.Data,
	}
	if err := s.validator.Task(sub); err != nil {
		s.writeError(w, err)
		return
	}

	job, err := s.store.Create(r.Context(), storage.CreateJobParams{
		UserID: userID,
		Type:   domain.TypeTask,
		Geo:    req.Geo,
		Name:   req.Name,
		Group:  req.Group,
		Data:   req.Data,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("task job accepted", zap.String("job_id", job.JobID), zap.String("user_id", userID))

	if err := s.disp.Enqueue(r.Context(), dispatch.Work{Job: job, Task: &sub}); err != nil {
		if _, terr := s.store.Transition(r.Context(), job.JobID, domain.StatusFailed, "not scheduled: "+err.Error()); terr != nil {
			s.log.Error("failing unscheduled job", zap.String("job_id", job.JobID), zap.Error(terr))
		}
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, submitResponse{JobID: job.JobID})
}

func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.List(r.Context(), r.URL.Query().Get("userID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	s.writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	payload, err := s.results.TakeOnce(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, results.ErrNotFound) {
			http.Error(w, "result not found", http.StatusNotFound)
			return
		}
		s.writeError(w, err)
		return
	}
	s.log.Info("result consumed", zap.String("job_id", jobID))
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

// spoolAudio copies the request payload to a temp file while counting
// bytes, stopping as soon as the configured ceiling is reached. Both intake
// shapes land on the same validation path: a multipart "file" part or a raw
// octet-stream body.
func (s *Server) spoolAudio(r *http.Request) (string, int64, error) {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		ct = ""
	}

	var src io.Reader
	fileName := ""
	if strings.HasPrefix(ct, "multipart/") {
		mr, err := r.MultipartReader()
		if err != nil {
			return "", 0, errors.Wrap(validate.ErrInvalidInput, "malformed multipart body")
		}
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return "", 0, errors.Wrap(validate.ErrInvalidInput, "file part missing")
			}
			if err != nil {
				return "", 0, errors.Wrap(validate.ErrInvalidInput, "malformed multipart body")
			}
			if part.FormName() == "file" {
				src = part
				fileName = part.FileName()
				break
			}
		}
	} else {
		src = r.Body
	}

	f, err := os.CreateTemp("", "audio_*"+safeExt(fileName))
	if err != nil {
		return "", 0, errors.Wrap(err, "create spool file")
	}
	max := s.validator.MaxAudioBytes()
	n, err := io.CopyN(f, src, max)
	cerr := f.Close()
	switch {
	case err == io.EOF:
		// Whole payload fit under the ceiling.
	case err != nil:
		removeSpooled(f.Name(), s.log)
		return "", 0, errors.Wrap(err, "spool audio")
	default:
		// CopyN wrote max bytes, so the payload is at or over the limit.
		removeSpooled(f.Name(), s.log)
		return "", 0, errors.Wrapf(validate.ErrInvalidInput, "audio payload too large (limit %d bytes)", max)
	}
	if cerr != nil {
		removeSpooled(f.Name(), s.log)
		return "", 0, errors.Wrap(cerr, "close spool file")
	}
	if n == 0 {
		removeSpooled(f.Name(), s.log)
		return "", 0, errors.Wrap(validate.ErrInvalidInput, "empty audio payload")
	}
	return f.Name(), n, nil
}

// safeExt derives a temp-file suffix from the uploaded filename so the
// transcriber sees a recognizable extension. Anything suspicious falls back
// to .bin.
func safeExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		ext := strings.ToLower(name[i+1:])
		if len(ext) > 0 && len(ext) <= 10 && isAlnum(ext) {
			return "." + ext
		}
	}
	return ".bin"
}

func isAlnum(s string) bool {
	for _, c := range s {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func removeSpooled(path string, log *zap.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("removing spooled audio", zap.String("path", path), zap.Error(err))
	}
}
