package stubapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"talktrack/internal/entity"
	"talktrack/internal/shared/server/respond"
)

const downloadLinkTTL = 15 * time.Minute

// record is a stored conversation or interview with its stage state.
type record struct {
	id        int64
	kind      entity.Kind
	name      string
	createdAt time.Time
	updatedAt time.Time
	audioFile *string
	duration  *int
	status    map[entity.Stage]entity.Status
	results   map[entity.Stage]any
}

func displayLabel(s entity.Status) string {
	switch s {
	case entity.StatusPending:
		return "Pending"
	case entity.StatusProcessing:
		return "Processing"
	case entity.StatusCompleted:
		return "Completed"
	case entity.StatusFailed:
		return "Failed"
	}
	return string(s)
}

// serialize renders the record the way the production serializer does:
// flat fields, per-stage status plus display label, results null until
// completed.
func (r *record) serialize() gin.H {
	out := gin.H{
		"id":         r.id,
		"name":       r.name,
		"created_at": r.createdAt.UTC(),
		"updated_at": r.updatedAt.UTC(),
		"audio_file": r.audioFile,
		"duration":   r.duration,
	}
	for _, st := range entity.StagesFor(r.kind) {
		status := r.status[st]
		out[st.StatusField()] = status
		out[st.DisplayField()] = displayLabel(status)
		if result, ok := r.results[st]; ok {
			out[st.ResultField()] = result
		} else {
			out[st.ResultField()] = nil
		}
	}
	return out
}

func defaultName(kind entity.Kind) string {
	if kind == entity.KindInterview {
		return "Untitled Interview"
	}
	return "Untitled Conversation"
}

func (s *Server) handleList(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		col := s.collections[resource]
		items := make([]gin.H, 0, len(col.order))
		for _, id := range col.order {
			items = append(items, col.byID[id].serialize())
		}
		s.mu.Unlock()

		// A page query switches to the paginated envelope shape.
		pageRaw := c.Query("page")
		if pageRaw == "" {
			respond.OK(c, items)
			return
		}
		page, err := strconv.Atoi(pageRaw)
		if err != nil || page < 1 {
			respond.Error(c, http.StatusBadRequest, "validation", "invalid page", nil)
			return
		}
		size := s.opts.PageSize
		start := (page - 1) * size
		if start > len(items) {
			start = len(items)
		}
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		var next, prev any
		if end < len(items) {
			next = fmt.Sprintf("/api/%s/?page=%d", resource, page+1)
		}
		if page > 1 {
			prev = fmt.Sprintf("/api/%s/?page=%d", resource, page-1)
		}
		respond.OK(c, gin.H{
			"count":    len(items),
			"next":     next,
			"previous": prev,
			"results":  items[start:end],
		})
	}
}

func (s *Server) handleCreate(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		col := s.collections[resource]
		col.next++
		now := time.Now()
		rec := &record{
			id:        col.next,
			kind:      col.kind,
			name:      defaultName(col.kind),
			createdAt: now,
			updatedAt: now,
			status:    make(map[entity.Stage]entity.Status),
			results:   make(map[entity.Stage]any),
		}
		for _, st := range entity.StagesFor(col.kind) {
			rec.status[st] = entity.StatusPending
		}
		s.mu.Unlock()

		if name := strings.TrimSpace(c.PostForm("name")); name != "" {
			rec.name = name
		}
		if raw := strings.TrimSpace(c.PostForm("duration")); raw != "" {
			if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
				rec.duration = &secs
			}
		}

		if file, err := c.FormFile("audio_file"); err == nil {
			src, err := file.Open()
			if err != nil {
				respond.Error(c, http.StatusBadRequest, "validation", "unreadable audio file", nil)
				return
			}
			content, err := io.ReadAll(src)
			src.Close()
			if err != nil {
				respond.Error(c, http.StatusBadRequest, "validation", "unreadable audio file", nil)
				return
			}
			path := fmt.Sprintf("%s/%d/%s", resource, rec.id, file.Filename)
			mimeType := file.Header.Get("Content-Type")
			if mimeType == "" {
				mimeType = "application/octet-stream"
			}
			s.mu.Lock()
			s.media[path] = mediaObject{content: content, mimeType: mimeType}
			s.mu.Unlock()
			rec.audioFile = &path
		}

		s.mu.Lock()
		col.byID[rec.id] = rec
		col.order = append([]int64{rec.id}, col.order...)
		payload := rec.serialize()
		s.mu.Unlock()

		s.startPipeline(resource, rec.id)
		respond.Created(c, payload)
	}
}

func (s *Server) lookup(c *gin.Context, resource string) (*record, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "not found", nil)
		return nil, false
	}
	s.mu.Lock()
	rec, ok := s.collections[resource].byID[id]
	s.mu.Unlock()
	if !ok {
		respond.Error(c, http.StatusNotFound, "not_found", "not found", nil)
		return nil, false
	}
	return rec, true
}

func (s *Server) handleGet(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter != nil && !s.limiter.Allow(c.GetString("userId"), resource+"/"+c.Param("id")) {
			c.Header("Retry-After", strconv.Itoa(s.limiter.RetryAfterSeconds()))
			respond.Error(c, http.StatusTooManyRequests, "throttled", "status polled too frequently", nil)
			return
		}
		rec, ok := s.lookup(c, resource)
		if !ok {
			return
		}
		s.mu.Lock()
		payload := rec.serialize()
		s.mu.Unlock()
		respond.OK(c, payload)
	}
}

func (s *Server) handlePatch(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, ok := s.lookup(c, resource)
		if !ok {
			return
		}
		var patch map[string]json.RawMessage
		if err := c.ShouldBindJSON(&patch); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation", "request body must be a JSON object", nil)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if raw, ok := patch["name"]; ok {
			var name string
			if err := json.Unmarshal(raw, &name); err != nil || strings.TrimSpace(name) == "" {
				respond.Error(c, http.StatusBadRequest, "validation", "name may not be blank", nil)
				return
			}
			rec.name = name
		}
		if raw, ok := patch["audio_file"]; ok {
			// Only an explicit null is accepted: file content changes go
			// through multipart create, not JSON patch.
			if string(raw) != "null" {
				respond.Error(c, http.StatusBadRequest, "validation", "audio_file can only be cleared", nil)
				return
			}
			if rec.audioFile != nil {
				delete(s.media, *rec.audioFile)
			}
			rec.audioFile = nil
		}
		if raw, ok := patch["duration"]; ok {
			var duration *int
			if err := json.Unmarshal(raw, &duration); err != nil {
				respond.Error(c, http.StatusBadRequest, "validation", "duration must be an integer or null", nil)
				return
			}
			rec.duration = duration
		}
		rec.updatedAt = time.Now()
		respond.OK(c, rec.serialize())
	}
}

func (s *Server) handleDelete(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, ok := s.lookup(c, resource)
		if !ok {
			return
		}
		s.mu.Lock()
		col := s.collections[resource]
		delete(col.byID, rec.id)
		for i, id := range col.order {
			if id == rec.id {
				col.order = append(col.order[:i], col.order[i+1:]...)
				break
			}
		}
		if rec.audioFile != nil {
			delete(s.media, *rec.audioFile)
		}
		s.mu.Unlock()
		respond.NoContent(c)
	}
}

func (s *Server) handleDownloadURL(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, ok := s.lookup(c, resource)
		if !ok {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if rec.audioFile == nil {
			respond.Error(c, http.StatusBadRequest, "validation", "recording has no audio file", nil)
			return
		}
		token := uuid.NewString()
		s.links[token] = downloadGrant{path: *rec.audioFile, expires: time.Now().Add(downloadLinkTTL)}
		respond.OK(c, gin.H{"download_url": fmt.Sprintf("/media/%s?token=%s", *rec.audioFile, token)})
	}
}

// handleMedia serves a blob for a short-lived, single-use grant.
func (s *Server) handleMedia(c *gin.Context) {
	token := c.Query("token")
	path := strings.TrimPrefix(c.Param("path"), "/")

	s.mu.Lock()
	grant, ok := s.links[token]
	if ok {
		delete(s.links, token)
	}
	obj, exists := s.media[path]
	s.mu.Unlock()

	if !ok || grant.path != path || time.Now().After(grant.expires) || !exists {
		respond.Error(c, http.StatusNotFound, "not_found", "link expired or invalid", nil)
		return
	}
	c.Data(http.StatusOK, obj.mimeType, obj.content)
}
