package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"

	"talktrack/internal/entity"
)

// Submission is a new recording to create: media blob plus metadata.
type Submission struct {
	Name     string
	FileName string
	MIMEType string
	Media    io.Reader
	Size     int64
	Duration *int

	// Progress, if set, receives cumulative bytes sent. Observability
	// only; it plays no part in correctness.
	Progress func(sent, total int64)
}

// Create submits a multipart recording and returns the created entity
// with all stages in their initial state. Uses the extended upload
// timeout.
func (c *Client) Create(ctx context.Context, kind entity.Kind, sub Submission) (entity.Entity, error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		err := writeSubmission(form, sub)
		if cerr := form.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/"+kind.Resource()+"/", pr)
	if err != nil {
		return entity.Entity{}, &Error{Kind: KindTransport, Err: err}
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("X-Request-Id", uuid.NewString())
	if token, ok := c.session.AccessToken(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.upload.Do(req)
	if err != nil {
		return entity.Entity{}, &Error{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return entity.Entity{}, &Error{Kind: KindTransport, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Uploads are not replayed transparently: the pipe is spent. The
		// refresh still runs so the caller's retry finds a live session.
		if rerr := c.refresh(ctx); rerr != nil {
			return entity.Entity{}, rerr
		}
		return entity.Entity{}, &Error{Kind: KindAuthExpired, Status: resp.StatusCode, Message: "token refreshed, retry the submission"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return entity.Entity{}, errorFromResponse(resp.StatusCode, raw)
	}

	fields, err := entity.DecodeFields(raw)
	if err != nil {
		return entity.Entity{}, &Error{Kind: KindShape, Message: "create response is not an object", Err: err}
	}
	created := entity.Entity{Kind: kind}
	if err := fields.Apply(&created, nil); err != nil {
		return entity.Entity{}, &Error{Kind: KindShape, Message: "create response has malformed fields", Err: err}
	}
	if raw, ok := fields["id"]; ok {
		if err := json.Unmarshal(raw, &created.ID); err != nil {
			return entity.Entity{}, &Error{Kind: KindShape, Message: "create response has a malformed id", Err: err}
		}
	}
	if created.ID == 0 {
		return entity.Entity{}, &Error{Kind: KindShape, Message: "create response missing id"}
	}
	return created, nil
}

func writeSubmission(form *multipart.Writer, sub Submission) error {
	if err := form.WriteField("name", sub.Name); err != nil {
		return err
	}
	if sub.Duration != nil {
		if err := form.WriteField("duration", fmt.Sprintf("%d", *sub.Duration)); err != nil {
			return err
		}
	}
	if sub.Media == nil {
		return nil
	}
	part, err := form.CreateFormFile("audio_file", sub.FileName)
	if err != nil {
		return err
	}
	reader := io.Reader(sub.Media)
	if sub.Progress != nil {
		reader = &progressReader{r: sub.Media, total: sub.Size, report: sub.Progress}
	}
	_, err = io.Copy(part, reader)
	return err
}

type progressReader struct {
	r      io.Reader
	sent   int64
	total  int64
	report func(sent, total int64)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.sent += int64(n)
		p.report(p.sent, p.total)
	}
	return n, err
}
